// Package shared содержит общие компоненты для всех command handlers.
// Коды ошибок и утилиты используются в plan и script хендлерах.
package shared

// Общие коды ошибок для всех команд.
// Централизованы для соблюдения DRY principle.
const (
	// ErrConfigMissing — отсутствует необходимая конфигурация.
	ErrConfigMissing = "CONFIG.MISSING"
	// ErrInvalidRestoreTime — некорректное целевое время восстановления.
	ErrInvalidRestoreTime = "CONFIG.INVALID_RESTORE_TIME"
	// ErrSourceConnect — не удалось подключиться к источнику истории.
	ErrSourceConnect = "SOURCE.CONNECT_FAILED"
	// ErrSourceLoad — не удалось загрузить историю или состояние продолжения.
	ErrSourceLoad = "SOURCE.LOAD_FAILED"
)
