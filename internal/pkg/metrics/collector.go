// Package metrics предоставляет интерфейсы и реализации для сбора и отправки метрик
// в Prometheus Pushgateway.
//
// Пакет следует паттернам проекта apk-restore:
//   - Interface Segregation: Collector interface для абстракции
//   - Factory pattern: NewCollector выбирает реализацию на основе конфигурации
//   - Graceful degradation: NopCollector при отключённых метриках
package metrics

import (
	"context"
	"time"
)

// Collector определяет интерфейс для сбора метрик.
// Реализации: PrometheusCollector (активный) и NopCollector (no-op).
type Collector interface {
	// RecordCommandStart записывает начало выполнения команды.
	// Для CLI не требуется отслеживать "in-flight" — метод может быть no-op.
	RecordCommandStart(command string)

	// RecordCommandEnd записывает завершение команды с результатом.
	// duration — время выполнения команды.
	// success — успешно ли завершилась команда.
	RecordCommandEnd(command string, duration time.Duration, success bool)

	// RecordPlanOutcome записывает результат построения плана восстановления
	// для одной базы данных. errCode пуст при успехе, иначе содержит
	// машиночитаемый код ошибки (например "CHAIN.NO_FULL_BACKUP_FOUND").
	// entries — количество шагов в построенном плане (0 при ошибке).
	RecordPlanOutcome(database string, entries int, errCode string)

	// Push отправляет метрики в Pushgateway.
	// Возвращает nil даже при ошибке — ошибки логируются внутри реализации.
	// Сигнатура `error` сохранена для единообразия интерфейса.
	Push(ctx context.Context) error
}
