package backup

// History — результат загрузки истории бэкапов провайдером.
// Базы с неразборной историей (например, некорректный LSN) изолируются
// в Invalid: ошибка одной базы не портит записи остальных.
type History struct {
	// Descriptors — нормализованные записи всех успешно разобранных баз.
	Descriptors []Descriptor
	// Invalid — ошибки разбора по именам баз данных.
	Invalid map[string]error
}

// AddInvalid помечает базу данных как неразборную.
func (h *History) AddInvalid(database string, err error) {
	if h.Invalid == nil {
		h.Invalid = make(map[string]error)
	}
	// Первая ошибка базы важнее последующих.
	if _, ok := h.Invalid[database]; !ok {
		h.Invalid[database] = err
	}
}

// RestoreState — состояние продолжения от внешнего restore-state провайдера:
// точки продолжения и типы последних применённых шагов по базам данных.
type RestoreState struct {
	// Points — точки продолжения по именам баз данных.
	Points map[string]ContinuationPoint
	// LastRestores — последние применённые шаги по именам баз данных.
	LastRestores map[string]LastRestoreRecord
}
