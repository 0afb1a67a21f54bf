package backup

import "time"

// PlanEntry — один шаг плана восстановления: логический бэкап
// с разрешённым списком файлов.
type PlanEntry struct {
	// Type — тип применяемого бэкапа.
	Type Type `json:"type"`
	// BackupSetID — набор, из которого собран шаг.
	// Пуст для синтезированного placeholder Full при продолжении.
	BackupSetID string `json:"backup_set_id,omitempty"`
	// FileNames — упорядоченные файлы набора.
	FileNames []string `json:"file_names,omitempty"`
	// FirstLSN и LastLSN — покрываемый диапазон журнала (для Log шагов).
	FirstLSN LSN `json:"first_lsn"`
	LastLSN  LSN `json:"last_lsn"`
	// Placeholder — признак синтезированного Full шага при продолжении
	// прерванного восстановления. Такой шаг не исполняется движком,
	// а лишь фиксирует базу для сопоставления differential.
	Placeholder bool `json:"placeholder,omitempty"`
	// Boundary — признак граничного журнального шага, накрывающего
	// целевое время восстановления. Применяется с STOPAT.
	Boundary bool `json:"boundary,omitempty"`
}

// DatabasePlan — упорядоченная последовательность шагов восстановления
// одной базы данных.
//
// Инвариант: план начинается ровно с одного Full шага (реального или
// placeholder), далее не более одного Differential, далее ноль и более
// журнальных шагов с неубывающими LastLSN, завершаясь не более чем одним
// граничным журнальным шагом, накрывающим целевое время.
type DatabasePlan struct {
	// Database — имя базы данных.
	Database string `json:"database"`
	// RestoreTime — целевое время восстановления.
	RestoreTime time.Time `json:"restore_time"`
	// Entries — шаги плана в порядке применения. Каждый шаг, кроме
	// последнего, применяется в незавершённом состоянии восстановления.
	Entries []PlanEntry `json:"entries"`
	// RecoveryForkID — ветка восстановления, от которой унаследован план.
	// Информационное поле: жёстким фильтром при выборе не является.
	RecoveryForkID string `json:"recovery_fork_id,omitempty"`
}

// LogEntries возвращает журнальные шаги плана в порядке применения.
func (p *DatabasePlan) LogEntries() []PlanEntry {
	var logs []PlanEntry
	for _, e := range p.Entries {
		if e.Type == TypeLog {
			logs = append(logs, e)
		}
	}
	return logs
}

// HasDifferential сообщает, содержит ли план разностный шаг.
func (p *DatabasePlan) HasDifferential() bool {
	for _, e := range p.Entries {
		if e.Type == TypeDifferential {
			return true
		}
	}
	return false
}
