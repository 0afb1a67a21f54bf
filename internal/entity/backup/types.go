// Package backup содержит модель данных резервных копий MS SQL Server:
// дескрипторы бэкапов, LSN с численным сравнением и состояние
// продолжения прерванного восстановления.
//
// Пакет не содержит логики выбора цепочки — только чистые данные
// и предикаты над ними. Алгоритм выбора находится в internal/service/chain.
package backup

import (
	"fmt"
	"time"

	"github.com/Kargones/apk-restore/internal/pkg/apperrors"
)

// ErrInvalidLSNRange — код ошибки для журнального дескриптора с FirstLSN > LastLSN.
const ErrInvalidLSNRange = "BACKUP.INVALID_LSN_RANGE"

// Type — тип резервной копии.
type Type int

// Типы резервных копий в порядке их применения при восстановлении.
const (
	// TypeFull — полная резервная копия базы данных.
	TypeFull Type = iota
	// TypeDifferential — разностная копия изменений с момента последнего Full.
	TypeDifferential
	// TypeLog — копия непрерывного диапазона журнала транзакций.
	TypeLog
)

// String возвращает человекочитаемое имя типа.
func (t Type) String() string {
	switch t {
	case TypeFull:
		return "full"
	case TypeDifferential:
		return "differential"
	case TypeLog:
		return "log"
	default:
		return "unknown"
	}
}

// Descriptor описывает одно логическое событие резервного копирования.
// Записи поставляются внешним провайдером истории (msdb или JSON файл)
// уже нормализованными: по одной записи на логический бэкап.
type Descriptor struct {
	// Database — имя базы данных.
	Database string `json:"database"`
	// ServerName — имя сервера или availability group.
	ServerName string `json:"server_name"`
	// Type — тип резервной копии.
	Type Type `json:"type"`
	// Start — время начала операции резервного копирования.
	Start time.Time `json:"start"`
	// End — время окончания; используется для фильтрации "по состоянию на".
	End time.Time `json:"end"`
	// FirstLSN — первый LSN, покрываемый копией.
	FirstLSN LSN `json:"first_lsn"`
	// LastLSN — последний LSN, покрываемый копией.
	// Инвариант для TypeLog: FirstLSN <= LastLSN.
	LastLSN LSN `json:"last_lsn"`
	// CheckpointLSN — LSN контрольной точки на момент бэкапа.
	CheckpointLSN LSN `json:"checkpoint_lsn"`
	// DatabaseBackupLSN — LSN полного бэкапа, на котором основана копия.
	// Для Differential должен совпадать с CheckpointLSN выбранного Full.
	DatabaseBackupLSN LSN `json:"database_backup_lsn"`
	// BackupSetID — идентификатор набора: объединяет физические файлы
	// одного логического (возможно striped) бэкапа.
	BackupSetID string `json:"backup_set_id"`
	// FileNames — упорядоченные пути физических файлов набора.
	FileNames []string `json:"file_names"`
	// RecoveryForkID — идентификатор ветки журнала, созданной
	// предыдущими point-in-time восстановлениями.
	RecoveryForkID string `json:"recovery_fork_id,omitempty"`
}

// Validate проверяет инварианты дескриптора после разбора LSN.
// Журнальный бэкап с FirstLSN > LastLSN не покрывает ни одного диапазона
// журнала — такая запись делает историю своей базы недостоверной,
// как и неразборный LSN.
func (d *Descriptor) Validate() error {
	if d.Type == TypeLog && d.LastLSN.Less(d.FirstLSN) {
		return apperrors.NewAppError(ErrInvalidLSNRange,
			fmt.Sprintf("набор %s: FirstLSN %s больше LastLSN %s",
				d.BackupSetID, d.FirstLSN, d.LastLSN), nil)
	}
	return nil
}

// IsNoOpLog сообщает, является ли запись "пустым" журнальным бэкапом.
// Такой бэкап (FirstLSN == LastLSN) — валидный граничный маркер,
// но никогда не выбирается как внутренний элемент цепочки.
func (d *Descriptor) IsNoOpLog() bool {
	return d.Type == TypeLog && d.FirstLSN.Equal(d.LastLSN)
}

// ContinuationPoint — состояние базы данных при возобновлении
// прерванного восстановления в следующем запуске.
type ContinuationPoint struct {
	// Database — имя базы данных.
	Database string `json:"database"`
	// RedoStartLSN — LSN, с которого должно продолжиться накатывание журнала.
	RedoStartLSN LSN `json:"redo_start_lsn"`
	// DifferentialBaseLSN — база для сопоставления разностных копий.
	DifferentialBaseLSN LSN `json:"differential_base_lsn"`
	// RecoveryForkID — текущая ветка восстановления.
	RecoveryForkID string `json:"recovery_fork_id,omitempty"`
}

// LastRestoreRecord — тип последнего применённого шага восстановления.
// Используется для решения, может ли разностная копия ещё быть применена:
// после применения журнального шага differential уже нелегален.
type LastRestoreRecord struct {
	// Database — имя базы данных.
	Database string `json:"database"`
	// Type — тип последнего применённого шага (Full/Differential/Log).
	Type Type `json:"type"`
}
