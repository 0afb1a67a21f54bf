// Package chain реализует алгоритм выбора цепочки восстановления:
// по истории бэкапов (Full, Differential, Log) вычисляется минимальная
// LSN-согласованная последовательность наборов, необходимая для
// восстановления базы данных на заданный момент времени или для
// продолжения прерванного восстановления.
//
// Алгоритм чистый и не выполняет I/O: дескрипторы и состояние продолжения
// поставляются провайдерами (internal/adapter), исполнение плана — внешним
// движком восстановления. Некорректный выбор может дать внешне
// восстановимую, но логически несогласованную базу, поэтому инварианты
// здесь важнее краткости.
package chain

import (
	"fmt"
	"sort"
	"time"

	"github.com/Kargones/apk-restore/internal/entity/backup"
	"github.com/Kargones/apk-restore/internal/pkg/apperrors"
	"github.com/Kargones/apk-restore/internal/pkg/logging"
)

// Options задаёт параметры выбора цепочки для одной базы данных.
type Options struct {
	// RestoreTime — целевое время восстановления ("по состоянию на").
	RestoreTime time.Time
	// IgnoreLogs — не включать журнальные бэкапы в план.
	IgnoreLogs bool
	// IgnoreDiffs — не включать разностные бэкапы в план.
	IgnoreDiffs bool
}

// FullSource — база для сопоставления разностных копий: реальный полный
// бэкап из истории либо синтезированный placeholder при продолжении.
// Явный sum type вместо частично заполненной записи держит инварианты
// видимыми: у placeholder есть только CheckpointLSN и ветка восстановления.
type FullSource interface {
	// CheckpointLSN возвращает LSN контрольной точки для сопоставления
	// differential (DatabaseBackupLSN == CheckpointLSN).
	CheckpointLSN() backup.LSN
}

// ResolvedFull — реальный полный бэкап, выбранный из истории.
type ResolvedFull struct {
	// Descriptor — дескриптор выбранного полного бэкапа.
	Descriptor backup.Descriptor
	// FileNames — объединённые файлы набора (striped бэкап — несколько файлов).
	FileNames []string
}

// CheckpointLSN реализует FullSource.
func (f ResolvedFull) CheckpointLSN() backup.LSN { return f.Descriptor.CheckpointLSN }

// PlaceholderFull — синтезированная база при продолжении прерванного
// восстановления. Не исполняется движком: фиксирует CheckpointLSN
// (= DifferentialBaseLSN точки продолжения) для шага 2 алгоритма.
type PlaceholderFull struct {
	// Checkpoint — база для сопоставления differential.
	Checkpoint backup.LSN
	// RecoveryForkID — ветка восстановления из точки продолжения.
	RecoveryForkID string
}

// CheckpointLSN реализует FullSource.
func (f PlaceholderFull) CheckpointLSN() backup.LSN { return f.Checkpoint }

// Select строит план восстановления одной базы данных.
//
// descs — все дескрипторы этой базы, уже отфильтрованные по серверу;
// res — состояние продолжения (nil при обычном запуске).
//
// Порядок шагов соответствует порядку применения бэкапов движком:
//  1. Выбор Full (пропускается при продолжении);
//  2. Выбор Differential по совпадению базы;
//  3. Вычисление LogBaseLSN;
//  4. Выбор внутренних журнальных наборов и граничного журнала;
//  5. Контроль разрешённости файлов.
func Select(log logging.Logger, database string, descs []backup.Descriptor, opts Options, res *Resume) (*backup.DatabasePlan, error) {
	plan := &backup.DatabasePlan{
		Database:    database,
		RestoreTime: opts.RestoreTime,
	}

	// Шаг 1: полный бэкап или placeholder при продолжении.
	var full FullSource
	if res != nil {
		placeholder := PlaceholderFull{
			Checkpoint:     res.Point.DifferentialBaseLSN,
			RecoveryForkID: res.Point.RecoveryForkID,
		}
		full = placeholder
		plan.RecoveryForkID = placeholder.RecoveryForkID
		plan.Entries = append(plan.Entries, backup.PlanEntry{
			Type:        backup.TypeFull,
			Placeholder: true,
		})
		log.Debug("продолжение восстановления: Full заменён placeholder",
			"database", database,
			"differential_base_lsn", placeholder.Checkpoint.String(),
			"recovery_fork_id", placeholder.RecoveryForkID,
		)
	} else {
		resolved, err := selectFull(descs, opts.RestoreTime)
		if err != nil {
			return nil, err
		}
		full = resolved
		plan.RecoveryForkID = resolved.Descriptor.RecoveryForkID
		plan.Entries = append(plan.Entries, backup.PlanEntry{
			Type:        backup.TypeFull,
			BackupSetID: resolved.Descriptor.BackupSetID,
			FileNames:   resolved.FileNames,
			FirstLSN:    resolved.Descriptor.FirstLSN,
			LastLSN:     resolved.Descriptor.LastLSN,
		})
	}

	// Шаг 2: разностный бэкап. При продолжении после журнального шага
	// differential принудительно исключён (жёсткое правило восстановления,
	// не предпочтение) — это решает ResolveContinuation через opts.
	var diff *backup.Descriptor
	if !opts.IgnoreDiffs {
		if selected, files := selectDifferential(descs, opts.RestoreTime, full.CheckpointLSN()); selected != nil {
			diff = selected
			plan.Entries = append(plan.Entries, backup.PlanEntry{
				Type:        backup.TypeDifferential,
				BackupSetID: selected.BackupSetID,
				FileNames:   files,
				FirstLSN:    selected.FirstLSN,
				LastLSN:     selected.LastLSN,
			})
		}
	}

	// Шаг 3: база журнальной цепочки.
	logBase := logBaseLSN(full, diff, res)

	// Шаг 4: журнальные бэкапы.
	if !opts.IgnoreLogs {
		appendLogEntries(plan, descs, opts.RestoreTime, logBase, full.CheckpointLSN())
	}

	// Шаг 5: любой не-placeholder шаг без файлов — фатальная ошибка.
	for _, e := range plan.Entries {
		if !e.Placeholder && len(e.FileNames) == 0 {
			return nil, apperrors.NewAppError(ErrFileMetadataMissing,
				fmt.Sprintf("для набора %s (%s) не разрешены файлы", e.BackupSetID, e.Type), nil)
		}
	}

	return plan, nil
}

// selectFull выбирает полный бэкап: среди Type=Full с End <= RestoreTime
// берётся наибольший LastLSN, при равенстве — поздний End.
func selectFull(descs []backup.Descriptor, restoreTime time.Time) (ResolvedFull, error) {
	var best *backup.Descriptor
	for i := range descs {
		d := &descs[i]
		if d.Type != backup.TypeFull || d.End.After(restoreTime) {
			continue
		}
		if best == nil || betterFull(d, best) {
			best = d
		}
	}
	if best == nil {
		return ResolvedFull{}, apperrors.NewAppError(ErrNoFullBackupFound,
			fmt.Sprintf("не найден полный бэкап с End <= %s", restoreTime.Format(time.RFC3339)), nil)
	}
	return ResolvedFull{
		Descriptor: *best,
		FileNames:  resolveFileNames(descs, best.BackupSetID),
	}, nil
}

// betterFull сообщает, предпочтительнее ли кандидат c текущего best.
func betterFull(c, best *backup.Descriptor) bool {
	if cmp := c.LastLSN.Cmp(best.LastLSN); cmp != 0 {
		return cmp > 0
	}
	return c.End.After(best.End)
}

// selectDifferential выбирает разностный бэкап: End <= RestoreTime и
// DatabaseBackupLSN == CheckpointLSN выбранного Full — совпадение базы
// исключает differential, основанный на постороннем полном бэкапе.
// Возвращает (nil, nil) если подходящих кандидатов нет.
func selectDifferential(descs []backup.Descriptor, restoreTime time.Time, checkpoint backup.LSN) (*backup.Descriptor, []string) {
	var best *backup.Descriptor
	for i := range descs {
		d := &descs[i]
		if d.Type != backup.TypeDifferential || d.End.After(restoreTime) {
			continue
		}
		if !d.DatabaseBackupLSN.Equal(checkpoint) {
			continue
		}
		if best == nil || betterFull(d, best) {
			best = d
		}
	}
	if best == nil {
		return nil, nil
	}
	return best, resolveFileNames(descs, best.BackupSetID)
}

// logBaseLSN вычисляет LSN, с которого должна начинаться журнальная цепочка:
// LastLSN позднейшего из выбранных Full/Diff, либо RedoStartLSN точки
// продолжения, когда реального Full нет.
func logBaseLSN(full FullSource, diff *backup.Descriptor, res *Resume) backup.LSN {
	var base backup.LSN
	if resolved, ok := full.(ResolvedFull); ok {
		base = resolved.Descriptor.LastLSN
	} else if res != nil {
		base = res.Point.RedoStartLSN
	}
	if diff != nil {
		base = backup.MaxLSN(base, diff.LastLSN)
	}
	return base
}

// logGroup — журнальный набор, собранный по BackupSetID.
type logGroup struct {
	setID string
	first backup.LSN
	last  backup.LSN
	files []string
}

// appendLogEntries добавляет в план внутренние журнальные наборы и
// граничный журнал, накрывающий целевое время.
func appendLogEntries(plan *backup.DatabasePlan, descs []backup.Descriptor, restoreTime time.Time, logBase, checkpoint backup.LSN) {
	// Внутренние кандидаты: Start < RestoreTime, LastLSN >= LogBaseLSN.
	// "Пустой" журнальный бэкап (FirstLSN == LastLSN) — валидный граничный
	// маркер, но внутренним элементом цепочки быть не может.
	groups := make(map[string]*logGroup)
	var order []string
	for i := range descs {
		d := &descs[i]
		if d.Type != backup.TypeLog || !d.Start.Before(restoreTime) {
			continue
		}
		if d.IsNoOpLog() || !d.LastLSN.GreaterOrEqual(logBase) {
			continue
		}
		g, ok := groups[d.BackupSetID]
		if !ok {
			g = &logGroup{setID: d.BackupSetID, first: d.FirstLSN, last: d.LastLSN}
			groups[d.BackupSetID] = g
			order = append(order, d.BackupSetID)
		}
		g.files = append(g.files, d.FileNames...)
	}

	sorted := make([]*logGroup, 0, len(groups))
	for _, id := range order {
		sorted = append(sorted, groups[id])
	}
	// Возрастающий порядок (LastLSN, FirstLSN) — порядок применения журналов.
	sort.SliceStable(sorted, func(i, j int) bool {
		if cmp := sorted[i].last.Cmp(sorted[j].last); cmp != 0 {
			return cmp < 0
		}
		return sorted[i].first.Cmp(sorted[j].first) < 0
	})

	for _, g := range sorted {
		plan.Entries = append(plan.Entries, backup.PlanEntry{
			Type:        backup.TypeLog,
			BackupSetID: g.setID,
			FileNames:   g.files,
			FirstLSN:    g.first,
			LastLSN:     g.last,
		})
	}

	// Граничный журнал: бэкап, фактически накрывающий RestoreTime.
	// Добавляется последним всегда, даже если совпадает с внутренним
	// набором: семантика движка для молчаливой дедупликации не
	// подтверждена, повторное применение того же набора со STOPAT безопасно.
	if boundary := selectBoundaryLog(descs, restoreTime, checkpoint); boundary != nil {
		plan.Entries = append(plan.Entries, backup.PlanEntry{
			Type:        backup.TypeLog,
			BackupSetID: boundary.BackupSetID,
			FileNames:   resolveFileNames(descs, boundary.BackupSetID),
			FirstLSN:    boundary.FirstLSN,
			LastLSN:     boundary.LastLSN,
			Boundary:    true,
		})
	}
}

// selectBoundaryLog ищет ранний по (LastLSN, FirstLSN) журнальный бэкап
// с End >= RestoreTime и DatabaseBackupLSN >= CheckpointLSN выбранного Full.
func selectBoundaryLog(descs []backup.Descriptor, restoreTime time.Time, checkpoint backup.LSN) *backup.Descriptor {
	var best *backup.Descriptor
	for i := range descs {
		d := &descs[i]
		if d.Type != backup.TypeLog || d.End.Before(restoreTime) {
			continue
		}
		if !d.DatabaseBackupLSN.GreaterOrEqual(checkpoint) {
			continue
		}
		if best == nil || earlierLog(d, best) {
			best = d
		}
	}
	return best
}

// earlierLog сообщает, раньше ли кандидат c текущего best по (LastLSN, FirstLSN).
func earlierLog(c, best *backup.Descriptor) bool {
	if cmp := c.LastLSN.Cmp(best.LastLSN); cmp != 0 {
		return cmp < 0
	}
	return c.FirstLSN.Cmp(best.FirstLSN) < 0
}

// resolveFileNames собирает файлы всех дескрипторов набора, сохраняя
// порядок и отбрасывая дубликаты. Несколько дескрипторов с одним
// BackupSetID — striped бэкап, разложенный по физическим файлам.
func resolveFileNames(descs []backup.Descriptor, backupSetID string) []string {
	var files []string
	seen := make(map[string]struct{})
	for i := range descs {
		if descs[i].BackupSetID != backupSetID {
			continue
		}
		for _, f := range descs[i].FileNames {
			if _, ok := seen[f]; ok {
				continue
			}
			seen[f] = struct{}{}
			files = append(files, f)
		}
	}
	return files
}
