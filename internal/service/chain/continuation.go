package chain

import (
	"github.com/Kargones/apk-restore/internal/entity/backup"
	"github.com/Kargones/apk-restore/internal/pkg/logging"
)

// Resume — разрешённое продолжение для одной базы данных.
// Создаётся ResolveContinuation; nil означает обычный (не продолжающий) запуск.
type Resume struct {
	// Point — точка продолжения.
	Point backup.ContinuationPoint
	// LastRestoreType — тип последнего применённого шага.
	LastRestoreType backup.Type
	// HasLastRestore — известен ли последний применённый шаг.
	HasLastRestore bool
}

// ResolveContinuation адаптирует параметры выбора для возобновления
// прерванного восстановления.
//
// База без точки продолжения обрабатывается обычным запуском — это
// не ошибка, фиксируется уведомлением в логе. Для продолжающихся баз
// выбор Full подавляется (Select получает Resume и синтезирует
// placeholder), а после применённого журнального шага принудительно
// включается IgnoreDiffs: разностная копия поверх журнала уже нелегальна —
// жёсткое правило восстановления, не настройка.
func ResolveContinuation(log logging.Logger, database string, state *backup.RestoreState, opts Options) (*Resume, Options) {
	if state == nil {
		return nil, opts
	}

	point, ok := state.Points[database]
	if !ok {
		log.Info("точка продолжения отсутствует, база обрабатывается обычным запуском",
			"database", database)
		return nil, opts
	}

	res := &Resume{Point: point}
	if last, ok := state.LastRestores[database]; ok {
		res.LastRestoreType = last.Type
		res.HasLastRestore = true
		if last.Type == backup.TypeLog && !opts.IgnoreDiffs {
			log.Info("последний применённый шаг — журнал: differential исключён из плана",
				"database", database)
			opts.IgnoreDiffs = true
		}
	}

	return res, opts
}

// continuingDatabases возвращает количество баз из списка databases,
// для которых задана точка продолжения.
func continuingDatabases(state *backup.RestoreState, databases []string) int {
	if state == nil {
		return 0
	}
	n := 0
	for _, db := range databases {
		if _, ok := state.Points[db]; ok {
			n++
		}
	}
	return n
}
