package chain

import (
	"context"
	"fmt"
	"sync"

	"golang.org/x/text/collate"
	"golang.org/x/text/language"

	"github.com/Kargones/apk-restore/internal/entity/backup"
	"github.com/Kargones/apk-restore/internal/pkg/apperrors"
	"github.com/Kargones/apk-restore/internal/pkg/logging"
	"github.com/Kargones/apk-restore/internal/pkg/metrics"
)

// Request — входные данные одного запуска пакетного планирования.
type Request struct {
	// Descriptors — плоская коллекция дескрипторов всех баз данных.
	Descriptors []backup.Descriptor
	// State — состояние продолжения (nil если продолжение не используется).
	State *backup.RestoreState
	// Invalid — базы данных, история которых не прошла разбор у провайдера
	// (например, некорректный LSN). Попадают в результат как ошибки,
	// не прерывая пакет.
	Invalid map[string]error
	// Options — общие параметры выбора для всех баз.
	Options Options
	// Databases — явный список баз; пустой список — все базы из истории.
	Databases []string
	// ServerName — фильтр по имени сервера/availability group; пустое — без фильтра.
	ServerName string
	// RenameTo — имя целевой базы при восстановлении под другим именем.
	RenameTo string
}

// DatabaseResult — результат планирования одной базы данных.
// Ровно одно из полей Plan/Err не nil.
type DatabaseResult struct {
	// Database — имя базы данных.
	Database string `json:"database"`
	// Plan — построенный план (nil при ошибке).
	Plan *backup.DatabasePlan `json:"plan,omitempty"`
	// Err — ошибка планирования этой базы (nil при успехе).
	Err error `json:"-"`
	// ErrorCode и ErrorMessage — сериализуемое представление Err.
	ErrorCode    string `json:"error_code,omitempty"`
	ErrorMessage string `json:"error_message,omitempty"`
}

// PlanSet — результат пакетного планирования: по одному DatabaseResult
// на базу данных, в детерминированном порядке имён.
type PlanSet struct {
	// Results — результаты по базам данных.
	Results []DatabaseResult `json:"results"`
}

// Succeeded возвращает количество успешно спланированных баз.
func (s *PlanSet) Succeeded() int {
	n := 0
	for _, r := range s.Results {
		if r.Err == nil {
			n++
		}
	}
	return n
}

// Failed возвращает количество баз с ошибками.
func (s *PlanSet) Failed() int {
	return len(s.Results) - s.Succeeded()
}

// Orchestrator группирует дескрипторы по базам данных, прогоняет выбор
// цепочки по каждой базе и собирает итоговую коллекцию.
//
// Ошибка одной базы никогда не прерывает пакет (partial-failure семантика);
// ошибки уровня запуска обнаруживаются до обработки первой базы.
type Orchestrator struct {
	log         logging.Logger
	collector   metrics.Collector
	collator    *collate.Collator
	parallelism int
}

// NewOrchestrator создаёт Orchestrator.
// parallelism < 1 трактуется как 1 (последовательная обработка).
func NewOrchestrator(log logging.Logger, collector metrics.Collector, parallelism int) *Orchestrator {
	if parallelism < 1 {
		parallelism = 1
	}
	return &Orchestrator{
		log:         log,
		collector:   collector,
		collator:    collate.New(language.Und, collate.Loose),
		parallelism: parallelism,
	}
}

// BuildPlans строит планы восстановления для всех баз данных запроса.
//
// Вычисление по базам независимо и свободно от побочных эффектов, поэтому
// при parallelism > 1 базы обрабатываются параллельно; порядок результатов
// при этом детерминирован — по имени базы данных. Отмена контекста
// останавливает выдачу следующих баз, уже начатые вычисления завершаются.
func (o *Orchestrator) BuildPlans(ctx context.Context, req Request) (*PlanSet, error) {
	byDatabase := groupByDatabase(req.Descriptors, req.ServerName)
	databases := o.selectDatabases(byDatabase, req)

	// Pre-flight: переименование цели в сочетании с продолжением более чем
	// одной базы неоднозначно — фатально для всего запуска, до обработки баз.
	if req.RenameTo != "" {
		if n := continuingDatabases(req.State, databases); n > 1 {
			return nil, apperrors.NewAppError(ErrMultiDBContinuation,
				fmt.Sprintf("переименование в %q при продолжении %d баз данных неоднозначно", req.RenameTo, n), nil)
		}
	}

	results := make([]DatabaseResult, len(databases))

	var wg sync.WaitGroup
	sem := make(chan struct{}, o.parallelism)
	for i, db := range databases {
		if ctx.Err() != nil {
			// Отмена уровня вызывающего: не выдаём следующие базы.
			results[i] = o.failure(db, apperrors.NewAppError(apperrors.ErrCommandExec,
				"планирование отменено", ctx.Err()))
			continue
		}
		if err, ok := req.Invalid[db]; ok {
			results[i] = o.failure(db, err)
			continue
		}

		wg.Add(1)
		sem <- struct{}{}
		go func(i int, db string) {
			defer wg.Done()
			defer func() { <-sem }()
			results[i] = o.planDatabase(db, byDatabase[db], req)
		}(i, db)
	}
	wg.Wait()

	return &PlanSet{Results: results}, nil
}

// planDatabase строит план одной базы и записывает метрику результата.
func (o *Orchestrator) planDatabase(db string, descs []backup.Descriptor, req Request) DatabaseResult {
	res, opts := ResolveContinuation(o.log, db, req.State, req.Options)

	plan, err := Select(o.log, db, descs, opts, res)
	if err != nil {
		o.log.Error("не удалось построить план восстановления",
			"database", db,
			"error", err.Error(),
		)
		return o.failure(db, err)
	}

	o.log.Info("план восстановления построен",
		"database", db,
		"entries", len(plan.Entries),
		"restore_time", plan.RestoreTime,
	)
	o.collector.RecordPlanOutcome(db, len(plan.Entries), "")
	return DatabaseResult{Database: db, Plan: plan}
}

// failure оформляет ошибочный результат и записывает метрику.
func (o *Orchestrator) failure(db string, err error) DatabaseResult {
	code := apperrors.CodeOf(err)
	if code == "" {
		code = apperrors.ErrCommandExec
	}
	o.collector.RecordPlanOutcome(db, 0, code)
	return DatabaseResult{
		Database:     db,
		Err:          err,
		ErrorCode:    code,
		ErrorMessage: err.Error(),
	}
}

// selectDatabases возвращает упорядоченный список обрабатываемых баз:
// явный список из запроса либо все базы, найденные в истории и в точках
// продолжения. Порядок детерминирован — collation-устойчивая сортировка имён.
func (o *Orchestrator) selectDatabases(byDatabase map[string][]backup.Descriptor, req Request) []string {
	var databases []string
	if len(req.Databases) > 0 {
		databases = append(databases, req.Databases...)
	} else {
		seen := make(map[string]struct{})
		for db := range byDatabase {
			seen[db] = struct{}{}
			databases = append(databases, db)
		}
		for db := range req.Invalid {
			if _, ok := seen[db]; !ok {
				seen[db] = struct{}{}
				databases = append(databases, db)
			}
		}
		// База с точкой продолжения, но без записей в истории — чистое
		// продолжение: план из placeholder без журналов.
		if req.State != nil {
			for db := range req.State.Points {
				if _, ok := seen[db]; !ok {
					databases = append(databases, db)
				}
			}
		}
	}
	o.collator.SortStrings(databases)
	return databases
}

// groupByDatabase группирует дескрипторы по имени базы данных,
// применяя фильтр по имени сервера.
func groupByDatabase(descs []backup.Descriptor, serverName string) map[string][]backup.Descriptor {
	byDatabase := make(map[string][]backup.Descriptor)
	for _, d := range descs {
		if serverName != "" && d.ServerName != serverName {
			continue
		}
		byDatabase[d.Database] = append(byDatabase[d.Database], d)
	}
	return byDatabase
}
