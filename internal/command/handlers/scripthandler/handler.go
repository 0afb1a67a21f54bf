// Package scripthandler реализует NR-команду nr-script для генерации
// RESTORE T-SQL скрипта по построенному плану восстановления.
// Скрипт предназначен для ручного исполнения оператором: команда
// никогда не выполняет RESTORE сама.
package scripthandler

import (
	"context"
	"fmt"
	"io"
	"log/slog"
	"os"
	"time"

	"github.com/Kargones/apk-restore/internal/adapter/mssql"
	"github.com/Kargones/apk-restore/internal/command"
	"github.com/Kargones/apk-restore/internal/command/handlers/shared"
	"github.com/Kargones/apk-restore/internal/config"
	"github.com/Kargones/apk-restore/internal/constants"
	"github.com/Kargones/apk-restore/internal/di"
	"github.com/Kargones/apk-restore/internal/pkg/apperrors"
	"github.com/Kargones/apk-restore/internal/pkg/logging"
	"github.com/Kargones/apk-restore/internal/pkg/output"
	"github.com/Kargones/apk-restore/internal/pkg/tracing"
	"github.com/Kargones/apk-restore/internal/service/chain"
	"github.com/Kargones/apk-restore/internal/service/script"
)

// ErrScriptAllDatabasesFailed — ни для одной базы не удалось построить план.
const ErrScriptAllDatabasesFailed = "SCRIPT.ALL_DATABASES_FAILED"

func RegisterCmd() error {
	return command.Register(&ScriptHandler{})
}

// DatabaseScript — сгенерированный скрипт одной базы данных.
type DatabaseScript struct {
	// Database — имя базы данных (исходное, до переименования).
	Database string `json:"database"`
	// Script — T-SQL текст (пустой при ошибке планирования).
	Script string `json:"script,omitempty"`
	// ErrorCode и ErrorMessage — ошибка планирования этой базы.
	ErrorCode    string `json:"error_code,omitempty"`
	ErrorMessage string `json:"error_message,omitempty"`
}

// ScriptData содержит данные ответа команды nr-script.
type ScriptData struct {
	// RestoreTime — целевое время восстановления.
	RestoreTime time.Time `json:"restore_time"`
	// Scripts — скрипты по базам данных в детерминированном порядке имён.
	Scripts []DatabaseScript `json:"scripts"`
	// Succeeded и Failed — количество успешных и ошибочных баз.
	Succeeded int `json:"succeeded"`
	Failed    int `json:"failed"`
}

// writeText выводит скрипты как единый T-SQL документ.
// Ошибки планирования отражаются комментариями, чтобы результат
// оставался валидным T-SQL.
func (d *ScriptData) writeText(w io.Writer) error {
	for i, s := range d.Scripts {
		if i > 0 {
			if _, err := fmt.Fprintln(w); err != nil {
				return err
			}
		}
		if s.ErrorCode != "" {
			if _, err := fmt.Fprintf(w, "-- %s: [%s] %s\n", s.Database, s.ErrorCode, s.ErrorMessage); err != nil {
				return err
			}
			continue
		}
		if _, err := io.WriteString(w, s.Script); err != nil {
			return err
		}
	}
	return nil
}

// ScriptHandler обрабатывает команду nr-script.
type ScriptHandler struct {
	// mssqlClient — опциональный MSSQL клиент (nil в production, mock в тестах)
	mssqlClient mssql.Client
}

// Name возвращает имя команды.
func (h *ScriptHandler) Name() string {
	return constants.ActNRScript
}

// Description возвращает описание команды для вывода в help.
func (h *ScriptHandler) Description() string {
	return "Генерация RESTORE T-SQL скрипта по плану восстановления. " +
		"BR_RECOVERY=true завершает скрипт переводом базы в доступное состояние"
}

// Execute выполняет команду nr-script.
func (h *ScriptHandler) Execute(ctx context.Context, cfg *config.Config) error {
	start := time.Now()

	traceID := tracing.TraceIDFromContext(ctx)
	if traceID == "" {
		traceID = tracing.GenerateTraceID()
	}

	format := os.Getenv("BR_OUTPUT_FORMAT")
	log := slog.Default().With(slog.String("trace_id", traceID), slog.String("command", constants.ActNRScript))

	if cfg == nil {
		log.Error("Конфигурация не загружена")
		return h.writeError(format, traceID, start,
			shared.ErrConfigMissing, "Конфигурация не загружена")
	}

	restoreTime, err := cfg.ResolveRestoreTime(time.Now)
	if err != nil {
		log.Error("Некорректное целевое время восстановления", slog.String("error", err.Error()))
		return h.writeError(format, traceID, start,
			shared.ErrInvalidRestoreTime, err.Error())
	}

	log.Info("Запуск генерации скрипта восстановления",
		slog.String("restore_time", restoreTime.Format(time.RFC3339)),
		slog.Bool("recovery", cfg.Recovery))

	set, err := h.buildPlanSet(ctx, cfg, restoreTime, log)
	if err != nil {
		code := apperrors.CodeOf(err)
		if code == "" {
			code = shared.ErrSourceLoad
		}
		log.Error("Не удалось построить планы восстановления",
			slog.String("error", err.Error()), slog.String("code", code))
		return h.writeError(format, traceID, start, code, err.Error())
	}

	opts := script.Options{RenameTo: cfg.RenameTo, Recovery: cfg.Recovery}
	data := &ScriptData{
		RestoreTime: restoreTime,
		Succeeded:   set.Succeeded(),
		Failed:      set.Failed(),
	}
	for _, r := range set.Results {
		ds := DatabaseScript{Database: r.Database}
		if r.Err != nil {
			ds.ErrorCode = r.ErrorCode
			ds.ErrorMessage = r.ErrorMessage
		} else {
			ds.Script = script.Render(r.Plan, opts)
		}
		data.Scripts = append(data.Scripts, ds)
	}

	log.Info("Скрипты восстановления сгенерированы",
		slog.Int("databases", len(data.Scripts)),
		slog.Int("succeeded", data.Succeeded),
		slog.Int("failed", data.Failed),
		slog.Duration("duration", time.Since(start)))

	if err := h.writeResult(format, traceID, start, data); err != nil {
		return err
	}

	if len(data.Scripts) > 0 && data.Succeeded == 0 {
		return fmt.Errorf("%s: ни для одной из %d баз данных не построен скрипт",
			ErrScriptAllDatabasesFailed, len(data.Scripts))
	}
	return nil
}

// buildPlanSet загружает входные данные и прогоняет оркестратор.
func (h *ScriptHandler) buildPlanSet(ctx context.Context, cfg *config.Config, restoreTime time.Time, log *slog.Logger) (*chain.PlanSet, error) {
	inputs, err := shared.LoadPlanInputs(ctx, cfg, h.mssqlClient)
	if err != nil {
		return nil, err
	}

	logAdapter := logging.NewSlogAdapter(log)
	collector := di.ProvideMetricsCollector(cfg, logAdapter)

	orchestrator := chain.NewOrchestrator(logAdapter, collector, cfg.Parallelism)
	set, err := orchestrator.BuildPlans(ctx, chain.Request{
		Descriptors: inputs.History.Descriptors,
		Invalid:     inputs.History.Invalid,
		State:       inputs.State,
		Options: chain.Options{
			RestoreTime: restoreTime,
			IgnoreLogs:  cfg.IgnoreLogs,
			IgnoreDiffs: cfg.IgnoreDiffs,
		},
		Databases:  cfg.Databases,
		ServerName: cfg.ServerName,
		RenameTo:   cfg.RenameTo,
	})
	if err != nil {
		return nil, err
	}

	_ = collector.Push(ctx) // Ошибки push логируются внутри, не критичны
	return set, nil
}

// writeResult выводит успешный (возможно частичный) результат.
func (h *ScriptHandler) writeResult(format, traceID string, start time.Time, data *ScriptData) error {
	if format != output.FormatJSON {
		return data.writeText(os.Stdout)
	}

	status := output.StatusSuccess
	switch {
	case len(data.Scripts) > 0 && data.Succeeded == 0:
		status = output.StatusError
	case data.Failed > 0:
		status = output.StatusPartial
	}

	result := &output.Result{
		Status:  status,
		Command: constants.ActNRScript,
		Data:    data,
		Metadata: &output.Metadata{
			DurationMs: time.Since(start).Milliseconds(),
			TraceID:    traceID,
			APIVersion: constants.APIVersion,
		},
	}

	writer := output.NewWriter(format)
	return writer.Write(os.Stdout, result)
}

// writeError выводит структурированную ошибку и возвращает error.
func (h *ScriptHandler) writeError(format, traceID string, start time.Time, code, message string) error {
	if format != output.FormatJSON {
		return shared.HandleError(message, code)
	}

	result := &output.Result{
		Status:  output.StatusError,
		Command: constants.ActNRScript,
		Error: &output.ErrorInfo{
			Code:    code,
			Message: message,
		},
		Metadata: &output.Metadata{
			DurationMs: time.Since(start).Milliseconds(),
			TraceID:    traceID,
			APIVersion: constants.APIVersion,
		},
	}

	writer := output.NewWriter(format)
	if writeErr := writer.Write(os.Stdout, result); writeErr != nil {
		slog.Default().Error("Не удалось записать JSON-ответ об ошибке",
			slog.String("trace_id", traceID),
			slog.String("error", writeErr.Error()))
	}

	return fmt.Errorf("%s: %s", code, message)
}
