// Package planhandler реализует NR-команду nr-plan для построения
// минимальной LSN-согласованной последовательности восстановления
// Full/Diff/Log по истории резервных копий.
package planhandler

import (
	"context"
	"fmt"
	"io"
	"log/slog"
	"os"
	"strings"
	"time"

	"github.com/Kargones/apk-restore/internal/adapter/mssql"
	"github.com/Kargones/apk-restore/internal/command"
	"github.com/Kargones/apk-restore/internal/command/handlers/shared"
	"github.com/Kargones/apk-restore/internal/config"
	"github.com/Kargones/apk-restore/internal/constants"
	"github.com/Kargones/apk-restore/internal/di"
	"github.com/Kargones/apk-restore/internal/entity/backup"
	"github.com/Kargones/apk-restore/internal/pkg/apperrors"
	"github.com/Kargones/apk-restore/internal/pkg/logging"
	"github.com/Kargones/apk-restore/internal/pkg/output"
	"github.com/Kargones/apk-restore/internal/pkg/tracing"
	"github.com/Kargones/apk-restore/internal/service/chain"
)

// ErrPlanAllDatabasesFailed — ни одна база данных не была успешно спланирована.
const ErrPlanAllDatabasesFailed = "PLAN.ALL_DATABASES_FAILED"

func RegisterCmd() error {
	// Deprecated: alias "plan" retained for backward compatibility. Remove in v2.0.0.
	return command.RegisterWithAlias(&PlanHandler{}, constants.ActPlan)
}

// PlanData содержит данные ответа команды nr-plan.
type PlanData struct {
	// RestoreTime — целевое время восстановления.
	RestoreTime time.Time `json:"restore_time"`
	// Databases — количество обработанных баз данных.
	Databases int `json:"databases"`
	// Succeeded и Failed — количество успешных и ошибочных баз.
	Succeeded int `json:"succeeded"`
	Failed    int `json:"failed"`
	// Results — результаты планирования по базам данных
	// в детерминированном порядке имён.
	Results []chain.DatabaseResult `json:"results"`
}

// writeText выводит план восстановления в человекочитаемом формате.
func (d *PlanData) writeText(w io.Writer) error {
	if _, err := fmt.Fprintf(w, "План восстановления на %s\n", d.RestoreTime.Format(time.RFC3339)); err != nil {
		return err
	}
	if _, err := fmt.Fprintf(w, "Баз данных: %d (успешно: %d, с ошибками: %d)\n",
		d.Databases, d.Succeeded, d.Failed); err != nil {
		return err
	}

	for _, r := range d.Results {
		if _, err := fmt.Fprintf(w, "\n=== %s ===\n", r.Database); err != nil {
			return err
		}
		if r.Err != nil {
			if _, err := fmt.Fprintf(w, "❌ [%s] %s\n", r.ErrorCode, r.ErrorMessage); err != nil {
				return err
			}
			continue
		}
		for i, e := range r.Plan.Entries {
			if err := writeEntryText(w, i+1, e, r.Plan.RestoreTime); err != nil {
				return err
			}
		}
	}
	return nil
}

// writeEntryText выводит один шаг плана.
func writeEntryText(w io.Writer, n int, e backup.PlanEntry, restoreTime time.Time) error {
	if e.Placeholder {
		_, err := fmt.Fprintf(w, "%2d. %-12s продолжение прерванного восстановления (набор не применяется)\n",
			n, e.Type)
		return err
	}

	line := fmt.Sprintf("%2d. %-12s набор %s  файлы: %s",
		n, e.Type, e.BackupSetID, strings.Join(e.FileNames, ", "))
	if e.Boundary {
		line += fmt.Sprintf("  STOPAT %s", restoreTime.Format("2006-01-02T15:04:05"))
	}
	_, err := fmt.Fprintln(w, line)
	return err
}

// PlanHandler обрабатывает команду nr-plan.
type PlanHandler struct {
	// mssqlClient — опциональный MSSQL клиент (nil в production, mock в тестах)
	mssqlClient mssql.Client
}

// Name возвращает имя команды.
func (h *PlanHandler) Name() string {
	return constants.ActNRPlan
}

// Description возвращает описание команды для вывода в help.
func (h *PlanHandler) Description() string {
	return "Построение минимального плана восстановления Full/Diff/Log на целевое время " +
		"по истории бэкапов (msdb или JSON файл)"
}

// Execute выполняет команду nr-plan.
func (h *PlanHandler) Execute(ctx context.Context, cfg *config.Config) error {
	start := time.Now()

	traceID := tracing.TraceIDFromContext(ctx)
	if traceID == "" {
		traceID = tracing.GenerateTraceID()
	}

	format := os.Getenv("BR_OUTPUT_FORMAT")
	log := slog.Default().With(slog.String("trace_id", traceID), slog.String("command", constants.ActNRPlan))

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

	log.Info("Запуск построения плана восстановления",
		slog.String("restore_time", restoreTime.Format(time.RFC3339)),
		slog.String("source", cfg.Source))

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

	data := &PlanData{
		RestoreTime: restoreTime,
		Databases:   len(set.Results),
		Succeeded:   set.Succeeded(),
		Failed:      set.Failed(),
		Results:     set.Results,
	}

	log.Info("Планы восстановления построены",
		slog.Int("databases", data.Databases),
		slog.Int("succeeded", data.Succeeded),
		slog.Int("failed", data.Failed),
		slog.Duration("duration", time.Since(start)))

	if err := h.writeResult(format, traceID, start, data); err != nil {
		return err
	}

	// Ошибки отдельных баз не прерывают пакет, но полный провал —
	// это ошибка команды (exit code для CI/CD).
	if data.Databases > 0 && data.Succeeded == 0 {
		return fmt.Errorf("%s: ни одна из %d баз данных не спланирована",
			ErrPlanAllDatabasesFailed, data.Databases)
	}
	return nil
}

// buildPlanSet загружает входные данные и прогоняет оркестратор.
func (h *PlanHandler) buildPlanSet(ctx context.Context, cfg *config.Config, restoreTime time.Time, log *slog.Logger) (*chain.PlanSet, error) {
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
func (h *PlanHandler) writeResult(format, traceID string, start time.Time, data *PlanData) error {
	if format != output.FormatJSON {
		return data.writeText(os.Stdout)
	}

	status := output.StatusSuccess
	switch {
	case data.Databases > 0 && data.Succeeded == 0:
		status = output.StatusError
	case data.Failed > 0:
		status = output.StatusPartial
	}

	result := &output.Result{
		Status:  status,
		Command: constants.ActNRPlan,
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
func (h *PlanHandler) writeError(format, traceID string, start time.Time, code, message string) error {
	// Текстовый формат — человекочитаемый вывод ошибки
	if format != output.FormatJSON {
		return shared.HandleError(message, code)
	}

	result := &output.Result{
		Status:  output.StatusError,
		Command: constants.ActNRPlan,
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
