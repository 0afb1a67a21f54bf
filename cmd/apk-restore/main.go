// Package main содержит точку входа приложения apk-restore —
// планировщика восстановления баз MS SQL Server на момент времени.
package main

import (
	"context"
	"log/slog"
	"os"
	"sync"
	"time"

	"github.com/Kargones/apk-restore/internal/command"
	"github.com/Kargones/apk-restore/internal/command/handlers"
	"github.com/Kargones/apk-restore/internal/config"
	"github.com/Kargones/apk-restore/internal/constants"
	"github.com/Kargones/apk-restore/internal/di"
	"github.com/Kargones/apk-restore/internal/pkg/logging"
	"github.com/Kargones/apk-restore/internal/pkg/metrics"
	"github.com/Kargones/apk-restore/internal/pkg/tracing"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/trace"
)

// recordMetrics записывает результат выполнения команды и отправляет метрики в Pushgateway.
func recordMetrics(ctx context.Context, collector metrics.Collector, command string, start time.Time, success bool) {
	collector.RecordCommandEnd(command, time.Since(start), success)
	_ = collector.Push(ctx) // Ошибки push логируются внутри, не критичны
}

// registerOnce защищает глобальный registry от повторной регистрации
// при многократном вызове run() из тестов.
var registerOnce sync.Once

func main() {
	os.Exit(run())
}

// run содержит основную логику приложения и возвращает exit code.
// Вынесена из main() чтобы os.Exit() вызывался ПОСЛЕ отработки всех
// defer-ов (tracerShutdown, span.End): os.Exit() не выполняет defer,
// и трейсы ошибочных выполнений иначе терялись бы.
func run() int {
	ctx := context.Background()
	cfg := config.MustLoad()

	logger := di.ProvideLogger(cfg)
	logAdapter, ok := logger.(*logging.SlogAdapter)
	if !ok {
		logAdapter = logging.NewSlogAdapter(slog.Default())
	}
	slog.SetDefault(logAdapter.Slog())
	l := slog.Default()

	// Логирование информации о версии и коммите на уровне Debug
	l.Debug("Информация о сборке",
		slog.String("version", constants.Version),
		slog.String("commit_hash", constants.PreCommitHash),
	)

	// Registry глобален: повторный run() (тесты) не регистрирует заново
	var regErr error
	registerOnce.Do(func() { regErr = handlers.RegisterAll() })
	if regErr != nil {
		l.Error("Ошибка регистрации команд",
			slog.String("error", regErr.Error()),
			slog.String(constants.MsgErrProcessing, constants.MsgAppExit),
		)
		return 2
	}

	// Пустая команда → help
	if cfg.Command == "" {
		cfg.Command = constants.ActHelp
	}

	// Генерируем trace_id для корреляции логов
	traceID := tracing.GenerateTraceID()
	// Добавляем trace_id в context для handlers
	ctx = tracing.WithTraceID(ctx, traceID)
	// Связываем с OTel span context — все span-ы используют этот trace ID
	ctx = tracing.ContextWithOTelTraceID(ctx, traceID)

	metricsCollector := di.ProvideMetricsCollector(cfg, logAdapter)

	// Инициализация OpenTelemetry трейсинга
	tracerShutdown := di.ProvideTracerProvider(cfg, logAdapter)
	defer func() {
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		if err := tracerShutdown(shutdownCtx); err != nil {
			l.Error("ошибка завершения tracing",
				slog.String("error", err.Error()),
				slog.String("trace_id", traceID),
				slog.String("command", cfg.Command),
			)
		}
	}()

	tracer := otel.Tracer(constants.AppName)
	ctx, span := tracer.Start(ctx, cfg.Command,
		trace.WithAttributes(
			attribute.String("command", cfg.Command),
			attribute.String("trace_id", traceID),
		),
	)
	defer span.End()

	// Записываем начало выполнения команды
	metricsCollector.RecordCommandStart(cfg.Command)
	start := time.Now()

	handler, found := command.Get(cfg.Command)
	if !found {
		l.Error("неизвестная команда",
			slog.String("BR_COMMAND", cfg.Command),
			slog.String(constants.MsgErrProcessing, constants.MsgAppExit),
		)
		recordMetrics(ctx, metricsCollector, cfg.Command, start, false)
		return 2
	}

	l.Debug("Выполнение команды", slog.String("command", cfg.Command))
	execErr := handler.Execute(ctx, cfg)

	// Записываем завершение и отправляем метрики
	recordMetrics(ctx, metricsCollector, cfg.Command, start, execErr == nil)

	if execErr != nil {
		l.Error("Ошибка выполнения команды",
			slog.String("command", cfg.Command),
			slog.String("error", execErr.Error()),
			slog.String(constants.MsgErrProcessing, constants.MsgAppExit),
		)
		return 8
	}
	return 0
}
