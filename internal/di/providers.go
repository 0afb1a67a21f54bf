package di

import (
	"context"
	"log/slog"
	"os"

	"github.com/Kargones/apk-restore/internal/config"
	"github.com/Kargones/apk-restore/internal/constants"
	"github.com/Kargones/apk-restore/internal/pkg/logging"
	"github.com/Kargones/apk-restore/internal/pkg/metrics"
	"github.com/Kargones/apk-restore/internal/pkg/output"
	"github.com/Kargones/apk-restore/internal/pkg/tracing"
)

// ProvideLogger создаёт Logger на основе Config.Logging.
// Использует logging.NewLogger() для создания SlogAdapter.
//
// Провайдер извлекает настройки из Config.Logging:
//   - Level: уровень логирования (debug, info, warn, error)
//   - Format: формат вывода (json, text)
//   - Output: куда выводить логи (stderr, file)
//   - FilePath, MaxSize, MaxBackups, MaxAge, Compress: параметры ротации файлов
//
// Если поля пусты, используются значения по умолчанию:
//   - Level: "info"
//   - Format: "text"
//   - Output: "stderr" (backward compatible)
func ProvideLogger(cfg *config.Config) logging.Logger {
	logCfg := logging.DefaultConfig()

	if cfg != nil {
		if cfg.Logging.Level != "" {
			logCfg.Level = cfg.Logging.Level
		}
		if cfg.Logging.Format != "" {
			logCfg.Format = cfg.Logging.Format
		}
		if cfg.Logging.Output != "" {
			logCfg.Output = cfg.Logging.Output
		}
		if cfg.Logging.FilePath != "" {
			logCfg.FilePath = cfg.Logging.FilePath
		}
		// env-default гарантирует ненулевые значения из cleanenv.
		// Явный 0 игнорируется: размер 0 MB не имеет смысла для lumberjack.
		if cfg.Logging.MaxSize > 0 {
			logCfg.MaxSize = cfg.Logging.MaxSize
		}
		if cfg.Logging.MaxBackups > 0 {
			logCfg.MaxBackups = cfg.Logging.MaxBackups
		}
		if cfg.Logging.MaxAge > 0 {
			logCfg.MaxAge = cfg.Logging.MaxAge
		}
		// Compress: env-default:"true" гарантирует true по умолчанию.
		// Передаём значение из config всегда — false может быть задано явно.
		logCfg.Compress = cfg.Logging.Compress
	}

	return logging.NewLogger(logCfg)
}

// ProvideOutputWriter создаёт OutputWriter на основе BR_OUTPUT_FORMAT.
// Использует output.NewWriter() для создания JSONWriter или TextWriter.
//
// Провайдер читает переменную окружения BR_OUTPUT_FORMAT:
//   - "json": возвращает JSONWriter
//   - "text" или пустая строка: возвращает TextWriter (default)
//
// Не зависит от Config — формат вывода определяется переменной окружения
// для гибкости переключения формата без перезагрузки конфигурации.
func ProvideOutputWriter() output.Writer {
	format := os.Getenv("BR_OUTPUT_FORMAT")
	if format == "" {
		format = output.FormatText
	}
	return output.NewWriter(format)
}

// ProvideTraceID генерирует уникальный trace_id для корреляции логов.
// Использует tracing.GenerateTraceID() для криптографически безопасной генерации.
//
// Формат trace_id: 32-символьный hex string (16 байт).
// Пример: "a1b2c3d4e5f6a7b8c9d0e1f2a3b4c5d6"
//
// TraceID генерируется один раз при инициализации App
// и используется для корреляции всех логов в рамках одного запуска команды.
func ProvideTraceID() string {
	return tracing.GenerateTraceID()
}

// ProvideMetricsCollector создаёт Collector на основе Config.Metrics.
// Если метрики отключены (Enabled=false), NewCollector вернёт NopCollector.
//
// Провайдер извлекает настройки из Config.Metrics:
//   - Enabled: включены ли метрики (по умолчанию false)
//   - PushgatewayURL: URL Prometheus Pushgateway
//   - JobName: имя job для группировки метрик
//   - Timeout: таймаут HTTP запросов
//   - InstanceLabel: переопределение instance label (или hostname)
//
// При ошибке создания Collector возвращает NopCollector и логирует ошибку.
func ProvideMetricsCollector(cfg *config.Config, logger logging.Logger) metrics.Collector {
	// Если конфигурация отсутствует — возвращаем NopCollector
	if cfg == nil {
		return metrics.NewNopCollector()
	}

	// Конвертируем config.MetricsConfig в metrics.Config
	metricsCfg := metrics.Config{
		Enabled:        cfg.Metrics.Enabled,
		PushgatewayURL: cfg.Metrics.PushgatewayURL,
		JobName:        cfg.Metrics.JobName,
		Timeout:        cfg.Metrics.Timeout,
		InstanceLabel:  cfg.Metrics.InstanceLabel,
	}

	collector, err := metrics.NewCollector(metricsCfg, logger)
	if err != nil {
		logger.Error("ошибка создания MetricsCollector, используется NopCollector",
			slog.String("error", err.Error()),
		)
		return metrics.NewNopCollector()
	}

	return collector
}

// ProvideTracerProvider создаёт и инициализирует OTel TracerProvider.
// Возвращает shutdown function для graceful завершения.
// Если трейсинг отключён (Enabled=false), возвращает nop shutdown.
// При ошибке создания TracerProvider возвращает nop shutdown и логирует ошибку.
func ProvideTracerProvider(cfg *config.Config, logger logging.Logger) func(context.Context) error {
	// Если конфигурация отсутствует — возвращаем nop shutdown
	if cfg == nil {
		return tracing.NewNopTracerProvider()
	}

	// Конвертируем config.TracingConfig в tracing.Config
	tracingCfg := tracing.Config{
		Enabled:      cfg.Tracing.Enabled,
		Endpoint:     cfg.Tracing.Endpoint,
		ServiceName:  cfg.Tracing.ServiceName,
		Version:      constants.Version,
		Environment:  cfg.Tracing.Environment,
		Insecure:     cfg.Tracing.Insecure,
		Timeout:      cfg.Tracing.Timeout,
		SamplingRate: cfg.Tracing.SamplingRate,
	}

	shutdown, err := tracing.NewTracerProvider(tracingCfg, logger)
	if err != nil {
		logger.Error("ошибка инициализации tracing, используется nop provider",
			slog.String("error", err.Error()),
		)
		return tracing.NewNopTracerProvider()
	}

	return shutdown
}
