package metrics

import (
	"context"
	"fmt"
	"os"
	"strings"
	"time"

	"github.com/Kargones/apk-restore/internal/pkg/logging"
	"github.com/Kargones/apk-restore/internal/pkg/urlutil"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/push"
)

// PrometheusCollector реализует Collector с Prometheus метриками.
// Отправляет метрики в Pushgateway при вызове Push().
type PrometheusCollector struct {
	config   Config
	logger   logging.Logger
	registry *prometheus.Registry

	// Метрики
	commandDuration *prometheus.HistogramVec
	commandSuccess  *prometheus.CounterVec
	commandError    *prometheus.CounterVec
	planOutcome     *prometheus.CounterVec
	planEntries     *prometheus.HistogramVec

	// Instance label (hostname)
	instance string
}

// NewPrometheusCollector создаёт PrometheusCollector с указанной конфигурацией.
// Регистрирует метрики:
//   - apkrestore_command_duration_seconds (histogram)
//   - apkrestore_command_success_total (counter)
//   - apkrestore_command_error_total (counter)
//   - apkrestore_plan_total (counter, labels: database, status, error_code)
//   - apkrestore_plan_entries (histogram, label: database)
func NewPrometheusCollector(config Config, logger logging.Logger) (*PrometheusCollector, error) {
	if err := config.Validate(); err != nil {
		return nil, err
	}

	instance := config.InstanceLabel
	if instance == "" {
		hostname, err := os.Hostname()
		if err != nil {
			logger.Warn("не удалось получить hostname для metrics instance label, используется 'unknown'",
				"error", err.Error())
			hostname = "unknown"
		}
		instance = hostname
	}

	registry := prometheus.NewRegistry()

	// Histogram для duration (в секундах).
	// Планирование чисто вычислительное, поэтому buckets смещены к коротким
	// интервалам; хвост оставлен для чтения истории из msdb по сети.
	commandDuration := prometheus.NewHistogramVec(
		prometheus.HistogramOpts{
			Namespace: "apkrestore",
			Name:      "command_duration_seconds",
			Help:      "Duration of command execution in seconds",
			Buckets:   []float64{0.01, 0.05, 0.1, 0.5, 1, 5, 10, 30, 60, 120},
		},
		[]string{"command", "status"},
	)

	// Counter для успешных команд.
	// Примечание: success/error counters дублируют histogram counts (duration_seconds_count
	// с label status), но оставлены для удобства — простые PromQL запросы без агрегации
	// по histogram.
	commandSuccess := prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: "apkrestore",
			Name:      "command_success_total",
			Help:      "Total number of successful command executions",
		},
		[]string{"command"},
	)

	// Counter для ошибок
	commandError := prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: "apkrestore",
			Name:      "command_error_total",
			Help:      "Total number of failed command executions",
		},
		[]string{"command"},
	)

	// Counter результатов планирования по базам данных.
	// error_code пуст при успехе, иначе — иерархический код (CHAIN.*, BACKUP.*).
	planOutcome := prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: "apkrestore",
			Name:      "plan_total",
			Help:      "Total number of per-database restore plan computations",
		},
		[]string{"database", "status", "error_code"},
	)

	// Histogram количества шагов в построенном плане.
	planEntries := prometheus.NewHistogramVec(
		prometheus.HistogramOpts{
			Namespace: "apkrestore",
			Name:      "plan_entries",
			Help:      "Number of entries in a computed restore plan",
			Buckets:   []float64{1, 2, 3, 5, 10, 20, 50, 100},
		},
		[]string{"database"},
	)

	// Регистрируем все метрики атомарно.
	// Используем Register вместо MustRegister для избежания panic.
	// Ошибка возможна только при дублировании имён метрик в одном registry.
	collectors := []prometheus.Collector{commandDuration, commandSuccess, commandError, planOutcome, planEntries}
	for _, c := range collectors {
		if err := registry.Register(c); err != nil {
			return nil, fmt.Errorf("ошибка регистрации метрики: %w", err)
		}
	}

	return &PrometheusCollector{
		config:          config,
		logger:          logger,
		registry:        registry,
		commandDuration: commandDuration,
		commandSuccess:  commandSuccess,
		commandError:    commandError,
		planOutcome:     planOutcome,
		planEntries:     planEntries,
		instance:        instance,
	}, nil
}

// RecordCommandStart записывает начало выполнения команды.
// Для CLI не требуется отслеживать "in-flight" — записываем только при завершении.
func (c *PrometheusCollector) RecordCommandStart(command string) {
	c.logger.Debug("metrics: command started", "command", command)
}

// maxLabelLength — максимальная длина значения label для защиты от cardinality explosion.
const maxLabelLength = 128

// sanitizeLabel обрезает значение label до допустимой длины и удаляет
// контрольные символы (\n, \r, \0), которые могут нарушить Prometheus text format.
// Обрезка выполняется по рунам (не по байтам) для корректной работы с UTF-8.
func sanitizeLabel(value string) string {
	clean := strings.Map(func(r rune) rune {
		if r < 0x20 { // контрольные символы: \n, \r, \t, \0 и др.
			return '_'
		}
		return r
	}, value)

	runes := []rune(clean)
	if len(runes) > maxLabelLength {
		return string(runes[:maxLabelLength])
	}
	return clean
}

// RecordCommandEnd записывает завершение команды.
// Обновляет histogram duration и counter success/error.
func (c *PrometheusCollector) RecordCommandEnd(command string, duration time.Duration, success bool) {
	status := "success"
	if !success {
		status = "error"
	}

	command = sanitizeLabel(command)

	c.commandDuration.WithLabelValues(command, status).Observe(duration.Seconds())

	if success {
		c.commandSuccess.WithLabelValues(command).Inc()
	} else {
		c.commandError.WithLabelValues(command).Inc()
	}

	c.logger.Debug("metrics: command ended",
		"command", command,
		"duration_ms", duration.Milliseconds(),
		"success", success,
	)
}

// RecordPlanOutcome записывает результат планирования для одной базы данных.
func (c *PrometheusCollector) RecordPlanOutcome(database string, entries int, errCode string) {
	status := "success"
	if errCode != "" {
		status = "error"
	}

	database = sanitizeLabel(database)
	errCode = sanitizeLabel(errCode)

	c.planOutcome.WithLabelValues(database, status, errCode).Inc()
	if errCode == "" {
		c.planEntries.WithLabelValues(database).Observe(float64(entries))
	}
}

// Push отправляет метрики в Pushgateway.
// Возвращает nil даже при ошибке — ошибки логируются.
func (c *PrometheusCollector) Push(ctx context.Context) error {
	if c.config.PushgatewayURL == "" {
		c.logger.Debug("metrics: pushgateway URL not configured, skipping push")
		return nil
	}

	// Проверяем контекст
	select {
	case <-ctx.Done():
		c.logger.Debug("metrics push отменён")
		return nil
	default:
	}

	pusher := push.New(c.config.PushgatewayURL, c.config.JobName).
		Gatherer(c.registry).
		Grouping("instance", c.instance)

	// Устанавливаем таймаут через контекст
	pushCtx, cancel := context.WithTimeout(ctx, c.config.Timeout)
	defer cancel()

	// AddContext вместо PushContext: метрики команд (main) и метрики
	// планирования (handler) отправляются из разных registry в одну
	// grouping key. PUT затирал бы предыдущую отправку группы.
	if err := pusher.AddContext(pushCtx); err != nil {
		c.logger.Error("ошибка отправки метрик в Pushgateway",
			"error", err.Error(),
			"url", urlutil.MaskURL(c.config.PushgatewayURL),
			"job", c.config.JobName,
		)
		// Возвращаем nil — ошибка метрик не критична
		return nil
	}

	c.logger.Info("метрики отправлены в Pushgateway",
		"url", urlutil.MaskURL(c.config.PushgatewayURL),
		"job", c.config.JobName,
		"instance", c.instance,
	)
	return nil
}

// GetRegistry возвращает внутренний registry для тестирования.
// Примечание: экспортируется только для unit-тестов.
func (c *PrometheusCollector) GetRegistry() *prometheus.Registry {
	return c.registry
}
