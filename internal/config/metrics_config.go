package config

import "time"

// MetricsConfig содержит настройки для Prometheus метрик.
type MetricsConfig struct {
	// Enabled — включены ли метрики (по умолчанию false).
	Enabled bool `yaml:"enabled" env:"BR_METRICS_ENABLED" env-default:"false"`

	// PushgatewayURL — URL Prometheus Pushgateway.
	// Пример: "http://pushgateway:9091"
	PushgatewayURL string `yaml:"pushgatewayUrl" env:"BR_METRICS_PUSHGATEWAY_URL"`

	// JobName — имя job для группировки метрик.
	// По умолчанию: "apk-restore"
	JobName string `yaml:"jobName" env:"BR_METRICS_JOB_NAME" env-default:"apk-restore"`

	// Timeout — таймаут HTTP запросов к Pushgateway.
	// По умолчанию: 10 секунд.
	Timeout time.Duration `yaml:"timeout" env:"BR_METRICS_TIMEOUT" env-default:"10s"`

	// InstanceLabel — переопределение instance label.
	// Если пусто — используется hostname.
	InstanceLabel string `yaml:"instanceLabel" env:"BR_METRICS_INSTANCE"`
}
