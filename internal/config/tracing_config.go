package config

import "time"

// TracingConfig содержит настройки OpenTelemetry трейсинга.
type TracingConfig struct {
	// Enabled — включён ли трейсинг (по умолчанию false).
	Enabled bool `yaml:"enabled" env:"BR_TRACING_ENABLED" env-default:"false"`

	// Endpoint — URL OTLP HTTP endpoint (например, "http://jaeger:4318").
	Endpoint string `yaml:"endpoint" env:"BR_TRACING_ENDPOINT"`

	// ServiceName — имя сервиса для resource attributes.
	ServiceName string `yaml:"serviceName" env:"BR_TRACING_SERVICE_NAME" env-default:"apk-restore"`

	// Environment — окружение (production, staging, development).
	Environment string `yaml:"environment" env:"BR_TRACING_ENVIRONMENT" env-default:"production"`

	// Insecure — использовать HTTP вместо HTTPS.
	Insecure bool `yaml:"insecure" env:"BR_TRACING_INSECURE" env-default:"false"`

	// Timeout — таймаут для экспорта трейсов.
	Timeout time.Duration `yaml:"timeout" env:"BR_TRACING_TIMEOUT" env-default:"5s"`

	// SamplingRate — доля сэмплируемых трейсов (0.0 — ни один, 1.0 — все).
	SamplingRate float64 `yaml:"samplingRate" env:"BR_TRACING_SAMPLING_RATE" env-default:"1.0"`
}
