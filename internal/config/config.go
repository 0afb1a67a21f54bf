// Package config отвечает за загрузку и хранение конфигурации приложения.
// Источники конфигурации (в порядке приоритета):
//  1. Переменные окружения BR_* (через cleanenv)
//  2. YAML файл конфигурации (путь в BR_CONFIG)
//  3. Значения по умолчанию (env-default теги)
package config

import (
	"fmt"
	"os"
	"time"

	"github.com/ilyakaznacheev/cleanenv"
	"gopkg.in/yaml.v3"
)

// Config содержит полную конфигурацию приложения apk-restore.
// Создаётся один раз при старте через MustLoad() и передаётся
// command handler-ам по указателю. После загрузки не мутируется.
type Config struct {
	// Command — имя выполняемой команды (nr-plan, nr-script, ...).
	Command string `yaml:"command" env:"BR_COMMAND"`

	// Databases — список баз данных для планирования.
	// Пустой список означает "все базы, найденные в истории".
	Databases []string `yaml:"databases" env:"BR_DATABASES"`

	// ServerName — имя сервера или availability group для фильтрации
	// истории бэкапов. Пустое значение отключает фильтр.
	ServerName string `yaml:"serverName" env:"BR_SERVER_NAME"`

	// RestoreTime — целевое время восстановления в формате RFC3339
	// или SQL Server ("2006-01-02T15:04:05"). Пустое значение — текущее время.
	RestoreTime string `yaml:"restoreTime" env:"BR_RESTORE_TIME"`

	// IgnoreLogs — не включать журнальные бэкапы в план.
	IgnoreLogs bool `yaml:"ignoreLogs" env:"BR_IGNORE_LOGS" env-default:"false"`

	// IgnoreDiffs — не включать разностные бэкапы в план.
	IgnoreDiffs bool `yaml:"ignoreDiffs" env:"BR_IGNORE_DIFFS" env-default:"false"`

	// Source — источник истории бэкапов: "mssql" (msdb) или "file" (JSON).
	Source string `yaml:"source" env:"BR_SOURCE" env-default:"mssql"`

	// HistoryFile — путь к JSON файлу истории (при source=file).
	HistoryFile string `yaml:"historyFile" env:"BR_HISTORY_FILE"`

	// ContinuationFile — путь к JSON файлу состояния продолжения
	// (continuation points + last restore records). Пустое значение —
	// продолжение не используется.
	ContinuationFile string `yaml:"continuationFile" env:"BR_CONTINUATION_FILE"`

	// RenameTo — имя целевой базы при восстановлении под другим именем.
	// Несовместимо с продолжением более чем одной базы данных.
	RenameTo string `yaml:"renameTo" env:"BR_RENAME_TO"`

	// Recovery — завершать генерируемый скрипт переводом базы
	// в доступное состояние (WITH RECOVERY). По умолчанию false:
	// база остаётся в RESTORING для последующего продолжения.
	Recovery bool `yaml:"recovery" env:"BR_RECOVERY" env-default:"false"`

	// Parallelism — число параллельных воркеров планирования.
	// 1 (по умолчанию) — последовательная обработка.
	Parallelism int `yaml:"parallelism" env:"BR_PARALLELISM" env-default:"1"`

	// MSSQL — настройки подключения к серверу для чтения msdb.
	MSSQL MSSQLConfig `yaml:"mssql"`

	// Logging — настройки логирования.
	Logging LoggingConfig `yaml:"logging"`

	// Metrics — настройки Prometheus метрик.
	Metrics MetricsConfig `yaml:"metrics"`

	// Tracing — настройки OpenTelemetry трейсинга.
	Tracing TracingConfig `yaml:"tracing"`
}

// sqlServerTimeLayout — формат времени SQL Server без таймзоны.
const sqlServerTimeLayout = "2006-01-02T15:04:05"

// ResolveRestoreTime разбирает RestoreTime из конфигурации.
// Поддерживает RFC3339 и SQL Server формат без таймзоны (локальная зона).
// Пустое значение — текущее время.
func (c *Config) ResolveRestoreTime(now func() time.Time) (time.Time, error) {
	if c.RestoreTime == "" {
		return now(), nil
	}
	if t, err := time.Parse(time.RFC3339, c.RestoreTime); err == nil {
		return t, nil
	}
	if t, err := time.ParseInLocation(sqlServerTimeLayout, c.RestoreTime, time.Local); err == nil {
		return t, nil
	}
	return time.Time{}, fmt.Errorf("некорректный формат BR_RESTORE_TIME %q: ожидается RFC3339 или %s",
		c.RestoreTime, sqlServerTimeLayout)
}

// Load загружает конфигурацию: сначала YAML файл (если задан BR_CONFIG),
// затем переменные окружения поверх значений из файла.
func Load() (*Config, error) {
	cfg := &Config{}

	if path := os.Getenv("BR_CONFIG"); path != "" {
		data, err := os.ReadFile(path) //nolint:gosec // путь задаёт оператор через BR_CONFIG
		if err != nil {
			return nil, fmt.Errorf("не удалось прочитать файл конфигурации %s: %w", path, err)
		}
		if err := yaml.Unmarshal(data, cfg); err != nil {
			return nil, fmt.Errorf("ошибка разбора файла конфигурации %s: %w", path, err)
		}
	}

	// Переменные окружения имеют приоритет над YAML
	if err := cleanenv.ReadEnv(cfg); err != nil {
		return nil, fmt.Errorf("ошибка чтения переменных окружения: %w", err)
	}

	if err := cfg.validate(); err != nil {
		return nil, err
	}

	return cfg, nil
}

// MustLoad загружает конфигурацию, завершая процесс при ошибке.
// Используется только в main() — до инициализации логгера.
func MustLoad() *Config {
	cfg, err := Load()
	if err != nil {
		fmt.Fprintf(os.Stderr, "ошибка загрузки конфигурации: %v\n", err)
		os.Exit(2)
	}
	return cfg
}

// validate проверяет согласованность конфигурации.
func (c *Config) validate() error {
	switch c.Source {
	case "mssql", "file":
	default:
		return fmt.Errorf("некорректный BR_SOURCE %q: ожидается mssql или file", c.Source)
	}
	if c.Source == "file" && c.HistoryFile == "" {
		return fmt.Errorf("BR_HISTORY_FILE обязателен при BR_SOURCE=file")
	}
	if c.Parallelism < 0 {
		return fmt.Errorf("BR_PARALLELISM не может быть отрицательным: %d", c.Parallelism)
	}
	return nil
}
