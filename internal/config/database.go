package config

import "time"

// MSSQLConfig содержит настройки подключения к MS SQL Server
// для чтения истории бэкапов из msdb.
type MSSQLConfig struct {
	// Server — адрес сервера MSSQL.
	Server string `yaml:"server" env:"BR_MSSQL_SERVER"`

	// Port — порт сервера (по умолчанию 1433).
	Port int `yaml:"port" env:"BR_MSSQL_PORT" env-default:"1433"`

	// User — имя пользователя для подключения.
	User string `yaml:"user" env:"BR_MSSQL_USER"`

	// Password — пароль пользователя. Рекомендуется задавать только
	// через переменную окружения, не через YAML файл.
	Password string `yaml:"password" env:"BR_MSSQL_PASSWORD"`

	// Database — база данных для подключения (обычно "msdb").
	Database string `yaml:"database" env:"BR_MSSQL_DATABASE" env-default:"msdb"`

	// Timeout — таймаут подключения и запросов.
	Timeout time.Duration `yaml:"timeout" env:"BR_MSSQL_TIMEOUT" env-default:"30s"`

	// Encrypt — использовать TLS шифрование соединения.
	Encrypt bool `yaml:"encrypt" env:"BR_MSSQL_ENCRYPT" env-default:"true"`
}
