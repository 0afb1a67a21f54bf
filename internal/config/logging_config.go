package config

// LoggingConfig содержит настройки для логирования.
//
// Значения по умолчанию должны совпадать с константами logging.DefaultXxx
// из internal/pkg/logging/config.go.
type LoggingConfig struct {
	// Level - уровень логирования (debug, info, warn, error)
	Level string `yaml:"level" env:"BR_LOG_LEVEL" env-default:"info"`

	// Format - формат логов (json, text)
	Format string `yaml:"format" env:"BR_LOG_FORMAT" env-default:"text"`

	// Output - вывод логов (stderr, file)
	Output string `yaml:"output" env:"BR_LOG_OUTPUT" env-default:"stderr"`

	// FilePath - путь к файлу логов (если output=file)
	FilePath string `yaml:"filePath" env:"BR_LOG_FILE_PATH"`

	// MaxSize - максимальный размер файла лога в MB
	MaxSize int `yaml:"maxSize" env:"BR_LOG_MAX_SIZE" env-default:"100"`

	// MaxBackups - максимальное количество backup файлов
	MaxBackups int `yaml:"maxBackups" env:"BR_LOG_MAX_BACKUPS" env-default:"3"`

	// MaxAge - максимальный возраст backup файлов в днях
	MaxAge int `yaml:"maxAge" env:"BR_LOG_MAX_AGE" env-default:"7"`

	// Compress - сжимать ли backup файлы
	Compress bool `yaml:"compress" env:"BR_LOG_COMPRESS" env-default:"true"`
}
