// Package shared предоставляет общие утилиты для обработчиков команд.
package shared

import (
	"fmt"

	"github.com/Kargones/apk-restore/internal/adapter/mssql"
	"github.com/Kargones/apk-restore/internal/config"
)

// CreateMSSQLClient создаёт MSSQL клиент из конфигурации.
// Подключение устанавливается отложенно — вызывающий обязан
// вызвать Connect() и закрыть клиент через Close().
func CreateMSSQLClient(cfg *config.Config) (mssql.Client, error) {
	if cfg == nil {
		return nil, fmt.Errorf("конфигурация не может быть nil")
	}
	if cfg.MSSQL.Server == "" {
		return nil, fmt.Errorf("не указан адрес MSSQL сервера (BR_MSSQL_SERVER)")
	}

	opts := mssql.ClientOptions{
		Server:   cfg.MSSQL.Server,
		Port:     cfg.MSSQL.Port,
		User:     cfg.MSSQL.User,
		Password: cfg.MSSQL.Password,
		Database: cfg.MSSQL.Database,
		Timeout:  cfg.MSSQL.Timeout,
	}

	// Encrypt в конфигурации задан явно (env-default:"true"),
	// поэтому используем конструктор с явным контролем шифрования.
	return mssql.NewClientWithEncrypt(opts, cfg.MSSQL.Encrypt)
}
