package shared

import (
	"context"
	"fmt"
	"log/slog"

	"github.com/Kargones/apk-restore/internal/adapter/historyfile"
	"github.com/Kargones/apk-restore/internal/adapter/mssql"
	"github.com/Kargones/apk-restore/internal/config"
	"github.com/Kargones/apk-restore/internal/constants"
	"github.com/Kargones/apk-restore/internal/entity/backup"
)

// PlanInputs — загруженные исходные данные пакетного планирования:
// история бэкапов и состояние прерванных восстановлений.
type PlanInputs struct {
	// History — нормализованная история бэкапов.
	History *backup.History
	// State — состояние продолжения (nil если не загружалось).
	State *backup.RestoreState
}

// LoadPlanInputs читает историю бэкапов и состояние продолжения из
// источника, заданного конфигурацией: msdb целевого сервера (source=mssql)
// или JSON файлов (source=file).
//
// client используется только при source=mssql; nil означает "создать
// из конфигурации". Соединение закрывается до возврата — входные данные
// полностью вычитываются в память.
func LoadPlanInputs(ctx context.Context, cfg *config.Config, client mssql.Client) (*PlanInputs, error) {
	if cfg.Source == constants.SourceFile {
		return loadFromFiles(cfg)
	}
	return loadFromServer(ctx, cfg, client)
}

// loadFromFiles читает историю и состояние из JSON файлов через
// schema-валидирующий провайдер.
func loadFromFiles(cfg *config.Config) (*PlanInputs, error) {
	provider, err := historyfile.NewProvider()
	if err != nil {
		return nil, fmt.Errorf("не удалось инициализировать провайдер истории: %w", err)
	}

	history, err := provider.LoadHistory(cfg.HistoryFile)
	if err != nil {
		return nil, err
	}

	inputs := &PlanInputs{History: history}
	if cfg.ContinuationFile != "" {
		state, err := provider.LoadState(cfg.ContinuationFile)
		if err != nil {
			return nil, err
		}
		inputs.State = state
	}
	return inputs, nil
}

// loadFromServer читает историю из msdb и состояние прерванных
// восстановлений из системных представлений сервера.
func loadFromServer(ctx context.Context, cfg *config.Config, client mssql.Client) (*PlanInputs, error) {
	var err error
	if client == nil {
		client, err = CreateMSSQLClient(cfg)
		if err != nil {
			return nil, err
		}
	}

	if err := client.Connect(ctx); err != nil {
		return nil, err
	}
	defer func() {
		if closeErr := client.Close(); closeErr != nil {
			slog.Default().Warn("Ошибка закрытия соединения MSSQL",
				slog.String("error", closeErr.Error()))
		}
	}()

	history, err := client.BackupHistory(ctx, mssql.HistoryOptions{
		Databases: cfg.Databases,
		Timeout:   cfg.MSSQL.Timeout,
	})
	if err != nil {
		return nil, err
	}

	state, err := client.RestoreState(ctx)
	if err != nil {
		return nil, err
	}

	return &PlanInputs{History: history, State: state}, nil
}
