// Package mssqltest предоставляет тестовые утилиты для пакета mssql:
// мок-реализации интерфейсов и вспомогательные конструкторы.
package mssqltest

import (
	"context"

	"github.com/Kargones/apk-restore/internal/adapter/mssql"
	"github.com/Kargones/apk-restore/internal/entity/backup"
)

// Compile-time проверки реализации интерфейсов
var (
	_ mssql.Client               = (*MockMSSQLClient)(nil)
	_ mssql.DatabaseConnector    = (*MockMSSQLClient)(nil)
	_ mssql.HistoryProvider      = (*MockMSSQLClient)(nil)
	_ mssql.RestoreStateProvider = (*MockMSSQLClient)(nil)
)

// MockMSSQLClient — мок-реализация mssql.Client для тестирования.
// Использует функциональные поля для гибкой настройки поведения в тестах.
type MockMSSQLClient struct {
	// ConnectFunc — пользовательская реализация Connect
	ConnectFunc func(ctx context.Context) error
	// CloseFunc — пользовательская реализация Close
	CloseFunc func() error
	// PingFunc — пользовательская реализация Ping
	PingFunc func(ctx context.Context) error
	// BackupHistoryFunc — пользовательская реализация BackupHistory
	BackupHistoryFunc func(ctx context.Context, opts mssql.HistoryOptions) (*backup.History, error)
	// RestoreStateFunc — пользовательская реализация RestoreState
	RestoreStateFunc func(ctx context.Context) (*backup.RestoreState, error)
}

// NewMockMSSQLClient создаёт мок с поведением по умолчанию:
// все операции успешны и возвращают пустые данные.
func NewMockMSSQLClient() *MockMSSQLClient {
	return &MockMSSQLClient{}
}

// Connect устанавливает соединение с сервером MSSQL.
// При отсутствии пользовательской функции возвращает nil.
func (m *MockMSSQLClient) Connect(ctx context.Context) error {
	if m.ConnectFunc != nil {
		return m.ConnectFunc(ctx)
	}
	return nil
}

// Close закрывает соединение с сервером.
// При отсутствии пользовательской функции возвращает nil.
func (m *MockMSSQLClient) Close() error {
	if m.CloseFunc != nil {
		return m.CloseFunc()
	}
	return nil
}

// Ping проверяет доступность сервера.
// При отсутствии пользовательской функции возвращает nil.
func (m *MockMSSQLClient) Ping(ctx context.Context) error {
	if m.PingFunc != nil {
		return m.PingFunc(ctx)
	}
	return nil
}

// BackupHistory возвращает историю бэкапов.
// При отсутствии пользовательской функции возвращает пустую историю.
func (m *MockMSSQLClient) BackupHistory(ctx context.Context, opts mssql.HistoryOptions) (*backup.History, error) {
	if m.BackupHistoryFunc != nil {
		return m.BackupHistoryFunc(ctx, opts)
	}
	return &backup.History{}, nil
}

// RestoreState возвращает состояние прерванных восстановлений.
// При отсутствии пользовательской функции возвращает пустое состояние.
func (m *MockMSSQLClient) RestoreState(ctx context.Context) (*backup.RestoreState, error) {
	if m.RestoreStateFunc != nil {
		return m.RestoreStateFunc(ctx)
	}
	return &backup.RestoreState{
		Points:       map[string]backup.ContinuationPoint{},
		LastRestores: map[string]backup.LastRestoreRecord{},
	}, nil
}
