// Package mssql определяет интерфейсы и типы данных для чтения истории
// бэкапов и состояния восстановления из Microsoft SQL Server (msdb).
// Пакет предоставляет абстракцию, разделённую по принципу ISP
// (Interface Segregation Principle) на сфокусированные интерфейсы:
// DatabaseConnector, HistoryProvider, RestoreStateProvider.
// Композитный интерфейс Client объединяет все вышеперечисленные.
package mssql

import (
	"context"
	"time"

	"github.com/Kargones/apk-restore/internal/entity/backup"
)

// Коды ошибок для MSSQL операций.
const (
	// ErrMSSQLConnect — ошибка подключения к серверу MSSQL
	ErrMSSQLConnect = "MSSQL.CONNECT_FAILED"
	// ErrMSSQLQuery — ошибка выполнения SQL запроса
	ErrMSSQLQuery = "MSSQL.QUERY_FAILED"
	// ErrMSSQLTimeout — превышено время ожидания операции
	ErrMSSQLTimeout = "MSSQL.TIMEOUT"
)

// HistoryOptions содержит параметры выборки истории бэкапов.
type HistoryOptions struct {
	// Databases — базы данных для выборки; пустой список — все базы.
	Databases []string
	// Since — нижняя граница по времени окончания бэкапа.
	// Нулевое значение — без ограничения.
	Since time.Time
	// Timeout — таймаут запроса истории.
	Timeout time.Duration
}

// DatabaseConnector предоставляет операции для подключения к серверу MSSQL.
type DatabaseConnector interface {
	// Connect устанавливает соединение с сервером MSSQL.
	Connect(ctx context.Context) error
	// Close закрывает соединение с сервером.
	Close() error
	// Ping проверяет доступность сервера.
	Ping(ctx context.Context) error
}

// HistoryProvider читает историю бэкапов из msdb.
type HistoryProvider interface {
	// BackupHistory возвращает нормализованную историю бэкапов:
	// по одному дескриптору на физический файл набора. Базы с
	// неразборными LSN изолируются в History.Invalid.
	BackupHistory(ctx context.Context, opts HistoryOptions) (*backup.History, error)
}

// RestoreStateProvider читает состояние прерванных восстановлений.
type RestoreStateProvider interface {
	// RestoreState возвращает точки продолжения баз в состоянии RESTORING
	// и типы последних применённых шагов из msdb.dbo.restorehistory.
	RestoreState(ctx context.Context) (*backup.RestoreState, error)
}

// Client — композитный интерфейс, объединяющий все операции MSSQL.
type Client interface {
	DatabaseConnector
	HistoryProvider
	RestoreStateProvider
}
