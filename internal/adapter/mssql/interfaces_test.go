package mssql_test

import (
	"context"
	"errors"
	"testing"

	"github.com/Kargones/apk-restore/internal/adapter/mssql"
	"github.com/Kargones/apk-restore/internal/adapter/mssql/mssqltest"
	"github.com/Kargones/apk-restore/internal/entity/backup"
)

// TestMockImplementsAllInterfaces проверяет, что mock реализует все интерфейсы.
// Compile-time проверки в mssqltest/mock.go уже гарантируют это,
// но runtime тест подтверждает корректность через type assertions.
func TestMockImplementsAllInterfaces(t *testing.T) {
	mock := mssqltest.NewMockMSSQLClient()

	var client mssql.Client = mock
	if client == nil {
		t.Error("mock должен реализовывать интерфейс Client")
	}

	var connector mssql.DatabaseConnector = mock
	if connector == nil {
		t.Error("mock должен реализовывать интерфейс DatabaseConnector")
	}

	var history mssql.HistoryProvider = mock
	if history == nil {
		t.Error("mock должен реализовывать интерфейс HistoryProvider")
	}

	var state mssql.RestoreStateProvider = mock
	if state == nil {
		t.Error("mock должен реализовывать интерфейс RestoreStateProvider")
	}
}

// TestMockWithCustomFunctions проверяет, что mock с кастомными функциями
// возвращает ожидаемые данные.
func TestMockWithCustomFunctions(t *testing.T) {
	ctx := context.Background()

	wantErr := errors.New("connection refused")
	mock := &mssqltest.MockMSSQLClient{
		ConnectFunc: func(ctx context.Context) error {
			return wantErr
		},
		BackupHistoryFunc: func(ctx context.Context, opts mssql.HistoryOptions) (*backup.History, error) {
			return &backup.History{
				Descriptors: []backup.Descriptor{
					{Database: "accounting", Type: backup.TypeFull},
				},
			}, nil
		},
		RestoreStateFunc: func(ctx context.Context) (*backup.RestoreState, error) {
			return &backup.RestoreState{
				Points: map[string]backup.ContinuationPoint{
					"accounting": {Database: "accounting"},
				},
			}, nil
		},
	}

	if err := mock.Connect(ctx); !errors.Is(err, wantErr) {
		t.Errorf("Connect() error = %v, want %v", err, wantErr)
	}

	history, err := mock.BackupHistory(ctx, mssql.HistoryOptions{})
	if err != nil {
		t.Fatalf("BackupHistory() error = %v, want nil", err)
	}
	if len(history.Descriptors) != 1 || history.Descriptors[0].Database != "accounting" {
		t.Errorf("BackupHistory() = %+v, want одна запись accounting", history.Descriptors)
	}

	state, err := mock.RestoreState(ctx)
	if err != nil {
		t.Fatalf("RestoreState() error = %v, want nil", err)
	}
	if _, ok := state.Points["accounting"]; !ok {
		t.Error("RestoreState() должен вернуть точку продолжения accounting")
	}
}

// TestMockWithNilFunctions проверяет поведение mock по умолчанию.
func TestMockWithNilFunctions(t *testing.T) {
	ctx := context.Background()
	mock := mssqltest.NewMockMSSQLClient()

	if err := mock.Connect(ctx); err != nil {
		t.Errorf("Connect() по умолчанию должен вернуть nil, got %v", err)
	}
	if err := mock.Ping(ctx); err != nil {
		t.Errorf("Ping() по умолчанию должен вернуть nil, got %v", err)
	}
	if err := mock.Close(); err != nil {
		t.Errorf("Close() по умолчанию должен вернуть nil, got %v", err)
	}

	history, err := mock.BackupHistory(ctx, mssql.HistoryOptions{})
	if err != nil {
		t.Fatalf("BackupHistory() error = %v, want nil", err)
	}
	if len(history.Descriptors) != 0 {
		t.Errorf("BackupHistory() по умолчанию должен вернуть пустую историю")
	}

	state, err := mock.RestoreState(ctx)
	if err != nil {
		t.Fatalf("RestoreState() error = %v, want nil", err)
	}
	if len(state.Points) != 0 {
		t.Error("RestoreState() по умолчанию должен вернуть пустое состояние")
	}
}

// TestErrorCodes проверяет формат кодов ошибок MSSQL.
func TestErrorCodes(t *testing.T) {
	codes := []string{
		mssql.ErrMSSQLConnect,
		mssql.ErrMSSQLQuery,
		mssql.ErrMSSQLTimeout,
	}
	for _, code := range codes {
		if len(code) == 0 {
			t.Error("код ошибки не должен быть пустым")
		}
		if code[:6] != "MSSQL." {
			t.Errorf("код %q должен начинаться с категории MSSQL.", code)
		}
	}
}
