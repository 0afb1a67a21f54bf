package planhandler

import (
	"context"
	"encoding/json"
	"errors"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/Kargones/apk-restore/internal/adapter/mssql"
	"github.com/Kargones/apk-restore/internal/adapter/mssql/mssqltest"
	"github.com/Kargones/apk-restore/internal/config"
	"github.com/Kargones/apk-restore/internal/constants"
	"github.com/Kargones/apk-restore/internal/entity/backup"
	"github.com/Kargones/apk-restore/internal/pkg/output"
	"github.com/Kargones/apk-restore/internal/pkg/testutil"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// t0 — опорное время тестовых сценариев.
var t0 = time.Date(2025, 6, 1, 12, 0, 0, 0, time.UTC)

// lsn — сокращение для тестовых LSN.
func lsn(v int64) backup.LSN { return backup.LSNFromInt64(v) }

// fullDesc создаёт дескриптор полного бэкапа.
func fullDesc(db, setID string, end time.Time, lastLSN int64) backup.Descriptor {
	return backup.Descriptor{
		Database:      db,
		Type:          backup.TypeFull,
		Start:         end.Add(-10 * time.Minute),
		End:           end,
		FirstLSN:      lsn(lastLSN - 50),
		LastLSN:       lsn(lastLSN),
		CheckpointLSN: lsn(lastLSN),
		BackupSetID:   setID,
		FileNames:     []string{setID + ".bak"},
	}
}

// logDesc создаёт дескриптор журнального бэкапа.
func logDesc(db, setID string, start, end time.Time, firstLSN, lastLSN, dbBackupLSN int64) backup.Descriptor {
	return backup.Descriptor{
		Database:          db,
		Type:              backup.TypeLog,
		Start:             start,
		End:               end,
		FirstLSN:          lsn(firstLSN),
		LastLSN:           lsn(lastLSN),
		DatabaseBackupLSN: lsn(dbBackupLSN),
		BackupSetID:       setID,
		FileNames:         []string{setID + ".trn"},
	}
}

// mockClient создаёт мок MSSQL клиента, возвращающий заданную историю.
func mockClient(descs []backup.Descriptor) *mssqltest.MockMSSQLClient {
	return &mssqltest.MockMSSQLClient{
		BackupHistoryFunc: func(_ context.Context, _ mssql.HistoryOptions) (*backup.History, error) {
			return &backup.History{Descriptors: descs}, nil
		},
	}
}

// planConfig создаёт минимальную конфигурацию для источника mssql.
// Метрики выключены: handler использует NopCollector.
func planConfig(restoreTime string) *config.Config {
	return &config.Config{
		Command:     constants.ActNRPlan,
		Source:      constants.SourceMSSQL,
		RestoreTime: restoreTime,
	}
}

func TestPlanHandler_Name(t *testing.T) {
	h := &PlanHandler{}
	assert.Equal(t, constants.ActNRPlan, h.Name())
}

func TestPlanHandler_Description(t *testing.T) {
	h := &PlanHandler{}
	assert.NotEmpty(t, h.Description())
}

func TestPlanHandler_Execute_NilConfig_Text(t *testing.T) {
	t.Setenv("BR_OUTPUT_FORMAT", "text")

	h := &PlanHandler{}

	var execErr error
	out := testutil.CaptureStdout(t, func() {
		execErr = h.Execute(context.Background(), nil)
	})

	require.Error(t, execErr)
	assert.Contains(t, execErr.Error(), "CONFIG.MISSING")
	assert.Contains(t, out, "Ошибка:")
	assert.Contains(t, out, "CONFIG.MISSING")
}

func TestPlanHandler_Execute_InvalidRestoreTime_JSON(t *testing.T) {
	t.Setenv("BR_OUTPUT_FORMAT", "json")

	h := &PlanHandler{mssqlClient: mockClient(nil)}
	cfg := planConfig("не-время")

	var execErr error
	out := testutil.CaptureStdout(t, func() {
		execErr = h.Execute(context.Background(), cfg)
	})

	require.Error(t, execErr)
	assert.Contains(t, execErr.Error(), "CONFIG.INVALID_RESTORE_TIME")

	var result output.Result
	require.NoError(t, json.Unmarshal([]byte(out), &result))
	assert.Equal(t, output.StatusError, result.Status)
	require.NotNil(t, result.Error)
	assert.Equal(t, "CONFIG.INVALID_RESTORE_TIME", result.Error.Code)
}

func TestPlanHandler_Execute_Success_JSON(t *testing.T) {
	t.Setenv("BR_OUTPUT_FORMAT", "json")

	descs := []backup.Descriptor{
		fullDesc("accounting", "full-1", t0, 100),
		logDesc("accounting", "log-1", t0.Add(80*time.Minute), t0.Add(100*time.Minute), 100, 200, 100),
	}
	h := &PlanHandler{mssqlClient: mockClient(descs)}
	cfg := planConfig("2025-06-01T13:30:00Z")

	var execErr error
	out := testutil.CaptureStdout(t, func() {
		execErr = h.Execute(context.Background(), cfg)
	})

	require.NoError(t, execErr)

	var result output.Result
	require.NoError(t, json.Unmarshal([]byte(out), &result))
	assert.Equal(t, output.StatusSuccess, result.Status)
	assert.Equal(t, constants.ActNRPlan, result.Command)
	require.NotNil(t, result.Metadata)
	assert.Equal(t, constants.APIVersion, result.Metadata.APIVersion)

	dataMap, ok := result.Data.(map[string]any)
	require.True(t, ok)
	assert.Equal(t, float64(1), dataMap["databases"])
	assert.Equal(t, float64(1), dataMap["succeeded"])
	assert.Equal(t, float64(0), dataMap["failed"])

	results, ok := dataMap["results"].([]any)
	require.True(t, ok)
	require.Len(t, results, 1)
	first, ok := results[0].(map[string]any)
	require.True(t, ok)
	assert.Equal(t, "accounting", first["database"])
	assert.Contains(t, first, "plan")
}

func TestPlanHandler_Execute_Success_Text(t *testing.T) {
	t.Setenv("BR_OUTPUT_FORMAT", "text")

	descs := []backup.Descriptor{
		fullDesc("accounting", "full-1", t0, 100),
		logDesc("accounting", "log-1", t0.Add(80*time.Minute), t0.Add(100*time.Minute), 100, 200, 100),
	}
	h := &PlanHandler{mssqlClient: mockClient(descs)}
	cfg := planConfig("2025-06-01T13:30:00Z")

	var execErr error
	out := testutil.CaptureStdout(t, func() {
		execErr = h.Execute(context.Background(), cfg)
	})

	require.NoError(t, execErr)
	assert.Contains(t, out, "План восстановления на 2025-06-01T13:30:00Z")
	assert.Contains(t, out, "=== accounting ===")
	assert.Contains(t, out, "full-1")
	// Журнал накрывает RestoreTime — граничный шаг со STOPAT
	assert.Contains(t, out, "STOPAT 2025-06-01T13:30:00")
}

func TestPlanHandler_Execute_PartialFailure(t *testing.T) {
	t.Setenv("BR_OUTPUT_FORMAT", "json")

	// У orphan только журнальные бэкапы — полного не найти.
	descs := []backup.Descriptor{
		fullDesc("accounting", "full-1", t0, 100),
		logDesc("orphan", "log-x", t0, t0.Add(10*time.Minute), 10, 20, 5),
	}
	h := &PlanHandler{mssqlClient: mockClient(descs)}
	cfg := planConfig("2025-06-01T14:00:00Z")

	var execErr error
	out := testutil.CaptureStdout(t, func() {
		execErr = h.Execute(context.Background(), cfg)
	})

	// Частичный провал не прерывает команду
	require.NoError(t, execErr)

	var result output.Result
	require.NoError(t, json.Unmarshal([]byte(out), &result))
	assert.Equal(t, output.StatusPartial, result.Status)

	dataMap, ok := result.Data.(map[string]any)
	require.True(t, ok)
	assert.Equal(t, float64(2), dataMap["databases"])
	assert.Equal(t, float64(1), dataMap["succeeded"])
	assert.Equal(t, float64(1), dataMap["failed"])
}

func TestPlanHandler_Execute_AllFailed(t *testing.T) {
	t.Setenv("BR_OUTPUT_FORMAT", "json")

	descs := []backup.Descriptor{
		logDesc("orphan", "log-x", t0, t0.Add(10*time.Minute), 10, 20, 5),
	}
	h := &PlanHandler{mssqlClient: mockClient(descs)}
	cfg := planConfig("2025-06-01T14:00:00Z")

	var execErr error
	out := testutil.CaptureStdout(t, func() {
		execErr = h.Execute(context.Background(), cfg)
	})

	// Полный провал — ошибка команды (exit code для CI/CD)
	require.Error(t, execErr)
	assert.Contains(t, execErr.Error(), ErrPlanAllDatabasesFailed)

	var result output.Result
	require.NoError(t, json.Unmarshal([]byte(out), &result))
	assert.Equal(t, output.StatusError, result.Status)

	dataMap, ok := result.Data.(map[string]any)
	require.True(t, ok)
	results, ok := dataMap["results"].([]any)
	require.True(t, ok)
	require.Len(t, results, 1)
	first, ok := results[0].(map[string]any)
	require.True(t, ok)
	assert.Equal(t, "CHAIN.NO_FULL_BACKUP_FOUND", first["error_code"])
}

func TestPlanHandler_Execute_InvalidDatabaseIsolated_Text(t *testing.T) {
	t.Setenv("BR_OUTPUT_FORMAT", "text")

	h := &PlanHandler{mssqlClient: &mssqltest.MockMSSQLClient{
		BackupHistoryFunc: func(_ context.Context, _ mssql.HistoryOptions) (*backup.History, error) {
			hist := &backup.History{Descriptors: []backup.Descriptor{
				fullDesc("accounting", "full-1", t0, 100),
			}}
			hist.AddInvalid("broken", errors.New("BACKUP.MALFORMED_LSN: некорректный LSN"))
			return hist, nil
		},
	}}
	cfg := planConfig("2025-06-01T14:00:00Z")

	var execErr error
	out := testutil.CaptureStdout(t, func() {
		execErr = h.Execute(context.Background(), cfg)
	})

	require.NoError(t, execErr)
	assert.Contains(t, out, "=== accounting ===")
	assert.Contains(t, out, "=== broken ===")
	assert.Contains(t, out, "❌")
}

func TestPlanHandler_Execute_SourceLoadError(t *testing.T) {
	t.Setenv("BR_OUTPUT_FORMAT", "json")

	h := &PlanHandler{mssqlClient: &mssqltest.MockMSSQLClient{
		BackupHistoryFunc: func(_ context.Context, _ mssql.HistoryOptions) (*backup.History, error) {
			return nil, errors.New("сервер недоступен")
		},
	}}
	cfg := planConfig("2025-06-01T14:00:00Z")

	var execErr error
	out := testutil.CaptureStdout(t, func() {
		execErr = h.Execute(context.Background(), cfg)
	})

	require.Error(t, execErr)

	var result output.Result
	require.NoError(t, json.Unmarshal([]byte(out), &result))
	assert.Equal(t, output.StatusError, result.Status)
	require.NotNil(t, result.Error)
	assert.NotEmpty(t, result.Error.Code)
}

func TestPlanHandler_Execute_FileSource(t *testing.T) {
	t.Setenv("BR_OUTPUT_FORMAT", "json")

	dir := t.TempDir()
	historyPath := filepath.Join(dir, "history.json")
	historyJSON := `{
  "server_name": "SQL01",
  "backups": [
    {
      "database": "accounting",
      "type": "full",
      "start": "2025-06-01T11:50:00Z",
      "end": "2025-06-01T12:00:00Z",
      "first_lsn": "50",
      "last_lsn": "100",
      "checkpoint_lsn": "100",
      "backup_set_id": "full-1",
      "file_names": ["full-1.bak"]
    }
  ]
}`
	require.NoError(t, os.WriteFile(historyPath, []byte(historyJSON), 0600))

	h := &PlanHandler{}
	cfg := &config.Config{
		Command:     constants.ActNRPlan,
		Source:      constants.SourceFile,
		HistoryFile: historyPath,
		RestoreTime: "2025-06-01T14:00:00Z",
		IgnoreLogs:  true,
	}

	var execErr error
	out := testutil.CaptureStdout(t, func() {
		execErr = h.Execute(context.Background(), cfg)
	})

	require.NoError(t, execErr)

	var result output.Result
	require.NoError(t, json.Unmarshal([]byte(out), &result))
	assert.Equal(t, output.StatusSuccess, result.Status)

	dataMap, ok := result.Data.(map[string]any)
	require.True(t, ok)
	assert.Equal(t, float64(1), dataMap["succeeded"])
}

func TestPlanHandler_Execute_FileSource_MissingFile(t *testing.T) {
	t.Setenv("BR_OUTPUT_FORMAT", "json")

	h := &PlanHandler{}
	cfg := &config.Config{
		Command:     constants.ActNRPlan,
		Source:      constants.SourceFile,
		HistoryFile: filepath.Join(t.TempDir(), "нет-такого.json"),
		RestoreTime: "2025-06-01T14:00:00Z",
	}

	var execErr error
	out := testutil.CaptureStdout(t, func() {
		execErr = h.Execute(context.Background(), cfg)
	})

	require.Error(t, execErr)

	var result output.Result
	require.NoError(t, json.Unmarshal([]byte(out), &result))
	assert.Equal(t, output.StatusError, result.Status)
	require.NotNil(t, result.Error)
	assert.Equal(t, "HISTORY.LOAD_FAILED", result.Error.Code)
}

func TestPlanHandler_Execute_Continuation(t *testing.T) {
	t.Setenv("BR_OUTPUT_FORMAT", "json")

	// База в состоянии RESTORING: план продолжает с RedoStartLSN.
	descs := []backup.Descriptor{
		fullDesc("accounting", "full-1", t0, 100),
		logDesc("accounting", "log-1", t0.Add(10*time.Minute), t0.Add(30*time.Minute), 100, 200, 100),
		logDesc("accounting", "log-2", t0.Add(30*time.Minute), t0.Add(60*time.Minute), 200, 300, 100),
	}
	h := &PlanHandler{mssqlClient: &mssqltest.MockMSSQLClient{
		BackupHistoryFunc: func(_ context.Context, _ mssql.HistoryOptions) (*backup.History, error) {
			return &backup.History{Descriptors: descs}, nil
		},
		RestoreStateFunc: func(_ context.Context) (*backup.RestoreState, error) {
			return &backup.RestoreState{
				Points: map[string]backup.ContinuationPoint{
					"accounting": {
						Database:            "accounting",
						RedoStartLSN:        lsn(200),
						DifferentialBaseLSN: lsn(100),
					},
				},
				LastRestores: map[string]backup.LastRestoreRecord{
					"accounting": {Database: "accounting", Type: backup.TypeLog},
				},
			}, nil
		},
	}}
	cfg := planConfig("2025-06-01T12:50:00Z")
	cfg.Databases = []string{"accounting"}

	var execErr error
	out := testutil.CaptureStdout(t, func() {
		execErr = h.Execute(context.Background(), cfg)
	})

	require.NoError(t, execErr)

	var result output.Result
	require.NoError(t, json.Unmarshal([]byte(out), &result))
	assert.Equal(t, output.StatusSuccess, result.Status)

	dataMap, ok := result.Data.(map[string]any)
	require.True(t, ok)
	results, ok := dataMap["results"].([]any)
	require.True(t, ok)
	require.Len(t, results, 1)

	first, ok := results[0].(map[string]any)
	require.True(t, ok)
	planMap, ok := first["plan"].(map[string]any)
	require.True(t, ok, "план продолжения должен быть построен")
	entries, ok := planMap["entries"].([]any)
	require.True(t, ok)
	require.NotEmpty(t, entries)

	// Первый шаг — placeholder: restore базы не начинается заново.
	firstEntry, ok := entries[0].(map[string]any)
	require.True(t, ok)
	assert.Equal(t, true, firstEntry["placeholder"])
}
