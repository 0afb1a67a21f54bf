package backup

import (
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/Kargones/apk-restore/internal/pkg/apperrors"
)

func TestType_String(t *testing.T) {
	assert.Equal(t, "full", TypeFull.String())
	assert.Equal(t, "differential", TypeDifferential.String())
	assert.Equal(t, "log", TypeLog.String())
	assert.Equal(t, "unknown", Type(99).String())
}

func TestDescriptor_IsNoOpLog(t *testing.T) {
	noop := Descriptor{
		Type:     TypeLog,
		FirstLSN: MustParseLSN("100"),
		LastLSN:  MustParseLSN("100"),
	}
	assert.True(t, noop.IsNoOpLog(), "журнал с FirstLSN == LastLSN — пустой маркер")

	real := Descriptor{
		Type:     TypeLog,
		FirstLSN: MustParseLSN("100"),
		LastLSN:  MustParseLSN("200"),
	}
	assert.False(t, real.IsNoOpLog())

	// Full с совпадающими LSN — не no-op: признак применим только к журналам
	full := Descriptor{
		Type:     TypeFull,
		FirstLSN: MustParseLSN("100"),
		LastLSN:  MustParseLSN("100"),
	}
	assert.False(t, full.IsNoOpLog())
}

func TestDescriptor_Validate(t *testing.T) {
	reversed := Descriptor{
		Type:        TypeLog,
		BackupSetID: "log-1",
		FirstLSN:    MustParseLSN("200"),
		LastLSN:     MustParseLSN("100"),
	}
	err := reversed.Validate()
	require.Error(t, err, "журнал с FirstLSN > LastLSN не покрывает диапазона")
	assert.Equal(t, ErrInvalidLSNRange, apperrors.CodeOf(err))

	valid := Descriptor{
		Type:     TypeLog,
		FirstLSN: MustParseLSN("100"),
		LastLSN:  MustParseLSN("200"),
	}
	assert.NoError(t, valid.Validate())

	noop := Descriptor{
		Type:     TypeLog,
		FirstLSN: MustParseLSN("100"),
		LastLSN:  MustParseLSN("100"),
	}
	assert.NoError(t, noop.Validate(), "пустой журнал — валидный граничный маркер")

	// Инвариант диапазона применим только к журналам
	full := Descriptor{
		Type:     TypeFull,
		FirstLSN: MustParseLSN("200"),
		LastLSN:  MustParseLSN("100"),
	}
	assert.NoError(t, full.Validate())
}

func TestHistory_AddInvalid(t *testing.T) {
	h := &History{}
	first := errors.New("первая ошибка")
	second := errors.New("вторая ошибка")

	h.AddInvalid("accounting", first)
	h.AddInvalid("accounting", second)

	require.Contains(t, h.Invalid, "accounting")
	assert.Same(t, first, h.Invalid["accounting"], "первая ошибка базы важнее последующих")
}

func TestDatabasePlan_LogEntries(t *testing.T) {
	plan := &DatabasePlan{
		Database: "accounting",
		Entries: []PlanEntry{
			{Type: TypeFull, BackupSetID: "s1"},
			{Type: TypeDifferential, BackupSetID: "s2"},
			{Type: TypeLog, BackupSetID: "s3"},
			{Type: TypeLog, BackupSetID: "s4", Boundary: true},
		},
	}

	logs := plan.LogEntries()
	require.Len(t, logs, 2)
	assert.Equal(t, "s3", logs[0].BackupSetID)
	assert.Equal(t, "s4", logs[1].BackupSetID)
	assert.True(t, logs[1].Boundary)

	assert.True(t, plan.HasDifferential())
}

func TestDatabasePlan_NoDifferential(t *testing.T) {
	plan := &DatabasePlan{
		Entries: []PlanEntry{
			{Type: TypeFull},
			{Type: TypeLog},
		},
	}

	assert.False(t, plan.HasDifferential())
	assert.Len(t, plan.LogEntries(), 1)
}
