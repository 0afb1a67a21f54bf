package output

import (
	"encoding/json"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestStatusConstants(t *testing.T) {
	assert.Equal(t, "success", StatusSuccess)
	assert.Equal(t, "partial", StatusPartial)
	assert.Equal(t, "error", StatusError)
}

// TestResult_JSONFieldNames фиксирует имена JSON полей — контракт v1
// для потребителей машиночитаемого вывода.
func TestResult_JSONFieldNames(t *testing.T) {
	result := &Result{
		Status:  StatusError,
		Command: "nr-script",
		Data:    map[string]any{"scripts": []any{}},
		Error:   &ErrorInfo{Code: "SOURCE.CONNECT_FAILED", Message: "сервер недоступен"},
		Metadata: &Metadata{
			DurationMs: 7,
			TraceID:    "0123456789abcdef0123456789abcdef",
			APIVersion: "v1",
		},
	}

	raw, err := json.Marshal(result)
	require.NoError(t, err)

	var decoded map[string]any
	require.NoError(t, json.Unmarshal(raw, &decoded))

	assert.Contains(t, decoded, "status")
	assert.Contains(t, decoded, "command")
	assert.Contains(t, decoded, "data")
	assert.Contains(t, decoded, "error")
	assert.Contains(t, decoded, "metadata")

	errObj, ok := decoded["error"].(map[string]any)
	require.True(t, ok)
	assert.Contains(t, errObj, "code")
	assert.Contains(t, errObj, "message")

	meta, ok := decoded["metadata"].(map[string]any)
	require.True(t, ok)
	assert.Contains(t, meta, "duration_ms")
	assert.Contains(t, meta, "trace_id")
	assert.Contains(t, meta, "api_version")
}

// TestMetadata_TraceIDOmitted проверяет omitempty для trace_id.
func TestMetadata_TraceIDOmitted(t *testing.T) {
	meta := &Metadata{DurationMs: 1, APIVersion: "v1"}

	raw, err := json.Marshal(meta)
	require.NoError(t, err)
	assert.NotContains(t, string(raw), "trace_id")
}
