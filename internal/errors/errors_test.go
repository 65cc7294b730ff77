package errors

import (
	"encoding/json"
	"fmt"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestAPIError(t *testing.T) {
	t.Run("implements error", func(t *testing.T) {
		err := New(http.StatusBadRequest, "INVALID_REQUEST", "bad input")
		assert.Equal(t, "bad input", err.Error())
		assert.Equal(t, http.StatusBadRequest, err.StatusCode)
	})

	t.Run("details round trip json", func(t *testing.T) {
		err := ErrValidation("period", "must be yyyymm")
		data, marshalErr := json.Marshal(err)
		require.NoError(t, marshalErr)
		assert.Contains(t, string(data), `"field":"period"`)
	})
}

func TestAppError(t *testing.T) {
	t.Run("formats type and cause", func(t *testing.T) {
		cause := fmt.Errorf("connection refused")
		err := NewNetworkError("ftp dial failed", cause)
		assert.Equal(t, "[NETWORK] ftp dial failed: connection refused", err.Error())
		assert.Equal(t, cause, err.Unwrap())
	})

	t.Run("without cause", func(t *testing.T) {
		err := NewNotFoundError("period 2024-01")
		assert.Equal(t, "[NOT_FOUND] period 2024-01 not found", err.Error())
		assert.Nil(t, err.Unwrap())
	})

	t.Run("context accumulates", func(t *testing.T) {
		err := NewStorageError("insert failed", nil).
			WithContext("period", "2024-01").
			WithContext("table", "aggregate_rows")
		assert.Equal(t, "2024-01", err.Context["period"])
		assert.Equal(t, "aggregate_rows", err.Context["table"])
	})
}

func TestProblemDetails(t *testing.T) {
	t.Run("marshals extensions inline", func(t *testing.T) {
		pd := NewProblemDetails(http.StatusNotFound, TypePeriodNotFound, "Not Found", "no data", "/api/aggregates").
			WithExtension("period", "2024-01")

		data, err := json.Marshal(pd)
		require.NoError(t, err)

		var decoded map[string]interface{}
		require.NoError(t, json.Unmarshal(data, &decoded))
		assert.Equal(t, TypePeriodNotFound, decoded["type"])
		assert.Equal(t, float64(http.StatusNotFound), decoded["status"])
		assert.Equal(t, "2024-01", decoded["period"])
	})

	t.Run("render sets problem content type", func(t *testing.T) {
		pd := NewProblemDetails(http.StatusBadRequest, TypeValidation, "Bad Request", "", "/x")
		w := httptest.NewRecorder()
		r := httptest.NewRequest(http.MethodGet, "/x", nil)
		require.NoError(t, pd.Render(w, r))
		assert.Equal(t, "application/problem+json", w.Header().Get("Content-Type"))
	})
}
