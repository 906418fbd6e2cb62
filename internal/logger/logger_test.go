package logger

import (
	"bytes"
	"context"
	"encoding/json"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestNew_Levels(t *testing.T) {
	ctx := context.Background()
	var buf bytes.Buffer

	assert.True(t, newWithWriter(EnvLocal, &buf).Enabled(ctx, slog.LevelDebug))
	assert.True(t, newWithWriter(EnvDev, &buf).Enabled(ctx, slog.LevelDebug))
	assert.False(t, newWithWriter(EnvProd, &buf).Enabled(ctx, slog.LevelDebug))
	assert.True(t, newWithWriter(EnvProd, &buf).Enabled(ctx, slog.LevelInfo))
}

func TestMiddleware(t *testing.T) {
	tests := []struct {
		status    int
		wantLevel string
	}{
		{http.StatusOK, "INFO"},
		{http.StatusNotFound, "WARN"},
		{http.StatusInternalServerError, "ERROR"},
	}
	for _, tt := range tests {
		var buf bytes.Buffer
		log := newWithWriter(EnvProd, &buf)
		handler := Middleware(log)(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			w.WriteHeader(tt.status)
		}))

		handler.ServeHTTP(httptest.NewRecorder(), httptest.NewRequest(http.MethodGet, "/zakat", nil))

		var line map[string]interface{}
		require.NoError(t, json.Unmarshal(buf.Bytes(), &line))
		assert.Equal(t, tt.wantLevel, line["level"])
		assert.Equal(t, "http", line["component"])
		assert.Equal(t, "/zakat", line["path"])
		assert.Equal(t, float64(tt.status), line["status"])
	}
}
