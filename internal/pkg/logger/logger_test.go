package logger

import (
	"context"
	"net/http"
	"net/http/httptest"
	"path/filepath"
	"testing"

	"github.com/gin-gonic/gin"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"
	"go.uber.org/zap/zaptest/observer"
)

func TestNew(t *testing.T) {
	dir := t.TempDir()

	tests := []struct {
		name    string
		config  *Config
		wantErr bool
	}{
		{name: "default config", config: DefaultConfig()},
		{name: "console format", config: &Config{Level: "debug", Format: "console", Output: "console"}},
		{
			name: "file output",
			config: &Config{
				Level: "info", Format: "json", Output: "file",
				File: FileConfig{Filename: filepath.Join(dir, "a.log"), MaxSize: 10, MaxAge: 7, MaxBackups: 3},
			},
		},
		{
			name: "both output",
			config: &Config{
				Level: "warn", Format: "json", Output: "both",
				File: FileConfig{Filename: filepath.Join(dir, "b.log"), MaxSize: 10, MaxAge: 7},
			},
		},
		{name: "invalid level", config: &Config{Level: "loud", Format: "json", Output: "console"}, wantErr: true},
		{name: "invalid format", config: &Config{Level: "info", Format: "xml", Output: "console"}, wantErr: true},
		{name: "invalid output", config: &Config{Level: "info", Format: "json", Output: "syslog"}, wantErr: true},
		{name: "file without filename", config: &Config{Level: "info", Format: "json", Output: "file"}, wantErr: true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			l, err := New(tt.config)
			if tt.wantErr {
				assert.Error(t, err)
				return
			}
			require.NoError(t, err)
			require.NotNil(t, l)
			l.Info("ready")
			_ = l.Sync()
		})
	}
}

func TestWithContextAddsIDs(t *testing.T) {
	core, logs := observer.New(zapcore.DebugLevel)
	l := NewFromZap(zap.New(core))

	ctx := WithRunID(WithRequestID(context.Background(), "req-1"), "run-9")
	l.WithContext(ctx).Info("research started")

	require.Equal(t, 1, logs.Len())
	fields := logs.All()[0].ContextMap()
	assert.Equal(t, "req-1", fields["request_id"])
	assert.Equal(t, "run-9", fields["run_id"])
	assert.Equal(t, "req-1", GetRequestID(ctx))
	assert.Equal(t, "run-9", GetRunID(ctx))
}

func TestFromContextPrefersStoredLogger(t *testing.T) {
	core, logs := observer.New(zapcore.InfoLevel)
	l := NewFromZap(zap.New(core))

	ctx := ToContext(WithRequestID(context.Background(), "abc"), l)
	FromContext(ctx).Info("hello")

	require.Equal(t, 1, logs.Len())
	assert.Equal(t, "abc", logs.All()[0].ContextMap()["request_id"])
}

func TestOrGlobal(t *testing.T) {
	nop := NewNop()
	assert.Same(t, nop, OrGlobal(nop))
	assert.NotNil(t, OrGlobal(nil))
}

func TestGinLoggerSetsRequestID(t *testing.T) {
	gin.SetMode(gin.TestMode)
	core, logs := observer.New(zapcore.InfoLevel)
	l := NewFromZap(zap.New(core))

	r := gin.New()
	r.Use(GinLogger(l), GinRecovery(l))
	r.GET("/ping", func(c *gin.Context) { c.String(http.StatusOK, GetRequestID(c.Request.Context())) })
	r.GET("/health", func(c *gin.Context) { c.Status(http.StatusOK) })
	r.GET("/panic", func(c *gin.Context) { panic("boom") })

	w := httptest.NewRecorder()
	req := httptest.NewRequest(http.MethodGet, "/ping", nil)
	req.Header.Set("X-Request-ID", "given-id")
	r.ServeHTTP(w, req)
	assert.Equal(t, "given-id", w.Body.String())
	assert.Equal(t, "given-id", w.Header().Get("X-Request-ID"))

	w = httptest.NewRecorder()
	r.ServeHTTP(w, httptest.NewRequest(http.MethodGet, "/health", nil))
	assert.NotEmpty(t, w.Header().Get("X-Request-ID"))

	w = httptest.NewRecorder()
	r.ServeHTTP(w, httptest.NewRequest(http.MethodGet, "/panic", nil))
	assert.Equal(t, http.StatusInternalServerError, w.Code)

	assert.Equal(t, 1, logs.FilterMessage("HTTP Request").FilterField(zap.String("path", "/ping")).Len())
	assert.Equal(t, 0, logs.FilterField(zap.String("path", "/health")).Len())
	assert.Equal(t, 1, logs.FilterMessage("Panic recovered").Len())
}
