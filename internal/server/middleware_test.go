// Copyright 2025 Oliver Andrich
// Licensed under the EUPL-1.2

package server

import (
	"bytes"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"codeberg.org/oliverandrich/certissuer/internal/config"
	"github.com/labstack/echo/v4"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func testConfig() *config.Config {
	return &config.Config{
		Server: config.ServerConfig{
			Host:        "localhost",
			Port:        8000,
			MaxBodySize: 1,
			CORSOrigins: []string{"https://issuer.example"},
		},
	}
}

func newMiddlewareEcho(cfg *config.Config) *echo.Echo {
	e := echo.New()
	e.HTTPErrorHandler = errorHandler
	setupMiddleware(e, cfg)
	e.POST("/echo", func(c echo.Context) error {
		return c.String(http.StatusOK, "ok")
	})
	e.GET("/panic", func(echo.Context) error {
		panic("boom")
	})
	return e
}

func TestSetupMiddleware_RequestID(t *testing.T) {
	e := newMiddlewareEcho(testConfig())

	req := httptest.NewRequest(http.MethodPost, "/echo", nil)
	rec := httptest.NewRecorder()
	e.ServeHTTP(rec, req)

	assert.Equal(t, http.StatusOK, rec.Code)
	assert.NotEmpty(t, rec.Header().Get(echo.HeaderXRequestID))
}

func TestSetupMiddleware_SecureHeaders(t *testing.T) {
	e := newMiddlewareEcho(testConfig())

	req := httptest.NewRequest(http.MethodPost, "/echo", nil)
	rec := httptest.NewRecorder()
	e.ServeHTTP(rec, req)

	assert.Equal(t, "nosniff", rec.Header().Get("X-Content-Type-Options"))
	assert.Equal(t, "SAMEORIGIN", rec.Header().Get("X-Frame-Options"))
}

func TestSetupMiddleware_CORS(t *testing.T) {
	e := newMiddlewareEcho(testConfig())

	t.Run("allowed origin", func(t *testing.T) {
		req := httptest.NewRequest(http.MethodOptions, "/echo", nil)
		req.Header.Set(echo.HeaderOrigin, "https://issuer.example")
		req.Header.Set(echo.HeaderAccessControlRequestMethod, http.MethodPost)
		rec := httptest.NewRecorder()
		e.ServeHTTP(rec, req)

		assert.Equal(t, http.StatusNoContent, rec.Code)
		assert.Equal(t, "https://issuer.example", rec.Header().Get(echo.HeaderAccessControlAllowOrigin))
	})

	t.Run("other origin", func(t *testing.T) {
		req := httptest.NewRequest(http.MethodPost, "/echo", nil)
		req.Header.Set(echo.HeaderOrigin, "https://evil.example")
		rec := httptest.NewRecorder()
		e.ServeHTTP(rec, req)

		assert.Empty(t, rec.Header().Get(echo.HeaderAccessControlAllowOrigin))
	})
}

func TestCorsMiddleware_DefaultsToAnyOrigin(t *testing.T) {
	cfg := testConfig()
	cfg.Server.CORSOrigins = nil
	e := newMiddlewareEcho(cfg)

	req := httptest.NewRequest(http.MethodPost, "/echo", nil)
	req.Header.Set(echo.HeaderOrigin, "https://anywhere.example")
	rec := httptest.NewRecorder()
	e.ServeHTTP(rec, req)

	assert.Equal(t, "*", rec.Header().Get(echo.HeaderAccessControlAllowOrigin))
}

func TestSetupMiddleware_BodyLimit(t *testing.T) {
	e := newMiddlewareEcho(testConfig())

	body := strings.Repeat("a", 2*1024*1024)
	req := httptest.NewRequest(http.MethodPost, "/echo", strings.NewReader(body))
	rec := httptest.NewRecorder()
	e.ServeHTTP(rec, req)

	assert.Equal(t, http.StatusRequestEntityTooLarge, rec.Code)
	assert.Contains(t, rec.Body.String(), `"status":"FAILED"`)
}

func TestSetupMiddleware_RecoversPanics(t *testing.T) {
	e := newMiddlewareEcho(testConfig())

	req := httptest.NewRequest(http.MethodGet, "/panic", nil)
	rec := httptest.NewRecorder()
	e.ServeHTTP(rec, req)

	assert.Equal(t, http.StatusInternalServerError, rec.Code)
	assert.JSONEq(t, `{"status":"FAILED","message":"Internal Server Error"}`, rec.Body.String())
}

func TestErrorHandler_NotFound(t *testing.T) {
	e := newMiddlewareEcho(testConfig())

	req := httptest.NewRequest(http.MethodGet, "/missing", nil)
	rec := httptest.NewRecorder()
	e.ServeHTTP(rec, req)

	assert.Equal(t, http.StatusNotFound, rec.Code)
	assert.JSONEq(t, `{"status":"FAILED","message":"Not Found"}`, rec.Body.String())
}

func TestErrorHandler_Head(t *testing.T) {
	e := newMiddlewareEcho(testConfig())

	req := httptest.NewRequest(http.MethodHead, "/missing", nil)
	rec := httptest.NewRecorder()
	e.ServeHTTP(rec, req)

	assert.Equal(t, http.StatusNotFound, rec.Code)
	assert.Empty(t, rec.Body.String())
}

func TestNewLogger(t *testing.T) {
	tests := []struct {
		level    string
		enabled  slog.Level
		disabled slog.Level
	}{
		{"debug", slog.LevelDebug, slog.LevelDebug - 1},
		{"info", slog.LevelInfo, slog.LevelDebug},
		{"warn", slog.LevelWarn, slog.LevelInfo},
		{"error", slog.LevelError, slog.LevelWarn},
		{"bogus", slog.LevelInfo, slog.LevelDebug},
	}

	for _, tt := range tests {
		t.Run(tt.level, func(t *testing.T) {
			logger := newLogger(&bytes.Buffer{}, tt.level, "text")
			assert.True(t, logger.Enabled(t.Context(), tt.enabled))
			assert.False(t, logger.Enabled(t.Context(), tt.disabled))
		})
	}
}

func TestNewLogger_JSON(t *testing.T) {
	var buf bytes.Buffer
	logger := newLogger(&buf, "info", "json")

	logger.Info("signup_success", "email", "jane@acme.com")

	require.True(t, strings.HasPrefix(buf.String(), "{"))
	assert.Contains(t, buf.String(), `"msg":"signup_success"`)
}

func TestNewLogger_Text(t *testing.T) {
	var buf bytes.Buffer
	logger := newLogger(&buf, "info", "text")

	logger.Info("signup_success", "email", "jane@acme.com")

	assert.Contains(t, buf.String(), "signup_success")
	assert.Contains(t, buf.String(), "email=jane@acme.com")
}

func TestRequestLogger_SkipsProbes(t *testing.T) {
	var buf bytes.Buffer
	prev := slog.Default()
	slog.SetDefault(newLogger(&buf, "info", "json"))
	t.Cleanup(func() { slog.SetDefault(prev) })

	e := echo.New()
	e.Use(requestLogger())
	ok := func(c echo.Context) error { return c.String(http.StatusOK, "ok") }
	e.GET("/health", ok)
	e.GET("/api/certificates/:number", ok)

	for _, path := range []string{"/health", "/api/certificates/CERT-001"} {
		e.ServeHTTP(httptest.NewRecorder(), httptest.NewRequest(http.MethodGet, path, nil))
	}

	assert.NotContains(t, buf.String(), `"uri":"/health"`)
	assert.Contains(t, buf.String(), `"uri":"/api/certificates/CERT-001"`)
}
