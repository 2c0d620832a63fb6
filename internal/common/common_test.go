package common

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"log/slog"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestLoadConfig_Defaults(t *testing.T) {
	for _, k := range []string{"DB_DRIVER", "DB_URL", "SCORER_WINDOW_SIZE", "SCORER_THRESHOLD", "SCORER_BUDGET", "ORACLE_ATTEMPTS", "OCR_ENABLED", "REDIS_ADDR"} {
		t.Setenv(k, "")
	}
	cfg := LoadConfig()

	assert.Equal(t, "postgres", cfg.Database.Driver)
	assert.Empty(t, cfg.Database.DSN)
	assert.Equal(t, 5000, cfg.Scorer.WindowSize)
	assert.Equal(t, 2, cfg.Scorer.Threshold)
	assert.Equal(t, 30000, cfg.Scorer.Budget)
	assert.Equal(t, 1000, cfg.Scorer.MinLength)
	assert.Equal(t, 30000, cfg.Scorer.FallbackSize)
	assert.Equal(t, 2, cfg.Oracle.Attempts)
	assert.False(t, cfg.Acquire.OCR.Enabled)
	assert.Empty(t, cfg.Cache.RedisAddr)
}

func TestLoadConfig_Overrides(t *testing.T) {
	t.Setenv("DB_DRIVER", "sqlite")
	t.Setenv("DB_URL", "file:test.db")
	t.Setenv("SCORER_WINDOW_SIZE", "2000")
	t.Setenv("ORACLE_BACKOFF", "250ms")
	t.Setenv("OCR_ENABLED", "true")
	t.Setenv("ORACLE_RPS", "3.5")
	t.Setenv("DB_MAX_CONNS", "not-a-number")

	cfg := LoadConfig()
	assert.Equal(t, "sqlite", cfg.Database.Driver)
	assert.Equal(t, "file:test.db", cfg.Database.DSN)
	assert.Equal(t, 2000, cfg.Scorer.WindowSize)
	assert.Equal(t, 250*time.Millisecond, cfg.Oracle.Backoff)
	assert.True(t, cfg.Acquire.OCR.Enabled)
	assert.InDelta(t, 3.5, cfg.Oracle.RequestsPerSecond, 1e-9)
	assert.Equal(t, int32(20), cfg.Database.MaxConns, "unparsable values fall back to the default")
}

func TestConfig_Validate(t *testing.T) {
	t.Setenv("DB_DRIVER", "sqlite")
	t.Setenv("DB_URL", "file:test.db")
	cfg := LoadConfig()
	require.NoError(t, cfg.Validate())

	cfg.Database.DSN = ""
	cfg.Database.Driver = "mysql"
	cfg.Scorer.Budget = 0
	err := cfg.Validate()
	require.Error(t, err)
	assert.ErrorIs(t, err, ErrInvalidInput)
	assert.Equal(t, "CONFIG_ERROR", ErrorCode(err))
	assert.Contains(t, err.Error(), "DB_URL")
	assert.Contains(t, err.Error(), "must be one of postgres, sqlite")
	assert.Contains(t, err.Error(), "SCORER_BUDGET")
}

func TestConfig_ValidateOracleAndServer(t *testing.T) {
	cfg := LoadConfig()
	cfg.LLM.APIKey = ""
	err := cfg.ValidateOracle()
	require.Error(t, err)
	assert.Contains(t, err.Error(), "OPENAI_API_KEY")

	cfg.LLM.APIKey = "sk-test"
	assert.NoError(t, cfg.ValidateOracle())

	cfg.Server.GRPCAddr = ""
	assert.ErrorIs(t, cfg.ValidateServer(), ErrInvalidInput)
	cfg.Server.GRPCAddr = ":0"
	assert.NoError(t, cfg.ValidateServer())
}

func TestErrorTaxonomy(t *testing.T) {
	cause := errors.New("connection reset")
	cases := []struct {
		err  error
		kind error
		code string
	}{
		{AcquisitionError("fetch", cause), ErrAcquisition, CodeAcquisition},
		{DecodeError("pdf", cause), ErrDecode, CodeDecode},
		{OracleError("call", nil), ErrOracle, CodeOracle},
		{PersistenceError("upsert", cause), ErrPersistence, CodePersistence},
	}
	for _, tc := range cases {
		t.Run(tc.code, func(t *testing.T) {
			wrapped := fmt.Errorf("project p1: %w", tc.err)
			assert.ErrorIs(t, wrapped, tc.kind)
			assert.Equal(t, tc.code, ErrorCode(wrapped))
			if tc.kind != ErrOracle {
				assert.ErrorIs(t, wrapped, cause)
			}
		})
	}
	assert.Empty(t, ErrorCode(cause))
	assert.NoError(t, WrapError(nil, "ignored"))
	assert.EqualError(t, WrapError(cause, "dial"), "dial: connection reset")
}

func TestValidator(t *testing.T) {
	v := NewValidator()
	v.Field("name", "  ", Required).
		Field("title", "abcdef", MaxLength(3)).
		Field("count", 0, Positive).
		Field("kind", "", OneOf("a", "b"))
	require.True(t, v.HasErrors())
	assert.Len(t, v.Errors(), 3)
	assert.ErrorIs(t, v.Error(), ErrValidation)

	assert.NoError(t, NewValidator().Field("name", "ok", Required, MaxLength(5)).Error())
}

func TestContextValues(t *testing.T) {
	ctx := context.Background()
	assert.Empty(t, RequestIDFromContext(ctx))
	assert.Empty(t, ProjectIDFromContext(ctx))

	ctx = WithProjectID(WithRequestID(ctx, "req-1"), "p1")
	assert.Equal(t, "req-1", RequestIDFromContext(ctx))
	assert.Equal(t, "p1", ProjectIDFromContext(ctx))
}

func TestNewLogger(t *testing.T) {
	var buf bytes.Buffer
	logger := NewLogger(&buf, LogConfig{Level: "warn", Format: "json"})
	logger.Info("hidden")
	logger.Warn("shown", "project_id", "p1")
	assert.NotContains(t, buf.String(), "hidden")
	assert.Contains(t, buf.String(), `"project_id":"p1"`)

	buf.Reset()
	NewLogger(&buf, LogConfig{Level: "debug"}).Debug("text line")
	assert.Contains(t, buf.String(), "msg=\"text line\"")
	assert.NotContains(t, buf.String(), "time=")

	assert.Equal(t, slog.LevelInfo, ParseLevel("bogus"))
	assert.Equal(t, slog.LevelWarn, ParseLevel("WARNING"))
}
