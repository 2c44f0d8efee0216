package app

import (
	"bytes"
	"context"
	"io"
	"log/slog"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/joseph-ayodele/invoice-reconciler/internal/common"
)

func TestParseLevel(t *testing.T) {
	assert.Equal(t, slog.LevelDebug, ParseLevel("DEBUG"))
	assert.Equal(t, slog.LevelWarn, ParseLevel("warning"))
	assert.Equal(t, slog.LevelError, ParseLevel("error"))
	assert.Equal(t, slog.LevelInfo, ParseLevel("loud"))
}

func TestNewLoggerJSON(t *testing.T) {
	prev := slog.Default()
	defer slog.SetDefault(prev)

	var buf bytes.Buffer
	logger := NewLogger(&buf, "warn", true)
	logger.Info("hidden")
	logger.Warn("shown", "path", "/a")
	assert.NotContains(t, buf.String(), "hidden")
	assert.Contains(t, buf.String(), `"msg":"shown"`)
}

func TestOpenDB(t *testing.T) {
	quiet := slog.New(slog.NewTextHandler(io.Discard, nil))
	db, err := OpenDB(context.Background(), common.DatabaseConfig{}, quiet)
	require.NoError(t, err)
	assert.Nil(t, db)

	db, err = OpenDB(context.Background(), common.DatabaseConfig{DSN: filepath.Join(t.TempDir(), "runs.db")}, quiet)
	require.NoError(t, err)
	require.NotNil(t, db)
	defer db.Close()
	assert.Equal(t, "sqlite3", db.Dialect())
}
