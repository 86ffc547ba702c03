package logging

import (
	"context"
	"log/slog"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestInitAndAccessors(t *testing.T) {
	Init()

	require.NotNil(t, Structured())
	require.NotNil(t, HumanReadable())
	require.NotNil(t, ForService("matcher"))

	SetLevel(slog.LevelWarn)
	assert.False(t, Structured().Enabled(context.Background(), slog.LevelDebug))
	assert.True(t, Structured().Enabled(context.Background(), slog.LevelWarn))
}

func TestNewFileLogger(t *testing.T) {
	path := filepath.Join(t.TempDir(), "logs", "svc.log")

	logger, closeFn, err := NewFileLogger(path, "svc", slog.LevelDebug)
	require.NoError(t, err)
	logger.Info("service started")
	require.NoError(t, closeFn())

	data, err := os.ReadFile(path)
	require.NoError(t, err)
	assert.Contains(t, string(data), `"service":"svc"`)
	assert.Contains(t, string(data), "service started")
}
