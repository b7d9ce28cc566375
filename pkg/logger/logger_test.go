package logger

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap/zapcore"
)

func TestNew_WritesRotatedFile(t *testing.T) {
	path := filepath.Join(t.TempDir(), "service.log")

	log := New("production", FileOptions{Path: path, MaxSizeMB: 1, MaxBackups: 1, MaxAgeDays: 1})
	log.Info("hello from test")
	_ = log.Sync()

	data, err := os.ReadFile(path)
	require.NoError(t, err)
	assert.Contains(t, string(data), "hello from test")
}

func TestNew_DevelopmentEnablesDebug(t *testing.T) {
	log := New("local", FileOptions{})
	assert.NotNil(t, log.Check(zapcore.DebugLevel, "debug entry"))

	prod := New("production", FileOptions{})
	assert.Nil(t, prod.Check(zapcore.DebugLevel, "debug entry"))
}
