package logging

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestParseLevel(t *testing.T) {
	lvl, err := ParseLevel("debug")
	require.NoError(t, err)
	assert.Equal(t, DEBUG, lvl)

	lvl, err = ParseLevel("")
	require.NoError(t, err)
	assert.Equal(t, INFO, lvl, "Пустая строка означает INFO")

	_, err = ParseLevel("verbose")
	assert.Error(t, err)
}

func TestNewLogger_WritesFile(t *testing.T) {
	dir := t.TempDir()
	SetLogDir(dir)
	defer SetLogDir("logs")

	l, err := NewLogger("chop")
	require.NoError(t, err)
	l.SetLevels(ERROR, TRACE)
	l.Debug("дерево %d срублено", 7)
	require.NoError(t, l.Close())

	files, err := filepath.Glob(filepath.Join(dir, "chop_*.log"))
	require.NoError(t, err)
	require.Len(t, files, 1)

	data, err := os.ReadFile(files[0])
	require.NoError(t, err)
	assert.Contains(t, string(data), "[DEBUG] [chop] дерево 7 срублено")
}

func TestLoggerManager_ComponentsAreCached(t *testing.T) {
	lm := GetLoggerManager()
	a := lm.MustGetLogger("test-component")
	b := lm.MustGetLogger("test-component")
	assert.Same(t, a, b, "Один компонент — один логгер")
	assert.Contains(t, lm.ListComponents(), "test-component")
	assert.NoError(t, lm.SetLogLevel("test-component", WARN, WARN))
	assert.Error(t, lm.SetLogLevel("missing", WARN, WARN))
}
