package config

import (
	"os"
	"path/filepath"
	"strconv"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/coffersTech/logwindow/internal/ring"
)

func TestLoadDefaults(t *testing.T) {
	t.Chdir(t.TempDir())
	t.Setenv("HOME", t.TempDir())

	v, err := NewViper("")
	require.NoError(t, err)
	cfg, err := Load(v)
	require.NoError(t, err)

	assert.Equal(t, 1000, cfg.Buffer.Size)
	assert.Equal(t, ":8088", cfg.HTTP.Addr)
	assert.Empty(t, cfg.HTTP.TokenHash)
	assert.Equal(t, "info", cfg.Log.Level)
	assert.Equal(t, "json", cfg.Log.Format)
	assert.Equal(t, "debug", cfg.Capture.Level)
	assert.Equal(t, time.Second, cfg.Stats.Interval)
}

func TestLoadEnvOverrides(t *testing.T) {
	t.Chdir(t.TempDir())
	t.Setenv("LOGWINDOW_BUFFER_SIZE", "250")
	t.Setenv("LOGWINDOW_HTTP_ADDR", "127.0.0.1:9000")
	t.Setenv("LOGWINDOW_HOST", "node-a")
	t.Setenv("LOGWINDOW_STATS_INTERVAL", "5s")

	v, err := NewViper("")
	require.NoError(t, err)
	cfg, err := Load(v)
	require.NoError(t, err)

	assert.Equal(t, 250, cfg.Buffer.Size)
	assert.Equal(t, "127.0.0.1:9000", cfg.HTTP.Addr)
	assert.Equal(t, "node-a", cfg.Host)
	assert.Equal(t, 5*time.Second, cfg.Stats.Interval)
}

func TestLoadFile(t *testing.T) {
	path := filepath.Join(t.TempDir(), "cfg.yaml")
	data := []byte("buffer:\n  size: 42\nlog:\n  level: debug\n  format: console\n")
	require.NoError(t, os.WriteFile(path, data, 0644))

	v, err := NewViper(path)
	require.NoError(t, err)
	cfg, err := Load(v)
	require.NoError(t, err)

	assert.Equal(t, 42, cfg.Buffer.Size)
	assert.Equal(t, "debug", cfg.Log.Level)
	assert.Equal(t, "console", cfg.Log.Format)
}

func TestLoadMissingExplicitFile(t *testing.T) {
	_, err := NewViper(filepath.Join(t.TempDir(), "missing.yaml"))
	assert.Error(t, err)
}

func TestValidateRejectsNonPositiveSize(t *testing.T) {
	for _, size := range []int{0, -1} {
		t.Run(strconv.Itoa(size), func(t *testing.T) {
			t.Chdir(t.TempDir())
			t.Setenv("LOGWINDOW_BUFFER_SIZE", strconv.Itoa(size))

			v, err := NewViper("")
			require.NoError(t, err)
			_, err = Load(v)
			assert.ErrorIs(t, err, ring.ErrInvalidConfiguration)
		})
	}
}

func TestValidateRejectsNonPositiveInterval(t *testing.T) {
	cfg := Config{Buffer: BufferConfig{Size: 1}}
	assert.ErrorIs(t, cfg.Validate(), ring.ErrInvalidConfiguration)
}
