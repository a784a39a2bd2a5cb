package config

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/lspdaemon/lspd/internal/lspregistry"
)

func TestPath_DerivesFromUserConfigDir(t *testing.T) {
	dir := t.TempDir()
	t.Setenv("XDG_CONFIG_HOME", dir)

	path, err := Path()
	require.NoError(t, err)
	assert.Equal(t, filepath.Join(dir, "lsp-daemon", "config.toml"), path)
}

func TestWatcher_LoadsExistingFileOnStart(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "config.toml")
	require.NoError(t, os.WriteFile(path, []byte("[languages.go]\ncommand = \"gopls\"\n"), 0o644))

	reg, err := lspregistry.New("")
	require.NoError(t, err)

	var reloadErrs []error
	w, err := NewWatcher(path, reg, func(err error) { reloadErrs = append(reloadErrs, err) })
	require.NoError(t, err)
	defer w.Stop()

	require.NoError(t, w.Start())

	cfg, ok := reg.Get("go")
	require.True(t, ok)
	assert.Equal(t, "gopls", cfg.Command)
	require.Len(t, reloadErrs, 1)
	assert.NoError(t, reloadErrs[0])
}

func TestWatcher_MissingFileIsNotAnError(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "config.toml")

	reg, err := lspregistry.New("")
	require.NoError(t, err)

	w, err := NewWatcher(path, reg, nil)
	require.NoError(t, err)
	defer w.Stop()

	require.NoError(t, w.Start())
}

func TestWatcher_ReloadsOnWrite(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "config.toml")
	require.NoError(t, os.WriteFile(path, []byte("[languages.go]\ncommand = \"gopls\"\n"), 0o644))

	reg, err := lspregistry.New("")
	require.NoError(t, err)

	reloaded := make(chan struct{}, 10)
	w, err := NewWatcher(path, reg, func(error) {
		select {
		case reloaded <- struct{}{}:
		default:
		}
	})
	require.NoError(t, err)
	w.debounce = 10 * time.Millisecond
	defer w.Stop()

	require.NoError(t, w.Start())
	<-reloaded

	require.NoError(t, os.WriteFile(path, []byte("[languages.go]\ncommand = \"gopls-next\"\n"), 0o644))

	select {
	case <-reloaded:
	case <-time.After(2 * time.Second):
		t.Fatal("timed out waiting for reload")
	}

	cfg, ok := reg.Get("go")
	require.True(t, ok)
	assert.Equal(t, "gopls-next", cfg.Command)
}
