package config

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/require"

	"github.com/polybase-io/solid/internal/log"
)

func TestLoadFillsDefaultsForUnsetFields(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "solid.toml")
	require.NoError(t, os.WriteFile(path, []byte(`self_id = "0xaa"`+"\n"), 0o644))

	f, err := Load(path)
	require.NoError(t, err)
	require.Equal(t, "0xaa", f.SelfID)
	require.Equal(t, 2*time.Second, f.RoundTimeout)
	require.Equal(t, ":7070", f.ListenAddr)
	require.Equal(t, "sha256", f.Digest)
}

func TestLoadOverridesDefaults(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "solid.toml")
	contents := `
self_id = "0xaa"
peers = ["0xaa", "0xbb", "0xcc"]
round_timeout = "500ms"
listen_addr = ":9090"
digest = "keccak256"
`
	require.NoError(t, os.WriteFile(path, []byte(contents), 0o644))

	f, err := Load(path)
	require.NoError(t, err)
	require.Equal(t, 500*time.Millisecond, f.RoundTimeout)
	require.Equal(t, ":9090", f.ListenAddr)
	require.Equal(t, "keccak256", f.Digest)
	require.Len(t, f.Peers, 3)
}

func TestLoadMissingFileErrors(t *testing.T) {
	_, err := Load(filepath.Join(t.TempDir(), "missing.toml"))
	require.Error(t, err)
}

func TestWatchRoundTimeoutFiresOnChange(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "solid.toml")
	require.NoError(t, os.WriteFile(path, []byte(`self_id = "0xaa"`+"\n"), 0o644))

	changed := make(chan time.Duration, 1)
	w, err := WatchRoundTimeout(path, 2*time.Second, log.New("test", "config-watch"), func(d time.Duration) {
		select {
		case changed <- d:
		default:
		}
	})
	if err != nil {
		t.Skipf("filesystem watch unavailable in this sandbox: %v", err)
	}
	defer w.Close()

	require.NoError(t, os.WriteFile(path, []byte(`self_id = "0xaa"
round_timeout = "750ms"
`), 0o644))

	select {
	case d := <-changed:
		require.Equal(t, 750*time.Millisecond, d)
	case <-time.After(2 * time.Second):
		t.Fatal("timed out waiting for the watcher to notice the rewrite")
	}
}
