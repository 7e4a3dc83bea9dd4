package p2p

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestLoadOrCreateIdentity_Persists(t *testing.T) {
	path := filepath.Join(t.TempDir(), "keys", "node.key")

	first, err := LoadOrCreateIdentity(path)
	require.NoError(t, err)
	info, err := os.Stat(path)
	require.NoError(t, err)
	assert.Equal(t, os.FileMode(0o600), info.Mode().Perm())

	second, err := LoadOrCreateIdentity(path)
	require.NoError(t, err)
	assert.True(t, first.Equals(second), "reloaded key must match the generated one")
}

func TestLoadOrCreateIdentity_Ephemeral(t *testing.T) {
	a, err := LoadOrCreateIdentity("")
	require.NoError(t, err)
	b, err := LoadOrCreateIdentity("")
	require.NoError(t, err)
	assert.False(t, a.Equals(b))
}

func TestLoadOrCreateIdentity_Corrupt(t *testing.T) {
	path := filepath.Join(t.TempDir(), "node.key")
	require.NoError(t, os.WriteFile(path, []byte("garbage"), 0o600))
	_, err := LoadOrCreateIdentity(path)
	assert.Error(t, err)
}

func TestNewHost_Listens(t *testing.T) {
	h, err := NewHost(HostConfig{ListenAddrs: []string{"/ip4/127.0.0.1/tcp/0"}})
	require.NoError(t, err)
	defer h.Close()
	assert.NotEmpty(t, h.Addrs())
}
