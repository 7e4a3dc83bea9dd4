package config

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"contract_gate/internal/dataType"

	"github.com/ethereum/go-ethereum/common"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func writeFile(t *testing.T, path, content string) {
	t.Helper()
	require.NoError(t, os.MkdirAll(filepath.Dir(path), 0o755))
	require.NoError(t, os.WriteFile(path, []byte(content), 0o644))
}

func TestLoadMainConfig(t *testing.T) {
	base := t.TempDir()
	writeFile(t, filepath.Join(base, "config", "gate.yml"), `
node_name: validator-1
rpc_listen: "127.0.0.1:9000"
rule_path: rules
log_level: debug
p2p:
  listen_addrs: ["/ip4/127.0.0.1/tcp/4001"]
  bootstrap_peers: []
  send_timeout: 2s
`)

	cfg, err := LoadMainConfig(base)
	require.NoError(t, err)
	assert.Equal(t, "validator-1", cfg.NodeName)
	assert.Equal(t, "127.0.0.1:9000", cfg.RPCListen)
	assert.Equal(t, filepath.Join(base, "rules"), cfg.RulePath)
	assert.Equal(t, filepath.Join(base, "log"), cfg.LogPath, "unset fields keep defaults")
	assert.Equal(t, "debug", cfg.LogLevel)
	assert.Equal(t, []string{"/ip4/127.0.0.1/tcp/4001"}, cfg.P2P.ListenAddrs)
	assert.Equal(t, 2*time.Second, cfg.P2P.SendTimeout)
	assert.Equal(t, dataType.DefaultPeerCacheBuckets, cfg.P2P.CacheBuckets)

	rate, err := cfg.P2P.Rate()
	require.NoError(t, err)
	assert.Equal(t, int64(60), rate.Limit)
	assert.Equal(t, time.Minute, rate.Window)
}

func TestLoadMainConfig_MissingFileReturnsDefaults(t *testing.T) {
	base := t.TempDir()
	cfg, err := LoadMainConfig(base)
	require.Error(t, err)
	require.NotNil(t, cfg)
	assert.Equal(t, filepath.Join(base, "config", "rules"), cfg.RulePath)
	assert.NoError(t, cfg.Validate(), "defaults are valid")
}

func TestLoadMainConfig_Invalid(t *testing.T) {
	cases := map[string]string{
		"bad level":    "log_level: loud\n",
		"bad listen":   "rpc_listen: nope\n",
		"no p2p addrs": "p2p:\n  listen_addrs: []\n",
		"zero timeout": "p2p:\n  send_timeout: 0s\n",
		"zero buckets": "p2p:\n  cache_buckets: 0\n",
		"not yaml":     "node_name: [unterminated\n",
		"bad rate":     "p2p:\n  inbound_rate: fast\n",
	}
	for name, body := range cases {
		t.Run(name, func(t *testing.T) {
			base := t.TempDir()
			writeFile(t, filepath.Join(base, "config", "gate.yml"), body)
			_, err := LoadMainConfig(base)
			assert.Error(t, err)
		})
	}
}

func TestLoadPolicy(t *testing.T) {
	dir := t.TempDir()
	writeFile(t, filepath.Join(dir, "Contract_AllowList.conf"), `
# genesis allow list
0xaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaa
  0xBBBBBBBBBBBBBBBBBBBBBBBBBBBBBBBBBBBBBBBB   # trailing comment

`)

	p, err := LoadPolicy(dir)
	require.NoError(t, err)
	assert.Equal(t, []common.Address{
		common.HexToAddress("0xaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaa"),
		common.HexToAddress("0xbbbbbbbbbbbbbbbbbbbbbbbbbbbbbbbbbbbbbbbb"),
	}, p.Whitelist)
	assert.Empty(t, p.Blacklist, "missing block list file is an empty list")
}

func TestLoadPolicy_BadLine(t *testing.T) {
	dir := t.TempDir()
	writeFile(t, filepath.Join(dir, "Contract_BlockList.conf"), "0xcccccccccccccccccccccccccccccccccccccccc\nnot-an-address\n")

	_, err := LoadPolicy(dir)
	require.Error(t, err)
	assert.ErrorIs(t, err, dataType.ErrInvalidAddress)
	assert.Contains(t, err.Error(), "Contract_BlockList.conf:2")
}
