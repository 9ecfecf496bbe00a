package main

import (
	"encoding/json"
	"net/netip"
	"os"
	"path/filepath"
	"testing"

	"github.com/996BC/996.Gossip/crypto"
	"github.com/996BC/996.Gossip/serialize/crds"
	"github.com/996BC/996.Gossip/utils"
	"github.com/stretchr/testify/require"
)

func validConfig(t *testing.T) *config {
	dir := t.TempDir()
	return &config{
		IP:          "127.0.0.1",
		Port:        8001,
		Seeds:       []string{"10.0.0.1:8001", "[2001:db8::1]:8001"},
		LogLevel:    utils.LogInfoLevel,
		DataPath:    dir,
		Key:         keyConfig{Type: crypto.PlainKeyType, Path: dir},
		MetricsPort: 9100,
		HTTPPort:    23666,
	}
}

func TestVerifyConfig(t *testing.T) {
	require.NoError(t, verifyConfig(validConfig(t)))

	tests := []struct {
		name   string
		modify func(c *config)
	}{
		{"bad ip", func(c *config) { c.IP = "localhost" }},
		{"zero port", func(c *config) { c.Port = 0 }},
		{"large port", func(c *config) { c.Port = 65536 }},
		{"log level", func(c *config) { c.LogLevel = utils.LogDebugLevel + 1 }},
		{"missing data path", func(c *config) { c.DataPath = filepath.Join(c.DataPath, "missing") }},
		{"key type", func(c *config) { c.Key.Type = 3 }},
		{"missing key path", func(c *config) { c.Key.Path = filepath.Join(c.Key.Path, "missing") }},
		{"metrics on gossip port", func(c *config) { c.MetricsPort = c.Port }},
		{"http on metrics port", func(c *config) { c.HTTPPort = c.MetricsPort }},
		{"negative http port", func(c *config) { c.HTTPPort = -1 }},
		{"seed without port", func(c *config) { c.Seeds = []string{"10.0.0.1"} }},
		{"seed with zero port", func(c *config) { c.Seeds = []string{"10.0.0.1:0"} }},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			c := validConfig(t)
			tt.modify(c)
			require.Error(t, verifyConfig(c))
		})
	}

	// the archive and both http endpoints are optional
	c := validConfig(t)
	c.DataPath = ""
	c.MetricsPort = 0
	c.HTTPPort = 0
	require.NoError(t, verifyConfig(c))
}

func TestParseConfig(t *testing.T) {
	c := validConfig(t)
	content, err := json.Marshal(map[string]interface{}{
		"ip":            c.IP,
		"port":          c.Port,
		"seeds":         c.Seeds,
		"log_level":     c.LogLevel,
		"data_path":     c.DataPath,
		"key":           map[string]interface{}{"type": c.Key.Type, "path": c.Key.Path},
		"metrics_port":  c.MetricsPort,
		"http_port":     c.HTTPPort,
		"shred_version": 4711,
	})
	require.NoError(t, err)

	cf := filepath.Join(t.TempDir(), "gossip.json")
	require.NoError(t, os.WriteFile(cf, content, 0600))

	parsed, err := parseConfig(cf)
	require.NoError(t, err)
	require.Equal(t, uint16(4711), parsed.ShredVersion)
	require.Equal(t, c.Seeds, parsed.Seeds)

	_, err = parseConfig("")
	require.Error(t, err)
	_, err = parseConfig(filepath.Join(t.TempDir(), "missing.json"))
	require.Error(t, err)
}

func TestParseSeeds(t *testing.T) {
	seeds, err := parseSeeds([]string{"10.0.0.1:8001", "[2001:db8::1]:8002"})
	require.NoError(t, err)
	require.Equal(t, []netip.AddrPort{
		netip.MustParseAddrPort("10.0.0.1:8001"),
		netip.MustParseAddrPort("[2001:db8::1]:8002"),
	}, seeds)

	seeds, err = parseSeeds(nil)
	require.NoError(t, err)
	require.Empty(t, seeds)
}

func TestSelfRecords(t *testing.T) {
	kp, err := crypto.NewKeypair()
	require.NoError(t, err)
	instance, err := crds.NewNodeInstance(kp.Pubkey(), utils.Timestamp())
	require.NoError(t, err)
	addr := netip.MustParseAddrPort("10.0.0.1:8001")

	values, err := selfRecords(kp, addr, 7, instance)
	require.NoError(t, err)
	require.Len(t, values, 2)
	for _, v := range values {
		require.True(t, v.VerifySelf())
		require.NoError(t, v.Sanitize())
	}

	contact := values[0].Data.(*crds.LegacyContactInfo)
	require.Equal(t, addr, contact.Gossip)
	require.Equal(t, uint16(7), contact.ShredVersion)
	require.Equal(t, instance.Token, values[1].Data.(*crds.NodeInstance).Token)
}
