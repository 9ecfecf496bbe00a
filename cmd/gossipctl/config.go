package main

import (
	"encoding/json"
	"fmt"
	"net/netip"
	"os"

	"github.com/996BC/996.Gossip/crypto"
	"github.com/996BC/996.Gossip/utils"
)

type config struct {
	IP           string    `json:"ip"`
	Port         int       `json:"port"`
	Seeds        []string  `json:"seeds"`
	LogLevel     int       `json:"log_level"`
	DataPath     string    `json:"data_path"`
	Key          keyConfig `json:"key"`
	MetricsPort  int       `json:"metrics_port"`
	HTTPPort     int       `json:"http_port"`
	ShredVersion uint16    `json:"shred_version"`
}

type keyConfig struct {
	Type int    `json:"type"`
	Path string `json:"path"`
}

func parseConfig(cf string) (*config, error) {
	if len(cf) == 0 {
		return nil, fmt.Errorf("miss config file")
	}

	if err := utils.AccessCheck(cf); err != nil {
		return nil, err
	}

	jsonContent, err := os.ReadFile(cf)
	if err != nil {
		return nil, fmt.Errorf("read config file failed:%v", err)
	}

	conf := &config{}
	if err := json.Unmarshal(jsonContent, &conf); err != nil {
		return nil, fmt.Errorf("config parse failed:%v", err)
	}

	if err := verifyConfig(conf); err != nil {
		return nil, err
	}

	return conf, nil
}

func verifyConfig(c *config) error {
	if _, err := netip.ParseAddr(c.IP); err != nil {
		return fmt.Errorf("invalid IP:%s", c.IP)
	}

	if c.Port <= 0 || c.Port > 65535 {
		return fmt.Errorf("invalid port:%d", c.Port)
	}

	if c.LogLevel < utils.LogErrorLevel || c.LogLevel > utils.LogDebugLevel {
		return fmt.Errorf("invalid log level:%d", c.LogLevel)
	}

	// an empty data path runs the node without an archive
	if len(c.DataPath) != 0 {
		if err := utils.AccessCheck(c.DataPath); err != nil {
			return err
		}
	}

	if c.Key.Type != crypto.SealKeyType && c.Key.Type != crypto.PlainKeyType {
		return fmt.Errorf("invalid key type")
	}

	if err := utils.AccessCheck(c.Key.Path); err != nil {
		return err
	}

	if c.MetricsPort < 0 || c.MetricsPort > 65535 || c.MetricsPort == c.Port {
		return fmt.Errorf("invalid metrics port:%d", c.MetricsPort)
	}

	if c.HTTPPort < 0 || c.HTTPPort > 65535 ||
		(c.HTTPPort != 0 && (c.HTTPPort == c.Port || c.HTTPPort == c.MetricsPort)) {
		return fmt.Errorf("invalid http port:%d", c.HTTPPort)
	}

	if _, err := parseSeeds(c.Seeds); err != nil {
		return err
	}

	return nil
}

func parseSeeds(seeds []string) ([]netip.AddrPort, error) {
	var result []netip.AddrPort

	for _, seed := range seeds {
		addr, err := netip.ParseAddrPort(seed)
		if err != nil || addr.Port() == 0 {
			return nil, fmt.Errorf("invalid seed:%s", seed)
		}
		result = append(result, addr)
	}

	return result, nil
}

func restoreKey(c keyConfig) (*crypto.Keypair, error) {
	return crypto.RestoreKey(c.Type, c.Path)
}
