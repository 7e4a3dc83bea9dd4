package config

import (
	"bufio"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"time"

	"contract_gate/internal/dataType"
	"contract_gate/internal/utils"

	"github.com/ethereum/go-ethereum/common"
	"github.com/go-playground/validator/v10"
	"gopkg.in/yaml.v3"
)

type P2PConfig struct {
	ListenAddrs    []string      `yaml:"listen_addrs" validate:"min=1,dive,required"`
	BootstrapPeers []string      `yaml:"bootstrap_peers" validate:"dive,required"`
	IdentityKey    string        `yaml:"identity_key"`
	SendTimeout    time.Duration `yaml:"send_timeout" validate:"gt=0"`
	CacheBuckets   int           `yaml:"cache_buckets" validate:"gte=1,lte=4096"`
	// InboundRate caps list messages per peer, e.g. "20/1m". Empty is unlimited.
	InboundRate    string        `yaml:"inbound_rate"`
}

func (c P2PConfig) Rate() (utils.Rate, error) {
	return utils.ParseRate(c.InboundRate)
}

type MainConfig struct {
	NodeName  string    `yaml:"node_name" validate:"required"`
	RPCListen string    `yaml:"rpc_listen" validate:"required,hostname_port"`
	RulePath  string    `yaml:"rule_path" validate:"required"`
	LogPath   string    `yaml:"log_path" validate:"required"`
	LogLevel  string    `yaml:"log_level" validate:"oneof=debug info warn error"`
	P2P       P2PConfig `yaml:"p2p"`
}

func defaultConfig(basePath string) MainConfig {
	return MainConfig{
		NodeName:  "Contract Gate",
		RPCListen: "127.0.0.1:8547",
		RulePath:  filepath.Join(basePath, "config", "rules"),
		LogPath:   filepath.Join(basePath, "log"),
		LogLevel:  "info",
		P2P: P2PConfig{
			ListenAddrs:  []string{"/ip4/0.0.0.0/tcp/30400"},
			IdentityKey:  filepath.Join(basePath, "config", "node.key"),
			SendTimeout:  5 * time.Second,
			CacheBuckets: dataType.DefaultPeerCacheBuckets,
			InboundRate:  "60/1m",
		},
	}
}

// LoadMainConfig reads <basePath>/config/gate.yml over the defaults. On a
// read or parse error the defaults are returned alongside the error.
// Relative paths in the file are resolved against basePath.
func LoadMainConfig(basePath string) (*MainConfig, error) {
	if basePath == "" {
		exePath, err := os.Executable()
		if err != nil {
			return nil, err
		}
		basePath = filepath.Dir(exePath)
	}
	defaultCfg := defaultConfig(basePath)
	configPath := filepath.Join(basePath, "config", "gate.yml")

	data, err := os.ReadFile(configPath)
	if err != nil {
		return &defaultCfg, err
	}

	cfg := defaultConfig(basePath)
	if err := yaml.Unmarshal(data, &cfg); err != nil {
		return &defaultCfg, fmt.Errorf("parse %s: %w", configPath, err)
	}
	cfg.RulePath = resolve(basePath, cfg.RulePath)
	cfg.LogPath = resolve(basePath, cfg.LogPath)
	cfg.P2P.IdentityKey = resolve(basePath, cfg.P2P.IdentityKey)

	if err := cfg.Validate(); err != nil {
		return &defaultCfg, fmt.Errorf("invalid %s: %w", configPath, err)
	}
	return &cfg, nil
}

var validate = validator.New(validator.WithRequiredStructEnabled())

func (c *MainConfig) Validate() error {
	if err := validate.Struct(c); err != nil {
		return err
	}
	if _, err := c.P2P.Rate(); err != nil {
		return fmt.Errorf("p2p.inbound_rate: %w", err)
	}
	return nil
}

func resolve(basePath, p string) string {
	if p == "" || filepath.IsAbs(p) {
		return p
	}
	return filepath.Join(basePath, p)
}

// Policy is the genesis list pair.
type Policy struct {
	Whitelist []common.Address
	Blacklist []common.Address
}

// LoadPolicy loads Contract_AllowList.conf and Contract_BlockList.conf from
// rulePath. A missing file is an empty list.
func LoadPolicy(rulePath string) (*Policy, error) {
	whitelist, err := loadAddressRules(filepath.Join(rulePath, "Contract_AllowList.conf"))
	if err != nil {
		return nil, err
	}
	blacklist, err := loadAddressRules(filepath.Join(rulePath, "Contract_BlockList.conf"))
	if err != nil {
		return nil, err
	}
	return &Policy{Whitelist: whitelist, Blacklist: blacklist}, nil
}

// loadAddressRules reads one hex address per line. Blank lines and text
// after '#' are ignored.
func loadAddressRules(filePath string) ([]common.Address, error) {
	file, err := os.Open(filePath)
	if err != nil {
		if errors.Is(err, os.ErrNotExist) {
			return nil, nil
		}
		return nil, fmt.Errorf("failed to read rules file %s: %w", filePath, err)
	}
	defer func(file *os.File) {
		_ = file.Close()
	}(file)

	var addrs []common.Address
	scanner := bufio.NewScanner(file)
	lineNo := 0
	for scanner.Scan() {
		lineNo++
		line := scanner.Text()
		if i := strings.IndexByte(line, '#'); i >= 0 {
			line = line[:i]
		}
		line = strings.TrimSpace(line)
		if line == "" {
			continue
		}
		addr, err := utils.ParseAddress(line)
		if err != nil {
			return nil, fmt.Errorf("%s:%d: %w", filePath, lineNo, err)
		}
		addrs = append(addrs, addr)
	}
	if err := scanner.Err(); err != nil {
		return nil, fmt.Errorf("failed to read rules file %s: %w", filePath, err)
	}
	return addrs, nil
}
