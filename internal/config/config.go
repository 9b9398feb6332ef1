package config

import (
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"slices"
	"strconv"
	"strings"
	"time"

	"github.com/joho/godotenv"
)

const (
	defaultNetwork   = "bnb"
	defaultMode      = "mainnet"
	defaultAlgorithm = "fastest"
	defaultBlocks    = 1000
	defaultWorkers   = 1
	defaultAttempts  = 1
	defaultTimeout   = 15
	defaultLogLevel  = "warn"

	configFile = "config.json"
	dirName    = ".w3scan"
)

// Environment variables recognised by ApplyEnv.
const (
	EnvConfigDir = "W3SCAN_CONFIG_DIR"
	EnvNetwork   = "W3SCAN_NETWORK"
	EnvRPCURL    = "W3SCAN_RPC_URL"
	EnvLogLevel  = "W3SCAN_LOG_LEVEL"
	EnvBlocks    = "W3SCAN_BLOCKS"
)

// Keys accepted by Set.
var Keys = []string{
	"default_network",
	"network_mode",
	"rpc_algorithm",
	"default_block_count",
	"scan_workers",
	"retry_attempts",
	"request_timeout_sec",
	"log_level",
}

// Load reads config from dir (or creates defaults). dir defaults to ~/.w3scan.
func Load(dir string) (*Config, error) {
	if dir == "" {
		home, err := os.UserHomeDir()
		if err != nil {
			return nil, fmt.Errorf("could not determine home dir: %w", err)
		}
		dir = filepath.Join(home, dirName)
	}

	if err := os.MkdirAll(dir, 0o700); err != nil {
		return nil, fmt.Errorf("could not create config dir: %w", err)
	}

	cfg := defaults(dir)

	data, err := os.ReadFile(filepath.Join(dir, configFile))
	if os.IsNotExist(err) {
		return cfg, nil
	}
	if err != nil {
		return nil, fmt.Errorf("reading config: %w", err)
	}

	if err := json.Unmarshal(data, cfg); err != nil {
		return nil, fmt.Errorf("parsing config: %w", err)
	}

	cfg.configDir = dir
	if cfg.CustomRPCs == nil {
		cfg.CustomRPCs = make(map[string][]string)
	}
	cfg.fillZero()

	return cfg, nil
}

// LoadDotEnv loads variables from the given .env files into the process
// environment. Missing files are skipped; variables already set win.
func LoadDotEnv(paths ...string) error {
	for _, p := range paths {
		if _, err := os.Stat(p); err != nil {
			if os.IsNotExist(err) {
				continue
			}
			return err
		}
		if err := godotenv.Load(p); err != nil {
			return fmt.Errorf("loading %s: %w", p, err)
		}
	}
	return nil
}

// FromEnviron snapshots the process environment.
func FromEnviron() EnvSource {
	env := make(EnvMap)
	for _, entry := range os.Environ() {
		k, v, ok := strings.Cut(entry, "=")
		if !ok || k == "" {
			continue
		}
		env[k] = v
	}
	return env
}

// ApplyEnv overlays W3SCAN_* variables from src. Overrides affect the
// effective getters only; Save never writes them.
func (c *Config) ApplyEnv(src EnvSource) error {
	if v, ok := lookup(src, EnvNetwork); ok {
		c.env.network = strings.ToLower(v)
	}
	if v, ok := lookup(src, EnvRPCURL); ok {
		c.env.rpcURL = v
	}
	if v, ok := lookup(src, EnvLogLevel); ok {
		c.env.logLevel = strings.ToLower(v)
	}
	if v, ok := lookup(src, EnvBlocks); ok {
		n, err := strconv.ParseUint(v, 10, 64)
		if err != nil {
			return fmt.Errorf("invalid %s: %w", EnvBlocks, err)
		}
		c.env.blocks = n
		c.env.hasBlock = true
	}
	return nil
}

// Network is the effective network: W3SCAN_NETWORK, else the persisted default.
func (c *Config) Network() string {
	if c.env.network != "" {
		return c.env.network
	}
	return c.DefaultNetwork
}

// RPCOverride is the endpoint pinned by W3SCAN_RPC_URL, or "".
func (c *Config) RPCOverride() string {
	return c.env.rpcURL
}

// EffectiveLogLevel is W3SCAN_LOG_LEVEL, else the persisted level.
func (c *Config) EffectiveLogLevel() string {
	if c.env.logLevel != "" {
		return c.env.logLevel
	}
	return c.LogLevel
}

// BlockCount is the scan length used when the caller gives none.
func (c *Config) BlockCount() uint64 {
	if c.env.hasBlock {
		return c.env.blocks
	}
	return c.DefaultBlockCount
}

// RequestTimeout is the per-request HTTP timeout for RPC calls.
func (c *Config) RequestTimeout() time.Duration {
	return time.Duration(c.RequestTimeoutSec) * time.Second
}

// Set assigns a persisted setting by its JSON key.
func (c *Config) Set(key, value string) error {
	switch key {
	case "default_network":
		c.DefaultNetwork = strings.ToLower(value)
	case "network_mode":
		if value != "mainnet" && value != "testnet" {
			return fmt.Errorf("invalid network_mode %q: choose mainnet or testnet", value)
		}
		c.NetworkMode = value
	case "rpc_algorithm":
		switch value {
		case "fastest", "round-robin", "failover":
		default:
			return fmt.Errorf("invalid rpc_algorithm %q: choose fastest, round-robin or failover", value)
		}
		c.RPCAlgorithm = value
	case "default_block_count":
		n, err := strconv.ParseUint(value, 10, 64)
		if err != nil {
			return fmt.Errorf("invalid default_block_count: %w", err)
		}
		c.DefaultBlockCount = n
	case "scan_workers", "retry_attempts", "request_timeout_sec":
		n, err := strconv.Atoi(value)
		if err != nil || n < 1 {
			return fmt.Errorf("invalid %s %q: must be a positive integer", key, value)
		}
		switch key {
		case "scan_workers":
			c.ScanWorkers = n
		case "retry_attempts":
			c.RetryAttempts = n
		default:
			c.RequestTimeoutSec = n
		}
	case "log_level":
		switch strings.ToLower(value) {
		case "debug", "info", "warn", "warning", "error":
		default:
			return fmt.Errorf("invalid log_level %q", value)
		}
		c.LogLevel = strings.ToLower(value)
	default:
		return fmt.Errorf("unknown config key %q (valid: %s)", key, strings.Join(Keys, ", "))
	}
	return nil
}

// Save writes the config to disk.
func (c *Config) Save() error {
	if err := os.MkdirAll(c.configDir, 0o700); err != nil {
		return err
	}
	data, err := json.MarshalIndent(c, "", "  ")
	if err != nil {
		return err
	}
	return os.WriteFile(filepath.Join(c.configDir, configFile), data, 0o600)
}

// AddRPC adds a custom RPC URL for a chain.
func (c *Config) AddRPC(chain, url string) error {
	if c.CustomRPCs == nil {
		c.CustomRPCs = make(map[string][]string)
	}
	if slices.Contains(c.CustomRPCs[chain], url) {
		return fmt.Errorf("RPC %s already exists for chain %s", url, chain)
	}
	c.CustomRPCs[chain] = append(c.CustomRPCs[chain], url)
	return nil
}

// RemoveRPC removes a custom RPC URL for a chain.
func (c *Config) RemoveRPC(chain, url string) error {
	rpcs := c.CustomRPCs[chain]
	idx := slices.Index(rpcs, url)
	if idx == -1 {
		return fmt.Errorf("RPC %s not found for chain %s", url, chain)
	}
	c.CustomRPCs[chain] = slices.Delete(rpcs, idx, idx+1)
	if len(c.CustomRPCs[chain]) == 0 {
		delete(c.CustomRPCs, chain)
	}
	return nil
}

// GetRPCs returns custom RPCs for a chain.
func (c *Config) GetRPCs(chain string) []string {
	return c.CustomRPCs[chain]
}

// Dir returns the config directory.
func (c *Config) Dir() string {
	return c.configDir
}

// --- helpers ---

func defaults(dir string) *Config {
	return &Config{
		DefaultNetwork:    defaultNetwork,
		NetworkMode:       defaultMode,
		RPCAlgorithm:      defaultAlgorithm,
		DefaultBlockCount: defaultBlocks,
		ScanWorkers:       defaultWorkers,
		RetryAttempts:     defaultAttempts,
		RequestTimeoutSec: defaultTimeout,
		LogLevel:          defaultLogLevel,
		CustomRPCs:        make(map[string][]string),
		configDir:         dir,
	}
}

// fillZero restores defaults for numeric fields a hand-edited file set to
// nonsense. An explicit default_block_count of 0 is kept.
func (c *Config) fillZero() {
	if c.ScanWorkers < 1 {
		c.ScanWorkers = defaultWorkers
	}
	if c.RetryAttempts < 1 {
		c.RetryAttempts = defaultAttempts
	}
	if c.RequestTimeoutSec < 1 {
		c.RequestTimeoutSec = defaultTimeout
	}
	if c.NetworkMode == "" {
		c.NetworkMode = defaultMode
	}
}

func lookup(src EnvSource, key string) (string, bool) {
	if src == nil {
		return "", false
	}
	v, ok := src.Lookup(key)
	v = strings.TrimSpace(v)
	return v, ok && v != ""
}
