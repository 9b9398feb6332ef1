package config

// Config holds all persisted w3scan settings.
type Config struct {
	DefaultNetwork    string              `json:"default_network"`
	NetworkMode       string              `json:"network_mode"`  // "mainnet" | "testnet"
	RPCAlgorithm      string              `json:"rpc_algorithm"` // "fastest" | "round-robin" | "failover"
	DefaultBlockCount uint64              `json:"default_block_count"`
	ScanWorkers       int                 `json:"scan_workers"`
	RetryAttempts     int                 `json:"retry_attempts"`
	RequestTimeoutSec int                 `json:"request_timeout_sec"`
	LogLevel          string              `json:"log_level"` // "debug" | "info" | "warn" | "error"
	CustomRPCs        map[string][]string `json:"custom_rpcs"`

	// internal: config dir path used for Save()
	configDir string
	// environment overrides; never persisted
	env overlay
}

type overlay struct {
	network  string
	rpcURL   string
	logLevel string
	blocks   uint64
	hasBlock bool
}

// EnvSource looks up environment variables.
type EnvSource interface {
	Lookup(key string) (string, bool)
}

// EnvMap is an in-memory EnvSource.
type EnvMap map[string]string

func (e EnvMap) Lookup(key string) (string, bool) {
	v, ok := e[key]
	return v, ok
}
