package chain

import (
	"errors"
	"strings"
)

// ErrChainNotFound is returned when a chain is not in the registry.
var ErrChainNotFound = errors.New("chain not found")

// Chain holds the metadata the scanner needs for one EVM network.
type Chain struct {
	Name            string   `json:"name"`
	DisplayName     string   `json:"display_name"`
	ChainID         int64    `json:"chain_id"`
	NativeCurrency  string   `json:"native_currency"`
	MainnetRPCs     []string `json:"mainnet_rpcs"`
	TestnetRPCs     []string `json:"testnet_rpcs"`
	MainnetExplorer string   `json:"mainnet_explorer"`
	TestnetExplorer string   `json:"testnet_explorer"`
	TestnetName     string   `json:"testnet_name"`
}

// Registry is the chain registry.
type Registry struct {
	chains []Chain
	byName map[string]*Chain
	byID   map[int64]*Chain
}

// NewRegistry returns the registry of built-in EVM networks.
func NewRegistry() *Registry {
	chains := allChains()
	r := &Registry{
		chains: chains,
		byName: make(map[string]*Chain, len(chains)),
		byID:   make(map[int64]*Chain, len(chains)),
	}
	for i := range r.chains {
		c := &r.chains[i]
		r.byName[c.Name] = c
		r.byID[c.ChainID] = c
	}
	return r
}

// All returns every chain in the registry.
func (r *Registry) All() []Chain {
	return r.chains
}

// GetByName finds a chain by its slug name (e.g. "bnb", "ethereum").
func (r *Registry) GetByName(name string) (*Chain, error) {
	c, ok := r.byName[strings.ToLower(name)]
	if !ok {
		return nil, ErrChainNotFound
	}
	return c, nil
}

// GetByChainID finds a chain by its numeric chain ID.
func (r *Registry) GetByChainID(id int64) (*Chain, error) {
	c, ok := r.byID[id]
	if !ok {
		return nil, ErrChainNotFound
	}
	return c, nil
}

// RPCs returns the RPC list for a chain in the given mode ("mainnet"/"testnet").
func (c *Chain) RPCs(mode string) []string {
	if mode == "testnet" {
		return c.TestnetRPCs
	}
	return c.MainnetRPCs
}

// Explorer returns the explorer URL for a chain in the given mode.
func (c *Chain) Explorer(mode string) string {
	if mode == "testnet" {
		return c.TestnetExplorer
	}
	return c.MainnetExplorer
}

// TxURL links a transaction hash on the explorer, or "" if none is known.
func (c *Chain) TxURL(mode, hash string) string {
	base := c.Explorer(mode)
	if base == "" || hash == "" {
		return ""
	}
	return base + "/tx/" + hash
}

// AddressURL links an address page on the explorer.
func (c *Chain) AddressURL(mode, address string) string {
	base := c.Explorer(mode)
	if base == "" {
		return ""
	}
	return base + "/address/" + address
}

// --- chain data ---

func allChains() []Chain {
	return []Chain{
		{
			Name: "ethereum", DisplayName: "Ethereum", ChainID: 1, NativeCurrency: "ETH",
			MainnetRPCs:     []string{"https://eth.llamarpc.com", "https://ethereum-rpc.publicnode.com"},
			TestnetRPCs:     []string{"https://rpc.sepolia.org", "https://sepolia.gateway.tenderly.co"},
			MainnetExplorer: "https://etherscan.io",
			TestnetExplorer: "https://sepolia.etherscan.io",
			TestnetName:     "Sepolia",
		},
		{
			Name: "bnb", DisplayName: "BNB Chain", ChainID: 56, NativeCurrency: "BNB",
			MainnetRPCs:     []string{"https://bsc-dataseed1.binance.org", "https://bsc-dataseed.binance.org", "https://bsc-rpc.publicnode.com"},
			TestnetRPCs:     []string{"https://data-seed-prebsc-1-s1.binance.org:8545"},
			MainnetExplorer: "https://bscscan.com",
			TestnetExplorer: "https://testnet.bscscan.com",
			TestnetName:     "BSC Testnet",
		},
		{
			Name: "base", DisplayName: "Base", ChainID: 8453, NativeCurrency: "ETH",
			MainnetRPCs:     []string{"https://mainnet.base.org", "https://base.llamarpc.com"},
			TestnetRPCs:     []string{"https://sepolia.base.org"},
			MainnetExplorer: "https://basescan.org",
			TestnetExplorer: "https://sepolia.basescan.org",
			TestnetName:     "Base Sepolia",
		},
		{
			Name: "polygon", DisplayName: "Polygon", ChainID: 137, NativeCurrency: "POL",
			MainnetRPCs:     []string{"https://polygon-bor-rpc.publicnode.com", "https://polygon-pokt.nodies.app"},
			TestnetRPCs:     []string{"https://rpc-amoy.polygon.technology"},
			MainnetExplorer: "https://polygonscan.com",
			TestnetExplorer: "https://amoy.polygonscan.com",
			TestnetName:     "Amoy",
		},
		{
			Name: "arbitrum", DisplayName: "Arbitrum", ChainID: 42161, NativeCurrency: "ETH",
			MainnetRPCs:     []string{"https://arb1.arbitrum.io/rpc", "https://arbitrum.llamarpc.com"},
			TestnetRPCs:     []string{"https://sepolia-rollup.arbitrum.io/rpc"},
			MainnetExplorer: "https://arbiscan.io",
			TestnetExplorer: "https://sepolia.arbiscan.io",
			TestnetName:     "Arb Sepolia",
		},
		{
			Name: "optimism", DisplayName: "Optimism", ChainID: 10, NativeCurrency: "ETH",
			MainnetRPCs:     []string{"https://mainnet.optimism.io", "https://optimism.llamarpc.com"},
			TestnetRPCs:     []string{"https://sepolia.optimism.io"},
			MainnetExplorer: "https://optimistic.etherscan.io",
			TestnetExplorer: "https://sepolia-optimism.etherscan.io",
			TestnetName:     "OP Sepolia",
		},
		{
			Name: "avalanche", DisplayName: "Avalanche", ChainID: 43114, NativeCurrency: "AVAX",
			MainnetRPCs:     []string{"https://api.avax.network/ext/bc/C/rpc", "https://avalanche-c-chain-rpc.publicnode.com"},
			TestnetRPCs:     []string{"https://api.avax-test.network/ext/bc/C/rpc"},
			MainnetExplorer: "https://snowtrace.io",
			TestnetExplorer: "https://testnet.snowtrace.io",
			TestnetName:     "Fuji",
		},
		{
			Name: "linea", DisplayName: "Linea", ChainID: 59144, NativeCurrency: "ETH",
			MainnetRPCs:     []string{"https://rpc.linea.build", "https://linea-rpc.publicnode.com"},
			TestnetRPCs:     []string{"https://rpc.sepolia.linea.build"},
			MainnetExplorer: "https://lineascan.build",
			TestnetExplorer: "https://sepolia.lineascan.build",
			TestnetName:     "Linea Sepolia",
		},
	}
}
