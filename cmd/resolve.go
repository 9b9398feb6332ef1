package cmd

import (
	"context"
	"fmt"
	"log/slog"
	"strings"

	"github.com/Mohsinsiddi/w3scan/internal/chain"
	"github.com/Mohsinsiddi/w3scan/internal/checksum"
	"github.com/Mohsinsiddi/w3scan/internal/rpc"
)

// resolveChain returns the chain named by flag, or the effective default.
func resolveChain(flag string) (*chain.Chain, error) {
	name := flag
	if name == "" {
		name = cfg.Network()
	}
	c, err := chain.NewRegistry().GetByName(name)
	if err != nil {
		return nil, fmt.Errorf("unknown chain %q: run `w3scan network list` to see all chains", name)
	}
	return c, nil
}

// endpoints returns the custom RPCs for c followed by its built-in ones for
// the current mode.
func endpoints(c *chain.Chain) []string {
	urls := append([]string(nil), cfg.GetRPCs(c.Name)...)
	return append(urls, c.RPCs(networkMode)...)
}

// pickRPC chooses the endpoint for c. An explicit URL (flag, then
// W3SCAN_RPC_URL) bypasses selection.
func pickRPC(ctx context.Context, c *chain.Chain, explicit string) (string, error) {
	if explicit == "" {
		explicit = cfg.RPCOverride()
	}
	if explicit != "" {
		return explicit, nil
	}

	urls := endpoints(c)
	if len(urls) == 0 {
		return "", fmt.Errorf("no RPCs configured for %s (%s): add one with `w3scan rpc add %s <url>`", c.Name, networkMode, c.Name)
	}

	ctx, cancel := context.WithTimeout(ctx, cfg.RequestTimeout())
	defer cancel()

	url, err := rpc.Select(ctx, urls, cfg.RPCAlgorithm, rpc.EVMDialer(cfg.RequestTimeout()))
	if err != nil {
		return "", fmt.Errorf("selecting RPC for %s: %w", c.Name, err)
	}
	slog.Debug("rpc selected", "chain", c.Name, "mode", networkMode, "algorithm", cfg.RPCAlgorithm, "url", url)
	return url, nil
}

// parseAddress validates a user-supplied address and returns its
// checksummed form.
func parseAddress(s string) (string, error) {
	addr, err := checksum.Encode(strings.TrimSpace(s))
	if err != nil {
		return "", fmt.Errorf("want 0x followed by 40 hex characters: %w", err)
	}
	return addr, nil
}
