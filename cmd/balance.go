package cmd

import (
	"fmt"
	"log/slog"
	"strconv"

	"github.com/Mohsinsiddi/w3scan/internal/chain"
	"github.com/Mohsinsiddi/w3scan/internal/ui"
	"github.com/spf13/cobra"
)

var (
	balanceNetwork string
	balanceRPC     string
)

var balanceCmd = &cobra.Command{
	Use:   "balance <address>",
	Short: "Show the native balance of an address",
	Long: `Show the checksummed address and its latest native balance.

Uses the configured network mode (mainnet/testnet) by default.
Override per-call with --testnet or --mainnet.

Examples:
  w3scan balance 0x5aAeb6053F3E94C9b9A09f33669435E7Ef1BeAed
  w3scan balance 0x5aAe... --network base --testnet`,
	Args: cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		address, err := parseAddress(args[0])
		if err != nil {
			return err
		}
		c, err := resolveChain(balanceNetwork)
		if err != nil {
			return err
		}

		ctx := cmd.Context()
		rpcURL, err := pickRPC(ctx, c, balanceRPC)
		if err != nil {
			return err
		}

		spin := ui.NewSpinner(cmd.ErrOrStderr(), fmt.Sprintf("Fetching balance on %s (%s)...", c.DisplayName, networkMode))
		spin.Start()
		client := chain.NewEVMClientWithTimeout(rpcURL, cfg.RequestTimeout())
		bal, err := client.Balance(ctx, address)
		if err != nil {
			spin.Stop()
			return fmt.Errorf("balance of %s on %s: %w", address, c.Name, err)
		}
		nodeID, idErr := client.ChainID(ctx)
		spin.Stop()

		network := c.DisplayName + " (" + networkMode + ")"
		pairs := [][2]string{
			{"Address", ui.Addr(address)},
			{"Network", network},
			{"Balance", bal.ETH + " " + c.NativeCurrency},
			{"Wei", bal.Wei.String()},
		}
		if idErr == nil {
			pairs = append(pairs, [2]string{"Chain ID", strconv.FormatUint(nodeID, 10)})
		} else {
			slog.Debug("chain id lookup failed", "rpc", rpcURL, "err", idErr)
		}

		out := cmd.OutOrStdout()
		fmt.Fprintln(out, ui.KeyValueBlock("Balance on "+c.DisplayName, pairs))
		if idErr == nil && networkMode == "mainnet" && int64(nodeID) != c.ChainID {
			fmt.Fprintln(out, ui.Warn(fmt.Sprintf("RPC reports chain ID %d, expected %d for %s", nodeID, c.ChainID, c.Name)))
		}
		return nil
	},
}

func init() {
	balanceCmd.Flags().StringVar(&balanceNetwork, "network", "", "chain to query (default: config)")
	balanceCmd.Flags().StringVar(&balanceRPC, "rpc", "", "RPC endpoint, bypassing selection")
}
