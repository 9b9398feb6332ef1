package cmd

import (
	"fmt"
	"strconv"
	"time"

	"github.com/Mohsinsiddi/w3scan/internal/chain"
	"github.com/Mohsinsiddi/w3scan/internal/ui"
	"github.com/spf13/cobra"
)

var (
	blockNetwork string
	blockRPC     string
)

var blockCmd = &cobra.Command{
	Use:   "block [height]",
	Short: "Show a block (default: the chain head)",
	Long: `Fetch a block with its transactions and show a summary. Without a
height the current head is used.

Examples:
  w3scan block
  w3scan block 38211000 --network bnb`,
	Args: cobra.MaximumNArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		c, err := resolveChain(blockNetwork)
		if err != nil {
			return err
		}

		ctx := cmd.Context()
		rpcURL, err := pickRPC(ctx, c, blockRPC)
		if err != nil {
			return err
		}
		client := chain.NewEVMClientWithTimeout(rpcURL, cfg.RequestTimeout())

		var height uint64
		if len(args) == 1 {
			height, err = strconv.ParseUint(args[0], 10, 64)
			if err != nil {
				return fmt.Errorf("invalid height %q", args[0])
			}
		} else if height, err = client.CurrentHeight(ctx); err != nil {
			return fmt.Errorf("fetching head: %w", err)
		}

		block, err := client.BlockWithTransactions(ctx, height)
		if err != nil {
			return fmt.Errorf("fetching block %d: %w", height, err)
		}
		out := cmd.OutOrStdout()
		if block == nil {
			fmt.Fprintln(out, ui.Warn(fmt.Sprintf("No block at height %d on %s", height, c.Name)))
			return nil
		}

		ts := "-"
		if block.Timestamp > 0 {
			ts = time.Unix(int64(block.Timestamp), 0).UTC().Format("2006-01-02 15:04:05 UTC")
		}
		var creations int
		for i := range block.Transactions {
			if block.Transactions[i].IsContractCreation() {
				creations++
			}
		}

		fmt.Fprintln(out, ui.KeyValueBlock(fmt.Sprintf("Block on %s (%s)", c.DisplayName, networkMode), [][2]string{
			{"Block", "#" + commaSep(block.Number)},
			{"Hash", block.Hash},
			{"Timestamp", ts},
			{"Transactions", strconv.Itoa(len(block.Transactions))},
			{"Contract creations", strconv.Itoa(creations)},
		}))
		return nil
	},
}

// commaSep formats n with comma thousands separators.
func commaSep(n uint64) string {
	s := strconv.FormatUint(n, 10)
	if len(s) <= 3 {
		return s
	}
	out := make([]byte, 0, len(s)+len(s)/3)
	for i := range len(s) {
		if i > 0 && (len(s)-i)%3 == 0 {
			out = append(out, ',')
		}
		out = append(out, s[i])
	}
	return string(out)
}

func init() {
	blockCmd.Flags().StringVar(&blockNetwork, "network", "", "chain to query (default: config)")
	blockCmd.Flags().StringVar(&blockRPC, "rpc", "", "RPC endpoint, bypassing selection")
}
