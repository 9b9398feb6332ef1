package cmd

import (
	"errors"
	"fmt"
	"io"
	"log/slog"
	"os"
	"strconv"

	"github.com/Mohsinsiddi/w3scan/internal/chain"
	"github.com/Mohsinsiddi/w3scan/internal/retry"
	"github.com/Mohsinsiddi/w3scan/internal/scanner"
	"github.com/Mohsinsiddi/w3scan/internal/ui"
	"github.com/spf13/cobra"
)

var (
	historyBlocks      uint64
	historyFromHeight  uint64
	historyWorkers     int
	historyRetries     int
	historyNetwork     string
	historyRPC         string
	historyInteractive bool
)

var historyCmd = &cobra.Command{
	Use:   "history <address> [block-count]",
	Short: "Scan recent blocks for transactions sent from or to an address",
	Long: `Walk back from the chain head (or --from-height) and list every
transaction whose sender or recipient is the address. Blocks are visited
newest first; results keep that order.

The scan stops at the first RPC failure and reports the failing block. Resume
from there with --from-height, or allow retries with --retries.

Examples:
  w3scan history 0x5aAeb6053F3E94C9b9A09f33669435E7Ef1BeAed
  w3scan history 0x5aAeb6053F3E94C9b9A09f33669435E7Ef1BeAed 200 --network base
  w3scan history 0x5aAe... --from-height 38211000 --workers 8 --retries 3`,
	Args: cobra.RangeArgs(1, 2),
	RunE: func(cmd *cobra.Command, args []string) error {
		target, err := parseAddress(args[0])
		if err != nil {
			return err
		}

		count, err := historyBlockCount(cmd, args)
		if err != nil {
			return err
		}

		c, err := resolveChain(historyNetwork)
		if err != nil {
			return err
		}

		ctx := cmd.Context()
		rpcURL, err := pickRPC(ctx, c, historyRPC)
		if err != nil {
			return err
		}

		workers := cfg.ScanWorkers
		if cmd.Flags().Changed("workers") {
			workers = historyWorkers
		}
		attempts := cfg.RetryAttempts
		if cmd.Flags().Changed("retries") {
			attempts = historyRetries
		}

		spin := ui.NewSpinner(cmd.ErrOrStderr(), fmt.Sprintf("Scanning %d blocks on %s...", count, c.DisplayName))
		opts := []scanner.Option{
			scanner.WithWorkers(workers),
			scanner.WithLogger(slog.Default().With("chain", c.Name, "rpc", rpcURL)),
			scanner.WithProgress(func(p scanner.Progress) {
				spin.SetMessage(fmt.Sprintf("Scanning %s: block %d (%d/%d), %d found", c.DisplayName, p.Height, p.Done, p.Total, p.Matches))
			}),
		}
		if attempts > 1 {
			opts = append(opts, scanner.WithRetry(retry.Attempts(attempts)))
		}

		scanOpts := []scanner.ScanOption{scanner.WithBlockCount(count)}
		if cmd.Flags().Changed("from-height") {
			scanOpts = append(scanOpts, scanner.FromHeight(historyFromHeight))
		}

		client := chain.NewEVMClientWithTimeout(rpcURL, cfg.RequestTimeout())
		spin.Start()
		res, err := scanner.New(client, opts...).Scan(ctx, target, scanOpts...)
		spin.Stop()
		if err != nil {
			return describeScanError(target, err)
		}

		if historyInteractive && len(res.Transactions) > 0 {
			table, rows := historyTable(c, res)
			return ui.RunTxList(os.Stdin, cmd.OutOrStdout(), historyTitle(c, res), table, rows)
		}
		printHistory(cmd.OutOrStdout(), c, res)
		return nil
	},
}

// historyBlockCount resolves the scan length: positional argument, then
// --blocks, then config (W3SCAN_BLOCKS or default_block_count).
func historyBlockCount(cmd *cobra.Command, args []string) (uint64, error) {
	if len(args) == 2 {
		if cmd.Flags().Changed("blocks") {
			return 0, errors.New("block count given both as argument and --blocks")
		}
		n, err := strconv.ParseUint(args[1], 10, 64)
		if err != nil {
			return 0, fmt.Errorf("invalid block count %q: must be a non-negative integer", args[1])
		}
		return n, nil
	}
	if cmd.Flags().Changed("blocks") {
		return historyBlocks, nil
	}
	return cfg.BlockCount(), nil
}

// describeScanError turns scanner errors into CLI messages with a resume
// hint where one applies.
func describeScanError(target string, err error) error {
	var perr *scanner.ProviderError
	switch {
	case errors.Is(err, scanner.ErrCancelled):
		return fmt.Errorf("history of %s: %w", target, err)
	case errors.As(err, &perr) && perr.Op != scanner.OpCurrentHeight:
		return fmt.Errorf("history of %s aborted at block %d: %w\n  resume with: --from-height %d", target, perr.Height, err, perr.Height)
	default:
		return fmt.Errorf("history of %s: %w", target, err)
	}
}

// direction labels tx relative to target.
func direction(tx chain.Transaction, target string) string {
	from, _ := parseAddress(tx.From)
	to := ""
	if !tx.IsContractCreation() {
		to, _ = parseAddress(tx.To)
	}
	switch {
	case from == target && to == target:
		return "SELF"
	case from == target && tx.IsContractCreation():
		return "DEPLOY"
	case from == target:
		return "OUT"
	default:
		return "IN"
	}
}

func counterparty(tx chain.Transaction, dir string) string {
	switch dir {
	case "OUT":
		return tx.To
	case "IN":
		return tx.From
	case "DEPLOY":
		return "(contract creation)"
	default:
		return "-"
	}
}

func historyTitle(c *chain.Chain, res *scanner.Result) string {
	return fmt.Sprintf("%s  %s",
		ui.StyleTitle.Render("History of "+res.Target),
		ui.Meta(fmt.Sprintf("(%s, %s, blocks %d..%d)", c.Name, networkMode, res.FromHeight, res.ToHeight)))
}

func historyTable(c *chain.Chain, res *scanner.Result) (*ui.Table, []ui.TxRow) {
	t := ui.NewTable([]ui.Column{
		{Title: "Block", Width: 10},
		{Title: "Hash", Width: 14},
		{Title: "Dir", Width: 6},
		{Title: "Counterparty", Width: 20},
		{Title: "Value (" + c.NativeCurrency + ")", Width: 22},
	})
	rows := make([]ui.TxRow, 0, len(res.Transactions))
	for _, tx := range res.Transactions {
		dir := direction(tx, res.Target)
		value := tx.ValueETH
		if value == "" {
			value = chain.WeiToETH(tx.Value)
		}
		t.AddRow(ui.Row{
			strconv.FormatUint(tx.BlockNumber, 10),
			ui.TruncateAddr(tx.Hash),
			dir,
			ui.TruncateAddr(counterparty(tx, dir)),
			value,
		})
		rows = append(rows, ui.TxRow{FullHash: tx.Hash, ExplorerURL: c.TxURL(networkMode, tx.Hash)})
	}
	return t, rows
}

func printHistory(w io.Writer, c *chain.Chain, res *scanner.Result) {
	summary := fmt.Sprintf("%d blocks scanned (%d..%d), %d without data", res.Scanned, res.FromHeight, res.ToHeight, res.Missing)
	if res.Scanned == 0 {
		summary = "0 blocks scanned"
	}

	if len(res.Transactions) == 0 {
		fmt.Fprintln(w, ui.Meta("No transactions found."))
		fmt.Fprintln(w, ui.Meta(summary))
		return
	}

	t, _ := historyTable(c, res)
	fmt.Fprintf(w, "%s\n\n", historyTitle(c, res))
	fmt.Fprintln(w, t.Render())
	fmt.Fprintln(w, ui.Meta(fmt.Sprintf("%d transactions, %s", len(res.Transactions), summary)))
	if url := c.AddressURL(networkMode, res.Target); url != "" {
		fmt.Fprintln(w, ui.Meta("Explorer: "+url))
	}
}

func init() {
	historyCmd.Flags().Uint64Var(&historyBlocks, "blocks", scanner.DefaultBlockCount, "number of blocks to scan")
	historyCmd.Flags().Uint64Var(&historyFromHeight, "from-height", 0, "start at this block instead of the chain head")
	historyCmd.Flags().IntVar(&historyWorkers, "workers", 1, "blocks fetched concurrently")
	historyCmd.Flags().IntVar(&historyRetries, "retries", 1, "attempts per RPC call (1 = fail fast)")
	historyCmd.Flags().StringVar(&historyNetwork, "network", "", "chain to scan (default: config)")
	historyCmd.Flags().StringVar(&historyRPC, "rpc", "", "RPC endpoint, bypassing selection")
	historyCmd.Flags().BoolVarP(&historyInteractive, "interactive", "i", false, "browse results interactively")
}
