package cmd

import (
	"context"
	"fmt"
	"strconv"

	"github.com/Mohsinsiddi/w3scan/internal/chain"
	"github.com/Mohsinsiddi/w3scan/internal/rpc"
	"github.com/Mohsinsiddi/w3scan/internal/ui"
	"github.com/spf13/cobra"
)

var rpcCmd = &cobra.Command{
	Use:   "rpc",
	Short: "Manage RPC endpoints",
}

var rpcAddCmd = &cobra.Command{
	Use:   "add <chain> <url>",
	Short: "Add a custom RPC URL for a chain",
	Args:  cobra.ExactArgs(2),
	RunE: func(cmd *cobra.Command, args []string) error {
		c, err := chain.NewRegistry().GetByName(args[0])
		if err != nil {
			return fmt.Errorf("unknown chain %q", args[0])
		}
		url := args[1]
		if err := cfg.AddRPC(c.Name, url); err != nil {
			return err
		}
		if err := cfg.Save(); err != nil {
			return err
		}
		fmt.Fprintln(cmd.OutOrStdout(), ui.Success(fmt.Sprintf("Added RPC for %s: %s", c.Name, url)))
		return nil
	},
}

var rpcRemoveCmd = &cobra.Command{
	Use:   "remove <chain> <url>",
	Short: "Remove a custom RPC URL",
	Args:  cobra.ExactArgs(2),
	RunE: func(cmd *cobra.Command, args []string) error {
		chainName, url := args[0], args[1]
		if err := cfg.RemoveRPC(chainName, url); err != nil {
			return err
		}
		if err := cfg.Save(); err != nil {
			return err
		}
		fmt.Fprintln(cmd.OutOrStdout(), ui.Success(fmt.Sprintf("Removed RPC for %s: %s", chainName, url)))
		return nil
	},
}

var rpcListCmd = &cobra.Command{
	Use:   "list <chain>",
	Short: "List all RPCs for a chain",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		c, err := chain.NewRegistry().GetByName(args[0])
		if err != nil {
			return fmt.Errorf("unknown chain %q", args[0])
		}

		out := cmd.OutOrStdout()
		fmt.Fprintln(out, ui.StyleTitle.Render("RPCs for "+c.DisplayName))

		if custom := cfg.GetRPCs(c.Name); len(custom) > 0 {
			fmt.Fprintln(out, ui.StyleHeader.Render("Custom RPCs:"))
			for _, r := range custom {
				fmt.Fprintf(out, "  %s\n", r)
			}
		}
		fmt.Fprintln(out, ui.StyleHeader.Render("Built-in RPCs:"))
		for _, r := range c.MainnetRPCs {
			fmt.Fprintf(out, "  %s %s\n", ui.Meta("(mainnet)"), r)
		}
		for _, r := range c.TestnetRPCs {
			fmt.Fprintf(out, "  %s %s\n", ui.Meta("(testnet)"), r)
		}
		if o := cfg.RPCOverride(); o != "" {
			fmt.Fprintln(out, ui.Info("W3SCAN_RPC_URL overrides selection: "+o))
		}
		return nil
	},
}

var rpcBenchmarkCmd = &cobra.Command{
	Use:   "benchmark <chain>",
	Short: "Benchmark all RPCs for a chain and show the pick",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		c, err := chain.NewRegistry().GetByName(args[0])
		if err != nil {
			return fmt.Errorf("unknown chain %q", args[0])
		}
		urls := endpoints(c)
		if len(urls) == 0 {
			return fmt.Errorf("no RPCs configured for %s (%s)", c.Name, networkMode)
		}

		out := cmd.OutOrStdout()
		fmt.Fprintf(out, "%s\n\n", ui.StyleTitle.Render(fmt.Sprintf("Benchmarking %s RPCs (%s)...", c.DisplayName, networkMode)))

		ctx, cancel := context.WithTimeout(cmd.Context(), cfg.RequestTimeout())
		defer cancel()

		results := rpc.Benchmark(ctx, urls, rpc.EVMDialer(cfg.RequestTimeout()))
		algo, err := rpc.ParseAlgorithm(cfg.RPCAlgorithm)
		if err != nil {
			return err
		}
		winner, pickErr := rpc.NewPicker(algo).Pick(rpc.ResultsToEndpoints(results))

		rpc.SortByLatency(results)
		t := ui.NewTable([]ui.Column{
			{Title: "RPC URL", Width: 44},
			{Title: "Latency", Width: 10},
			{Title: "Block #", Width: 12},
			{Title: "Status", Width: 10},
		})
		for _, r := range results {
			latency, block, status := "-", "-", "down"
			if r.Err == nil {
				latency = fmt.Sprintf("%dms", r.Latency.Milliseconds())
				block = strconv.FormatUint(r.BlockNumber, 10)
				status = "healthy"
			}
			if winner != nil && r.URL == winner.URL {
				status = "selected"
			}
			t.AddRow(ui.Row{r.URL, latency, block, status})
		}
		fmt.Fprintln(out, t.Render())

		if pickErr != nil {
			fmt.Fprintln(out, ui.Err(pickErr.Error()))
			return nil
		}
		fmt.Fprintln(out, ui.Success(fmt.Sprintf("%s picks %s", algo, winner.URL)))
		return nil
	},
}

var rpcAlgorithmCmd = &cobra.Command{
	Use:   "algorithm",
	Short: "Manage the RPC selection algorithm",
}

var rpcAlgorithmSetCmd = &cobra.Command{
	Use:   "set <fastest|round-robin|failover>",
	Short: "Set the RPC selection algorithm",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		algo, err := rpc.ParseAlgorithm(args[0])
		if err != nil || args[0] == "" {
			return fmt.Errorf("invalid algorithm %q: choose fastest, round-robin or failover", args[0])
		}
		cfg.RPCAlgorithm = string(algo)
		if err := cfg.Save(); err != nil {
			return err
		}
		fmt.Fprintln(cmd.OutOrStdout(), ui.Success(fmt.Sprintf("RPC algorithm set to %q", algo)))
		return nil
	},
}

func init() {
	rpcAlgorithmCmd.AddCommand(rpcAlgorithmSetCmd)
	rpcCmd.AddCommand(rpcAddCmd, rpcRemoveCmd, rpcListCmd, rpcBenchmarkCmd, rpcAlgorithmCmd)
}
