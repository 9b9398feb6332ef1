package cmd

import (
	"fmt"
	"strconv"

	"github.com/Mohsinsiddi/w3scan/internal/chain"
	"github.com/Mohsinsiddi/w3scan/internal/ui"
	"github.com/spf13/cobra"
)

var networkCmd = &cobra.Command{
	Use:   "network",
	Short: "Manage networks",
}

var networkListCmd = &cobra.Command{
	Use:   "list",
	Short: "List supported EVM networks",
	RunE: func(cmd *cobra.Command, args []string) error {
		reg := chain.NewRegistry()
		t := ui.NewTable([]ui.Column{
			{Title: "#", Width: 3},
			{Title: "Name", Width: 12},
			{Title: "Display", Width: 18},
			{Title: "Chain ID", Width: 10},
			{Title: "Currency", Width: 9},
			{Title: "Testnet", Width: 18},
		})

		current := cfg.Network()
		for i, c := range reg.All() {
			name := c.Name
			if name == current {
				name += " *"
			}
			t.AddRow(ui.Row{
				strconv.Itoa(i + 1),
				name,
				c.DisplayName,
				strconv.FormatInt(c.ChainID, 10),
				c.NativeCurrency,
				c.TestnetName,
			})
		}

		out := cmd.OutOrStdout()
		fmt.Fprintln(out, t.Render())
		fmt.Fprintln(out, ui.Meta(fmt.Sprintf("%d chains, * = default (%s)", len(reg.All()), networkMode)))
		return nil
	},
}

var networkUseCmd = &cobra.Command{
	Use:   "use <chain>",
	Short: "Set the default network",
	Long: `Set the default chain and persist it to config.

When combined with --testnet or --mainnet the network mode is also persisted.

Examples:
  w3scan network use base              # set default chain, keep current mode
  w3scan network use base --testnet    # also persist testnet mode`,
	Args: cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		c, err := chain.NewRegistry().GetByName(args[0])
		if err != nil {
			return fmt.Errorf("unknown chain %q: run `w3scan network list` to see all chains", args[0])
		}

		cfg.DefaultNetwork = c.Name
		if testnet || mainnet {
			cfg.NetworkMode = networkMode
		}
		if err := cfg.Save(); err != nil {
			return err
		}

		fmt.Fprintln(cmd.OutOrStdout(), ui.Success(fmt.Sprintf("Default network set to %s (%s)", c.Name, cfg.NetworkMode)))
		return nil
	},
}

func init() {
	networkCmd.AddCommand(networkListCmd, networkUseCmd)
}
