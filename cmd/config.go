package cmd

import (
	"encoding/json"
	"fmt"

	"github.com/Mohsinsiddi/w3scan/internal/chain"
	"github.com/Mohsinsiddi/w3scan/internal/config"
	"github.com/Mohsinsiddi/w3scan/internal/ui"
	"github.com/spf13/cobra"
)

var configCmd = &cobra.Command{
	Use:   "config",
	Short: "Manage configuration",
}

var configListCmd = &cobra.Command{
	Use:   "list",
	Short: "Show current configuration",
	RunE: func(cmd *cobra.Command, args []string) error {
		data, err := json.MarshalIndent(cfg, "", "  ")
		if err != nil {
			return err
		}
		out := cmd.OutOrStdout()
		fmt.Fprintf(out, "%s\n\n", ui.StyleTitle.Render("Current Configuration"))
		fmt.Fprintln(out, string(data))

		fmt.Fprintln(out, ui.KeyValueBlock("Effective", [][2]string{
			{"network", cfg.Network()},
			{"network mode", networkMode},
			{"block count", fmt.Sprintf("%d", cfg.BlockCount())},
			{"log level", cfg.EffectiveLogLevel()},
			{"rpc override", orDash(cfg.RPCOverride())},
		}))
		fmt.Fprintln(out, ui.Meta("Config directory: "+cfg.Dir()))
		return nil
	},
}

var configSetCmd = &cobra.Command{
	Use:   "set <key> <value>",
	Short: "Set a configuration value",
	Long: `Set and persist a configuration value.

Keys: default_network, network_mode, rpc_algorithm, default_block_count,
scan_workers, retry_attempts, request_timeout_sec, log_level.`,
	Args: cobra.ExactArgs(2),
	RunE: func(cmd *cobra.Command, args []string) error {
		key, value := args[0], args[1]
		if key == "default_network" {
			if _, err := chain.NewRegistry().GetByName(value); err != nil {
				return fmt.Errorf("unknown chain %q: run `w3scan network list` to see all chains", value)
			}
		}
		if err := cfg.Set(key, value); err != nil {
			return err
		}
		if err := cfg.Save(); err != nil {
			return err
		}
		fmt.Fprintln(cmd.OutOrStdout(), ui.Success(fmt.Sprintf("%s set to %q", key, value)))
		return nil
	},
	ValidArgsFunction: func(cmd *cobra.Command, args []string, toComplete string) ([]string, cobra.ShellCompDirective) {
		if len(args) == 0 {
			return config.Keys, cobra.ShellCompDirectiveNoFileComp
		}
		return nil, cobra.ShellCompDirectiveNoFileComp
	},
}

func orDash(s string) string {
	if s == "" {
		return "-"
	}
	return s
}

func init() {
	configCmd.AddCommand(configListCmd, configSetCmd)
}
