package cmd

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"path/filepath"
	"syscall"

	"github.com/Mohsinsiddi/w3scan/internal/config"
	"github.com/Mohsinsiddi/w3scan/internal/logging"
	"github.com/Mohsinsiddi/w3scan/internal/ui"
	"github.com/spf13/cobra"
)

// Version is the current release. Overridable via build ldflags:
//
//	go build -ldflags "-X github.com/Mohsinsiddi/w3scan/cmd.Version=1.2.3" .
var Version = "0.1.0"

var (
	cfgDir  string
	cfg     *config.Config
	verbose bool
	testnet bool
	mainnet bool

	// networkMode is the mode for this invocation: the persisted mode unless
	// --testnet or --mainnet was given.
	networkMode string
)

// rootCmd is the top-level command.
var rootCmd = &cobra.Command{
	Use:   "w3scan",
	Short: "EVM address checksums and transaction history scans",
	Long: `w3scan validates EIP-55 address checksums and recovers the recent
transaction history of an address by scanning blocks from the chain head.

Global flags --testnet and --mainnet override the configured network mode
for a single invocation. Settings live in ~/.w3scan/config.json and can be
overridden with W3SCAN_* environment variables or a .env file.`,
	Version:      Version,
	SilenceUsage: true,
	PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
		if cmd.Name() == "help" || cmd.Name() == "completion" {
			return nil
		}
		return setup(cmd)
	},
	RunE: func(cmd *cobra.Command, args []string) error {
		fmt.Fprintln(cmd.OutOrStdout(), ui.Banner(Version))
		return cmd.Help()
	},
}

// setup loads .env, the config file and the environment overlay, then
// installs the logger.
func setup(cmd *cobra.Command) error {
	if err := config.LoadDotEnv(".env"); err != nil {
		return err
	}

	dir := cfgDir
	if !cmd.Flags().Changed("config") {
		if env := os.Getenv(config.EnvConfigDir); env != "" {
			dir = env
		}
	}

	var err error
	cfg, err = config.Load(dir)
	if err != nil {
		return fmt.Errorf("loading config: %w", err)
	}
	if err := config.LoadDotEnv(filepath.Join(cfg.Dir(), ".env")); err != nil {
		return err
	}
	if err := cfg.ApplyEnv(config.FromEnviron()); err != nil {
		return err
	}

	networkMode = cfg.NetworkMode
	switch {
	case testnet:
		networkMode = "testnet"
	case mainnet:
		networkMode = "mainnet"
	}

	logging.Init(cmd.ErrOrStderr(), cfg.EffectiveLogLevel(), verbose)
	return nil
}

// Execute runs the root command. SIGINT and SIGTERM cancel the command
// context, which aborts a running scan.
func Execute() {
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	err := rootCmd.ExecuteContext(ctx)
	stop()
	if err != nil {
		os.Exit(1)
	}
}

func init() {
	rootCmd.PersistentFlags().StringVar(&cfgDir, "config", "", "config directory (default: ~/.w3scan, env "+config.EnvConfigDir+")")
	rootCmd.PersistentFlags().BoolVarP(&verbose, "verbose", "v", false, "debug logging on stderr")
	rootCmd.PersistentFlags().BoolVar(&testnet, "testnet", false, "use testnet instead of mainnet")
	rootCmd.PersistentFlags().BoolVar(&mainnet, "mainnet", false, "use mainnet instead of testnet")
	rootCmd.MarkFlagsMutuallyExclusive("testnet", "mainnet")

	rootCmd.AddCommand(
		checksumCmd,
		historyCmd,
		balanceCmd,
		blockCmd,
		networkCmd,
		rpcCmd,
		configCmd,
	)
}
