package main

import (
	"fmt"
	"os"

	"github.com/spf13/cobra"

	"github.com/SujathaSimmala2829/Focus-blocker/internal/focus/config"
)

// Version information (set by build flags)
var (
	version = "0.1.0-dev"
	commit  = "none"
)

const appName = "focusd"

var rootCmd = newRootCmd()

func main() {
	if err := rootCmd.Execute(); err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		os.Exit(1)
	}
}

func newRootCmd() *cobra.Command {
	root := &cobra.Command{
		Use:   appName,
		Short: "Time-boxed website blocking for focus sessions",
		Long: `focusd blocks a configured list of websites for a fixed period.

Run "focusd serve" to start the daemon, then control it with
"focusd start", "focusd stop" and "focusd status".`,
		SilenceUsage: true,
		PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
			if path, _ := cmd.Flags().GetString("config"); path != "" {
				return os.Setenv(config.FileEnv, path)
			}
			return nil
		},
	}

	root.PersistentFlags().String("config", "", "YAML config file (overrides "+config.FileEnv+")")
	root.PersistentFlags().String("socket", "", "Control socket path (overrides control.socket)")

	root.AddCommand(
		newServeCmd(),
		newStartCmd(),
		newStopCmd(),
		newStatusCmd(),
		newCheckCmd(),
		newSitesCmd(),
		newVersionCmd(),
	)
	return root
}

func newVersionCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "version",
		Short: "Print version information",
		Run: func(cmd *cobra.Command, args []string) {
			fmt.Fprintf(cmd.OutOrStdout(), "%s %s (commit: %s)\n", appName, version, commit)
		},
	}
}

// loadConfig loads the configuration and applies command-line overrides.
func loadConfig(cmd *cobra.Command) (*config.AppConfig, error) {
	cfg, err := config.Load()
	if err != nil {
		return nil, fmt.Errorf("configuration error: %w", err)
	}
	if socket, _ := cmd.Flags().GetString("socket"); socket != "" {
		cfg.Control.Socket = socket
	}
	return cfg, nil
}
