// Package cli wires the service components into the citizen-alerts command
// tree.
package cli

import (
	"fmt"

	"github.com/spf13/cobra"

	"github.com/couchcryptid/citizen-alerts-service/internal/config"
	"github.com/couchcryptid/citizen-alerts-service/internal/observability"
)

// version is set at build time with -ldflags "-X ...cli.version=...".
var version = "dev"

// newMetrics builds the metric set for a command. Tests swap in unregistered
// metrics so commands can run more than once per process.
var newMetrics = observability.NewMetrics

type rootOptions struct {
	cfgFile string
}

// loadConfig reads the --config file if given, otherwise CONFIG_FILE.
func (o *rootOptions) loadConfig() (*config.Config, error) {
	if o.cfgFile != "" {
		return config.LoadFile(o.cfgFile)
	}
	return config.Load()
}

// NewRootCmd builds the full command tree.
func NewRootCmd() *cobra.Command {
	opts := &rootOptions{}

	cmd := &cobra.Command{
		Use:   "citizen-alerts",
		Short: "Citizen Alerts incident ingestion service",
		Long: `citizen-alerts pulls community incident reports from the incidents
service, normalizes them into display-ready alerts, and serves them over
HTTP. It also submits new user reports back to the service.

Configuration comes from environment variables, optionally layered over a
YAML file (--config or CONFIG_FILE).`,
		SilenceErrors: true,
		SilenceUsage:  true,
	}
	cmd.PersistentFlags().StringVar(&opts.cfgFile, "config", "", "config file (default: $CONFIG_FILE)")

	cmd.AddCommand(
		newServeCmd(opts),
		newAlertsCmd(opts),
		newReportCmd(opts),
		newNormalizeCmd(opts),
		newChatCmd(),
		newConfigCmd(opts),
		newVersionCmd(),
	)
	return cmd
}

// Execute runs the root command.
func Execute() error {
	return NewRootCmd().Execute()
}

func newVersionCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "version",
		Short: "Print version information",
		Run: func(cmd *cobra.Command, _ []string) {
			fmt.Fprintf(cmd.OutOrStdout(), "citizen-alerts %s\n", version)
		},
	}
}
