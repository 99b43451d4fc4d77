package main

import (
	"fmt"
	"os"

	"github.com/spf13/cobra"
)

// version is stamped at build time via -ldflags "-X main.version=...".
var version = "dev"

func main() {
	if err := newRootCommand().Execute(); err != nil {
		fmt.Fprintf(os.Stderr, "agentstream: %v\n", err)
		os.Exit(1)
	}
}

// watchFlags carries the flag overrides for the default watch command.
// Zero values mean "not set on the command line"; config supplies the
// rest.
type watchFlags struct {
	server     string
	configPath string
	curses     bool
	poll       bool
	details    bool
	filterApp  string
	filterType string
}

func newRootCommand() *cobra.Command {
	flags := &watchFlags{}

	cmd := &cobra.Command{
		Use:           "agentstream",
		Short:         "Live terminal viewer for agent telemetry streams",
		Long: `agentstream connects to an observability collector and renders the
event stream in the terminal, either as an append-only log or as a
full-screen dashboard (--curses). It can also run a local collector
(agentstream serve) and post single events to one (agentstream send).`,
		SilenceUsage:  true,
		SilenceErrors: true,
		Version:       version,
		RunE: func(cmd *cobra.Command, args []string) error {
			return runWatch(flags)
		},
	}

	cmd.Flags().StringVar(&flags.server, "server", "", "collector endpoint (overrides config and $OBSERVABILITY_SERVER_URL)")
	cmd.Flags().StringVar(&flags.configPath, "config", "", "path to the config file")
	cmd.Flags().BoolVar(&flags.curses, "curses", false, "render the full-screen dashboard instead of the append-only log")
	cmd.Flags().BoolVar(&flags.poll, "poll", false, "poll over HTTP instead of streaming over WebSocket")
	cmd.Flags().BoolVar(&flags.details, "details", false, "show event attributes under each line")
	cmd.Flags().StringVar(&flags.filterApp, "filter-app", "", "only show events from this source application")
	cmd.Flags().StringVar(&flags.filterType, "filter-type", "", "only show events of this category")

	cmd.AddCommand(
		newSendCmd(),
		newServeCmd(),
	)

	return cmd
}
