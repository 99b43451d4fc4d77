package main

import (
	"context"
	"os"
	"os/signal"
	"syscall"

	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"github.com/nixlim/agentstream/internal/logging"
	"github.com/nixlim/agentstream/internal/server"
)

// newServeCmd builds the serve subcommand: an in-memory collector that
// agents post to and viewers stream from. Handy for development and
// single-machine setups where running the full stack is overkill.
func newServeCmd() *cobra.Command {
	var (
		addr      string
		buffer    int
		initLimit int
		level     string
	)

	cmd := &cobra.Command{
		Use:   "serve",
		Short: "Run a local event collector",
		Long: `Run an in-memory collector. Agents POST events to /events, viewers
stream them over /ws or poll GET /events. Events live in a fixed-size
buffer and are gone when the process exits.`,
		RunE: func(cmd *cobra.Command, args []string) error {
			logger, err := logging.NewConsole(level)
			if err != nil {
				return err
			}
			defer logger.Sync()

			ctx, cancel := context.WithCancel(cmd.Context())
			defer cancel()

			sigCh := make(chan os.Signal, 1)
			signal.Notify(sigCh, syscall.SIGINT, syscall.SIGTERM)
			go func() {
				select {
				case <-sigCh:
					cancel()
				case <-ctx.Done():
				}
			}()

			srv := server.New(buffer, initLimit, logger)
			logger.Info("collector listening",
				zap.String("addr", addr),
				zap.Int("buffer", buffer),
			)
			return srv.ListenAndServe(ctx, addr)
		},
	}

	cmd.Flags().StringVar(&addr, "addr", ":3001", "listen address")
	cmd.Flags().IntVar(&buffer, "buffer", server.DefaultBuffer, "events retained in memory")
	cmd.Flags().IntVar(&initLimit, "init-limit", server.DefaultInitLimit, "backlog events replayed to a new stream subscriber")
	cmd.Flags().StringVar(&level, "log-level", "info", "log level: debug, info, warn or error")

	return cmd
}
