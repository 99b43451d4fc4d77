package main

import (
	"context"
	"fmt"
	"io"
	"log"
	"os"
	"os/signal"
	"syscall"
	"time"

	tea "github.com/charmbracelet/bubbletea"
	"go.uber.org/zap"

	"github.com/nixlim/agentstream/internal/aggregate"
	"github.com/nixlim/agentstream/internal/config"
	"github.com/nixlim/agentstream/internal/events"
	"github.com/nixlim/agentstream/internal/logging"
	"github.com/nixlim/agentstream/internal/pipeline"
	"github.com/nixlim/agentstream/internal/tail"
	"github.com/nixlim/agentstream/internal/transport"
	"github.com/nixlim/agentstream/internal/tui"
)

// runWatch wires the stream client, the aggregating pipeline, and one of
// the two renderers, then blocks until the user quits.
func runWatch(flags *watchFlags) error {
	var loadResult *config.LoadResult
	var err error
	if flags.configPath != "" {
		loadResult, err = config.LoadFrom(flags.configPath)
	} else {
		loadResult, err = config.Load()
	}
	if err != nil {
		return fmt.Errorf("config error: %w", err)
	}
	cfg := loadResult.Config

	for _, w := range loadResult.Warnings {
		fmt.Fprintf(os.Stderr, "agentstream: config warning: %s\n", w)
	}

	// Flag overrides. Endpoint resolution: --server beats the
	// environment, which beats the config file.
	if env := os.Getenv("OBSERVABILITY_SERVER_URL"); env != "" {
		cfg.Connection.Endpoint = env
	}
	if flags.server != "" {
		cfg.Connection.Endpoint = flags.server
	}
	if flags.poll {
		cfg.Connection.Mode = config.ModePoll
	}
	if flags.curses {
		cfg.Display.Mode = config.DisplayDashboard
	}
	if flags.details {
		cfg.Display.ShowDetails = true
	}

	filter := events.Filter{
		Source:   cfg.Filter.Source,
		Category: cfg.Filter.Category,
	}
	if flags.filterApp != "" {
		filter.Source = flags.filterApp
	}
	if flags.filterType != "" {
		filter.Category = flags.filterType
	}

	dashboard := cfg.Display.Mode == config.DisplayDashboard

	// In dashboard mode nothing may write to the terminal behind
	// bubbletea's back, so logs go to the configured file or nowhere.
	// In log mode stdout carries event lines and diagnostics go to
	// stderr unless a log file is configured.
	var logger *zap.Logger
	if dashboard || cfg.Logging.File != "" {
		logger, err = logging.New(cfg.Logging)
	} else {
		logger, err = logging.NewConsole(cfg.Logging.Level)
	}
	if err != nil {
		return fmt.Errorf("logging error: %w", err)
	}
	defer logger.Sync()

	var client transport.Client
	switch cfg.Connection.Mode {
	case config.ModePoll:
		client = transport.NewPollClient(cfg.Connection.Endpoint, cfg.Connection.QueueSize, logger,
			transport.WithPollInterval(time.Duration(cfg.Connection.PollIntervalMS)*time.Millisecond),
			transport.WithPollLimit(cfg.Connection.PollLimit),
		)
	default:
		client = transport.NewWSClient(cfg.Connection.Endpoint, cfg.Connection.QueueSize, logger)
	}

	store := aggregate.New(cfg.Display.Window)
	pipe := pipeline.New(store, filter, logger)

	var printer *tail.Printer
	if !dashboard {
		printer = tail.NewPrinter(os.Stdout, cfg.Display.ShowDetails)
		printer.Header(cfg.Connection.Endpoint)
		store.OnEvent(printer.Event)
	}

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	if err := client.Start(ctx); err != nil {
		return fmt.Errorf("failed to start stream client: %w", err)
	}
	go pipe.Run(ctx, client.Events())

	sigCh := make(chan os.Signal, 1)
	signal.Notify(sigCh, syscall.SIGINT, syscall.SIGTERM)

	if dashboard {
		return runDashboard(ctx, cfg, client, store, pipe, logger, sigCh, cancel)
	}

	<-sigCh
	cancel()
	client.Stop()
	printer.Stats(store.Snapshot())
	return nil
}

// runDashboard hands the terminal to bubbletea and prints the final
// statistics once the alternate screen has been restored.
func runDashboard(ctx context.Context, cfg config.Config, client transport.Client, store *aggregate.Store, pipe *pipeline.Pipeline, logger *zap.Logger, sigCh chan os.Signal, cancel context.CancelFunc) error {
	log.SetOutput(io.Discard)

	shutdownMgr := tui.NewShutdownManager()
	shutdownMgr.StopTransport = client.Stop
	shutdownMgr.Cleanup = func() {
		cancel()
		_ = logger.Sync()
	}

	model := tui.NewModel(cfg,
		tui.WithSnapshotProvider(store),
		tui.WithStatusProvider(&statusAdapter{client: client, endpoint: cfg.Connection.Endpoint}),
		tui.WithFilterController(pipe),
		tui.WithOnShutdown(func() {
			_ = shutdownMgr.Shutdown()
		}),
	)

	p := tea.NewProgram(model,
		tea.WithAltScreen(),
	)

	go func() {
		select {
		case <-sigCh:
			_ = shutdownMgr.Shutdown()
			p.Quit()
		case <-ctx.Done():
			return
		}
	}()

	if _, err := p.Run(); err != nil {
		return err
	}

	tail.NewPrinter(os.Stdout, false).Stats(store.Snapshot())
	return nil
}

type statusAdapter struct {
	client   transport.Client
	endpoint string
}

func (a *statusAdapter) State() transport.State {
	return a.client.State()
}

func (a *statusAdapter) Endpoint() string {
	return a.endpoint
}
