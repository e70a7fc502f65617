package cmd

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/kanata-switcher/kanata-focusd/internal/backend"
	"github.com/kanata-switcher/kanata-focusd/internal/controlbus"
	"github.com/kanata-switcher/kanata-focusd/internal/history"
	"github.com/kanata-switcher/kanata-focusd/internal/kanata"
	"github.com/kanata-switcher/kanata-focusd/internal/logging"
	"github.com/kanata-switcher/kanata-focusd/internal/sessionwatch"
	"github.com/kanata-switcher/kanata-focusd/internal/supervisor"
	"github.com/kanata-switcher/kanata-focusd/internal/tracing"

	"github.com/spf13/cobra"
)

// runApp is rootCmd's RunE: it starts the daemon and blocks until a
// shutdown signal or IPC Restart, matching the teacher's bare-root-command
// convention (RunE: runApp on rootCmd itself, no explicit "run" verb
// required).
func runApp(_ *cobra.Command, _ []string) error {
	cfg, err := loadConfig()
	if err != nil {
		return err
	}

	if debugFlag {
		logging.SetMinLevel(logging.LevelDebug)
	}
	cleanup, err := logging.Init(cfg.LogPath)
	if err != nil {
		return fmt.Errorf("initializing logging: %w", err)
	}
	defer cleanup()
	logging.Info(logging.CatSupervisor, "kanata-focusd starting", "version", version, "host", cfg.Host, "port", cfg.Port)

	ruleSet, err := loadRuleSet(cfg)
	if err != nil {
		logging.ErrorErr(logging.CatRules, "invalid rule configuration", err)
		return err
	}

	tracerProvider, err := tracing.NewProvider(cfg.Tracing)
	if err != nil {
		return fmt.Errorf("initializing tracing: %w", err)
	}
	defer func() { _ = tracerProvider.Shutdown(context.Background()) }()

	var historyStore *history.Store
	if cfg.HistoryPath != "" {
		historyStore, err = history.Open(cfg.HistoryPath)
		if err != nil {
			logging.ErrorErr(logging.CatHistory, "history store unavailable, continuing without it", err)
		} else {
			defer func() { _ = historyStore.Close() }()
		}
	}

	client := kanata.NewClient(cfg.Host, cfg.Port, ruleSet.DefaultLayer(), ruleSet.HasDefaultRule())

	control, err := controlbus.Connect()
	if err != nil {
		return fmt.Errorf("control bus: %w", err)
	}
	defer func() { _ = control.Close() }()

	watcher, err := sessionwatch.Connect()
	var session supervisor.SessionWatcher
	if err != nil {
		logging.Warn(logging.CatSession, "native-terminal watcher unavailable, treating session as always active", "error", err.Error())
	} else {
		session = watcher
		defer func() { _ = watcher.Close() }()
	}

	adapter := backend.NewNoop()

	sup := supervisor.New(ruleSet, client, control, session, adapter)

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	logging.SafeGo("kanata-client", func() { client.Run(ctx) })

	if historyStore != nil {
		go recordHistory(ctx, control, historyStore)
	}

	sigCh := make(chan os.Signal, 1)
	signal.Notify(sigCh, syscall.SIGTERM, syscall.SIGINT, syscall.SIGHUP)

	done := make(chan struct{})
	logging.SafeGo("supervisor", func() {
		sup.Run(ctx)
		close(done)
	})

	select {
	case sig := <-sigCh:
		logging.Info(logging.CatSupervisor, "shutdown signal received", "signal", sig.String())
		cancel()
	case <-done:
		return nil
	}

	select {
	case <-done:
	case <-time.After(time.Second):
		logging.Warn(logging.CatSupervisor, "shutdown did not complete within budget")
	}
	return nil
}

// recordHistory subscribes to status changes via the control bus's
// in-process broker and appends every transition to historyStore. History
// is read-only to the core: nothing here feeds back into the supervisor.
func recordHistory(ctx context.Context, control *controlbus.Service, store *history.Store) {
	for ev := range control.Subscribe(ctx) {
		if err := store.Record(ctx, ev.Payload, ev.Timestamp); err != nil {
			logging.ErrorErr(logging.CatHistory, "failed to record status transition", err)
		}
	}
}
