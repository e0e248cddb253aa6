package main

import (
	"context"
	"errors"
	"flag"
	"fmt"
	"log/slog"
	"os"
	"os/signal"
	"syscall"
	"time"
)

const version = "0.2.0"

// drainTimeout bounds how long shutdown waits for outstanding status
// checks before cancelling them.
const drainTimeout = 30 * time.Second

// extractConfigFlag extracts the --config flag value from args
func extractConfigFlag(args []string) string {
	for i, arg := range args {
		if arg == "--config" || arg == "-config" {
			if i+1 < len(args) {
				return args[i+1]
			}
		}
		if len(arg) > 9 && arg[:9] == "--config=" {
			return arg[9:]
		}
		if len(arg) > 8 && arg[:8] == "-config=" {
			return arg[8:]
		}
	}
	return ""
}

func run() error {
	if len(os.Args) < 2 {
		printUsage()
		return fmt.Errorf("no command specified")
	}

	command := os.Args[1]

	// Special case for version - no config needed
	if command == "version" {
		fmt.Printf("syncthing-kicker v%s\n", version)
		return nil
	}

	configPath := extractConfigFlag(os.Args[2:])

	cfg, err := loadConfig(configPath)
	if err != nil {
		return fmt.Errorf("failed to load config: %w", err)
	}

	switch command {
	case "run":
		return runDaemon(cfg)
	case "check":
		return checkStatus(cfg)
	case "status":
		return showStatus(cfg)
	case "history":
		return showHistory(cfg, os.Args[2:])
	default:
		printUsage()
		return fmt.Errorf("unknown command: %s", command)
	}
}

func main() {
	if err := run(); err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		os.Exit(1)
	}
}

func printUsage() {
	fmt.Printf(`syncthing-kicker v%s - Syncthing folder scan trigger daemon

Usage:
  syncthing-kicker <command> [flags]

Commands:
  run         Start daemon with scheduled folder rescans
  check       Report folder sync status once and exit
  status      Show per-folder scan history summary
  history     Show recent scan triggers
  version     Show version information

Flags:
  --config <path>   Config file (default: ./config.json and friends);
                    env variables and .env override file values

`, version)
}

func runDaemon(cfg *Config) error {
	logger := newLogger(cfg.LogLevel)
	logger.Info("Starting syncthing-kicker",
		"version", version,
		"api_url", cfg.APIURL,
		"dry_run", cfg.DryRun,
		"run_once", cfg.RunOnce,
	)

	perFolder, err := parseFolderCron(cfg.FolderCron)
	if err != nil {
		return err
	}
	entries, err := buildSchedules(cfg, perFolder)
	if err != nil {
		return err
	}
	if len(perFolder) > 0 {
		logger.Debug("Per-folder schedules", "mapping", formatFolderCron(perFolder))
	}

	client, err := newClient(cfg, logger)
	if err != nil {
		return err
	}

	var store *ScanStore
	if cfg.DatabasePath != "" {
		store, err = openScanStore(cfg.DatabasePath)
		if err != nil {
			return fmt.Errorf("failed to open history database: %w", err)
		}
		defer store.Close()
		logger.Info("Scan history enabled", "database", cfg.DatabasePath)
	}

	// Status checks derive from the background context, not the shutdown
	// signal, so the drain decides when they get cancelled.
	tracker := newTaskTracker(context.Background(), logger)
	defer tracker.Drain(drainTimeout)

	worker := newScanWorker(cfg, client, store, tracker, logger)

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	sigChan := make(chan os.Signal, 1)
	signal.Notify(sigChan, os.Interrupt, syscall.SIGTERM)

	var apiServer *APIServer
	var apiServerErr chan error
	if cfg.HTTPEnabled {
		apiServer = NewAPIServer(store, tracker, cfg.HTTPPort, logger)
		apiServerErr = make(chan error, 1)

		go func() {
			if err := apiServer.Start(); err != nil {
				apiServerErr <- err
			}
		}()
	}

	if cfg.ScanOnStartup {
		logger.Info("Triggering scan on startup")
		if cfg.Cron != "" {
			worker.TriggerScans(ctx, cfg.GlobalFolders())
		}
		for _, fs := range perFolder {
			worker.TriggerScans(ctx, []string{fs.Folder})
		}
		if cfg.RunOnce {
			logger.Info("Run-once mode; exiting after startup scan")
			shutdownAPIServer(apiServer, logger)
			return nil
		}
	}

	scheduler := newScheduler(cfg, entries, worker, logger)
	schedulerErr := make(chan error, 1)
	go func() {
		schedulerErr <- scheduler.Run(ctx)
	}()

	select {
	case <-sigChan:
		logger.Info("Received shutdown signal")
		cancel()
		shutdownAPIServer(apiServer, logger)
		<-schedulerErr

	case err := <-schedulerErr:
		shutdownAPIServer(apiServer, logger)
		if err != nil && !errors.Is(err, context.Canceled) {
			return fmt.Errorf("scheduler error: %w", err)
		}

	case err := <-apiServerErr:
		logger.Error("API server error", "error", err)
		cancel()
		<-schedulerErr
		return fmt.Errorf("API server error: %w", err)
	}

	logger.Info("Daemon stopped")
	return nil
}

func shutdownAPIServer(apiServer *APIServer, logger *slog.Logger) {
	if apiServer == nil {
		return
	}
	shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	if err := apiServer.Shutdown(shutdownCtx); err != nil {
		logger.Error("API server shutdown error", "error", err)
	}
}

// checkStatus performs one immediate status report for the configured
// global folder set and exits. Remote failures are logged, not fatal.
func checkStatus(cfg *Config) error {
	logger := newLogger(cfg.LogLevel)

	client, err := newClient(cfg, logger)
	if err != nil {
		return err
	}

	ctx, cancel := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer cancel()

	tracker := newTaskTracker(context.Background(), logger)
	worker := newScanWorker(cfg, client, nil, tracker, logger)
	worker.CheckSyncStatus(ctx, cfg.GlobalFolders(), 0)
	return nil
}

func showStatus(cfg *Config) error {
	store, err := openHistoryStore(cfg)
	if err != nil {
		return err
	}
	defer store.Close()

	summaries, err := store.Summary()
	if err != nil {
		return fmt.Errorf("failed to get history summary: %w", err)
	}

	fmt.Printf("Syncthing Kicker Status\n")
	fmt.Printf("=======================\n\n")
	fmt.Printf("Database: %s\n", cfg.DatabasePath)
	fmt.Printf("Folders:  %d\n", len(summaries))

	if len(summaries) > 0 {
		fmt.Printf("\nPer-folder history:\n")
		for _, s := range summaries {
			fmt.Printf("  %s: %d scans", s.Folder, s.ScanCount)
			if !s.LastScan.IsZero() {
				fmt.Printf(" (last: %s, %s)", s.LastScan.Format("2006-01-02 15:04"), s.LastOutcome)
			}
			fmt.Printf("\n")
			if s.LastState != "" {
				fmt.Printf("    state=%s needBytes=%d (checked %s)\n",
					s.LastState, s.NeedBytes, s.LastCheck.Format("2006-01-02 15:04"))
			}
		}
	}
	return nil
}

func showHistory(cfg *Config, args []string) error {
	flags := flag.NewFlagSet("history", flag.ExitOnError)
	limit := flags.Int("limit", 20, "Number of scan events to show")
	flags.String("config", "", "Config file path")
	flags.Parse(args)

	store, err := openHistoryStore(cfg)
	if err != nil {
		return err
	}
	defer store.Close()

	events, err := store.RecentEvents(*limit)
	if err != nil {
		return fmt.Errorf("failed to get scan history: %w", err)
	}

	fmt.Printf("Recent scan triggers\n")
	fmt.Printf("====================\n\n")
	if len(events) == 0 {
		fmt.Printf("No scans recorded yet\n")
		return nil
	}
	for _, e := range events {
		fmt.Printf("%s  %-10s %s", e.FiredAt.Format("2006-01-02 15:04:05"), e.Outcome, e.Folder)
		if e.Detail != "" {
			fmt.Printf("  (%s)", e.Detail)
		}
		fmt.Printf("\n")
	}
	return nil
}

func openHistoryStore(cfg *Config) (*ScanStore, error) {
	if cfg.DatabasePath == "" {
		return nil, fmt.Errorf("history database not configured (set ST_DATABASE_PATH or database_path)")
	}
	return openScanStore(cfg.DatabasePath)
}
