// SafeDraft: a safety net for text drafts.
//
// SafeDraft watches the foreground window for risky targets (chat apps,
// editors that lose state), keeps a versioned local history of draft
// text, organizes promoted drafts into a notebook, and synchronizes
// everything to a remote store.
//
// Usage:
//
//	safedraft serve          # MCP server (stdio) + window watcher + sync
//	safedraft sync push      # push local data to the configured remote
//	safedraft sync pull      # pull remote data and merge locally
//	safedraft export <path>  # export draft history as marks JSON
//	safedraft update         # update to the latest version
package main

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"strings"
	"syscall"
	"time"

	mcpserver "github.com/mark3labs/mcp-go/server"
	"github.com/rs/zerolog"

	"safedraft/internal/config"
	"safedraft/internal/export"
	"safedraft/internal/filesync"
	sdserver "safedraft/internal/server"
	"safedraft/internal/storage"
	"safedraft/internal/syncer"
	"safedraft/internal/updater"
	"safedraft/internal/watcher"
)

func main() {
	if len(os.Args) < 2 {
		printUsage()
		os.Exit(1)
	}

	switch os.Args[1] {
	case "serve":
		if err := runServe(); err != nil {
			fmt.Fprintf(os.Stderr, "Error: %v\n", err)
			os.Exit(1)
		}
	case "sync":
		if len(os.Args) < 3 || (os.Args[2] != "push" && os.Args[2] != "pull") {
			fmt.Fprintln(os.Stderr, "usage: safedraft sync push|pull")
			os.Exit(1)
		}
		if err := runSync(os.Args[2]); err != nil {
			fmt.Fprintf(os.Stderr, "Error: %v\n", err)
			os.Exit(1)
		}
	case "export":
		if len(os.Args) < 3 {
			fmt.Fprintln(os.Stderr, "usage: safedraft export <path>")
			os.Exit(1)
		}
		if err := runExport(os.Args[2]); err != nil {
			fmt.Fprintf(os.Stderr, "Error: %v\n", err)
			os.Exit(1)
		}
	case "update":
		runUpdate()
	case "--help", "-h", "help":
		printUsage()
		os.Exit(0)
	case "--version", "-v", "version":
		fmt.Printf("safedraft v%s\n", sdserver.Version)
		os.Exit(0)
	default:
		fmt.Fprintf(os.Stderr, "Unknown command: %s\n\n", os.Args[1])
		printUsage()
		os.Exit(1)
	}
}

func newLogger(level string) zerolog.Logger {
	lvl, err := zerolog.ParseLevel(strings.ToLower(level))
	if err != nil {
		lvl = zerolog.InfoLevel
	}
	// Stderr keeps logs out of the MCP stdio transport on stdout.
	return zerolog.New(zerolog.ConsoleWriter{Out: os.Stderr}).
		Level(lvl).
		With().Timestamp().Logger()
}

func runServe() error {
	app := config.Load()
	log := newLogger(app.LogLevel)

	store, err := storage.Open(app.StorageConfig())
	if err != nil {
		return fmt.Errorf("opening store: %w", err)
	}
	defer store.Close()

	if err := app.SeedSettings(store); err != nil {
		return fmt.Errorf("seeding settings: %w", err)
	}

	var coord *syncer.Coordinator
	if config.SyncModeFor(store) == "clickhouse" {
		ctx, cancel := context.WithTimeout(context.Background(), 15*time.Second)
		remote, err := syncer.DialClickHouse(ctx, app.ClickHouse)
		cancel()
		if err != nil {
			// Sync is best-effort; the local safety net works without it.
			log.Warn().Err(err).Msg("remote sync disabled")
		} else {
			coord = syncer.NewCoordinator(store, remote, syncer.WithLogger(log))
			defer coord.Close()
		}
	}

	w, err := watcher.New(
		platformSensor(),
		func() (watcher.RuleSet, error) {
			er, err := store.EnabledRulesSnapshot()
			if err != nil {
				return watcher.RuleSet{}, err
			}
			return watcher.RuleSet{Processes: er.Processes, Titles: er.Titles}, nil
		},
		func(key string, s watcher.Sample) {
			// The desktop shell replaces this callback with its popup;
			// headless mode just records the trigger.
			if store.Setting(config.KeyMasterMonitor, "on") != "on" {
				return
			}
			log.Info().Str("key", key).Str("title", s.Title).Msg("risky window focused")
		},
		watcher.WithLogger(log),
	)
	if err != nil {
		return fmt.Errorf("creating watcher: %w", err)
	}
	w.Start()
	defer w.Stop()

	// Rule edits through the store reload the watcher's snapshot.
	unsubscribe := store.AddObserver(func() {
		if err := w.ReloadRules(); err != nil {
			log.Warn().Err(err).Msg("rule reload failed")
		}
	})
	defer unsubscribe()

	go checkForUpdates()

	sigCh := make(chan os.Signal, 1)
	signal.Notify(sigCh, os.Interrupt, syscall.SIGTERM)
	go func() {
		<-sigCh
		w.Stop()
		if coord != nil {
			coord.Close()
		}
		store.Close()
		os.Exit(0)
	}()

	log.Info().Str("db", store.Path()).Msg("safedraft serving")
	return mcpserver.ServeStdio(sdserver.New(store, coord))
}

func runSync(direction string) error {
	app := config.Load()
	log := newLogger(app.LogLevel)

	store, err := storage.Open(app.StorageConfig())
	if err != nil {
		return fmt.Errorf("opening store: %w", err)
	}
	defer store.Close()

	if err := app.SeedSettings(store); err != nil {
		return fmt.Errorf("seeding settings: %w", err)
	}

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Minute)
	defer cancel()

	switch config.SyncModeFor(store) {
	case "clickhouse":
		remote, err := syncer.DialClickHouse(ctx, app.ClickHouse)
		if err != nil {
			return err
		}
		coord := syncer.NewCoordinator(store, remote, syncer.WithLogger(log))
		defer coord.Close()

		if direction == "push" {
			if err := coord.PushAll(ctx); err != nil {
				return err
			}
			fmt.Println("Push complete.")
			return nil
		}
		changed, err := coord.PullAndMerge(ctx)
		if err != nil {
			return err
		}
		fmt.Printf("Pull complete. %d local row(s) updated.\n", changed)
		return nil

	case "ssh":
		transport, err := filesync.DialSFTP(app.SSH)
		if err != nil {
			return err
		}
		defer transport.Close()

		if direction == "push" {
			if err := filesync.Push(ctx, transport, store.Path(), app.RemotePath); err != nil {
				return err
			}
			fmt.Println("Database uploaded.")
			return nil
		}
		if err := filesync.Pull(ctx, transport, store, app.RemotePath, log); err != nil {
			return err
		}
		fmt.Println("Database replaced from remote.")
		return nil
	}

	return fmt.Errorf("sync_mode is off; set SAFEDRAFT_SYNC_MODE to clickhouse or ssh")
}

func runExport(path string) error {
	app := config.Load()

	store, err := storage.Open(app.StorageConfig())
	if err != nil {
		return fmt.Errorf("opening store: %w", err)
	}
	defer store.Close()

	n, err := export.WriteMarks(store, path)
	if err != nil {
		return err
	}
	fmt.Printf("Exported %d draft(s) to %s\n", n, path)
	return nil
}

// checkForUpdates runs a non-blocking version check and prints a notice
// to stderr if an update is available. Best-effort; network failures
// are silently ignored.
func checkForUpdates() {
	result := updater.CheckVersion(sdserver.Version)
	if result.UpdateAvailable {
		fmt.Fprintf(os.Stderr,
			"\n  Update available: v%s -> v%s\n"+
				"  Run: safedraft update\n"+
				"  Release: %s\n\n",
			result.CurrentVersion, result.LatestVersion, result.ReleaseURL,
		)
	}
}

// runUpdate performs a self-update to the latest version.
func runUpdate() {
	fmt.Fprintln(os.Stderr, "Checking for updates...")

	result := updater.CheckVersion(sdserver.Version)
	if !result.UpdateAvailable {
		fmt.Fprintf(os.Stderr, "Already at the latest version (v%s)\n", result.CurrentVersion)
		return
	}

	fmt.Fprintf(os.Stderr, "New version available: v%s -> v%s\nDownloading...\n",
		result.CurrentVersion, result.LatestVersion)

	if err := updater.SelfUpdate(sdserver.Version); err != nil {
		fmt.Fprintf(os.Stderr, "Update failed: %v\n", err)
		fmt.Fprintf(os.Stderr, "\nYou can download manually from:\n  %s\n", result.ReleaseURL)
		os.Exit(1)
	}

	fmt.Fprintf(os.Stderr, "Updated to v%s. Restart safedraft to use the new version.\n", result.LatestVersion)
}

func printUsage() {
	fmt.Fprintf(os.Stderr, `SafeDraft v%s — safety net for text drafts

Usage:
  safedraft serve          Start the MCP server, window watcher, and sync
  safedraft sync push      Push local data to the configured remote
  safedraft sync pull      Pull remote data and merge it locally
  safedraft export <path>  Export draft history as marks JSON
  safedraft update         Update to the latest version

Configuration (environment or .env):
  SAFEDRAFT_DATA_DIR       Data directory (default ~/.safedraft)
  SAFEDRAFT_SYNC_MODE      off | clickhouse | ssh
  SAFEDRAFT_CH_ADDR        ClickHouse host:port
  SAFEDRAFT_SSH_HOST       SSH host for whole-file sync
`, sdserver.Version)
}
