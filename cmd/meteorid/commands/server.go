package commands

import (
	"context"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/pterm/pterm"
	"github.com/spf13/cobra"

	"github.com/aphelion-labs/meteorid/errors"
	"github.com/aphelion-labs/meteorid/refresh"
	"github.com/aphelion-labs/meteorid/server"
	"github.com/aphelion-labs/meteorid/version"
)

// ServerCmd starts the meteorid API server
var ServerCmd = &cobra.Command{
	Use:     "server",
	Aliases: []string{"serve"},
	Short:   "Start the meteorid HTTP API server",
	Long: `Start the HTTP API server. On startup the cached dataset is loaded if
present and a staleness check runs against the remote source; afterwards a
ticker re-checks on the configured interval. Reads always serve the current
in-memory snapshot.`,
	RunE: runServer,
}

var serverPort int

func init() {
	ServerCmd.Flags().IntVar(&serverPort, "port", 0, "Listen port (overrides config)")
}

func runServer(cmd *cobra.Command, args []string) error {
	rt, err := buildRuntime(cmd)
	if err != nil {
		return err
	}
	defer rt.Close()

	port := rt.cfg.Server.Port
	if serverPort != 0 {
		port = serverPort
	}

	printStartupBanner(rt.cfg.Cache.Path, rt.cfg.Database.Path)

	srv, err := server.NewServer(rt.holder, rt.controller, rt.journal, rt.cfg, rt.log)
	if err != nil {
		return errors.Wrap(err, "failed to create server")
	}

	// Bootstrap after the server is wired so refresh events reach clients
	// connected early. Fatal only when there is no dataset at all.
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	if err := rt.controller.Bootstrap(ctx); err != nil {
		return errors.Wrap(err, "startup produced no dataset; cannot serve")
	}

	snap := rt.holder.Current()
	pterm.Success.Printf("Dataset ready: %d records (fetched %s)\n",
		snap.Len(), snap.FetchedAt().Format(time.RFC3339))

	var ticker *refresh.Ticker
	if rt.cfg.Refresh.IntervalHours > 0 {
		ticker = refresh.NewTicker(ctx, rt.controller, refresh.TickerConfig{
			Interval: time.Duration(rt.cfg.Refresh.IntervalHours) * time.Hour,
		}, rt.log)
		ticker.Start()
		defer ticker.Stop()
	}

	errChan := make(chan error, 1)
	go func() {
		errChan <- srv.Start(port)
	}()

	sigChan := make(chan os.Signal, 1)
	signal.Notify(sigChan, os.Interrupt, syscall.SIGTERM)

	select {
	case err := <-errChan:
		return errors.Wrap(err, "server failed")
	case <-sigChan:
		pterm.Info.Println("\nShutting down gracefully (press Ctrl+C again to force)...")

		shutdownDone := make(chan error, 1)
		go func() {
			shutdownDone <- srv.Stop()
		}()

		select {
		case err := <-shutdownDone:
			if err != nil {
				return errors.Wrap(err, "shutdown error")
			}
			pterm.Success.Println("Server stopped cleanly")
			return nil
		case <-sigChan:
			pterm.Warning.Println("\nForce shutdown - exiting immediately")
			os.Exit(1)
			return nil // unreachable
		}
	}
}

// printStartupBanner prints the user-friendly startup message
func printStartupBanner(cachePath, dbPath string) {
	green := "\033[32m"
	bold := "\033[1m"
	reset := "\033[0m"

	info := version.Get()

	pterm.DefaultCenter.Println(pterm.LightCyan("☄ meteorid"))
	pterm.Printf("%s%s┌─ meteorid ──────────────────────────────────────────┐%s\n", green, bold, reset)
	pterm.Printf("%s│%s Version:  %s (commit %s)\n", green, reset, info.Version, info.Short())
	pterm.Printf("%s│%s Cache:    %s\n", green, reset, cachePath)
	pterm.Printf("%s│%s Journal:  %s\n", green, reset, dbPath)
	pterm.Printf("%s└─────────────────────────────────────────────────────┘%s\n", green, reset)
}
