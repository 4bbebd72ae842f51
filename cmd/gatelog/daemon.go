package main

import (
	"fmt"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/hyperengineering/gatelog"
	"github.com/hyperengineering/gatelog/model"
	"github.com/spf13/cobra"
)

var daemonCmd = &cobra.Command{
	Use:   "daemon",
	Short: "Sync in the background until interrupted",
	Long: `Run the background sync loop: one cycle at startup, one every sync
interval, and one whenever the remote store becomes reachable again.
Requests that arrive while a cycle runs are coalesced into one follow-up.

Logs go to stderr, or to --log-file with rotation. Stop with Ctrl-C or
SIGTERM; a running cycle is cancelled.`,
	Example: `  gatelog daemon
  gatelog daemon --interval 5m --log-file ~/.gatelog/gatelog.log`,
	Args: cobra.NoArgs,
	RunE: runDaemon,
}

func init() {
	daemonCmd.Flags().Duration("interval", 0, "Time between scheduled cycles (default: 15m)")
	rootCmd.AddCommand(daemonCmd)
}

func runDaemon(cmd *cobra.Command, args []string) error {
	cfg, err := loadConfig(cmd, "info")
	if err != nil {
		return err
	}
	if !cfg.HasRemote() {
		return gatelog.ErrNoRemote
	}

	out := cmd.OutOrStdout()
	client, err := gatelog.New(cfg, gatelog.WithStatus(func(s model.Status) {
		if s != model.StatusIdle {
			printMuted(out, "%s sync %s", time.Now().Format("15:04:05"), s)
		}
	}))
	if err != nil {
		return fmt.Errorf("initialize client: %w", err)
	}
	defer client.Close()

	ctx, stop := signal.NotifyContext(cmd.Context(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	if err := client.Start(ctx); err != nil {
		return err
	}
	printInfo(out, "Syncing every %s (profile %s). Press Ctrl-C to stop.", cfg.SyncInterval, cfg.Profile)

	<-ctx.Done()
	printMuted(out, "Stopping")
	return nil
}
