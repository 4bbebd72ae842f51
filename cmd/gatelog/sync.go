package main

import (
	"errors"

	"github.com/hyperengineering/gatelog"
	"github.com/hyperengineering/gatelog/model"
	"github.com/spf13/cobra"
)

var syncCmd = &cobra.Command{
	Use:   "sync",
	Short: "Run one sync cycle",
	Long: `Reconcile the local log with the remote store: flush queued deletions,
push every unsynced record, then pull records changed remotely.

Pulls are limited to the recent window (pull_window, 7 days by default);
--full pulls everything, for a station that was offline for longer.`,
	Example: `  gatelog sync
  gatelog sync --full
  gatelog sync --json`,
	Args: cobra.NoArgs,
	RunE: runSync,
}

var syncFull bool

func init() {
	syncCmd.Flags().BoolVar(&syncFull, "full", false, "Pull every remote record, ignoring the pull window")
	rootCmd.AddCommand(syncCmd)
}

func runSync(cmd *cobra.Command, args []string) error {
	client, _, err := openClient(cmd)
	if err != nil {
		return err
	}
	defer client.Close()

	run := client.Sync
	message := "Syncing"
	if syncFull {
		run = client.Resync
		message = "Running full resync"
	}

	var res model.CycleResult
	var cause error
	_ = runWithSpinner(cmd.ErrOrStderr(), message, func() error {
		res, cause = run(cmd.Context())
		return cause
	})

	switch {
	case res.ID == "", errors.Is(cause, gatelog.ErrOffline):
		// Nothing was attempted.
		return cause
	case errors.Is(cause, gatelog.ErrCycleInProgress):
		printWarning(cmd.OutOrStdout(), "A sync cycle is already running")
		return nil
	}
	if err := outputCycle(cmd, res, cause); err != nil {
		return err
	}
	if res.Status == model.StatusError {
		return cause
	}
	return nil
}
