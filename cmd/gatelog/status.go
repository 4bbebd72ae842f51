package main

import (
	"context"
	"fmt"
	"strconv"
	"strings"
	"time"

	"github.com/hyperengineering/gatelog"
	"github.com/spf13/cobra"
)

var statusCmd = &cobra.Command{
	Use:   "status",
	Short: "Show pending records and the last sync",
	Long: `Show how many records of each module are waiting to be pushed, how many
deletions are queued and when the last successful sync finished.`,
	Example: `  gatelog status
  gatelog status --ping
  gatelog status --json`,
	Args: cobra.NoArgs,
	RunE: runStatus,
}

var statusPing bool

func init() {
	statusCmd.Flags().BoolVar(&statusPing, "ping", false, "Also check that the remote store is reachable")
	rootCmd.AddCommand(statusCmd)
}

// StatusOutput is the JSON form of the status report.
type StatusOutput struct {
	*gatelog.Report
	Profile   string `json:"profile"`
	Location  string `json:"location"`
	Pending   int    `json:"pending"`
	Reachable *bool  `json:"reachable,omitempty"`
	PingError string `json:"ping_error,omitempty"`
}

func runStatus(cmd *cobra.Command, args []string) error {
	client, cfg, err := openClient(cmd)
	if err != nil {
		return err
	}
	defer client.Close()

	report, err := client.Status()
	if err != nil {
		return fmt.Errorf("status: %w", err)
	}

	status := StatusOutput{Report: report, Profile: cfg.Profile, Location: cfg.LocalPath, Pending: report.Pending()}
	if statusPing && report.Remote {
		ctx, cancel := context.WithTimeout(cmd.Context(), 10*time.Second)
		defer cancel()
		err := client.Ping(ctx)
		ok := err == nil
		status.Reachable = &ok
		if err != nil {
			status.PingError = scrubSensitiveData(err.Error())
		}
	}

	if outputJSON {
		return outputAsJSON(cmd, status)
	}
	return outputStatusHuman(cmd, status)
}

func outputStatusHuman(cmd *cobra.Command, s StatusOutput) error {
	out := cmd.OutOrStdout()

	var summary strings.Builder
	fmt.Fprintf(&summary, "Profile:     %s\n", s.Profile)
	fmt.Fprintf(&summary, "Location:    %s\n", s.Location)
	if s.Remote {
		fmt.Fprintf(&summary, "Sync:        %s\n", s.Status)
	} else {
		summary.WriteString("Sync:        offline only (no remote store)\n")
	}
	if s.LastSync.IsZero() {
		summary.WriteString("Last sync:   never\n")
	} else {
		fmt.Fprintf(&summary, "Last sync:   %s (%s)\n", s.LastSync.Local().Format("2006-01-02 15:04"), formatRelativeTime(s.LastSync))
	}
	fmt.Fprintf(&summary, "Pending:     %d\n", s.Pending)
	fmt.Fprintf(&summary, "Deletions:   %d queued", s.Tombstones)
	if s.Reachable != nil {
		if *s.Reachable {
			summary.WriteString("\nRemote:      reachable")
		} else {
			fmt.Fprintf(&summary, "\nRemote:      unreachable (%s)", s.PingError)
		}
	}
	fmt.Fprintln(out, renderPanel("Gatelog Status", summary.String()))
	fmt.Fprintln(out)

	rows := make([][]string, 0, len(s.Modules))
	for _, m := range s.Modules {
		rows = append(rows, []string{m.Module, m.Table, strconv.Itoa(m.Total), strconv.Itoa(m.Unsynced)})
	}
	fmt.Fprintln(out, renderTable([]string{"MODULE", "REMOTE TABLE", "TOTAL", "UNSYNCED"}, rows))

	if s.LastCycle != nil && s.LastCycle.Errors > 0 {
		fmt.Fprintln(out)
		printWarning(out, "Last cycle: %s (%d errors)", s.LastCycle.Message, s.LastCycle.Errors)
	}
	return nil
}
