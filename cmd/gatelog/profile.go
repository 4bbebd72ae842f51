package main

import (
	"fmt"
	"strconv"

	"github.com/hyperengineering/gatelog"
	"github.com/hyperengineering/gatelog/internal/profile"
	"github.com/spf13/cobra"
)

var profileCmd = &cobra.Command{
	Use:   "profile",
	Short: "List local profiles",
	Long: `Each profile is a separate local database under the profiles directory
($GATELOG_HOME/profiles, default ~/.gatelog/profiles). Select one with
--profile or GATELOG_PROFILE.`,
}

var profileListCmd = &cobra.Command{
	Use:   "list",
	Short: "List profiles with their pending counts",
	Args:  cobra.NoArgs,
	RunE:  runProfileList,
}

func init() {
	profileCmd.AddCommand(profileListCmd)
	rootCmd.AddCommand(profileCmd)
}

// ProfileEntry represents a profile in list output.
type ProfileEntry struct {
	ID       string `json:"id"`
	Location string `json:"location"`
	Active   bool   `json:"active"`
	Pending  int    `json:"pending"`
	LastSync string `json:"last_sync"`
	Error    string `json:"error,omitempty"`
}

func runProfileList(cmd *cobra.Command, args []string) error {
	ids, err := profile.List()
	if err != nil {
		return fmt.Errorf("list profiles: %w", err)
	}
	cfg, err := loadConfig(cmd, "error")
	if err != nil {
		return err
	}
	active := cfg.Profile

	entries := make([]ProfileEntry, 0, len(ids))
	for _, id := range ids {
		e := ProfileEntry{ID: id, Location: profile.DBPath(id), Active: id == active}
		// Opened offline: listing never triggers a sync.
		client, err := gatelog.New(gatelog.Config{
			Profile:   id,
			LocalPath: e.Location,
			Backend:   cfg.Backend,
			LogLevel:  "error",
		})
		if err != nil {
			e.Error = err.Error()
			entries = append(entries, e)
			continue
		}
		if report, err := client.Status(); err == nil {
			e.Pending = report.Pending()
			e.LastSync = formatRelativeTime(report.LastSync)
		} else {
			e.Error = err.Error()
		}
		_ = client.Close()
		entries = append(entries, e)
	}

	if outputJSON {
		return outputAsJSON(cmd, entries)
	}

	out := cmd.OutOrStdout()
	if len(entries) == 0 {
		printWarning(out, "No profiles found.")
		printMuted(out, "A profile is created the first time a command uses it.")
		return nil
	}

	rows := make([][]string, 0, len(entries))
	for _, e := range entries {
		id := e.ID
		if e.Active {
			id += " *"
		}
		pending := strconv.Itoa(e.Pending)
		if e.Error != "" {
			pending = "error"
		}
		rows = append(rows, []string{id, pending, e.LastSync, e.Location})
	}
	printInfo(out, "Profiles (%d):", len(entries))
	fmt.Fprintln(out, renderTable([]string{"PROFILE", "PENDING", "LAST SYNC", "LOCATION"}, rows))
	return nil
}
