package main

import (
	"bufio"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/hyperengineering/gatelog"
	"github.com/spf13/cobra"
)

var backupCmd = &cobra.Command{
	Use:   "backup",
	Short: "Export or import a full local backup",
	Long: `Export every module and the audit log to a JSON backup, or restore one.

Backups use the same format as the station's own export, so files can move
between stations.`,
}

var backupExportCmd = &cobra.Command{
	Use:   "export",
	Short: "Write a backup of the local log",
	Example: `  gatelog backup export -o backup.json
  gatelog backup export > backup.json`,
	Args: cobra.NoArgs,
	RunE: runBackupExport,
}

var backupImportCmd = &cobra.Command{
	Use:   "import <file>",
	Short: "Restore a backup into the local log",
	Long: `Restore a backup written by 'gatelog backup export'.

Strategies:
  merge   - Upsert records by id (default). Imported records are marked
            unsynced so the next cycle pushes them. Records queued for
            deletion are skipped.
  replace - Replace each module's records with the backup's, keeping the
            sync flags stored in the backup. Asks for confirmation
            unless --yes is given.

The audit log in the backup is not imported; the import itself is logged.`,
	Example: `  gatelog backup import backup.json
  gatelog backup import backup.json --strategy replace --yes`,
	Args: cobra.ExactArgs(1),
	RunE: runBackupImport,
}

var (
	exportOutputPath string
	importStrategy   string
	importYes        bool
)

func init() {
	backupExportCmd.Flags().StringVarP(&exportOutputPath, "output", "o", "", "Output file path (default: stdout)")
	backupImportCmd.Flags().StringVar(&importStrategy, "strategy", string(gatelog.ImportMerge), "Import strategy: merge, replace")
	backupImportCmd.Flags().BoolVarP(&importYes, "yes", "y", false, "Skip the confirmation prompt for replace")

	backupCmd.AddCommand(backupExportCmd)
	backupCmd.AddCommand(backupImportCmd)
	rootCmd.AddCommand(backupCmd)
}

// ExportResult for JSON output.
type ExportResult struct {
	FilePath string `json:"file_path"`
	FileSize int64  `json:"file_size"`
	Duration string `json:"duration"`
}

func runBackupExport(cmd *cobra.Command, args []string) error {
	client, _, err := openClient(cmd)
	if err != nil {
		return err
	}
	defer client.Close()

	if exportOutputPath == "" {
		return client.ExportBackup(cmd.Context(), cmd.OutOrStdout())
	}

	if err := os.MkdirAll(filepath.Dir(exportOutputPath), 0o755); err != nil {
		return fmt.Errorf("create output directory: %w", err)
	}
	start := time.Now()
	// Written to a temp file first so a failed export never truncates an
	// existing backup.
	tmp := exportOutputPath + ".tmp"
	f, err := os.Create(tmp)
	if err != nil {
		return fmt.Errorf("create output file: %w", err)
	}
	w := bufio.NewWriter(f)
	if err := client.ExportBackup(cmd.Context(), w); err != nil {
		_ = f.Close()
		_ = os.Remove(tmp)
		return err
	}
	if err := w.Flush(); err != nil {
		_ = f.Close()
		_ = os.Remove(tmp)
		return fmt.Errorf("write output file: %w", err)
	}
	if err := f.Close(); err != nil {
		_ = os.Remove(tmp)
		return fmt.Errorf("close output file: %w", err)
	}
	if err := os.Rename(tmp, exportOutputPath); err != nil {
		_ = os.Remove(tmp)
		return fmt.Errorf("finalize output file: %w", err)
	}

	info, err := os.Stat(exportOutputPath)
	if err != nil {
		return err
	}
	result := ExportResult{
		FilePath: exportOutputPath,
		FileSize: info.Size(),
		Duration: time.Since(start).Round(time.Millisecond).String(),
	}
	if outputJSON {
		return outputAsJSON(cmd, result)
	}
	printSuccess(cmd.OutOrStdout(), "Backup written to %s (%d bytes, took %s)", result.FilePath, result.FileSize, result.Duration)
	return nil
}

// ImportOutput for JSON output.
type ImportOutput struct {
	InputFile string `json:"input_file"`
	Strategy  string `json:"strategy"`
	*gatelog.ImportResult
}

func runBackupImport(cmd *cobra.Command, args []string) error {
	path := args[0]
	out := cmd.OutOrStdout()

	strategy := gatelog.ImportStrategy(strings.ToLower(importStrategy))
	switch strategy {
	case gatelog.ImportMerge, gatelog.ImportReplace:
	default:
		return fmt.Errorf("invalid strategy %q: must be 'merge' or 'replace'", importStrategy)
	}

	f, err := os.Open(path)
	if err != nil {
		return fmt.Errorf("open backup: %w", err)
	}
	defer f.Close()

	if strategy == gatelog.ImportReplace && !importYes {
		ok, err := confirm(cmd.InOrStdin(), out,
			"This replaces every local record with the backup's contents. Unsynced local changes are lost.",
			"Type 'yes' to confirm: ")
		if err != nil {
			return err
		}
		if !ok {
			printMuted(out, "Aborted.")
			return nil
		}
	}

	client, _, err := openClient(cmd)
	if err != nil {
		return err
	}
	defer client.Close()

	result, err := client.ImportBackup(cmd.Context(), bufio.NewReader(f), strategy)
	if err != nil {
		return err
	}

	if outputJSON {
		return outputAsJSON(cmd, ImportOutput{InputFile: path, Strategy: string(strategy), ImportResult: result})
	}
	printSuccess(out, "Imported %d records from %s (%s)", result.Total, path, strategy)
	fmt.Fprintf(out, "  Created:  %d\n", result.Created)
	fmt.Fprintf(out, "  Replaced: %d\n", result.Replaced)
	if result.Skipped > 0 {
		fmt.Fprintf(out, "  Skipped:  %d (queued for deletion or missing id)\n", result.Skipped)
	}
	return nil
}

func confirm(in io.Reader, out io.Writer, warning, prompt string) (bool, error) {
	fmt.Fprint(out, renderConfirmation(warning, prompt))
	response, err := bufio.NewReader(in).ReadString('\n')
	if err != nil && err != io.EOF {
		return false, fmt.Errorf("read confirmation: %w", err)
	}
	fmt.Fprintln(out)
	return strings.EqualFold(strings.TrimSpace(response), "yes"), nil
}
