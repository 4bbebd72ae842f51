package main

import (
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"os"
	"strings"
	"time"

	"github.com/hyperengineering/gatelog"
	"github.com/hyperengineering/gatelog/model"
	"github.com/spf13/cobra"
)

// outputAsJSON writes any value as formatted JSON to the command's stdout.
func outputAsJSON(cmd *cobra.Command, v interface{}) error {
	enc := json.NewEncoder(cmd.OutOrStdout())
	enc.SetIndent("", "  ")
	return enc.Encode(v)
}

// outputError prints an error to w, with a hint for the errors users can act
// on. Credentials never appear in the output.
func outputError(w io.Writer, err error) {
	msg := scrubSensitiveData(err.Error())
	context, suggestion := explain(err)
	fmt.Fprintln(w, renderErrorPanel(msg, context, suggestion))
}

func explain(err error) (context, suggestion string) {
	var ve *gatelog.ValidationError
	switch {
	case errors.As(err, &ve):
		return "invalid configuration field " + ve.Field, "check flags, GATELOG_* variables and the config file"
	case errors.Is(err, gatelog.ErrNoRemote):
		return "no remote store configured", "set remote_url and api_key, or database_url"
	case errors.Is(err, gatelog.ErrSessionInvalid):
		return "the remote store rejected the credentials", "sign in again or refresh access_token"
	case errors.Is(err, gatelog.ErrOffline):
		return "the remote store is unreachable", "records stay queued locally; try again when online"
	case errors.Is(err, gatelog.ErrQuotaExceeded):
		return "local storage is full", "export a backup and remove old records"
	}
	return "", ""
}

// scrubSensitiveData removes configured secrets from error messages.
func scrubSensitiveData(msg string) string {
	for _, env := range []string{"GATELOG_API_KEY", "GATELOG_ACCESS_TOKEN"} {
		if secret := os.Getenv(env); secret != "" {
			msg = strings.ReplaceAll(msg, secret, "[REDACTED]")
		}
	}
	if f := rootCmd.PersistentFlags().Lookup("api-key"); f != nil && f.Value.String() != "" {
		msg = strings.ReplaceAll(msg, f.Value.String(), "[REDACTED]")
	}
	return msg
}

// CycleOutput is the JSON form of a sync cycle.
type CycleOutput struct {
	model.CycleResult
	Error      string `json:"error,omitempty"`
	DurationMs int64  `json:"duration_ms"`
}

// outputCycle prints a sync cycle in the configured format.
func outputCycle(cmd *cobra.Command, res model.CycleResult, cause error) error {
	duration := res.FinishedAt.Sub(res.StartedAt)
	if outputJSON {
		out := CycleOutput{CycleResult: res, DurationMs: duration.Milliseconds()}
		if cause != nil {
			out.Error = cause.Error()
		}
		return outputAsJSON(cmd, out)
	}

	out := cmd.OutOrStdout()
	switch res.Status {
	case model.StatusSuccess:
		printSuccess(out, "%s (took %s)", res.Message, duration.Round(time.Millisecond))
	default:
		printError(out, "%s", res.Message)
	}
	fmt.Fprintln(out, renderMarkdown(cycleMarkdown(res)))
	return nil
}

func cycleMarkdown(res model.CycleResult) string {
	var b strings.Builder
	fmt.Fprintf(&b, "**Added:** %d  **Updated:** %d  **Errors:** %d\n", res.Added, res.Updated, res.Errors)

	var failed []model.ModuleOutcome
	pushed := 0
	for _, o := range res.Modules {
		pushed += o.Pushed
		if o.Failed() {
			failed = append(failed, o)
		}
	}
	fmt.Fprintf(&b, "\n**Pushed:** %d\n", pushed)
	if len(failed) > 0 {
		b.WriteString("\n## Failures\n\n")
		for _, o := range failed {
			fmt.Fprintf(&b, "- `%s` %s: %s\n", o.Module, o.Phase, o.Error)
		}
	}
	return strings.TrimRight(b.String(), "\n")
}

// formatRelativeTime formats a time as a relative string (e.g., "2h ago")
func formatRelativeTime(t time.Time) string {
	if t.IsZero() {
		return "never"
	}

	d := time.Since(t)

	switch {
	case d < time.Minute:
		return "just now"
	case d < time.Hour:
		return fmt.Sprintf("%dm ago", int(d.Minutes()))
	case d < 24*time.Hour:
		return fmt.Sprintf("%dh ago", int(d.Hours()))
	case d < 7*24*time.Hour:
		return fmt.Sprintf("%dd ago", int(d.Hours()/24))
	default:
		return fmt.Sprintf("%dw ago", int(d.Hours()/24/7))
	}
}
