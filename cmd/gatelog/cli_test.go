package main

import (
	"bytes"
	"encoding/json"
	"errors"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/hyperengineering/gatelog"
	"github.com/spf13/cobra"
	"github.com/spf13/pflag"
)

// testEnv points GATELOG_HOME at a temp dir, clears the remote settings and
// resets every flag so commands start from defaults. Returns the home dir.
func testEnv(t *testing.T) string {
	t.Helper()

	home := t.TempDir()
	t.Setenv("GATELOG_HOME", home)
	for _, env := range []string{
		"GATELOG_PROFILE", "GATELOG_DB_PATH", "GATELOG_REMOTE_URL", "GATELOG_API_KEY",
		"GATELOG_DATABASE_URL", "GATELOG_OWNER_ID", "GATELOG_OPERATOR",
	} {
		t.Setenv(env, "")
	}
	t.Setenv("GATELOG_LOG_LEVEL", "error")

	resetFlags(rootCmd)
	t.Cleanup(func() { resetFlags(rootCmd) })
	return home
}

func resetFlags(cmd *cobra.Command) {
	reset := func(f *pflag.Flag) {
		_ = f.Value.Set(f.DefValue)
		f.Changed = false
	}
	cmd.Flags().VisitAll(reset)
	cmd.PersistentFlags().VisitAll(reset)
	for _, sub := range cmd.Commands() {
		resetFlags(sub)
	}
}

// execute runs the CLI with args and returns stdout.
func execute(t *testing.T, stdin string, args ...string) (string, error) {
	t.Helper()
	var stdout, stderr bytes.Buffer
	rootCmd.SetOut(&stdout)
	rootCmd.SetErr(&stderr)
	rootCmd.SetIn(strings.NewReader(stdin))
	rootCmd.SetArgs(args)
	err := rootCmd.Execute()
	resetFlags(rootCmd)
	return stdout.String(), err
}

func TestCLI_Help_ListsAllCommands(t *testing.T) {
	testEnv(t)

	out, err := execute(t, "", "--help")
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	for _, cmd := range []string{"sync", "daemon", "status", "backup", "settings", "profile", "mcp", "version"} {
		if !strings.Contains(out, cmd) {
			t.Errorf("--help output should contain %q command", cmd)
		}
	}
}

func TestCLI_Version_Human(t *testing.T) {
	testEnv(t)

	out, err := execute(t, "", "version")
	if err != nil {
		t.Fatalf("version command should not error: %v", err)
	}
	for _, want := range []string{"gatelog ", "commit:", "built:", "backup:", "go:", "os:"} {
		if !strings.Contains(out, want) {
			t.Errorf("output should contain %q:\n%s", want, out)
		}
	}
}

func TestCLI_Version_JSON(t *testing.T) {
	testEnv(t)

	out, err := execute(t, "", "version", "--json")
	if err != nil {
		t.Fatalf("version command should not error: %v", err)
	}

	var info versionInfo
	if err := json.Unmarshal([]byte(out), &info); err != nil {
		t.Fatalf("output is not valid JSON: %v\n%s", err, out)
	}
	if info.Version != version {
		t.Errorf("version = %q, want %q", info.Version, version)
	}
	if info.BackupVersion != gatelog.BackupVersion {
		t.Errorf("backup_version = %q, want %q", info.BackupVersion, gatelog.BackupVersion)
	}
}

type statusJSON struct {
	Profile  string `json:"profile"`
	Location string `json:"location"`
	Remote   bool   `json:"remote"`
	Pending  int    `json:"pending"`
	Modules  []struct {
		Module   string `json:"module"`
		Unsynced int    `json:"unsynced"`
	} `json:"modules"`
}

func status(t *testing.T, args ...string) statusJSON {
	t.Helper()
	out, err := execute(t, "", append([]string{"status", "--json"}, args...)...)
	if err != nil {
		t.Fatalf("status returned error: %v", err)
	}
	var s statusJSON
	if err := json.Unmarshal([]byte(out), &s); err != nil {
		t.Fatalf("status output is not valid JSON: %v\n%s", err, out)
	}
	return s
}

func TestCLI_Status_Offline(t *testing.T) {
	home := testEnv(t)

	s := status(t)
	if s.Remote {
		t.Error("remote should be false without a remote store")
	}
	if s.Profile != "default" {
		t.Errorf("profile = %q, want default", s.Profile)
	}
	if want := filepath.Join(home, "profiles", "default", "gatelog.db"); s.Location != want {
		t.Errorf("location = %q, want %q", s.Location, want)
	}
	if len(s.Modules) != 9 || s.Modules[0].Module != "settings" {
		t.Errorf("modules = %+v, want 9 starting with settings", s.Modules)
	}
}

func TestCLI_Status_Human(t *testing.T) {
	testEnv(t)
	cleanup := setMockTTY(false)
	defer cleanup()

	out, err := execute(t, "", "status")
	if err != nil {
		t.Fatalf("status returned error: %v", err)
	}
	for _, want := range []string{"Gatelog Status", "offline only", "Last sync:   never", "MODULE", "vehicle_entries"} {
		if !strings.Contains(out, want) {
			t.Errorf("output should contain %q:\n%s", want, out)
		}
	}
}

func TestCLI_Sync_NoRemote(t *testing.T) {
	testEnv(t)

	_, err := execute(t, "", "sync")
	if !errors.Is(err, gatelog.ErrNoRemote) {
		t.Fatalf("sync error = %v, want ErrNoRemote", err)
	}

	var buf bytes.Buffer
	cleanup := setMockTTY(false)
	defer cleanup()
	outputError(&buf, err)
	if !strings.Contains(buf.String(), "Suggestion:") {
		t.Errorf("error output should carry a suggestion:\n%s", buf.String())
	}
}

func TestCLI_Daemon_NoRemote(t *testing.T) {
	testEnv(t)

	_, err := execute(t, "", "daemon")
	if !errors.Is(err, gatelog.ErrNoRemote) {
		t.Fatalf("daemon error = %v, want ErrNoRemote", err)
	}
}

func TestCLI_Sync_RemoteRequiresOwner(t *testing.T) {
	testEnv(t)

	_, err := execute(t, "", "sync", "--remote-url", "http://127.0.0.1:1", "--api-key", "k")
	var ve *gatelog.ValidationError
	if !errors.As(err, &ve) || ve.Field != "OwnerID" {
		t.Fatalf("sync error = %v, want OwnerID validation error", err)
	}
}

func TestCLI_Settings_SetAndShow(t *testing.T) {
	testEnv(t)

	if _, err := execute(t, "", "settings", "--device", "Portão 2", "--theme", "dark"); err != nil {
		t.Fatalf("settings returned error: %v", err)
	}

	out, err := execute(t, "", "settings", "--json")
	if err != nil {
		t.Fatalf("settings returned error: %v", err)
	}
	var s struct {
		DeviceName string `json:"deviceName"`
		Theme      string `json:"theme"`
		Synced     bool   `json:"synced"`
	}
	if err := json.Unmarshal([]byte(out), &s); err != nil {
		t.Fatalf("output is not valid JSON: %v\n%s", err, out)
	}
	if s.DeviceName != "Portão 2" || s.Theme != "dark" || s.Synced {
		t.Errorf("settings = %+v, want device, theme updated and unsynced", s)
	}

	if st := status(t); st.Pending == 0 {
		t.Error("settings change should be pending")
	}
}

func TestCLI_Settings_InvalidTheme(t *testing.T) {
	testEnv(t)

	if _, err := execute(t, "", "settings", "--theme", "neon"); err == nil {
		t.Fatal("expected error for invalid theme")
	}
}

func TestCLI_Backup_ExportImportMerge(t *testing.T) {
	home := testEnv(t)
	backup := filepath.Join(home, "out", "backup.json")

	if _, err := execute(t, "", "settings", "--company", "ACME"); err != nil {
		t.Fatal(err)
	}
	if _, err := execute(t, "", "backup", "export", "-o", backup); err != nil {
		t.Fatalf("export returned error: %v", err)
	}

	data, err := os.ReadFile(backup)
	if err != nil {
		t.Fatalf("backup not written: %v", err)
	}
	var b gatelog.Backup
	if err := json.Unmarshal(data, &b); err != nil {
		t.Fatalf("backup is not valid JSON: %v", err)
	}
	if b.Version != gatelog.BackupVersion {
		t.Errorf("version = %q, want %q", b.Version, gatelog.BackupVersion)
	}
	if len(b.Data.Logs) == 0 {
		t.Error("backup should include the audit log")
	}

	out, err := execute(t, "", "backup", "import", backup, "--profile", "gate-2", "--json")
	if err != nil {
		t.Fatalf("import returned error: %v", err)
	}
	var res ImportOutput
	if err := json.Unmarshal([]byte(out), &res); err != nil {
		t.Fatalf("output is not valid JSON: %v\n%s", err, out)
	}
	if res.Strategy != "merge" {
		t.Errorf("strategy = %q, want merge", res.Strategy)
	}
}

func TestCLI_Backup_ReplaceNeedsConfirmation(t *testing.T) {
	home := testEnv(t)
	backup := filepath.Join(home, "backup.json")
	if _, err := execute(t, "", "backup", "export", "-o", backup); err != nil {
		t.Fatal(err)
	}

	out, err := execute(t, "no\n", "backup", "import", backup, "--strategy", "replace")
	if err != nil {
		t.Fatalf("import returned error: %v", err)
	}
	if !strings.Contains(out, "Aborted") {
		t.Errorf("replace without confirmation should abort:\n%s", out)
	}

	out, err = execute(t, "yes\n", "backup", "import", backup, "--strategy", "replace")
	if err != nil {
		t.Fatalf("import returned error: %v", err)
	}
	if !strings.Contains(out, "Imported") {
		t.Errorf("confirmed replace should import:\n%s", out)
	}
}

func TestCLI_Backup_InvalidStrategy(t *testing.T) {
	home := testEnv(t)
	path := filepath.Join(home, "b.json")
	if err := os.WriteFile(path, []byte(`{}`), 0o644); err != nil {
		t.Fatal(err)
	}

	_, err := execute(t, "", "backup", "import", path, "--strategy", "skip")
	if err == nil || !strings.Contains(err.Error(), "invalid strategy") {
		t.Fatalf("error = %v, want invalid strategy", err)
	}
}

func TestCLI_Config_Precedence(t *testing.T) {
	home := testEnv(t)
	cfg := "profile: from-file\noperator: Carlos\npull_window: 48h\n"
	if err := os.WriteFile(filepath.Join(home, "config.yaml"), []byte(cfg), 0o644); err != nil {
		t.Fatal(err)
	}

	if got := status(t).Profile; got != "from-file" {
		t.Errorf("file: profile = %q, want from-file", got)
	}

	t.Setenv("GATELOG_PROFILE", "from-env")
	if got := status(t).Profile; got != "from-env" {
		t.Errorf("env: profile = %q, want from-env", got)
	}

	if got := status(t, "--profile", "from-flag").Profile; got != "from-flag" {
		t.Errorf("flag: profile = %q, want from-flag", got)
	}
}

func TestCLI_Config_ExplicitFileMissing(t *testing.T) {
	home := testEnv(t)

	_, err := execute(t, "", "status", "--config", filepath.Join(home, "missing.toml"))
	if err == nil || !strings.Contains(err.Error(), "read config") {
		t.Fatalf("error = %v, want read config error", err)
	}
}

func TestCLI_ProfileList(t *testing.T) {
	testEnv(t)

	_ = status(t, "--profile", "alpha")
	_ = status(t, "--profile", "beta")

	out, err := execute(t, "", "profile", "list", "--json", "--profile", "beta")
	if err != nil {
		t.Fatalf("profile list returned error: %v", err)
	}
	var entries []ProfileEntry
	if err := json.Unmarshal([]byte(out), &entries); err != nil {
		t.Fatalf("output is not valid JSON: %v\n%s", err, out)
	}
	if len(entries) != 2 || entries[0].ID != "alpha" || entries[1].ID != "beta" {
		t.Fatalf("entries = %+v, want alpha and beta", entries)
	}
	if entries[0].Active || !entries[1].Active {
		t.Errorf("active flags = %v/%v, want beta active", entries[0].Active, entries[1].Active)
	}
}

func TestScrubSensitiveData(t *testing.T) {
	testEnv(t)
	t.Setenv("GATELOG_API_KEY", "secret-key-123")

	got := scrubSensitiveData("request failed: apikey=secret-key-123")
	if strings.Contains(got, "secret-key-123") {
		t.Errorf("secret not scrubbed: %q", got)
	}
	if !strings.Contains(got, "[REDACTED]") {
		t.Errorf("expected redaction marker: %q", got)
	}
}
