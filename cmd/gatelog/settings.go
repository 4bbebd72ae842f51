package main

import (
	"fmt"

	"github.com/hyperengineering/gatelog/model"
	"github.com/spf13/cobra"
)

var settingsCmd = &cobra.Command{
	Use:   "settings",
	Short: "Show or change the station settings",
	Long: `Show the station settings, or change them with flags. Changed settings
are pushed on the next sync cycle and win over the remote copy until then.`,
	Example: `  gatelog settings
  gatelog settings --device "Portão 2" --theme dark`,
	Args: cobra.NoArgs,
	RunE: runSettings,
}

var (
	settingsCompany  string
	settingsDevice   string
	settingsTheme    string
	settingsFontSize string
)

func init() {
	f := settingsCmd.Flags()
	f.StringVar(&settingsCompany, "company", "", "Company name shown on reports")
	f.StringVar(&settingsDevice, "device", "", "Name of this station")
	f.StringVar(&settingsTheme, "theme", "", "Theme: light, dark")
	f.StringVar(&settingsFontSize, "font-size", "", "Font size: small, medium, large")
	rootCmd.AddCommand(settingsCmd)
}

func runSettings(cmd *cobra.Command, args []string) error {
	switch settingsTheme {
	case "", "light", "dark":
	default:
		return fmt.Errorf("invalid theme %q: must be 'light' or 'dark'", settingsTheme)
	}
	switch settingsFontSize {
	case "", "small", "medium", "large":
	default:
		return fmt.Errorf("invalid font size %q: must be 'small', 'medium' or 'large'", settingsFontSize)
	}

	client, _, err := openClient(cmd)
	if err != nil {
		return err
	}
	defer client.Close()

	settings, err := client.Settings().Get()
	if err != nil {
		return fmt.Errorf("read settings: %w", err)
	}

	changed := false
	for _, c := range []struct {
		value string
		field *string
	}{
		{settingsCompany, &settings.CompanyName},
		{settingsDevice, &settings.DeviceName},
		{settingsTheme, &settings.Theme},
		{settingsFontSize, &settings.FontSize},
	} {
		if c.value != "" && c.value != *c.field {
			*c.field = c.value
			changed = true
		}
	}
	if changed {
		if settings, err = client.Settings().Save(settings); err != nil {
			return fmt.Errorf("save settings: %w", err)
		}
	}

	if outputJSON {
		return outputAsJSON(cmd, settings)
	}
	return outputSettingsHuman(cmd, settings, changed)
}

func outputSettingsHuman(cmd *cobra.Command, s model.Settings, changed bool) error {
	out := cmd.OutOrStdout()
	if changed {
		printSuccess(out, "Settings saved")
	}
	printField(out, "Company", s.CompanyName)
	printField(out, "Device", s.DeviceName)
	printField(out, "Theme", s.Theme)
	printField(out, "Font size", s.FontSize)
	synced := "yes"
	if !s.Synced {
		synced = "pending"
	}
	printField(out, "Synced", synced)

	if len(s.SectorContacts) > 0 {
		fmt.Fprintln(out)
		rows := make([][]string, 0, len(s.SectorContacts))
		for _, c := range s.SectorContacts {
			rows = append(rows, []string{c.Name, c.Number})
		}
		fmt.Fprintln(out, renderTable([]string{"SECTOR", "NUMBER"}, rows))
	}
	return nil
}
