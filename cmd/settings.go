package cmd

import (
	"encoding/json"
	"errors"
	"fmt"
	"sort"
	"strconv"
	"strings"

	"github.com/spf13/cobra"
	"gopkg.in/yaml.v3"

	"airsync/config"
	"airsync/state"
)

var (
	// ErrUnknownSetting is returned by settings set for an unsupported key.
	ErrUnknownSetting = errors.New("unknown setting")
	// ErrUnknownFormat is returned by settings show for an unsupported --format.
	ErrUnknownFormat = errors.New("unknown output format")
)

var settingsFormat string

var settingsCmd = &cobra.Command{
	Use:   "settings",
	Short: "Show or change preferences",
}

var settingsShowCmd = &cobra.Command{
	Use:   "show",
	Short: "Print the current preferences",
	Args:  cobra.NoArgs,
	RunE:  runSettingsShow,
}

var settingsSetCmd = &cobra.Command{
	Use:   "set <key> <value>",
	Short: "Change one preference",
	Long: `Change one preference and write settings.json.

Keys: ` + strings.Join(settingKeys(), ", ") + `

A running serve picks the change up from the file.`,
	Args: cobra.ExactArgs(2),
	RunE: runSettingsSet,
}

func init() {
	settingsShowCmd.Flags().StringVarP(&settingsFormat, "format", "f", "table", "Output format: table, json or yaml")
	settingsCmd.AddCommand(settingsShowCmd)
	settingsCmd.AddCommand(settingsSetCmd)
	rootCmd.AddCommand(settingsCmd)
}

// setters parse a raw value and return the mutation to apply.
var setters = map[string]func(string) (func(*config.Preferences), error){
	"device_name": func(raw string) (func(*config.Preferences), error) {
		name := strings.TrimSpace(raw)
		if name == "" {
			return nil, fmt.Errorf("%w: empty device name", config.ErrInvalidPreference)
		}
		return func(p *config.Preferences) { p.DeviceName = name }, nil
	},
	"port": func(raw string) (func(*config.Preferences), error) {
		port, err := strconv.Atoi(raw)
		if err != nil {
			return nil, fmt.Errorf("%w: port %q", config.ErrInvalidPreference, raw)
		}
		return func(p *config.Preferences) { p.Port = port }, nil
	},
	"adb_port": func(raw string) (func(*config.Preferences), error) {
		port, err := strconv.Atoi(raw)
		if err != nil {
			return nil, fmt.Errorf("%w: adb port %q", config.ErrInvalidPreference, raw)
		}
		return func(p *config.Preferences) { p.ADBPort = port }, nil
	},
	"mirroring_plus": boolSetter(func(p *config.Preferences, v bool) { p.MirroringPlus = v }),
	"adb_enabled":    boolSetter(func(p *config.Preferences, v bool) { p.ADBEnabled = v }),
	"is_clipboard_sync_enabled": boolSetter(func(p *config.Preferences, v bool) {
		p.ClipboardSyncEnabled = v
	}),
	"window_opacity": func(raw string) (func(*config.Preferences), error) {
		value, err := strconv.ParseFloat(raw, 64)
		if err != nil {
			return nil, fmt.Errorf("%w: window opacity %q", config.ErrInvalidPreference, raw)
		}
		return func(p *config.Preferences) { p.WindowOpacity = value }, nil
	},
}

func boolSetter(set func(*config.Preferences, bool)) func(string) (func(*config.Preferences), error) {
	return func(raw string) (func(*config.Preferences), error) {
		value, err := strconv.ParseBool(raw)
		if err != nil {
			return nil, fmt.Errorf("%w: expected true or false, got %q", config.ErrInvalidPreference, raw)
		}
		return func(p *config.Preferences) { set(p, value) }, nil
	}
}

func settingKeys() []string {
	keys := make([]string, 0, len(setters))
	for key := range setters {
		keys = append(keys, key)
	}
	sort.Strings(keys)
	return keys
}

func runSettingsShow(cmd *cobra.Command, args []string) error {
	st, err := openState(state.Options{})
	if err != nil {
		return err
	}
	prefs := st.Preferences()
	out := cmd.OutOrStdout()

	switch strings.ToLower(settingsFormat) {
	case "", "table":
		printPreferences(cmd, prefs)
	case "json":
		encoder := json.NewEncoder(out)
		encoder.SetIndent("", "  ")
		return encoder.Encode(prefs)
	case "yaml":
		encoder := yaml.NewEncoder(out)
		encoder.SetIndent(2)
		if err := encoder.Encode(prefs); err != nil {
			return err
		}
		return encoder.Close()
	default:
		return fmt.Errorf("%w %q", ErrUnknownFormat, settingsFormat)
	}
	return nil
}

func runSettingsSet(cmd *cobra.Command, args []string) error {
	key := strings.ToLower(strings.TrimSpace(args[0]))
	setter, ok := setters[key]
	if !ok {
		return fmt.Errorf("%w %q (valid: %s)", ErrUnknownSetting, args[0], strings.Join(settingKeys(), ", "))
	}
	apply, err := setter(args[1])
	if err != nil {
		return err
	}

	st, err := openState(state.Options{})
	if err != nil {
		return err
	}
	if err := st.UpdatePreferences(apply); err != nil {
		return err
	}
	logger.Info().Str("key", key).Str("value", args[1]).Msg("preference updated")

	printPreferences(cmd, st.Preferences())
	return nil
}

func printPreferences(cmd *cobra.Command, prefs *config.Preferences) {
	w := cmd.OutOrStdout()
	printHeader(w, "Preferences")
	printRows(w, []row{
		{label: "device_name", value: prefs.DeviceName},
		{label: "port", value: strconv.Itoa(prefs.Port)},
		{label: "adb_port", value: strconv.Itoa(prefs.ADBPort)},
		{label: "mirroring_plus", value: strconv.FormatBool(prefs.MirroringPlus)},
		{label: "adb_enabled", value: strconv.FormatBool(prefs.ADBEnabled)},
		{label: "clipboard_sync", value: strconv.FormatBool(prefs.ClipboardSyncEnabled)},
		{label: "window_opacity", value: strconv.FormatFloat(prefs.WindowOpacity, 'g', -1, 64)},
		{label: "is_plus", value: strconv.FormatBool(prefs.IsPlus)},
		{label: "cached icons", value: strconv.Itoa(len(prefs.AppIcons))},
		{label: "wallpapers", value: strconv.Itoa(len(prefs.DeviceWallpapers))},
		{label: "settings file", value: appPaths.SettingsFile},
	})
}
