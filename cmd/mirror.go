package cmd

import (
	"errors"
	"fmt"

	"github.com/spf13/cobra"

	"airsync/mirror"
	"airsync/state"
	"airsync/storage"
)

// ErrNoKnownDevice is returned by mirror when history has no usable device.
var ErrNoKnownDevice = errors.New("no known device; connect the phone once or pass --ip")

var (
	mirrorDevice  string
	mirrorIP      string
	mirrorDesktop bool
	mirrorApp     string
)

var mirrorCmd = &cobra.Command{
	Use:   "mirror",
	Short: "Mirror the phone screen with scrcpy",
	Long: `Connect adb over the network and launch scrcpy against a phone.

Without --ip the address comes from history: the device named by --device,
or the most recently seen one.`,
	Args: cobra.NoArgs,
	RunE: runMirror,
}

func init() {
	mirrorCmd.Flags().StringVarP(&mirrorDevice, "device", "d", "", "Device name from history")
	mirrorCmd.Flags().StringVar(&mirrorIP, "ip", "", "Phone IP address")
	mirrorCmd.Flags().BoolVar(&mirrorDesktop, "desktop", false, "Open a desktop-sized virtual display (default: mirroring_plus)")
	mirrorCmd.Flags().StringVar(&mirrorApp, "app", "", "Launch a single app package on its own display")
	rootCmd.AddCommand(mirrorCmd)
}

func runMirror(cmd *cobra.Command, args []string) error {
	st, err := openState(state.Options{})
	if err != nil {
		return err
	}
	prefs := st.Preferences()

	name, ip := mirrorDevice, mirrorIP
	if ip == "" {
		device, err := lookupDevice(mirrorDevice)
		if err != nil {
			return err
		}
		name, ip = device.Name, device.IPAddress
	}
	if name == "" {
		name = ip
	}

	launch := mirror.LaunchOptions{Desktop: prefs.MirroringPlus, Package: mirrorApp}
	if cmd.Flags().Changed("desktop") {
		launch.Desktop = mirrorDesktop
	}

	controller := mirror.NewController(mirror.Options{Sink: st, Logger: logger})
	out := cmd.OutOrStdout()

	output, connected := controller.Connect(cmd.Context(), ip, prefs.ADBPort)
	fmt.Fprintln(out, dimStyle.Render(output))
	if !connected {
		return fmt.Errorf("adb connect %s failed", ip)
	}

	result := controller.StartMirroring(ip, prefs.ADBPort, name, launch)
	fmt.Fprintln(out, valueStyle.Render(result))
	return nil
}

func lookupDevice(name string) (*storage.Device, error) {
	db, err := storage.OpenPath(appPaths.DatabaseFile)
	if err != nil {
		return nil, fmt.Errorf("open history: %w", err)
	}
	defer db.Close()

	if name != "" {
		device, err := db.FindDeviceByName(name)
		if errors.Is(err, storage.ErrNotFound) {
			return nil, fmt.Errorf("%w: %q", ErrNoKnownDevice, name)
		}
		return device, err
	}

	devices, err := db.ListDevices()
	if err != nil {
		return nil, err
	}
	if len(devices) == 0 {
		return nil, ErrNoKnownDevice
	}
	return &devices[0], nil
}
