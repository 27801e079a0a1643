package cmd

import (
	"fmt"
	"path/filepath"

	"github.com/spf13/cobra"

	"airsync/discovery"
	"airsync/state"
)

var (
	pairIP   string
	pairPort int
)

var pairCmd = &cobra.Command{
	Use:   "pair",
	Short: "Show the QR code the phone scans to connect",
	Long: `Print the pairing URI and its QR code, and save the code as
qr_code.png in the data directory.`,
	Args: cobra.NoArgs,
	RunE: runPair,
}

func init() {
	pairCmd.Flags().StringVar(&pairIP, "ip", "", "Advertised address (default: detected LAN address)")
	pairCmd.Flags().IntVarP(&pairPort, "port", "p", 0, "Advertised port (default: configured port, or "+portEnv+")")
	rootCmd.AddCommand(pairCmd)
}

func runPair(cmd *cobra.Command, args []string) error {
	st, err := openState(state.Options{})
	if err != nil {
		return err
	}
	prefs := st.Preferences()

	port, err := resolvePort(pairPort, prefs.Port)
	if err != nil {
		return err
	}
	identity := discovery.LocalIdentity(prefs.DeviceName, port)
	if pairIP != "" {
		identity.IPAddress = pairIP
	}

	uri, err := discovery.PairingURI(identity, prefs.IsPlus)
	if err != nil {
		return err
	}
	pngPath := filepath.Join(appPaths.DataDir, "qr_code.png")
	art, err := discovery.PairingQR(uri, pngPath)
	if err != nil {
		return err
	}

	out := cmd.OutOrStdout()
	printHeader(out, "Scan with the AirSync app")
	fmt.Fprint(out, art)
	printRows(out, []row{
		{label: "URI", value: uri},
		{label: "Image", value: pngPath},
	})
	return nil
}
