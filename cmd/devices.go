package cmd

import (
	"fmt"
	"strconv"
	"strings"
	"text/tabwriter"
	"time"

	"github.com/dustin/go-humanize"
	"github.com/spf13/cobra"

	"airsync/storage"
)

var devicesCmd = &cobra.Command{
	Use:   "devices",
	Short: "List phones that have connected",
	Args:  cobra.NoArgs,
	RunE:  runDevices,
}

func init() {
	rootCmd.AddCommand(devicesCmd)
}

func runDevices(cmd *cobra.Command, args []string) error {
	db, err := storage.OpenPath(appPaths.DatabaseFile)
	if err != nil {
		return fmt.Errorf("open history: %w", err)
	}
	defer db.Close()

	devices, err := db.ListDevices()
	if err != nil {
		return err
	}

	out := cmd.OutOrStdout()
	if len(devices) == 0 {
		printHeader(out, "No devices yet")
		return nil
	}
	printHeader(out, fmt.Sprintf("%d device(s)", len(devices)))

	w := tabwriter.NewWriter(out, 0, 0, 3, ' ', 0)
	fmt.Fprintln(w, "NAME\tADDRESS\tCONNECTS\tFIRST SEEN\tLAST SEEN\t")
	fmt.Fprintln(w, strings.Repeat("─", 80))
	for _, device := range devices {
		fmt.Fprintf(w, "%s\t%s\t%s\t%s\t%s\t\n",
			truncate(device.Name, 30),
			device.IPAddress+":"+strconv.Itoa(device.Port),
			strconv.Itoa(device.ConnectCount),
			humanize.Time(time.UnixMilli(device.FirstSeen)),
			humanize.Time(time.UnixMilli(device.LastSeen)),
		)
	}
	return w.Flush()
}
