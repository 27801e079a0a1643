package cmd

import (
	"fmt"
	"strings"
	"text/tabwriter"
	"time"

	"github.com/dustin/go-humanize"
	"github.com/spf13/cobra"

	"airsync/storage"
)

var (
	historyLimit int
	historyPrune bool
)

var historyCmd = &cobra.Command{
	Use:   "history",
	Short: "Show received notifications",
	Long: `Show notifications received from the phone, newest first.

Entries older than the retention window are removed by a running serve,
or immediately with --prune.`,
	Args: cobra.NoArgs,
	RunE: runHistory,
}

func init() {
	historyCmd.Flags().IntVarP(&historyLimit, "limit", "n", 20, "Maximum entries to show (0 for all)")
	historyCmd.Flags().BoolVar(&historyPrune, "prune", false, "Remove entries older than the retention window first")
	rootCmd.AddCommand(historyCmd)
}

func runHistory(cmd *cobra.Command, args []string) error {
	db, err := storage.OpenPath(appPaths.DatabaseFile)
	if err != nil {
		return fmt.Errorf("open history: %w", err)
	}
	defer db.Close()

	out := cmd.OutOrStdout()
	if historyPrune {
		cutoff := time.Now().Add(-db.NotificationRetention()).UnixMilli()
		removed, err := db.PruneNotifications(cutoff)
		if err != nil {
			return err
		}
		fmt.Fprintln(out, dimStyle.Render(fmt.Sprintf("Pruned %s entries", humanize.Comma(removed))))
	}

	records, err := db.ListNotifications(historyLimit)
	if err != nil {
		return err
	}
	if len(records) == 0 {
		printHeader(out, "No notifications")
		return nil
	}
	printHeader(out, fmt.Sprintf("%d notification(s)", len(records)))

	w := tabwriter.NewWriter(out, 0, 0, 3, ' ', 0)
	fmt.Fprintln(w, "RECEIVED\tAPP\tTITLE\tBODY\tDISMISSED\t")
	fmt.Fprintln(w, strings.Repeat("─", 100))
	for _, record := range records {
		dismissed := "-"
		if record.DismissedAt != nil {
			dismissed = humanize.Time(time.UnixMilli(*record.DismissedAt))
		}
		fmt.Fprintf(w, "%s\t%s\t%s\t%s\t%s\t\n",
			humanize.Time(time.UnixMilli(record.ReceivedAt)),
			truncate(record.App, 20),
			truncate(record.Title, 30),
			truncate(record.Body, 40),
			dismissed,
		)
	}
	return w.Flush()
}
