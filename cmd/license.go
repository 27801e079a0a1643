package cmd

import (
	"github.com/spf13/cobra"

	"airsync/state"
)

var licenseCmd = &cobra.Command{
	Use:   "license",
	Short: "Show or verify the AirSync+ license",
}

var licenseShowCmd = &cobra.Command{
	Use:   "show",
	Short: "Print the cached license",
	Args:  cobra.NoArgs,
	RunE: func(cmd *cobra.Command, args []string) error {
		st, err := openState(state.Options{})
		if err != nil {
			return err
		}
		printLicense(cmd, st)
		return nil
	},
}

var licenseCheckCmd = &cobra.Command{
	Use:   "check [key]",
	Short: "Verify a key, or re-verify the cached one",
	Long: `Verify a license key against the store and cache the result.

Without a key the cached key is verified again. A rejected key clears
AirSync+.`,
	Args: cobra.MaximumNArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		st, err := openState(state.Options{})
		if err != nil {
			return err
		}
		var key string
		if len(args) == 1 {
			key = args[0]
		}
		st.RefreshLicense(cmd.Context(), key)
		printLicense(cmd, st)
		return nil
	},
}

func init() {
	licenseCmd.AddCommand(licenseShowCmd)
	licenseCmd.AddCommand(licenseCheckCmd)
	rootCmd.AddCommand(licenseCmd)
}

func printLicense(cmd *cobra.Command, st *state.Store) {
	w := cmd.OutOrStdout()
	details, plus := st.License()

	printHeader(w, "License")
	if details == nil {
		printRows(w, []row{{label: "AirSync+", value: yesNo(plus)}})
		return
	}
	printRows(w, []row{
		{label: "AirSync+", value: yesNo(plus)},
		{label: "Email", value: details.Email},
		{label: "Product", value: details.ProductName},
		{label: "Order", value: details.OrderNumber},
		{label: "Key", value: truncate(details.Key, 12)},
	})
}
