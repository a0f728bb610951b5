package commands

import (
	"fmt"

	"github.com/spf13/cobra"
)

var purgeKeep int

var purgeCmd = &cobra.Command{
	Use:   "purge",
	Short: "Delete old sessions, keeping the most recent N",
	RunE:  runPurge,
}

func init() {
	rootCmd.AddCommand(purgeCmd)

	purgeCmd.Flags().IntVar(&purgeKeep, "keep", 100,
		"Number of most recently started sessions to keep")
}

func runPurge(cmd *cobra.Command, args []string) error {
	_, mgr, cleanup, err := setup()
	if err != nil {
		return err
	}
	defer cleanup()

	deleted, err := mgr.PurgeKeepingLatest(cmd.Context(), purgeKeep)
	if err != nil {
		return err
	}
	fmt.Printf("Deleted %d sessions, kept the %d most recent\n", deleted, purgeKeep)
	return nil
}
