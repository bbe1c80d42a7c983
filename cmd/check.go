package cmd

import (
	"fmt"
	"os"

	"curator/internal"
	"github.com/spf13/cobra"
)

var checkCmd = &cobra.Command{
	Use:   "check [destination]",
	Short: "Verify recorded checksums against the files in the library",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		dest := args[0]

		info, err := os.Stat(dest)
		if err != nil || !info.IsDir() {
			return fmt.Errorf("destination does not exist or is not a directory: %s", dest)
		}

		conf, err := internal.LoadConfig()
		if err != nil {
			return err
		}

		logger, err := internal.NewLogger("curator.log")
		if err != nil {
			return err
		}
		defer logger.Close()

		store, err := internal.OpenStore(dest)
		if err != nil {
			return err
		}
		defer store.Close()

		sorter, err := internal.NewSorter(conf, logger, store, nil, true)
		if err != nil {
			return err
		}
		defer sorter.Close()

		verified, bad, err := sorter.CheckChecksums()
		if err != nil {
			return err
		}

		fmt.Printf("SUMMARY: %d files checked in %s.\n", verified, dest)
		if len(bad) > 0 {
			fmt.Printf("ERROR: %d files failed verification:\n", len(bad))
			for _, p := range bad {
				fmt.Printf("  %s\n", p)
			}
			return fmt.Errorf("%d files failed verification", len(bad))
		}
		return nil
	},
}

func init() {
	rootCmd.AddCommand(checkCmd)
}
