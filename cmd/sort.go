package cmd

import (
	"fmt"
	"os"

	"curator/internal"
	"github.com/spf13/cobra"
)

var (
	pathFormatFlag string
	dayBeginsFlag  int
	moveFlag       bool
	dryRunFlag     bool
	albumFlag      bool
	removeDupFlag  bool
	maxDeepFlag    int
	useExifTool    bool
	verboseFlag    bool
)

var sortCmd = &cobra.Command{
	Use:   "sort [source] [destination]",
	Short: "Sort media files from source into the destination library",
	Args:  cobra.ExactArgs(2),
	RunE: func(cmd *cobra.Command, args []string) error {
		source, dest := args[0], args[1]

		info, err := os.Stat(source)
		if err != nil || !info.IsDir() {
			return fmt.Errorf("source does not exist or is not a directory: %s", source)
		}

		conf, err := internal.LoadConfig()
		if err != nil {
			return err
		}
		applyFlags(cmd, conf)
		if err := conf.Validate(); err != nil {
			return err
		}

		logger, err := internal.NewLogger("curator.log")
		if err != nil {
			return err
		}
		defer logger.Close()
		logger.SetVerbose(verboseFlag)

		store, err := internal.OpenStore(dest)
		if err != nil {
			return err
		}
		defer store.Close()

		sorter, err := internal.NewSorter(conf, logger, store, nil, dryRunFlag)
		if err != nil {
			return err
		}
		defer sorter.Close()

		files, err := sorter.ScanFiles(source)
		if err != nil {
			return err
		}

		fmt.Printf("Found %d media files\n", len(files))
		if dryRunFlag {
			fmt.Println("Dry run mode: no files will be placed")
		}

		var session *internal.RunSession
		if !dryRunFlag {
			session, err = internal.NewRunSession(dest)
			if err != nil {
				return err
			}
			defer session.Close()
			session.LogRunStart(source, conf.Mode, len(files))
		}

		summary := internal.NewSummary(dest)
		if err := sorter.SortFiles(files, dest, session, summary); err != nil {
			return err
		}

		if session != nil {
			session.LogRunEnd(summary.Moved+summary.Copied, summary.SkippedIdentical, summary.Failed)
		}
		fmt.Print(summary.Report())

		if summary.HasErrors() {
			return fmt.Errorf("%d files failed", summary.Failed)
		}
		return nil
	},
}

// applyFlags overlays explicitly set flags onto the loaded config.
func applyFlags(cmd *cobra.Command, conf *internal.Config) {
	if cmd.Flags().Changed("path-format") {
		conf.PathFormat = pathFormatFlag
	}
	if cmd.Flags().Changed("day-begins") {
		conf.DayBegins = dayBeginsFlag
	}
	if cmd.Flags().Changed("album-from-folder") {
		conf.AlbumFromFolder = albumFlag
	}
	if cmd.Flags().Changed("remove-duplicates") {
		conf.RemoveDuplicates = removeDupFlag
	}
	if cmd.Flags().Changed("max-deep") {
		conf.MaxDeep = maxDeepFlag
	}
	if cmd.Flags().Changed("exiftool") {
		conf.UseExifTool = useExifTool
	}
	if moveFlag {
		conf.Mode = "move"
	}
}

func init() {
	sortCmd.Flags().StringVar(&pathFormatFlag, "path-format", "", "Path template for sorted files")
	sortCmd.Flags().IntVar(&dayBeginsFlag, "day-begins", 0, "Hour at which a day starts for date grouping (0-23)")
	sortCmd.Flags().BoolVar(&moveFlag, "move", false, "Move files instead of copying")
	sortCmd.Flags().BoolVar(&dryRunFlag, "dry-run", false, "Resolve everything without touching files")
	sortCmd.Flags().BoolVar(&albumFlag, "album-from-folder", false, "Use the containing folder name as album fallback")
	sortCmd.Flags().BoolVar(&removeDupFlag, "remove-duplicates", false, "Remove sources whose content already exists at the destination")
	sortCmd.Flags().IntVar(&maxDeepFlag, "max-deep", -1, "Maximum recursion depth when scanning (-1 for unlimited)")
	sortCmd.Flags().BoolVar(&useExifTool, "exiftool", false, "Force to use exiftool binary")
	sortCmd.Flags().BoolVarP(&verboseFlag, "verbose", "v", false, "Echo warnings and errors to stderr")

	rootCmd.AddCommand(sortCmd)
}
