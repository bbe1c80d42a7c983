package cmd

import (
	"fmt"
	"os"
	"os/signal"
	"path/filepath"
	"syscall"

	"curator/internal"
	"github.com/spf13/cobra"
)

var watchCmd = &cobra.Command{
	Use:   "watch [source] [destination]",
	Short: "Watch source and sort new media files as they appear",
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

		sorter, err := internal.NewSorter(conf, logger, store, nil, false)
		if err != nil {
			return err
		}
		defer sorter.Close()

		watcher, err := internal.NewWatcher(source, conf.MediaExtensions())
		if err != nil {
			return err
		}
		defer watcher.Close()

		fmt.Printf("Watching %s, sorting into %s\n", source, dest)

		summary := internal.NewSummary(dest)
		sig := make(chan os.Signal, 1)
		signal.Notify(sig, syscall.SIGINT, syscall.SIGTERM)

		for {
			select {
			case ev := <-watcher.Events():
				subdirs, relErr := filepath.Rel(source, filepath.Dir(ev.Path))
				if relErr != nil || subdirs == "." {
					subdirs = ""
				}
				f := internal.SourceFile{Path: ev.Path, Subdirs: subdirs}
				if err := sorter.SortSingle(f, dest, summary); err != nil {
					logger.Error("failed to sort %s: %v", ev.Path, err)
				}
			case err := <-watcher.Errors():
				logger.Error("watch error: %v", err)
			case <-sig:
				fmt.Print(summary.Report())
				return nil
			}
		}
	},
}

func init() {
	watchCmd.Flags().StringVar(&pathFormatFlag, "path-format", "", "Path template for sorted files")
	watchCmd.Flags().BoolVar(&moveFlag, "move", false, "Move files instead of copying")
	watchCmd.Flags().BoolVarP(&verboseFlag, "verbose", "v", false, "Echo warnings and errors to stderr")

	rootCmd.AddCommand(watchCmd)
}
