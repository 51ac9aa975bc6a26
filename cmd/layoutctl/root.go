package main

import (
	"fmt"
	"os"
	"path/filepath"

	"github.com/annel0/layoutd/internal/history"
	"github.com/spf13/cobra"
)

var (
	historyPath  string
	noHistory    bool
	maxDimension int
)

var rootCmd = &cobra.Command{
	Use:           "layoutctl",
	Short:         "Decode and inspect v2 layout records",
	SilenceUsage:  true,
	SilenceErrors: true,
}

func Execute() {
	if err := rootCmd.Execute(); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}

func init() {
	rootCmd.PersistentFlags().StringVar(&historyPath, "history", "", "path to the history database (default ~/.layoutd/history.db)")
	rootCmd.PersistentFlags().BoolVar(&noHistory, "no-history", false, "do not record decode attempts")
	rootCmd.PersistentFlags().IntVar(&maxDimension, "max-dimension", 0, "largest accepted height or width (0 = default)")

	rootCmd.AddCommand(decodeCmd)
	rootCmd.AddCommand(renderCmd)
	rootCmd.AddCommand(historyCmd)
	rootCmd.AddCommand(versionCmd)
}

// openHistory возвращает nil, если история отключена
func openHistory() (*history.History, error) {
	if noHistory {
		return nil, nil
	}
	path := historyPath
	if path == "" {
		home, err := os.UserHomeDir()
		if err != nil {
			return nil, err
		}
		dir := filepath.Join(home, ".layoutd")
		if err := os.MkdirAll(dir, 0o755); err != nil {
			return nil, err
		}
		path = filepath.Join(dir, "history.db")
	}
	return history.New(path)
}
