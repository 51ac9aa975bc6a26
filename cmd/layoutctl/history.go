package main

import (
	"errors"
	"fmt"
	"io"

	"github.com/annel0/layoutd/internal/history"
	"github.com/spf13/cobra"
)

var historyLimit int

var historyCmd = &cobra.Command{
	Use:   "history",
	Short: "Show recent decode attempts",
	RunE:  runHistory,
}

func init() {
	historyCmd.Flags().IntVar(&historyLimit, "limit", 20, "number of entries to show")
}

func runHistory(cmd *cobra.Command, args []string) error {
	if noHistory {
		return errors.New("history is disabled")
	}
	h, err := openHistory()
	if err != nil {
		return err
	}
	defer h.Close()

	entries, err := h.Recent(historyLimit)
	if err != nil {
		return err
	}
	printHistory(cmd.OutOrStdout(), entries)
	return nil
}

func printHistory(w io.Writer, entries []history.Entry) {
	if len(entries) == 0 {
		fmt.Fprintln(w, "No decode attempts recorded.")
		return
	}
	for _, e := range entries {
		ts := e.Time.Local().Format("2006-01-02 15:04:05")
		if e.OK() {
			fmt.Fprintf(w, "%s  %-10s ok     %dx%d  %s\n", ts, e.Source, e.Height, e.Width, e.CacheKey)
			continue
		}
		fmt.Fprintf(w, "%s  %-10s %s: %s\n", ts, e.Source, e.ErrorKind, e.Message)
	}
}
