package main

import (
	"fmt"
	"io"
	"os"
	"sort"
	"strings"

	"github.com/annel0/layoutd/internal/cache"
	"github.com/annel0/layoutd/internal/decoder"
	"github.com/annel0/layoutd/internal/history"
	"github.com/annel0/layoutd/internal/layout"
	"github.com/spf13/cobra"
)

var decodeCmd = &cobra.Command{
	Use:   "decode <record|share-code|->",
	Short: "Decode a layout and print its summary and grid",
	Args:  cobra.ExactArgs(1),
	RunE:  runDecode,
}

func runDecode(cmd *cobra.Command, args []string) error {
	return decodeCommand(cmd, args[0], true)
}

func decodeCommand(cmd *cobra.Command, arg string, summary bool) error {
	input, err := readInput(arg, cmd.InOrStdin())
	if err != nil {
		return err
	}

	h, err := openHistory()
	if err != nil {
		return err
	}
	if h != nil {
		defer h.Close()
	}

	d := decoder.New(decoder.Options{MaxDimension: maxDimension})
	l, err := decodeAndRecord(d, h, input)
	if err != nil {
		return err
	}

	out := cmd.OutOrStdout()
	if summary {
		printSummary(out, l.Summarize())
	}
	return l.Render(out)
}

// readInput читает аргумент или stdin при "-"
func readInput(arg string, stdin io.Reader) (string, error) {
	if arg != "-" {
		return strings.TrimSpace(arg), nil
	}
	data, err := io.ReadAll(stdin)
	if err != nil {
		return "", fmt.Errorf("read stdin: %w", err)
	}
	return strings.TrimSpace(string(data)), nil
}

// decodeAndRecord декодирует вход и пишет попытку в историю (если она включена).
// Ошибка декодирования возвращается с меткой вида ошибки в начале.
func decodeAndRecord(d *decoder.Decoder, h *history.History, input string) (*layout.Layout, error) {
	entry := history.Entry{Source: "share_code"}
	if decoder.LooksLikeRecord(input) {
		entry.Source = "record"
	}

	record, err := decoder.Normalize(input)
	var l *layout.Layout
	if err == nil {
		entry.CacheKey = cache.KeyForRecord(record)
		l, err = d.DecodeV2(record)
	}

	if err != nil {
		entry.ErrorKind = decoder.Classify(err)
		entry.Message = err.Error()
	} else {
		entry.Height, entry.Width = l.Height(), l.Width()
	}

	if h != nil {
		if herr := h.Record(entry); herr != nil {
			fmt.Fprintf(os.Stderr, "warning: history not recorded: %v\n", herr)
		}
	}

	if err != nil {
		return nil, fmt.Errorf("%s: %w", entry.ErrorKind, err)
	}
	return l, nil
}

func printSummary(w io.Writer, s layout.Summary) {
	fmt.Fprintf(w, "Size: %dx%d\n", s.Height, s.Width)
	printCounts(w, "Squares", s.Squares)
	printCounts(w, "Walls", s.Walls)
	fmt.Fprintln(w)
}

func printCounts(w io.Writer, title string, counts map[string]int) {
	names := make([]string, 0, len(counts))
	for name := range counts {
		names = append(names, name)
	}
	sort.Strings(names)

	fmt.Fprintf(w, "%s:\n", title)
	for _, name := range names {
		fmt.Fprintf(w, "  %-12s %d\n", name, counts[name])
	}
}
