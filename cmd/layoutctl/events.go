package main

import (
	"context"
	"fmt"
	"io"
	"os"
	"os/signal"
	"sort"
	"strings"
	"syscall"
	"time"

	"github.com/annel0/layoutd/internal/eventbus"
	"github.com/spf13/cobra"
)

const timeFormat = "2006-01-02T15:04:05Z"

var (
	eventsNatsURL string
	eventsStream  string
	eventsTypes   string
	eventsLimit   int
	eventsFollow  bool
)

var eventsCmd = &cobra.Command{
	Use:   "events",
	Short: "Inspect layout events on the JetStream bus",
}

var eventsTailCmd = &cobra.Command{
	Use:   "tail",
	Short: "Print events from the stream",
	RunE:  runEventsTail,
}

var eventsTypesCmd = &cobra.Command{
	Use:   "types",
	Short: "List known event types",
	Run: func(cmd *cobra.Command, args []string) {
		for _, t := range eventbus.EventTypes() {
			fmt.Fprintln(cmd.OutOrStdout(), t)
		}
	},
}

func init() {
	eventsTailCmd.Flags().StringVar(&eventsNatsURL, "nats", "nats://127.0.0.1:4222", "NATS server URL")
	eventsTailCmd.Flags().StringVar(&eventsStream, "stream", "LAYOUTS", "JetStream stream name")
	eventsTailCmd.Flags().StringVar(&eventsTypes, "types", "", "event types filter (comma-separated)")
	eventsTailCmd.Flags().IntVar(&eventsLimit, "limit", 100, "stop after this many events")
	eventsTailCmd.Flags().BoolVar(&eventsFollow, "follow", false, "keep printing new events (like tail -f)")

	eventsCmd.AddCommand(eventsTailCmd)
	eventsCmd.AddCommand(eventsTypesCmd)
	rootCmd.AddCommand(eventsCmd)
}

func runEventsTail(cmd *cobra.Command, args []string) error {
	bus, err := eventbus.NewJetStreamBus(eventsNatsURL, eventsStream, 24*time.Hour)
	if err != nil {
		return err
	}
	defer bus.Close()

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	out := cmd.OutOrStdout()
	fmt.Fprintf(out, "🎬 Tailing events (limit: %d, follow: %v)\n", eventsLimit, eventsFollow)

	n, err := tailEvents(ctx, bus, eventbus.Filter{Types: parseStringList(eventsTypes)}, out, eventsLimit, eventsFollow)
	fmt.Fprintf(out, "\n📊 Total events: %d\n", n)
	return err
}

// tailEvents печатает события, пока не наберётся limit (без follow)
// или не завершится ctx.
func tailEvents(ctx context.Context, bus eventbus.EventBus, f eventbus.Filter, w io.Writer, limit int, follow bool) (int, error) {
	events := make(chan *eventbus.Envelope, 64)
	sub, err := bus.Subscribe(ctx, f, func(_ context.Context, ev *eventbus.Envelope) {
		select {
		case events <- ev:
		case <-ctx.Done():
		}
	})
	if err != nil {
		return 0, err
	}
	defer sub.Unsubscribe()

	count := 0
	for {
		select {
		case <-ctx.Done():
			return count, nil
		case ev := <-events:
			fmt.Fprint(w, formatEvent(ev))
			count++
			if !follow && count >= limit {
				return count, nil
			}
		}
	}
}

// formatEvent выводит заголовок события и поля payload в порядке ключей
func formatEvent(ev *eventbus.Envelope) string {
	var b strings.Builder
	fmt.Fprintf(&b, "[%s] %s/%s", ev.Timestamp.UTC().Format(timeFormat), ev.Source, ev.EventType)
	if ev.CorrelationID != "" {
		fmt.Fprintf(&b, " [%s]", ev.CorrelationID)
	}
	b.WriteString("\n")

	data, err := eventbus.DecodePayload(ev.Payload)
	if err != nil {
		fmt.Fprintf(&b, "  (bad payload: %v)\n", err)
		return b.String()
	}
	keys := make([]string, 0, len(data))
	for k := range data {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	for _, k := range keys {
		fmt.Fprintf(&b, "  %s: %v\n", k, data[k])
	}
	return b.String()
}

func parseStringList(s string) []string {
	if s == "" {
		return nil
	}
	var out []string
	for _, part := range strings.Split(s, ",") {
		if part = strings.TrimSpace(part); part != "" {
			out = append(out, part)
		}
	}
	return out
}
