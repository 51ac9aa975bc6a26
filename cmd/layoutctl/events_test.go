package main

import (
	"bytes"
	"context"
	"net"
	"testing"
	"time"

	"github.com/annel0/layoutd/internal/eventbus"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"google.golang.org/grpc"
	"google.golang.org/grpc/health"
	healthpb "google.golang.org/grpc/health/grpc_health_v1"
)

func TestParseStringList(t *testing.T) {
	assert.Nil(t, parseStringList(""))
	assert.Equal(t, []string{"LayoutSaved", "LayoutDeleted"}, parseStringList(" LayoutSaved, ,LayoutDeleted "))
}

func TestFormatEvent(t *testing.T) {
	ev, err := eventbus.NewLayoutSavedEvent("id-1", "alice", 3, 4)
	require.NoError(t, err)
	ev.Timestamp = time.Date(2024, 5, 1, 12, 0, 0, 0, time.UTC)
	ev.CorrelationID = "req-7"

	out := formatEvent(ev)
	assert.Contains(t, out, "[2024-05-01T12:00:00Z] ")
	assert.Contains(t, out, "/"+eventbus.EventLayoutSaved+" [req-7]\n")
	assert.Contains(t, out, "  owner: alice\n")
}

func TestTailEvents_Limit(t *testing.T) {
	bus := eventbus.NewMemoryBus(16)
	defer bus.Close()
	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()

	type result struct {
		n   int
		err error
	}
	var out bytes.Buffer
	done := make(chan result, 1)
	ready := make(chan struct{})

	// Подписка создаётся внутри tailEvents, поэтому публикуем после её появления
	go func() {
		close(ready)
		n, err := tailEvents(ctx, bus, eventbus.Filter{Types: []string{eventbus.EventLayoutDeleted}}, &out, 2, false)
		done <- result{n, err}
	}()
	<-ready

	publish := func() {
		saved, err := eventbus.NewLayoutSavedEvent("a", "alice", 1, 1)
		require.NoError(t, err)
		require.NoError(t, bus.Publish(ctx, saved))
		deleted, err := eventbus.NewLayoutDeletedEvent("a", "alice")
		require.NoError(t, err)
		require.NoError(t, bus.Publish(ctx, deleted))
	}

	var res result
	for got := false; !got; {
		publish()
		select {
		case res = <-done:
			got = true
		case <-time.After(20 * time.Millisecond):
		}
	}

	require.NoError(t, res.err)
	assert.Equal(t, 2, res.n)
	assert.NotContains(t, out.String(), eventbus.EventLayoutSaved)
}

func TestCheckHealth(t *testing.T) {
	lis, err := net.Listen("tcp", "127.0.0.1:0")
	require.NoError(t, err)

	hs := health.NewServer()
	hs.SetServingStatus("layoutd.LayoutService", healthpb.HealthCheckResponse_SERVING)
	srv := grpc.NewServer()
	healthpb.RegisterHealthServer(srv, hs)
	go srv.Serve(lis)
	defer srv.Stop()

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()

	status, err := checkHealth(ctx, lis.Addr().String(), "layoutd.LayoutService")
	require.NoError(t, err)
	assert.Equal(t, healthpb.HealthCheckResponse_SERVING, status)

	_, err = checkHealth(ctx, lis.Addr().String(), "unknown.Service")
	assert.Error(t, err)
}

func TestEventsTypesCommand(t *testing.T) {
	out, err := execute(t, "", "events", "types")
	require.NoError(t, err)
	for _, typ := range eventbus.EventTypes() {
		assert.Contains(t, out, typ)
	}
}
