package redis

import (
	"context"
	"io"
	"log/slog"
	"os"
	"sync"
	"testing"
	"time"

	"github.com/redis/go-redis/v9"
	"github.com/stretchr/testify/require"

	"github.com/xraph/researchsync/id"
	"github.com/xraph/researchsync/job"
	"github.com/xraph/researchsync/update"
)

func testLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(io.Discard, nil))
}

func TestHandleDecodesAndPublishes(t *testing.T) {
	s := New(nil, "", WithLogger(testLogger()))
	require.Equal(t, DefaultChannel, s.channel)

	var got []update.Update
	s.Subscribe(func(u update.Update) { got = append(got, u) })

	s.handle(`{"type":"status_changed","job_id":"J1","status":"analyzing"}`)
	s.handle(`{"type":"bogus","job_id":"J1"}`)
	s.handle(`{"type":"failed","job_id":"J1","error":"boom"}`)

	require.Len(t, got, 2)
	require.Equal(t, update.StatusChanged{JobID: "J1", Status: job.StatusRunning, Phase: "analyzing"}, got[0])
	require.Equal(t, update.Failed{JobID: "J1", Error: "boom"}, got[1])
	require.Equal(t, int64(2), s.Received())
	require.Equal(t, int64(1), s.DecodeErrors())
}

func TestHandleMsgpack(t *testing.T) {
	s := New(nil, "updates", WithCodec(update.MsgpackCodec{}), WithLogger(testLogger()))

	data, err := update.MsgpackCodec{}.Encode(update.DocumentEditing{JobID: "J1", ContentChunk: "A"})
	require.NoError(t, err)

	var got update.Update
	s.Subscribe(func(u update.Update) { got = u })
	s.handle(string(data))

	require.Equal(t, update.DocumentEditing{JobID: "J1", ContentChunk: "A"}, got)
}

func TestCloseRemovesCallbacks(t *testing.T) {
	s := New(nil, "", WithLogger(testLogger()))
	called := false
	s.Subscribe(func(update.Update) { called = true })
	require.NoError(t, s.Close())

	s.handle(`{"type":"failed","job_id":"J1","error":"x"}`)
	require.False(t, called)
}

// TestRoundTripLive needs a Redis server; set RESEARCHSYNC_REDIS_ADDR to run it.
func TestRoundTripLive(t *testing.T) {
	addr := os.Getenv("RESEARCHSYNC_REDIS_ADDR")
	if addr == "" {
		t.Skip("RESEARCHSYNC_REDIS_ADDR not set")
	}

	client := redis.NewClient(&redis.Options{Addr: addr})
	defer client.Close()
	channel := "researchsync:test:" + id.NewListener().String()

	sub := New(client, channel, WithLogger(testLogger()))
	var (
		mu  sync.Mutex
		got []update.Update
	)
	sub.Subscribe(func(u update.Update) {
		mu.Lock()
		defer mu.Unlock()
		got = append(got, u)
	})

	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan error, 1)
	go func() { done <- sub.Run(ctx) }()

	pub := NewPublisher(client, channel, WithLogger(testLogger()))
	want := update.Completed{JobID: "J1", Report: job.Report{Title: "R"}}
	require.Eventually(t, func() bool {
		_ = pub.PublishContext(ctx, want)
		mu.Lock()
		defer mu.Unlock()
		return len(got) > 0
	}, 5*time.Second, 50*time.Millisecond)

	mu.Lock()
	require.Equal(t, want, got[0])
	mu.Unlock()

	cancel()
	require.NoError(t, <-done)
}
