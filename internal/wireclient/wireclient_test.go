package wireclient

import (
	"context"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"google.golang.org/grpc"

	"github.com/asyncwatch/console/internal/aggregator"
	"github.com/asyncwatch/console/internal/grpcserver"
	"github.com/asyncwatch/console/internal/instrument"
	"github.com/asyncwatch/console/internal/transport"
	"github.com/asyncwatch/console/proto"
)

// startTestServer serves a real aggregator over a unix socket, the same
// transport scheme console-server uses for local deployments.
func startTestServer(t *testing.T) (uri string, stop func()) {
	t.Helper()

	uri = "file://" + filepath.Join(t.TempDir(), "console.sock")

	channel := instrument.NewChannel(64)
	agg := aggregator.New(aggregator.Config{PublishInterval: 10 * time.Millisecond}, channel)

	ctx, cancel := context.WithCancel(context.Background())
	go agg.Run(ctx)

	lis, err := transport.Listen(uri)
	require.NoError(t, err)

	srv := grpc.NewServer()
	proto.RegisterInstrumentServer(srv, grpcserver.New(agg.Commands()))
	go srv.Serve(lis)

	return uri, func() {
		srv.Stop()
		cancel()
	}
}

func TestRunReceivesInitialSnapshot(t *testing.T) {
	uri, stop := startTestServer(t)
	defer stop()

	conn := New(uri)
	defer conn.Close()

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()

	updates := make(chan *proto.Update, 4)
	go conn.Run(ctx, func(u *proto.Update) { updates <- u })

	select {
	case u := <-updates:
		assert.NotNil(t, u.Now)
	case <-time.After(3 * time.Second):
		t.Fatal("timed out waiting for first update")
	}
	assert.Equal(t, StateConnected, conn.State())
}

func TestPauseResumeRoundTrip(t *testing.T) {
	uri, stop := startTestServer(t)
	defer stop()

	conn := New(uri)
	defer conn.Close()

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()

	require.NoError(t, conn.Pause(ctx))
	require.NoError(t, conn.Resume(ctx))
}

func TestPauseFailsWhenServerUnreachable(t *testing.T) {
	conn := New("file://" + filepath.Join(t.TempDir(), "nobody-listening.sock"))
	defer conn.Close()

	ctx, cancel := context.WithTimeout(context.Background(), time.Second)
	defer cancel()

	err := conn.Pause(ctx)
	assert.Error(t, err)
}
