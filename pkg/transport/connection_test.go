package transport_test

import (
	"context"
	"log/slog"
	"os"
	"sync"
	"testing"

	"github.com/HimanhsuRaj/chat-app-backend/pkg/transport"
)

func newTestLogger() *slog.Logger {
	handler := slog.NewTextHandler(os.Stdout, &slog.HandlerOptions{Level: slog.LevelError + 1})
	return slog.New(handler)
}

// newClosableConn builds a connection whose waitgroup is primed the way
// Run would prime it, so Close can be exercised without live pumps.
func newClosableConn(wg *sync.WaitGroup) *transport.Connection {
	wg.Add(1)
	return transport.NewConnection(context.Background(), wg, nil, transport.ConnectionConfig{}, nil, nil, newTestLogger())
}

func TestSendAfterCloseIsDropped(t *testing.T) {
	var wg sync.WaitGroup
	conn := newClosableConn(&wg)

	conn.Close(nil)

	// A push that loses the race with disconnect must be a no-op, never
	// a panic.
	conn.Send([]byte(`{"event":"typing"}`))

	select {
	case <-conn.Done():
	default:
		t.Fatal("Expected connection to report done after Close")
	}
	wg.Wait()
}

func TestConcurrentSendAndClose(t *testing.T) {
	var wg sync.WaitGroup
	conn := newClosableConn(&wg)

	var senders sync.WaitGroup
	for i := 0; i < 50; i++ {
		senders.Add(1)
		go func() {
			defer senders.Done()
			conn.Send([]byte("frame"))
		}()
	}
	conn.Close(nil)
	senders.Wait()
	wg.Wait()
}

func TestCloseIsIdempotent(t *testing.T) {
	var wg sync.WaitGroup
	conn := newClosableConn(&wg)

	conn.Close(nil)
	conn.Close(nil)
	wg.Wait()
}
