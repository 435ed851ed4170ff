package presence_test

import (
	"context"
	"log/slog"
	"os"
	"sort"
	"sync"
	"testing"

	"github.com/HimanhsuRaj/chat-app-backend/internal/presence"
	"github.com/HimanhsuRaj/chat-app-backend/pkg/transport"
)

func newTestLogger() *slog.Logger {
	// Discard logger output during tests by setting a high level
	handler := slog.NewTextHandler(os.Stdout, &slog.HandlerOptions{Level: slog.LevelError + 1})
	return slog.New(handler)
}

func newTransportConn() *transport.Connection {
	logger := newTestLogger()
	var wg sync.WaitGroup
	return transport.NewConnection(context.Background(), &wg, nil, transport.ConnectionConfig{}, nil, nil, logger)
}

func TestSessionLifecycle(t *testing.T) {
	r := presence.NewRegistry(newTestLogger())
	conn := newTransportConn()

	sess, replaced := r.Connect("user-1", conn)
	if replaced != nil {
		t.Fatalf("Expected no replaced session on first connect, got one")
	}
	if sess.UserID != "user-1" {
		t.Errorf("Expected session for user-1, got %s", sess.UserID)
	}

	got, found := r.Lookup("user-1")
	if !found {
		t.Fatal("Lookup failed to find registered session")
	}
	if got.Conn.ID() != conn.ID() {
		t.Errorf("Lookup returned a different connection")
	}
	if !r.IsOnline("user-1") {
		t.Error("Expected user-1 to be online")
	}

	if !r.Disconnect("user-1", conn.ID()) {
		t.Fatal("Disconnect reported no removal for a live session")
	}
	if _, found := r.Lookup("user-1"); found {
		t.Error("Found session after it should have been removed")
	}
	if r.IsOnline("user-1") {
		t.Error("Expected user-1 to be offline after disconnect")
	}
}

func TestConnectSupersedesEarlierHandle(t *testing.T) {
	r := presence.NewRegistry(newTestLogger())
	conn1 := newTransportConn()
	conn2 := newTransportConn()

	r.Connect("user-1", conn1)
	_, replaced := r.Connect("user-1", conn2)

	if replaced == nil {
		t.Fatal("Expected second connect to return the replaced session")
	}
	if replaced.Conn.ID() != conn1.ID() {
		t.Errorf("Expected replaced session to hold the first connection")
	}

	got, _ := r.Lookup("user-1")
	if got.Conn.ID() != conn2.ID() {
		t.Errorf("Expected registry to hold the latest connection")
	}
}

func TestStaleDisconnectIsIgnored(t *testing.T) {
	r := presence.NewRegistry(newTestLogger())
	conn1 := newTransportConn()
	conn2 := newTransportConn()

	r.Connect("user-1", conn1)
	r.Connect("user-1", conn2)

	// The close of the superseded handle arrives late.
	if r.Disconnect("user-1", conn1.ID()) {
		t.Fatal("Stale disconnect should not remove the newer session")
	}

	got, found := r.Lookup("user-1")
	if !found {
		t.Fatal("Newer session vanished after stale disconnect")
	}
	if got.Conn.ID() != conn2.ID() {
		t.Errorf("Expected newer connection to survive, got the older one")
	}
}

func TestDisconnectUnknownUser(t *testing.T) {
	r := presence.NewRegistry(newTestLogger())
	conn := newTransportConn()

	if r.Disconnect("nobody", conn.ID()) {
		t.Error("Disconnect of unknown user reported a removal")
	}
}

func TestOnlineUsersSnapshot(t *testing.T) {
	r := presence.NewRegistry(newTestLogger())
	conn1 := newTransportConn()
	conn2 := newTransportConn()

	r.Connect("user-a", conn1)
	r.Connect("user-b", conn2)

	users := r.OnlineUsers()
	sort.Strings(users)
	if len(users) != 2 || users[0] != "user-a" || users[1] != "user-b" {
		t.Errorf("Expected snapshot [user-a user-b], got %v", users)
	}

	r.Disconnect("user-a", conn1.ID())
	users = r.OnlineUsers()
	if len(users) != 1 || users[0] != "user-b" {
		t.Errorf("Expected snapshot [user-b] after disconnect, got %v", users)
	}

	if len(r.Sessions()) != 1 {
		t.Errorf("Expected 1 live session, got %d", len(r.Sessions()))
	}
}
