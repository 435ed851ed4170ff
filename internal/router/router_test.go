package router

import (
	"context"
	"encoding/json"
	"log/slog"
	"os"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/HimanhsuRaj/chat-app-backend/internal/presence"
	"github.com/HimanhsuRaj/chat-app-backend/internal/store"
)

func testLogger() *slog.Logger {
	handler := slog.NewTextHandler(os.Stdout, &slog.HandlerOptions{Level: slog.LevelError + 1})
	return slog.New(handler)
}

type sentEvent struct {
	userID  string
	event   string
	payload any
}

type fakeNotifier struct {
	online map[string]bool
	sent   []sentEvent
}

func (f *fakeNotifier) Push(userID, event string, payload any) bool {
	if !f.online[userID] {
		return false
	}
	f.sent = append(f.sent, sentEvent{userID, event, payload})
	return true
}

func (f *fakeNotifier) Broadcast(event string, payload any) {
	f.sent = append(f.sent, sentEvent{"*", event, payload})
}

type fakeDelivery struct {
	sentMessages []*store.Message
	readPairs    [][2]string
}

func (f *fakeDelivery) Send(ctx context.Context, msg *store.Message) error {
	f.sentMessages = append(f.sentMessages, msg)
	return nil
}

func (f *fakeDelivery) MarkRead(ctx context.Context, fromUserID, toUserID string) error {
	f.readPairs = append(f.readPairs, [2]string{fromUserID, toUserID})
	return nil
}

func newTestRouter(online ...string) (*EventRouter, *fakeNotifier, *fakeDelivery, *presence.ChatTracker) {
	notifier := &fakeNotifier{online: make(map[string]bool)}
	for _, u := range online {
		notifier.online[u] = true
	}
	del := &fakeDelivery{}
	tracker := presence.NewChatTracker(testLogger())
	r := NewEventRouter(testLogger(), del, notifier, tracker)
	return r, notifier, del, tracker
}

func session(userID string) *presence.Session {
	return &presence.Session{UserID: userID}
}

func TestDispatchMalformedAndUnknownFrames(t *testing.T) {
	r, notifier, del, _ := newTestRouter("alice", "bob")
	ctx := context.Background()

	r.Dispatch(ctx, session("alice"), []byte("not json"))
	r.Dispatch(ctx, session("alice"), []byte(`{"payload":{}}`))
	r.Dispatch(ctx, session("alice"), []byte(`{"event":"no-such-event","payload":{}}`))

	assert.Empty(t, notifier.sent)
	assert.Empty(t, del.sentMessages)
}

func TestTypingForwardedWithSenderIdentity(t *testing.T) {
	r, notifier, _, _ := newTestRouter("alice", "bob")
	ctx := context.Background()

	r.Dispatch(ctx, session("alice"), []byte(`{"event":"typing","payload":{"toUserId":"bob"}}`))
	r.Dispatch(ctx, session("alice"), []byte(`{"event":"stop-typing","payload":{"toUserId":"bob"}}`))

	require.Len(t, notifier.sent, 2)
	assert.Equal(t, sentEvent{"bob", "typing", map[string]string{"from": "alice"}}, notifier.sent[0])
	assert.Equal(t, sentEvent{"bob", "stop-typing", map[string]string{"from": "alice"}}, notifier.sent[1])
}

func TestTypingToOfflinePeerIsNoOp(t *testing.T) {
	r, notifier, _, _ := newTestRouter("alice")
	ctx := context.Background()

	r.Dispatch(ctx, session("alice"), []byte(`{"event":"typing","payload":{"toUserId":"bob"}}`))

	assert.Empty(t, notifier.sent)
}

func TestCallSignaling(t *testing.T) {
	r, notifier, _, _ := newTestRouter("alice", "bob")
	ctx := context.Background()

	r.Dispatch(ctx, session("alice"), []byte(`{"event":"call-user","payload":{"to":"bob","from":"alice","peerId":"peer-1"}}`))
	r.Dispatch(ctx, session("bob"), []byte(`{"event":"accept-call","payload":{"to":"alice"}}`))
	r.Dispatch(ctx, session("bob"), []byte(`{"event":"reject-call","payload":{"to":"alice"}}`))

	require.Len(t, notifier.sent, 3)
	assert.Equal(t, sentEvent{"bob", "incoming-call", map[string]string{"from": "alice", "peerId": "peer-1"}}, notifier.sent[0])
	assert.Equal(t, sentEvent{"alice", "call-accepted", struct{}{}}, notifier.sent[1])
	assert.Equal(t, sentEvent{"alice", "call-rejected", struct{}{}}, notifier.sent[2])
}

func TestEndCallEchoesToCaller(t *testing.T) {
	r, notifier, _, _ := newTestRouter("alice")
	ctx := context.Background()

	// bob is offline; alice must still see her own call UI torn down.
	r.Dispatch(ctx, session("alice"), []byte(`{"event":"end-call","payload":{"to":"bob"}}`))

	require.Len(t, notifier.sent, 1)
	assert.Equal(t, sentEvent{"alice", "call-ended", struct{}{}}, notifier.sent[0])
}

func TestSendMessageUsesSessionIdentity(t *testing.T) {
	r, _, del, _ := newTestRouter("alice", "bob")
	ctx := context.Background()

	frame := []byte(`{"event":"send-message","payload":{"message":{"senderId":"mallory","receiverId":"bob","text":"hello"}}}`)
	r.Dispatch(ctx, session("alice"), frame)

	require.Len(t, del.sentMessages, 1)
	msg := del.sentMessages[0]
	// The session, not the payload, decides who the sender is.
	assert.Equal(t, "alice", msg.SenderID)
	assert.Equal(t, "bob", msg.ReceiverID)
	assert.Equal(t, "hello", msg.Text)
}

func TestSendMessageWithoutReceiverIsRejected(t *testing.T) {
	r, _, del, _ := newTestRouter("alice")
	ctx := context.Background()

	r.Dispatch(ctx, session("alice"), []byte(`{"event":"send-message","payload":{"message":{"text":"hello"}}}`))

	assert.Empty(t, del.sentMessages)
}

func TestReadMessages(t *testing.T) {
	r, _, del, _ := newTestRouter("alice", "bob")
	ctx := context.Background()

	r.Dispatch(ctx, session("bob"), []byte(`{"event":"read-messages","payload":{"fromUserId":"alice","toUserId":"bob"}}`))

	require.Len(t, del.readPairs, 1)
	assert.Equal(t, [2]string{"alice", "bob"}, del.readPairs[0])
}

func TestJoinAndLeaveChat(t *testing.T) {
	r, _, _, tracker := newTestRouter("alice", "bob")
	ctx := context.Background()

	r.Dispatch(ctx, session("alice"), []byte(`{"event":"join-chat","payload":{"userId":"alice","chattingWith":"bob"}}`))
	assert.True(t, tracker.IsOpenWith("alice", "bob"))

	r.Dispatch(ctx, session("alice"), []byte(`{"event":"leave-chat","payload":{"userId":"alice"}}`))
	assert.False(t, tracker.IsOpenWith("alice", "bob"))
}

func TestDuplicateHandlerRegistrationPanics(t *testing.T) {
	r, _, _, _ := newTestRouter()

	assert.Panics(t, func() {
		r.Handle("typing", func(ctx context.Context, sess *presence.Session, payload json.RawMessage) error {
			return nil
		})
	})
}
