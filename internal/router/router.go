package router

import (
	"context"
	"encoding/json"
	"log/slog"

	"github.com/tidwall/gjson"

	"github.com/HimanhsuRaj/chat-app-backend/internal/presence"
	"github.com/HimanhsuRaj/chat-app-backend/internal/store"
)

// Delivery is the slice of the delivery engine the router drives.
type Delivery interface {
	Send(ctx context.Context, msg *store.Message) error
	MarkRead(ctx context.Context, fromUserID, toUserID string) error
}

// HandlerFunc processes one inbound event for an established session.
type HandlerFunc func(ctx context.Context, sess *presence.Session, payload json.RawMessage) error

// EventRouter dispatches inbound realtime events to registered handlers
// keyed by event kind.
type EventRouter struct {
	logger   *slog.Logger
	handlers map[string]HandlerFunc

	delivery Delivery
	notifier Notifier
	tracker  *presence.ChatTracker
}

func NewEventRouter(logger *slog.Logger, delivery Delivery, notifier Notifier, tracker *presence.ChatTracker) *EventRouter {
	r := &EventRouter{
		logger:   logger.With(slog.String("component", "event_router")),
		handlers: make(map[string]HandlerFunc),
		delivery: delivery,
		notifier: notifier,
		tracker:  tracker,
	}
	r.registerCoreHandlers()
	return r
}

func (r *EventRouter) registerCoreHandlers() {
	r.Handle("typing", r.forwardTyping("typing"))
	r.Handle("stop-typing", r.forwardTyping("stop-typing"))

	r.Handle("call-user", r.handleCallUser)
	r.Handle("accept-call", r.forwardCallSignal("call-accepted"))
	r.Handle("reject-call", r.forwardCallSignal("call-rejected"))
	r.Handle("end-call", r.handleEndCall)

	r.Handle("send-message", r.handleSendMessage)
	r.Handle("read-messages", r.handleReadMessages)

	r.Handle("join-chat", r.handleJoinChat)
	r.Handle("leave-chat", r.handleLeaveChat)
}

// Handle registers a handler for an event kind.
func (r *EventRouter) Handle(event string, fn HandlerFunc) {
	if _, exists := r.handlers[event]; exists {
		panic("event handler already registered: " + event)
	}
	r.handlers[event] = fn
}

// Dispatch decodes one inbound frame and runs the matching handler. Every
// handler is idempotent with respect to a missing target, so handler errors
// here mean malformed input or a failed store operation, never an offline
// peer.
func (r *EventRouter) Dispatch(ctx context.Context, sess *presence.Session, raw []byte) {
	if !gjson.ValidBytes(raw) {
		r.logger.Warn("Dropping malformed frame", slog.String("userID", sess.UserID))
		return
	}
	event := gjson.GetBytes(raw, "event").String()
	if event == "" {
		r.logger.Warn("Dropping frame without event kind", slog.String("userID", sess.UserID))
		return
	}

	handler, ok := r.handlers[event]
	if !ok {
		r.logger.Warn("Received unknown event", slog.String("event", event), slog.String("userID", sess.UserID))
		return
	}

	var payload json.RawMessage
	if result := gjson.GetBytes(raw, "payload"); result.Exists() {
		payload = json.RawMessage(result.Raw)
	}

	r.logger.Debug("Dispatching event", slog.String("event", event), slog.String("userID", sess.UserID))
	if err := handler(ctx, sess, payload); err != nil {
		r.logger.Error("Event handler failed",
			slog.String("event", event),
			slog.String("userID", sess.UserID),
			slog.Any("error", err),
		)
	}
}
