// Package delivery drives each message through its sent -> delivered -> read
// lifecycle. Transitions are computed once, server-side, from registry and
// tracker snapshots taken at event-handling time; clients never assert their
// own delivery status.
package delivery

import (
	"context"
	"log/slog"

	"github.com/google/uuid"

	"github.com/HimanhsuRaj/chat-app-backend/internal/store"
)

// Roster reports which users currently have a live connection.
type Roster interface {
	IsOnline(userID string) bool
}

// Viewer reports which conversation a user currently has open.
type Viewer interface {
	IsOpenWith(userID, peerID string) bool
}

// PushFunc delivers an event to a user's live connection. A false return
// means the target had no handle; callers treat that as a no-op because
// durable state remains the source of truth.
type PushFunc func(userID, event string, payload any) bool

// StatusUpdate notifies a sender that one of their outgoing messages moved
// forward in the lifecycle.
type StatusUpdate struct {
	MessageID uuid.UUID    `json:"messageId"`
	Status    store.Status `json:"status"`
}

type Engine struct {
	gateway store.Gateway
	roster  Roster
	viewer  Viewer
	push    PushFunc
	logger  *slog.Logger
}

func NewEngine(gateway store.Gateway, roster Roster, viewer Viewer, push PushFunc, logger *slog.Logger) *Engine {
	return &Engine{
		gateway: gateway,
		roster:  roster,
		viewer:  viewer,
		push:    push,
		logger:  logger.With(slog.String("component", "delivery_engine")),
	}
}

// Send persists a new message and advances it as far as the receiver's
// current presence allows.
//
//  1. The message is stored with status sent and echoed straight back to
//     the sender so their UI shows it without waiting on the receiver.
//  2. An offline receiver ends the transition here; the message stays sent
//     until their next connect triggers Replay.
//  3. A receiver who is online and already viewing this sender's
//     conversation takes the fast path directly to read.
//  4. Any other online receiver gets the message tagged delivered.
func (e *Engine) Send(ctx context.Context, msg *store.Message) error {
	if msg.ID == uuid.Nil {
		msg.ID = uuid.New()
	}
	if msg.Type == "" {
		msg.Type = "text"
	}
	msg.Status = store.StatusSent

	if err := e.gateway.CreateMessage(ctx, msg); err != nil {
		e.logger.Error("Failed to persist message", slog.String("messageID", msg.ID.String()), slog.Any("error", err))
		return err
	}

	e.push(msg.SenderID, "receive-message", msg)

	if !e.roster.IsOnline(msg.ReceiverID) {
		// Delivery is recorded lazily on the receiver's reconnect.
		return nil
	}

	target := store.StatusDelivered
	if e.viewer.IsOpenWith(msg.ReceiverID, msg.SenderID) {
		// Receiver is already looking at this exact conversation.
		target = store.StatusRead
	}

	if err := e.gateway.UpdateMessageStatus(ctx, msg.ID, target); err != nil {
		e.logger.Error("Failed to persist status transition",
			slog.String("messageID", msg.ID.String()),
			slog.String("status", string(target)),
			slog.Any("error", err),
		)
		// The last persisted status (sent) stays the recovery point.
		return err
	}

	msg.Status = target
	e.push(msg.ReceiverID, "receive-message", msg)
	e.push(msg.SenderID, "message-status", StatusUpdate{MessageID: msg.ID, Status: target})

	e.logger.Debug("Message delivered",
		slog.String("messageID", msg.ID.String()),
		slog.String("status", string(target)),
	)
	return nil
}

// MarkRead bulk-transitions every message from fromUserID to toUserID that
// is not already read, then notifies the original sender's handle if it is
// present. It never touches messages flowing the other way.
func (e *Engine) MarkRead(ctx context.Context, fromUserID, toUserID string) error {
	rows, err := e.gateway.MarkConversationRead(ctx, fromUserID, toUserID)
	if err != nil {
		e.logger.Error("Failed to mark conversation read",
			slog.String("fromUserID", fromUserID),
			slog.String("toUserID", toUserID),
			slog.Any("error", err),
		)
		return err
	}

	e.push(fromUserID, "messages-read", map[string]string{"fromUserId": toUserID})

	e.logger.Debug("Conversation marked read",
		slog.String("fromUserID", fromUserID),
		slog.String("toUserID", toUserID),
		slog.Int64("messages", rows),
	)
	return nil
}

// Replay resolves deliveries that were pending while userID was offline.
// Each message still in status sent is advanced to delivered with a
// compare-and-set at the store, so two racing reconnects cannot move the
// same message twice; the loser of the race simply skips its notification.
func (e *Engine) Replay(ctx context.Context, userID string) error {
	pending, err := e.gateway.PendingForReceiver(ctx, userID)
	if err != nil {
		e.logger.Error("Failed to load pending messages", slog.String("userID", userID), slog.Any("error", err))
		return err
	}

	for i := range pending {
		msg := &pending[i]
		ok, err := e.gateway.AdvanceMessage(ctx, msg.ID, store.StatusSent, store.StatusDelivered)
		if err != nil {
			e.logger.Error("Failed to advance pending message", slog.String("messageID", msg.ID.String()), slog.Any("error", err))
			continue
		}
		if !ok {
			// Another connect already moved this message forward.
			continue
		}
		e.push(msg.SenderID, "message-status", StatusUpdate{MessageID: msg.ID, Status: store.StatusDelivered})
	}

	if len(pending) > 0 {
		e.logger.Debug("Replayed pending deliveries", slog.String("userID", userID), slog.Int("count", len(pending)))
	}
	return nil
}
