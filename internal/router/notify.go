package router

import (
	"encoding/json"
	"log/slog"

	"github.com/HimanhsuRaj/chat-app-backend/internal/presence"
)

// Notifier pushes server-to-client events. A missing target is a silent
// no-op, never an error surfaced to the caller.
type Notifier interface {
	Push(userID, event string, payload any) bool
	Broadcast(event string, payload any)
}

// PresenceNotifier resolves targets through the presence registry and
// writes envelopes onto their transport connections.
type PresenceNotifier struct {
	registry *presence.Registry
	logger   *slog.Logger
}

func NewPresenceNotifier(registry *presence.Registry, logger *slog.Logger) *PresenceNotifier {
	return &PresenceNotifier{
		registry: registry,
		logger:   logger.With(slog.String("component", "notifier")),
	}
}

var _ Notifier = (*PresenceNotifier)(nil)

func (n *PresenceNotifier) Push(userID, event string, payload any) bool {
	sess, ok := n.registry.Lookup(userID)
	if !ok {
		return false
	}
	frame, err := encodeEnvelope(event, payload)
	if err != nil {
		n.logger.Error("Failed to encode event", slog.String("event", event), slog.Any("error", err))
		return false
	}
	sess.Conn.Send(frame)
	return true
}

func (n *PresenceNotifier) Broadcast(event string, payload any) {
	frame, err := encodeEnvelope(event, payload)
	if err != nil {
		n.logger.Error("Failed to encode broadcast", slog.String("event", event), slog.Any("error", err))
		return
	}
	for _, sess := range n.registry.Sessions() {
		sess.Conn.Send(frame)
	}
}

func encodeEnvelope(event string, payload any) ([]byte, error) {
	raw, err := json.Marshal(payload)
	if err != nil {
		return nil, err
	}
	return json.Marshal(Envelope{Event: event, Payload: raw})
}
