package store

import (
	"context"
	"time"

	"github.com/google/uuid"
)

//go:generate mockgen -source=gateway.go -destination=mocks/gateway.go -package=mocks

// Gateway is the narrow durable-store surface the delivery core depends on.
// Every read-modify-write the core needs is expressed here as a single
// conditional statement so concurrent handlers cannot lose updates.
type Gateway interface {
	CreateMessage(ctx context.Context, msg *Message) error

	// AdvanceMessage moves a message from one status to another only if it
	// is still in the expected status, and reports whether the row moved.
	// Racing reconnects replaying the same pending message see ok=false.
	AdvanceMessage(ctx context.Context, id uuid.UUID, from, to Status) (bool, error)

	// UpdateMessageStatus sets the status unconditionally. Used on the send
	// path where the row was created moments earlier by the same handler.
	UpdateMessageStatus(ctx context.Context, id uuid.UUID, to Status) error

	// MarkConversationRead transitions every message from senderID to
	// receiverID that is not already read, returning the number of rows
	// affected.
	MarkConversationRead(ctx context.Context, senderID, receiverID string) (int64, error)

	// PendingForReceiver lists messages addressed to receiverID that are
	// still in status sent, oldest first.
	PendingForReceiver(ctx context.Context, receiverID string) ([]Message, error)

	// TouchLastSeen records the user's disconnect time.
	TouchLastSeen(ctx context.Context, userID string, at time.Time) error
}
