package store

import (
	"context"
	"log/slog"
	"time"

	"github.com/google/uuid"
	"github.com/pkg/errors"
	"github.com/uptrace/bun"
)

// BunStore is the PostgreSQL-backed Gateway.
type BunStore struct {
	db     *bun.DB
	logger *slog.Logger
}

func NewBunStore(db *bun.DB, logger *slog.Logger) *BunStore {
	return &BunStore{
		db:     db,
		logger: logger.With(slog.String("component", "store")),
	}
}

// compile-time check to ensure BunStore implements Gateway.
var _ Gateway = (*BunStore)(nil)

func (s *BunStore) CreateMessage(ctx context.Context, msg *Message) error {
	_, err := s.db.NewInsert().Model(msg).Returning("*").Exec(ctx)
	if err != nil {
		return errors.Wrap(err, "store.CreateMessage.Insert")
	}
	return nil
}

func (s *BunStore) AdvanceMessage(ctx context.Context, id uuid.UUID, from, to Status) (bool, error) {
	if !from.CanAdvance(to) {
		return false, errors.Errorf("store.AdvanceMessage: %q -> %q is not a forward transition", from, to)
	}
	res, err := s.db.NewUpdate().
		Model((*Message)(nil)).
		Set("status = ?", to).
		Where("id = ?", id).
		Where("status = ?", from).
		Exec(ctx)
	if err != nil {
		return false, errors.Wrap(err, "store.AdvanceMessage.Update")
	}
	rows, err := res.RowsAffected()
	if err != nil {
		return false, errors.Wrap(err, "store.AdvanceMessage.RowsAffected")
	}
	return rows == 1, nil
}

func (s *BunStore) UpdateMessageStatus(ctx context.Context, id uuid.UUID, to Status) error {
	_, err := s.db.NewUpdate().
		Model((*Message)(nil)).
		Set("status = ?", to).
		Where("id = ?", id).
		Exec(ctx)
	if err != nil {
		return errors.Wrap(err, "store.UpdateMessageStatus.Update")
	}
	return nil
}

func (s *BunStore) MarkConversationRead(ctx context.Context, senderID, receiverID string) (int64, error) {
	res, err := s.db.NewUpdate().
		Model((*Message)(nil)).
		Set("status = ?", StatusRead).
		Where("sender_id = ?", senderID).
		Where("receiver_id = ?", receiverID).
		Where("status <> ?", StatusRead).
		Exec(ctx)
	if err != nil {
		return 0, errors.Wrap(err, "store.MarkConversationRead.Update")
	}
	rows, err := res.RowsAffected()
	if err != nil {
		return 0, errors.Wrap(err, "store.MarkConversationRead.RowsAffected")
	}
	return rows, nil
}

func (s *BunStore) PendingForReceiver(ctx context.Context, receiverID string) ([]Message, error) {
	var msgs []Message
	err := s.db.NewSelect().
		Model(&msgs).
		Where("receiver_id = ?", receiverID).
		Where("status = ?", StatusSent).
		Order("created_at ASC").
		Scan(ctx)
	if err != nil {
		return nil, errors.Wrap(err, "store.PendingForReceiver.Scan")
	}
	return msgs, nil
}

func (s *BunStore) TouchLastSeen(ctx context.Context, userID string, at time.Time) error {
	_, err := s.db.NewUpdate().
		Model((*User)(nil)).
		Set("last_seen = ?", at).
		Where("id = ?", userID).
		Exec(ctx)
	if err != nil {
		return errors.Wrap(err, "store.TouchLastSeen.Update")
	}
	return nil
}

// InitSchema creates the tables the core needs if they are missing. The
// surrounding application owns real migrations; this keeps a fresh
// database and the test harness usable out of the box.
func InitSchema(ctx context.Context, db *bun.DB) error {
	models := []any{(*User)(nil), (*Message)(nil)}
	for _, model := range models {
		if _, err := db.NewCreateTable().Model(model).IfNotExists().Exec(ctx); err != nil {
			return errors.Wrap(err, "store.InitSchema.CreateTable")
		}
	}
	return nil
}
