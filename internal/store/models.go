package store

import (
	"time"

	"github.com/google/uuid"
	"github.com/uptrace/bun"
)

// Status is a message's delivery lifecycle state. It only ever moves
// forward: sent -> delivered -> read.
type Status string

const (
	StatusSent      Status = "sent"
	StatusDelivered Status = "delivered"
	StatusRead      Status = "read"
)

func (s Status) rank() int {
	switch s {
	case StatusSent:
		return 0
	case StatusDelivered:
		return 1
	case StatusRead:
		return 2
	}
	return -1
}

// CanAdvance reports whether moving from s to target is a forward
// transition. Equal states are not an advance.
func (s Status) CanAdvance(target Status) bool {
	return s.rank() >= 0 && target.rank() > s.rank()
}

type Message struct {
	bun.BaseModel `bun:"table:messages,alias:m"`

	ID         uuid.UUID `bun:",pk,type:uuid,default:gen_random_uuid()" json:"id"`
	SenderID   string    `bun:"sender_id,notnull" json:"senderId"`
	ReceiverID string    `bun:"receiver_id,notnull" json:"receiverId"`

	Text     string `bun:",nullzero" json:"text,omitempty"`
	Image    string `bun:",nullzero" json:"image,omitempty"`
	AudioURL string `bun:"audio_url,nullzero" json:"audioUrl,omitempty"`
	Type     string `bun:",notnull,default:'text'" json:"type"`

	Status Status `bun:",notnull,default:'sent'" json:"status"`

	CreatedAt time.Time `bun:",nullzero,notnull,default:current_timestamp" json:"createdAt"`
}

type User struct {
	bun.BaseModel `bun:"table:users,alias:u"`

	ID         string `bun:",pk" json:"id"`
	Email      string `bun:",unique,nullzero" json:"email,omitempty"`
	FullName   string `bun:"full_name,nullzero" json:"fullName,omitempty"`
	ProfilePic string `bun:"profile_pic,nullzero" json:"profilePic,omitempty"`
	Bio        string `bun:",nullzero" json:"bio,omitempty"`

	// LastSeen is written exactly once per disconnect, never while the
	// user is online.
	LastSeen time.Time `bun:"last_seen,nullzero" json:"lastSeen"`

	CreatedAt time.Time `bun:",nullzero,notnull,default:current_timestamp" json:"createdAt"`
}
