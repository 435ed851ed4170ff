package presence

import (
	"log/slog"
	"sync"
)

// ChatTracker records which peer each user currently has open in their UI.
// It is advisory state used only for the immediate-read fast path, never
// authoritative delivery state, and it does not survive a disconnect.
type ChatTracker struct {
	mu   sync.RWMutex
	open map[string]string // userID -> peerID currently open

	logger *slog.Logger
}

func NewChatTracker(logger *slog.Logger) *ChatTracker {
	return &ChatTracker{
		open:   make(map[string]string),
		logger: logger.With(slog.String("component", "chat_tracker")),
	}
}

// Join records that userID has the conversation with peerID open.
func (t *ChatTracker) Join(userID, peerID string) {
	t.mu.Lock()
	defer t.mu.Unlock()
	t.open[userID] = peerID
	t.logger.Debug("User opened chat", slog.String("userID", userID), slog.String("peerID", peerID))
}

// Leave clears the open conversation for userID. Also called on disconnect
// so stale open-chat state cannot outlive a session.
func (t *ChatTracker) Leave(userID string) {
	t.mu.Lock()
	defer t.mu.Unlock()
	delete(t.open, userID)
	t.logger.Debug("User closed chat", slog.String("userID", userID))
}

// IsOpenWith reports whether userID currently has the conversation with
// peerID open.
func (t *ChatTracker) IsOpenWith(userID, peerID string) bool {
	if peerID == "" {
		return false
	}
	t.mu.RLock()
	defer t.mu.RUnlock()
	return t.open[userID] == peerID
}
