package presence

import (
	"log/slog"
	"sync"
	"time"

	"github.com/google/uuid"

	"github.com/HimanhsuRaj/chat-app-backend/pkg/transport"
)

// Session is the live connection handle for one user. The registry holds at
// most one session per user; a later connect supersedes the earlier handle.
type Session struct {
	UserID    string
	Conn      *transport.Connection
	CreatedAt time.Time
}

// Registry is the single source of truth for which users are currently
// reachable for push delivery. It is mutated only by connect/disconnect
// events and read by every routing decision.
type Registry struct {
	mu       sync.RWMutex
	sessions map[string]*Session

	logger *slog.Logger
}

func NewRegistry(logger *slog.Logger) *Registry {
	return &Registry{
		sessions: make(map[string]*Session),
		logger:   logger.With(slog.String("component", "presence_registry")),
	}
}

// Connect registers conn as the active session for userID. If an earlier
// session existed it is returned so the caller can close its transport.
func (r *Registry) Connect(userID string, conn *transport.Connection) (sess *Session, replaced *Session) {
	r.mu.Lock()
	defer r.mu.Unlock()

	replaced = r.sessions[userID]
	sess = &Session{
		UserID:    userID,
		Conn:      conn,
		CreatedAt: time.Now(),
	}
	r.sessions[userID] = sess

	r.logger.Debug("Session registered", slog.String("userID", userID), slog.String("connID", conn.ID().String()))
	return sess, replaced
}

// Disconnect removes the session for userID only if the stored session still
// belongs to connID. A stale disconnect arriving after a newer connect has
// superseded the handle leaves the newer entry untouched.
func (r *Registry) Disconnect(userID string, connID uuid.UUID) bool {
	r.mu.Lock()
	defer r.mu.Unlock()

	sess, ok := r.sessions[userID]
	if !ok {
		return false
	}
	if sess.Conn.ID() != connID {
		r.logger.Debug("Ignoring stale disconnect", slog.String("userID", userID), slog.String("connID", connID.String()))
		return false
	}
	delete(r.sessions, userID)
	r.logger.Debug("Session removed", slog.String("userID", userID))
	return true
}

// Lookup is a pure read. Absence is not an error: the caller delivers
// nothing and durable state remains the source of truth.
func (r *Registry) Lookup(userID string) (*Session, bool) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	sess, ok := r.sessions[userID]
	return sess, ok
}

func (r *Registry) IsOnline(userID string) bool {
	r.mu.RLock()
	defer r.mu.RUnlock()
	_, ok := r.sessions[userID]
	return ok
}

// OnlineUsers returns a snapshot of the current key set, broadcast to all
// connected clients after every presence change.
func (r *Registry) OnlineUsers() []string {
	r.mu.RLock()
	defer r.mu.RUnlock()

	users := make([]string, 0, len(r.sessions))
	for userID := range r.sessions {
		users = append(users, userID)
	}
	return users
}

// Sessions returns all live sessions, used for broadcasts and shutdown.
func (r *Registry) Sessions() []*Session {
	r.mu.RLock()
	defer r.mu.RUnlock()

	sessions := make([]*Session, 0, len(r.sessions))
	for _, sess := range r.sessions {
		sessions = append(sessions, sess)
	}
	return sessions
}
