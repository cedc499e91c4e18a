package session

import (
	"context"
	"errors"
	"sync"
	"time"
)

var (
	// ErrNotFound is returned for lookups of unknown or expired chat ids,
	// and for unknown attachment ids within a known chat.
	ErrNotFound = errors.New("session not found")
	// ErrExists is returned when registering an id that is already live.
	ErrExists = errors.New("session already exists")
)

// Agent is the subset of the upstream agent surface a session keeps a
// handle to. The concrete agent is supplied by the caller at registration.
type Agent interface {
	Stop(ctx context.Context) error
}

// Session is the server-side state for one logical voice connection.
type Session struct {
	ID        string
	Agent     Agent
	CreatedAt time.Time
}

type sessionState struct {
	session     Session
	attachments []*Attachment
}

// Registry maps chat ids to live sessions and their attachments. It is the
// only state shared across connections; every operation takes the single
// registry lock and does no I/O while holding it.
type Registry struct {
	mu       sync.RWMutex
	sessions map[string]*sessionState
}

func NewRegistry() *Registry {
	return &Registry{sessions: make(map[string]*sessionState)}
}

// Add registers a new session under id. The id is minted by the caller
// using a collision-resistant scheme, so ErrExists signals a caller bug.
func (r *Registry) Add(id string, agent Agent) (Session, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	if _, ok := r.sessions[id]; ok {
		return Session{}, ErrExists
	}
	s := Session{ID: id, Agent: agent, CreatedAt: time.Now().UTC()}
	r.sessions[id] = &sessionState{session: s}
	return s, nil
}

func (r *Registry) Exists(id string) bool {
	r.mu.RLock()
	defer r.mu.RUnlock()
	_, ok := r.sessions[id]
	return ok
}

func (r *Registry) Get(id string) (Session, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	st, ok := r.sessions[id]
	if !ok {
		return Session{}, ErrNotFound
	}
	return st.session, nil
}

// Remove deregisters a session and drops its attachments in the same
// step. Removing an already-removed id is a no-op returning ErrNotFound.
func (r *Registry) Remove(id string) (Session, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	st, ok := r.sessions[id]
	if !ok {
		return Session{}, ErrNotFound
	}
	delete(r.sessions, id)
	return st.session, nil
}

func (r *Registry) Count() int {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return len(r.sessions)
}

// AddAttachment stores an attachment under the session. Size limits are
// enforced by the caller before the attachment is constructed.
func (r *Registry) AddAttachment(id string, att Attachment) (Attachment, error) {
	if att.CreatedAt.IsZero() {
		att.CreatedAt = time.Now().UTC()
	}
	r.mu.Lock()
	defer r.mu.Unlock()
	st, ok := r.sessions[id]
	if !ok {
		return Attachment{}, ErrNotFound
	}
	st.attachments = append(st.attachments, &att)
	return att, nil
}

func (r *Registry) ListAttachments(id string) ([]Attachment, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	st, ok := r.sessions[id]
	if !ok {
		return nil, ErrNotFound
	}
	out := make([]Attachment, 0, len(st.attachments))
	for _, a := range st.attachments {
		out = append(out, *a)
	}
	return out, nil
}

func (r *Registry) GetAttachment(id, attachmentID string) (Attachment, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	st, ok := r.sessions[id]
	if !ok {
		return Attachment{}, ErrNotFound
	}
	for _, a := range st.attachments {
		if a.ID == attachmentID {
			return *a, nil
		}
	}
	return Attachment{}, ErrNotFound
}

// LatestAttachment returns the most recently created attachment, optionally
// restricted to a media kind (empty kind matches all). Creation-time ties
// resolve to the later insertion.
func (r *Registry) LatestAttachment(id string, kind MediaKind) (Attachment, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	st, ok := r.sessions[id]
	if !ok {
		return Attachment{}, ErrNotFound
	}
	var best *Attachment
	for _, a := range st.attachments {
		if kind != "" && a.Kind != kind {
			continue
		}
		if best == nil || !a.CreatedAt.Before(best.CreatedAt) {
			best = a
		}
	}
	if best == nil {
		return Attachment{}, ErrNotFound
	}
	return *best, nil
}

func (r *Registry) ClearAttachments(id string) bool {
	r.mu.Lock()
	defer r.mu.Unlock()
	st, ok := r.sessions[id]
	if !ok {
		return false
	}
	st.attachments = nil
	return true
}
