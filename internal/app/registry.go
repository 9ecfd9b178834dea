package app

import (
	"context"
	"sync"

	"github.com/rs/zerolog/log"

	"github.com/ostrenko/confab/internal/core"
	"github.com/ostrenko/confab/internal/domain"
)

type sessionEntry struct {
	// MeetingRoom is the single meeting room this connection sits in, if
	// any. The personal channel is tracked separately: the namespaces are
	// independent by contract.
	MeetingRoom  domain.RoomID
	PersonalRoom domain.RoomID
	Session      core.MemberSession
	Cancel       context.CancelFunc
}

// Registry binds live session ids to their transport session and room
// membership. All mutations of a session's room association go through
// here, serialized by one mutex.
type Registry struct {
	mu       sync.RWMutex
	sessions map[core.SessionID]*sessionEntry
}

func NewRegistry() *Registry {
	return &Registry{sessions: make(map[core.SessionID]*sessionEntry)}
}

func (r *Registry) Bind(sid core.SessionID, sess core.MemberSession, cancel context.CancelFunc) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.sessions[sid] = &sessionEntry{Session: sess, Cancel: cancel}
	log.Info().Str("module", "app.registry").Str("sid", string(sid)).Msg("bound session")
}

func (r *Registry) Unbind(sid core.SessionID) {
	r.mu.Lock()
	defer r.mu.Unlock()
	delete(r.sessions, sid)
	log.Info().Str("module", "app.registry").Str("sid", string(sid)).Msg("unbound session")
}

func (r *Registry) GetSession(sid core.SessionID) (core.MemberSession, bool) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	if e, ok := r.sessions[sid]; ok {
		return e.Session, true
	}
	return nil, false
}

// MeetingRoomOf returns the meeting room the session currently sits in.
func (r *Registry) MeetingRoomOf(sid core.SessionID) (domain.RoomID, core.MemberSession, bool) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	e, ok := r.sessions[sid]
	if !ok || e.MeetingRoom == "" {
		return "", nil, false
	}
	return e.MeetingRoom, e.Session, true
}

func (r *Registry) PersonalRoomOf(sid core.SessionID) (domain.RoomID, bool) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	e, ok := r.sessions[sid]
	if !ok || e.PersonalRoom == "" {
		return "", false
	}
	return e.PersonalRoom, true
}

// SetRoom records the session's room association in the namespace the id
// belongs to. Returns false when the session is unknown.
func (r *Registry) SetRoom(sid core.SessionID, id domain.RoomID) bool {
	r.mu.Lock()
	defer r.mu.Unlock()
	e, ok := r.sessions[sid]
	if !ok {
		return false
	}
	if id.IsMeetingRoom() {
		e.MeetingRoom = id
	} else {
		e.PersonalRoom = id
	}
	return true
}

func (r *Registry) ClearMeetingRoom(sid core.SessionID) {
	r.mu.Lock()
	defer r.mu.Unlock()
	if e, ok := r.sessions[sid]; ok {
		e.MeetingRoom = ""
	}
}

func (r *Registry) Cancel(sid core.SessionID) bool {
	r.mu.RLock()
	e, ok := r.sessions[sid]
	r.mu.RUnlock()
	if !ok {
		return false
	}
	if e.Cancel != nil {
		e.Cancel()
	}
	return true
}
