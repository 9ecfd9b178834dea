package core

import "github.com/ostrenko/confab/internal/domain"

// SessionID identifies one live transport connection. It exists from
// connect to disconnect and is the handle rooms file members under.
type SessionID string

// MemberSession binds a user's meta to its transport endpoint.
// This is what a room stores and fans out to.
type MemberSession interface {
	User() *domain.User
	Signal() SignalConnection
}

type memberSession struct {
	user *domain.User
	conn SignalConnection
}

func NewMemberSession(user *domain.User, conn SignalConnection) MemberSession {
	return &memberSession{user: user, conn: conn}
}

func (m *memberSession) User() *domain.User      { return m.user }
func (m *memberSession) Signal() SignalConnection { return m.conn }
