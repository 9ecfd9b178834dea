package core

import "github.com/ostrenko/confab/internal/domain"

// PublishResult reports delivery stats/backpressure to the orchestrator.
type PublishResult struct {
	SentTo  int
	Dropped []MemberSession
}

// MemberDTO is a read-only view for APIs (no transport fields).
type MemberDTO struct {
	ID       domain.UserID `json:"id"`
	Username string        `json:"username"`
}

// RoomService is the core-facing API of a room.
// It owns the membership set but never touches transport resources.
type RoomService interface {
	Room() *domain.Room
	MemberCount() int
	MembersSnapshot() []MemberDTO

	AddMember(sid SessionID, ms MemberSession)
	HasMember(sid SessionID) bool
	RemoveMember(sid SessionID)
	// Broadcast fans data out to every member except from.
	Broadcast(from SessionID, data Frame) PublishResult
	// SendTo delivers data to the single member owned by user uid.
	SendTo(uid domain.UserID, data Frame) bool
}

type RoomInfo struct {
	ID          domain.RoomID `json:"id"`
	MemberCount int           `json:"member_count"`
}

// RoomManager owns the set of live rooms. Rooms appear on first join and
// must be dropped when the last member leaves so no entries leak.
type RoomManager interface {
	GetOrCreate(id domain.RoomID) RoomService
	Get(id domain.RoomID) (RoomService, bool)
	List() []RoomInfo
	StopRoom(id domain.RoomID)
}
