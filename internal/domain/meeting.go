package domain

import (
	"errors"
	"time"
)

const MaxTitleLen = 140

var ErrTitleEmpty = errors.New("title empty")

type MeetingID string

// InviteStatus is the tri-state invite answer of one participant.
type InviteStatus string

const (
	InvitePending  InviteStatus = "Pending"
	InviteAccepted InviteStatus = "Accepted"
	InviteDeclined InviteStatus = "Declined"
)

// ValidInviteStatus reports whether s is one of the three known states.
func ValidInviteStatus(s InviteStatus) bool {
	switch s {
	case InvitePending, InviteAccepted, InviteDeclined:
		return true
	}
	return false
}

// Participant is one invited or joined user with their current answer.
type Participant struct {
	User      UserID       `json:"user"`
	Status    InviteStatus `json:"status"`
	UpdatedAt time.Time    `json:"updatedAt"`
}

// Meeting is the persistent meeting record. Instant meetings start live with
// no participant list; scheduled ones carry pre-listed Pending participants.
type Meeting struct {
	ID           MeetingID     `json:"id"`
	Title        string        `json:"title"`
	Description  string        `json:"description"`
	StartsAt     time.Time     `json:"startsAt"`
	Participants []Participant `json:"participants"`
	Link         string        `json:"link"`
	HostID       UserID        `json:"hostId"`
	CreatedBy    UserID        `json:"createdBy"`
	Ended        bool          `json:"ended"`
	CreatedAt    time.Time     `json:"createdAt"`
}

// ParticipantIndex returns the position of uid in the participant list,
// or -1 when absent.
func (m *Meeting) ParticipantIndex(uid UserID) int {
	for i, p := range m.Participants {
		if p.User == uid {
			return i
		}
	}
	return -1
}

// VisibleTo reports whether uid is the creator or listed as a participant.
func (m *Meeting) VisibleTo(uid UserID) bool {
	return m.CreatedBy == uid || m.ParticipantIndex(uid) >= 0
}
