package domain

import (
	"errors"
	"time"
)

var ErrTextEmpty = errors.New("message text empty")

type MessageID string

// Reaction is one (author, emoji) tuple. The list is append-only and keeps
// duplicates: repeated reactions act as a like count.
type Reaction struct {
	User  UserID `json:"user"`
	Emoji string `json:"emoji"`
}

// ChatMessage is the canonical stored message. TempID carries the client
// correlation id only on the broadcast that confirms an optimistic send; it
// is never persisted.
type ChatMessage struct {
	ID        MessageID  `json:"id"`
	MeetingID MeetingID  `json:"meetingId"`
	Author    UserID     `json:"user"`
	Text      string     `json:"text"`
	Reactions []Reaction `json:"reactions,omitempty"`
	CreatedAt time.Time  `json:"createdAt"`
	EditedAt  *time.Time `json:"editedAt,omitempty"`

	TempID string `json:"tempId,omitempty"`
}
