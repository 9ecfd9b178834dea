package domain

import "time"

type NotificationID string

// Notification is one per-user inbox record created when a deferred job
// fires or an invite lands.
type Notification struct {
	ID        NotificationID `json:"id"`
	User      UserID         `json:"user"`
	MeetingID MeetingID      `json:"meetingId"`
	Message   string         `json:"message"`
	Link      string         `json:"link"`
	Read      bool           `json:"read"`
	CreatedAt time.Time      `json:"createdAt"`
}

type JobID string

// JobKind distinguishes the two deferred notifications a scheduled meeting arms.
type JobKind string

const (
	JobReminder JobKind = "reminder"
	JobGoLive   JobKind = "go-live"
)

// NotificationJob is the durable record behind a deferred notification.
// Persisting it lets a restarted process re-arm or immediately fire jobs
// whose time has passed instead of losing them.
type NotificationJob struct {
	ID        JobID     `json:"id"`
	Kind      JobKind   `json:"kind"`
	MeetingID MeetingID `json:"meetingId"`
	Message   string    `json:"message"`
	FireAt    time.Time `json:"fireAt"`
}
