// Package store defines the persistence contracts the coordination core
// depends on. The core treats storage as a transactional document store
// keyed by entity id; implementations live in subpackages.
package store

import (
	"context"
	"errors"

	"github.com/ostrenko/confab/internal/domain"
)

var (
	ErrNotFound = errors.New("store: not found")
	ErrConflict = errors.New("store: conflict")
)

type UserRepository interface {
	CreateUser(ctx context.Context, u domain.User) error
	GetUser(ctx context.Context, id domain.UserID) (domain.User, error)
	GetUserByEmail(ctx context.Context, email string) (domain.User, error)
	UpdateUser(ctx context.Context, u domain.User) error
}

type MeetingRepository interface {
	CreateMeeting(ctx context.Context, m domain.Meeting) error
	GetMeeting(ctx context.Context, id domain.MeetingID) (domain.Meeting, error)
	UpdateMeeting(ctx context.Context, m domain.Meeting) error
	DeleteMeeting(ctx context.Context, id domain.MeetingID) error
	// SetParticipant upserts a single participant entry atomically, so two
	// concurrent invite responses never clobber each other's rows.
	SetParticipant(ctx context.Context, id domain.MeetingID, p domain.Participant) error
	// SetEnded flips only the ended flag, leaving concurrent participant
	// writes untouched.
	SetEnded(ctx context.Context, id domain.MeetingID) error
	// ListMeetingsFor returns every meeting the user created or is listed in.
	ListMeetingsFor(ctx context.Context, uid domain.UserID) ([]domain.Meeting, error)
}

type ChatRepository interface {
	CreateMessage(ctx context.Context, m domain.ChatMessage) error
	GetMessage(ctx context.Context, id domain.MessageID) (domain.ChatMessage, error)
	UpdateMessage(ctx context.Context, m domain.ChatMessage) error
	DeleteMessage(ctx context.Context, id domain.MessageID) error
	// AppendReaction appends one reaction tuple and returns the updated
	// message. Append-only: duplicates are kept.
	AppendReaction(ctx context.Context, id domain.MessageID, r domain.Reaction) (domain.ChatMessage, error)
	// ListMessages returns the meeting's messages ordered by creation time.
	ListMessages(ctx context.Context, meetingID domain.MeetingID) ([]domain.ChatMessage, error)
}

type NotificationRepository interface {
	CreateNotification(ctx context.Context, n domain.Notification) error
	ListNotifications(ctx context.Context, uid domain.UserID, unreadOnly bool) ([]domain.Notification, error)
	MarkRead(ctx context.Context, uid domain.UserID, id domain.NotificationID) (domain.Notification, error)
}

// JobRepository holds durable deferred-notification jobs. A job is claimed
// exactly once: ClaimJob removes it atomically and reports whether this
// caller won, which is what keeps concurrent timers from double-firing.
type JobRepository interface {
	PutJob(ctx context.Context, j domain.NotificationJob) error
	ListJobs(ctx context.Context) ([]domain.NotificationJob, error)
	ClaimJob(ctx context.Context, id domain.JobID) (bool, error)
}

// Store aggregates every repository an assembled server needs.
type Store interface {
	UserRepository
	MeetingRepository
	ChatRepository
	NotificationRepository
	JobRepository
}
