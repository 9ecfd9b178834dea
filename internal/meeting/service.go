// Package meeting owns the meeting lifecycle: who may start, join, end and
// delete a meeting, and which deferred notifications get armed when one is
// scheduled.
package meeting

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/rs/zerolog/log"

	"github.com/ostrenko/confab/internal/domain"
	"github.com/ostrenko/confab/internal/mail"
	"github.com/ostrenko/confab/internal/store"
)

// Scheduler arms the deferred reminder and go-live jobs for a scheduled
// meeting.
type Scheduler interface {
	ArmMeetingJobs(ctx context.Context, m domain.Meeting)
}

// Announcer pushes live room events originated by lifecycle transitions.
type Announcer interface {
	MeetingStarted(m domain.Meeting)
}

type Service struct {
	users    store.UserRepository
	meetings store.MeetingRepository

	scheduler Scheduler
	announcer Announcer
	mailer    mail.Sender

	// linkBase is the public front-end origin shareable links point at.
	linkBase string
	newID    func() string
	now      func() time.Time
}

func NewService(users store.UserRepository, meetings store.MeetingRepository, scheduler Scheduler, announcer Announcer, mailer mail.Sender, linkBase string, now func() time.Time) *Service {
	if now == nil {
		now = time.Now
	}
	if mailer == nil {
		mailer = mail.Discard{}
	}
	return &Service{
		users:     users,
		meetings:  meetings,
		scheduler: scheduler,
		announcer: announcer,
		mailer:    mailer,
		linkBase:  linkBase,
		newID:     uuid.NewString,
		now:       now,
	}
}

// StartResult is the minimal payload an instant start returns.
type StartResult struct {
	MeetingID domain.MeetingID `json:"meetingId"`
	HostID    domain.UserID    `json:"hostId"`
	Link      string           `json:"link"`
	Title     string           `json:"title"`
}

// Start creates a live meeting with the requester as host and creator.
// Instant meetings carry no participant list and arm no notifications.
func (s *Service) Start(ctx context.Context, requester domain.UserID, title, description string) (StartResult, error) {
	if title == "" {
		title = "Instant Meeting"
	}
	now := s.now()
	m := domain.Meeting{
		ID:          domain.MeetingID(s.newID()),
		Title:       title,
		Description: description,
		StartsAt:    now,
		HostID:      requester,
		CreatedBy:   requester,
		CreatedAt:   now,
	}
	m.Link = s.roomLink(m.ID)
	if err := s.meetings.CreateMeeting(ctx, m); err != nil {
		return StartResult{}, fmt.Errorf("create meeting: %w", err)
	}
	if s.announcer != nil {
		s.announcer.MeetingStarted(m)
	}
	log.Info().Str("module", "meeting").Str("meeting", string(m.ID)).Str("host", string(requester)).Msg("instant meeting started")
	return StartResult{MeetingID: m.ID, HostID: m.HostID, Link: m.Link, Title: m.Title}, nil
}

// Schedule creates a future meeting with every invitee Pending and arms the
// 24-hour reminder and go-live jobs. The whole operation fails when any
// invite email is unregistered; no meeting is created in that case.
func (s *Service) Schedule(ctx context.Context, requester domain.UserID, title, description string, startsAt time.Time, participantEmails []string) (domain.Meeting, error) {
	if title == "" {
		return domain.Meeting{}, domain.ErrTitleEmpty
	}

	var (
		invitees []domain.User
		missing  []string
	)
	for _, email := range participantEmails {
		u, err := s.users.GetUserByEmail(ctx, email)
		if errors.Is(err, store.ErrNotFound) {
			missing = append(missing, email)
			continue
		}
		if err != nil {
			return domain.Meeting{}, fmt.Errorf("resolve participant: %w", err)
		}
		invitees = append(invitees, u)
	}
	if len(missing) > 0 {
		return domain.Meeting{}, &UnknownParticipantsError{Emails: missing}
	}

	now := s.now()
	m := domain.Meeting{
		ID:          domain.MeetingID(s.newID()),
		Title:       title,
		Description: description,
		StartsAt:    startsAt,
		HostID:      requester,
		CreatedBy:   requester,
		CreatedAt:   now,
	}
	for _, u := range invitees {
		m.Participants = append(m.Participants, domain.Participant{
			User:      u.ID,
			Status:    domain.InvitePending,
			UpdatedAt: now,
		})
	}
	m.Link = s.roomLink(m.ID)
	if err := s.meetings.CreateMeeting(ctx, m); err != nil {
		return domain.Meeting{}, fmt.Errorf("create meeting: %w", err)
	}

	if s.scheduler != nil {
		s.scheduler.ArmMeetingJobs(ctx, m)
	}
	s.sendInviteNotices(m, invitees)

	log.Info().Str("module", "meeting").Str("meeting", string(m.ID)).Int("participants", len(m.Participants)).Time("starts_at", startsAt).Msg("meeting scheduled")
	return m, nil
}

// RespondInvite updates only the caller's own participant entry.
func (s *Service) RespondInvite(ctx context.Context, caller domain.UserID, id domain.MeetingID, status domain.InviteStatus) (domain.Meeting, error) {
	if !domain.ValidInviteStatus(status) || status == domain.InvitePending {
		return domain.Meeting{}, ErrInvalidStatus
	}
	m, err := s.get(ctx, id)
	if err != nil {
		return domain.Meeting{}, err
	}
	i := m.ParticipantIndex(caller)
	if i < 0 {
		return domain.Meeting{}, ErrNotAParticipant
	}
	p := domain.Participant{User: caller, Status: status, UpdatedAt: s.now()}
	if err := s.meetings.SetParticipant(ctx, id, p); err != nil {
		return domain.Meeting{}, fmt.Errorf("set participant: %w", err)
	}
	m.Participants[i] = p
	return m, nil
}

// Join adds the caller as an Accepted participant (auto-accept semantics for
// link-based joins); idempotent when already listed.
func (s *Service) Join(ctx context.Context, caller domain.UserID, id domain.MeetingID) (domain.Meeting, error) {
	m, err := s.get(ctx, id)
	if err != nil {
		return domain.Meeting{}, err
	}
	if m.ParticipantIndex(caller) >= 0 {
		return m, nil
	}
	p := domain.Participant{User: caller, Status: domain.InviteAccepted, UpdatedAt: s.now()}
	if err := s.meetings.SetParticipant(ctx, id, p); err != nil {
		return domain.Meeting{}, fmt.Errorf("set participant: %w", err)
	}
	m.Participants = append(m.Participants, p)
	return m, nil
}

// End marks the meeting ended. Only the current host may invoke it. Ending
// is advisory: the meeting id stays joinable afterwards so stragglers can
// still connect and see the end notice.
func (s *Service) End(ctx context.Context, caller domain.UserID, id domain.MeetingID) error {
	m, err := s.get(ctx, id)
	if err != nil {
		return err
	}
	if m.HostID != caller {
		return ErrUnauthorized
	}
	if err := s.meetings.SetEnded(ctx, id); err != nil {
		return fmt.Errorf("set ended: %w", err)
	}
	log.Info().Str("module", "meeting").Str("meeting", string(id)).Msg("meeting ended")
	return nil
}

// Delete removes the meeting. Only the original creator may invoke it.
func (s *Service) Delete(ctx context.Context, caller domain.UserID, id domain.MeetingID) error {
	m, err := s.get(ctx, id)
	if err != nil {
		return err
	}
	if m.CreatedBy != caller {
		return ErrUnauthorized
	}
	if err := s.meetings.DeleteMeeting(ctx, id); err != nil {
		return fmt.Errorf("delete meeting: %w", err)
	}
	return nil
}

// Get returns the meeting when it is visible to the caller.
func (s *Service) Get(ctx context.Context, caller domain.UserID, id domain.MeetingID) (domain.Meeting, error) {
	m, err := s.get(ctx, id)
	if err != nil {
		return domain.Meeting{}, err
	}
	if !m.VisibleTo(caller) {
		return domain.Meeting{}, ErrUnauthorized
	}
	return m, nil
}

// MyMeetings lists every meeting the caller created or is listed in,
// ordered by start time.
func (s *Service) MyMeetings(ctx context.Context, caller domain.UserID) ([]domain.Meeting, error) {
	return s.meetings.ListMeetingsFor(ctx, caller)
}

// Upcoming lists meetings that have not started yet where the caller is the
// creator or an Accepted participant.
func (s *Service) Upcoming(ctx context.Context, caller domain.UserID) ([]domain.Meeting, error) {
	all, err := s.meetings.ListMeetingsFor(ctx, caller)
	if err != nil {
		return nil, err
	}
	now := s.now()
	var out []domain.Meeting
	for _, m := range all {
		if m.StartsAt.Before(now) {
			continue
		}
		if m.CreatedBy == caller || s.accepted(m, caller) {
			out = append(out, m)
		}
	}
	return out, nil
}

// Previous is the complement of Upcoming on start time, regardless of
// invite status.
func (s *Service) Previous(ctx context.Context, caller domain.UserID) ([]domain.Meeting, error) {
	all, err := s.meetings.ListMeetingsFor(ctx, caller)
	if err != nil {
		return nil, err
	}
	now := s.now()
	var out []domain.Meeting
	for _, m := range all {
		if m.StartsAt.Before(now) {
			out = append(out, m)
		}
	}
	return out, nil
}

// Invites lists meetings where the caller's participant entry is Pending.
func (s *Service) Invites(ctx context.Context, caller domain.UserID) ([]domain.Meeting, error) {
	all, err := s.meetings.ListMeetingsFor(ctx, caller)
	if err != nil {
		return nil, err
	}
	var out []domain.Meeting
	for _, m := range all {
		if i := m.ParticipantIndex(caller); i >= 0 && m.Participants[i].Status == domain.InvitePending {
			out = append(out, m)
		}
	}
	return out, nil
}

func (s *Service) get(ctx context.Context, id domain.MeetingID) (domain.Meeting, error) {
	m, err := s.meetings.GetMeeting(ctx, id)
	if errors.Is(err, store.ErrNotFound) {
		return domain.Meeting{}, ErrNotFound
	}
	if err != nil {
		return domain.Meeting{}, fmt.Errorf("get meeting: %w", err)
	}
	return m, nil
}

func (s *Service) accepted(m domain.Meeting, uid domain.UserID) bool {
	i := m.ParticipantIndex(uid)
	return i >= 0 && m.Participants[i].Status == domain.InviteAccepted
}

func (s *Service) roomLink(id domain.MeetingID) string {
	return fmt.Sprintf("%s/room/%s", s.linkBase, id)
}

// HostLink is the link variant handed to the host in notifications.
func HostLink(m domain.Meeting) string {
	return fmt.Sprintf("%s?hostId=%s", m.Link, m.HostID)
}

func (s *Service) sendInviteNotices(m domain.Meeting, invitees []domain.User) {
	subject := fmt.Sprintf("Invite: %s", m.Title)
	body := fmt.Sprintf("You have been invited to %q on %s.\nOpen %s/?view=invites to respond.",
		m.Title, m.StartsAt.Format(time.RFC1123), s.linkBase)
	for _, u := range invitees {
		if !u.EmailNotifications {
			continue
		}
		s.mailer.Send(u.Email, subject, body)
	}
}
