// Package notify arms and fires the deferred notifications of scheduled
// meetings: the 24-hour reminder and the go-live alert. Jobs are durable
// records; a restarted process sweeps the store, re-arms future jobs and
// immediately fires overdue ones, so a timer lost to a restart is not lost
// for good.
package notify

import (
	"context"
	"fmt"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/rs/zerolog/log"

	"github.com/ostrenko/confab/internal/domain"
	"github.com/ostrenko/confab/internal/meeting"
	"github.com/ostrenko/confab/internal/store"
)

const reminderLead = 24 * time.Hour

// Pusher delivers the live side of a fired job.
type Pusher interface {
	// RoomNotification fans the event out to every connected member of the
	// meeting's room.
	RoomNotification(meetingID domain.MeetingID, link, message string)
	// UserNotification pushes the record to the target's personal channel.
	UserNotification(n domain.Notification)
}

type Scheduler struct {
	jobs          store.JobRepository
	meetings      store.MeetingRepository
	notifications store.NotificationRepository
	pusher        Pusher
	now           func() time.Time

	mu     sync.Mutex
	timers map[domain.JobID]*time.Timer
	closed bool
}

func NewScheduler(jobs store.JobRepository, meetings store.MeetingRepository, notifications store.NotificationRepository, pusher Pusher, now func() time.Time) *Scheduler {
	if now == nil {
		now = time.Now
	}
	return &Scheduler{
		jobs:          jobs,
		meetings:      meetings,
		notifications: notifications,
		pusher:        pusher,
		now:           now,
		timers:        make(map[domain.JobID]*time.Timer),
	}
}

// ArmMeetingJobs arms the reminder and go-live jobs for a freshly scheduled
// meeting. A job whose fire time is already past at arm time is dropped:
// notifications never fire retroactively.
func (s *Scheduler) ArmMeetingJobs(ctx context.Context, m domain.Meeting) {
	s.Arm(ctx, domain.NotificationJob{
		ID:        domain.JobID(uuid.NewString()),
		Kind:      domain.JobReminder,
		MeetingID: m.ID,
		Message:   fmt.Sprintf("Your meeting %q starts in 24 hours.", m.Title),
		FireAt:    m.StartsAt.Add(-reminderLead),
	})
	s.Arm(ctx, domain.NotificationJob{
		ID:        domain.JobID(uuid.NewString()),
		Kind:      domain.JobGoLive,
		MeetingID: m.ID,
		Message:   fmt.Sprintf("Meeting %q is now live!", m.Title),
		FireAt:    m.StartsAt,
	})
}

// Arm persists the job and starts its single-shot timer.
func (s *Scheduler) Arm(ctx context.Context, j domain.NotificationJob) {
	if !j.FireAt.After(s.now()) {
		log.Debug().Str("module", "notify").Str("job", string(j.ID)).Str("kind", string(j.Kind)).Msg("fire time already past, job dropped")
		return
	}
	if err := s.jobs.PutJob(ctx, j); err != nil {
		log.Error().Err(err).Str("module", "notify").Str("job", string(j.ID)).Msg("persist job")
		return
	}
	s.armTimer(j)
}

// RecoverySweep re-arms every persisted job on process start. Jobs whose
// fire time passed while the process was down fire immediately.
func (s *Scheduler) RecoverySweep(ctx context.Context) error {
	jobs, err := s.jobs.ListJobs(ctx)
	if err != nil {
		return fmt.Errorf("list jobs: %w", err)
	}
	now := s.now()
	for _, j := range jobs {
		if j.FireAt.After(now) {
			s.armTimer(j)
			continue
		}
		log.Info().Str("module", "notify").Str("job", string(j.ID)).Time("fire_at", j.FireAt).Msg("overdue job, firing now")
		s.Fire(ctx, j)
	}
	return nil
}

// Close stops all armed timers. Persisted jobs stay put for the next sweep.
func (s *Scheduler) Close() {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.closed = true
	for id, t := range s.timers {
		t.Stop()
		delete(s.timers, id)
	}
}

func (s *Scheduler) armTimer(j domain.NotificationJob) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.closed {
		return
	}
	delay := j.FireAt.Sub(s.now())
	s.timers[j.ID] = time.AfterFunc(delay, func() {
		s.mu.Lock()
		delete(s.timers, j.ID)
		s.mu.Unlock()
		s.Fire(context.Background(), j)
	})
}

// Fire dispatches one job. The claim is an atomic delete, so concurrent
// timers for the same job resolve to exactly one dispatch. A job whose
// meeting has ended (or vanished) is claimed and discarded: a stale
// reminder after the meeting is over must be a no-op.
func (s *Scheduler) Fire(ctx context.Context, j domain.NotificationJob) {
	won, err := s.jobs.ClaimJob(ctx, j.ID)
	if err != nil {
		log.Error().Err(err).Str("module", "notify").Str("job", string(j.ID)).Msg("claim job")
		return
	}
	if !won {
		return
	}
	m, err := s.meetings.GetMeeting(ctx, j.MeetingID)
	if err != nil {
		log.Warn().Err(err).Str("module", "notify").Str("job", string(j.ID)).Msg("meeting gone, job discarded")
		return
	}
	if m.Ended {
		log.Info().Str("module", "notify").Str("meeting", string(m.ID)).Str("kind", string(j.Kind)).Msg("meeting already ended, job discarded")
		return
	}

	now := s.now()
	// Host gets the host link variant; participants get the plain link.
	s.record(ctx, m.HostID, m, j.Message, meeting.HostLink(m), now)
	for _, p := range m.Participants {
		if p.User == m.HostID {
			continue
		}
		s.record(ctx, p.User, m, j.Message, m.Link, now)
	}
	if s.pusher != nil {
		s.pusher.RoomNotification(m.ID, m.Link, j.Message)
	}
	log.Info().Str("module", "notify").Str("meeting", string(m.ID)).Str("kind", string(j.Kind)).Msg("notification dispatched")
}

func (s *Scheduler) record(ctx context.Context, uid domain.UserID, m domain.Meeting, message, link string, now time.Time) {
	n := domain.Notification{
		ID:        domain.NotificationID(uuid.NewString()),
		User:      uid,
		MeetingID: m.ID,
		Message:   message,
		Link:      link,
		CreatedAt: now,
	}
	if err := s.notifications.CreateNotification(ctx, n); err != nil {
		log.Error().Err(err).Str("module", "notify").Str("user", string(uid)).Msg("persist notification")
		return
	}
	if s.pusher != nil {
		s.pusher.UserNotification(n)
	}
}
