package meeting

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/ostrenko/confab/internal/domain"
	"github.com/ostrenko/confab/internal/store"
)

type userRepoStub struct {
	byEmail map[string]domain.User
	byID    map[domain.UserID]domain.User
}

func (u *userRepoStub) CreateUser(ctx context.Context, user domain.User) error { return nil }

func (u *userRepoStub) GetUser(ctx context.Context, id domain.UserID) (domain.User, error) {
	user, ok := u.byID[id]
	if !ok {
		return domain.User{}, store.ErrNotFound
	}
	return user, nil
}

func (u *userRepoStub) GetUserByEmail(ctx context.Context, email string) (domain.User, error) {
	user, ok := u.byEmail[email]
	if !ok {
		return domain.User{}, store.ErrNotFound
	}
	return user, nil
}

func (u *userRepoStub) UpdateUser(ctx context.Context, user domain.User) error { return nil }

type meetingRepoStub struct {
	meeting domain.Meeting

	created      []domain.Meeting
	participants []domain.Participant
	ended        []domain.MeetingID
	deleted      []domain.MeetingID
	list         []domain.Meeting
}

func (m *meetingRepoStub) CreateMeeting(ctx context.Context, mt domain.Meeting) error {
	m.created = append(m.created, mt)
	return nil
}

func (m *meetingRepoStub) GetMeeting(ctx context.Context, id domain.MeetingID) (domain.Meeting, error) {
	if m.meeting.ID != id {
		return domain.Meeting{}, store.ErrNotFound
	}
	return m.meeting, nil
}

func (m *meetingRepoStub) UpdateMeeting(ctx context.Context, mt domain.Meeting) error { return nil }

func (m *meetingRepoStub) DeleteMeeting(ctx context.Context, id domain.MeetingID) error {
	m.deleted = append(m.deleted, id)
	return nil
}

func (m *meetingRepoStub) SetParticipant(ctx context.Context, id domain.MeetingID, p domain.Participant) error {
	m.participants = append(m.participants, p)
	return nil
}

func (m *meetingRepoStub) SetEnded(ctx context.Context, id domain.MeetingID) error {
	m.ended = append(m.ended, id)
	return nil
}

func (m *meetingRepoStub) ListMeetingsFor(ctx context.Context, uid domain.UserID) ([]domain.Meeting, error) {
	out := make([]domain.Meeting, len(m.list))
	copy(out, m.list)
	return out, nil
}

type schedulerStub struct {
	armed []domain.Meeting
}

func (s *schedulerStub) ArmMeetingJobs(ctx context.Context, m domain.Meeting) {
	s.armed = append(s.armed, m)
}

type announcerStub struct {
	started []domain.Meeting
}

func (a *announcerStub) MeetingStarted(m domain.Meeting) { a.started = append(a.started, m) }

type mailerStub struct {
	sent []string
}

func (m *mailerStub) Send(to, subject, body string) { m.sent = append(m.sent, to) }

var fixedNow = time.Date(2026, 8, 30, 12, 0, 0, 0, time.UTC)

func fixedClock() time.Time { return fixedNow }

func newTestService(users *userRepoStub, meetings *meetingRepoStub, sched *schedulerStub, ann *announcerStub, mailer *mailerStub) *Service {
	return NewService(users, meetings, sched, ann, mailer, "http://localhost:5173", fixedClock)
}

func TestStart_DefaultsTitleAndAnnounces(t *testing.T) {
	t.Parallel()

	meetings := &meetingRepoStub{}
	ann := &announcerStub{}
	svc := newTestService(&userRepoStub{}, meetings, &schedulerStub{}, ann, &mailerStub{})

	res, err := svc.Start(context.Background(), "host-1", "", "")
	if err != nil {
		t.Fatalf("Start failed: %v", err)
	}
	if res.Title != "Instant Meeting" {
		t.Errorf("expected default title, got %q", res.Title)
	}
	if res.HostID != "host-1" {
		t.Errorf("expected requester as host, got %q", res.HostID)
	}
	if res.Link != "http://localhost:5173/room/"+string(res.MeetingID) {
		t.Errorf("unexpected link %q", res.Link)
	}
	if len(meetings.created) != 1 {
		t.Fatalf("expected one created meeting, got %d", len(meetings.created))
	}
	if len(meetings.created[0].Participants) != 0 {
		t.Errorf("instant meeting must not carry a participant list")
	}
	if len(ann.started) != 1 {
		t.Errorf("expected meeting-started announcement, got %d", len(ann.started))
	}
}

func TestSchedule_RejectsUnknownParticipants(t *testing.T) {
	t.Parallel()

	users := &userRepoStub{byEmail: map[string]domain.User{
		"alice@example.com": {ID: "u-alice", Email: "alice@example.com", EmailNotifications: true},
	}}
	meetings := &meetingRepoStub{}
	sched := &schedulerStub{}
	mailer := &mailerStub{}
	svc := newTestService(users, meetings, sched, &announcerStub{}, mailer)

	_, err := svc.Schedule(context.Background(), "host-1", "Standup", "", fixedNow.Add(48*time.Hour),
		[]string{"alice@example.com", "ghost@x.com", "nobody@y.com"})

	var unknown *UnknownParticipantsError
	if !errors.As(err, &unknown) {
		t.Fatalf("expected UnknownParticipantsError, got %v", err)
	}
	if len(unknown.Emails) != 2 || unknown.Emails[0] != "ghost@x.com" || unknown.Emails[1] != "nobody@y.com" {
		t.Errorf("expected both missing emails listed, got %v", unknown.Emails)
	}
	if len(meetings.created) != 0 {
		t.Errorf("no meeting may be created on a partial invite failure")
	}
	if len(sched.armed) != 0 || len(mailer.sent) != 0 {
		t.Errorf("no jobs or mail on failure")
	}
}

func TestSchedule_ArmsJobsAndMailsOptedInOnly(t *testing.T) {
	t.Parallel()

	users := &userRepoStub{byEmail: map[string]domain.User{
		"alice@example.com": {ID: "u-alice", Email: "alice@example.com", EmailNotifications: true},
		"bob@example.com":   {ID: "u-bob", Email: "bob@example.com", EmailNotifications: false},
	}}
	meetings := &meetingRepoStub{}
	sched := &schedulerStub{}
	mailer := &mailerStub{}
	svc := newTestService(users, meetings, sched, &announcerStub{}, mailer)

	m, err := svc.Schedule(context.Background(), "host-1", "Planning", "weekly", fixedNow.Add(48*time.Hour),
		[]string{"alice@example.com", "bob@example.com"})
	if err != nil {
		t.Fatalf("Schedule failed: %v", err)
	}
	if len(m.Participants) != 2 {
		t.Fatalf("expected 2 participants, got %d", len(m.Participants))
	}
	for _, p := range m.Participants {
		if p.Status != domain.InvitePending {
			t.Errorf("invitee %s must start Pending, got %s", p.User, p.Status)
		}
	}
	if len(sched.armed) != 1 {
		t.Errorf("expected one ArmMeetingJobs call, got %d", len(sched.armed))
	}
	if len(mailer.sent) != 1 || mailer.sent[0] != "alice@example.com" {
		t.Errorf("mail must go only to opted-in invitees, got %v", mailer.sent)
	}
}

func TestJoin_AutoAcceptsAndIsIdempotent(t *testing.T) {
	t.Parallel()

	meetings := &meetingRepoStub{meeting: domain.Meeting{ID: "m-1", HostID: "host-1", CreatedBy: "host-1"}}
	svc := newTestService(&userRepoStub{}, meetings, &schedulerStub{}, &announcerStub{}, &mailerStub{})

	m, err := svc.Join(context.Background(), "u-carol", "m-1")
	if err != nil {
		t.Fatalf("Join failed: %v", err)
	}
	if i := m.ParticipantIndex("u-carol"); i < 0 || m.Participants[i].Status != domain.InviteAccepted {
		t.Fatalf("link join must auto-accept, got %+v", m.Participants)
	}
	if len(meetings.participants) != 1 {
		t.Fatalf("expected one participant write, got %d", len(meetings.participants))
	}

	// Second join of an already listed user must not write again.
	meetings.meeting.Participants = m.Participants
	if _, err := svc.Join(context.Background(), "u-carol", "m-1"); err != nil {
		t.Fatalf("repeat Join failed: %v", err)
	}
	if len(meetings.participants) != 1 {
		t.Errorf("repeat join must be a no-op, got %d writes", len(meetings.participants))
	}
}

func TestRespondInvite(t *testing.T) {
	t.Parallel()

	base := domain.Meeting{
		ID: "m-1", HostID: "host-1", CreatedBy: "host-1",
		Participants: []domain.Participant{
			{User: "u-alice", Status: domain.InvitePending},
			{User: "u-bob", Status: domain.InvitePending},
		},
	}

	t.Run("accept updates only own entry", func(t *testing.T) {
		t.Parallel()
		meetings := &meetingRepoStub{meeting: base}
		svc := newTestService(&userRepoStub{}, meetings, &schedulerStub{}, &announcerStub{}, &mailerStub{})

		m, err := svc.RespondInvite(context.Background(), "u-alice", "m-1", domain.InviteAccepted)
		if err != nil {
			t.Fatalf("RespondInvite failed: %v", err)
		}
		if m.Participants[0].Status != domain.InviteAccepted {
			t.Errorf("caller's entry not updated: %+v", m.Participants[0])
		}
		if m.Participants[1].Status != domain.InvitePending {
			t.Errorf("other entries must be untouched: %+v", m.Participants[1])
		}
		if len(meetings.participants) != 1 || meetings.participants[0].User != "u-alice" {
			t.Errorf("expected a single write for the caller, got %+v", meetings.participants)
		}
	})

	t.Run("non-participant rejected", func(t *testing.T) {
		t.Parallel()
		meetings := &meetingRepoStub{meeting: base}
		svc := newTestService(&userRepoStub{}, meetings, &schedulerStub{}, &announcerStub{}, &mailerStub{})

		_, err := svc.RespondInvite(context.Background(), "u-stranger", "m-1", domain.InviteDeclined)
		if !errors.Is(err, ErrNotAParticipant) {
			t.Fatalf("expected ErrNotAParticipant, got %v", err)
		}
	})

	t.Run("pending and garbage statuses rejected", func(t *testing.T) {
		t.Parallel()
		meetings := &meetingRepoStub{meeting: base}
		svc := newTestService(&userRepoStub{}, meetings, &schedulerStub{}, &announcerStub{}, &mailerStub{})

		for _, status := range []domain.InviteStatus{domain.InvitePending, "Maybe"} {
			if _, err := svc.RespondInvite(context.Background(), "u-alice", "m-1", status); !errors.Is(err, ErrInvalidStatus) {
				t.Errorf("status %q: expected ErrInvalidStatus, got %v", status, err)
			}
		}
	})
}

func TestEnd_HostOnly(t *testing.T) {
	t.Parallel()

	meetings := &meetingRepoStub{meeting: domain.Meeting{ID: "m-1", HostID: "host-1", CreatedBy: "host-1",
		Participants: []domain.Participant{{User: "u-alice", Status: domain.InviteAccepted}}}}
	svc := newTestService(&userRepoStub{}, meetings, &schedulerStub{}, &announcerStub{}, &mailerStub{})

	if err := svc.End(context.Background(), "u-alice", "m-1"); !errors.Is(err, ErrUnauthorized) {
		t.Fatalf("participant must not end the meeting, got %v", err)
	}
	if len(meetings.ended) != 0 {
		t.Fatalf("unauthorized end must not hit the store")
	}
	if err := svc.End(context.Background(), "host-1", "m-1"); err != nil {
		t.Fatalf("host End failed: %v", err)
	}
	if len(meetings.ended) != 1 {
		t.Errorf("expected one SetEnded write, got %d", len(meetings.ended))
	}
}

func TestDelete_CreatorOnly(t *testing.T) {
	t.Parallel()

	// Host was handed over; only the creator may delete.
	meetings := &meetingRepoStub{meeting: domain.Meeting{ID: "m-1", HostID: "u-alice", CreatedBy: "creator-1"}}
	svc := newTestService(&userRepoStub{}, meetings, &schedulerStub{}, &announcerStub{}, &mailerStub{})

	if err := svc.Delete(context.Background(), "u-alice", "m-1"); !errors.Is(err, ErrUnauthorized) {
		t.Fatalf("host that is not the creator must not delete, got %v", err)
	}
	if err := svc.Delete(context.Background(), "creator-1", "m-1"); err != nil {
		t.Fatalf("creator Delete failed: %v", err)
	}
	if len(meetings.deleted) != 1 {
		t.Errorf("expected one delete, got %d", len(meetings.deleted))
	}
}

func TestUpcomingPreviousInvites(t *testing.T) {
	t.Parallel()

	caller := domain.UserID("u-me")
	meetings := &meetingRepoStub{list: []domain.Meeting{
		{ID: "past", StartsAt: fixedNow.Add(-time.Hour), CreatedBy: "other",
			Participants: []domain.Participant{{User: caller, Status: domain.InviteDeclined}}},
		{ID: "at-now", StartsAt: fixedNow, CreatedBy: caller},
		{ID: "future-accepted", StartsAt: fixedNow.Add(time.Hour), CreatedBy: "other",
			Participants: []domain.Participant{{User: caller, Status: domain.InviteAccepted}}},
		{ID: "future-pending", StartsAt: fixedNow.Add(2 * time.Hour), CreatedBy: "other",
			Participants: []domain.Participant{{User: caller, Status: domain.InvitePending}}},
	}}
	svc := newTestService(&userRepoStub{}, meetings, &schedulerStub{}, &announcerStub{}, &mailerStub{})

	up, err := svc.Upcoming(context.Background(), caller)
	if err != nil {
		t.Fatalf("Upcoming failed: %v", err)
	}
	// A meeting starting exactly now is still upcoming; pending invites are
	// not, until accepted.
	wantUp := map[domain.MeetingID]bool{"at-now": true, "future-accepted": true}
	if len(up) != len(wantUp) {
		t.Fatalf("expected %d upcoming, got %d (%v)", len(wantUp), len(up), up)
	}
	for _, m := range up {
		if !wantUp[m.ID] {
			t.Errorf("unexpected upcoming meeting %s", m.ID)
		}
	}

	prev, err := svc.Previous(context.Background(), caller)
	if err != nil {
		t.Fatalf("Previous failed: %v", err)
	}
	if len(prev) != 1 || prev[0].ID != "past" {
		t.Errorf("expected only the past meeting regardless of status, got %v", prev)
	}

	inv, err := svc.Invites(context.Background(), caller)
	if err != nil {
		t.Fatalf("Invites failed: %v", err)
	}
	if len(inv) != 1 || inv[0].ID != "future-pending" {
		t.Errorf("expected only the pending invite, got %v", inv)
	}
}

func TestGet_HiddenFromStrangers(t *testing.T) {
	t.Parallel()

	meetings := &meetingRepoStub{meeting: domain.Meeting{ID: "m-1", HostID: "host-1", CreatedBy: "host-1"}}
	svc := newTestService(&userRepoStub{}, meetings, &schedulerStub{}, &announcerStub{}, &mailerStub{})

	if _, err := svc.Get(context.Background(), "u-stranger", "m-1"); !errors.Is(err, ErrUnauthorized) {
		t.Fatalf("expected ErrUnauthorized for a stranger, got %v", err)
	}
	if _, err := svc.Get(context.Background(), "host-1", "m-1"); err != nil {
		t.Fatalf("creator Get failed: %v", err)
	}
	if _, err := svc.Get(context.Background(), "host-1", "nope"); !errors.Is(err, ErrNotFound) {
		t.Fatalf("expected ErrNotFound, got %v", err)
	}
}
