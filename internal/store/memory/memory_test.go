package memory

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"testing"
	"time"

	"github.com/ostrenko/confab/internal/domain"
	"github.com/ostrenko/confab/internal/store"
)

var baseTime = time.Date(2026, 8, 30, 12, 0, 0, 0, time.UTC)

func TestCreateUser_EmailUniquenessIsCaseInsensitive(t *testing.T) {
	t.Parallel()

	s := New()
	ctx := context.Background()
	if err := s.CreateUser(ctx, domain.User{ID: "u-1", Email: "Alice@Example.com"}); err != nil {
		t.Fatalf("CreateUser failed: %v", err)
	}
	if err := s.CreateUser(ctx, domain.User{ID: "u-2", Email: "alice@example.com"}); !errors.Is(err, store.ErrConflict) {
		t.Fatalf("expected ErrConflict for the same address, got %v", err)
	}
	if _, err := s.GetUserByEmail(ctx, "ALICE@example.COM"); err != nil {
		t.Errorf("lookup must be case-insensitive: %v", err)
	}
}

func TestSetParticipant_UpsertsSingleRow(t *testing.T) {
	t.Parallel()

	s := New()
	ctx := context.Background()
	if err := s.CreateMeeting(ctx, domain.Meeting{ID: "m-1", Participants: []domain.Participant{
		{User: "u-alice", Status: domain.InvitePending},
		{User: "u-bob", Status: domain.InvitePending},
	}}); err != nil {
		t.Fatal(err)
	}

	if err := s.SetParticipant(ctx, "m-1", domain.Participant{User: "u-alice", Status: domain.InviteAccepted}); err != nil {
		t.Fatalf("SetParticipant failed: %v", err)
	}
	m, err := s.GetMeeting(ctx, "m-1")
	if err != nil {
		t.Fatal(err)
	}
	if len(m.Participants) != 2 {
		t.Fatalf("upsert must not duplicate rows, got %d", len(m.Participants))
	}
	if m.Participants[0].Status != domain.InviteAccepted || m.Participants[1].Status != domain.InvitePending {
		t.Errorf("only the named row may change: %+v", m.Participants)
	}
}

func TestSetParticipant_ConcurrentWritersKeepBothRows(t *testing.T) {
	t.Parallel()

	s := New()
	ctx := context.Background()
	if err := s.CreateMeeting(ctx, domain.Meeting{ID: "m-1", Participants: []domain.Participant{
		{User: "u-alice", Status: domain.InvitePending},
		{User: "u-bob", Status: domain.InvitePending},
	}}); err != nil {
		t.Fatal(err)
	}

	var wg sync.WaitGroup
	wg.Add(2)
	go func() {
		defer wg.Done()
		_ = s.SetParticipant(ctx, "m-1", domain.Participant{User: "u-alice", Status: domain.InviteAccepted})
	}()
	go func() {
		defer wg.Done()
		_ = s.SetParticipant(ctx, "m-1", domain.Participant{User: "u-bob", Status: domain.InviteDeclined})
	}()
	wg.Wait()

	m, _ := s.GetMeeting(ctx, "m-1")
	if i := m.ParticipantIndex("u-alice"); m.Participants[i].Status != domain.InviteAccepted {
		t.Errorf("alice's write lost")
	}
	if i := m.ParticipantIndex("u-bob"); m.Participants[i].Status != domain.InviteDeclined {
		t.Errorf("bob's write lost")
	}
}

func TestListMessages_CreationOrderWithStableTies(t *testing.T) {
	t.Parallel()

	s := New()
	ctx := context.Background()
	// Two messages share a timestamp: insertion order must break the tie.
	msgs := []domain.ChatMessage{
		{ID: "c", MeetingID: "m-1", Text: "third", CreatedAt: baseTime.Add(time.Second)},
		{ID: "a", MeetingID: "m-1", Text: "first", CreatedAt: baseTime},
		{ID: "b", MeetingID: "m-1", Text: "second", CreatedAt: baseTime},
		{ID: "x", MeetingID: "m-other", Text: "elsewhere", CreatedAt: baseTime},
	}
	_ = s.CreateMessage(ctx, msgs[1]) // a
	_ = s.CreateMessage(ctx, msgs[2]) // b
	_ = s.CreateMessage(ctx, msgs[0]) // c
	_ = s.CreateMessage(ctx, msgs[3])

	got, err := s.ListMessages(ctx, "m-1")
	if err != nil {
		t.Fatal(err)
	}
	want := []domain.MessageID{"a", "b", "c"}
	if len(got) != len(want) {
		t.Fatalf("expected %d messages, got %d", len(want), len(got))
	}
	for i, id := range want {
		if got[i].ID != id {
			t.Errorf("position %d: expected %s, got %s", i, id, got[i].ID)
		}
	}
}

func TestCreateMessage_NeverPersistsTempID(t *testing.T) {
	t.Parallel()

	s := New()
	ctx := context.Background()
	_ = s.CreateMessage(ctx, domain.ChatMessage{ID: "m", MeetingID: "m-1", Text: "hi", TempID: "temp-1", CreatedAt: baseTime})
	got, err := s.GetMessage(ctx, "m")
	if err != nil {
		t.Fatal(err)
	}
	if got.TempID != "" {
		t.Fatalf("correlation id leaked into storage: %q", got.TempID)
	}
}

func TestAppendReaction_ConcurrentAppendsAllSurvive(t *testing.T) {
	t.Parallel()

	s := New()
	ctx := context.Background()
	if err := s.CreateMessage(ctx, domain.ChatMessage{ID: "m", MeetingID: "m-1", Text: "hi", CreatedAt: baseTime}); err != nil {
		t.Fatal(err)
	}

	const writers = 8
	var wg sync.WaitGroup
	wg.Add(writers)
	for i := 0; i < writers; i++ {
		i := i
		go func() {
			defer wg.Done()
			r := domain.Reaction{User: domain.UserID(fmt.Sprintf("u-%d", i)), Emoji: "👍"}
			if _, err := s.AppendReaction(ctx, "m", r); err != nil {
				t.Errorf("AppendReaction: %v", err)
			}
		}()
	}
	wg.Wait()

	got, err := s.GetMessage(ctx, "m")
	if err != nil {
		t.Fatal(err)
	}
	if len(got.Reactions) != writers {
		t.Fatalf("an append must never erase a concurrent one: kept %d of %d", len(got.Reactions), writers)
	}
	seen := make(map[domain.UserID]bool, writers)
	for _, r := range got.Reactions {
		seen[r.User] = true
	}
	if len(seen) != writers {
		t.Errorf("duplicate or lost reaction rows: %v", got.Reactions)
	}
}

func TestListNotifications_NewestFirstAndUnreadFilter(t *testing.T) {
	t.Parallel()

	s := New()
	ctx := context.Background()
	_ = s.CreateNotification(ctx, domain.Notification{ID: "n-old", User: "u-1", CreatedAt: baseTime})
	_ = s.CreateNotification(ctx, domain.Notification{ID: "n-new", User: "u-1", CreatedAt: baseTime.Add(time.Minute)})
	_ = s.CreateNotification(ctx, domain.Notification{ID: "n-foreign", User: "u-2", CreatedAt: baseTime})

	all, err := s.ListNotifications(ctx, "u-1", false)
	if err != nil {
		t.Fatal(err)
	}
	if len(all) != 2 || all[0].ID != "n-new" || all[1].ID != "n-old" {
		t.Fatalf("expected newest first for the owner only, got %+v", all)
	}

	if _, err := s.MarkRead(ctx, "u-1", "n-new"); err != nil {
		t.Fatalf("MarkRead failed: %v", err)
	}
	unread, _ := s.ListNotifications(ctx, "u-1", true)
	if len(unread) != 1 || unread[0].ID != "n-old" {
		t.Errorf("unread filter broken: %+v", unread)
	}
}

func TestMarkRead_OwnerOnly(t *testing.T) {
	t.Parallel()

	s := New()
	ctx := context.Background()
	_ = s.CreateNotification(ctx, domain.Notification{ID: "n-1", User: "u-owner", CreatedAt: baseTime})

	if _, err := s.MarkRead(ctx, "u-other", "n-1"); !errors.Is(err, store.ErrNotFound) {
		t.Fatalf("foreign MarkRead must read as not found, got %v", err)
	}
}

func TestClaimJob_ExactlyOnce(t *testing.T) {
	t.Parallel()

	s := New()
	ctx := context.Background()
	_ = s.PutJob(ctx, domain.NotificationJob{ID: "j-1", FireAt: baseTime})

	const claimers = 8
	var wg sync.WaitGroup
	wins := make(chan bool, claimers)
	for i := 0; i < claimers; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			won, err := s.ClaimJob(ctx, "j-1")
			if err != nil {
				t.Errorf("ClaimJob error: %v", err)
				return
			}
			if won {
				wins <- true
			}
		}()
	}
	wg.Wait()
	close(wins)

	total := 0
	for range wins {
		total++
	}
	if total != 1 {
		t.Fatalf("expected exactly one winner, got %d", total)
	}
}

func TestListJobs_SortedByFireTime(t *testing.T) {
	t.Parallel()

	s := New()
	ctx := context.Background()
	_ = s.PutJob(ctx, domain.NotificationJob{ID: "late", FireAt: baseTime.Add(time.Hour)})
	_ = s.PutJob(ctx, domain.NotificationJob{ID: "soon", FireAt: baseTime})

	jobs, err := s.ListJobs(ctx)
	if err != nil {
		t.Fatal(err)
	}
	if len(jobs) != 2 || jobs[0].ID != "soon" || jobs[1].ID != "late" {
		t.Fatalf("expected fire-time order, got %+v", jobs)
	}
}

func TestMeetingClonesAreIsolated(t *testing.T) {
	t.Parallel()

	s := New()
	ctx := context.Background()
	_ = s.CreateMeeting(ctx, domain.Meeting{ID: "m-1", Participants: []domain.Participant{
		{User: "u-alice", Status: domain.InvitePending},
	}})

	m, _ := s.GetMeeting(ctx, "m-1")
	m.Participants[0].Status = domain.InviteDeclined

	again, _ := s.GetMeeting(ctx, "m-1")
	if again.Participants[0].Status != domain.InvitePending {
		t.Fatalf("caller mutation leaked into the store")
	}
}
