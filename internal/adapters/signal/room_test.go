package signal

import (
	"context"
	"encoding/json"
	"testing"
	"time"

	"github.com/ostrenko/confab/internal/app"
	"github.com/ostrenko/confab/internal/core"
	"github.com/ostrenko/confab/internal/domain"
	"github.com/ostrenko/confab/internal/meeting"
	"github.com/ostrenko/confab/internal/store/memory"
	"github.com/ostrenko/confab/internal/wire"
)

type signalFixture struct {
	ctl      *Controller
	meetings *meeting.Service
}

func newSignalFixture(t *testing.T) *signalFixture {
	t.Helper()
	st := memory.New()
	orch := &app.Orchestrator{
		Registry: app.NewRegistry(),
		Rooms:    app.NewRoomManager(),
		Policy:   app.DropPolicy{},
	}
	now := func() time.Time { return time.Date(2026, 8, 30, 12, 0, 0, 0, time.UTC) }
	meetings := meeting.NewService(st, st, nil, nil, nil, "http://localhost:5173", now)
	return &signalFixture{
		ctl:      &Controller{Orch: orch, Meetings: meetings, Users: st},
		meetings: meetings,
	}
}

// bindConn registers a connection for the user and returns its transport so
// tests can inspect the frames queued for it.
func (f *signalFixture) bindConn(sid core.SessionID, u *domain.User) *wsSignalConn {
	conn := &wsSignalConn{send: make(chan core.Frame, sendQueueSize)}
	f.ctl.Orch.Registry.Bind(sid, core.NewMemberSession(u, conn), nil)
	return conn
}

func drainFrames(t *testing.T, c *wsSignalConn) []wire.Envelope {
	t.Helper()
	var out []wire.Envelope
	for {
		select {
		case f := <-c.send:
			var env wire.Envelope
			if err := json.Unmarshal(f, &env); err != nil {
				t.Fatalf("frame is not an envelope: %v", err)
			}
			out = append(out, env)
		default:
			return out
		}
	}
}

func joinPayload(t *testing.T, meetingID domain.MeetingID) []byte {
	t.Helper()
	b, err := json.Marshal(wire.JoinRoom{MeetingID: string(meetingID)})
	if err != nil {
		t.Fatal(err)
	}
	return b
}

func TestJoinRoom_SwitchingMeetingsAnnouncesLeaveToPreviousRoom(t *testing.T) {
	t.Parallel()

	f := newSignalFixture(t)
	ctx := context.Background()

	alice := &domain.User{ID: "u-alice", Username: "alice"}
	bob := &domain.User{ID: "u-bob", Username: "bob"}
	connAlice := f.bindConn("s-alice", alice)
	connBob := f.bindConn("s-bob", bob)

	m1, err := f.meetings.Start(ctx, alice.ID, "First", "")
	if err != nil {
		t.Fatal(err)
	}
	m2, err := f.meetings.Start(ctx, bob.ID, "Second", "")
	if err != nil {
		t.Fatal(err)
	}

	f.ctl.handleJoinRoom(ctx, "s-alice", alice, connAlice, joinPayload(t, m1.MeetingID))
	f.ctl.handleJoinRoom(ctx, "s-bob", bob, connBob, joinPayload(t, m1.MeetingID))
	drainFrames(t, connAlice)
	drainFrames(t, connBob)

	// Bob switches to another meeting without an explicit leave-room.
	f.ctl.handleJoinRoom(ctx, "s-bob", bob, connBob, joinPayload(t, m2.MeetingID))

	var leftIDs []string
	for _, env := range drainFrames(t, connAlice) {
		if env.Event != wire.EventUserLeft {
			continue
		}
		var p wire.UserLeft
		if err := json.Unmarshal(env.Data, &p); err != nil {
			t.Fatal(err)
		}
		leftIDs = append(leftIDs, p.ID)
	}
	if len(leftIDs) != 1 || leftIDs[0] != "u-bob" {
		t.Fatalf("remaining member must learn of the switch, got user-left for %v", leftIDs)
	}

	room1, ok := f.ctl.Orch.Rooms.Get(domain.MeetingRoom(m1.MeetingID))
	if !ok || room1.HasMember("s-bob") {
		t.Errorf("switcher must be out of the previous room")
	}
}

func TestJoinRoom_RejoiningSameRoomIsQuiet(t *testing.T) {
	t.Parallel()

	f := newSignalFixture(t)
	ctx := context.Background()

	alice := &domain.User{ID: "u-alice", Username: "alice"}
	bob := &domain.User{ID: "u-bob", Username: "bob"}
	connAlice := f.bindConn("s-alice", alice)
	connBob := f.bindConn("s-bob", bob)

	m1, err := f.meetings.Start(ctx, alice.ID, "First", "")
	if err != nil {
		t.Fatal(err)
	}

	f.ctl.handleJoinRoom(ctx, "s-alice", alice, connAlice, joinPayload(t, m1.MeetingID))
	f.ctl.handleJoinRoom(ctx, "s-bob", bob, connBob, joinPayload(t, m1.MeetingID))
	drainFrames(t, connAlice)

	f.ctl.handleJoinRoom(ctx, "s-bob", bob, connBob, joinPayload(t, m1.MeetingID))

	for _, env := range drainFrames(t, connAlice) {
		if env.Event == wire.EventUserLeft {
			t.Fatalf("re-joining the same room must not announce a leave")
		}
	}
}

func TestMeetingStarted_PokesInviteesPersonalRooms(t *testing.T) {
	t.Parallel()

	f := newSignalFixture(t)
	events := &Events{Orch: f.ctl.Orch}

	host := &domain.User{ID: "u-host", Username: "host"}
	alice := &domain.User{ID: "u-alice", Username: "alice"}
	connHost := f.bindConn("s-host", host)
	connAlice := f.bindConn("s-alice", alice)
	f.ctl.Orch.Join("s-host", domain.UserRoom(host.ID))
	f.ctl.Orch.Join("s-alice", domain.UserRoom(alice.ID))

	events.MeetingStarted(domain.Meeting{
		ID:     "m-1",
		Title:  "Standup",
		Link:   "http://localhost:5173/room/m-1",
		HostID: host.ID,
		Participants: []domain.Participant{
			{User: host.ID, Status: domain.InviteAccepted},
			{User: alice.ID, Status: domain.InvitePending},
		},
	})

	got := drainFrames(t, connAlice)
	if len(got) != 1 || got[0].Event != wire.EventMeetingStarted {
		t.Fatalf("invitee must receive meeting-started, got %v", got)
	}
	if frames := drainFrames(t, connHost); len(frames) != 0 {
		t.Errorf("host must not be notified about their own meeting")
	}
}

func TestMeetingStarted_NoParticipantsEmitsNothing(t *testing.T) {
	t.Parallel()

	f := newSignalFixture(t)
	events := &Events{Orch: f.ctl.Orch}

	host := &domain.User{ID: "u-host", Username: "host"}
	connHost := f.bindConn("s-host", host)
	f.ctl.Orch.Join("s-host", domain.UserRoom(host.ID))

	events.MeetingStarted(domain.Meeting{ID: "m-1", HostID: host.ID, Link: "l"})

	if frames := drainFrames(t, connHost); len(frames) != 0 {
		t.Errorf("a meeting without invitees has nobody to poke, got %d frames", len(frames))
	}
}
