package core

import (
	"errors"
	"testing"

	"github.com/ostrenko/confab/internal/domain"
)

type connStub struct {
	frames []Frame
	fail   bool
}

func (c *connStub) TrySend(f Frame) error {
	if c.fail {
		return errors.New("queue full")
	}
	c.frames = append(c.frames, f)
	return nil
}

func (c *connStub) Close() {}

func member(uid domain.UserID) (MemberSession, *connStub) {
	conn := &connStub{}
	return NewMemberSession(&domain.User{ID: uid, Username: string(uid)}, conn), conn
}

func TestAddMemberIsIdempotent(t *testing.T) {
	t.Parallel()

	r := NewRoomService(&domain.Room{ID: domain.MeetingRoom("m-1")})
	ms, _ := member("u-alice")
	r.AddMember("s-1", ms)
	r.AddMember("s-1", ms)

	if r.MemberCount() != 1 {
		t.Fatalf("repeat join must not duplicate membership, got %d", r.MemberCount())
	}
	if !r.HasMember("s-1") {
		t.Errorf("member must be present")
	}
}

func TestRemoveUnknownMemberIsNoOp(t *testing.T) {
	t.Parallel()

	r := NewRoomService(&domain.Room{ID: domain.MeetingRoom("m-1")})
	r.RemoveMember("s-ghost")
	if r.MemberCount() != 0 {
		t.Fatalf("unexpected members: %d", r.MemberCount())
	}
}

func TestSendToAddressesOneUser(t *testing.T) {
	t.Parallel()

	r := NewRoomService(&domain.Room{ID: domain.MeetingRoom("m-1")})
	aliceSess, alice := member("u-alice")
	bobSess, bob := member("u-bob")
	r.AddMember("s-1", aliceSess)
	r.AddMember("s-2", bobSess)

	if !r.SendTo("u-bob", []byte("x")) {
		t.Fatalf("send to present user must succeed")
	}
	if len(bob.frames) != 1 || len(alice.frames) != 0 {
		t.Errorf("frame must reach only the addressed user")
	}
	if r.SendTo("u-carol", []byte("x")) {
		t.Errorf("send to absent user must fail")
	}
}

func TestBroadcastReportsSlowMembers(t *testing.T) {
	t.Parallel()

	r := NewRoomService(&domain.Room{ID: domain.MeetingRoom("m-1")})
	aliceSess, _ := member("u-alice")
	bobSess, bobConn := member("u-bob")
	carolSess, _ := member("u-carol")
	bobConn.fail = true
	r.AddMember("s-1", aliceSess)
	r.AddMember("s-2", bobSess)
	r.AddMember("s-3", carolSess)

	res := r.Broadcast("s-1", []byte("x"))
	if res.SentTo != 1 {
		t.Errorf("expected one successful delivery, got %d", res.SentTo)
	}
	if len(res.Dropped) != 1 || res.Dropped[0].User().ID != "u-bob" {
		t.Errorf("slow member must be reported, got %+v", res.Dropped)
	}
}

func TestMembersSnapshot(t *testing.T) {
	t.Parallel()

	r := NewRoomService(&domain.Room{ID: domain.MeetingRoom("m-1")})
	aliceSess, _ := member("u-alice")
	r.AddMember("s-1", aliceSess)

	snap := r.MembersSnapshot()
	if len(snap) != 1 || snap[0].ID != "u-alice" || snap[0].Username != "u-alice" {
		t.Fatalf("unexpected snapshot %+v", snap)
	}
}
