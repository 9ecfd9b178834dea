package app

import (
	"github.com/rs/zerolog/log"

	"github.com/ostrenko/confab/internal/core"
	"github.com/ostrenko/confab/internal/domain"
)

// Orchestrator coordinates the registry, the room manager and the
// backpressure policy. It is the single entry point for membership
// mutations, so concurrent join/leave for one connection cannot race.
type Orchestrator struct {
	Registry *Registry
	Rooms    core.RoomManager
	Policy   Policy
}

// Join adds the session to a room. A connection holds at most one meeting
// room; joining another meeting room leaves the previous one first.
// Re-joining the same room is a no-op.
func (o *Orchestrator) Join(sid core.SessionID, roomID domain.RoomID) core.RoomService {
	session, ok := o.Registry.GetSession(sid)
	if !ok {
		return nil
	}
	if roomID.IsMeetingRoom() {
		if prev, _, ok := o.Registry.MeetingRoomOf(sid); ok && prev != roomID {
			o.Leave(sid, prev)
		}
	}
	room := o.Rooms.GetOrCreate(roomID)
	room.AddMember(sid, session)
	o.Registry.SetRoom(sid, roomID)
	log.Info().Str("module", "app.orchestrator").Str("sid", string(sid)).Str("room", string(roomID)).Msg("joined room")
	return room
}

// Leave removes the session from the room and drops the room when it was
// the last member, so no registry entries leak.
func (o *Orchestrator) Leave(sid core.SessionID, roomID domain.RoomID) {
	room, ok := o.Rooms.Get(roomID)
	if !ok {
		return
	}
	room.RemoveMember(sid)
	if roomID.IsMeetingRoom() {
		o.Registry.ClearMeetingRoom(sid)
	}
	if room.MemberCount() == 0 {
		o.Rooms.StopRoom(roomID)
		log.Info().Str("module", "app.orchestrator").Str("room", string(roomID)).Msg("room dropped, last member left")
	}
}

// OnDisconnect tears down every room association of a dying connection.
func (o *Orchestrator) OnDisconnect(sid core.SessionID) {
	if roomID, _, ok := o.Registry.MeetingRoomOf(sid); ok {
		o.Leave(sid, roomID)
	}
	if roomID, ok := o.Registry.PersonalRoomOf(sid); ok {
		o.Leave(sid, roomID)
	}
	o.Registry.Cancel(sid)
	o.Registry.Unbind(sid)
}

// Broadcast fans a frame out to every room member except the sender and
// applies the backpressure policy to members whose queue was full.
func (o *Orchestrator) Broadcast(from core.SessionID, roomID domain.RoomID, data core.Frame) core.PublishResult {
	room, ok := o.Rooms.Get(roomID)
	if !ok {
		return core.PublishResult{}
	}
	res := room.Broadcast(from, data)
	o.applyPolicy(room, res)
	return res
}

// BroadcastAll delivers to every member including any session of the
// nominal sender; used for server-originated events like notifications.
func (o *Orchestrator) BroadcastAll(roomID domain.RoomID, data core.Frame) core.PublishResult {
	room, ok := o.Rooms.Get(roomID)
	if !ok {
		return core.PublishResult{}
	}
	res := room.Broadcast("", data)
	o.applyPolicy(room, res)
	return res
}

// RelayToUser addresses one named peer in the room. Best-effort: a slow or
// vanished peer loses the frame, the caller's mesh layer owns recovery.
func (o *Orchestrator) RelayToUser(roomID domain.RoomID, to domain.UserID, data core.Frame) bool {
	room, ok := o.Rooms.Get(roomID)
	if !ok {
		return false
	}
	return room.SendTo(to, data)
}

func (o *Orchestrator) applyPolicy(room core.RoomService, res core.PublishResult) {
	if o.Policy == nil {
		return
	}
	for _, slow := range res.Dropped {
		switch o.Policy.OnBackPressure(room, slow) {
		case KickMember:
			log.Warn().Str("module", "app.orchestrator").Str("user", string(slow.User().ID)).Msg("kicking slow member")
			slow.Signal().Close()
		case MarkSlow, DropFrame, NoAction:
		}
	}
}
