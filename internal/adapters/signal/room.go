package signal

import (
	"context"
	"encoding/json"
	"errors"

	"github.com/rs/zerolog/log"

	"github.com/ostrenko/confab/internal/core"
	"github.com/ostrenko/confab/internal/domain"
	"github.com/ostrenko/confab/internal/meeting"
	"github.com/ostrenko/confab/internal/wire"
)

func (ctl *Controller) handleJoinRoom(ctx context.Context, sid core.SessionID, user *domain.User, c *wsSignalConn, data []byte) {
	var p wire.JoinRoom
	if err := json.Unmarshal(data, &p); err != nil || p.MeetingID == "" {
		ctl.sendError(c, "bad_payload")
		return
	}
	meetingID := domain.MeetingID(p.MeetingID)

	// Link-based joins auto-accept: the caller becomes an Accepted
	// participant if not already listed.
	if _, err := ctl.Meetings.Join(ctx, user.ID, meetingID); err != nil {
		if errors.Is(err, meeting.ErrNotFound) {
			ctl.sendError(c, "meeting not found")
			return
		}
		log.Error().Err(err).Str("module", "signal").Str("meeting", p.MeetingID).Msg("join meeting")
		ctl.sendError(c, "join failed")
		return
	}

	roomID := domain.MeetingRoom(meetingID)

	// Switching meetings leaves the previous room implicitly; its members
	// still need the membership change so their meshes drop the peer.
	if prev, _, ok := ctl.Orch.Registry.MeetingRoomOf(sid); ok && prev != roomID {
		ctl.broadcast(sid, prev, wire.EventUserLeft, wire.UserLeft{ID: string(user.ID)})
	}

	room := ctl.Orch.Join(sid, roomID)
	if room == nil {
		return
	}

	// The joiner sees the current roster; sitting members learn of the
	// newcomer and become negotiation initiators toward them.
	ctl.sendEvent(c, wire.EventRoomUsers, room.MembersSnapshot())
	ctl.broadcast(sid, roomID, wire.EventUserJoined, wire.UserJoined{
		ID:       string(user.ID),
		Username: user.Username,
	})
}

func (ctl *Controller) handleLeaveRoom(sid core.SessionID, user *domain.User) {
	roomID, _, ok := ctl.Orch.Registry.MeetingRoomOf(sid)
	if !ok {
		return
	}
	ctl.broadcast(sid, roomID, wire.EventUserLeft, wire.UserLeft{ID: string(user.ID)})
	ctl.Orch.Leave(sid, roomID)
}

// handleEndMeeting authorizes the end against the host identity held by the
// server, then broadcasts the terminal event to everyone still in the room.
// The room id stays joinable afterwards so stragglers can connect and see
// the notice.
func (ctl *Controller) handleEndMeeting(ctx context.Context, sid core.SessionID, user *domain.User, c *wsSignalConn) {
	roomID, _, ok := ctl.Orch.Registry.MeetingRoomOf(sid)
	if !ok {
		ctl.sendError(c, "not in a room")
		return
	}
	meetingID := roomID.MeetingID()
	if err := ctl.Meetings.End(ctx, user.ID, meetingID); err != nil {
		if errors.Is(err, meeting.ErrUnauthorized) {
			ctl.sendError(c, "only the host can end the meeting")
			return
		}
		log.Error().Err(err).Str("module", "signal").Str("meeting", string(meetingID)).Msg("end meeting")
		ctl.sendError(c, "end failed")
		return
	}
	ctl.broadcast(sid, roomID, wire.EventMeetingEnded, nil)
}

func (ctl *Controller) onDisconnect(sid core.SessionID, user *domain.User) {
	if roomID, _, ok := ctl.Orch.Registry.MeetingRoomOf(sid); ok {
		ctl.broadcast(sid, roomID, wire.EventUserLeft, wire.UserLeft{ID: string(user.ID)})
	}
	ctl.Orch.OnDisconnect(sid)
	log.Info().Str("module", "signal").Str("sid", string(sid)).Msg("connection closed")
}

func (ctl *Controller) broadcast(from core.SessionID, roomID domain.RoomID, event string, v any) {
	b, err := wire.Encode(event, v)
	if err != nil {
		log.Error().Err(err).Str("module", "signal").Str("event", event).Msg("encode broadcast")
		return
	}
	ctl.Orch.Broadcast(from, roomID, b)
}
