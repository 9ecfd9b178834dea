package signal

import (
	"encoding/json"

	"github.com/rs/zerolog/log"

	"github.com/ostrenko/confab/internal/core"
	"github.com/ostrenko/confab/internal/domain"
	"github.com/ostrenko/confab/internal/wire"
)

// handleRelay forwards offer/answer/ice-candidate frames verbatim to the
// addressed peer, stamping the sender identity so the recipient cannot be
// spoofed. Payloads are otherwise opaque to the server.
func (ctl *Controller) handleRelay(sid core.SessionID, user *domain.User, c *wsSignalConn, env wire.Envelope) {
	roomID, _, ok := ctl.Orch.Registry.MeetingRoomOf(sid)
	if !ok {
		ctl.sendError(c, "not in a room")
		return
	}

	var addr struct {
		To string `json:"to"`
	}
	if err := json.Unmarshal(env.Data, &addr); err != nil || addr.To == "" {
		ctl.sendError(c, "bad_payload")
		return
	}

	var payload map[string]json.RawMessage
	if err := json.Unmarshal(env.Data, &payload); err != nil {
		ctl.sendError(c, "bad_payload")
		return
	}
	from, _ := json.Marshal(string(user.ID))
	payload["from"] = from

	frame, err := wire.Encode(env.Event, payload)
	if err != nil {
		log.Error().Err(err).Str("module", "signal").Str("event", env.Event).Msg("encode relay")
		return
	}

	if !ctl.Orch.RelayToUser(roomID, domain.UserID(addr.To), frame) {
		// Peer already gone or its queue full; the mesh layer on the
		// sender side recovers when a user-left arrives.
		log.Debug().Str("module", "signal").Str("to", addr.To).Str("event", env.Event).Msg("relay dropped")
	}
}
