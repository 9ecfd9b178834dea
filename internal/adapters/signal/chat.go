package signal

import (
	"context"
	"encoding/json"
	"errors"

	"github.com/rs/zerolog/log"

	"github.com/ostrenko/confab/internal/chat"
	"github.com/ostrenko/confab/internal/domain"
	"github.com/ostrenko/confab/internal/wire"
)

func (ctl *Controller) handleSendMessage(ctx context.Context, user *domain.User, c *wsSignalConn, data []byte) {
	var p wire.SendMessage
	if err := json.Unmarshal(data, &p); err != nil || p.MeetingID == "" {
		ctl.sendError(c, "bad_payload")
		return
	}
	if _, err := ctl.Chat.Send(ctx, domain.MeetingID(p.MeetingID), user.ID, p.Text, p.TempID); err != nil {
		ctl.chatError(c, err, "send message")
	}
}

func (ctl *Controller) handleEditMessage(ctx context.Context, user *domain.User, c *wsSignalConn, data []byte) {
	var p wire.EditMessage
	if err := json.Unmarshal(data, &p); err != nil || p.MessageID == "" {
		ctl.sendError(c, "bad_payload")
		return
	}
	if _, err := ctl.Chat.Edit(ctx, domain.MessageID(p.MessageID), user.ID, p.Text); err != nil {
		ctl.chatError(c, err, "edit message")
	}
}

func (ctl *Controller) handleDeleteMessage(ctx context.Context, user *domain.User, c *wsSignalConn, data []byte) {
	var p wire.DeleteMessage
	if err := json.Unmarshal(data, &p); err != nil || p.MessageID == "" {
		ctl.sendError(c, "bad_payload")
		return
	}
	if err := ctl.Chat.Delete(ctx, domain.MessageID(p.MessageID), user.ID); err != nil {
		ctl.chatError(c, err, "delete message")
	}
}

func (ctl *Controller) handleReactToMessage(ctx context.Context, user *domain.User, c *wsSignalConn, data []byte) {
	var p wire.ReactToMessage
	if err := json.Unmarshal(data, &p); err != nil || p.MessageID == "" || p.Emoji == "" {
		ctl.sendError(c, "bad_payload")
		return
	}
	if _, err := ctl.Chat.React(ctx, domain.MessageID(p.MessageID), user.ID, p.Emoji); err != nil {
		ctl.chatError(c, err, "react to message")
	}
}

// chatError reports the failure only to the caller; successful outcomes are
// broadcast by the chat service itself.
func (ctl *Controller) chatError(c *wsSignalConn, err error, op string) {
	switch {
	case errors.Is(err, chat.ErrForbidden):
		ctl.sendError(c, "not the author")
	case errors.Is(err, chat.ErrEditWindowExpired):
		ctl.sendError(c, "edit window expired")
	case errors.Is(err, chat.ErrNotFound):
		ctl.sendError(c, "message not found")
	case errors.Is(err, domain.ErrTextEmpty):
		ctl.sendError(c, "empty message")
	default:
		log.Error().Err(err).Str("module", "signal").Msg(op)
		ctl.sendError(c, op+" failed")
	}
}
