// Package chat relays meeting chat: optimistic client sends are persisted
// and rebroadcast as the canonical record carrying the client's correlation
// id so the origin can reconcile its placeholder.
package chat

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/rs/zerolog/log"

	"github.com/ostrenko/confab/internal/domain"
	"github.com/ostrenko/confab/internal/store"
)

// EditWindow bounds how long after creation a message may be edited.
// Deletion has no window.
const EditWindow = 20 * time.Minute

var (
	// ErrForbidden is returned when the caller is not the message author.
	ErrForbidden = errors.New("chat: forbidden")
	// ErrNotFound is returned when the message no longer exists.
	ErrNotFound = errors.New("chat: message not found")
	// ErrEditWindowExpired is returned for edits after EditWindow.
	ErrEditWindowExpired = errors.New("chat: edit window expired")
)

// Publisher pushes canonical chat state to the meeting's room so every
// connected client converges on what storage confirmed.
type Publisher interface {
	MessageReceived(m domain.ChatMessage)
	MessageUpdated(m domain.ChatMessage)
	MessageDeleted(meetingID domain.MeetingID, id domain.MessageID)
	MessageReaction(m domain.ChatMessage)
}

type Service struct {
	messages  store.ChatRepository
	publisher Publisher
	now       func() time.Time
}

func NewService(messages store.ChatRepository, publisher Publisher, now func() time.Time) *Service {
	if now == nil {
		now = time.Now
	}
	return &Service{messages: messages, publisher: publisher, now: now}
}

// Send persists the message and rebroadcasts the stored record with the
// client's tempId attached. The correlation id rides only on this one
// broadcast: once the origin client swaps its optimistic entry, the id is
// spent.
func (s *Service) Send(ctx context.Context, meetingID domain.MeetingID, author domain.UserID, text, tempID string) (domain.ChatMessage, error) {
	if text == "" {
		return domain.ChatMessage{}, domain.ErrTextEmpty
	}
	m := domain.ChatMessage{
		ID:        domain.MessageID(uuid.NewString()),
		MeetingID: meetingID,
		Author:    author,
		Text:      text,
		CreatedAt: s.now(),
	}
	if err := s.messages.CreateMessage(ctx, m); err != nil {
		return domain.ChatMessage{}, fmt.Errorf("create message: %w", err)
	}
	m.TempID = tempID
	if s.publisher != nil {
		s.publisher.MessageReceived(m)
	}
	log.Debug().Str("module", "chat").Str("meeting", string(meetingID)).Str("msg", string(m.ID)).Msg("message relayed")
	return m, nil
}

// Edit rewrites the text. Author-only, and only within EditWindow of the
// message's creation.
func (s *Service) Edit(ctx context.Context, id domain.MessageID, caller domain.UserID, newText string) (domain.ChatMessage, error) {
	if newText == "" {
		return domain.ChatMessage{}, domain.ErrTextEmpty
	}
	m, err := s.get(ctx, id)
	if err != nil {
		return domain.ChatMessage{}, err
	}
	if m.Author != caller {
		return domain.ChatMessage{}, ErrForbidden
	}
	now := s.now()
	if now.Sub(m.CreatedAt) > EditWindow {
		return domain.ChatMessage{}, ErrEditWindowExpired
	}
	m.Text = newText
	m.EditedAt = &now
	if err := s.messages.UpdateMessage(ctx, m); err != nil {
		return domain.ChatMessage{}, fmt.Errorf("update message: %w", err)
	}
	if s.publisher != nil {
		s.publisher.MessageUpdated(m)
	}
	return m, nil
}

// Delete removes the message. Author-only; no time window.
func (s *Service) Delete(ctx context.Context, id domain.MessageID, caller domain.UserID) error {
	m, err := s.get(ctx, id)
	if err != nil {
		return err
	}
	if m.Author != caller {
		return ErrForbidden
	}
	if err := s.messages.DeleteMessage(ctx, id); err != nil {
		return fmt.Errorf("delete message: %w", err)
	}
	if s.publisher != nil {
		s.publisher.MessageDeleted(m.MeetingID, id)
	}
	return nil
}

// React appends one (user, emoji) tuple and rebroadcasts the updated
// reaction list. No de-duplication: repeated reactions are a like count.
func (s *Service) React(ctx context.Context, id domain.MessageID, caller domain.UserID, emoji string) (domain.ChatMessage, error) {
	m, err := s.messages.AppendReaction(ctx, id, domain.Reaction{User: caller, Emoji: emoji})
	if errors.Is(err, store.ErrNotFound) {
		return domain.ChatMessage{}, ErrNotFound
	}
	if err != nil {
		return domain.ChatMessage{}, fmt.Errorf("append reaction: %w", err)
	}
	if s.publisher != nil {
		s.publisher.MessageReaction(m)
	}
	return m, nil
}

// History returns the meeting's messages ordered by creation time.
func (s *Service) History(ctx context.Context, meetingID domain.MeetingID) ([]domain.ChatMessage, error) {
	return s.messages.ListMessages(ctx, meetingID)
}

func (s *Service) get(ctx context.Context, id domain.MessageID) (domain.ChatMessage, error) {
	m, err := s.messages.GetMessage(ctx, id)
	if errors.Is(err, store.ErrNotFound) {
		return domain.ChatMessage{}, ErrNotFound
	}
	if err != nil {
		return domain.ChatMessage{}, fmt.Errorf("get message: %w", err)
	}
	return m, nil
}
