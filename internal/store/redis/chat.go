package redis

import (
	"context"
	"encoding/json"

	"github.com/ostrenko/confab/internal/domain"
	"github.com/ostrenko/confab/internal/store"

	goredis "github.com/redis/go-redis/v9"
)

func messageKey(id domain.MessageID) string   { return "msg:" + string(id) }
func chatIndexKey(id domain.MeetingID) string { return "chat:" + string(id) }

// Reactions live in their own append-only list so concurrent appends never
// rewrite each other, same split as participants on the meeting hash.
func reactionsKey(id domain.MessageID) string { return "msg:" + string(id) + ":reactions" }

func (s *Store) CreateMessage(ctx context.Context, m domain.ChatMessage) error {
	m.TempID = "" // correlation ids never hit storage
	m.Reactions = nil
	data, err := json.Marshal(m)
	if err != nil {
		return err
	}
	ok, err := s.rdb.SetNX(ctx, messageKey(m.ID), data, 0).Result()
	if err != nil {
		return err
	}
	if !ok {
		return store.ErrConflict
	}
	return s.rdb.ZAdd(ctx, chatIndexKey(m.MeetingID), goredis.Z{
		Score:  float64(m.CreatedAt.UnixMilli()),
		Member: string(m.ID),
	}).Err()
}

func (s *Store) GetMessage(ctx context.Context, id domain.MessageID) (domain.ChatMessage, error) {
	data, err := s.rdb.Get(ctx, messageKey(id)).Bytes()
	if err != nil {
		return domain.ChatMessage{}, notFound(err)
	}
	var m domain.ChatMessage
	if err := json.Unmarshal(data, &m); err != nil {
		return domain.ChatMessage{}, err
	}
	raw, err := s.rdb.LRange(ctx, reactionsKey(id), 0, -1).Result()
	if err != nil {
		return domain.ChatMessage{}, err
	}
	for _, item := range raw {
		var r domain.Reaction
		if err := json.Unmarshal([]byte(item), &r); err != nil {
			return domain.ChatMessage{}, err
		}
		m.Reactions = append(m.Reactions, r)
	}
	return m, nil
}

func (s *Store) UpdateMessage(ctx context.Context, m domain.ChatMessage) error {
	exists, err := s.rdb.Exists(ctx, messageKey(m.ID)).Result()
	if err != nil {
		return err
	}
	if exists == 0 {
		return store.ErrNotFound
	}
	m.TempID = ""
	m.Reactions = nil // the reactions list is the only writer of reactions
	data, err := json.Marshal(m)
	if err != nil {
		return err
	}
	return s.rdb.Set(ctx, messageKey(m.ID), data, 0).Err()
}

func (s *Store) DeleteMessage(ctx context.Context, id domain.MessageID) error {
	m, err := s.GetMessage(ctx, id)
	if err != nil {
		return err
	}
	s.rdb.ZRem(ctx, chatIndexKey(m.MeetingID), string(id))
	s.rdb.Del(ctx, reactionsKey(id))
	n, err := s.rdb.Del(ctx, messageKey(id)).Result()
	if err != nil {
		return err
	}
	if n == 0 {
		return store.ErrNotFound
	}
	return nil
}

func (s *Store) AppendReaction(ctx context.Context, id domain.MessageID, r domain.Reaction) (domain.ChatMessage, error) {
	exists, err := s.rdb.Exists(ctx, messageKey(id)).Result()
	if err != nil {
		return domain.ChatMessage{}, err
	}
	if exists == 0 {
		return domain.ChatMessage{}, store.ErrNotFound
	}
	data, err := json.Marshal(r)
	if err != nil {
		return domain.ChatMessage{}, err
	}
	if err := s.rdb.RPush(ctx, reactionsKey(id), data).Err(); err != nil {
		return domain.ChatMessage{}, err
	}
	return s.GetMessage(ctx, id)
}

func (s *Store) ListMessages(ctx context.Context, meetingID domain.MeetingID) ([]domain.ChatMessage, error) {
	ids, err := s.rdb.ZRange(ctx, chatIndexKey(meetingID), 0, -1).Result()
	if err != nil {
		return nil, err
	}
	out := make([]domain.ChatMessage, 0, len(ids))
	for _, id := range ids {
		m, err := s.GetMessage(ctx, domain.MessageID(id))
		if err != nil {
			continue // deleted under us; the index is cleaned on delete
		}
		out = append(out, m)
	}
	return out, nil
}
