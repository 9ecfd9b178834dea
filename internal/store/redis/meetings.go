package redis

import (
	"context"
	"encoding/json"
	"errors"
	"sort"

	"github.com/ostrenko/confab/internal/domain"
	"github.com/ostrenko/confab/internal/store"
)

func meetingKey(id domain.MeetingID) string      { return "meeting:" + string(id) }
func participantsKey(id domain.MeetingID) string { return "meeting:" + string(id) + ":participants" }
func userMeetingsKey(uid domain.UserID) string   { return "user:" + string(uid) + ":meetings" }

// The meeting document is stored without its participants; those live in a
// separate hash so a single invite response is one HSET, not a
// whole-document rewrite.
func (s *Store) CreateMeeting(ctx context.Context, m domain.Meeting) error {
	participants := m.Participants
	m.Participants = nil
	data, err := json.Marshal(m)
	if err != nil {
		return err
	}
	ok, err := s.rdb.SetNX(ctx, meetingKey(m.ID), data, 0).Result()
	if err != nil {
		return err
	}
	if !ok {
		return store.ErrConflict
	}
	s.rdb.SAdd(ctx, userMeetingsKey(m.CreatedBy), string(m.ID))
	for _, p := range participants {
		if err := s.SetParticipant(ctx, m.ID, p); err != nil {
			return err
		}
	}
	return nil
}

func (s *Store) GetMeeting(ctx context.Context, id domain.MeetingID) (domain.Meeting, error) {
	data, err := s.rdb.Get(ctx, meetingKey(id)).Bytes()
	if err != nil {
		return domain.Meeting{}, notFound(err)
	}
	var m domain.Meeting
	if err := json.Unmarshal(data, &m); err != nil {
		return domain.Meeting{}, err
	}
	rows, err := s.rdb.HGetAll(ctx, participantsKey(id)).Result()
	if err != nil {
		return domain.Meeting{}, err
	}
	m.Participants = m.Participants[:0]
	for _, row := range rows {
		var p domain.Participant
		if err := json.Unmarshal([]byte(row), &p); err != nil {
			return domain.Meeting{}, err
		}
		m.Participants = append(m.Participants, p)
	}
	sort.Slice(m.Participants, func(i, j int) bool {
		return m.Participants[i].User < m.Participants[j].User
	})
	return m, nil
}

func (s *Store) UpdateMeeting(ctx context.Context, m domain.Meeting) error {
	exists, err := s.rdb.Exists(ctx, meetingKey(m.ID)).Result()
	if err != nil {
		return err
	}
	if exists == 0 {
		return store.ErrNotFound
	}
	m.Participants = nil
	data, err := json.Marshal(m)
	if err != nil {
		return err
	}
	return s.rdb.Set(ctx, meetingKey(m.ID), data, 0).Err()
}

func (s *Store) DeleteMeeting(ctx context.Context, id domain.MeetingID) error {
	m, err := s.GetMeeting(ctx, id)
	if err != nil {
		return err
	}
	for _, p := range m.Participants {
		s.rdb.SRem(ctx, userMeetingsKey(p.User), string(id))
	}
	s.rdb.SRem(ctx, userMeetingsKey(m.CreatedBy), string(id))
	s.rdb.Del(ctx, participantsKey(id))
	n, err := s.rdb.Del(ctx, meetingKey(id)).Result()
	if err != nil {
		return err
	}
	if n == 0 {
		return store.ErrNotFound
	}
	return nil
}

func (s *Store) SetParticipant(ctx context.Context, id domain.MeetingID, p domain.Participant) error {
	exists, err := s.rdb.Exists(ctx, meetingKey(id)).Result()
	if err != nil {
		return err
	}
	if exists == 0 {
		return store.ErrNotFound
	}
	row, err := json.Marshal(p)
	if err != nil {
		return err
	}
	if err := s.rdb.HSet(ctx, participantsKey(id), string(p.User), row).Err(); err != nil {
		return err
	}
	return s.rdb.SAdd(ctx, userMeetingsKey(p.User), string(id)).Err()
}

func (s *Store) SetEnded(ctx context.Context, id domain.MeetingID) error {
	data, err := s.rdb.Get(ctx, meetingKey(id)).Bytes()
	if err != nil {
		return notFound(err)
	}
	var m domain.Meeting
	if err := json.Unmarshal(data, &m); err != nil {
		return err
	}
	// Idempotent flag flip; participant rows live elsewhere so this cannot
	// clobber a concurrent invite response.
	m.Ended = true
	updated, err := json.Marshal(m)
	if err != nil {
		return err
	}
	return s.rdb.Set(ctx, meetingKey(id), updated, 0).Err()
}

func (s *Store) ListMeetingsFor(ctx context.Context, uid domain.UserID) ([]domain.Meeting, error) {
	ids, err := s.rdb.SMembers(ctx, userMeetingsKey(uid)).Result()
	if err != nil {
		return nil, err
	}
	out := make([]domain.Meeting, 0, len(ids))
	for _, id := range ids {
		m, err := s.GetMeeting(ctx, domain.MeetingID(id))
		if errors.Is(err, store.ErrNotFound) {
			// Stale index entry after a delete; drop it lazily.
			s.rdb.SRem(ctx, userMeetingsKey(uid), id)
			continue
		}
		if err != nil {
			return nil, err
		}
		out = append(out, m)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].StartsAt.Before(out[j].StartsAt) })
	return out, nil
}
