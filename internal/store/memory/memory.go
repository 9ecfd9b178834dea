// Package memory is the in-process store implementation. It backs the test
// suites and the dev mode of the server; semantics mirror the redis store.
package memory

import (
	"context"
	"sort"
	"sync"

	"github.com/ostrenko/confab/internal/domain"
	"github.com/ostrenko/confab/internal/store"
)

type Store struct {
	mu            sync.RWMutex
	users         map[domain.UserID]domain.User
	usersByEmail  map[string]domain.UserID
	meetings      map[domain.MeetingID]domain.Meeting
	messages      map[domain.MessageID]domain.ChatMessage
	notifications map[domain.NotificationID]domain.Notification
	jobs          map[domain.JobID]domain.NotificationJob
	seq           int64
	msgSeq        map[domain.MessageID]int64
	noteSeq       map[domain.NotificationID]int64
}

func New() *Store {
	return &Store{
		users:         make(map[domain.UserID]domain.User),
		usersByEmail:  make(map[string]domain.UserID),
		meetings:      make(map[domain.MeetingID]domain.Meeting),
		messages:      make(map[domain.MessageID]domain.ChatMessage),
		notifications: make(map[domain.NotificationID]domain.Notification),
		jobs:          make(map[domain.JobID]domain.NotificationJob),
		msgSeq:        make(map[domain.MessageID]int64),
		noteSeq:       make(map[domain.NotificationID]int64),
	}
}

var _ store.Store = (*Store)(nil)

func (s *Store) CreateUser(_ context.Context, u domain.User) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	email := domain.NormalizeEmail(u.Email)
	if _, ok := s.usersByEmail[email]; ok {
		return store.ErrConflict
	}
	u.Email = email
	s.users[u.ID] = u
	s.usersByEmail[email] = u.ID
	return nil
}

func (s *Store) GetUser(_ context.Context, id domain.UserID) (domain.User, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	u, ok := s.users[id]
	if !ok {
		return domain.User{}, store.ErrNotFound
	}
	return u, nil
}

func (s *Store) GetUserByEmail(_ context.Context, email string) (domain.User, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	id, ok := s.usersByEmail[domain.NormalizeEmail(email)]
	if !ok {
		return domain.User{}, store.ErrNotFound
	}
	return s.users[id], nil
}

func (s *Store) UpdateUser(_ context.Context, u domain.User) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	old, ok := s.users[u.ID]
	if !ok {
		return store.ErrNotFound
	}
	u.Email = domain.NormalizeEmail(u.Email)
	if u.Email != old.Email {
		if _, taken := s.usersByEmail[u.Email]; taken {
			return store.ErrConflict
		}
		delete(s.usersByEmail, old.Email)
		s.usersByEmail[u.Email] = u.ID
	}
	s.users[u.ID] = u
	return nil
}

func cloneMeeting(m domain.Meeting) domain.Meeting {
	out := m
	out.Participants = append([]domain.Participant(nil), m.Participants...)
	return out
}

func (s *Store) CreateMeeting(_ context.Context, m domain.Meeting) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if _, ok := s.meetings[m.ID]; ok {
		return store.ErrConflict
	}
	s.meetings[m.ID] = cloneMeeting(m)
	return nil
}

func (s *Store) GetMeeting(_ context.Context, id domain.MeetingID) (domain.Meeting, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	m, ok := s.meetings[id]
	if !ok {
		return domain.Meeting{}, store.ErrNotFound
	}
	return cloneMeeting(m), nil
}

func (s *Store) UpdateMeeting(_ context.Context, m domain.Meeting) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if _, ok := s.meetings[m.ID]; !ok {
		return store.ErrNotFound
	}
	s.meetings[m.ID] = cloneMeeting(m)
	return nil
}

func (s *Store) DeleteMeeting(_ context.Context, id domain.MeetingID) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if _, ok := s.meetings[id]; !ok {
		return store.ErrNotFound
	}
	delete(s.meetings, id)
	return nil
}

func (s *Store) SetParticipant(_ context.Context, id domain.MeetingID, p domain.Participant) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	m, ok := s.meetings[id]
	if !ok {
		return store.ErrNotFound
	}
	if i := m.ParticipantIndex(p.User); i >= 0 {
		m.Participants[i] = p
	} else {
		m.Participants = append(m.Participants, p)
	}
	s.meetings[id] = m
	return nil
}

func (s *Store) SetEnded(_ context.Context, id domain.MeetingID) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	m, ok := s.meetings[id]
	if !ok {
		return store.ErrNotFound
	}
	m.Ended = true
	s.meetings[id] = m
	return nil
}

func (s *Store) ListMeetingsFor(_ context.Context, uid domain.UserID) ([]domain.Meeting, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	var out []domain.Meeting
	for _, m := range s.meetings {
		if m.VisibleTo(uid) {
			out = append(out, cloneMeeting(m))
		}
	}
	sort.Slice(out, func(i, j int) bool { return out[i].StartsAt.Before(out[j].StartsAt) })
	return out, nil
}

func cloneMessage(m domain.ChatMessage) domain.ChatMessage {
	out := m
	out.Reactions = append([]domain.Reaction(nil), m.Reactions...)
	return out
}

func (s *Store) CreateMessage(_ context.Context, m domain.ChatMessage) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if _, ok := s.messages[m.ID]; ok {
		return store.ErrConflict
	}
	m.TempID = ""
	s.messages[m.ID] = cloneMessage(m)
	s.seq++
	s.msgSeq[m.ID] = s.seq
	return nil
}

func (s *Store) GetMessage(_ context.Context, id domain.MessageID) (domain.ChatMessage, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	m, ok := s.messages[id]
	if !ok {
		return domain.ChatMessage{}, store.ErrNotFound
	}
	return cloneMessage(m), nil
}

func (s *Store) UpdateMessage(_ context.Context, m domain.ChatMessage) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if _, ok := s.messages[m.ID]; !ok {
		return store.ErrNotFound
	}
	m.TempID = ""
	s.messages[m.ID] = cloneMessage(m)
	return nil
}

func (s *Store) DeleteMessage(_ context.Context, id domain.MessageID) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if _, ok := s.messages[id]; !ok {
		return store.ErrNotFound
	}
	delete(s.messages, id)
	delete(s.msgSeq, id)
	return nil
}

func (s *Store) AppendReaction(_ context.Context, id domain.MessageID, r domain.Reaction) (domain.ChatMessage, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	m, ok := s.messages[id]
	if !ok {
		return domain.ChatMessage{}, store.ErrNotFound
	}
	m.Reactions = append(m.Reactions, r)
	s.messages[id] = m
	return cloneMessage(m), nil
}

func (s *Store) ListMessages(_ context.Context, meetingID domain.MeetingID) ([]domain.ChatMessage, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	var out []domain.ChatMessage
	for _, m := range s.messages {
		if m.MeetingID == meetingID {
			out = append(out, cloneMessage(m))
		}
	}
	// Creation order; insertion sequence breaks equal-timestamp ties.
	sort.Slice(out, func(i, j int) bool {
		if out[i].CreatedAt.Equal(out[j].CreatedAt) {
			return s.msgSeq[out[i].ID] < s.msgSeq[out[j].ID]
		}
		return out[i].CreatedAt.Before(out[j].CreatedAt)
	})
	return out, nil
}

func (s *Store) CreateNotification(_ context.Context, n domain.Notification) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if _, ok := s.notifications[n.ID]; ok {
		return store.ErrConflict
	}
	s.notifications[n.ID] = n
	s.seq++
	s.noteSeq[n.ID] = s.seq
	return nil
}

func (s *Store) ListNotifications(_ context.Context, uid domain.UserID, unreadOnly bool) ([]domain.Notification, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	var out []domain.Notification
	for _, n := range s.notifications {
		if n.User != uid {
			continue
		}
		if unreadOnly && n.Read {
			continue
		}
		out = append(out, n)
	}
	// Newest first.
	sort.Slice(out, func(i, j int) bool {
		if out[i].CreatedAt.Equal(out[j].CreatedAt) {
			return s.noteSeq[out[i].ID] > s.noteSeq[out[j].ID]
		}
		return out[i].CreatedAt.After(out[j].CreatedAt)
	})
	return out, nil
}

func (s *Store) MarkRead(_ context.Context, uid domain.UserID, id domain.NotificationID) (domain.Notification, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	n, ok := s.notifications[id]
	if !ok || n.User != uid {
		return domain.Notification{}, store.ErrNotFound
	}
	n.Read = true
	s.notifications[id] = n
	return n, nil
}

func (s *Store) PutJob(_ context.Context, j domain.NotificationJob) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.jobs[j.ID] = j
	return nil
}

func (s *Store) ListJobs(_ context.Context) ([]domain.NotificationJob, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	out := make([]domain.NotificationJob, 0, len(s.jobs))
	for _, j := range s.jobs {
		out = append(out, j)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].FireAt.Before(out[j].FireAt) })
	return out, nil
}

func (s *Store) ClaimJob(_ context.Context, id domain.JobID) (bool, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if _, ok := s.jobs[id]; !ok {
		return false, nil
	}
	delete(s.jobs, id)
	return true, nil
}
