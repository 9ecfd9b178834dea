package redis

import (
	"context"
	"encoding/json"

	"github.com/ostrenko/confab/internal/domain"
	"github.com/ostrenko/confab/internal/store"

	goredis "github.com/redis/go-redis/v9"
)

func notificationKey(id domain.NotificationID) string { return "notif:" + string(id) }
func userNotifsKey(uid domain.UserID) string          { return "user:" + string(uid) + ":notifs" }

func (s *Store) CreateNotification(ctx context.Context, n domain.Notification) error {
	data, err := json.Marshal(n)
	if err != nil {
		return err
	}
	ok, err := s.rdb.SetNX(ctx, notificationKey(n.ID), data, 0).Result()
	if err != nil {
		return err
	}
	if !ok {
		return store.ErrConflict
	}
	return s.rdb.ZAdd(ctx, userNotifsKey(n.User), goredis.Z{
		Score:  float64(n.CreatedAt.UnixMilli()),
		Member: string(n.ID),
	}).Err()
}

func (s *Store) ListNotifications(ctx context.Context, uid domain.UserID, unreadOnly bool) ([]domain.Notification, error) {
	// ZRevRange: newest first.
	ids, err := s.rdb.ZRevRange(ctx, userNotifsKey(uid), 0, -1).Result()
	if err != nil {
		return nil, err
	}
	out := make([]domain.Notification, 0, len(ids))
	for _, id := range ids {
		data, err := s.rdb.Get(ctx, notificationKey(domain.NotificationID(id))).Bytes()
		if err != nil {
			continue
		}
		var n domain.Notification
		if err := json.Unmarshal(data, &n); err != nil {
			return nil, err
		}
		if unreadOnly && n.Read {
			continue
		}
		out = append(out, n)
	}
	return out, nil
}

func (s *Store) MarkRead(ctx context.Context, uid domain.UserID, id domain.NotificationID) (domain.Notification, error) {
	data, err := s.rdb.Get(ctx, notificationKey(id)).Bytes()
	if err != nil {
		return domain.Notification{}, notFound(err)
	}
	var n domain.Notification
	if err := json.Unmarshal(data, &n); err != nil {
		return domain.Notification{}, err
	}
	if n.User != uid {
		return domain.Notification{}, store.ErrNotFound
	}
	n.Read = true
	updated, err := json.Marshal(n)
	if err != nil {
		return domain.Notification{}, err
	}
	if err := s.rdb.Set(ctx, notificationKey(id), updated, 0).Err(); err != nil {
		return domain.Notification{}, err
	}
	return n, nil
}
