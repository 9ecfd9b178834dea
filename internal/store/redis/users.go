package redis

import (
	"context"
	"encoding/json"

	"github.com/ostrenko/confab/internal/domain"
	"github.com/ostrenko/confab/internal/store"
)

func userKey(id domain.UserID) string  { return "user:" + string(id) }
func emailKey(email string) string     { return "useremail:" + domain.NormalizeEmail(email) }

func (s *Store) CreateUser(ctx context.Context, u domain.User) error {
	u.Email = domain.NormalizeEmail(u.Email)
	// The email index is the uniqueness guard; SETNX loses to a prior owner.
	ok, err := s.rdb.SetNX(ctx, emailKey(u.Email), string(u.ID), 0).Result()
	if err != nil {
		return err
	}
	if !ok {
		return store.ErrConflict
	}
	data, err := json.Marshal(u)
	if err != nil {
		return err
	}
	return s.rdb.Set(ctx, userKey(u.ID), data, 0).Err()
}

func (s *Store) GetUser(ctx context.Context, id domain.UserID) (domain.User, error) {
	data, err := s.rdb.Get(ctx, userKey(id)).Bytes()
	if err != nil {
		return domain.User{}, notFound(err)
	}
	var u domain.User
	if err := json.Unmarshal(data, &u); err != nil {
		return domain.User{}, err
	}
	return u, nil
}

func (s *Store) GetUserByEmail(ctx context.Context, email string) (domain.User, error) {
	id, err := s.rdb.Get(ctx, emailKey(email)).Result()
	if err != nil {
		return domain.User{}, notFound(err)
	}
	return s.GetUser(ctx, domain.UserID(id))
}

func (s *Store) UpdateUser(ctx context.Context, u domain.User) error {
	old, err := s.GetUser(ctx, u.ID)
	if err != nil {
		return err
	}
	u.Email = domain.NormalizeEmail(u.Email)
	if u.Email != old.Email {
		ok, err := s.rdb.SetNX(ctx, emailKey(u.Email), string(u.ID), 0).Result()
		if err != nil {
			return err
		}
		if !ok {
			return store.ErrConflict
		}
		s.rdb.Del(ctx, emailKey(old.Email))
	}
	data, err := json.Marshal(u)
	if err != nil {
		return err
	}
	return s.rdb.Set(ctx, userKey(u.ID), data, 0).Err()
}
