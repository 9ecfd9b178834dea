package redis

import (
	"context"
	"encoding/json"
	"sort"

	"github.com/ostrenko/confab/internal/domain"
)

const jobsIndexKey = "jobs"

func jobKey(id domain.JobID) string { return "job:" + string(id) }

func (s *Store) PutJob(ctx context.Context, j domain.NotificationJob) error {
	data, err := json.Marshal(j)
	if err != nil {
		return err
	}
	if err := s.rdb.Set(ctx, jobKey(j.ID), data, 0).Err(); err != nil {
		return err
	}
	return s.rdb.SAdd(ctx, jobsIndexKey, string(j.ID)).Err()
}

func (s *Store) ListJobs(ctx context.Context) ([]domain.NotificationJob, error) {
	ids, err := s.rdb.SMembers(ctx, jobsIndexKey).Result()
	if err != nil {
		return nil, err
	}
	out := make([]domain.NotificationJob, 0, len(ids))
	for _, id := range ids {
		data, err := s.rdb.Get(ctx, jobKey(domain.JobID(id))).Bytes()
		if err != nil {
			// Claimed between SMembers and Get; skip.
			s.rdb.SRem(ctx, jobsIndexKey, id)
			continue
		}
		var j domain.NotificationJob
		if err := json.Unmarshal(data, &j); err != nil {
			return nil, err
		}
		out = append(out, j)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].FireAt.Before(out[j].FireAt) })
	return out, nil
}

// ClaimJob deletes the job key atomically. DEL's return count decides the
// winner when two timers race, which gives at-most-one dispatch per job.
func (s *Store) ClaimJob(ctx context.Context, id domain.JobID) (bool, error) {
	n, err := s.rdb.Del(ctx, jobKey(id)).Result()
	if err != nil {
		return false, err
	}
	s.rdb.SRem(ctx, jobsIndexKey, string(id))
	return n > 0, nil
}
