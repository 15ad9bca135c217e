package jobs

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/redis/go-redis/v9"
)

// ErrJobNotFound is returned by Get when no record exists for the id.
// Callers must not conflate it with store connectivity failures, which are
// returned as wrapped errors.
var ErrJobNotFound = errors.New("job not found")

// ErrInvalidStatus is returned when an update carries a status outside the
// enumerated set.
var ErrInvalidStatus = errors.New("invalid job status")

// Store persists job records and the pending-work list in Redis. The store
// is shared by all gateway instances; every mutation that reads before
// writing runs under WATCH so concurrent updates never clobber each other.
type Store struct {
	client *redis.Client
}

func NewStore(client *redis.Client) *Store {
	return &Store{client: client}
}

// Submit creates a pending job for the request payload and appends it to
// the pending list. Ids are generated, never caller-supplied; SETNX guards
// against ever overwriting an existing record.
func (s *Store) Submit(ctx context.Context, request json.RawMessage) (string, error) {
	jobID := uuid.NewString()
	now := time.Now().UTC()

	job := Job{
		JobID:     jobID,
		Request:   request,
		Status:    StatusPending,
		CreatedAt: now,
		UpdatedAt: now,
	}

	data, err := json.Marshal(job)
	if err != nil {
		return "", fmt.Errorf("failed to marshal job: %w", err)
	}

	ok, err := s.client.SetNX(ctx, StatusKey(jobID), data, 0).Result()
	if err != nil {
		return "", fmt.Errorf("failed to store job: %w", err)
	}
	if !ok {
		return "", fmt.Errorf("job id collision: %s", jobID)
	}

	if err := s.client.LPush(ctx, KeyPendingList, jobID).Err(); err != nil {
		// no worker will ever see an unlisted job, drop the record
		s.client.Del(ctx, StatusKey(jobID))
		return "", fmt.Errorf("failed to enqueue job: %w", err)
	}

	return jobID, nil
}

// Get retrieves a job record. Absent records return ErrJobNotFound.
func (s *Store) Get(ctx context.Context, jobID string) (*Job, error) {
	data, err := s.client.Get(ctx, StatusKey(jobID)).Bytes()
	if err != nil {
		if errors.Is(err, redis.Nil) {
			return nil, ErrJobNotFound
		}
		return nil, fmt.Errorf("failed to get job: %w", err)
	}

	var job Job
	if err := json.Unmarshal(data, &job); err != nil {
		return nil, fmt.Errorf("failed to unmarshal job: %w", err)
	}
	return &job, nil
}

// UpdateStatus merges status, progress and result into the existing record
// and bumps updated_at. Updating a missing job is a no-op since it may
// have been swept. Terminal jobs are never mutated.
func (s *Store) UpdateStatus(ctx context.Context, jobID string, status Status, progress *int, result json.RawMessage) error {
	if !status.Valid() {
		return fmt.Errorf("%w: %q", ErrInvalidStatus, status)
	}

	key := StatusKey(jobID)
	txn := func(tx *redis.Tx) error {
		data, err := tx.Get(ctx, key).Bytes()
		if err != nil {
			if errors.Is(err, redis.Nil) {
				return nil
			}
			return err
		}

		var job Job
		if err := json.Unmarshal(data, &job); err != nil {
			return fmt.Errorf("failed to unmarshal job: %w", err)
		}
		if job.Status.Terminal() {
			return nil
		}

		job.Status = status
		job.UpdatedAt = time.Now().UTC()
		if progress != nil {
			job.Progress = progress
		}
		if result != nil {
			job.Result = result
		}

		updated, err := json.Marshal(job)
		if err != nil {
			return fmt.Errorf("failed to marshal job: %w", err)
		}

		_, err = tx.TxPipelined(ctx, func(pipe redis.Pipeliner) error {
			pipe.Set(ctx, key, updated, 0)
			return nil
		})
		return err
	}

	if err := s.watchRetry(ctx, txn, key); err != nil {
		return fmt.Errorf("failed to update job %s: %w", jobID, err)
	}
	return nil
}

// Cancel transitions a pending or processing job to cancelled. It returns
// false when the job does not exist or is already terminal.
func (s *Store) Cancel(ctx context.Context, jobID string) (bool, error) {
	key := StatusKey(jobID)
	cancelled := false

	txn := func(tx *redis.Tx) error {
		data, err := tx.Get(ctx, key).Bytes()
		if err != nil {
			if errors.Is(err, redis.Nil) {
				return nil
			}
			return err
		}

		var job Job
		if err := json.Unmarshal(data, &job); err != nil {
			return fmt.Errorf("failed to unmarshal job: %w", err)
		}
		if job.Status.Terminal() {
			return nil
		}

		job.Status = StatusCancelled
		job.UpdatedAt = time.Now().UTC()

		updated, err := json.Marshal(job)
		if err != nil {
			return fmt.Errorf("failed to marshal job: %w", err)
		}

		_, err = tx.TxPipelined(ctx, func(pipe redis.Pipeliner) error {
			pipe.Set(ctx, key, updated, 0)
			return nil
		})
		if err == nil {
			cancelled = true
		}
		return err
	}

	if err := s.watchRetry(ctx, txn, key); err != nil {
		return false, fmt.Errorf("failed to cancel job %s: %w", jobID, err)
	}
	return cancelled, nil
}

// Sweep deletes job records older than maxAge together with their detached
// result payloads. It is idempotent and tolerates records deleted by a
// concurrent sweep mid-scan.
func (s *Store) Sweep(ctx context.Context, maxAge time.Duration) (int, error) {
	cutoff := time.Now().UTC().Add(-maxAge)
	deleted := 0

	iter := s.client.Scan(ctx, 0, KeyPrefixStatus+"*", 0).Iterator()
	for iter.Next(ctx) {
		key := iter.Val()

		data, err := s.client.Get(ctx, key).Bytes()
		if err != nil {
			if errors.Is(err, redis.Nil) {
				continue
			}
			return deleted, fmt.Errorf("failed to read job during sweep: %w", err)
		}

		var job Job
		if err := json.Unmarshal(data, &job); err != nil {
			// Unreadable record: count it as sweepable garbage.
			if err := s.client.Del(ctx, key).Err(); err != nil {
				return deleted, fmt.Errorf("failed to delete job during sweep: %w", err)
			}
			deleted++
			continue
		}

		if !job.CreatedAt.Before(cutoff) {
			continue
		}

		if err := s.client.Del(ctx, key, ResultKey(job.JobID)).Err(); err != nil {
			return deleted, fmt.Errorf("failed to delete job during sweep: %w", err)
		}
		s.client.LRem(ctx, KeyPendingList, 0, job.JobID)
		deleted++
	}
	if err := iter.Err(); err != nil {
		return deleted, fmt.Errorf("job sweep scan failed: %w", err)
	}

	return deleted, nil
}

// CountByStatus tallies all live job records by status. Used by the admin
// stats endpoint.
func (s *Store) CountByStatus(ctx context.Context) (map[Status]int, error) {
	counts := make(map[Status]int, 5)

	iter := s.client.Scan(ctx, 0, KeyPrefixStatus+"*", 0).Iterator()
	for iter.Next(ctx) {
		data, err := s.client.Get(ctx, iter.Val()).Bytes()
		if err != nil {
			if errors.Is(err, redis.Nil) {
				continue
			}
			return nil, fmt.Errorf("failed to read job: %w", err)
		}
		var job Job
		if err := json.Unmarshal(data, &job); err != nil {
			continue
		}
		counts[job.Status]++
	}
	if err := iter.Err(); err != nil {
		return nil, fmt.Errorf("job scan failed: %w", err)
	}

	return counts, nil
}

// watchRetry runs txn under WATCH on key, retrying on optimistic-lock
// conflicts.
func (s *Store) watchRetry(ctx context.Context, txn func(tx *redis.Tx) error, key string) error {
	const maxRetries = 5
	for i := 0; i < maxRetries; i++ {
		err := s.client.Watch(ctx, txn, key)
		if err == nil {
			return nil
		}
		if errors.Is(err, redis.TxFailedErr) {
			continue
		}
		return err
	}
	return fmt.Errorf("too many conflicts on %s", key)
}
