package proposals

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/redis/go-redis/v9"
)

const (
	defaultRedisPrefix = "govcomms:feedback"
	redisTxRetries     = 5
)

// RedisStore keeps one key per record, holding the same JSON object as a
// feedback.json entry, plus a set of known message ids.
type RedisStore struct {
	client *redis.Client
	prefix string
	codec  Codec
	now    func() time.Time
	keys   *keyedMutex
}

// NewRedisStore wraps client. The store owns the client and closes it.
func NewRedisStore(client *redis.Client, prefix string, opts ...Option) *RedisStore {
	if prefix == "" {
		prefix = defaultRedisPrefix
	}
	o := buildOptions(opts)
	return &RedisStore{
		client: client,
		prefix: prefix,
		codec:  o.codec,
		now:    o.now,
		keys:   newKeyedMutex(),
	}
}

func (s *RedisStore) recordKey(id string) string { return s.prefix + ":record:" + id }
func (s *RedisStore) indexKey() string          { return s.prefix + ":ids" }

func (s *RedisStore) Close() error { return s.client.Close() }

func (s *RedisStore) Create(ctx context.Context, rec *Record) error {
	if rec == nil || rec.MessageID == "" {
		return fmt.Errorf("proposals: record with message id is required")
	}
	if err := rec.Validate(); err != nil {
		return err
	}
	data, err := s.codec.MarshalRecord(rec)
	if err != nil {
		return fmt.Errorf("%w: encode %s: %v", ErrStorage, rec.MessageID, err)
	}

	unlock := s.keys.Lock(rec.MessageID)
	defer unlock()

	key := s.recordKey(rec.MessageID)
	err = s.client.Watch(ctx, func(tx *redis.Tx) error {
		n, err := tx.Exists(ctx, key).Result()
		if err != nil {
			return err
		}
		if n > 0 {
			return ErrAlreadyExists
		}
		_, err = tx.TxPipelined(ctx, func(p redis.Pipeliner) error {
			p.Set(ctx, key, data, 0)
			p.SAdd(ctx, s.indexKey(), rec.MessageID)
			return nil
		})
		return err
	}, key)
	return s.wrap(err)
}

func (s *RedisStore) Get(ctx context.Context, id string) (*Record, error) {
	data, err := s.client.Get(ctx, s.recordKey(id)).Bytes()
	if err != nil {
		return nil, s.wrap(err)
	}
	return s.codec.UnmarshalRecord(id, data)
}

func (s *RedisStore) Update(ctx context.Context, id string, patch Patch) (*Record, error) {
	return s.mutate(ctx, id, patchFunc(patch, s.now), false)
}

func (s *RedisStore) AddSignatory(ctx context.Context, id string, sig Signatory) error {
	_, err := s.mutate(ctx, id, signatoryFunc(sig, s.now), false)
	return err
}

func (s *RedisStore) ListSignatoryIDs(ctx context.Context, id string) ([]string, error) {
	rec, err := s.Get(ctx, id)
	if err != nil {
		return nil, err
	}
	return rec.SignatoryIDs(), nil
}

func (s *RedisStore) Mutate(ctx context.Context, id string, fn MutateFunc) (*Record, error) {
	return s.mutate(ctx, id, fn, true)
}

// mutate takes the in-process lock for id and then runs an optimistic
// WATCH/MULTI cycle, retrying when the key moved underneath it.
func (s *RedisStore) mutate(ctx context.Context, id string, fn MutateFunc, strict bool) (*Record, error) {
	unlock := s.keys.Lock(id)
	defer unlock()

	key := s.recordKey(id)
	var result *Record
	for attempt := 0; attempt < redisTxRetries; attempt++ {
		// errors from decoding or fn are returned untouched
		var applyErr error
		err := s.client.Watch(ctx, func(tx *redis.Tx) error {
			data, err := tx.Get(ctx, key).Bytes()
			if err != nil {
				return err
			}
			rec, err := s.codec.UnmarshalRecord(id, data)
			if err != nil {
				applyErr = err
				return err
			}
			next, changed, err := mutateLocked(rec, fn, strict)
			if err != nil {
				applyErr = err
				return err
			}
			if !changed {
				result = rec
				return nil
			}
			encoded, err := s.codec.MarshalRecord(next)
			if err != nil {
				return err
			}
			_, err = tx.TxPipelined(ctx, func(p redis.Pipeliner) error {
				p.Set(ctx, key, encoded, 0)
				return nil
			})
			if err == nil {
				result = next
			}
			return err
		}, key)
		if applyErr != nil {
			return nil, applyErr
		}
		if errors.Is(err, redis.TxFailedErr) {
			continue
		}
		if err != nil {
			return nil, s.wrap(err)
		}
		return result, nil
	}
	return nil, fmt.Errorf("%w: %s kept changing after %d attempts", ErrStorage, id, redisTxRetries)
}

func (s *RedisStore) List(ctx context.Context) ([]*Record, error) {
	ids, err := s.client.SMembers(ctx, s.indexKey()).Result()
	if err != nil {
		return nil, s.wrap(err)
	}
	if len(ids) == 0 {
		return nil, nil
	}
	keys := make([]string, len(ids))
	for i, id := range ids {
		keys[i] = s.recordKey(id)
	}
	values, err := s.client.MGet(ctx, keys...).Result()
	if err != nil {
		return nil, s.wrap(err)
	}

	doc := make(map[string]*Record, len(ids))
	for i, v := range values {
		raw, ok := v.(string)
		if !ok {
			continue
		}
		rec, err := s.codec.UnmarshalRecord(ids[i], []byte(raw))
		if err != nil {
			return nil, err
		}
		doc[ids[i]] = rec
	}
	return sortRecords(doc), nil
}

// wrap maps redis errors onto the package sentinels.
func (s *RedisStore) wrap(err error) error {
	switch {
	case err == nil:
		return nil
	case errors.Is(err, redis.Nil):
		return ErrNotFound
	case errors.Is(err, ErrAlreadyExists),
		errors.Is(err, context.Canceled), errors.Is(err, context.DeadlineExceeded):
		return err
	default:
		return fmt.Errorf("%w: redis: %v", ErrStorage, err)
	}
}
