package store

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"time"

	goredis "github.com/redis/go-redis/v9"

	"portrait/internal/delegation/models"
	"portrait/internal/delegation/ports"
	platformredis "portrait/internal/platform/redis"
	id "portrait/pkg/domain"
)

// CacheTTL bounds staleness for cached authorization reads. Writes
// invalidate eagerly, so the TTL only matters for out-of-band mutations.
var CacheTTL = 5 * time.Minute

// CachedStore is a redis read-through layer over another delegate store.
// Authorization checks (Get) dominate the registries' read traffic; counts
// are read once per assignment and are cached too.
type CachedStore struct {
	inner  ports.Store
	client *platformredis.Client
	logger *slog.Logger
}

// NewCached wraps inner with a redis cache. Cache failures degrade to the
// inner store, never to an error.
func NewCached(inner ports.Store, client *platformredis.Client, logger *slog.Logger) *CachedStore {
	if logger == nil {
		logger = slog.Default()
	}
	return &CachedStore{inner: inner, client: client, logger: logger}
}

func recordKey(owner, delegate id.Address) string {
	return fmt.Sprintf("portrait:delegate:%s:%s", owner, delegate)
}

func countKey(owner id.Address) string {
	return fmt.Sprintf("portrait:delegate-count:%s", owner)
}

// Get serves the record from redis when possible.
func (s *CachedStore) Get(ctx context.Context, owner, delegate id.Address) (models.DelegateData, error) {
	key := recordKey(owner, delegate)
	if raw, err := s.client.Get(ctx, key).Bytes(); err == nil {
		var rec models.DelegateData
		if err := json.Unmarshal(raw, &rec); err == nil {
			return rec, nil
		}
	} else if !errors.Is(err, goredis.Nil) {
		s.logger.WarnContext(ctx, "delegate cache read failed", "error", err)
	}

	rec, err := s.inner.Get(ctx, owner, delegate)
	if err != nil {
		return models.DelegateData{}, err
	}
	if raw, err := json.Marshal(rec); err == nil {
		if err := s.client.Set(ctx, key, raw, CacheTTL).Err(); err != nil {
			s.logger.WarnContext(ctx, "delegate cache write failed", "error", err)
		}
	}
	return rec, nil
}

// Save writes through and invalidates both the record and the owner's count.
func (s *CachedStore) Save(ctx context.Context, owner, delegate id.Address, data models.DelegateData) error {
	if err := s.inner.Save(ctx, owner, delegate, data); err != nil {
		return err
	}
	if err := s.client.Del(ctx, recordKey(owner, delegate), countKey(owner)).Err(); err != nil {
		s.logger.WarnContext(ctx, "delegate cache invalidation failed", "error", err)
	}
	return nil
}

// AssignedCount serves the owner's assigned count from redis when possible.
func (s *CachedStore) AssignedCount(ctx context.Context, owner id.Address) (int, error) {
	key := countKey(owner)
	if count, err := s.client.Get(ctx, key).Int(); err == nil {
		return count, nil
	} else if !errors.Is(err, goredis.Nil) {
		s.logger.WarnContext(ctx, "delegate count cache read failed", "error", err)
	}

	count, err := s.inner.AssignedCount(ctx, owner)
	if err != nil {
		return 0, err
	}
	if err := s.client.Set(ctx, key, count, CacheTTL).Err(); err != nil {
		s.logger.WarnContext(ctx, "delegate count cache write failed", "error", err)
	}
	return count, nil
}
