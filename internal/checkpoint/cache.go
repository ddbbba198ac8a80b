package checkpoint

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"time"

	platformredis "anchorid/internal/platform/redis"
)

const cacheTTL = 24 * time.Hour

// CachedStore layers a best-effort redis cache of the latest artifact over
// an inner store. Cache failures never fail a save or a load; the inner
// store stays authoritative.
type CachedStore struct {
	inner  Store
	client *platformredis.Client
	logger *slog.Logger
}

func NewCachedStore(inner Store, client *platformredis.Client, logger *slog.Logger) *CachedStore {
	return &CachedStore{inner: inner, client: client, logger: logger}
}

func (s *CachedStore) Save(ctx context.Context, stage Stage, investorID string, payload any) (Record, error) {
	record, err := s.inner.Save(ctx, stage, investorID, payload)
	if err != nil {
		return Record{}, err
	}
	s.put(ctx, record)
	return record, nil
}

func (s *CachedStore) LoadLatest(ctx context.Context, stage Stage, investorID string) (Record, error) {
	if cached, ok := s.get(ctx, stage, investorID); ok {
		return cached, nil
	}

	record, err := s.inner.LoadLatest(ctx, stage, investorID)
	if err != nil {
		return Record{}, err
	}
	s.put(ctx, record)
	return record, nil
}

func (s *CachedStore) get(ctx context.Context, stage Stage, investorID string) (Record, bool) {
	raw, err := s.client.Get(ctx, cacheKey(stage, investorID)).Bytes()
	if err != nil {
		return Record{}, false
	}
	var record Record
	if err := json.Unmarshal(raw, &record); err != nil {
		s.logger.WarnContext(ctx, "corrupt checkpoint cache entry, falling through",
			"stage", stage, "investor_id", investorID, "error", err)
		return Record{}, false
	}
	return record, true
}

func (s *CachedStore) put(ctx context.Context, record Record) {
	raw, err := json.Marshal(record)
	if err != nil {
		return
	}
	key := cacheKey(record.Stage, record.InvestorID)
	if err := s.client.Set(ctx, key, raw, cacheTTL).Err(); err != nil {
		s.logger.WarnContext(ctx, "checkpoint cache write failed",
			"stage", record.Stage, "investor_id", record.InvestorID, "error", err)
	}
}

func cacheKey(stage Stage, investorID string) string {
	return fmt.Sprintf("anchorid:checkpoint:%s:%s", sanitize(investorID), stage)
}

var _ Store = (*CachedStore)(nil)
