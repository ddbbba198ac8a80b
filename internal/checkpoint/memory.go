package checkpoint

import (
	"context"
	"encoding/json"
	"fmt"
	"sync"

	"github.com/google/uuid"

	"anchorid/pkg/requestcontext"
	"anchorid/pkg/sentinel"
)

// InMemoryStore keeps artifacts in process memory. It exists for tests and
// intentionally favors clarity over performance.
type InMemoryStore struct {
	mu      sync.RWMutex
	records map[string][]Record
}

func NewInMemoryStore() *InMemoryStore {
	return &InMemoryStore{records: make(map[string][]Record)}
}

func (s *InMemoryStore) Save(ctx context.Context, stage Stage, investorID string, payload any) (Record, error) {
	raw, err := json.Marshal(payload)
	if err != nil {
		return Record{}, fmt.Errorf("marshal checkpoint payload: %w", err)
	}

	now := requestcontext.Now(ctx)
	record := Record{
		ID:         uuid.NewString(),
		Stage:      stage,
		InvestorID: investorID,
		Timestamp:  Timestamp(now),
		Payload:    raw,
		SavedAt:    now,
	}

	s.mu.Lock()
	defer s.mu.Unlock()
	key := memoryKey(stage, investorID)
	s.records[key] = append(s.records[key], record)
	return record, nil
}

func (s *InMemoryStore) LoadLatest(_ context.Context, stage Stage, investorID string) (Record, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	records := s.records[memoryKey(stage, investorID)]
	if len(records) == 0 {
		return Record{}, fmt.Errorf("checkpoint %s/%s: %w", stage, investorID, sentinel.ErrNotFound)
	}

	latest := records[0]
	for _, record := range records[1:] {
		if record.Timestamp > latest.Timestamp {
			latest = record
		}
	}
	return latest, nil
}

// Count reports artifacts stored for a stage/investor pair.
func (s *InMemoryStore) Count(stage Stage, investorID string) int {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return len(s.records[memoryKey(stage, investorID)])
}

func memoryKey(stage Stage, investorID string) string {
	return string(stage) + "/" + investorID
}

var _ Store = (*InMemoryStore)(nil)
