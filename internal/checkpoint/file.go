package checkpoint

import (
	"context"
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"sort"
	"strings"

	"github.com/google/uuid"

	"anchorid/pkg/requestcontext"
	"anchorid/pkg/sentinel"
)

// FileStore writes one JSON file per artifact. Filenames embed investor id,
// stage, and timestamp: <investor>__<stage>__<timestamp>.json. Artifacts may
// contain private key material, so files are created owner-only.
type FileStore struct {
	dir string
}

// NewFileStore bootstraps the checkpoint directory.
func NewFileStore(dir string) (*FileStore, error) {
	if err := os.MkdirAll(dir, 0o700); err != nil {
		return nil, fmt.Errorf("create checkpoint directory: %w", err)
	}
	return &FileStore{dir: dir}, nil
}

func (s *FileStore) Save(ctx context.Context, stage Stage, investorID string, payload any) (Record, error) {
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

	data, err := json.MarshalIndent(record, "", "  ")
	if err != nil {
		return Record{}, fmt.Errorf("marshal checkpoint record: %w", err)
	}

	name := fmt.Sprintf("%s__%s__%s.json", sanitize(investorID), stage, record.Timestamp)
	if err := os.WriteFile(filepath.Join(s.dir, name), data, 0o600); err != nil {
		return Record{}, fmt.Errorf("write checkpoint artifact: %w", err)
	}
	return record, nil
}

func (s *FileStore) LoadLatest(_ context.Context, stage Stage, investorID string) (Record, error) {
	entries, err := os.ReadDir(s.dir)
	if err != nil {
		return Record{}, fmt.Errorf("read checkpoint directory: %w", err)
	}

	prefix := fmt.Sprintf("%s__%s__", sanitize(investorID), stage)
	var matches []string
	for _, entry := range entries {
		if entry.IsDir() {
			continue
		}
		name := entry.Name()
		if strings.HasPrefix(name, prefix) && strings.HasSuffix(name, ".json") {
			matches = append(matches, name)
		}
	}
	if len(matches) == 0 {
		return Record{}, fmt.Errorf("checkpoint %s/%s: %w", stage, investorID, sentinel.ErrNotFound)
	}

	// Timestamps are fixed-width, so the lexicographically greatest filename
	// carries the latest artifact.
	sort.Strings(matches)
	latest := matches[len(matches)-1]

	data, err := os.ReadFile(filepath.Join(s.dir, latest))
	if err != nil {
		return Record{}, fmt.Errorf("read checkpoint artifact: %w", err)
	}

	var record Record
	if err := json.Unmarshal(data, &record); err != nil {
		return Record{}, fmt.Errorf("decode checkpoint artifact %s: %w", latest, err)
	}
	return record, nil
}

// Dir exposes the artifact directory for diagnostics.
func (s *FileStore) Dir() string { return s.dir }

var _ Store = (*FileStore)(nil)
