// Package checkpoint persists the outcome of each pipeline stage as
// append-only timestamped JSON artifacts, keyed by investor id, so a run can
// be resumed or audited without repeating completed stages.
package checkpoint

import (
	"context"
	"encoding/json"
	"fmt"
	"strings"
	"time"
)

// Stage names the pipeline stages that checkpoint.
type Stage string

const (
	StageKeys         Stage = "keys"
	StageIdentifier   Stage = "identifier"
	StagePublicBundle Stage = "public-bundle"
	StageAnchoring    Stage = "anchoring"
	StageSettlement   Stage = "settlement"
	StageConfirmation Stage = "confirmation"
)

// Record is one persisted artifact. Timestamp is formatted so that
// lexicographic order equals chronological order; the latest record for a
// stage/investor pair is authoritative on resume.
type Record struct {
	ID         string          `json:"id"`
	Stage      Stage           `json:"stage"`
	InvestorID string          `json:"investorId"`
	Timestamp  string          `json:"timestamp"`
	Payload    json.RawMessage `json:"payload"`
	SavedAt    time.Time       `json:"savedAt"`
}

// Store is the checkpoint persistence contract. Saves append; they never
// replace earlier artifacts. LoadLatest returns sentinel.ErrNotFound when no
// artifact exists for the pair, which callers treat as recoverable: either a
// "run the prior stage first" error or a fall-back to fresh data.
type Store interface {
	Save(ctx context.Context, stage Stage, investorID string, payload any) (Record, error)
	LoadLatest(ctx context.Context, stage Stage, investorID string) (Record, error)
}

// Timestamp renders t in the artifact timestamp format. Fixed-width digits
// keep lexicographic comparison consistent with time ordering.
func Timestamp(t time.Time) string {
	return t.UTC().Format("20060102T150405.000000000Z")
}

func marshalPayload(payload any) (json.RawMessage, error) {
	raw, err := json.Marshal(payload)
	if err != nil {
		return nil, fmt.Errorf("marshal checkpoint payload: %w", err)
	}
	return raw, nil
}

// sanitize makes an investor id safe for filenames and keys.
func sanitize(investorID string) string {
	return strings.Map(func(r rune) rune {
		switch {
		case r >= 'a' && r <= 'z', r >= 'A' && r <= 'Z', r >= '0' && r <= '9':
			return r
		case r == '-' || r == '_' || r == '.':
			return r
		default:
			return '_'
		}
	}, investorID)
}
