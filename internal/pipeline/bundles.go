package pipeline

import (
	"anchorid/internal/identity/models"
	"anchorid/internal/poller"
)

// Checkpoint payloads, one per persisted artifact kind. The identifier
// bundle is the only artifact carrying private key material; the public
// bundle holds the shareable subset.

type keysBundle struct {
	InvestorID string           `json:"investorId"`
	Keys       []models.KeyPair `json:"keys"`
}

type identifierBundle struct {
	InvestorID string                    `json:"investorId"`
	Document   models.IdentifierDocument `json:"document"`
	Identity   models.DIDIdentity        `json:"identity"`
	Operations []models.CreateOperation  `json:"operations"`
	Keys       []models.KeyPair          `json:"keys"`
}

type publicBundle struct {
	InvestorID string                    `json:"investorId"`
	Document   models.IdentifierDocument `json:"document"`
	Identity   models.DIDIdentity        `json:"identity"`
	PublicKeys []models.KeyPair          `json:"publicKeys"`
}

type anchorBundle struct {
	InvestorID string                  `json:"investorId"`
	Submission models.SubmissionResult `json:"submission"`
}

type settlementBundle struct {
	InvestorID   string                       `json:"investorId"`
	Transaction  models.SettlementTransaction `json:"transaction"`
	Confirmation *poller.Result               `json:"confirmation,omitempty"`
}

func keyList(keys map[models.KeyRole]models.KeyPair) []models.KeyPair {
	out := make([]models.KeyPair, 0, len(keys))
	for _, role := range models.Roles() {
		if pair, ok := keys[role]; ok {
			out = append(out, pair)
		}
	}
	return out
}

func keyMap(keys []models.KeyPair) map[models.KeyRole]models.KeyPair {
	out := make(map[models.KeyRole]models.KeyPair, len(keys))
	for _, pair := range keys {
		out[pair.Role] = pair
	}
	return out
}

func redactAll(keys []models.KeyPair) []models.KeyPair {
	out := make([]models.KeyPair, 0, len(keys))
	for _, pair := range keys {
		out = append(out, pair.Redacted())
	}
	return out
}
