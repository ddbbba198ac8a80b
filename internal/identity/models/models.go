// Package models defines the identifier-side data model: key material, the
// DID document, the create operation, and the derived identifier strings.
package models

import (
	"encoding/json"
	"strings"
	"time"
)

// KeyRole names the three key slots an identifier is created with.
type KeyRole string

const (
	KeyRoleAuthentication KeyRole = "authentication"
	KeyRoleUpdate         KeyRole = "update"
	KeyRoleRecovery       KeyRole = "recovery"
)

// Roles lists all key roles in a stable order. Generation itself has no
// ordering dependency between roles.
func Roles() []KeyRole {
	return []KeyRole{KeyRoleAuthentication, KeyRoleUpdate, KeyRoleRecovery}
}

// KeyPair carries one generated key pair. Keys are JWK documents produced by
// the cryptographic capability; this package treats them as opaque JSON.
// Private material must only ever be serialized into the private artifact.
type KeyPair struct {
	Role    KeyRole         `json:"role"`
	Public  json.RawMessage `json:"publicJwk"`
	Private json.RawMessage `json:"privateJwk,omitempty"`
}

// Redacted returns a copy safe for public/shareable artifacts.
func (k KeyPair) Redacted() KeyPair {
	return KeyPair{Role: k.Role, Public: k.Public}
}

// PublicKeyEntry is one verification method in the DID document.
type PublicKeyEntry struct {
	ID        string          `json:"id"`
	Type      string          `json:"type"`
	PublicKey json.RawMessage `json:"publicKeyJwk"`
	Purposes  []string        `json:"purposes"`
}

// WalletEndpoint embeds the investor identifier and the three wallet
// addresses verbatim into the document's service endpoint.
type WalletEndpoint struct {
	InvestorID string `json:"investorId"`
	Bitcoin    string `json:"bitcoinAddress"`
	Ethereum   string `json:"ethereumAddress"`
	Solana     string `json:"solanaAddress"`
}

// ServiceEntry is one service in the DID document.
type ServiceEntry struct {
	ID       string         `json:"id"`
	Type     string         `json:"type"`
	Endpoint WalletEndpoint `json:"serviceEndpoint"`
}

// IdentifierDocument is the DID document assembled at creation. Invariant:
// exactly one authentication key is included.
type IdentifierDocument struct {
	PublicKeys []PublicKeyEntry `json:"publicKeys"`
	Services   []ServiceEntry   `json:"services"`
}

// CreateOperation is the first protocol-level operation for the identifier.
// SuffixData and Delta are required by the anchoring network; their contents
// stay opaque to the orchestrator.
type CreateOperation struct {
	Type       string          `json:"type"`
	SuffixData json.RawMessage `json:"suffixData"`
	Delta      json.RawMessage `json:"delta"`
}

// Valid reports whether both required sub-fields are present and non-null.
func (op CreateOperation) Valid() bool {
	return len(op.SuffixData) > 0 && string(op.SuffixData) != "null" &&
		len(op.Delta) > 0 && string(op.Delta) != "null"
}

// DIDIdentity pairs the immediately-usable long form with the stable short
// form. ShortForm is the prefix of LongForm up to its first '?'.
type DIDIdentity struct {
	LongForm  string `json:"longForm"`
	ShortForm string `json:"shortForm"`
}

// Suffix returns the identifier's stable suffix: the trailing path segment
// of the short form. Downstream lookups key off this value.
func (d DIDIdentity) Suffix() string {
	idx := strings.LastIndex(d.ShortForm, ":")
	if idx < 0 {
		return d.ShortForm
	}
	return d.ShortForm[idx+1:]
}

// SubmissionTier names the fallback tier that produced a submission result.
type SubmissionTier string

const (
	TierPrimary  SubmissionTier = "primary"
	TierDirect   SubmissionTier = "direct"
	TierDegraded SubmissionTier = "degraded"
)

// Submission statuses. The network may report others; those are carried
// through verbatim.
const (
	SubmissionStatusPending           = "pending"
	SubmissionStatusSubmittedLongform = "submitted_longform"
	SubmissionStatusSimulated         = "simulated"
)

// SubmissionResult is the outcome of the anchoring submission. A non-nil
// result is "successful enough to proceed" regardless of producing tier.
type SubmissionResult struct {
	Status      string          `json:"status"`
	Tier        SubmissionTier  `json:"tier"`
	Raw         json.RawMessage `json:"raw,omitempty"`
	SubmittedAt time.Time       `json:"submittedAt"`
}
