// Package sidetree implements the identifier-document capability for an
// ION-style DID method: create-operation assembly (suffix data + delta),
// reveal/commitment hashing, and long-form URI derivation.
//
// The long form embeds the full initial state so the identifier is usable
// immediately, before the anchoring network has processed the operation. The
// short form is the stable identifier once anchored state resolves.
package sidetree

import (
	"encoding/json"
	"fmt"

	"anchorid/internal/identity/models"
)

const (
	// MethodPrefix is the DID method this capability derives URIs for.
	MethodPrefix = "did:ion:"

	// initialStateParam carries the encoded create operation in the long form.
	initialStateParam = "-ion-initial-state"

	opTypeCreate = "create"
)

// Document wraps an assembled identifier document together with the update
// and recovery public keys needed to derive its operations.
type Document struct {
	doc         models.IdentifierDocument
	updateKey   json.RawMessage
	recoveryKey json.RawMessage

	ops []models.CreateOperation
}

// NewDocument builds the capability over a document and the two commitment
// keys. Both keys must be public JWKs; private material is never needed here.
func NewDocument(doc models.IdentifierDocument, updateKey, recoveryKey json.RawMessage) (*Document, error) {
	if len(updateKey) == 0 || len(recoveryKey) == 0 {
		return nil, fmt.Errorf("sidetree document requires update and recovery public keys")
	}
	return &Document{doc: doc, updateKey: updateKey, recoveryKey: recoveryKey}, nil
}

// GenerateOperation derives the operation at the given index. Index 0 is the
// create operation; no other operations exist at identifier creation time.
func (d *Document) GenerateOperation(index int) (models.CreateOperation, error) {
	if index != 0 {
		return models.CreateOperation{}, fmt.Errorf("operation index %d not available at creation", index)
	}

	delta, err := d.delta()
	if err != nil {
		return models.CreateOperation{}, err
	}
	suffixData, err := d.suffixData(delta)
	if err != nil {
		return models.CreateOperation{}, err
	}

	op := models.CreateOperation{
		Type:       opTypeCreate,
		SuffixData: suffixData,
		Delta:      delta,
	}
	d.ops = []models.CreateOperation{op}
	return op, nil
}

// AllOperations returns every operation generated so far.
func (d *Document) AllOperations() []models.CreateOperation {
	return append([]models.CreateOperation(nil), d.ops...)
}

// URI derives the long-form identifier:
//
//	did:ion:<suffix>?-ion-initial-state=<b64url(suffixData)>.<b64url(delta)>
//
// where <suffix> is the base64url sha256 of the canonical suffix data. The
// short form is the prefix up to the '?', which callers derive themselves.
func (d *Document) URI() (string, error) {
	delta, err := d.delta()
	if err != nil {
		return "", err
	}
	suffixData, err := d.suffixData(delta)
	if err != nil {
		return "", err
	}

	canonical, err := canonicalize(suffixData)
	if err != nil {
		return "", fmt.Errorf("canonicalize suffix data: %w", err)
	}
	suffix := encode(hash(canonical))

	return fmt.Sprintf("%s%s?%s=%s.%s",
		MethodPrefix, suffix, initialStateParam,
		encode(suffixData), encode(delta)), nil
}

func (d *Document) delta() (json.RawMessage, error) {
	updateCommitment, err := commitment(d.updateKey)
	if err != nil {
		return nil, fmt.Errorf("update commitment: %w", err)
	}

	delta := map[string]any{
		"updateCommitment": updateCommitment,
		"patches": []map[string]any{
			{
				"action":   "replace",
				"document": d.doc,
			},
		},
	}
	raw, err := json.Marshal(delta)
	if err != nil {
		return nil, fmt.Errorf("marshal delta: %w", err)
	}
	return canonicalize(raw)
}

func (d *Document) suffixData(delta json.RawMessage) (json.RawMessage, error) {
	recoveryCommitment, err := commitment(d.recoveryKey)
	if err != nil {
		return nil, fmt.Errorf("recovery commitment: %w", err)
	}

	suffixData := map[string]any{
		"deltaHash":          encode(hash(delta)),
		"recoveryCommitment": recoveryCommitment,
	}
	raw, err := json.Marshal(suffixData)
	if err != nil {
		return nil, fmt.Errorf("marshal suffix data: %w", err)
	}
	return canonicalize(raw)
}
