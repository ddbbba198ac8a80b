package sidetree

import (
	"crypto/sha256"
	"encoding/base64"
	"encoding/json"
	"fmt"
)

// commitment derives the reveal/commit value for a public JWK: the double
// sha256 of its canonical form, base64url encoded. Only the core EC members
// participate so that optional members (kid, alg) do not shift the
// commitment.
func commitment(publicJWK json.RawMessage) (string, error) {
	var full map[string]any
	if err := json.Unmarshal(publicJWK, &full); err != nil {
		return "", fmt.Errorf("parse public jwk: %w", err)
	}

	core := make(map[string]any, 4)
	for _, member := range []string{"crv", "kty", "x", "y"} {
		if v, ok := full[member]; ok {
			core[member] = v
		}
	}
	if len(core) == 0 {
		return "", fmt.Errorf("public jwk has no core members")
	}

	canonical, err := json.Marshal(core)
	if err != nil {
		return "", fmt.Errorf("canonicalize public jwk: %w", err)
	}

	reveal := hash(canonical)
	return encode(hash(reveal)), nil
}

// canonicalize re-marshals JSON so object members come out in sorted key
// order. Hashes over the result are stable across producers.
func canonicalize(raw json.RawMessage) (json.RawMessage, error) {
	var v any
	if err := json.Unmarshal(raw, &v); err != nil {
		return nil, err
	}
	return json.Marshal(v)
}

func hash(data []byte) []byte {
	sum := sha256.Sum256(data)
	return sum[:]
}

func encode(data []byte) string {
	return base64.RawURLEncoding.EncodeToString(data)
}
