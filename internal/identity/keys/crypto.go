package keys

import (
	"context"
	"crypto/ecdsa"
	"crypto/elliptic"
	"crypto/rand"
	"crypto/sha256"
	"encoding/hex"
	"encoding/json"
	"fmt"

	"github.com/lestrrat-go/jwx/v2/jwa"
	"github.com/lestrrat-go/jwx/v2/jwk"
)

// Crypto is the cryptographic capability the pipeline consumes. Key pairs
// come back as JWK documents; Digest is a hex-encoded content digest used in
// settlement metadata.
type Crypto interface {
	GenerateKeyPair(ctx context.Context) (publicJWK, privateJWK json.RawMessage, err error)
	Digest(data []byte) string
}

// ECDSA implements Crypto with P-256 keys exported as JWKs.
type ECDSA struct{}

func NewECDSA() ECDSA { return ECDSA{} }

func (ECDSA) GenerateKeyPair(_ context.Context) (json.RawMessage, json.RawMessage, error) {
	raw, err := ecdsa.GenerateKey(elliptic.P256(), rand.Reader)
	if err != nil {
		return nil, nil, fmt.Errorf("generate ecdsa key: %w", err)
	}

	priv, err := jwk.FromRaw(raw)
	if err != nil {
		return nil, nil, fmt.Errorf("build private jwk: %w", err)
	}
	if err := priv.Set(jwk.AlgorithmKey, jwa.ES256); err != nil {
		return nil, nil, fmt.Errorf("set jwk alg: %w", err)
	}
	if err := jwk.AssignKeyID(priv); err != nil {
		return nil, nil, fmt.Errorf("assign jwk kid: %w", err)
	}

	pub, err := jwk.PublicKeyOf(priv)
	if err != nil {
		return nil, nil, fmt.Errorf("derive public jwk: %w", err)
	}

	pubJSON, err := json.Marshal(pub)
	if err != nil {
		return nil, nil, fmt.Errorf("marshal public jwk: %w", err)
	}
	privJSON, err := json.Marshal(priv)
	if err != nil {
		return nil, nil, fmt.Errorf("marshal private jwk: %w", err)
	}
	return pubJSON, privJSON, nil
}

func (ECDSA) Digest(data []byte) string {
	sum := sha256.Sum256(data)
	return hex.EncodeToString(sum[:])
}
