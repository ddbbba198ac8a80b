// Package keys generates the identifier's key material: one key pair per
// role (authentication, update, recovery) through an injected cryptographic
// capability. The provider holds no state and persists nothing.
package keys

import (
	"context"
	"encoding/json"
	"log/slog"

	"anchorid/internal/identity/models"
	dErrors "anchorid/pkg/domain-errors"
)

// Provider produces key pairs for the identifier roles.
type Provider struct {
	crypto Crypto
	logger *slog.Logger
}

func NewProvider(crypto Crypto, logger *slog.Logger) *Provider {
	return &Provider{crypto: crypto, logger: logger}
}

// Generate returns a key pair for the given role. Roles are independent;
// callers may invoke them in any order.
func (p *Provider) Generate(ctx context.Context, role models.KeyRole) (models.KeyPair, error) {
	pub, priv, err := p.crypto.GenerateKeyPair(ctx)
	if err != nil {
		return models.KeyPair{}, dErrors.Wrap(dErrors.CodeKeyGeneration,
			"cryptographic capability unavailable for role "+string(role), err)
	}
	if !validJWK(pub) || !validJWK(priv) {
		return models.KeyPair{}, dErrors.Newf(dErrors.CodeKeyGeneration,
			"cryptographic capability returned malformed key material for role %s", role)
	}

	p.logger.DebugContext(ctx, "key pair generated", "role", role)
	return models.KeyPair{Role: role, Public: pub, Private: priv}, nil
}

// GenerateAll produces the full role set.
func (p *Provider) GenerateAll(ctx context.Context) (map[models.KeyRole]models.KeyPair, error) {
	out := make(map[models.KeyRole]models.KeyPair, len(models.Roles()))
	for _, role := range models.Roles() {
		pair, err := p.Generate(ctx, role)
		if err != nil {
			return nil, err
		}
		out[role] = pair
	}
	return out, nil
}

func validJWK(raw json.RawMessage) bool {
	if len(raw) == 0 {
		return false
	}
	var probe map[string]any
	if err := json.Unmarshal(raw, &probe); err != nil {
		return false
	}
	return len(probe) > 0
}
