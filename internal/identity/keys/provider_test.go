package keys

import (
	"context"
	"encoding/json"
	"errors"
	"io"
	"log/slog"
	"testing"

	"github.com/stretchr/testify/require"
	"github.com/stretchr/testify/suite"

	"anchorid/internal/identity/models"
	dErrors "anchorid/pkg/domain-errors"
)

type fakeCrypto struct {
	pub  json.RawMessage
	priv json.RawMessage
	err  error

	calls int
}

func (f *fakeCrypto) GenerateKeyPair(context.Context) (json.RawMessage, json.RawMessage, error) {
	f.calls++
	return f.pub, f.priv, f.err
}

func (f *fakeCrypto) Digest([]byte) string { return "digest" }

type ProviderSuite struct {
	suite.Suite
	logger *slog.Logger
}

func (s *ProviderSuite) SetupTest() {
	s.logger = slog.New(slog.NewTextHandler(io.Discard, nil))
}

func TestProviderSuite(t *testing.T) {
	suite.Run(t, new(ProviderSuite))
}

func (s *ProviderSuite) TestGenerateAll() {
	s.Run("produces one pair per role", func() {
		crypto := &fakeCrypto{
			pub:  json.RawMessage(`{"kty":"EC","x":"1","y":"2"}`),
			priv: json.RawMessage(`{"kty":"EC","x":"1","y":"2","d":"3"}`),
		}
		provider := NewProvider(crypto, s.logger)

		keys, err := provider.GenerateAll(context.Background())
		s.Require().NoError(err)
		s.Require().Len(keys, 3)
		for _, role := range models.Roles() {
			pair, ok := keys[role]
			s.Require().True(ok, "missing role %s", role)
			s.Require().Equal(role, pair.Role)
			s.Require().NotEmpty(pair.Public)
			s.Require().NotEmpty(pair.Private)
		}
		s.Require().Equal(3, crypto.calls)
	})

	s.Run("capability failure surfaces as key generation error", func() {
		crypto := &fakeCrypto{err: errors.New("entropy exhausted")}
		provider := NewProvider(crypto, s.logger)

		_, err := provider.GenerateAll(context.Background())
		s.Require().Error(err)
		s.Require().Equal(dErrors.CodeKeyGeneration, dErrors.CodeOf(err))
	})

	s.Run("malformed key material is rejected", func() {
		crypto := &fakeCrypto{
			pub:  json.RawMessage(`not-json`),
			priv: json.RawMessage(`{"kty":"EC"}`),
		}
		provider := NewProvider(crypto, s.logger)

		_, err := provider.Generate(context.Background(), models.KeyRoleUpdate)
		s.Require().Error(err)
		s.Require().Equal(dErrors.CodeKeyGeneration, dErrors.CodeOf(err))
	})
}

func TestECDSAGeneratesDistinctJWKs(t *testing.T) {
	crypto := NewECDSA()

	pub1, priv1, err := crypto.GenerateKeyPair(context.Background())
	require.NoError(t, err)
	pub2, _, err := crypto.GenerateKeyPair(context.Background())
	require.NoError(t, err)

	var pubDoc, privDoc map[string]any
	require.NoError(t, json.Unmarshal(pub1, &pubDoc))
	require.NoError(t, json.Unmarshal(priv1, &privDoc))

	require.Equal(t, "EC", pubDoc["kty"])
	require.Equal(t, "P-256", pubDoc["crv"])
	require.NotContains(t, pubDoc, "d", "public jwk must not carry private scalar")
	require.Contains(t, privDoc, "d")

	require.NotEqual(t, string(pub1), string(pub2), "consecutive keys must differ")
}

func TestECDSADigestIsStable(t *testing.T) {
	crypto := NewECDSA()
	require.Equal(t, crypto.Digest([]byte("payload")), crypto.Digest([]byte("payload")))
	require.NotEqual(t, crypto.Digest([]byte("payload")), crypto.Digest([]byte("other")))
	require.Len(t, crypto.Digest([]byte("payload")), 64)
}
