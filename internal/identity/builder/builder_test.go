package builder

import (
	"context"
	"encoding/json"
	"io"
	"log/slog"
	"strings"
	"testing"

	"github.com/stretchr/testify/suite"

	"anchorid/internal/identity/models"
	"anchorid/internal/identity/sidetree"
	dErrors "anchorid/pkg/domain-errors"
)

func testKeys() map[models.KeyRole]models.KeyPair {
	keys := make(map[models.KeyRole]models.KeyPair, 3)
	for i, role := range models.Roles() {
		x := string(rune('a' + i))
		pub := json.RawMessage(`{"kty":"EC","crv":"P-256","x":"` + x + `","y":"y"}`)
		keys[role] = models.KeyPair{
			Role:    role,
			Public:  pub,
			Private: json.RawMessage(`{"kty":"EC","crv":"P-256","x":"` + x + `","y":"y","d":"d"}`),
		}
	}
	return keys
}

func testWallets() WalletAddresses {
	return WalletAddresses{
		Bitcoin:  "bc1qxyz",
		Ethereum: "0x" + strings.Repeat("a", 40),
		Solana:   strings.Repeat("S", 40),
	}
}

type BuilderSuite struct {
	suite.Suite
	builder *Builder
}

func (s *BuilderSuite) SetupTest() {
	s.builder = New(slog.New(slog.NewTextHandler(io.Discard, nil)))
}

func TestBuilderSuite(t *testing.T) {
	suite.Run(t, new(BuilderSuite))
}

func (s *BuilderSuite) TestBuild() {
	s.Run("assembles document, operation, and identity", func() {
		result, err := s.builder.Build(context.Background(), "inv-1", testWallets(), testKeys())
		s.Require().NoError(err)

		s.Require().Len(result.Document.PublicKeys, 1, "exactly one authentication key")
		s.Require().Equal("auth-key", result.Document.PublicKeys[0].ID)
		s.Require().Equal([]string{"authentication"}, result.Document.PublicKeys[0].Purposes)

		s.Require().Len(result.Document.Services, 1)
		endpoint := result.Document.Services[0].Endpoint
		s.Require().Equal("inv-1", endpoint.InvestorID)
		s.Require().Equal("bc1qxyz", endpoint.Bitcoin)

		s.Require().True(result.Operation.Valid())
		s.Require().Equal("create", result.Operation.Type)
	})

	s.Run("identity satisfies long/short form invariant", func() {
		result, err := s.builder.Build(context.Background(), "inv-1", testWallets(), testKeys())
		s.Require().NoError(err)

		s.Require().True(strings.HasPrefix(result.Identity.LongForm, sidetree.MethodPrefix))
		s.Require().True(strings.HasPrefix(result.Identity.LongForm, result.Identity.ShortForm))
		s.Require().NotContains(result.Identity.ShortForm, "?")
		s.Require().NotEmpty(result.Identity.Suffix())
	})

	s.Run("rebuild with same keys derives the same identifier", func() {
		keys := testKeys()
		first, err := s.builder.Build(context.Background(), "inv-1", testWallets(), keys)
		s.Require().NoError(err)
		second, err := s.builder.Build(context.Background(), "inv-1", testWallets(), keys)
		s.Require().NoError(err)
		s.Require().Equal(first.Identity, second.Identity)
	})

	s.Run("missing addresses name every absent network", func() {
		_, err := s.builder.Build(context.Background(), "inv-1",
			WalletAddresses{Ethereum: testWallets().Ethereum}, testKeys())
		s.Require().Error(err)
		s.Require().Equal(dErrors.CodeValidation, dErrors.CodeOf(err))
		s.Require().Contains(err.Error(), "bitcoin")
		s.Require().Contains(err.Error(), "solana")
		s.Require().NotContains(err.Error(), "ethereum")
	})

	s.Run("all addresses missing", func() {
		_, err := s.builder.Build(context.Background(), "inv-1", WalletAddresses{}, testKeys())
		s.Require().Error(err)
		s.Require().Contains(err.Error(), "bitcoin, ethereum, solana")
	})

	s.Run("missing key role is a validation error", func() {
		keys := testKeys()
		delete(keys, models.KeyRoleRecovery)

		_, err := s.builder.Build(context.Background(), "inv-1", testWallets(), keys)
		s.Require().Error(err)
		s.Require().Equal(dErrors.CodeValidation, dErrors.CodeOf(err))
	})

	s.Run("unusual address formats warn but do not fail", func() {
		wallets := WalletAddresses{Bitcoin: "zzz", Ethereum: "0xshort", Solana: "tiny"}
		result, err := s.builder.Build(context.Background(), "inv-1", wallets, testKeys())
		s.Require().NoError(err)
		s.Require().Equal("zzz", result.Document.Services[0].Endpoint.Bitcoin)
	})
}

func TestDeriveShortForm(t *testing.T) {
	tests := []struct {
		name     string
		longForm string
		want     string
	}{
		{
			name:     "splits at first question mark",
			longForm: "did:ion:EiAbc?-ion-initial-state=x.y",
			want:     "did:ion:EiAbc",
		},
		{
			name:     "no query returns input unchanged",
			longForm: "did:ion:EiAbc",
			want:     "did:ion:EiAbc",
		},
		{
			name:     "only the first separator splits",
			longForm: "did:ion:EiAbc?state=x?extra=y",
			want:     "did:ion:EiAbc",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := DeriveShortForm(tt.longForm); got != tt.want {
				t.Fatalf("DeriveShortForm(%q) = %q, want %q", tt.longForm, got, tt.want)
			}
		})
	}
}
