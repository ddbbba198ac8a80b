// Package builder assembles the identifier: DID document, create operation,
// and the long/short form identifier strings.
package builder

import (
	"context"
	"log/slog"
	"sort"
	"strings"

	"anchorid/internal/identity/models"
	"anchorid/internal/identity/sidetree"
	dErrors "anchorid/pkg/domain-errors"
)

// WalletAddresses carries the three chain-bound addresses the service
// endpoint embeds. The builder consumes validated address strings; it does
// not derive or extract them.
type WalletAddresses struct {
	Bitcoin  string
	Ethereum string
	Solana   string
}

// Result bundles everything the builder produces for one identifier.
type Result struct {
	Document  models.IdentifierDocument
	Identity  models.DIDIdentity
	Operation models.CreateOperation
}

// Builder assembles identifier documents and derives identities.
type Builder struct {
	logger *slog.Logger
}

func New(logger *slog.Logger) *Builder {
	return &Builder{logger: logger}
}

// Build validates inputs, assembles the DID document with exactly one
// authentication key and the wallet service endpoint, and derives the create
// operation plus the long- and short-form identifiers.
func (b *Builder) Build(ctx context.Context, investorID string, wallets WalletAddresses, keys map[models.KeyRole]models.KeyPair) (Result, error) {
	if err := validateWallets(wallets); err != nil {
		return Result{}, err
	}
	b.warnOnFormat(ctx, wallets)

	auth, ok := keys[models.KeyRoleAuthentication]
	if !ok {
		return Result{}, dErrors.New(dErrors.CodeValidation, "authentication key pair is required")
	}
	update, ok := keys[models.KeyRoleUpdate]
	if !ok {
		return Result{}, dErrors.New(dErrors.CodeValidation, "update key pair is required")
	}
	recovery, ok := keys[models.KeyRoleRecovery]
	if !ok {
		return Result{}, dErrors.New(dErrors.CodeValidation, "recovery key pair is required")
	}

	document := models.IdentifierDocument{
		PublicKeys: []models.PublicKeyEntry{
			{
				ID:        "auth-key",
				Type:      "JsonWebKey2020",
				PublicKey: auth.Public,
				Purposes:  []string{"authentication"},
			},
		},
		Services: []models.ServiceEntry{
			{
				ID:   "investor-wallets",
				Type: "InvestorWallets",
				Endpoint: models.WalletEndpoint{
					InvestorID: investorID,
					Bitcoin:    wallets.Bitcoin,
					Ethereum:   wallets.Ethereum,
					Solana:     wallets.Solana,
				},
			},
		},
	}

	capability, err := sidetree.NewDocument(document, update.Public, recovery.Public)
	if err != nil {
		return Result{}, dErrors.Wrap(dErrors.CodeMalformedOperation, "assemble sidetree document", err)
	}

	operation, err := capability.GenerateOperation(0)
	if err != nil {
		return Result{}, dErrors.Wrap(dErrors.CodeMalformedOperation, "generate create operation", err)
	}
	if !operation.Valid() {
		return Result{}, dErrors.New(dErrors.CodeMalformedOperation,
			"create operation is missing suffixData or delta")
	}

	longForm, err := capability.URI()
	if err != nil {
		return Result{}, dErrors.Wrap(dErrors.CodeMalformedOperation, "derive identifier URI", err)
	}

	identity := models.DIDIdentity{
		LongForm:  longForm,
		ShortForm: DeriveShortForm(longForm),
	}
	if identity.ShortForm == "" || !strings.HasPrefix(identity.LongForm, identity.ShortForm) {
		return Result{}, dErrors.New(dErrors.CodeMalformedOperation,
			"derived identifier violates long/short form invariant")
	}

	b.logger.InfoContext(ctx, "identifier assembled",
		"investor_id", investorID,
		"short_form", identity.ShortForm,
	)
	return Result{Document: document, Identity: identity, Operation: operation}, nil
}

// DeriveShortForm is the pure derivation of the short form: the prefix of
// the long form up to, not including, its first '?'. Downstream lookups key
// off the short form's trailing path segment, so this split must be exact.
func DeriveShortForm(longForm string) string {
	if idx := strings.Index(longForm, "?"); idx >= 0 {
		return longForm[:idx]
	}
	return longForm
}

// validateWallets requires all three addresses and names every missing
// network, not just the first.
func validateWallets(wallets WalletAddresses) error {
	missing := make([]string, 0, 3)
	if strings.TrimSpace(wallets.Bitcoin) == "" {
		missing = append(missing, "bitcoin")
	}
	if strings.TrimSpace(wallets.Ethereum) == "" {
		missing = append(missing, "ethereum")
	}
	if strings.TrimSpace(wallets.Solana) == "" {
		missing = append(missing, "solana")
	}
	if len(missing) > 0 {
		sort.Strings(missing)
		return dErrors.Newf(dErrors.CodeValidation,
			"missing wallet address for network(s): %s", strings.Join(missing, ", "))
	}
	return nil
}

// warnOnFormat flags addresses with unexpected shapes. Format mismatches are
// warnings only; the endpoint embeds the strings verbatim either way.
func (b *Builder) warnOnFormat(ctx context.Context, wallets WalletAddresses) {
	if !strings.HasPrefix(wallets.Bitcoin, "1") &&
		!strings.HasPrefix(wallets.Bitcoin, "3") &&
		!strings.HasPrefix(wallets.Bitcoin, "bc1") {
		b.logger.WarnContext(ctx, "bitcoin address has unexpected prefix", "address", wallets.Bitcoin)
	}
	if !strings.HasPrefix(wallets.Ethereum, "0x") || len(wallets.Ethereum) != 42 {
		b.logger.WarnContext(ctx, "ethereum address has unexpected shape", "address", wallets.Ethereum)
	}
	if l := len(wallets.Solana); l < 32 || l > 44 {
		b.logger.WarnContext(ctx, "solana address has unexpected length", "address", wallets.Solana)
	}
}
