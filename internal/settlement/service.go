package settlement

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"

	"github.com/google/uuid"

	"anchorid/internal/identity/models"
	dErrors "anchorid/pkg/domain-errors"
)

// DustAmount is the fixed minimal transfer value. The settlement transaction
// carries anchoring metadata, not economic value.
const DustAmount = "0.00001"

const sourceTypeVaultAccount = "VAULT_ACCOUNT"

// Digester is the digest half of the cryptographic capability. The operation
// digest goes into the transaction note for later inspection; it is not
// verified against anything.
type Digester interface {
	Digest(data []byte) string
}

// Metadata tags the settlement transaction with its anchoring context.
type Metadata struct {
	InvestorID string
	ShortForm  string
	Operation  models.CreateOperation
}

// Manager creates and tracks settlement transactions.
type Manager struct {
	api            API
	digester       Digester
	vaultAccountID string
	assetID        string
	logger         *slog.Logger
}

func NewManager(api API, digester Digester, vaultAccountID, assetID string, logger *slog.Logger) *Manager {
	return &Manager{
		api:            api,
		digester:       digester,
		vaultAccountID: vaultAccountID,
		assetID:        assetID,
		logger:         logger,
	}
}

// CreateTransaction issues the dust transfer tagged with anchoring metadata.
// Failures are fatal to the anchoring stage but not to identifier creation,
// which has already checkpointed by the time this runs.
func (m *Manager) CreateTransaction(ctx context.Context, meta Metadata) (models.SettlementTransaction, error) {
	opBytes, err := json.Marshal(meta.Operation)
	if err != nil {
		return models.SettlementTransaction{}, dErrors.Wrap(dErrors.CodeSigningService,
			"serialize operation for metadata", err)
	}

	note := fmt.Sprintf("did-anchor:%s:%s", meta.ShortForm, m.digester.Digest(opBytes))

	resp, err := m.api.CreateTransaction(ctx, CreateTransactionRequest{
		AssetID: m.assetID,
		Source:  TransferSource{Type: sourceTypeVaultAccount, ID: m.vaultAccountID},
		Amount:  DustAmount,
		Note:    note,
		// Idempotency key: a retried create after a lost response must not
		// broadcast a second transaction.
		ExternalTxID: uuid.NewString(),
	})
	if err != nil {
		return models.SettlementTransaction{}, dErrors.Wrap(dErrors.CodeSigningService,
			"custodial service rejected transaction for vault "+m.vaultAccountID, err)
	}

	tx := models.SettlementTransaction{
		ID:      resp.ID,
		Status:  statusOrSubmitted(resp.Status),
		TxHash:  resp.TxHash,
		Amount:  DustAmount,
		AssetID: m.assetID,
		Note:    note,
	}
	m.logger.InfoContext(ctx, "settlement transaction created",
		"transaction_id", tx.ID,
		"status", tx.Status,
		"investor_id", meta.InvestorID,
	)
	return tx, nil
}

// GetStatus retrieves the transaction's current lifecycle status.
func (m *Manager) GetStatus(ctx context.Context, transactionID string) (models.SettlementTransaction, error) {
	resp, err := m.api.GetTransaction(ctx, transactionID)
	if err != nil {
		return models.SettlementTransaction{}, fmt.Errorf("get transaction %s: %w", transactionID, err)
	}
	return models.SettlementTransaction{
		ID:     resp.ID,
		Status: models.TxStatus(resp.Status),
		TxHash: resp.TxHash,
	}, nil
}

func statusOrSubmitted(status string) models.TxStatus {
	if status == "" {
		return models.TxStatusSubmitted
	}
	return models.TxStatus(status)
}
