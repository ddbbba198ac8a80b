package models

// TxStatus is the custodial service's view of a settlement transaction.
type TxStatus string

const (
	TxStatusSubmitted TxStatus = "SUBMITTED"
	TxStatusPending   TxStatus = "PENDING"
	TxStatusCompleted TxStatus = "COMPLETED"
	TxStatusFailed    TxStatus = "FAILED"
	TxStatusRejected  TxStatus = "REJECTED"
)

// Terminal reports whether the status is a lifecycle end state.
func (s TxStatus) Terminal() bool {
	switch s {
	case TxStatusCompleted, TxStatusFailed, TxStatusRejected:
		return true
	}
	return false
}

// SettlementTransaction is a minimal on-chain transaction carrying anchoring
// metadata, not economic value. TxHash may arrive after creation; once set it
// never changes for the same transaction id.
type SettlementTransaction struct {
	ID      string   `json:"id"`
	Status  TxStatus `json:"status"`
	TxHash  string   `json:"txHash,omitempty"`
	Amount  string   `json:"amount"`
	AssetID string   `json:"assetId"`
	Note    string   `json:"note,omitempty"`
}

// Merge folds a fresh status read into the tracked record. A previously
// observed non-empty hash is never overwritten by an empty one.
func (t SettlementTransaction) Merge(update SettlementTransaction) SettlementTransaction {
	merged := t
	if update.Status != "" {
		merged.Status = update.Status
	}
	if update.TxHash != "" {
		merged.TxHash = update.TxHash
	}
	if update.Amount != "" {
		merged.Amount = update.Amount
	}
	if update.AssetID != "" {
		merged.AssetID = update.AssetID
	}
	return merged
}
