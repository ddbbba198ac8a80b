package models

import (
	"encoding/json"
	"testing"

	"github.com/stretchr/testify/require"
)

func TestKeyPairRedacted(t *testing.T) {
	pair := KeyPair{
		Role:    KeyRoleAuthentication,
		Public:  json.RawMessage(`{"kty":"EC"}`),
		Private: json.RawMessage(`{"kty":"EC","d":"secret"}`),
	}

	redacted := pair.Redacted()
	require.Equal(t, pair.Role, redacted.Role)
	require.Equal(t, pair.Public, redacted.Public)
	require.Nil(t, redacted.Private)

	// Redacted copies never serialize a privateJwk member.
	raw, err := json.Marshal(redacted)
	require.NoError(t, err)
	require.NotContains(t, string(raw), "privateJwk")
}

func TestCreateOperationValid(t *testing.T) {
	tests := []struct {
		name string
		op   CreateOperation
		want bool
	}{
		{
			name: "complete operation",
			op: CreateOperation{
				Type:       "create",
				SuffixData: json.RawMessage(`{"deltaHash":"h"}`),
				Delta:      json.RawMessage(`{"patches":[]}`),
			},
			want: true,
		},
		{
			name: "missing suffix data",
			op:   CreateOperation{Type: "create", Delta: json.RawMessage(`{}`)},
		},
		{
			name: "null delta",
			op: CreateOperation{
				Type:       "create",
				SuffixData: json.RawMessage(`{}`),
				Delta:      json.RawMessage(`null`),
			},
		},
		{
			name: "empty operation",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			require.Equal(t, tt.want, tt.op.Valid())
		})
	}
}

func TestDIDIdentitySuffix(t *testing.T) {
	identity := DIDIdentity{ShortForm: "did:ion:EiAbc123"}
	require.Equal(t, "EiAbc123", identity.Suffix())

	require.Equal(t, "no-colons", DIDIdentity{ShortForm: "no-colons"}.Suffix())
}

func TestTxStatusTerminal(t *testing.T) {
	require.True(t, TxStatusCompleted.Terminal())
	require.True(t, TxStatusFailed.Terminal())
	require.True(t, TxStatusRejected.Terminal())
	require.False(t, TxStatusSubmitted.Terminal())
	require.False(t, TxStatusPending.Terminal())
}

func TestSettlementTransactionMerge(t *testing.T) {
	t.Run("status update applies", func(t *testing.T) {
		tx := SettlementTransaction{ID: "tx-1", Status: TxStatusSubmitted}
		merged := tx.Merge(SettlementTransaction{Status: TxStatusPending})
		require.Equal(t, TxStatusPending, merged.Status)
		require.Equal(t, "tx-1", merged.ID)
	})

	t.Run("observed hash survives an empty update", func(t *testing.T) {
		tx := SettlementTransaction{ID: "tx-1", Status: TxStatusPending, TxHash: "0xabc"}
		merged := tx.Merge(SettlementTransaction{Status: TxStatusCompleted})
		require.Equal(t, "0xabc", merged.TxHash)
		require.Equal(t, TxStatusCompleted, merged.Status)
	})

	t.Run("fresh hash is recorded", func(t *testing.T) {
		tx := SettlementTransaction{ID: "tx-1", Status: TxStatusPending}
		merged := tx.Merge(SettlementTransaction{TxHash: "0xdef"})
		require.Equal(t, "0xdef", merged.TxHash)
	})
}
