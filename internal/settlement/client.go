// Package settlement issues the on-ledger settlement transaction through a
// custodial signing/broadcast service and tracks its lifecycle status.
package settlement

import (
	"bytes"
	"context"
	"crypto/rsa"
	"crypto/sha256"
	"encoding/hex"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"time"

	"github.com/golang-jwt/jwt/v5"
	"github.com/google/uuid"

	"anchorid/internal/platform/config"
	"anchorid/pkg/sentinel"
)

// TransferSource identifies the custodial vault account funds move from.
type TransferSource struct {
	Type string `json:"type"`
	ID   string `json:"id"`
}

// CreateTransactionRequest is the custodial API's transaction creation body.
type CreateTransactionRequest struct {
	AssetID      string         `json:"assetId"`
	Source       TransferSource `json:"source"`
	Amount       string         `json:"amount"`
	Note         string         `json:"note"`
	ExternalTxID string         `json:"externalTxId"`
}

// TransactionResponse is the custodial API's view of a transaction.
type TransactionResponse struct {
	ID     string `json:"id"`
	Status string `json:"status"`
	TxHash string `json:"txHash"`
}

// API is the custodial signing/broadcast capability.
type API interface {
	CreateTransaction(ctx context.Context, req CreateTransactionRequest) (TransactionResponse, error)
	GetTransaction(ctx context.Context, id string) (TransactionResponse, error)
}

// Client talks to the custodial service over HTTP. Every request carries a
// short-lived JWT signed with the tenant's API signing key, binding the
// request path and a body hash into the token claims.
type Client struct {
	baseURL    string
	apiKey     string
	signingKey *rsa.PrivateKey
	httpc      *http.Client
	now        func() time.Time
}

// NewClient parses the configured PEM signing key and builds the client.
func NewClient(cfg config.Custodial, httpc *http.Client) (*Client, error) {
	key, err := jwt.ParseRSAPrivateKeyFromPEM([]byte(cfg.SigningKeyPEM))
	if err != nil {
		return nil, fmt.Errorf("parse custodial signing key: %w", err)
	}
	return &Client{
		baseURL:    cfg.BaseURL,
		apiKey:     cfg.APIKey,
		signingKey: key,
		httpc:      httpc,
		now:        time.Now,
	}, nil
}

func (c *Client) CreateTransaction(ctx context.Context, req CreateTransactionRequest) (TransactionResponse, error) {
	return c.do(ctx, http.MethodPost, "/v1/transactions", req)
}

func (c *Client) GetTransaction(ctx context.Context, id string) (TransactionResponse, error) {
	return c.do(ctx, http.MethodGet, "/v1/transactions/"+id, nil)
}

func (c *Client) do(ctx context.Context, method, path string, payload any) (TransactionResponse, error) {
	var body []byte
	if payload != nil {
		var err error
		body, err = json.Marshal(payload)
		if err != nil {
			return TransactionResponse{}, fmt.Errorf("marshal request: %w", err)
		}
	}

	token, err := c.sign(path, body)
	if err != nil {
		return TransactionResponse{}, fmt.Errorf("sign request: %w", err)
	}

	req, err := http.NewRequestWithContext(ctx, method, c.baseURL+path, bytes.NewReader(body))
	if err != nil {
		return TransactionResponse{}, fmt.Errorf("build request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("X-API-Key", c.apiKey)
	req.Header.Set("Authorization", "Bearer "+token)

	resp, err := c.httpc.Do(req)
	if err != nil {
		return TransactionResponse{}, fmt.Errorf("custodial request: %w: %w", sentinel.ErrUnavailable, err)
	}
	defer resp.Body.Close()

	raw, err := io.ReadAll(io.LimitReader(resp.Body, 1<<20))
	if err != nil {
		return TransactionResponse{}, fmt.Errorf("read custodial response: %w", err)
	}
	if resp.StatusCode == http.StatusNotFound {
		return TransactionResponse{}, fmt.Errorf("transaction: %w", sentinel.ErrNotFound)
	}
	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		return TransactionResponse{}, fmt.Errorf("custodial service returned %d: %s", resp.StatusCode, raw)
	}

	var out TransactionResponse
	if err := json.Unmarshal(raw, &out); err != nil {
		return TransactionResponse{}, fmt.Errorf("decode custodial response: %w", err)
	}
	return out, nil
}

// sign issues the per-request JWT. The body hash ties the token to this
// exact payload so an intercepted token cannot authorize a different one.
func (c *Client) sign(path string, body []byte) (string, error) {
	bodyHash := sha256.Sum256(body)
	now := c.now()

	claims := jwt.MapClaims{
		"uri":      path,
		"nonce":    uuid.NewString(),
		"iat":      now.Unix(),
		"exp":      now.Add(30 * time.Second).Unix(),
		"sub":      c.apiKey,
		"bodyHash": hex.EncodeToString(bodyHash[:]),
	}
	return jwt.NewWithClaims(jwt.SigningMethodRS256, claims).SignedString(c.signingKey)
}
