// Package anchor submits create operations to the anchoring network with an
// ordered fallback chain: SDK-style client, raw protocol request, degraded
// local acknowledgment.
package anchor

import (
	"bytes"
	"context"
	"crypto/rand"
	"crypto/sha256"
	"encoding/hex"
	"encoding/json"
	"fmt"
	"io"
	"net/http"

	"anchorid/internal/identity/models"
	"anchorid/pkg/sentinel"
)

// Client is the anchoring network capability: submit one operation, get the
// network's acknowledgment back.
type Client interface {
	Submit(ctx context.Context, op models.CreateOperation) (json.RawMessage, error)
}

// IONClient is the high-level network client. Submission is gated by a
// proof-of-work challenge: fetch a challenge nonce, search for an answer
// nonce under the allowed hash bound, then post the operation with both
// nonces attached.
type IONClient struct {
	httpc             *http.Client
	challengeEndpoint string
	solutionEndpoint  string
	maxIterations     int
}

type challenge struct {
	ChallengeNonce     string `json:"challengeNonce"`
	LargestAllowedHash string `json:"largestAllowedHash"`
}

// NewIONClient builds the client over the configured endpoint pair.
func NewIONClient(httpc *http.Client, challengeEndpoint, solutionEndpoint string) *IONClient {
	return &IONClient{
		httpc:             httpc,
		challengeEndpoint: challengeEndpoint,
		solutionEndpoint:  solutionEndpoint,
		maxIterations:     1 << 18,
	}
}

func (c *IONClient) Submit(ctx context.Context, op models.CreateOperation) (json.RawMessage, error) {
	if c.challengeEndpoint == "" {
		return nil, fmt.Errorf("challenge endpoint not configured: %w", sentinel.ErrUnavailable)
	}

	body, err := json.Marshal(op)
	if err != nil {
		return nil, fmt.Errorf("marshal operation: %w", err)
	}

	ch, err := c.fetchChallenge(ctx)
	if err != nil {
		return nil, err
	}

	answerNonce, err := c.solve(ctx, ch, body)
	if err != nil {
		return nil, err
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.solutionEndpoint, bytes.NewReader(body))
	if err != nil {
		return nil, fmt.Errorf("build solution request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("Challenge-Nonce", ch.ChallengeNonce)
	req.Header.Set("Answer-Nonce", answerNonce)

	resp, err := c.httpc.Do(req)
	if err != nil {
		return nil, fmt.Errorf("post solution: %w", err)
	}
	defer resp.Body.Close()

	ack, err := io.ReadAll(io.LimitReader(resp.Body, 1<<20))
	if err != nil {
		return nil, fmt.Errorf("read acknowledgment: %w", err)
	}
	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		return nil, fmt.Errorf("solution endpoint returned %d: %w", resp.StatusCode, sentinel.ErrUnavailable)
	}
	return ack, nil
}

func (c *IONClient) fetchChallenge(ctx context.Context) (challenge, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, c.challengeEndpoint, nil)
	if err != nil {
		return challenge{}, fmt.Errorf("build challenge request: %w", err)
	}

	resp, err := c.httpc.Do(req)
	if err != nil {
		return challenge{}, fmt.Errorf("fetch challenge: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return challenge{}, fmt.Errorf("challenge endpoint returned %d: %w", resp.StatusCode, sentinel.ErrUnavailable)
	}

	var ch challenge
	if err := json.NewDecoder(resp.Body).Decode(&ch); err != nil {
		return challenge{}, fmt.Errorf("decode challenge: %w", err)
	}
	if ch.ChallengeNonce == "" {
		return challenge{}, fmt.Errorf("challenge missing nonce")
	}
	return ch, nil
}

// solve searches for an answer nonce whose combined hash falls under the
// allowed bound. The search is bounded so an unreasonable challenge degrades
// to the next tier instead of spinning forever.
func (c *IONClient) solve(ctx context.Context, ch challenge, body []byte) (string, error) {
	bound := ch.LargestAllowedHash
	nonce := make([]byte, 32)

	for i := 0; i < c.maxIterations; i++ {
		if err := ctx.Err(); err != nil {
			return "", err
		}
		if _, err := rand.Read(nonce); err != nil {
			return "", fmt.Errorf("generate answer nonce: %w", err)
		}
		answer := hex.EncodeToString(nonce)

		sum := sha256.Sum256([]byte(ch.ChallengeNonce + answer + string(body)))
		if bound == "" || hex.EncodeToString(sum[:]) <= bound {
			return answer, nil
		}
	}
	return "", fmt.Errorf("proof-of-work search exhausted after %d iterations", c.maxIterations)
}
