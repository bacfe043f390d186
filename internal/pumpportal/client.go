// Package pumpportal requests unsigned token-creation transactions from the
// PumpPortal trade-local API.
package pumpportal

import (
	"bytes"
	"context"
	"encoding/base64"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"strings"
	"time"

	"cardmint/internal/workflow"

	"github.com/shopspring/decimal"
)

const (
	DefaultURL = "https://pumpportal.fun/api/trade-local"

	DefaultSlippage    = 10
	DefaultPriorityFee = 0.0005
	DefaultPool        = "pump"

	maxResponseSize = 1 << 20
)

// ErrNoTransaction is the message used when a 2xx reply carries no transaction
const ErrNoTransaction = "No transaction returned from PumpPortal"

// TokenMetadata is published with the new token
type TokenMetadata struct {
	Name   string `json:"name"`
	Symbol string `json:"symbol"`
	URI    string `json:"uri"`
}

// CreateRequest is the trade-local body for action "create"
type CreateRequest struct {
	PublicKey        string        `json:"publicKey"`
	Action           string        `json:"action"`
	TokenMetadata    TokenMetadata `json:"tokenMetadata"`
	Mint             string        `json:"mint"`
	DenominatedInSol string        `json:"denominatedInSol"`
	Amount           float64       `json:"amount"`
	Slippage         int           `json:"slippage"`
	PriorityFee      float64       `json:"priorityFee"`
	Pool             string        `json:"pool"`
}

// NewCreateRequest fills the fixed trading parameters
func NewCreateRequest(owner, mint string, meta TokenMetadata, devBuy decimal.Decimal) CreateRequest {
	return CreateRequest{
		PublicKey:        owner,
		Action:           "create",
		TokenMetadata:    meta,
		Mint:             mint,
		DenominatedInSol: "true",
		Amount:           devBuy.InexactFloat64(),
		Slippage:         DefaultSlippage,
		PriorityFee:      DefaultPriorityFee,
		Pool:             DefaultPool,
	}
}

// APIError is a failed trade-local call. Message is what the user sees.
type APIError struct {
	StatusCode int
	Message    string
	cause      error
}

func (e *APIError) Error() string {
	return e.Message
}

func (e *APIError) Unwrap() error {
	return e.cause
}

type createResponse struct {
	Transaction *string `json:"transaction"`
	Error       string  `json:"error"`
}

type Client struct {
	httpClient *http.Client
	url        string
}

func NewClient(url string, timeout time.Duration) *Client {
	if url == "" {
		url = DefaultURL
	}
	if timeout <= 0 {
		timeout = 30 * time.Second
	}
	return &Client{
		httpClient: &http.Client{Timeout: timeout},
		url:        url,
	}
}

func (c *Client) Endpoint() string {
	return c.url
}

// CreateTransaction returns the serialized unsigned transaction. The API may
// answer with JSON {"transaction": base64} or with the raw bytes.
func (c *Client) CreateTransaction(ctx context.Context, req CreateRequest) ([]byte, error) {
	body, err := json.Marshal(req)
	if err != nil {
		return nil, fmt.Errorf("failed to encode request: %w", err)
	}

	httpReq, err := http.NewRequestWithContext(ctx, http.MethodPost, c.url, bytes.NewReader(body))
	if err != nil {
		return nil, fmt.Errorf("failed to create request: %w", err)
	}
	httpReq.Header.Set("Content-Type", "application/json")

	resp, err := c.httpClient.Do(httpReq)
	if err != nil {
		return nil, &APIError{
			Message: fmt.Sprintf("PumpPortal request failed: %v", err),
			cause:   workflow.ErrUpstreamUnavailable,
		}
	}
	defer resp.Body.Close()

	data, err := io.ReadAll(io.LimitReader(resp.Body, maxResponseSize))
	if err != nil {
		return nil, &APIError{
			StatusCode: resp.StatusCode,
			Message:    fmt.Sprintf("failed to read PumpPortal response: %v", err),
			cause:      workflow.ErrUpstreamUnavailable,
		}
	}

	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		var parsed createResponse
		_ = json.Unmarshal(data, &parsed)
		msg := parsed.Error
		if msg == "" {
			msg = fmt.Sprintf("HTTP %d: %s", resp.StatusCode, http.StatusText(resp.StatusCode))
		}
		return nil, &APIError{StatusCode: resp.StatusCode, Message: msg, cause: workflow.ErrUpstreamUnavailable}
	}

	return decodeTransaction(resp.StatusCode, resp.Header.Get("Content-Type"), data)
}

func decodeTransaction(status int, contentType string, data []byte) ([]byte, error) {
	trimmed := bytes.TrimSpace(data)
	isJSON := strings.Contains(contentType, "json") || (len(trimmed) > 0 && trimmed[0] == '{')

	if !isJSON {
		if len(data) == 0 {
			return nil, &APIError{StatusCode: status, Message: ErrNoTransaction, cause: workflow.ErrMalformedUpstreamResponse}
		}
		return data, nil
	}

	var parsed createResponse
	if err := json.Unmarshal(trimmed, &parsed); err != nil {
		return nil, &APIError{
			StatusCode: status,
			Message:    fmt.Sprintf("invalid PumpPortal response: %v", err),
			cause:      workflow.ErrMalformedUpstreamResponse,
		}
	}
	if parsed.Transaction == nil || *parsed.Transaction == "" {
		msg := parsed.Error
		if msg == "" {
			msg = ErrNoTransaction
		}
		return nil, &APIError{StatusCode: status, Message: msg, cause: workflow.ErrMalformedUpstreamResponse}
	}

	tx, err := base64.StdEncoding.DecodeString(*parsed.Transaction)
	if err != nil {
		return nil, &APIError{
			StatusCode: status,
			Message:    fmt.Sprintf("invalid transaction encoding: %v", err),
			cause:      workflow.ErrMalformedUpstreamResponse,
		}
	}
	return tx, nil
}
