// Package aigateway talks to an OpenAI-compatible chat-completions endpoint
// to judge card ownership claims.
package aigateway

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"log"
	"math"
	"net/http"
	"regexp"
	"strings"
	"time"
	"unicode/utf8"

	"cardmint/internal/models"
	"cardmint/internal/workflow"
)

const (
	DefaultURL   = "https://ai.gateway.lovable.dev/v1/chat/completions"
	DefaultModel = "google/gemini-2.5-flash"

	maxTokens   = 1000
	temperature = 0.1

	fallbackPositive = 70
	fallbackNegative = 30
	maxReasonRunes   = 200

	reasonApproved = "Card approved without a stated reason"
	reasonRejected = "Card rejected without a stated reason"
)

const systemPrompt = `You are a trading card authenticator. Approve cards whenever reasonably possible and only reject when there are obvious problems.

Respond with JSON only:
{
  "verified": boolean,
  "confidence": number (0-100),
  "reason": "brief explanation",
  "details": {
    "cardMatch": boolean,
    "ownershipProof": boolean,
    "authenticityScore": number (0-100)
  }
}

Approve when the card looks like a real trading card, the front and back show the same card, and the proof shows the card together with the handwritten verification code.
Reject only when the images are unrelated, the card is obviously manipulated or generated, no card is visible, or the verification code is missing from the proof.`

// VerifyRequest is the verification contract. Image fields carry data URIs
// or public URLs.
type VerifyRequest struct {
	CardFrontURL   string `json:"cardFrontUrl"`
	CardBackURL    string `json:"cardBackUrl"`
	ProofImageURL  string `json:"proofImageUrl"`
	CardName       string `json:"cardName"`
	WalletAddress  string `json:"walletAddress"`
	VerificationID string `json:"verificationId"`
}

type Config struct {
	URL     string
	APIKey  string
	Model   string
	Timeout time.Duration
}

type Client struct {
	httpClient *http.Client
	url        string
	apiKey     string
	model      string
}

func NewClient(cfg Config) *Client {
	if cfg.URL == "" {
		cfg.URL = DefaultURL
	}
	if cfg.Model == "" {
		cfg.Model = DefaultModel
	}
	if cfg.Timeout <= 0 {
		cfg.Timeout = 120 * time.Second
	}
	return &Client{
		httpClient: &http.Client{Timeout: cfg.Timeout},
		url:        cfg.URL,
		apiKey:     cfg.APIKey,
		model:      cfg.Model,
	}
}

// Endpoint returns the configured gateway URL
func (c *Client) Endpoint() string {
	return c.url
}

type chatRequest struct {
	Model       string        `json:"model"`
	Messages    []chatMessage `json:"messages"`
	MaxTokens   int           `json:"max_tokens"`
	Temperature float64       `json:"temperature"`
}

type chatMessage struct {
	Role    string      `json:"role"`
	Content interface{} `json:"content"`
}

type contentPart struct {
	Type     string    `json:"type"`
	Text     string    `json:"text,omitempty"`
	ImageURL *imageURL `json:"image_url,omitempty"`
}

type imageURL struct {
	URL string `json:"url"`
}

type chatResponse struct {
	Choices []struct {
		Message struct {
			Content string `json:"content"`
		} `json:"message"`
	} `json:"choices"`
}

func (c *Client) buildRequest(req VerifyRequest) chatRequest {
	prompt := fmt.Sprintf(`Please verify this trading card ownership claim:
Card Name: %s
Wallet Address: %s
Verification Code: %s

Image 1: Card front
Image 2: Card back
Image 3: Proof of ownership (should show the same card with the handwritten verification code)

Determine whether the card appears authentic, whether all images show the same card, and whether the proof contains the verification code.`,
		req.CardName, req.WalletAddress, req.VerificationID)

	return chatRequest{
		Model: c.model,
		Messages: []chatMessage{
			{Role: "system", Content: systemPrompt},
			{Role: "user", Content: []contentPart{
				{Type: "text", Text: prompt},
				{Type: "image_url", ImageURL: &imageURL{URL: req.CardFrontURL}},
				{Type: "image_url", ImageURL: &imageURL{URL: req.CardBackURL}},
				{Type: "image_url", ImageURL: &imageURL{URL: req.ProofImageURL}},
			}},
		},
		MaxTokens:   maxTokens,
		Temperature: temperature,
	}
}

// Verify asks the model for a verdict. Transport and HTTP failures return an
// error wrapping workflow.ErrUpstreamUnavailable; unparseable model output is
// degraded through FallbackResult and never fails.
func (c *Client) Verify(ctx context.Context, req VerifyRequest) (*models.VerificationResult, error) {
	body, err := json.Marshal(c.buildRequest(req))
	if err != nil {
		return nil, fmt.Errorf("failed to encode request: %w", err)
	}

	httpReq, err := http.NewRequestWithContext(ctx, http.MethodPost, c.url, bytes.NewReader(body))
	if err != nil {
		return nil, fmt.Errorf("failed to create request: %w", err)
	}
	httpReq.Header.Set("Content-Type", "application/json")
	httpReq.Header.Set("Authorization", "Bearer "+c.apiKey)

	resp, err := c.httpClient.Do(httpReq)
	if err != nil {
		return nil, fmt.Errorf("%w: AI gateway request failed: %v", workflow.ErrUpstreamUnavailable, err)
	}
	defer resp.Body.Close()

	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		errBody, _ := io.ReadAll(io.LimitReader(resp.Body, 4096))
		log.Printf("[AIGateway] HTTP %d: %s", resp.StatusCode, strings.TrimSpace(string(errBody)))
		return nil, fmt.Errorf("%w: AI verification failed: %d", workflow.ErrUpstreamUnavailable, resp.StatusCode)
	}

	var result chatResponse
	if err := json.NewDecoder(resp.Body).Decode(&result); err != nil {
		return nil, fmt.Errorf("%w: failed to decode AI gateway response: %v", workflow.ErrUpstreamUnavailable, err)
	}
	if len(result.Choices) == 0 || strings.TrimSpace(result.Choices[0].Message.Content) == "" {
		return nil, fmt.Errorf("%w: no response from AI", workflow.ErrUpstreamUnavailable)
	}

	return Interpret(result.Choices[0].Message.Content), nil
}

// Interpret turns model text into a verdict, falling back to the keyword
// heuristic only when no boolean verified can be recovered from the text.
func Interpret(text string) *models.VerificationResult {
	verdict, err := ParseVerdict(text)
	if err == nil {
		return verdict
	}
	log.Printf("[AIGateway] Falling back to keyword scan: %v", err)
	return FallbackResult(text)
}

// verifiedField recovers the verdict from objects that do not decode
var verifiedField = regexp.MustCompile(`"verified"\s*:\s*(true|false)`)

// ParseVerdict decodes the JSON object embedded in the model output. A
// boolean verified is authoritative; confidence, reason and details are
// defaulted when missing or mistyped. Scores are clamped to 0..100.
func ParseVerdict(text string) (*models.VerificationResult, error) {
	start := strings.Index(text, "{")
	end := strings.LastIndex(text, "}")
	if start < 0 || end < start {
		return nil, fmt.Errorf("%w: no JSON object in model output", workflow.ErrMalformedUpstreamResponse)
	}
	object := text[start : end+1]

	var fields map[string]json.RawMessage
	if err := json.Unmarshal([]byte(object), &fields); err != nil {
		m := verifiedField.FindStringSubmatch(object)
		if m == nil {
			return nil, fmt.Errorf("%w: %v", workflow.ErrMalformedUpstreamResponse, err)
		}
		log.Printf("[AIGateway] Verdict object does not decode, keeping verified=%s: %v", m[1], err)
		return defaultVerdict(m[1] == "true"), nil
	}

	verified, ok := decodeBool(fields["verified"])
	if !ok {
		return nil, fmt.Errorf("%w: verified is missing or not a boolean", workflow.ErrMalformedUpstreamResponse)
	}

	result := defaultVerdict(verified)
	if v, ok := decodeNumber(fields["confidence"]); ok {
		result.Confidence = clampScore(v)
	}
	if r, ok := decodeString(fields["reason"]); ok && r != "" {
		result.Reason = r
	}

	var details map[string]json.RawMessage
	if raw, ok := fields["details"]; ok && json.Unmarshal(raw, &details) == nil && details != nil {
		result.Details = &models.VerificationDetails{
			CardMatch:         verified,
			OwnershipProof:    verified,
			AuthenticityScore: result.Confidence,
		}
		if b, ok := decodeBool(details["cardMatch"]); ok {
			result.Details.CardMatch = b
		}
		if b, ok := decodeBool(details["ownershipProof"]); ok {
			result.Details.OwnershipProof = b
		}
		if v, ok := decodeNumber(details["authenticityScore"]); ok {
			result.Details.AuthenticityScore = clampScore(v)
		}
	}
	return result, nil
}

func defaultVerdict(verified bool) *models.VerificationResult {
	result := &models.VerificationResult{
		Verified:   verified,
		Confidence: fallbackNegative,
		Reason:     reasonRejected,
	}
	if verified {
		result.Confidence = fallbackPositive
		result.Reason = reasonApproved
	}
	return result
}

func decodeBool(raw json.RawMessage) (bool, bool) {
	var b *bool
	if len(raw) == 0 || json.Unmarshal(raw, &b) != nil || b == nil {
		return false, false
	}
	return *b, true
}

func decodeNumber(raw json.RawMessage) (float64, bool) {
	var v *float64
	if len(raw) == 0 || json.Unmarshal(raw, &v) != nil || v == nil {
		return 0, false
	}
	return *v, true
}

func decodeString(raw json.RawMessage) (string, bool) {
	var s *string
	if len(raw) == 0 || json.Unmarshal(raw, &s) != nil || s == nil {
		return "", false
	}
	return *s, true
}

// FallbackResult classifies free text by positive keywords
func FallbackResult(text string) *models.VerificationResult {
	lower := strings.ToLower(text)
	positive := strings.Contains(lower, "verified") ||
		strings.Contains(lower, "authentic") ||
		strings.Contains(lower, "matches")

	score := fallbackNegative
	if positive {
		score = fallbackPositive
	}
	return &models.VerificationResult{
		Verified:   positive,
		Confidence: score,
		Reason:     truncateRunes(text, maxReasonRunes),
		Details: &models.VerificationDetails{
			CardMatch:         positive,
			OwnershipProof:    positive,
			AuthenticityScore: score,
		},
	}
}

// FailureResult is the verdict recorded when the gateway could not be asked
func FailureResult(err error) *models.VerificationResult {
	reason := "verification failed"
	if err != nil {
		reason = err.Error()
	}
	return &models.VerificationResult{Verified: false, Confidence: 0, Reason: reason}
}

// IsUpstreamFailure reports whether err came from the gateway transport
func IsUpstreamFailure(err error) bool {
	return errors.Is(err, workflow.ErrUpstreamUnavailable)
}

func clampScore(v float64) int {
	if math.IsNaN(v) {
		return 0
	}
	return int(math.Round(math.Max(0, math.Min(100, v))))
}

func truncateRunes(s string, n int) string {
	if utf8.RuneCountInString(s) <= n {
		return s
	}
	return string([]rune(s)[:n])
}
