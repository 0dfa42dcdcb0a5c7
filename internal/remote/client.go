// Package remote is the HTTP boundary to the negotiation service. It keeps no
// state between calls and never retries; failures are returned to the caller
// as *CallError values wrapping one of the Err* kinds.
package remote

import (
	"bytes"
	"context"
	"encoding/json"
	"io"
	"net/http"
	"strconv"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/pkg/errors"
	"github.com/rs/zerolog/log"
)

const (
	DefaultBaseURL = "https://negotiation-bot-pgn2.onrender.com"

	opStart    = "start_negotiation"
	opOffer    = "negotiate"
	opDecision = "decide"

	decisionPlaceholder = "final decision"
	maxDetailChars      = 240
)

type Status string

const (
	StatusOngoing          Status = "ongoing"
	StatusDealClosed       Status = "dealClosed"
	StatusNoDeal           Status = "noDeal"
	StatusDecisionRequired Status = "decisionRequired"
)

// MapStatus translates the service's status string. Unknown values mean the
// negotiation simply continues.
func MapStatus(raw string) Status {
	switch strings.ToLower(strings.TrimSpace(raw)) {
	case "success":
		return StatusDealClosed
	case "failed":
		return StatusNoDeal
	case "final_decision":
		return StatusDecisionRequired
	default:
		return StatusOngoing
	}
}

type Decision string

const (
	DecisionDeal   Decision = "deal"
	DecisionNoDeal Decision = "no_deal"
)

func (d Decision) Valid() bool {
	return d == DecisionDeal || d == DecisionNoDeal
}

// TurnResult is the interpreted reply to one offer.
type TurnResult struct {
	Narrative     string
	CounterOffer  *float64
	Status        Status
	RawStatus     string
	DetailMessage string
}

type Client struct {
	baseURL string
	http    *http.Client
	timeout time.Duration
}

type Option func(*Client)

// WithHTTPClient swaps the transport, e.g. for tests.
func WithHTTPClient(hc *http.Client) Option {
	return func(c *Client) {
		if hc != nil {
			c.http = hc
		}
	}
}

// WithTimeout bounds every call. Zero disables the client-side deadline.
func WithTimeout(timeout time.Duration) Option {
	return func(c *Client) {
		if timeout >= 0 {
			c.timeout = timeout
		}
	}
}

func New(baseURL string, opts ...Option) *Client {
	base := strings.TrimRight(strings.TrimSpace(baseURL), "/")
	if base == "" {
		base = DefaultBaseURL
	}
	c := &Client{
		baseURL: base,
		http:    &http.Client{},
		timeout: 60 * time.Second,
	}
	for _, opt := range opts {
		opt(c)
	}
	return c
}

func (c *Client) BaseURL() string {
	return c.baseURL
}

type startRequest struct {
	UserID    string `json:"user_id"`
	ProductID any    `json:"product_id"`
}

type startResponse struct {
	SessionID string `json:"session_id"`
}

type offerRequest struct {
	SessionID       string   `json:"session_id"`
	CustomerMessage string   `json:"customer_message"`
	Decision        Decision `json:"decision,omitempty"`
}

type offerResponse struct {
	HumanResponse string          `json:"human_response"`
	CounterOffer  json.RawMessage `json:"counter_offer"`
	Status        string          `json:"status"`
	Message       string          `json:"message"`
}

// StartSession opens a negotiation for userID on productID.
func (c *Client) StartSession(ctx context.Context, userID, productID string) (string, error) {
	userID = strings.TrimSpace(userID)
	productID = strings.TrimSpace(productID)
	if userID == "" || productID == "" {
		return "", &CallError{Op: opStart, Kind: ErrInvalidRequest, Detail: "user_id and product_id are required"}
	}
	var resp startResponse
	reqID, err := c.post(ctx, opStart, "/start_negotiation", startRequest{
		UserID:    userID,
		ProductID: productIDValue(productID),
	}, &resp)
	if err != nil {
		return "", err
	}
	sessionID := strings.TrimSpace(resp.SessionID)
	if sessionID == "" {
		return "", &CallError{Op: opStart, Kind: ErrServiceUnavailable, RequestID: reqID, Detail: "response carried no session_id"}
	}
	return sessionID, nil
}

// SubmitOffer sends one customer message and interprets the reply.
func (c *Client) SubmitOffer(ctx context.Context, sessionID, offer string) (TurnResult, error) {
	if strings.TrimSpace(sessionID) == "" {
		return TurnResult{}, &CallError{Op: opOffer, Kind: ErrSessionNotFound, Detail: "empty session id"}
	}
	var resp offerResponse
	reqID, err := c.post(ctx, opOffer, "/negotiate", offerRequest{
		SessionID:       sessionID,
		CustomerMessage: offer,
	}, &resp)
	if err != nil {
		return TurnResult{}, err
	}
	amount, err := parseAmount(resp.CounterOffer)
	if err != nil {
		return TurnResult{}, &CallError{Op: opOffer, Kind: ErrServiceUnavailable, RequestID: reqID, Detail: "malformed counter_offer", Err: err}
	}
	return TurnResult{
		Narrative:     strings.TrimSpace(resp.HumanResponse),
		CounterOffer:  amount,
		Status:        MapStatus(resp.Status),
		RawStatus:     resp.Status,
		DetailMessage: strings.TrimSpace(resp.Message),
	}, nil
}

// SubmitDecision answers a final-decision prompt. The service reads the
// decision field; customer_message only carries a placeholder.
func (c *Client) SubmitDecision(ctx context.Context, sessionID string, decision Decision) (string, error) {
	if !decision.Valid() {
		return "", &CallError{Op: opDecision, Kind: ErrInvalidRequest, Detail: "unknown decision " + strconv.Quote(string(decision))}
	}
	if strings.TrimSpace(sessionID) == "" {
		return "", &CallError{Op: opDecision, Kind: ErrSessionNotFound, Detail: "empty session id"}
	}
	var resp offerResponse
	if _, err := c.post(ctx, opDecision, "/negotiate", offerRequest{
		SessionID:       sessionID,
		CustomerMessage: decisionPlaceholder,
		Decision:        decision,
	}, &resp); err != nil {
		return "", err
	}
	return strings.TrimSpace(resp.HumanResponse), nil
}

func (c *Client) post(ctx context.Context, op, path string, body any, out any) (string, error) {
	requestID := op + "-" + uuid.NewString()
	if ctx == nil {
		ctx = context.Background()
	}
	if c.timeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, c.timeout)
		defer cancel()
	}
	buf, err := json.Marshal(body)
	if err != nil {
		return requestID, &CallError{Op: op, Kind: ErrInvalidRequest, RequestID: requestID, Err: err}
	}
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.baseURL+path, bytes.NewReader(buf))
	if err != nil {
		return requestID, &CallError{Op: op, Kind: ErrInvalidRequest, RequestID: requestID, Err: err}
	}
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("Accept", "application/json")
	req.Header.Set("X-Request-ID", requestID)

	started := time.Now()
	log.Debug().Str("op", op).Str("request_id", requestID).Str("url", req.URL.String()).Msg("negotiation call started")
	resp, err := c.http.Do(req)
	if err != nil {
		log.Warn().Err(err).Str("op", op).Str("request_id", requestID).Dur("elapsed", time.Since(started)).Msg("negotiation call failed")
		return requestID, &CallError{Op: op, Kind: ErrServiceUnavailable, RequestID: requestID, Err: errors.Wrap(err, "transport")}
	}
	defer resp.Body.Close()
	payload, err := io.ReadAll(resp.Body)
	if err != nil {
		return requestID, &CallError{Op: op, Kind: ErrServiceUnavailable, Status: resp.StatusCode, RequestID: requestID, Err: errors.Wrap(err, "read body")}
	}
	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		detail := responseDetail(payload)
		kind := classifyStatus(op, resp.StatusCode, detail)
		log.Warn().Str("op", op).Str("request_id", requestID).Int("status", resp.StatusCode).Str("detail", detail).Msg("negotiation call rejected")
		return requestID, &CallError{Op: op, Kind: kind, Status: resp.StatusCode, Detail: detail, RequestID: requestID}
	}
	if err := json.Unmarshal(payload, out); err != nil {
		return requestID, &CallError{
			Op:        op,
			Kind:      ErrServiceUnavailable,
			Status:    resp.StatusCode,
			RequestID: requestID,
			Detail:    "non-json payload: " + compactSingleLine(string(payload), 80),
		}
	}
	log.Info().Str("op", op).Str("request_id", requestID).Int("status", resp.StatusCode).Dur("elapsed", time.Since(started)).Msg("negotiation call completed")
	return requestID, nil
}

// productIDValue sends integer ids as JSON numbers; the service validates
// product_id as an integer where it can.
func productIDValue(productID string) any {
	if n, err := strconv.ParseInt(productID, 10, 64); err == nil {
		return n
	}
	return productID
}

// parseAmount accepts a number, a numeric string or null/absent.
func parseAmount(raw json.RawMessage) (*float64, error) {
	trimmed := strings.TrimSpace(string(raw))
	if trimmed == "" || trimmed == "null" {
		return nil, nil
	}
	var n float64
	if err := json.Unmarshal(raw, &n); err == nil {
		return &n, nil
	}
	var s string
	if err := json.Unmarshal(raw, &s); err != nil {
		return nil, errors.Errorf("unsupported counter_offer %s", compactSingleLine(trimmed, 40))
	}
	s = strings.TrimSpace(s)
	if s == "" {
		return nil, nil
	}
	n, err := strconv.ParseFloat(s, 64)
	if err != nil {
		return nil, errors.Wrapf(err, "counter_offer %q", s)
	}
	return &n, nil
}

// responseDetail pulls a human readable reason out of an error body.
func responseDetail(payload []byte) string {
	var parsed map[string]any
	if err := json.Unmarshal(payload, &parsed); err == nil {
		for _, key := range []string{"detail", "error", "message"} {
			switch v := parsed[key].(type) {
			case string:
				if strings.TrimSpace(v) != "" {
					return compactSingleLine(v, maxDetailChars)
				}
			case nil:
			default:
				if buf, err := json.Marshal(v); err == nil {
					return compactSingleLine(string(buf), maxDetailChars)
				}
			}
		}
	}
	return compactSingleLine(string(payload), maxDetailChars)
}

func compactSingleLine(text string, limit int) string {
	compact := strings.Join(strings.Fields(text), " ")
	if limit <= 0 || len(compact) <= limit {
		return compact
	}
	if limit <= 3 {
		return compact[:limit]
	}
	return compact[:limit-3] + "..."
}
