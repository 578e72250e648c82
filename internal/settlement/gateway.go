// Package settlement implements the signed callback protocol against the
// external wallet platform: debit on bet, credit on win, compensating
// rollback, balance query. Every payload carries a caller-generated request
// id so the platform can discard duplicate deliveries of a retried call; the
// transport is never assumed to be exactly-once.
package settlement

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"time"

	"github.com/shopspring/decimal"

	"race-provider/internal/logger"
	"race-provider/internal/session"
)

var (
	// ErrRejected is an explicit decline from the platform (e.g. insufficient
	// funds). Never retried.
	ErrRejected = errors.New("settlement rejected")
	// ErrUnavailable marks transient failure after all retry attempts are spent.
	ErrUnavailable = errors.New("settlement platform unavailable")
)

// Response is the platform's reply. Status "OK" means accepted; anything
// else is a rejection with Message as the reason.
type Response struct {
	Status        string          `json:"status"`
	TransactionID string          `json:"transactionId,omitempty"`
	NewBalance    decimal.Decimal `json:"newBalance,omitempty"`
	Balance       decimal.Decimal `json:"balance,omitempty"`
	Message       string          `json:"message,omitempty"`
}

const statusOK = "OK"

// Gateway signs and delivers settlement callbacks with bounded timeout and
// retry-on-transient-failure semantics.
type Gateway struct {
	client *http.Client
	secret string
	policy RetryPolicy
	log    *logger.Logger
	now    func() time.Time
}

// NewGateway creates a gateway. The timeout bounds each individual attempt
// so a slow platform cannot stall the round loop.
func NewGateway(secret string, timeout time.Duration, policy RetryPolicy, log *logger.Logger) *Gateway {
	if policy.MaxAttempts < 1 {
		policy.MaxAttempts = 1
	}
	return &Gateway{
		client: &http.Client{Timeout: timeout},
		secret: secret,
		policy: policy,
		log:    log,
		now:    time.Now,
	}
}

type betPayload struct {
	RequestID string          `json:"requestId"`
	RoundID   string          `json:"roundId"`
	PlayerID  string          `json:"playerId"`
	SessionID string          `json:"sessionId"`
	Amount    decimal.Decimal `json:"amount"`
	Currency  string          `json:"currency"`
	Selection int             `json:"selection"`
	Timestamp int64           `json:"timestamp"`
}

type winPayload struct {
	RequestID        string          `json:"requestId"`
	RoundID          string          `json:"roundId"`
	PlayerID         string          `json:"playerId"`
	SessionID        string          `json:"sessionId"`
	BetAmount        decimal.Decimal `json:"betAmount"`
	Multiplier       decimal.Decimal `json:"multiplier"`
	WinAmount        decimal.Decimal `json:"winAmount"`
	Currency         string          `json:"currency"`
	BetTransactionID string          `json:"betTransactionId"`
	Timestamp        int64           `json:"timestamp"`
}

type rollbackPayload struct {
	RequestID             string          `json:"requestId"`
	RoundID               string          `json:"roundId"`
	PlayerID              string          `json:"playerId"`
	SessionID             string          `json:"sessionId"`
	Amount                decimal.Decimal `json:"amount"`
	Currency              string          `json:"currency"`
	OriginalTransactionID string          `json:"originalTransactionId"`
	Reason                string          `json:"reason"`
	Timestamp             int64           `json:"timestamp"`
}

type balancePayload struct {
	RequestID string `json:"requestId"`
	PlayerID  string `json:"playerId"`
	SessionID string `json:"sessionId"`
	Timestamp int64  `json:"timestamp"`
}

// requestID builds the idempotency key for one logical operation. Stable
// across retries of the same call.
func (g *Gateway) requestID(op, roundID, participantID string) string {
	return fmt.Sprintf("%s-%s-%s-%d", op, roundID, participantID, g.now().UnixMilli())
}

// SubmitWager asks the platform to debit the stake.
func (g *Gateway) SubmitWager(ctx context.Context, sess session.Session, roundID string, amount decimal.Decimal, selectionID int) (Response, error) {
	p := betPayload{
		RequestID: g.requestID("BET", roundID, sess.ParticipantID),
		RoundID:   roundID,
		PlayerID:  sess.ParticipantID,
		SessionID: sess.ID,
		Amount:    amount,
		Currency:  sess.Currency,
		Selection: selectionID,
		Timestamp: g.now().UnixMilli(),
	}
	return g.post(ctx, sess.CallbackBaseURL+"/bet", p.RequestID, p)
}

// CreditWin pushes a payout to the platform.
func (g *Gateway) CreditWin(ctx context.Context, sess session.Session, roundID string, betAmount, multiplier, winAmount decimal.Decimal, betTransactionID string) (Response, error) {
	p := winPayload{
		RequestID:        g.requestID("WIN", roundID, sess.ParticipantID),
		RoundID:          roundID,
		PlayerID:         sess.ParticipantID,
		SessionID:        sess.ID,
		BetAmount:        betAmount,
		Multiplier:       multiplier,
		WinAmount:        winAmount,
		Currency:         sess.Currency,
		BetTransactionID: betTransactionID,
		Timestamp:        g.now().UnixMilli(),
	}
	return g.post(ctx, sess.CallbackBaseURL+"/win", p.RequestID, p)
}

// RollbackWager compensates a debit whose local registration failed. The
// round goes on with the wager absent either way.
func (g *Gateway) RollbackWager(ctx context.Context, sess session.Session, roundID string, amount decimal.Decimal, originalTransactionID, reason string) error {
	p := rollbackPayload{
		RequestID:             g.requestID("ROLLBACK", roundID, sess.ParticipantID),
		RoundID:               roundID,
		PlayerID:              sess.ParticipantID,
		SessionID:             sess.ID,
		Amount:                amount,
		Currency:              sess.Currency,
		OriginalTransactionID: originalTransactionID,
		Reason:                reason,
		Timestamp:             g.now().UnixMilli(),
	}
	_, err := g.post(ctx, sess.CallbackBaseURL+"/rollback", p.RequestID, p)
	return err
}

// QueryBalance fetches the authoritative balance.
func (g *Gateway) QueryBalance(ctx context.Context, sess session.Session) (Response, error) {
	p := balancePayload{
		RequestID: g.requestID("BAL", "init", sess.ParticipantID),
		PlayerID:  sess.ParticipantID,
		SessionID: sess.ID,
		Timestamp: g.now().UnixMilli(),
	}
	return g.post(ctx, sess.CallbackBaseURL+"/balance", p.RequestID, p)
}

// post delivers one signed payload, retrying transient failures per policy.
// The body, signature and request id are fixed before the first attempt so
// every retry is byte-identical and de-duplicable.
func (g *Gateway) post(ctx context.Context, url, requestID string, payload any) (Response, error) {
	body, err := json.Marshal(payload)
	if err != nil {
		return Response{}, fmt.Errorf("marshal payload: %w", err)
	}
	signature := Sign(body, g.secret)

	var lastErr error
	for attempt := 1; attempt <= g.policy.MaxAttempts; attempt++ {
		resp, retryable, err := g.attempt(ctx, url, requestID, signature, body)
		if err == nil {
			return resp, nil
		}
		if !retryable {
			return Response{}, err
		}
		lastErr = err
		g.log.Printf("callback attempt %d/%d failed: %v", attempt, g.policy.MaxAttempts, err)
		if attempt < g.policy.MaxAttempts {
			if serr := g.policy.sleep(ctx, attempt); serr != nil {
				return Response{}, fmt.Errorf("%w: %v", ErrUnavailable, serr)
			}
		}
	}
	return Response{}, fmt.Errorf("%w after %d attempts: %v", ErrUnavailable, g.policy.MaxAttempts, lastErr)
}

func (g *Gateway) attempt(ctx context.Context, url, requestID, signature string, body []byte) (Response, bool, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, url, bytes.NewReader(body))
	if err != nil {
		return Response{}, false, fmt.Errorf("build request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("X-Provider-Signature", signature)
	req.Header.Set("X-Request-ID", requestID)

	httpResp, err := g.client.Do(req)
	if err != nil {
		// Timeouts and connection failures are the transient class.
		return Response{}, true, err
	}
	defer httpResp.Body.Close()

	data, err := io.ReadAll(httpResp.Body)
	if err != nil {
		return Response{}, true, fmt.Errorf("read response: %w", err)
	}

	switch {
	case httpResp.StatusCode >= 500 || httpResp.StatusCode == http.StatusTooManyRequests:
		return Response{}, true, fmt.Errorf("platform returned %d", httpResp.StatusCode)
	case httpResp.StatusCode >= 400:
		return Response{}, false, fmt.Errorf("%w: %s", ErrRejected, rejectionMessage(data, httpResp.StatusCode))
	}

	var resp Response
	if err := json.Unmarshal(data, &resp); err != nil {
		return Response{}, false, fmt.Errorf("decode response: %w", err)
	}
	if resp.Status != statusOK {
		return Response{}, false, fmt.Errorf("%w: %s", ErrRejected, rejectionMessage(data, httpResp.StatusCode))
	}
	return resp, false, nil
}

func rejectionMessage(data []byte, statusCode int) string {
	var resp Response
	if err := json.Unmarshal(data, &resp); err == nil && resp.Message != "" {
		return resp.Message
	}
	return fmt.Sprintf("status %d", statusCode)
}
