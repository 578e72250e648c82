// Package betting orchestrates wager placement and win disbursement across
// the session store, the settlement gateway and the round engine, including
// the compensating rollback when a debited wager fails local registration.
package betting

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
	"gorm.io/gorm"

	"race-provider/internal/engine"
	"race-provider/internal/logger"
	"race-provider/internal/models"
	"race-provider/internal/session"
	"race-provider/internal/settlement"
)

// Validation rejections surfaced to the caller with a specific reason.
var (
	ErrInvalidSession      = errors.New("invalid or expired session")
	ErrBadAmount           = errors.New("bet amount out of bounds")
	ErrInsufficientBalance = errors.New("insufficient balance")
)

// Gateway is the slice of the settlement protocol this service needs.
type Gateway interface {
	SubmitWager(ctx context.Context, sess session.Session, roundID string, amount decimal.Decimal, selectionID int) (settlement.Response, error)
	CreditWin(ctx context.Context, sess session.Session, roundID string, betAmount, multiplier, winAmount decimal.Decimal, betTransactionID string) (settlement.Response, error)
	RollbackWager(ctx context.Context, sess session.Session, roundID string, amount decimal.Decimal, originalTransactionID, reason string) error
	QueryBalance(ctx context.Context, sess session.Session) (settlement.Response, error)
}

// Options configures a Service.
type Options struct {
	Engine         *engine.Engine
	Sessions       *session.Store
	Gateway        Gateway
	Journal        *gorm.DB // nil disables reconciliation journaling
	Log            *logger.Logger
	MinBet         decimal.Decimal
	MaxBet         decimal.Decimal
	DefaultBalance decimal.Decimal
}

// Service wires wager placement and settlement disbursement together.
type Service struct {
	engine         *engine.Engine
	sessions       *session.Store
	gateway        Gateway
	journal        *gorm.DB
	log            *logger.Logger
	minBet, maxBet decimal.Decimal
	defaultBalance decimal.Decimal
}

// New creates the betting service.
func New(opts Options) *Service {
	return &Service{
		engine:         opts.Engine,
		sessions:       opts.Sessions,
		gateway:        opts.Gateway,
		journal:        opts.Journal,
		log:            opts.Log,
		minBet:         opts.MinBet,
		maxBet:         opts.MaxBet,
		defaultBalance: opts.DefaultBalance,
	}
}

// BetResult is the accepted-wager response for the client.
type BetResult struct {
	BetID      string          `json:"betId"`
	Amount     decimal.Decimal `json:"amount"`
	NewBalance decimal.Decimal `json:"newBalance"`
}

// OpenSession bootstraps a player session. With a callback URL the initial
// balance comes from the platform (a query failure degrades to the default
// test balance); without one the session runs in local mode.
func (s *Service) OpenSession(ctx context.Context, participantID, currency, callbackBaseURL, token string) session.Session {
	balance := s.defaultBalance
	if callbackBaseURL != "" {
		probe := session.Session{
			ParticipantID:   participantID,
			Currency:        currency,
			CallbackBaseURL: callbackBaseURL,
		}
		if resp, err := s.gateway.QueryBalance(ctx, probe); err == nil {
			balance = resp.Balance
		} else {
			s.log.Errorf("initial balance query for %s failed: %v", participantID, err)
		}
	}
	return s.sessions.Create(participantID, currency, callbackBaseURL, token, balance)
}

// PlaceBet validates, debits and registers a wager. The outcome of the
// current round was frozen before betting opened, so nothing here can
// influence it.
func (s *Service) PlaceBet(ctx context.Context, sessionID string, amount decimal.Decimal, selectionID int, claimedAt time.Time) (BetResult, error) {
	sess, ok := s.sessions.Get(sessionID)
	if !ok {
		return BetResult{}, ErrInvalidSession
	}
	if amount.LessThan(s.minBet) || amount.GreaterThan(s.maxBet) {
		return BetResult{}, fmt.Errorf("%w: must be between %s and %s", ErrBadAmount, s.minBet, s.maxBet)
	}
	if amount.GreaterThan(sess.Balance) {
		return BetResult{}, ErrInsufficientBalance
	}

	info, ok := s.engine.Current()
	if !ok || info.State == engine.StateEnded {
		return BetResult{}, engine.ErrNoOpenRound
	}
	roundID := info.ID

	// Debit first. An explicit platform decline is final; local mode mints
	// its own transaction id and debits the cached balance.
	var transactionID string
	var newBalance decimal.Decimal
	if sess.LocalMode() {
		transactionID = "TXN-" + uuid.NewString()
		newBalance = sess.Balance.Sub(amount)
	} else {
		resp, err := s.gateway.SubmitWager(ctx, sess, roundID, amount, selectionID)
		if err != nil {
			return BetResult{}, err
		}
		transactionID = resp.TransactionID
		newBalance = resp.NewBalance
	}

	w, err := s.engine.RegisterWager(sess.ParticipantID, amount, selectionID, transactionID, claimedAt)
	if err != nil {
		// The stake was already taken externally: compensate. A failed
		// rollback is flagged for reconciliation, never fatal.
		if !sess.LocalMode() {
			if rbErr := s.gateway.RollbackWager(ctx, sess, roundID, amount, transactionID, "REGISTRATION_FAILED"); rbErr != nil {
				s.log.Errorf("rollback of %s failed: %v", transactionID, rbErr)
				s.flagReconciliation("rollback", roundID, sess.ParticipantID, amount, rbErr.Error())
			}
		}
		return BetResult{}, err
	}

	s.sessions.UpdateBalance(sess.ID, newBalance)
	return BetResult{BetID: w.TransactionID, Amount: amount, NewBalance: newBalance}, nil
}

// ProcessWin credits a settlement result to the participant's wallet and
// returns the resulting balance. On platform failure the payout is flagged
// for reconciliation and the best known cached balance is returned; the
// round loop never blocks on a single payout.
func (s *Service) ProcessWin(ctx context.Context, roundID string, res engine.SettlementResult) (decimal.Decimal, bool) {
	sess, ok := s.sessions.ByParticipant(res.ParticipantID)
	if !ok {
		return decimal.Zero, false
	}
	if !res.Won || res.Payout.IsZero() {
		return sess.Balance, true
	}

	if sess.LocalMode() {
		newBalance := sess.Balance.Add(res.Payout)
		s.sessions.UpdateBalance(sess.ID, newBalance)
		return newBalance, true
	}

	resp, err := s.gateway.CreditWin(ctx, sess, roundID, res.WagerAmount, res.Multiplier, res.Payout, res.TransactionID)
	if err != nil {
		s.log.Errorf("win credit for %s failed: %v", res.ParticipantID, err)
		s.flagReconciliation("win", roundID, res.ParticipantID, res.Payout, err.Error())
		return sess.Balance, true
	}

	s.sessions.UpdateBalance(sess.ID, resp.NewBalance)
	return resp.NewBalance, true
}

// RefreshBalance re-queries the platform for the authoritative balance and
// updates the cache. Local mode just returns the cached value.
func (s *Service) RefreshBalance(ctx context.Context, sessionID string) (decimal.Decimal, error) {
	sess, ok := s.sessions.Get(sessionID)
	if !ok {
		return decimal.Zero, ErrInvalidSession
	}
	if sess.LocalMode() {
		return sess.Balance, nil
	}
	resp, err := s.gateway.QueryBalance(ctx, sess)
	if err != nil {
		return sess.Balance, err
	}
	s.sessions.UpdateBalance(sess.ID, resp.Balance)
	return resp.Balance, nil
}

func (s *Service) flagReconciliation(op, roundID, participantID string, amount decimal.Decimal, reason string) {
	if s.journal == nil {
		return
	}
	rec := models.Reconciliation{
		RoundID:       roundID,
		ParticipantID: participantID,
		RequestID:     fmt.Sprintf("%s-%s-%s", op, roundID, participantID),
		Operation:     op,
		Amount:        amount,
		Reason:        reason,
	}
	if err := s.journal.Create(&rec).Error; err != nil {
		s.log.Errorf("journal reconciliation for %s/%s: %v", roundID, participantID, err)
	}
}
