// Package engine owns the round state machine: one active round at a time,
// its wager registry and the settlement computation. Phase transitions are
// driven sequentially by the scheduler; wager registration arrives
// concurrently and is serialized by the engine mutex.
package engine

import (
	"errors"
	"fmt"
	"sync"
	"time"

	"github.com/shopspring/decimal"

	"race-provider/internal/fairness"
)

// Validation rejections. Each maps to a distinct client-visible reason.
var (
	ErrNoOpenRound      = errors.New("no open round")
	ErrBettingClosed    = errors.New("betting closed")
	ErrDuplicateWager   = errors.New("wager already placed this round")
	ErrUnknownSelection = errors.New("unknown runner selection")
)

// ErrInvalidTransition marks a phase transition attempted out of order. This
// is a programming error, not a recoverable condition; the round object is
// left untouched.
var ErrInvalidTransition = errors.New("invalid round transition")

// Options configures an Engine.
type Options struct {
	Runners       []fairness.Runner
	BettingWindow time.Duration
	GraceWindow   time.Duration
	RaceDuration  time.Duration
	TickInterval  time.Duration
	HistoryLimit  int
	Now           func() time.Time // injectable clock for tests
}

// Engine is the single owner of the current round and the history ring.
type Engine struct {
	mu sync.Mutex

	runners       []fairness.Runner
	bettingWindow time.Duration
	grace         time.Duration
	raceDuration  time.Duration
	tickInterval  time.Duration
	historyLimit  int
	now           func() time.Time

	current *Round
	history []HistoryEntry
}

// New creates an engine around the given outcome table.
func New(opts Options) *Engine {
	if opts.Now == nil {
		opts.Now = time.Now
	}
	if opts.HistoryLimit <= 0 {
		opts.HistoryLimit = 50
	}
	return &Engine{
		runners:       opts.Runners,
		bettingWindow: opts.BettingWindow,
		grace:         opts.GraceWindow,
		raceDuration:  opts.RaceDuration,
		tickInterval:  opts.TickInterval,
		historyLimit:  opts.HistoryLimit,
		now:           opts.Now,
	}
}

// Runners returns the fixed outcome table.
func (e *Engine) Runners() []fairness.Runner {
	return e.runners
}

// OpenRound creates a new round in BETTING state with the outcome computed
// and frozen before any wager can arrive. Fails if the previous round has
// not ended.
func (e *Engine) OpenRound(vd fairness.VerificationData) (RoundInfo, error) {
	e.mu.Lock()
	defer e.mu.Unlock()

	if e.current != nil && e.current.State != StateEnded {
		return RoundInfo{}, fmt.Errorf("%w: round %s still %s", ErrInvalidTransition, e.current.ID, e.current.State)
	}

	now := e.now()
	outcome := fairness.Verify(vd.ServerSeed, vd.ClientSeed, vd.Nonce, e.runners)
	e.current = &Round{
		ID:           fmt.Sprintf("R-%d-%d", now.UnixMilli(), vd.Nonce),
		Outcome:      outcome,
		State:        StateBetting,
		BettingStart: now,
		BettingEnd:   now.Add(e.bettingWindow),
		wagers:       make(map[string]Wager),
	}
	return e.infoLocked(), nil
}

// Start moves the round from BETTING to RUNNING and builds the display-only
// race progression. The one hard constraint on the progression is that the
// frozen winner finishes in front.
func (e *Engine) Start() (Progression, error) {
	e.mu.Lock()
	defer e.mu.Unlock()

	if e.current == nil || e.current.State != StateBetting {
		return Progression{}, fmt.Errorf("%w: cannot start from %s", ErrInvalidTransition, e.stateLocked())
	}
	e.current.State = StateRunning
	e.current.RaceStart = e.now()
	e.current.progression = buildProgression(e.current.Outcome, e.runners, e.raceDuration, e.tickInterval)
	return e.current.progression, nil
}

// End moves the round from RUNNING to ENDED, computes the settlement batch
// for every wager against the frozen outcome and appends one history record.
// A second call fails fast without touching history.
func (e *Engine) End() ([]SettlementResult, error) {
	e.mu.Lock()
	defer e.mu.Unlock()

	if e.current == nil || e.current.State != StateRunning {
		return nil, fmt.Errorf("%w: cannot end from %s", ErrInvalidTransition, e.stateLocked())
	}

	r := e.current
	results := make([]SettlementResult, 0, len(r.wagers))
	for _, w := range r.wagers {
		results = append(results, settle(w, r.Outcome))
	}

	r.State = StateEnded
	e.history = append([]HistoryEntry{{
		RoundID:   r.ID,
		Outcome:   r.Outcome,
		EndedAt:   e.now(),
		BetsCount: len(r.wagers),
	}}, e.history...)
	if len(e.history) > e.historyLimit {
		e.history = e.history[:e.historyLimit]
	}
	return results, nil
}

// RegisterWager validates and records a wager for the current round. A zero
// claimedAt means the caller supplied no client timestamp and only the server
// arrival check applies. The claimed timestamp is advisory (it is client
// supplied and spoofable); it only ever narrows the grace window, never
// widens it.
func (e *Engine) RegisterWager(participantID string, amount decimal.Decimal, selectionID int, transactionID string, claimedAt time.Time) (Wager, error) {
	e.mu.Lock()
	defer e.mu.Unlock()

	r := e.current
	if r == nil || r.State == StateEnded {
		return Wager{}, ErrNoOpenRound
	}

	now := e.now()
	if r.State != StateBetting {
		withinGrace := !now.After(r.BettingEnd.Add(e.grace))
		claimOK := claimedAt.IsZero() || !claimedAt.After(r.BettingEnd)
		if !withinGrace || !claimOK {
			return Wager{}, ErrBettingClosed
		}
	}

	if _, exists := r.wagers[participantID]; exists {
		return Wager{}, ErrDuplicateWager
	}

	runner, ok := fairness.RunnerByID(e.runners, selectionID)
	if !ok {
		return Wager{}, ErrUnknownSelection
	}

	w := Wager{
		ParticipantID: participantID,
		Amount:        amount,
		SelectionID:   selectionID,
		RunnerName:    runner.Name,
		Multiplier:    runner.Payout,
		TransactionID: transactionID,
		PlacedAt:      now,
	}
	r.wagers[participantID] = w
	return w, nil
}

// WagerFor returns the participant's wager for the current round, if any.
func (e *Engine) WagerFor(participantID string) (Wager, bool) {
	e.mu.Lock()
	defer e.mu.Unlock()
	if e.current == nil {
		return Wager{}, false
	}
	w, ok := e.current.wagers[participantID]
	return w, ok
}

// Current returns a value copy of the current round's identity and state.
func (e *Engine) Current() (RoundInfo, bool) {
	e.mu.Lock()
	defer e.mu.Unlock()
	if e.current == nil {
		return RoundInfo{}, false
	}
	return e.infoLocked(), true
}

// Snapshot returns the public game state for a newly connected viewer.
func (e *Engine) Snapshot() Snapshot {
	e.mu.Lock()
	defer e.mu.Unlock()

	s := Snapshot{
		State:   StateEnded,
		Runners: e.runners,
	}
	if e.current != nil {
		s.State = e.current.State
		s.RoundID = e.current.ID
		s.BetsCount = len(e.current.wagers)
	}
	return s
}

// History returns up to limit most recent completed rounds, newest first.
func (e *Engine) History(limit int) []HistoryEntry {
	e.mu.Lock()
	defer e.mu.Unlock()
	if limit <= 0 || limit > len(e.history) {
		limit = len(e.history)
	}
	out := make([]HistoryEntry, limit)
	copy(out, e.history[:limit])
	return out
}

func (e *Engine) infoLocked() RoundInfo {
	return RoundInfo{
		ID:         e.current.ID,
		State:      e.current.State,
		Outcome:    e.current.Outcome,
		BettingEnd: e.current.BettingEnd,
	}
}

func (e *Engine) stateLocked() State {
	if e.current == nil {
		return "NONE"
	}
	return e.current.State
}
