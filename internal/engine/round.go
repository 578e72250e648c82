package engine

import (
	"time"

	"github.com/shopspring/decimal"

	"race-provider/internal/fairness"
)

// State is the round lifecycle phase.
type State string

const (
	StateBetting State = "BETTING"
	StateRunning State = "RUNNING"
	StateEnded   State = "ENDED"
)

// Round is the single active round. The engine owns it exclusively; callers
// only ever see value copies.
type Round struct {
	ID            string
	Outcome       fairness.Outcome
	State         State
	BettingStart  time.Time
	BettingEnd    time.Time
	RaceStart     time.Time
	wagers        map[string]Wager
	progression   Progression
}

// Wager is one participant's bet. The payout multiplier is copied from the
// outcome table at placement time; nothing about it changes afterwards.
type Wager struct {
	ParticipantID string          `json:"participantId"`
	Amount        decimal.Decimal `json:"amount"`
	SelectionID   int             `json:"selection"`
	RunnerName    string          `json:"runnerName"`
	Multiplier    decimal.Decimal `json:"multiplier"`
	TransactionID string          `json:"transactionId"`
	PlacedAt      time.Time       `json:"placedAt"`
}

// SettlementResult is derived from a wager and the frozen outcome; it is
// always recomputable and never stored on its own.
type SettlementResult struct {
	ParticipantID string          `json:"participantId"`
	WagerAmount   decimal.Decimal `json:"wagerAmount"`
	SelectionID   int             `json:"selection"`
	TransactionID string          `json:"transactionId"`
	Won           bool            `json:"won"`
	Multiplier    decimal.Decimal `json:"multiplier"`
	Payout        decimal.Decimal `json:"payout"`
}

// HistoryEntry is one completed round in the bounded history ring.
type HistoryEntry struct {
	RoundID   string           `json:"roundId"`
	Outcome   fairness.Outcome `json:"outcome"`
	EndedAt   time.Time        `json:"endedAt"`
	BetsCount int              `json:"betsCount"`
}

// RoundInfo is the value-copy view of the current round handed to callers.
type RoundInfo struct {
	ID         string
	State      State
	Outcome    fairness.Outcome
	BettingEnd time.Time
}

// Snapshot is the public game state for new viewers.
type Snapshot struct {
	State     State             `json:"state"`
	RoundID   string            `json:"roundId,omitempty"`
	BetsCount int               `json:"betsCount"`
	Runners   []fairness.Runner `json:"runners"`
}

func settle(w Wager, outcome fairness.Outcome) SettlementResult {
	won := w.SelectionID == outcome.WinnerID
	payout := decimal.Zero
	if won {
		payout = w.Amount.Mul(w.Multiplier)
	}
	return SettlementResult{
		ParticipantID: w.ParticipantID,
		WagerAmount:   w.Amount,
		SelectionID:   w.SelectionID,
		TransactionID: w.TransactionID,
		Won:           won,
		Multiplier:    w.Multiplier,
		Payout:        payout,
	}
}
