package scheduler

import (
	"github.com/shopspring/decimal"

	"race-provider/internal/engine"
	"race-provider/internal/fairness"
)

// Event names as they appear on the broadcast stream.
const (
	EventBettingPhase = "betting_phase"
	EventRoundStart   = "round_start"
	EventRoundTick    = "round_tick"
	EventRoundEnd     = "round_end"
	EventRoundResult  = "round_result"
	EventHistory      = "history"
)

// Event is one broadcast message. Data is the payload struct for the name.
type Event struct {
	Name string `json:"event"`
	Data any    `json:"data"`
}

// BettingPhasePayload opens a round for wagers and publishes the commitment
// so players can record it before the outcome is revealed.
type BettingPhasePayload struct {
	RoundID    string            `json:"roundId"`
	DurationMs int64             `json:"duration"`
	Commitment string            `json:"serverSeedHash"`
	ClientSeed string            `json:"clientSeed"`
	Nonce      uint64            `json:"nonce"`
	Runners    []fairness.Runner `json:"runners"`
}

// RoundStartPayload announces the race is underway and betting is closed.
type RoundStartPayload struct {
	RoundID    string `json:"roundId"`
	DurationMs int64  `json:"duration"`
}

// TickPosition is one runner's course position on a single tick.
type TickPosition struct {
	ID       int     `json:"id"`
	Name     string  `json:"name"`
	Color    string  `json:"color"`
	Position float64 `json:"position"`
}

// RoundTickPayload carries the per-tick display frame.
type RoundTickPayload struct {
	RoundID    string         `json:"roundId"`
	Tick       int            `json:"tick"`
	TotalTicks int            `json:"totalTicks"`
	Positions  []TickPosition `json:"positions"`
}

// RoundEndPayload reveals the winner together with the full seed material,
// making the round verifiable from this moment on.
type RoundEndPayload struct {
	RoundID    string           `json:"roundId"`
	Outcome    fairness.Outcome `json:"outcome"`
	ServerSeed string           `json:"serverSeed"`
	Commitment string           `json:"serverSeedHash"`
	ClientSeed string           `json:"clientSeed"`
	Nonce      uint64           `json:"nonce"`
}

// RoundResultPayload is the per-participant settlement notice.
type RoundResultPayload struct {
	RoundID       string          `json:"roundId"`
	ParticipantID string          `json:"participantId"`
	Won           bool            `json:"won"`
	WagerAmount   decimal.Decimal `json:"wagerAmount"`
	Multiplier    decimal.Decimal `json:"multiplier"`
	Payout        decimal.Decimal `json:"payout"`
	NewBalance    decimal.Decimal `json:"newBalance"`
}

// HistoryPayload is the recent-winners feed pushed after each round.
type HistoryPayload struct {
	Rounds []engine.HistoryEntry `json:"rounds"`
}
