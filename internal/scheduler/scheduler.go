// Package scheduler drives the perpetual round loop and broadcasts its
// lifecycle events to subscribers.
package scheduler

import (
	"context"
	"fmt"
	"time"

	"github.com/shopspring/decimal"
	"gorm.io/gorm"

	"race-provider/internal/engine"
	"race-provider/internal/fairness"
	"race-provider/internal/logger"
	"race-provider/internal/models"
)

// Settler credits winnings after a round ends. Satisfied by betting.Service.
type Settler interface {
	ProcessWin(ctx context.Context, roundID string, res engine.SettlementResult) (decimal.Decimal, bool)
}

// Options configure the round loop.
type Options struct {
	Engine *engine.Engine
	Chain  *fairness.Chain
	Hub    *Hub
	Bets   Settler
	// Journal may be nil; round records are then not persisted.
	Journal *gorm.DB
	Log     *logger.Logger
	Clock   Clock

	BettingWindow time.Duration
	RaceDuration  time.Duration
	TickInterval  time.Duration
	RoundDelay    time.Duration
	HistoryLimit  int
}

// Scheduler runs rounds back to back until its context is cancelled.
type Scheduler struct {
	engine  *engine.Engine
	chain   *fairness.Chain
	hub     *Hub
	bets    Settler
	journal *gorm.DB
	log     *logger.Logger
	clock   Clock

	bettingWindow time.Duration
	raceDuration  time.Duration
	tickInterval  time.Duration
	roundDelay    time.Duration
	historyLimit  int
}

func New(opts Options) *Scheduler {
	if opts.Clock == nil {
		opts.Clock = NewClock()
	}
	if opts.HistoryLimit <= 0 {
		opts.HistoryLimit = 20
	}
	return &Scheduler{
		engine:        opts.Engine,
		chain:         opts.Chain,
		hub:           opts.Hub,
		bets:          opts.Bets,
		journal:       opts.Journal,
		log:           opts.Log,
		clock:         opts.Clock,
		bettingWindow: opts.BettingWindow,
		raceDuration:  opts.RaceDuration,
		tickInterval:  opts.TickInterval,
		roundDelay:    opts.RoundDelay,
		historyLimit:  opts.HistoryLimit,
	}
}

// Run executes rounds until ctx is cancelled. It always returns nil on
// cancellation so callers can treat shutdown as clean.
func (s *Scheduler) Run(ctx context.Context) error {
	for {
		if err := s.runRound(ctx); err != nil {
			if ctx.Err() != nil {
				return nil
			}
			return fmt.Errorf("round loop: %w", err)
		}
		if err := s.clock.Sleep(ctx, s.roundDelay); err != nil {
			return nil
		}
	}
}

func (s *Scheduler) runRound(ctx context.Context) error {
	vd := s.chain.VerificationData()
	info, err := s.engine.OpenRound(vd)
	if err != nil {
		return fmt.Errorf("open round: %w", err)
	}
	s.log.Printf("round %s open, nonce %d, commitment %s", info.ID, vd.Nonce, vd.Commitment)

	s.hub.Publish(Event{Name: EventBettingPhase, Data: BettingPhasePayload{
		RoundID:    info.ID,
		DurationMs: s.bettingWindow.Milliseconds(),
		Commitment: vd.Commitment,
		ClientSeed: vd.ClientSeed,
		Nonce:      vd.Nonce,
		Runners:    s.engine.Runners(),
	}})
	if err := s.clock.Sleep(ctx, s.bettingWindow); err != nil {
		return err
	}

	prog, err := s.engine.Start()
	if err != nil {
		return fmt.Errorf("start round: %w", err)
	}
	s.hub.Publish(Event{Name: EventRoundStart, Data: RoundStartPayload{
		RoundID:    info.ID,
		DurationMs: s.raceDuration.Milliseconds(),
	}})

	for tick := 0; tick < prog.TotalTicks; tick++ {
		positions := make([]TickPosition, len(prog.Tracks))
		for i, tr := range prog.Tracks {
			positions[i] = TickPosition{
				ID:       tr.ID,
				Name:     tr.Name,
				Color:    tr.Color,
				Position: tr.Positions[tick],
			}
		}
		s.hub.Publish(Event{Name: EventRoundTick, Data: RoundTickPayload{
			RoundID:    info.ID,
			Tick:       tick,
			TotalTicks: prog.TotalTicks,
			Positions:  positions,
		}})
		if tick < prog.TotalTicks-1 {
			if err := s.clock.Sleep(ctx, s.tickInterval); err != nil {
				return err
			}
		}
	}

	results, err := s.engine.End()
	if err != nil {
		return fmt.Errorf("end round: %w", err)
	}
	s.hub.Publish(Event{Name: EventRoundEnd, Data: RoundEndPayload{
		RoundID:    info.ID,
		Outcome:    info.Outcome,
		ServerSeed: vd.ServerSeed,
		Commitment: vd.Commitment,
		ClientSeed: vd.ClientSeed,
		Nonce:      vd.Nonce,
	}})
	s.log.Printf("round %s ended, winner %s, %d bets", info.ID, info.Outcome.Name, len(results))

	s.disburse(ctx, info.ID, results)
	s.journalRound(info, vd, results)
	s.chain.Advance()

	s.hub.Publish(Event{Name: EventHistory, Data: HistoryPayload{
		Rounds: s.engine.History(s.historyLimit),
	}})
	return nil
}

func (s *Scheduler) disburse(ctx context.Context, roundID string, results []engine.SettlementResult) {
	for _, res := range results {
		balance, credited := s.bets.ProcessWin(ctx, roundID, res)
		if res.Won && !credited {
			s.log.Errorf("round %s: win credit pending for %s", roundID, res.ParticipantID)
		}
		s.hub.Publish(Event{Name: EventRoundResult, Data: RoundResultPayload{
			RoundID:       roundID,
			ParticipantID: res.ParticipantID,
			Won:           res.Won,
			WagerAmount:   res.WagerAmount,
			Multiplier:    res.Multiplier,
			Payout:        res.Payout,
			NewBalance:    balance,
		}})
	}
}

func (s *Scheduler) journalRound(info engine.RoundInfo, vd fairness.VerificationData, results []engine.SettlementResult) {
	if s.journal == nil {
		return
	}
	totalStaked := decimal.Zero
	totalPaid := decimal.Zero
	for _, res := range results {
		totalStaked = totalStaked.Add(res.WagerAmount)
		totalPaid = totalPaid.Add(res.Payout)
	}
	rec := models.RoundRecord{
		RoundID:     info.ID,
		Nonce:       vd.Nonce,
		WinnerID:    info.Outcome.WinnerID,
		WinnerName:  info.Outcome.Name,
		Payout:      info.Outcome.Payout,
		RawValue:    info.Outcome.RawValue,
		BetsCount:   len(results),
		TotalStaked: totalStaked,
		TotalPaid:   totalPaid,
		EndedAt:     s.clock.Now(),
	}
	if err := s.journal.Create(&rec).Error; err != nil {
		s.log.Errorf("journal round %s: %v", info.ID, err)
	}
}
