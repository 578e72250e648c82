package models

import (
	"time"

	"github.com/shopspring/decimal"
)

// Reconciliation flags a settlement call that exhausted its retries so the
// affected payout can be settled manually instead of blocking the round loop.
type Reconciliation struct {
	ID            uint            `gorm:"primaryKey"`
	RoundID       string          `gorm:"size:64;index"`
	ParticipantID string          `gorm:"size:128;index"`
	RequestID     string          `gorm:"size:128;uniqueIndex"`
	Operation     string          `gorm:"size:16;index"` // "win" or "rollback"
	Amount        decimal.Decimal `gorm:"type:numeric"`
	Reason        string          `gorm:"size:256"`
	Resolved      bool            `gorm:"index"`
	CreatedAt     time.Time
	UpdatedAt     time.Time
}
