// Package models defines the database models for the settlement audit journal.
package models

import (
	"time"

	"github.com/shopspring/decimal"
)

// RoundRecord is an append-only audit row written once per completed round.
// It is never read back by the engine; in-process state stays authoritative.
type RoundRecord struct {
	ID          uint   `gorm:"primaryKey"`
	RoundID     string `gorm:"size:64;uniqueIndex"`
	Nonce       uint64 `gorm:"index"`
	WinnerID    int
	WinnerName  string          `gorm:"size:64"`
	Payout      decimal.Decimal `gorm:"type:numeric"`
	RawValue    float64
	BetsCount   int
	TotalStaked decimal.Decimal `gorm:"type:numeric"`
	TotalPaid   decimal.Decimal `gorm:"type:numeric"`
	EndedAt     time.Time       `gorm:"index"`
	CreatedAt   time.Time
}
