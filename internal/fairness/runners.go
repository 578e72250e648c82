// Package fairness implements the provably-fair core: the committed seed
// chain, the HMAC-based raw value derivation and the weighted outcome
// selection. Everything here must be re-derivable by an external party from
// (serverSeed, clientSeed, nonce) alone.
package fairness

import "github.com/shopspring/decimal"

// Runner is one entry of the fixed outcome table.
type Runner struct {
	ID          int             `json:"id"`
	Name        string          `json:"name"`
	Color       string          `json:"color"`
	Probability float64         `json:"-"`
	Payout      decimal.Decimal `json:"payout"`
}

// DefaultRunners is the production outcome table. Probabilities sum to 1.0;
// RTP = sum(probability*payout) = 96.55%.
func DefaultRunners() []Runner {
	return []Runner{
		{ID: 1, Name: "Thunder Bolt", Color: "#e74c3c", Probability: 0.30, Payout: decimal.NewFromFloat(3.22)},
		{ID: 2, Name: "Silver Storm", Color: "#3498db", Probability: 0.25, Payout: decimal.NewFromFloat(3.86)},
		{ID: 3, Name: "Golden Glory", Color: "#f1c40f", Probability: 0.20, Payout: decimal.NewFromFloat(4.83)},
		{ID: 4, Name: "Midnight Run", Color: "#9b59b6", Probability: 0.12, Payout: decimal.NewFromFloat(8.04)},
		{ID: 5, Name: "Wild Spirit", Color: "#2ecc71", Probability: 0.08, Payout: decimal.NewFromFloat(12.06)},
		{ID: 6, Name: "Lucky Star", Color: "#e67e22", Probability: 0.05, Payout: decimal.NewFromFloat(19.30)},
	}
}

// RunnerByID returns the table entry with the given id, or false.
func RunnerByID(runners []Runner, id int) (Runner, bool) {
	for _, r := range runners {
		if r.ID == id {
			return r, true
		}
	}
	return Runner{}, false
}
