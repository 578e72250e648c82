package fairness

import (
	"crypto/hmac"
	"crypto/sha256"
	"encoding/hex"
	"fmt"
	"strconv"

	"github.com/shopspring/decimal"
)

// rawPrecisionChars is the hex digest prefix length used for the raw value.
// 13 hex chars = 52 bits, the full precision of a float64 mantissa.
const rawPrecisionChars = 13

// Outcome is the frozen result of a round, computed at round creation before
// betting opens and never recomputed.
type Outcome struct {
	WinnerID int             `json:"winningRunnerId"`
	Name     string          `json:"runnerName"`
	Color    string          `json:"color"`
	Payout   decimal.Decimal `json:"payout"`
	RawValue float64         `json:"rawValue"`
}

// Derive computes the uniform raw value in [0,1) for a round:
// HMAC-SHA256 keyed with the server seed over "clientSeed:nonce", hex
// encoded, first 13 hex chars interpreted as an integer and normalized by
// 16^13. Pure and deterministic; this is the fairness contract.
func Derive(serverSeed, clientSeed string, nonce uint64) float64 {
	mac := hmac.New(sha256.New, []byte(serverSeed))
	mac.Write([]byte(fmt.Sprintf("%s:%d", clientSeed, nonce)))
	digest := hex.EncodeToString(mac.Sum(nil))

	v, _ := strconv.ParseUint(digest[:rawPrecisionChars], 16, 64)
	return float64(v) / float64(uint64(1)<<(4*rawPrecisionChars))
}

// SelectOutcome maps a raw value in [0,1) to a table entry by walking the
// cumulative probability mass. Boundary values belong to the lower entry.
// If floating accumulation never covers raw (rounding edge case), the last
// entry wins; that fallback is deterministic and part of the contract.
func SelectOutcome(raw float64, runners []Runner) Outcome {
	cumulative := 0.0
	for _, r := range runners {
		cumulative += r.Probability
		if raw < cumulative {
			return outcomeFor(r, raw)
		}
	}
	return outcomeFor(runners[len(runners)-1], raw)
}

// Verify recomputes the outcome for a (serverSeed, clientSeed, nonce) triple.
// Any external party can run the same derivation and must get an identical
// result.
func Verify(serverSeed, clientSeed string, nonce uint64, runners []Runner) Outcome {
	return SelectOutcome(Derive(serverSeed, clientSeed, nonce), runners)
}

func outcomeFor(r Runner, raw float64) Outcome {
	return Outcome{
		WinnerID: r.ID,
		Name:     r.Name,
		Color:    r.Color,
		Payout:   r.Payout,
		RawValue: raw,
	}
}
