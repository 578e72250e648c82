package engine

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"race-provider/internal/fairness"
)

func TestProgressionWinnerFinishesFirst(t *testing.T) {
	runners := fairness.DefaultRunners()
	// Cosmetic details are randomized, so check the hard constraint across a
	// number of builds: the frozen winner always ends frontmost.
	for i := 0; i < 25; i++ {
		winner := runners[i%len(runners)]
		outcome := fairness.Outcome{WinnerID: winner.ID, Name: winner.Name}
		prog := buildProgression(outcome, runners, 2*time.Second, 100*time.Millisecond)

		require.Len(t, prog.Tracks, len(runners))
		for _, track := range prog.Tracks {
			last := track.Positions[len(track.Positions)-1]
			if track.ID == winner.ID {
				assert.Equal(t, 100.0, last)
			} else {
				assert.Less(t, last, 100.0, "runner %d must finish behind the winner", track.ID)
			}
		}
	}
}

func TestProgressionMonotonic(t *testing.T) {
	runners := fairness.DefaultRunners()
	outcome := fairness.Outcome{WinnerID: 2}
	prog := buildProgression(outcome, runners, 2*time.Second, 50*time.Millisecond)

	for _, track := range prog.Tracks {
		require.Len(t, track.Positions, prog.TotalTicks)
		for i := 1; i < len(track.Positions); i++ {
			assert.GreaterOrEqual(t, track.Positions[i], track.Positions[i-1],
				"runner %d went backwards at tick %d", track.ID, i)
		}
	}
}

func TestProgressionTickCount(t *testing.T) {
	runners := fairness.DefaultRunners()
	prog := buildProgression(fairness.Outcome{WinnerID: 1}, runners, time.Second, 100*time.Millisecond)
	assert.Equal(t, 11, prog.TotalTicks)

	// Degenerate timing still yields at least one tick.
	prog = buildProgression(fairness.Outcome{WinnerID: 1}, runners, 10*time.Millisecond, time.Second)
	assert.Equal(t, 2, prog.TotalTicks)
}
