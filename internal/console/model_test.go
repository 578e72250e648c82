package console

import (
	"encoding/json"
	"testing"

	tea "github.com/charmbracelet/bubbletea"
	"github.com/stretchr/testify/require"
)

func event(t *testing.T, name string, payload any) EventMsg {
	t.Helper()
	raw, err := json.Marshal(payload)
	require.NoError(t, err)
	return EventMsg{Name: name, Data: raw}
}

func apply(t *testing.T, m Model, name string, payload any) Model {
	t.Helper()
	next, _ := m.Update(event(t, name, payload))
	return next.(Model)
}

func TestModelFollowsRoundLifecycle(t *testing.T) {
	m := NewModel()
	m.width = 100
	m.height = 40

	m = apply(t, m, "betting_phase", map[string]any{
		"roundId":        "R-1",
		"duration":       15000,
		"serverSeedHash": "abcdef0123456789",
		"runners": []map[string]any{
			{"id": 1, "name": "Thunder Bolt", "color": "#FF6B6B", "payout": "3.22"},
			{"id": 2, "name": "Silver Storm", "color": "#C0C0C0", "payout": "3.86"},
		},
	})
	require.Equal(t, "betting", m.phase)
	require.Equal(t, "R-1", m.roundID)
	require.Len(t, m.odds, 2)
	require.Contains(t, m.View(), "Thunder Bolt")

	m = apply(t, m, "round_start", map[string]any{"roundId": "R-1", "duration": 8000})
	require.Equal(t, "running", m.phase)

	m = apply(t, m, "round_tick", map[string]any{
		"roundId": "R-1", "tick": 3, "totalTicks": 10,
		"positions": []map[string]any{
			{"id": 1, "name": "Thunder Bolt", "color": "#FF6B6B", "position": 42.5},
		},
	})
	require.Len(t, m.positions, 1)
	require.Contains(t, m.View(), "42.5")

	m = apply(t, m, "round_end", map[string]any{
		"roundId":    "R-1",
		"outcome":    map[string]any{"winningRunnerId": 1, "runnerName": "Thunder Bolt", "payout": "3.22"},
		"serverSeed": "deadbeefdeadbeef",
		"nonce":      7,
	})
	require.Equal(t, "ended", m.phase)
	require.Contains(t, m.View(), "winner: Thunder Bolt")
	require.Contains(t, m.View(), "deadbeefdead")

	m = apply(t, m, "round_result", map[string]any{
		"roundId": "R-1", "participantId": "alice", "won": true, "payout": "161",
	})
	require.Contains(t, m.View(), "1 winners")

	m = apply(t, m, "history", map[string]any{
		"rounds": []map[string]any{
			{"roundId": "R-1", "outcome": map[string]any{"winningRunnerId": 1, "runnerName": "Thunder Bolt", "payout": "3.22"}},
		},
	})
	require.Len(t, m.history, 1)
	require.Contains(t, m.View(), "recent:")
}

func TestModelNewBettingPhaseResetsRoundState(t *testing.T) {
	m := NewModel()
	m.width = 80
	m = apply(t, m, "round_tick", map[string]any{
		"positions": []map[string]any{{"id": 1, "name": "x", "position": 10.0}},
	})
	m = apply(t, m, "round_end", map[string]any{
		"roundId": "R-1", "outcome": map[string]any{"winningRunnerId": 1, "runnerName": "x", "payout": "2"},
	})
	m = apply(t, m, "betting_phase", map[string]any{"roundId": "R-2", "duration": 15000})

	require.Equal(t, "betting", m.phase)
	require.Empty(t, m.positions)
	require.Nil(t, m.lastEnd)
	require.Empty(t, m.results)
}

func TestModelQuitKey(t *testing.T) {
	m := NewModel()
	_, cmd := m.Update(tea.KeyMsg{Type: tea.KeyRunes, Runes: []rune("q")})
	require.NotNil(t, cmd)
}

func TestModelIgnoresMalformedPayload(t *testing.T) {
	m := NewModel()
	next, _ := m.Update(EventMsg{Name: "round_tick", Data: []byte("{broken")})
	require.Equal(t, m.phase, next.(Model).phase)
}
