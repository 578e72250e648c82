// Package console implements the operator TUI. It consumes the provider's
// event stream and renders the live round state in the terminal.
package console

import (
	"encoding/json"
	"fmt"
	"strings"
	"time"

	tea "github.com/charmbracelet/bubbletea"
	"github.com/charmbracelet/lipgloss"
	"github.com/mattn/go-runewidth"
	"github.com/shopspring/decimal"

	"race-provider/internal/scheduler"
)

func padToWidth(s string, width int) string {
	current := runewidth.StringWidth(s)
	if current >= width {
		return s
	}
	return s + strings.Repeat(" ", width-current)
}

func truncToWidth(s string, width int) string {
	if runewidth.StringWidth(s) <= width {
		return s
	}
	out := ""
	for _, r := range s {
		if runewidth.StringWidth(out+string(r)) > width-1 {
			break
		}
		out += string(r)
	}
	return out + "…"
}

var (
	titleStyle  = lipgloss.NewStyle().Bold(true).Foreground(lipgloss.Color("212"))
	phaseStyle  = lipgloss.NewStyle().Bold(true).Foreground(lipgloss.Color("208"))
	dimStyle    = lipgloss.NewStyle().Foreground(lipgloss.Color("241"))
	winStyle    = lipgloss.NewStyle().Bold(true).Foreground(lipgloss.Color("42"))
	borderStyle = lipgloss.NewStyle().Border(lipgloss.RoundedBorder()).Padding(0, 1)
)

// EventMsg carries one decoded stream event into the bubbletea loop.
type EventMsg struct {
	Name string
	Data json.RawMessage
}

// StreamErrMsg reports a broken stream connection.
type StreamErrMsg struct{ Err error }

type tickMsg time.Time

type resultLine struct {
	participant string
	won         bool
	payout      decimal.Decimal
}

// Model holds everything the console renders.
type Model struct {
	width, height int

	phase         string
	roundID       string
	phaseDeadline time.Time
	commitment    string

	odds      []runnerOdds
	positions []scheduler.TickPosition
	lastEnd   *scheduler.RoundEndPayload
	results   []resultLine
	history   []historyLine
	streamErr error
}

type runnerOdds struct {
	id     int
	name   string
	color  string
	payout decimal.Decimal
}

type historyLine struct {
	roundID string
	winner  string
	payout  decimal.Decimal
}

func NewModel() Model {
	return Model{phase: "connecting"}
}

func (m Model) Init() tea.Cmd {
	return tickEvery()
}

func tickEvery() tea.Cmd {
	return tea.Tick(250*time.Millisecond, func(t time.Time) tea.Msg { return tickMsg(t) })
}

func (m Model) Update(msg tea.Msg) (tea.Model, tea.Cmd) {
	switch msg := msg.(type) {
	case tea.WindowSizeMsg:
		m.width = msg.Width
		m.height = msg.Height
		return m, nil

	case tea.KeyMsg:
		switch msg.String() {
		case "q", "ctrl+c", "esc":
			return m, tea.Quit
		}
		return m, nil

	case tickMsg:
		return m, tickEvery()

	case StreamErrMsg:
		m.streamErr = msg.Err
		return m, nil

	case EventMsg:
		return m.applyEvent(msg), nil
	}
	return m, nil
}

func (m Model) applyEvent(msg EventMsg) Model {
	switch msg.Name {
	case scheduler.EventBettingPhase:
		var p scheduler.BettingPhasePayload
		if json.Unmarshal(msg.Data, &p) != nil {
			return m
		}
		m.phase = "betting"
		m.roundID = p.RoundID
		m.phaseDeadline = time.Now().Add(time.Duration(p.DurationMs) * time.Millisecond)
		m.commitment = p.Commitment
		m.positions = nil
		m.results = nil
		m.lastEnd = nil
		m.odds = m.odds[:0]
		for _, r := range p.Runners {
			m.odds = append(m.odds, runnerOdds{id: r.ID, name: r.Name, color: r.Color, payout: r.Payout})
		}

	case scheduler.EventRoundStart:
		var p scheduler.RoundStartPayload
		if json.Unmarshal(msg.Data, &p) != nil {
			return m
		}
		m.phase = "running"
		m.roundID = p.RoundID
		m.phaseDeadline = time.Now().Add(time.Duration(p.DurationMs) * time.Millisecond)

	case scheduler.EventRoundTick:
		var p scheduler.RoundTickPayload
		if json.Unmarshal(msg.Data, &p) != nil {
			return m
		}
		m.positions = p.Positions

	case scheduler.EventRoundEnd:
		var p scheduler.RoundEndPayload
		if json.Unmarshal(msg.Data, &p) != nil {
			return m
		}
		m.phase = "ended"
		m.lastEnd = &p

	case scheduler.EventRoundResult:
		var p scheduler.RoundResultPayload
		if json.Unmarshal(msg.Data, &p) != nil {
			return m
		}
		m.results = append(m.results, resultLine{participant: p.ParticipantID, won: p.Won, payout: p.Payout})

	case scheduler.EventHistory:
		var p scheduler.HistoryPayload
		if json.Unmarshal(msg.Data, &p) != nil {
			return m
		}
		m.history = m.history[:0]
		for _, h := range p.Rounds {
			m.history = append(m.history, historyLine{roundID: h.RoundID, winner: h.Outcome.Name, payout: h.Outcome.Payout})
		}
	}
	return m
}

func (m Model) View() string {
	if m.width == 0 {
		return "Loading..."
	}

	var b strings.Builder
	b.WriteString(titleStyle.Render("race provider console"))
	b.WriteString("\n")
	b.WriteString(m.renderStatus())
	b.WriteString("\n")
	b.WriteString(m.renderOdds())
	if len(m.positions) > 0 {
		b.WriteString("\n")
		b.WriteString(m.renderLeaderboard())
	}
	if m.lastEnd != nil {
		b.WriteString("\n")
		b.WriteString(m.renderOutcome())
	}
	if len(m.history) > 0 {
		b.WriteString("\n")
		b.WriteString(m.renderHistory())
	}
	if m.streamErr != nil {
		b.WriteString("\n")
		b.WriteString(dimStyle.Render(fmt.Sprintf("stream error: %v (reconnecting)", m.streamErr)))
	}
	return b.String()
}

func (m Model) renderStatus() string {
	countdown := ""
	if !m.phaseDeadline.IsZero() {
		remaining := time.Until(m.phaseDeadline)
		if remaining > 0 {
			countdown = fmt.Sprintf(" %.1fs", remaining.Seconds())
		}
	}
	line := fmt.Sprintf("%s%s  round %s", phaseStyle.Render(m.phase), countdown, m.roundID)
	if m.commitment != "" {
		line += dimStyle.Render(fmt.Sprintf("  commit %s…", shortHash(m.commitment)))
	}
	return line
}

func (m Model) renderOdds() string {
	if len(m.odds) == 0 {
		return dimStyle.Render("waiting for betting phase")
	}
	var rows []string
	for _, r := range m.odds {
		name := lipgloss.NewStyle().Foreground(lipgloss.Color(r.color)).Render(padToWidth(truncToWidth(r.name, 14), 14))
		rows = append(rows, fmt.Sprintf("%2d  %s  x%s", r.id, name, r.payout.StringFixed(2)))
	}
	return borderStyle.Render(strings.Join(rows, "\n"))
}

func (m Model) renderLeaderboard() string {
	barWidth := m.width - 30
	if barWidth < 10 {
		barWidth = 10
	}
	var rows []string
	for _, pos := range m.positions {
		filled := int(pos.Position / 100 * float64(barWidth))
		if filled > barWidth {
			filled = barWidth
		}
		bar := strings.Repeat("█", filled) + strings.Repeat("░", barWidth-filled)
		name := padToWidth(truncToWidth(pos.Name, 14), 14)
		rows = append(rows, fmt.Sprintf("%s %s %5.1f", name, lipgloss.NewStyle().Foreground(lipgloss.Color(pos.Color)).Render(bar), pos.Position))
	}
	return strings.Join(rows, "\n")
}

func (m Model) renderOutcome() string {
	end := m.lastEnd
	line := winStyle.Render(fmt.Sprintf("winner: %s (x%s)", end.Outcome.Name, end.Outcome.Payout.StringFixed(2)))
	line += dimStyle.Render(fmt.Sprintf("  seed %s… nonce %d", shortHash(end.ServerSeed), end.Nonce))
	if len(m.results) > 0 {
		wins := 0
		for _, r := range m.results {
			if r.won {
				wins++
			}
		}
		line += fmt.Sprintf("\nsettled %d bets, %d winners", len(m.results), wins)
	}
	return line
}

func (m Model) renderHistory() string {
	max := 8
	if len(m.history) < max {
		max = len(m.history)
	}
	parts := make([]string, 0, max)
	for _, h := range m.history[:max] {
		parts = append(parts, fmt.Sprintf("%s x%s", truncToWidth(h.winner, 12), h.payout.StringFixed(2)))
	}
	return dimStyle.Render("recent: " + strings.Join(parts, " · "))
}

func shortHash(s string) string {
	if len(s) > 12 {
		return s[:12]
	}
	return s
}
