package engine

import (
	"math"
	"math/rand"
	"time"

	"race-provider/internal/fairness"
)

// The race progression is purely cosmetic: it consumes the already-frozen
// outcome and produces smooth per-tick positions for display. math/rand is
// fine here; nothing below affects who wins or what is paid.

type raceStyle int

const (
	stylePhotoFinish raceStyle = iota
	styleComeFromBehind
	styleWireToWire
	styleMidRaceDuel
)

// Track holds one runner's per-tick positions on a 0..100 course.
type Track struct {
	ID        int     `json:"id"`
	Name      string  `json:"name"`
	Color     string  `json:"color"`
	Final     float64 `json:"-"`
	Positions []float64
}

// Progression is the full display plan for a race.
type Progression struct {
	Tracks     []Track
	TotalTicks int
}

type pace struct {
	delay          float64
	phase1, phase2, phase3 float64
	hasSurge       bool
	surgePoint     float64
	surgeStrength  float64
}

func buildProgression(outcome fairness.Outcome, runners []fairness.Runner, duration, tickInterval time.Duration) Progression {
	ticks := int(duration / tickInterval)
	if ticks < 1 {
		ticks = 1
	}

	style := pickStyle()
	challenger := pickChallenger(runners, outcome.WinnerID)

	tracks := make([]Track, len(runners))
	paces := make([]pace, len(runners))
	for i, r := range runners {
		isWinner := r.ID == outcome.WinnerID
		isChallenger := r.ID == challenger
		tracks[i] = Track{
			ID:        r.ID,
			Name:      r.Name,
			Color:     r.Color,
			Final:     finalPosition(style, isWinner, isChallenger),
			Positions: make([]float64, 0, ticks+1),
		}
		paces[i] = newPace(style, isWinner, isChallenger)
	}

	for tick := 0; tick <= ticks; tick++ {
		progress := float64(tick) / float64(ticks)
		for i := range tracks {
			pos := paces[i].positionAt(progress, tracks[i].Final)
			// Strictly monotonic: horses never run backwards on screen.
			if n := len(tracks[i].Positions); n > 0 && pos < tracks[i].Positions[n-1]+0.05 {
				pos = tracks[i].Positions[n-1] + 0.05
			}
			if pos > tracks[i].Final {
				pos = tracks[i].Final
			}
			tracks[i].Positions = append(tracks[i].Positions, pos)
		}
	}

	// Exact finish: the frozen winner crosses at 100, everyone else below.
	for i := range tracks {
		tracks[i].Positions[len(tracks[i].Positions)-1] = tracks[i].Final
	}

	return Progression{Tracks: tracks, TotalTicks: ticks + 1}
}

func pickStyle() raceStyle {
	switch v := rand.Float64(); {
	case v < 0.3:
		return stylePhotoFinish
	case v < 0.5:
		return styleComeFromBehind
	case v < 0.7:
		return styleWireToWire
	default:
		return styleMidRaceDuel
	}
}

func pickChallenger(runners []fairness.Runner, winnerID int) int {
	others := make([]int, 0, len(runners)-1)
	for _, r := range runners {
		if r.ID != winnerID {
			others = append(others, r.ID)
		}
	}
	if len(others) == 0 {
		return winnerID
	}
	return others[rand.Intn(len(others))]
}

func finalPosition(style raceStyle, isWinner, isChallenger bool) float64 {
	switch {
	case isWinner:
		return 100
	case isChallenger && (style == stylePhotoFinish || style == styleMidRaceDuel):
		return 97 + rand.Float64()*2.5
	case style == stylePhotoFinish:
		return 94 + rand.Float64()*5
	default:
		return 88 + rand.Float64()*9
	}
}

func newPace(style raceStyle, isWinner, isChallenger bool) pace {
	p := pace{
		delay:         rand.Float64() * 0.025,
		hasSurge:      rand.Float64() < 0.6,
		surgePoint:    0.3 + rand.Float64()*0.5,
		surgeStrength: 0.05 + rand.Float64()*0.1,
	}
	switch {
	case isWinner && style == styleComeFromBehind:
		p.phase1, p.phase2, p.phase3 = jitter(0.85, 0.1), jitter(0.95, 0.1), jitter(1.15, 0.1)
	case isWinner && style == styleWireToWire:
		p.phase1, p.phase2, p.phase3 = jitter(1.1, 0.1), jitter(1.0, 0.1), jitter(1.0, 0.1)
	case isWinner:
		p.phase1, p.phase2, p.phase3 = jitter(0.95, 0.15), jitter(1.0, 0.1), jitter(1.1, 0.1)
	case isChallenger && (style == styleMidRaceDuel || style == stylePhotoFinish):
		p.phase1, p.phase2, p.phase3 = jitter(1.0, 0.15), jitter(1.05, 0.1), jitter(0.95, 0.1)
	case isChallenger:
		p.phase1, p.phase2, p.phase3 = jitter(1.05, 0.1), jitter(0.95, 0.1), jitter(0.9, 0.1)
	default:
		// Random personality: front runner, steady pacer or closer.
		switch v := rand.Float64(); {
		case v < 0.33:
			p.phase1, p.phase2, p.phase3 = jitter(1.05, 0.1), jitter(0.95, 0.1), jitter(0.85, 0.1)
		case v < 0.66:
			p.phase1, p.phase2, p.phase3 = jitter(0.95, 0.1), jitter(0.95, 0.1), jitter(0.95, 0.1)
		default:
			p.phase1, p.phase2, p.phase3 = jitter(0.88, 0.1), jitter(0.98, 0.1), jitter(1.05, 0.1)
		}
	}
	return p
}

func jitter(base, spread float64) float64 {
	return base + rand.Float64()*spread
}

// positionAt maps race progress in [0,1] to a course position, easing out of
// the gate and into the final stretch across three pace phases.
func (p pace) positionAt(progress, final float64) float64 {
	adj := (progress - p.delay) / (1 - p.delay)
	if adj <= 0 {
		return 0
	}
	if adj > 1 {
		adj = 1
	}

	total := 0.4*p.phase1 + 0.4*p.phase2 + 0.2*p.phase3
	var acc float64
	switch {
	case adj <= 0.4:
		acc = easeOutQuad(adj/0.4) * 0.4 * p.phase1
	case adj <= 0.8:
		acc = 0.4*p.phase1 + (adj-0.4)/0.4*0.4*p.phase2
	default:
		acc = 0.4*p.phase1 + 0.4*p.phase2 + easeInQuad((adj-0.8)/0.2)*0.2*p.phase3
	}
	pos := acc / total * final

	if p.hasSurge && progress > p.surgePoint && progress < p.surgePoint+0.15 {
		surgeProgress := (progress - p.surgePoint) / 0.15
		pos += math.Sin(surgeProgress*math.Pi) * p.surgeStrength * final
	}
	return pos
}

func easeInQuad(t float64) float64  { return t * t }
func easeOutQuad(t float64) float64 { return 1 - (1-t)*(1-t) }
