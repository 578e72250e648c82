package api

import (
	"bufio"
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/require"

	"race-provider/internal/betting"
	"race-provider/internal/engine"
	"race-provider/internal/fairness"
	"race-provider/internal/logger"
	"race-provider/internal/scheduler"
	"race-provider/internal/session"
	"race-provider/internal/settlement"
)

type stubGateway struct{}

func (stubGateway) SubmitWager(context.Context, session.Session, string, decimal.Decimal, int) (settlement.Response, error) {
	return settlement.Response{}, settlement.ErrUnavailable
}

func (stubGateway) CreditWin(context.Context, session.Session, string, decimal.Decimal, decimal.Decimal, decimal.Decimal, string) (settlement.Response, error) {
	return settlement.Response{}, settlement.ErrUnavailable
}

func (stubGateway) RollbackWager(context.Context, session.Session, string, decimal.Decimal, string, string) error {
	return settlement.ErrUnavailable
}

func (stubGateway) QueryBalance(context.Context, session.Session) (settlement.Response, error) {
	return settlement.Response{}, settlement.ErrUnavailable
}

type fixture struct {
	router *gin.Engine
	engine *engine.Engine
	chain  *fairness.Chain
	hub    *scheduler.Hub
	bets   *betting.Service
}

func newFixture(t *testing.T) *fixture {
	t.Helper()
	gin.SetMode(gin.TestMode)
	log := logger.NewWithWriter(false, io.Discard)
	eng := engine.New(engine.Options{
		Runners:       fairness.DefaultRunners(),
		BettingWindow: 15 * time.Second,
		GraceWindow:   2 * time.Second,
		RaceDuration:  8 * time.Second,
		TickInterval:  50 * time.Millisecond,
	})
	chain := fairness.NewChain(32)
	sessions := session.NewStore(time.Hour)
	bets := betting.New(betting.Options{
		Engine:         eng,
		Sessions:       sessions,
		Gateway:        stubGateway{},
		Log:            log,
		MinBet:         decimal.NewFromInt(1),
		MaxBet:         decimal.NewFromInt(500),
		DefaultBalance: decimal.NewFromInt(1000),
	})
	hub := scheduler.NewHub(16, log)
	srv := NewServer(Options{
		Engine:   eng,
		Chain:    chain,
		Bets:     bets,
		Sessions: sessions,
		Hub:      hub,
		Log:      log,
	})
	return &fixture{router: srv.Router(), engine: eng, chain: chain, hub: hub, bets: bets}
}

func (f *fixture) do(t *testing.T, method, path string, body any) *httptest.ResponseRecorder {
	t.Helper()
	var reader io.Reader
	if body != nil {
		raw, err := json.Marshal(body)
		require.NoError(t, err)
		reader = bytes.NewReader(raw)
	}
	req := httptest.NewRequest(method, path, reader)
	if body != nil {
		req.Header.Set("Content-Type", "application/json")
	}
	w := httptest.NewRecorder()
	f.router.ServeHTTP(w, req)
	return w
}

func (f *fixture) openRound(t *testing.T) {
	t.Helper()
	_, err := f.engine.OpenRound(f.chain.VerificationData())
	require.NoError(t, err)
}

func (f *fixture) newSession(t *testing.T) string {
	t.Helper()
	w := f.do(t, http.MethodPost, "/session/init", gin.H{"playerId": "alice"})
	require.Equal(t, http.StatusOK, w.Code)
	var sess struct {
		SessionID string `json:"sessionId"`
	}
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &sess))
	require.True(t, strings.HasPrefix(sess.SessionID, "SESSION-"))
	return sess.SessionID
}

func TestHealth(t *testing.T) {
	f := newFixture(t)
	w := f.do(t, http.MethodGet, "/health", nil)
	require.Equal(t, http.StatusOK, w.Code)
}

func TestSessionInitAndLookup(t *testing.T) {
	f := newFixture(t)
	id := f.newSession(t)

	w := f.do(t, http.MethodGet, "/session/"+id, nil)
	require.Equal(t, http.StatusOK, w.Code)
	var sess struct {
		PlayerID string `json:"playerId"`
		Balance  string `json:"balance"`
	}
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &sess))
	require.Equal(t, "alice", sess.PlayerID)
	require.Equal(t, "1000", sess.Balance)

	w = f.do(t, http.MethodGet, "/session/SESSION-nope", nil)
	require.Equal(t, http.StatusNotFound, w.Code)
}

func TestSessionInitRequiresPlayerID(t *testing.T) {
	f := newFixture(t)
	w := f.do(t, http.MethodPost, "/session/init", gin.H{"currency": "EUR"})
	require.Equal(t, http.StatusBadRequest, w.Code)
}

func TestPlaceBetLocalMode(t *testing.T) {
	f := newFixture(t)
	f.openRound(t)
	id := f.newSession(t)

	w := f.do(t, http.MethodPost, "/bet", gin.H{"sessionId": id, "amount": "50", "runnerId": 3})
	require.Equal(t, http.StatusOK, w.Code)
	var res struct {
		BetID      string `json:"betId"`
		NewBalance string `json:"newBalance"`
	}
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &res))
	require.NotEmpty(t, res.BetID)
	require.Equal(t, "950", res.NewBalance)
}

func TestPlaceBetRejectionReasons(t *testing.T) {
	f := newFixture(t)
	id := f.newSession(t)

	cases := []struct {
		name   string
		body   gin.H
		code   int
		reason string
	}{
		{"unknown session", gin.H{"sessionId": "SESSION-x", "amount": "10", "runnerId": 1}, http.StatusUnauthorized, "invalid or expired session"},
		{"amount too high", gin.H{"sessionId": id, "amount": "9999", "runnerId": 1}, http.StatusBadRequest, "bet amount out of bounds"},
		{"no open round", gin.H{"sessionId": id, "amount": "10", "runnerId": 1}, http.StatusBadRequest, "no open round"},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			w := f.do(t, http.MethodPost, "/bet", tc.body)
			require.Equal(t, tc.code, w.Code)
			var resp struct {
				Error string `json:"error"`
			}
			require.NoError(t, json.Unmarshal(w.Body.Bytes(), &resp))
			require.Equal(t, tc.reason, resp.Error)
		})
	}

	f.openRound(t)
	w := f.do(t, http.MethodPost, "/bet", gin.H{"sessionId": id, "amount": "10", "runnerId": 99})
	require.Equal(t, http.StatusBadRequest, w.Code)
	require.Contains(t, w.Body.String(), "unknown runner")

	w = f.do(t, http.MethodPost, "/bet", gin.H{"sessionId": id, "amount": "10", "runnerId": 1})
	require.Equal(t, http.StatusOK, w.Code)
	w = f.do(t, http.MethodPost, "/bet", gin.H{"sessionId": id, "amount": "10", "runnerId": 2})
	require.Equal(t, http.StatusBadRequest, w.Code)
	require.Contains(t, w.Body.String(), "bet already placed this round")
}

func TestGameState(t *testing.T) {
	f := newFixture(t)
	w := f.do(t, http.MethodGet, "/game/state", nil)
	require.Equal(t, http.StatusOK, w.Code)
	var snap struct {
		Runners []fairness.Runner `json:"runners"`
	}
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &snap))
	require.Len(t, snap.Runners, 6)
}

func TestGameHistoryLimitValidation(t *testing.T) {
	f := newFixture(t)
	w := f.do(t, http.MethodGet, "/game/history?limit=abc", nil)
	require.Equal(t, http.StatusBadRequest, w.Code)
	w = f.do(t, http.MethodGet, "/game/history?limit=5", nil)
	require.Equal(t, http.StatusOK, w.Code)
}

func TestProvablyFairRoundTrip(t *testing.T) {
	f := newFixture(t)
	w := f.do(t, http.MethodGet, "/provably-fair", nil)
	require.Equal(t, http.StatusOK, w.Code)
	var pub fairness.PublicData
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &pub))
	require.Len(t, pub.Commitment, 64)

	vd := f.chain.VerificationData()
	w = f.do(t, http.MethodPost, "/provably-fair/verify", gin.H{
		"serverSeed": vd.ServerSeed,
		"clientSeed": vd.ClientSeed,
		"nonce":      vd.Nonce,
	})
	require.Equal(t, http.StatusOK, w.Code)
	var outcome fairness.Outcome
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &outcome))
	want := fairness.Verify(vd.ServerSeed, vd.ClientSeed, vd.Nonce, fairness.DefaultRunners())
	require.Equal(t, want.WinnerID, outcome.WinnerID)
}

func TestStreamDeliversNamedEvents(t *testing.T) {
	f := newFixture(t)
	ts := httptest.NewServer(f.router)
	defer ts.Close()

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, ts.URL+"/stream", nil)
	require.NoError(t, err)
	resp, err := http.DefaultClient.Do(req)
	require.NoError(t, err)
	defer resp.Body.Close()

	// Wait for the subscription to attach before publishing.
	require.Eventually(t, func() bool { return f.hub.SubscriberCount() == 1 }, time.Second, 5*time.Millisecond)
	f.hub.Publish(scheduler.Event{Name: scheduler.EventRoundStart, Data: scheduler.RoundStartPayload{RoundID: "R-1", DurationMs: 8000}})

	reader := bufio.NewReader(resp.Body)
	var sawEvent, sawData bool
	for i := 0; i < 10 && !(sawEvent && sawData); i++ {
		line, err := reader.ReadString('\n')
		require.NoError(t, err)
		if strings.HasPrefix(line, "event:") {
			require.Contains(t, line, scheduler.EventRoundStart)
			sawEvent = true
		}
		if strings.HasPrefix(line, "data:") {
			require.Contains(t, line, "R-1")
			sawData = true
		}
	}
	require.True(t, sawEvent)
	require.True(t, sawData)
}

func TestBalanceEndpoint(t *testing.T) {
	f := newFixture(t)
	id := f.newSession(t)

	w := f.do(t, http.MethodGet, fmt.Sprintf("/session/%s/balance", id), nil)
	require.Equal(t, http.StatusOK, w.Code)
	require.Contains(t, w.Body.String(), "1000")

	w = f.do(t, http.MethodGet, "/session/SESSION-x/balance", nil)
	require.Equal(t, http.StatusNotFound, w.Code)
}
