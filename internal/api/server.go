// Package api exposes the provider over HTTP: session bootstrap, wager
// placement, game state, fairness verification and the SSE event stream.
package api

import (
	"errors"
	"net/http"
	"strconv"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/shopspring/decimal"

	"race-provider/internal/betting"
	"race-provider/internal/engine"
	"race-provider/internal/fairness"
	"race-provider/internal/logger"
	"race-provider/internal/scheduler"
	"race-provider/internal/session"
	"race-provider/internal/settlement"
)

// Server holds the wired subsystems behind the gin handlers.
type Server struct {
	engine   *engine.Engine
	chain    *fairness.Chain
	bets     *betting.Service
	sessions *session.Store
	hub      *scheduler.Hub
	log      *logger.Logger
}

type Options struct {
	Engine   *engine.Engine
	Chain    *fairness.Chain
	Bets     *betting.Service
	Sessions *session.Store
	Hub      *scheduler.Hub
	Log      *logger.Logger
}

func NewServer(opts Options) *Server {
	return &Server{
		engine:   opts.Engine,
		chain:    opts.Chain,
		bets:     opts.Bets,
		sessions: opts.Sessions,
		hub:      opts.Hub,
		log:      opts.Log,
	}
}

// Router builds the gin engine with all routes attached.
func (s *Server) Router() *gin.Engine {
	r := gin.New()
	r.Use(gin.Recovery())

	r.GET("/health", s.health)
	r.POST("/session/init", s.initSession)
	r.GET("/session/:id", s.getSession)
	r.GET("/session/:id/balance", s.getBalance)
	r.POST("/bet", s.placeBet)
	r.GET("/game/state", s.gameState)
	r.GET("/game/history", s.gameHistory)
	r.GET("/provably-fair", s.provablyFair)
	r.POST("/provably-fair/verify", s.verifyOutcome)
	r.GET("/stream", s.stream)
	return r
}

func (s *Server) health(c *gin.Context) {
	c.JSON(http.StatusOK, gin.H{"status": "ok"})
}

type initSessionRequest struct {
	PlayerID        string `json:"playerId" binding:"required"`
	Currency        string `json:"currency"`
	CallbackBaseURL string `json:"callbackUrl"`
	Token           string `json:"token"`
}

func (s *Server) initSession(c *gin.Context) {
	var req initSessionRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "bad payload"})
		return
	}
	sess := s.bets.OpenSession(c.Request.Context(), req.PlayerID, req.Currency, req.CallbackBaseURL, req.Token)
	c.JSON(http.StatusOK, sess)
}

func (s *Server) getSession(c *gin.Context) {
	sess, ok := s.sessions.Get(c.Param("id"))
	if !ok {
		c.JSON(http.StatusNotFound, gin.H{"error": "session not found"})
		return
	}
	c.JSON(http.StatusOK, sess)
}

func (s *Server) getBalance(c *gin.Context) {
	balance, err := s.bets.RefreshBalance(c.Request.Context(), c.Param("id"))
	if err != nil {
		c.JSON(http.StatusNotFound, gin.H{"error": "session not found"})
		return
	}
	c.JSON(http.StatusOK, gin.H{"balance": balance})
}

type betRequest struct {
	SessionID string          `json:"sessionId" binding:"required"`
	Amount    decimal.Decimal `json:"amount"`
	RunnerID  int             `json:"runnerId"`
	ClaimedAt int64           `json:"claimedAt"` // optional client-side unix ms
}

func (s *Server) placeBet(c *gin.Context) {
	var req betRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "bad payload"})
		return
	}
	res, err := s.bets.PlaceBet(c.Request.Context(), req.SessionID, req.Amount, req.RunnerID, unixMillisOrZero(req.ClaimedAt))
	if err != nil {
		status, reason := betRejection(err)
		c.JSON(status, gin.H{"error": reason})
		return
	}
	c.JSON(http.StatusOK, res)
}

// betRejection maps placement failures onto distinct reason strings so a
// client can tell a validation problem from a closed round or a ledger
// refusal.
func betRejection(err error) (int, string) {
	switch {
	case errors.Is(err, betting.ErrInvalidSession):
		return http.StatusUnauthorized, "invalid or expired session"
	case errors.Is(err, betting.ErrBadAmount):
		return http.StatusBadRequest, "bet amount out of bounds"
	case errors.Is(err, betting.ErrInsufficientBalance):
		return http.StatusBadRequest, "insufficient balance"
	case errors.Is(err, engine.ErrNoOpenRound):
		return http.StatusBadRequest, "no open round"
	case errors.Is(err, engine.ErrBettingClosed):
		return http.StatusBadRequest, "betting closed"
	case errors.Is(err, engine.ErrDuplicateWager):
		return http.StatusBadRequest, "bet already placed this round"
	case errors.Is(err, engine.ErrUnknownSelection):
		return http.StatusBadRequest, "unknown runner"
	case errors.Is(err, settlement.ErrRejected):
		return http.StatusBadRequest, "rejected by platform"
	case errors.Is(err, settlement.ErrUnavailable):
		return http.StatusBadGateway, "settlement platform unavailable"
	default:
		return http.StatusInternalServerError, "internal error"
	}
}

func (s *Server) gameState(c *gin.Context) {
	c.JSON(http.StatusOK, s.engine.Snapshot())
}

func (s *Server) gameHistory(c *gin.Context) {
	limit := 0
	if raw := c.Query("limit"); raw != "" {
		n, err := strconv.Atoi(raw)
		if err != nil || n < 0 {
			c.JSON(http.StatusBadRequest, gin.H{"error": "bad limit"})
			return
		}
		limit = n
	}
	c.JSON(http.StatusOK, gin.H{"rounds": s.engine.History(limit)})
}

func (s *Server) provablyFair(c *gin.Context) {
	c.JSON(http.StatusOK, s.chain.PublicData())
}

type verifyRequest struct {
	ServerSeed string `json:"serverSeed" binding:"required"`
	ClientSeed string `json:"clientSeed" binding:"required"`
	Nonce      uint64 `json:"nonce"`
}

func (s *Server) verifyOutcome(c *gin.Context) {
	var req verifyRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "bad payload"})
		return
	}
	outcome := fairness.Verify(req.ServerSeed, req.ClientSeed, req.Nonce, s.engine.Runners())
	c.JSON(http.StatusOK, outcome)
}

// unixMillisOrZero keeps an absent client timestamp as the zero time, which
// the engine treats as "no claim".
func unixMillisOrZero(ms int64) time.Time {
	if ms == 0 {
		return time.Time{}
	}
	return time.UnixMilli(ms)
}
