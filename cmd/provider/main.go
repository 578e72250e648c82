// Package main provides the entry point for the race provider server.
package main

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/joho/godotenv"

	"race-provider/internal/api"
	"race-provider/internal/betting"
	"race-provider/internal/config"
	dbpkg "race-provider/internal/db"
	"race-provider/internal/engine"
	"race-provider/internal/fairness"
	"race-provider/internal/logger"
	"race-provider/internal/scheduler"
	"race-provider/internal/session"
	"race-provider/internal/settlement"
)

func main() {
	// Try to load .env from CWD if present; otherwise use environment as-is
	if _, statErr := os.Stat(".env"); statErr == nil {
		_ = godotenv.Load(".env")
	}

	cfg := config.Load()
	log := logger.New(cfg.Debug)

	fmt.Printf("Race provider starting...\n")
	fmt.Printf("Config loaded: %s\n", cfg.DebugString())

	gormDB, err := dbpkg.Open(cfg)
	if err != nil {
		log.Fatalf("failed to connect database: %v", err)
	}
	if gormDB != nil {
		if err := dbpkg.AutoMigrate(gormDB); err != nil {
			log.Fatalf("failed to run migrations: %v", err)
		}
		log.Printf("audit journal connected, migrations applied")
	} else {
		log.Printf("DATABASE_URL not provided – audit journal disabled")
	}

	ctx, cancel := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer cancel()

	runners := fairness.DefaultRunners()
	chain := fairness.NewChain(cfg.ChainLength)
	eng := engine.New(engine.Options{
		Runners:       runners,
		BettingWindow: cfg.BettingWindow,
		GraceWindow:   cfg.GraceWindow,
		RaceDuration:  cfg.RaceDuration,
		TickInterval:  cfg.TickInterval,
		HistoryLimit:  cfg.HistoryLimit,
	})

	gateway := settlement.NewGateway(cfg.ProviderSecret, cfg.CallbackTimeout, settlement.RetryPolicy{
		MaxAttempts: cfg.CallbackRetries,
		BaseDelay:   cfg.CallbackRetryDelay,
	}, log.WithPrefix("settlement"))

	sessions := session.NewStore(cfg.SessionExpiry)
	go sessions.CleanupLoop(ctx)

	bets := betting.New(betting.Options{
		Engine:         eng,
		Sessions:       sessions,
		Gateway:        gateway,
		Journal:        gormDB,
		Log:            log.WithPrefix("betting"),
		MinBet:         cfg.MinBet,
		MaxBet:         cfg.MaxBet,
		DefaultBalance: cfg.DefaultBalance,
	})

	hub := scheduler.NewHub(256, log.WithPrefix("hub"))
	sched := scheduler.New(scheduler.Options{
		Engine:        eng,
		Chain:         chain,
		Hub:           hub,
		Bets:          bets,
		Journal:       gormDB,
		Log:           log.WithPrefix("scheduler"),
		BettingWindow: cfg.BettingWindow,
		RaceDuration:  cfg.RaceDuration,
		TickInterval:  cfg.TickInterval,
		RoundDelay:    cfg.RoundDelay,
		HistoryLimit:  cfg.HistoryLimit,
	})
	go func() {
		if err := sched.Run(ctx); err != nil {
			log.Errorf("scheduler stopped: %v", err)
			cancel()
		}
	}()

	srv := api.NewServer(api.Options{
		Engine:   eng,
		Chain:    chain,
		Bets:     bets,
		Sessions: sessions,
		Hub:      hub,
		Log:      log.WithPrefix("api"),
	})
	httpServer := &http.Server{
		Addr:    ":" + cfg.Port,
		Handler: srv.Router(),
	}
	go func() {
		log.Printf("listening on :%s", cfg.Port)
		if err := httpServer.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			log.Errorf("http server: %v", err)
			cancel()
		}
	}()

	<-ctx.Done()
	log.Println("shutting down...")

	shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer shutdownCancel()
	if err := httpServer.Shutdown(shutdownCtx); err != nil {
		log.Errorf("shutdown: %v", err)
	}
}
