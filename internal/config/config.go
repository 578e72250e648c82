package config

import (
	"fmt"
	"net/url"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/shopspring/decimal"
)

const (
	// DatabaseSchemePostgres is the postgres database scheme identifier
	DatabaseSchemePostgres = "postgres"
)

type Config struct {
	Port           string
	ProviderSecret string // shared secret for signing settlement callbacks
	DBDialect      string // postgres only
	DBDsn          string // DSN string passed to GORM driver
	Debug          bool

	// Round timing
	BettingWindow time.Duration
	RaceDuration  time.Duration
	TickInterval  time.Duration
	RoundDelay    time.Duration
	GraceWindow   time.Duration

	// Wager limits
	MinBet decimal.Decimal
	MaxBet decimal.Decimal

	// Fairness chain
	ChainLength  int
	HistoryLimit int

	// Sessions
	SessionExpiry  time.Duration
	DefaultBalance decimal.Decimal // local-test mode only, no ledger configured

	// Settlement callbacks
	CallbackTimeout    time.Duration
	CallbackRetries    int
	CallbackRetryDelay time.Duration
}

func getenv(key, def string) string {
	v := os.Getenv(key)
	if v == "" {
		return def
	}
	return v
}

func getenvBool(key string, def bool) bool {
	v := os.Getenv(key)
	if v == "" {
		return def
	}
	return v == "true" || v == "1" || v == "yes" || v == "on"
}

func getenvInt(key string, def int) int {
	v := os.Getenv(key)
	if v == "" {
		return def
	}
	n, err := strconv.Atoi(v)
	if err != nil {
		fmt.Fprintf(os.Stderr, "warning: invalid %s=%q, using default %d\n", key, v, def)
		return def
	}
	return n
}

// getenvMillis reads a duration expressed as integer milliseconds.
func getenvMillis(key string, def time.Duration) time.Duration {
	v := os.Getenv(key)
	if v == "" {
		return def
	}
	n, err := strconv.ParseInt(v, 10, 64)
	if err != nil {
		fmt.Fprintf(os.Stderr, "warning: invalid %s=%q, using default %s\n", key, v, def)
		return def
	}
	return time.Duration(n) * time.Millisecond
}

func getenvDecimal(key string, def decimal.Decimal) decimal.Decimal {
	v := os.Getenv(key)
	if v == "" {
		return def
	}
	d, err := decimal.NewFromString(v)
	if err != nil {
		fmt.Fprintf(os.Stderr, "warning: invalid %s=%q, using default %s\n", key, v, def)
		return def
	}
	return d
}

// parseDatabaseURL interprets DATABASE_URL and returns (dialect, dsn).
// Supported schemes: postgres, postgresql.
func parseDatabaseURL(databaseURL string) (string, string, error) {
	u, err := url.Parse(databaseURL)
	if err != nil {
		return "", "", err
	}
	scheme := strings.ToLower(u.Scheme)
	switch scheme {
	case DatabaseSchemePostgres, "postgresql":
		// GORM postgres driver accepts URL DSN as-is
		return DatabaseSchemePostgres, databaseURL, nil
	default:
		return "", "", fmt.Errorf("unsupported DATABASE_URL scheme: %s", u.Scheme)
	}
}

func Load() Config {
	cfg := Config{
		Port:           getenv("PORT", "3000"),
		ProviderSecret: getenv("PROVIDER_SECRET", "horse-race-secret-key"),
		Debug:          getenvBool("DEBUG", false),

		BettingWindow: getenvMillis("BETTING_PHASE_MS", 15*time.Second),
		RaceDuration:  getenvMillis("RACE_DURATION_MS", 8*time.Second),
		TickInterval:  getenvMillis("TICK_INTERVAL_MS", 50*time.Millisecond),
		RoundDelay:    getenvMillis("ROUND_DELAY_MS", 5*time.Second),
		GraceWindow:   getenvMillis("BET_GRACE_PERIOD_MS", 2*time.Second),

		MinBet: getenvDecimal("MIN_BET", decimal.NewFromInt(1)),
		MaxBet: getenvDecimal("MAX_BET", decimal.NewFromInt(100000000000)),

		ChainLength:  getenvInt("SEED_CHAIN_LENGTH", 10000),
		HistoryLimit: getenvInt("HISTORY_LIMIT", 50),

		SessionExpiry:  getenvMillis("SESSION_EXPIRY_MS", 24*time.Hour),
		DefaultBalance: getenvDecimal("DEFAULT_BALANCE", decimal.NewFromInt(1000)),

		CallbackTimeout:    getenvMillis("CALLBACK_TIMEOUT_MS", 10*time.Second),
		CallbackRetries:    getenvInt("CALLBACK_RETRY_ATTEMPTS", 3),
		CallbackRetryDelay: getenvMillis("CALLBACK_RETRY_DELAY_MS", time.Second),
	}

	if dbURL := strings.TrimSpace(os.Getenv("DATABASE_URL")); dbURL != "" {
		if dialect, dsn, err := parseDatabaseURL(dbURL); err == nil {
			cfg.DBDialect = dialect
			cfg.DBDsn = dsn
		} else {
			fmt.Fprintf(os.Stderr, "warning: invalid DATABASE_URL, disabling journal: %v\n", err)
		}
	}

	return cfg
}

func (c Config) String() string {
	return fmt.Sprintf("port=%s db=%s betting=%s race=%s", c.Port, c.DBDialect, c.BettingWindow, c.RaceDuration)
}

// DebugString returns a human-friendly configuration string with masked secrets.
func (c Config) DebugString() string {
	return fmt.Sprintf(
		"port=%s db=%s dsn=%s betting=%s race=%s tick=%s delay=%s grace=%s chain=%d retries=%d",
		c.Port,
		c.DBDialect,
		maskDSN(c.DBDialect, c.DBDsn),
		c.BettingWindow,
		c.RaceDuration,
		c.TickInterval,
		c.RoundDelay,
		c.GraceWindow,
		c.ChainLength,
		c.CallbackRetries,
	)
}

func maskDSN(dialect, dsn string) string {
	switch strings.ToLower(dialect) {
	case DatabaseSchemePostgres:
		if u, err := url.Parse(dsn); err == nil && u.Scheme != "" {
			if u.User != nil {
				username := u.User.Username()
				u.User = url.User(username)
			}
			return u.String()
		}
		// Fallback for DSN as key-value list
		parts := strings.Fields(dsn)
		for i, p := range parts {
			lower := strings.ToLower(p)
			if strings.HasPrefix(lower, "password=") {
				parts[i] = "password=***"
			}
		}
		return strings.Join(parts, " ")
	default:
		return dsn
	}
}
