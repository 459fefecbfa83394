package config

import (
	"fmt"
	"time"

	"github.com/joho/godotenv"
	"github.com/kelseyhightower/envconfig"
	"github.com/shopspring/decimal"

	"reaper/pkg/errors"
)

type Config struct {
	App           AppConfig
	Postgres      PostgresConfig
	Redis         RedisConfig
	Kafka         KafkaConfig
	API           APIConfig
	Game          GameConfig
	Reset         ResetConfig
	Breaker       BreakerConfig
	Ledger        LedgerConfig
	ErrorTracking ErrorTrackingConfig
	Workers       WorkerConfig
}

type AppConfig struct {
	Name     string `envconfig:"APP_NAME" default:"reaper"`
	Env      string `envconfig:"APP_ENV" default:"development"`
	LogLevel string `envconfig:"LOG_LEVEL" default:"info"`
	Debug    bool   `envconfig:"DEBUG" default:"false"`
}

type PostgresConfig struct {
	Host     string `envconfig:"POSTGRES_HOST" required:"true"`
	Port     int    `envconfig:"POSTGRES_PORT" default:"5432"`
	User     string `envconfig:"POSTGRES_USER" required:"true"`
	Password string `envconfig:"POSTGRES_PASSWORD" required:"true"`
	Database string `envconfig:"POSTGRES_DB" required:"true"`
	SSLMode  string `envconfig:"POSTGRES_SSL_MODE" default:"disable"`
	MaxConns int    `envconfig:"POSTGRES_MAX_CONNS" default:"25"`
}

func (c PostgresConfig) DSN() string {
	return fmt.Sprintf(
		"host=%s port=%d user=%s password=%s dbname=%s sslmode=%s",
		c.Host, c.Port, c.User, c.Password, c.Database, c.SSLMode,
	)
}

type RedisConfig struct {
	Host     string `envconfig:"REDIS_HOST" required:"true"`
	Port     int    `envconfig:"REDIS_PORT" default:"6379"`
	Password string `envconfig:"REDIS_PASSWORD"`
	DB       int    `envconfig:"REDIS_DB" default:"0"`
}

func (c RedisConfig) Addr() string {
	return fmt.Sprintf("%s:%d", c.Host, c.Port)
}

type KafkaConfig struct {
	Brokers     []string `envconfig:"KAFKA_BROKERS" required:"true"`
	GroupID     string   `envconfig:"KAFKA_GROUP_ID" default:"reaper"`
	BeaconTopic string   `envconfig:"KAFKA_BEACON_TOPIC" default:"beacon.rounds"`
}

type APIConfig struct {
	ListenAddr   string   `envconfig:"API_LISTEN_ADDR" default:":8080"`
	OperatorKeys []string `envconfig:"API_OPERATOR_KEYS"`
	GuardianKeys []string `envconfig:"API_GUARDIAN_KEYS"`
	RateLimitRPS float64  `envconfig:"API_RATE_LIMIT_RPS" default:"50"`
	RateBurst    int      `envconfig:"API_RATE_BURST" default:"100"`
}

// GameConfig defines the level table and scan mechanics.
// All per-level slices must have the same length; index 0 is level 1.
type GameConfig struct {
	EngineID string `envconfig:"GAME_ENGINE_ID" default:"reaper-mainline"`

	LevelMinStakes    []decimal.Decimal `envconfig:"GAME_LEVEL_MIN_STAKES" default:"10,100,1000,10000,100000"`
	LevelMaxPositions []int             `envconfig:"GAME_LEVEL_MAX_POSITIONS" default:"500,250,100,50,20"`
	LevelScanEvery    []time.Duration   `envconfig:"GAME_LEVEL_SCAN_INTERVALS" default:"24h,12h,8h,6h,4h"`
	LevelDeathRateBps []int64           `envconfig:"GAME_LEVEL_DEATH_RATES_BPS" default:"500,1000,1500,2000,3000"`

	LockWindow       time.Duration `envconfig:"GAME_LOCK_WINDOW" default:"1h"`
	MinHold          time.Duration `envconfig:"GAME_MIN_HOLD" default:"0s"`
	SubmissionWindow time.Duration `envconfig:"GAME_SUBMISSION_WINDOW" default:"30m"`
	CommitDelta      uint64        `envconfig:"GAME_COMMIT_DELTA_ROUNDS" default:"5"`

	// Cascade split of eliminated capital, in basis points. Must sum to 10000.
	CascadeSurvivorBps int64 `envconfig:"GAME_CASCADE_SURVIVOR_BPS" default:"3000"`
	CascadeUpstreamBps int64 `envconfig:"GAME_CASCADE_UPSTREAM_BPS" default:"3000"`
	CascadeBurnBps     int64 `envconfig:"GAME_CASCADE_BURN_BPS" default:"3000"`
	CascadeProtocolBps int64 `envconfig:"GAME_CASCADE_PROTOCOL_BPS" default:"1000"`

	// Culling: penalty taken from the evicted stake, and how the forfeit splits
	// between same-level survivors and burn.
	CullPenaltyBps  int64 `envconfig:"GAME_CULL_PENALTY_BPS" default:"8000"`
	CullSurvivorBps int64 `envconfig:"GAME_CULL_SURVIVOR_BPS" default:"5000"`
}

// LevelCount returns the number of configured levels
func (c GameConfig) LevelCount() int {
	return len(c.LevelMinStakes)
}

// Validate checks internal consistency of the level table
func (c GameConfig) Validate() error {
	n := len(c.LevelMinStakes)
	if n == 0 {
		return errors.Wrap(errors.ErrInvalidInput, "no levels configured")
	}
	if len(c.LevelMaxPositions) != n || len(c.LevelScanEvery) != n || len(c.LevelDeathRateBps) != n {
		return errors.Wrap(errors.ErrInvalidInput, "level table slices must have equal length")
	}
	if c.CascadeSurvivorBps+c.CascadeUpstreamBps+c.CascadeBurnBps+c.CascadeProtocolBps != 10000 {
		return errors.Wrap(errors.ErrInvalidInput, "cascade split must sum to 10000 bps")
	}
	if c.CullPenaltyBps < 0 || c.CullPenaltyBps > 10000 {
		return errors.Wrap(errors.ErrInvalidInput, "cull penalty out of range")
	}
	if c.CullSurvivorBps < 0 || c.CullSurvivorBps > 10000 {
		return errors.Wrap(errors.ErrInvalidInput, "cull survivor share out of range")
	}
	return nil
}

// ResetConfig defines the global reset timer.
// Deposits extend the deadline by the extension matching the highest
// threshold the amount reaches; the deadline never exceeds now+MaxExtension.
type ResetConfig struct {
	InitialCountdown time.Duration `envconfig:"RESET_INITIAL_COUNTDOWN" default:"72h"`
	MaxExtension     time.Duration `envconfig:"RESET_MAX_EXTENSION" default:"72h"`

	TierThresholds []decimal.Decimal `envconfig:"RESET_TIER_THRESHOLDS" default:"10,1000,100000"`
	TierExtensions []time.Duration   `envconfig:"RESET_TIER_EXTENSIONS" default:"15m,2h,24h"`

	PenaltyBps  int64 `envconfig:"RESET_PENALTY_BPS" default:"500"`
	JackpotBps  int64 `envconfig:"RESET_JACKPOT_BPS" default:"5000"`
	BurnBps     int64 `envconfig:"RESET_BURN_BPS" default:"3000"`
	// remainder of the haircut goes to protocol
}

// Validate checks internal consistency of the reset tiers
func (c ResetConfig) Validate() error {
	if len(c.TierThresholds) == 0 || len(c.TierThresholds) != len(c.TierExtensions) {
		return errors.Wrap(errors.ErrInvalidInput, "reset tier slices must be non-empty and equal length")
	}
	if c.PenaltyBps < 0 || c.PenaltyBps > 10000 {
		return errors.Wrap(errors.ErrInvalidInput, "reset penalty out of range")
	}
	if c.JackpotBps+c.BurnBps > 10000 {
		return errors.Wrap(errors.ErrInvalidInput, "reset jackpot+burn exceed 10000 bps")
	}
	return nil
}

type BreakerConfig struct {
	SinglePayoutMax decimal.Decimal `envconfig:"BREAKER_SINGLE_PAYOUT_MAX" default:"500000"`
	HourlyPayoutMax decimal.Decimal `envconfig:"BREAKER_HOURLY_PAYOUT_MAX" default:"2000000"`
	DailyPayoutMax  decimal.Decimal `envconfig:"BREAKER_DAILY_PAYOUT_MAX" default:"10000000"`

	Timelock time.Duration `envconfig:"BREAKER_RESET_TIMELOCK" default:"12h"`
	Expiry   time.Duration `envconfig:"BREAKER_RESET_EXPIRY" default:"48h"`
}

// LedgerConfig points at the external fungible value ledger
type LedgerConfig struct {
	BaseURL         string        `envconfig:"LEDGER_BASE_URL" required:"true"`
	Timeout         time.Duration `envconfig:"LEDGER_TIMEOUT" default:"10s"`
	PoolAccount     string        `envconfig:"LEDGER_POOL_ACCOUNT" default:"reaper:pool"`
	BurnAccount     string        `envconfig:"LEDGER_BURN_ACCOUNT" default:"reaper:burn"`
	ProtocolAccount string        `envconfig:"LEDGER_PROTOCOL_ACCOUNT" default:"reaper:protocol"`
}

type ErrorTrackingConfig struct {
	Enabled     bool   `envconfig:"ERROR_TRACKING_ENABLED" default:"true"`
	Provider    string `envconfig:"ERROR_TRACKING_PROVIDER" default:"sentry"`
	SentryDSN   string `envconfig:"SENTRY_DSN"`
	Environment string `envconfig:"SENTRY_ENVIRONMENT" default:"production"`
}

// WorkerConfig contains intervals for the optional keeper workers.
// Keepers only crank transitions any external caller could invoke; disabling
// them never affects correctness, only liveness.
type WorkerConfig struct {
	ScanKeeperEnabled  bool          `envconfig:"WORKER_SCAN_KEEPER_ENABLED" default:"true"`
	ScanKeeperInterval time.Duration `envconfig:"WORKER_SCAN_KEEPER_INTERVAL" default:"30s"`

	ResetKeeperEnabled  bool          `envconfig:"WORKER_RESET_KEEPER_ENABLED" default:"true"`
	ResetKeeperInterval time.Duration `envconfig:"WORKER_RESET_KEEPER_INTERVAL" default:"1m"`

	GaugeCollectorEnabled  bool          `envconfig:"WORKER_GAUGE_COLLECTOR_ENABLED" default:"true"`
	GaugeCollectorInterval time.Duration `envconfig:"WORKER_GAUGE_COLLECTOR_INTERVAL" default:"30s"`
}

// Load reads configuration from environment variables
// It first tries to load .env file (useful for local development)
func Load() (*Config, error) {
	// Load .env file if exists (ignore error if not exists)
	_ = godotenv.Load()

	var cfg Config
	if err := envconfig.Process("", &cfg); err != nil {
		return nil, errors.Wrap(err, "failed to process env config")
	}

	if err := cfg.Game.Validate(); err != nil {
		return nil, errors.Wrap(err, "invalid game config")
	}
	if err := cfg.Reset.Validate(); err != nil {
		return nil, errors.Wrap(err, "invalid reset config")
	}

	return &cfg, nil
}
