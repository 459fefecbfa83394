package bootstrap

import (
	"context"
	"time"

	"reaper/internal/adapters/config"
	"reaper/internal/adapters/kafka"
	pgclient "reaper/internal/adapters/postgres"
	redisclient "reaper/internal/adapters/redis"
	tokenclient "reaper/internal/adapters/token"
	"reaper/internal/api"
	"reaper/internal/api/health"
	"reaper/internal/consumers"
	"reaper/internal/domain/token"
	"reaper/internal/events"
	"reaper/internal/metrics"
	pgrepo "reaper/internal/repository/postgres"
	breakersvc "reaper/internal/services/breaker"
	ledgersvc "reaper/internal/services/ledger"
	"reaper/internal/services/payout"
	resetsvc "reaper/internal/services/reset"
	scansvc "reaper/internal/services/scan"
	"reaper/internal/store"
	"reaper/internal/workers"
	"reaper/pkg/logger"
)

// Container holds all application dependencies in initialization order
type Container struct {
	Config *config.Config
	Log    *logger.Logger

	PG    *pgclient.Client
	Redis *redisclient.Client

	Store    store.Store
	Producer *kafka.Producer
	Events   *events.Publisher

	Gateway *payout.Gateway

	Services  *Services
	Scheduler *workers.Scheduler
	Beacon    *consumers.BeaconConsumer
	Server    *api.Server
}

// Services groups the engine's application services
type Services struct {
	Ledger  *ledgersvc.Service
	Scans   *scansvc.Service
	Reset   *resetsvc.Service
	Breaker *breakersvc.Service
}

// New wires the full dependency graph
func New(cfg *config.Config, log *logger.Logger) (*Container, error) {
	c := &Container{Config: cfg, Log: log}

	pg, err := pgclient.NewClient(cfg.Postgres)
	if err != nil {
		return nil, err
	}
	c.PG = pg

	rdb, err := redisclient.NewClient(cfg.Redis)
	if err != nil {
		return nil, err
	}
	c.Redis = rdb

	c.Store = pgrepo.NewStore(pg.DB(), log)

	c.Producer = kafka.NewProducer(kafka.ProducerConfig{Brokers: cfg.Kafka.Brokers})
	c.Events = events.NewPublisher(c.Producer, cfg.Game.EngineID, log)

	accounts := token.Accounts{
		Pool:     token.Account(cfg.Ledger.PoolAccount),
		Burn:     token.Account(cfg.Ledger.BurnAccount),
		Protocol: token.Account(cfg.Ledger.ProtocolAccount),
	}
	valueLedger := tokenclient.NewClient(cfg.Ledger)

	c.Gateway = payout.NewGateway(c.Store, valueLedger, accounts, payout.Ceilings{
		SinglePayoutMax: cfg.Breaker.SinglePayoutMax,
		HourlyPayoutMax: cfg.Breaker.HourlyPayoutMax,
		DailyPayoutMax:  cfg.Breaker.DailyPayoutMax,
	}, c.Events, log)

	c.Services = &Services{
		Ledger:  ledgersvc.NewService(c.Store, c.Gateway, valueLedger, accounts, c.Events, cfg.Game, cfg.Reset, log),
		Scans:   scansvc.NewService(c.Store, c.Gateway, c.Events, cfg.Game, log),
		Reset:   resetsvc.NewService(c.Store, c.Gateway, c.Events, cfg.Reset, log),
		Breaker: breakersvc.NewService(c.Store, c.Events, cfg.Breaker, log),
	}

	c.Scheduler = workers.NewScheduler()
	c.Scheduler.RegisterWorker(workers.NewScanKeeper(
		c.Services.Scans, c.Store, rdb, cfg.Game.LevelCount(),
		cfg.Workers.ScanKeeperInterval, cfg.Workers.ScanKeeperEnabled,
	))
	c.Scheduler.RegisterWorker(workers.NewResetKeeper(
		c.Services.Reset, rdb,
		cfg.Workers.ResetKeeperInterval, cfg.Workers.ResetKeeperEnabled,
	))
	c.Scheduler.RegisterWorker(workers.NewGaugeCollector(
		c.Store,
		cfg.Workers.GaugeCollectorInterval, cfg.Workers.GaugeCollectorEnabled,
	))

	c.Beacon = consumers.NewBeaconConsumer(
		kafka.NewConsumer(kafka.ConsumerConfig{
			Brokers: cfg.Kafka.Brokers,
			GroupID: cfg.Kafka.GroupID,
			Topic:   cfg.Kafka.BeaconTopic,
		}),
		c.Store,
		log,
	)

	metrics.Register()

	healthHandler := health.New(log, pg.DB(), rdb, cfg.App.Name, "1.0.0")
	router := api.NewRouter(cfg.API, c.Services.Ledger, c.Services.Scans, c.Services.Reset, c.Services.Breaker, healthHandler, log)
	c.Server = api.NewServer(cfg.API.ListenAddr, router, log)

	return c, nil
}

// SeedLevels makes sure every configured level has a row. Existing rows are
// left untouched, so changing the level table in config never rewrites live
// aggregates.
func (c *Container) SeedLevels(ctx context.Context) error {
	states := LevelStates(c.Config.Game, time.Now())

	return c.Store.WithinTx(ctx, func(ctx context.Context, r store.Repos) error {
		for _, s := range states {
			if err := r.Levels.Create(ctx, s); err != nil {
				return err
			}
		}
		return nil
	})
}

// Shutdown closes all connections
func (c *Container) Shutdown(ctx context.Context) {
	if err := c.Server.Shutdown(ctx); err != nil {
		c.Log.Errorf("Server shutdown: %v", err)
	}
	if err := c.Scheduler.Stop(); err != nil {
		c.Log.Errorf("Scheduler stop: %v", err)
	}
	if err := c.Beacon.Close(); err != nil {
		c.Log.Errorf("Beacon consumer close: %v", err)
	}
	if err := c.Producer.Close(); err != nil {
		c.Log.Errorf("Producer close: %v", err)
	}
	if err := c.Redis.Close(); err != nil {
		c.Log.Errorf("Redis close: %v", err)
	}
	if err := c.PG.Close(); err != nil {
		c.Log.Errorf("Postgres close: %v", err)
	}
}
