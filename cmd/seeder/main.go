// Seeder applies the database schema and initializes the level table.
// Safe to run repeatedly: the schema uses IF NOT EXISTS and existing level
// rows are never overwritten.
package main

import (
	"context"
	"flag"
	"os"
	"time"

	_ "github.com/lib/pq"

	"reaper/internal/adapters/config"
	pgclient "reaper/internal/adapters/postgres"
	"reaper/internal/bootstrap"
	pgrepo "reaper/internal/repository/postgres"
	"reaper/internal/store"
	"reaper/pkg/logger"
)

func main() {
	schemaPath := flag.String("schema", "scripts/schema.sql", "Path to schema SQL file")
	skipSchema := flag.Bool("skip-schema", false, "Only seed level rows")
	flag.Parse()

	cfg, err := config.Load()
	if err != nil {
		panic("failed to load config: " + err.Error())
	}
	if err := logger.Init(cfg.App.LogLevel, cfg.App.Env); err != nil {
		panic("failed to init logger: " + err.Error())
	}
	defer logger.Sync()

	log := logger.Get()
	ctx := context.Background()

	pg, err := pgclient.NewClient(cfg.Postgres)
	if err != nil {
		log.Fatalf("Failed to connect to postgres: %v", err)
	}
	defer pg.Close()

	if !*skipSchema {
		schema, err := os.ReadFile(*schemaPath)
		if err != nil {
			log.Fatalf("Failed to read schema: %v", err)
		}
		if _, err := pg.DB().ExecContext(ctx, string(schema)); err != nil {
			log.Fatalf("Failed to apply schema: %v", err)
		}
		log.Infow("Schema applied", "path", *schemaPath)
	}

	st := pgrepo.NewStore(pg.DB(), log)
	states := bootstrap.LevelStates(cfg.Game, time.Now())

	err = st.WithinTx(ctx, func(ctx context.Context, r store.Repos) error {
		for _, s := range states {
			if err := r.Levels.Create(ctx, s); err != nil {
				return err
			}
		}
		return nil
	})
	if err != nil {
		log.Fatalf("Failed to seed levels: %v", err)
	}

	log.Infow("Level table seeded", "levels", len(states))
}
