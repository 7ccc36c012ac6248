package main

import (
	"context"
	"fmt"
	"os"

	"commerce-basket/internal/config"
	"commerce-basket/internal/db"
	"commerce-basket/internal/logger"
	"commerce-basket/internal/migrate"
	"github.com/spf13/pflag"
)

func main() {
	configPath := pflag.String("config", "", "path to a YAML config file")
	down := pflag.Int("down", 0, "roll back this many migrations instead of applying")
	pflag.Parse()

	cfg, err := config.Load(*configPath)
	if err != nil {
		fmt.Fprintf(os.Stderr, "load config: %v\n", err)
		os.Exit(1)
	}
	log, err := logger.New(cfg.LogMode)
	if err != nil {
		fmt.Fprintf(os.Stderr, "init logger: %v\n", err)
		os.Exit(1)
	}
	defer log.Sync()

	ctx := context.Background()
	pool, err := db.Connect(ctx, cfg.DBConnString, log)
	if err != nil {
		log.Fatal("connect db", "error", err)
	}
	defer pool.Close()

	if *down > 0 {
		if err := migrate.Down(ctx, pool, *down, log); err != nil {
			log.Fatal("roll back migrations", "error", err)
		}
		log.Info("migrations rolled back", "steps", *down)
		return
	}
	if err := migrate.Apply(ctx, pool, log); err != nil {
		log.Fatal("apply migrations", "error", err)
	}
	log.Info("migrations applied")
}
