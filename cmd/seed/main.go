package main

import (
	"context"
	"fmt"
	"os"

	"commerce-basket/internal/config"
	"commerce-basket/internal/db"
	"commerce-basket/internal/logger"
	"commerce-basket/internal/repository/product"
	"commerce-basket/internal/seed"
)

func main() {
	cfg := config.FromEnv()
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

	if err := seed.Apply(ctx, product.NewPostgres(pool, log), log); err != nil {
		log.Fatal("seed apply", "error", err)
	}
	log.Info("seed applied")
}
