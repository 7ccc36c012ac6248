package main

import (
	"context"
	"fmt"
	"os"
	"time"

	"commerce-basket/internal/config"
	"commerce-basket/internal/db"
	"commerce-basket/internal/importer"
	"commerce-basket/internal/logger"
	"commerce-basket/internal/repository/product"
	"github.com/spf13/pflag"
)

func main() {
	filePath := pflag.StringP("file", "f", "", "path to a product CSV export")
	configPath := pflag.String("config", "", "path to a YAML config file")
	pflag.Parse()

	if *filePath == "" {
		pflag.Usage()
		os.Exit(2)
	}

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

	f, err := os.Open(*filePath)
	if err != nil {
		log.Fatal("open file", "error", err)
	}
	defer f.Close()

	start := time.Now()
	count, err := importer.NewCSVImporter(f, product.NewPostgres(pool, log), log).Run(ctx)
	if err != nil {
		log.Fatal("import failed", "error", err, "imported", count)
	}
	log.Info("import finished", "products", count, "took", time.Since(start).Truncate(time.Millisecond).String())
}
