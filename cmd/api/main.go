package main

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"strings"
	"syscall"

	"commerce-basket/internal/auth"
	"commerce-basket/internal/catalog"
	"commerce-basket/internal/config"
	"commerce-basket/internal/db"
	"commerce-basket/internal/httpserver"
	"commerce-basket/internal/logger"
	basketrepo "commerce-basket/internal/repository/basket"
	productrepo "commerce-basket/internal/repository/product"
	"commerce-basket/internal/seed"
	basketsvc "commerce-basket/internal/service/basket"
	"commerce-basket/internal/service/session"
	"github.com/gin-gonic/gin"
	"github.com/spf13/pflag"
)

func main() {
	configPath := pflag.String("config", "", "path to a YAML config file (defaults to $BASKET_CONFIG)")
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
	if !strings.HasPrefix(strings.ToLower(cfg.LogMode), "dev") {
		gin.SetMode(gin.ReleaseMode)
	}

	ctx := context.Background()

	var (
		store    basketrepo.Store
		prices   catalog.PriceLookup
		products productrepo.Repository
		pinger   httpserver.Pinger
	)
	switch strings.ToLower(cfg.StoreBackend) {
	case "memory":
		products = productrepo.NewMemory()
		if err := seed.Apply(ctx, products, log); err != nil {
			log.Fatal("seed demo catalog", "error", err)
		}
		listed, err := products.List(ctx)
		if err != nil {
			log.Fatal("list demo catalog", "error", err)
		}
		mem := catalog.NewMemory(cfg.Basket.PriceField)
		for _, p := range listed {
			mem.PutProduct(p)
		}
		store, prices = basketrepo.NewMemory(), mem
		log.Warn("using in-memory basket store; data is lost on restart")
	case "postgres", "":
		pool, err := db.Connect(ctx, cfg.DBConnString, log)
		if err != nil {
			log.Fatal("connect to db", "error", err)
		}
		defer pool.Close()
		pg, err := catalog.NewPostgres(pool, cfg.Basket.PriceField, cfg.Basket.CatalogTables)
		if err != nil {
			log.Fatal("init catalog", "error", err)
		}
		store, prices, pinger = basketrepo.NewPostgres(pool, log), pg, pool
		products = productrepo.NewPostgres(pool, log)
	default:
		log.Fatal("unknown store backend", "backend", cfg.StoreBackend)
	}

	engineCfg, err := basketsvc.ConfigFrom(cfg.Basket, prices)
	if err != nil {
		log.Fatal("basket config", "error", err)
	}
	baskets, err := basketsvc.New(store, engineCfg, log)
	if err != nil {
		log.Fatal("init basket engine", "error", err)
	}

	var sessions session.Store
	if cfg.RedisAddr != "" {
		rdb, err := session.Dial(ctx, cfg.RedisAddr, log)
		if err != nil {
			log.Fatal("connect to redis", "error", err)
		}
		defer rdb.Close()
		sessions = session.NewRedis(rdb, cfg.SessionTTL, log)
	} else {
		sessions = session.NewMemory(cfg.SessionTTL)
	}

	deps := httpserver.Deps{
		Baskets:     baskets,
		Sessions:    sessions,
		Products:    products,
		CORSOrigins: cfg.CORSOrigins,
	}
	if cfg.JWTSecret != "" {
		verifier, err := auth.NewHS256(cfg.JWTSecret)
		if err != nil {
			log.Fatal("init token verifier", "error", err)
		}
		deps.Verifier = verifier
	} else {
		log.Warn("JWT_SECRET not set; bearer tokens are ignored and every caller is anonymous")
	}

	srv, err := httpserver.New(cfg.HTTPAddr, log, pinger, deps)
	if err != nil {
		log.Fatal("init server", "error", err)
	}

	serverErr := make(chan error, 1)
	go func() {
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			serverErr <- err
		}
	}()

	stopCh := make(chan os.Signal, 1)
	signal.Notify(stopCh, syscall.SIGINT, syscall.SIGTERM)

	select {
	case sig := <-stopCh:
		log.Info("received signal, shutting down", "signal", sig.String())
	case err := <-serverErr:
		log.Error("server error", "error", err)
	}

	shutdownCtx, cancel := context.WithTimeout(context.Background(), cfg.ShutdownTimeout)
	defer cancel()

	if err := srv.Shutdown(shutdownCtx); err != nil {
		log.Error("graceful shutdown failed", "error", err)
	} else {
		log.Info("server stopped")
	}
}
