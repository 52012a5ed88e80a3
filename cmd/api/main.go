package main

import (
	"context"
	"errors"
	"log"
	"net"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"google.golang.org/grpc"

	"bookshelf.org/internal/auth"
	"bookshelf.org/internal/config"
	"bookshelf.org/internal/httpapi"
	"bookshelf.org/internal/initdb"
	"bookshelf.org/internal/library"
	"bookshelf.org/internal/obs"
	"bookshelf.org/internal/store/memory"
	"bookshelf.org/internal/store/pg"
)

var (
	version = "0.1.0"
	commit  = "dev"
)

type stores interface {
	auth.UserStore
	library.Store
}

func main() {
	cfg, err := config.Load()
	if err != nil {
		log.Fatalf("config: %v", err)
	}

	obs.Init()
	obs.InitBuildInfo(version, commit)
	obs.Info("starting bookshelf-api", cfg.LogFields())

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	hasher := auth.NewHasher(auth.WithCost(cfg.BcryptCost))

	var (
		st    stores
		ready httpapi.Readiness = httpapi.ReadyProbe{}
	)
	if cfg.DatabaseURL != "" {
		pgStore, err := pg.Open(cfg.DatabaseURL)
		if err != nil {
			log.Fatalf("open db: %v", err)
		}
		defer pgStore.Close()

		bootCtx, cancel := context.WithTimeout(ctx, 30*time.Second)
		err = initdb.EnsureSchema(bootCtx, pgStore.DB())
		cancel()
		if err != nil {
			log.Fatalf("ensure schema: %v", err)
		}
		st = pgStore
		ready = httpapi.ReadyProbe{DB: pgStore.DB()}
	} else {
		st = memory.New()
	}

	res, err := initdb.Seed(ctx, st, st, hasher)
	if err != nil {
		log.Fatalf("seed: %v", err)
	}
	obs.Info("seed complete", map[string]any{
		"skipped": res.Skipped,
		"users":   res.Users,
		"books":   res.Books,
		"entries": res.Entries,
	})

	tokens, err := auth.NewTokenIssuer(cfg.TokenConfig())
	if err != nil {
		log.Fatalf("token issuer: %v", err)
	}

	api := httpapi.New(httpapi.Deps{
		Accounts:       auth.NewAccounts(st, hasher, tokens),
		Gate:           auth.NewGate(tokens, st),
		Library:        library.NewService(st),
		Ready:          ready,
		Version:        version,
		CORSOrigins:    cfg.CORSOrigins,
		RateBurst:      cfg.RateLimitBurst,
		RatePerSecond:  cfg.RateLimitPerSecond,
		TrustedProxies: cfg.TrustedProxies,
	})

	srv := &http.Server{
		Addr:              cfg.HTTPAddr,
		Handler:           api.Handler(ctx),
		ReadTimeout:       15 * time.Second,
		ReadHeaderTimeout: 15 * time.Second,
		WriteTimeout:      15 * time.Second,
		IdleTimeout:       60 * time.Second,
	}

	var grpcSrv *grpc.Server
	if cfg.GRPCAddr != "" {
		health := httpapi.NewHealthServer(ready)
		grpcSrv = httpapi.NewGRPCServer(health)
		lis, err := net.Listen("tcp", cfg.GRPCAddr)
		if err != nil {
			log.Fatalf("grpc listen: %v", err)
		}
		go health.Run(ctx, 10*time.Second)
		go func() {
			obs.Info("grpc listening", map[string]any{"addr": cfg.GRPCAddr})
			if err := grpcSrv.Serve(lis); err != nil && !errors.Is(err, grpc.ErrServerStopped) {
				obs.Error("grpc serve", err, nil)
			}
		}()
	}

	go func() {
		obs.Info("http listening", map[string]any{"addr": srv.Addr, "version": version})
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			log.Fatalf("listen: %v", err)
		}
	}()

	<-ctx.Done()
	obs.Info("shutting down", nil)

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()

	if grpcSrv != nil {
		grpcSrv.GracefulStop()
	}
	if err := srv.Shutdown(shutdownCtx); err != nil {
		obs.Error("http shutdown", err, nil)
	}
	obs.Info("stopped", nil)
}
