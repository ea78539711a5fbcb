package main

import (
	"context"
	"log"
	"math/big"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/gofiber/fiber/v2"
	"github.com/robfig/cron/v3"
	"github.com/scroll-tech/rpc-auth-proxy/internal/adminkeys"
	"github.com/scroll-tech/rpc-auth-proxy/internal/config"
	"github.com/scroll-tech/rpc-auth-proxy/internal/jwtauth"
	"github.com/scroll-tech/rpc-auth-proxy/internal/noncestore"
	"github.com/scroll-tech/rpc-auth-proxy/internal/router"
	"github.com/scroll-tech/rpc-auth-proxy/internal/rpcproxy"
	"github.com/scroll-tech/rpc-auth-proxy/internal/rpcserver"
	"github.com/scroll-tech/rpc-auth-proxy/internal/siweauth"
	"github.com/scroll-tech/rpc-auth-proxy/internal/upstream"
	"github.com/scroll-tech/rpc-auth-proxy/pkg/logger"
)

func main() {
	cfg, err := config.Load()
	if err != nil {
		log.Fatalf("failed to load configuration: %v", err)
	}

	logger.Init(cfg.LogLevel)
	logger.Info("starting rpc-auth-proxy")

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	sequencer, err := upstream.NewClient(ctx, cfg.SequencerURL, cfg.UpstreamRatePerSec, cfg.UpstreamBurst)
	if err != nil {
		logger.Fatal("failed to dial sequencer", "error", err)
	}
	defer sequencer.Close()

	withdrawProofs, err := upstream.NewClient(ctx, cfg.WithdrawProofsURL, cfg.UpstreamRatePerSec, cfg.UpstreamBurst)
	if err != nil {
		logger.Fatal("failed to dial withdraw-proofs endpoint", "error", err)
	}
	defer withdrawProofs.Close()

	jwtKeys := make([]jwtauth.KeyEntry, 0, len(cfg.JWTSignerKeys))
	for _, k := range cfg.JWTSignerKeys {
		jwtKeys = append(jwtKeys, jwtauth.KeyEntry{Kid: k.Kid, Secret: []byte(k.Secret)})
	}
	signer, err := jwtauth.New(jwtKeys, cfg.DefaultKid)
	if err != nil {
		logger.Fatal("failed to construct jwt signer", "error", err)
	}

	admin := adminkeys.New(cfg.AdminKeys)

	var chainID *big.Int
	if cfg.ChainID != 0 {
		chainID = big.NewInt(cfg.ChainID)
	}

	nonces := noncestore.New()
	log := logger.WithFields(nil).WithField("component", "siwe")
	siweService := siweauth.NewService(nonces, signer, sequencer, time.Duration(cfg.JWTExpirySecs)*time.Second, log)

	proxy := rpcproxy.New(sequencer, withdrawProofs, cfg.GasIsFree)
	rpc := rpcserver.NewServer(proxy, siweService, chainID, logger.WithFields(nil).WithField("component", "rpc"))

	var reloader *cron.Cron
	if cfg.AdminKeysFile != "" {
		reloader = cron.New()
		_, err := reloader.AddFunc("@every 30s", func() {
			keys, err := adminkeys.LoadFile(cfg.AdminKeysFile)
			if err != nil {
				logger.Warn("admin key reload failed", "error", err)
				return
			}
			admin.Replace(keys)
			logger.Info("admin key set reloaded", "count", len(keys))
		})
		if err != nil {
			logger.Fatal("failed to schedule admin key reload", "error", err)
		}
		reloader.Start()
	}

	app := fiber.New(fiber.Config{
		AppName:               "rpc-auth-proxy",
		ErrorHandler:          router.CustomErrorHandler,
		ReadTimeout:           30 * time.Second,
		WriteTimeout:          30 * time.Second,
		IdleTimeout:           30 * time.Second,
		DisableStartupMessage: true,
	})
	router.SetupRoutes(app, rpc, admin, signer)

	go func() {
		sigChan := make(chan os.Signal, 1)
		signal.Notify(sigChan, os.Interrupt, syscall.SIGTERM)
		<-sigChan
		logger.Info("shutting down")
		if reloader != nil {
			reloader.Stop()
		}
		cancel()
		if err := app.Shutdown(); err != nil {
			logger.Error("server shutdown error", "error", err)
		}
	}()

	logger.Info("listening", "bind_address", cfg.BindAddress)
	if err := app.Listen(cfg.BindAddress); err != nil {
		logger.Fatal("server stopped", "error", err)
	}
}
