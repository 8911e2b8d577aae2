package main

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"strings"
	"sync"
	"syscall"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/oklog/ulid/v2"
	"go.uber.org/zap"

	"github.com/YusufAkin27/hiedra-collection-sub001/internal/cart"
	"github.com/YusufAkin27/hiedra-collection-sub001/internal/checkout"
	"github.com/YusufAkin27/hiedra-collection-sub001/internal/coupon"
	"github.com/YusufAkin27/hiedra-collection-sub001/internal/domain"
	"github.com/YusufAkin27/hiedra-collection-sub001/internal/identity"
	"github.com/YusufAkin27/hiedra-collection-sub001/internal/platform/config"
	"github.com/YusufAkin27/hiedra-collection-sub001/internal/platform/observability"
	"github.com/YusufAkin27/hiedra-collection-sub001/internal/pricing"
	"github.com/YusufAkin27/hiedra-collection-sub001/internal/session"
	"github.com/YusufAkin27/hiedra-collection-sub001/internal/storefront"
)

func main() {
	ctx := context.Background()

	baseLogger, err := observability.NewLogger()
	if err != nil {
		fmt.Fprintf(os.Stderr, "failed to initialise logger: %v\n", err)
		os.Exit(1)
	}
	defer func() {
		_ = baseLogger.Sync()
	}()

	logger := baseLogger.Named("web")
	ctx = observability.WithLogger(ctx, logger)

	cfg, err := config.Load()
	if err != nil {
		logger.Fatal("failed to load configuration", zap.Error(err))
	}

	apiClient := storefront.NewClient(cfg.API.BaseURL, cfg.API.Timeout)

	tokens := newTokenStore()
	guestStore, err := identity.NewFileStore(cfg.Cache.Dir)
	if err != nil {
		logger.Fatal("failed to initialise guest store", zap.Error(err))
	}
	resolver, err := identity.NewResolver(identity.ResolverDeps{
		Tokens: tokens,
		Store:  guestStore,
		Clock:  time.Now,
		Logger: observability.EventLogger(logger.Named("identity")),
	})
	if err != nil {
		logger.Fatal("failed to initialise identity resolver", zap.Error(err))
	}

	cartCache, err := cart.NewCache(cfg.Cache.Dir, cfg.Cache.CartTTL, time.Now)
	if err != nil {
		logger.Fatal("failed to initialise cart cache", zap.Error(err))
	}
	synchronizer, err := cart.NewSynchronizer(cart.SynchronizerDeps{
		Remote:   apiClient,
		Cache:    cartCache,
		Identity: resolver,
		Logger:   observability.EventLogger(logger.Named("cart")),
	})
	if err != nil {
		logger.Fatal("failed to initialise cart synchronizer", zap.Error(err))
	}
	resolver.OnChange(func(sess domain.Session) {
		refreshCtx, cancel := context.WithTimeout(context.Background(), cfg.API.Timeout)
		defer cancel()
		synchronizer.HandleIdentityChange(observability.WithLogger(refreshCtx, logger.Named("cart")), sess)
	})

	calculator, err := pricing.NewCalculator(pricing.CalculatorDeps{
		Remote: apiClient,
		Logger: observability.EventLogger(logger.Named("pricing")),
	})
	if err != nil {
		logger.Fatal("failed to initialise price calculator", zap.Error(err))
	}
	quotes := newQuoteHub(calculator, cfg.Quote.Debounce)
	defer quotes.Close()

	couponEngine, err := coupon.NewEngine(coupon.EngineDeps{
		Remote:   apiClient,
		Carts:    synchronizer,
		Identity: resolver,
		Logger:   observability.EventLogger(logger.Named("coupon")),
	})
	if err != nil {
		logger.Fatal("failed to initialise coupon engine", zap.Error(err))
	}

	snapshots := checkout.NewSnapshotStore(cfg.Checkout.SnapshotTTL, time.Now)
	orchestrator, err := checkout.NewOrchestrator(checkout.OrchestratorDeps{
		Gateway:   apiClient,
		Carts:     synchronizer,
		Identity:  resolver,
		Snapshots: snapshots,
		IDGen:     func() string { return ulid.Make().String() },
		Clock:     time.Now,
		Logger:    observability.EventLogger(logger.Named("checkout")),
	})
	if err != nil {
		logger.Fatal("failed to initialise checkout orchestrator", zap.Error(err))
	}

	cleanupCtx, cleanupCancel := context.WithCancel(context.Background())
	var cleanupWG sync.WaitGroup
	cleanupTicker := time.NewTicker(cfg.Checkout.SnapshotTTL)
	quoteSweepTicker := time.NewTicker(quoteIdleTTL)
	cleanupWG.Add(1)
	go func() {
		defer cleanupWG.Done()
		cleanupLogger := logger.Named("checkout")
		quoteLogger := logger.Named("quotes")
		for {
			select {
			case <-cleanupTicker.C:
				if removed := snapshots.CleanupExpired(); removed > 0 {
					cleanupLogger.Info("expired checkout snapshots removed", zap.Int("count", removed))
				}
			case <-quoteSweepTicker.C:
				if removed := quotes.sweepIdle(quoteIdleTTL); removed > 0 {
					quoteLogger.Info("idle quote sessions evicted", zap.Int("count", removed))
				}
			case <-cleanupCtx.Done():
				return
			}
		}
	}()

	sessions := session.NewManager(
		cfg.Session.SigningKey,
		strings.EqualFold(cfg.Environment, "prod"),
		time.Now,
	)

	handlers := &handlerSet{
		carts:    synchronizer,
		quotes:   quotes,
		coupons:  couponEngine,
		checkout: orchestrator,
		identity: resolver,
		tokens:   tokens,
		api:      apiClient,
	}

	r := chi.NewRouter()
	r.Use(middleware.RequestID)
	r.Use(middleware.RealIP)
	r.Use(observability.InjectLoggerMiddleware(logger.Named("http")))
	r.Use(observability.RequestLoggerMiddleware())
	r.Use(middleware.Recoverer)
	r.Use(middleware.Compress(5))
	r.Use(middleware.Timeout(30 * time.Second))
	r.Use(sessions.Middleware)
	handlers.Routes(r)

	server := &http.Server{
		Addr:         ":" + cfg.Server.Port,
		Handler:      r,
		ReadTimeout:  cfg.Server.ReadTimeout,
		WriteTimeout: cfg.Server.WriteTimeout,
		IdleTimeout:  cfg.Server.IdleTimeout,
	}

	shutdown := make(chan os.Signal, 1)
	signal.Notify(shutdown, syscall.SIGINT, syscall.SIGTERM)

	serverLogger := logger.Named("http").With(zap.String("addr", server.Addr))
	go func() {
		serverLogger.Info("hiedra web listening")
		if err := server.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			serverLogger.Fatal("http server error", zap.Error(err))
		}
	}()

	<-shutdown
	logger.Info("shutdown signal received; draining requests")

	cleanupTicker.Stop()
	quoteSweepTicker.Stop()
	cleanupCancel()
	cleanupWG.Wait()

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	if err := server.Shutdown(shutdownCtx); err != nil {
		logger.Error("graceful shutdown failed", zap.Error(err))
	}
}
