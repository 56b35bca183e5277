package main

import (
	"context"
	"fmt"
	"math/rand"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/Netflix/go-env"
	"github.com/dgraph-io/badger/v4"
	"github.com/joho/godotenv"
	"github.com/jonboulle/clockwork"
	"github.com/prometheus/client_golang/prometheus"

	"paluwagan/auth"
	"paluwagan/contract"
	"paluwagan/domain/event"
	"paluwagan/domain/pool"
	"paluwagan/engine"
	"paluwagan/gateway"
	"paluwagan/internal"
	"paluwagan/ledger"
	"paluwagan/observability"
	"paluwagan/repositories"
	"paluwagan/runtime"
	"paluwagan/runtime/workers"
	"paluwagan/services"
	"paluwagan/sink"
)

func main() {
	if err := run(); err != nil {
		fmt.Fprintf(os.Stderr, "Fatal error: %v\n", err)
		os.Exit(1)
	}
}

// run initializes all components, manages the server lifecycle, and
// centralizes error reporting. Returning instead of calling os.Exit keeps
// the defers (database cleanup in particular) running on every exit path.
func run() error {
	// 1. Configuration & Logger
	_ = godotenv.Load()
	var config internal.Config
	if _, err := env.UnmarshalFromEnviron(&config); err != nil {
		return fmt.Errorf("config error: %w", err)
	}
	log := observability.NewLogger(config.LogLevel)

	// 2. Database (BadgerDB)
	db, err := badger.Open(badger.DefaultOptions(config.BadgerFilepath).
		WithLoggingLevel(badger.WARNING))
	if err != nil {
		return fmt.Errorf("database opening failed: %w", err)
	}
	defer func() {
		log.Info("Closing BadgerDB...")
		_ = db.Close()
	}()

	// 3. Repositories & Core
	memberRepository := repositories.NewMemberRepository(db)
	slotRepository := repositories.NewSlotRepository(db)
	allocationRepository := repositories.NewAllocationRepository(db)
	contributionRepository := repositories.NewContributionRepository(db)

	poolID := pool.PoolID(config.PoolID)
	clock := clockwork.NewRealClock()
	events := make(chan event.DomainEvent, config.EventBufferSize)

	slotRegistry, err := engine.NewSlotRegistry(poolID, slotRepository, log)
	if err != nil {
		return fmt.Errorf("slot registry init failed: %w", err)
	}

	rng := rand.New(rand.NewSource(time.Now().UnixNano()))
	eng, err := engine.NewEngine(
		poolID, slotRegistry, memberRepository, allocationRepository,
		events, clock, rng, config.DrawLockTTL, log,
	)
	if err != nil {
		return fmt.Errorf("allocation engine init failed: %w", err)
	}

	var policy ledger.SettlementPolicy = &ledger.AllButOwner{Members: memberRepository}
	if config.RequiredPayers > 0 {
		policy = ledger.FixedQuorum(config.RequiredPayers)
	}
	led, err := ledger.New(
		poolID, contributionRepository, eng, slotRegistry, memberRepository,
		policy, events, clock, log,
	)
	if err != nil {
		return fmt.Errorf("ledger init failed: %w", err)
	}

	// 4. Observability & Broadcast
	metricsRegistry := prometheus.NewRegistry()
	metrics := observability.NewMetrics(metricsRegistry)
	sessions := runtime.NewRegistry()

	notifier := sink.NewWebhookNotifier(config.ChatWebhookURL, &http.Client{Timeout: 10 * time.Second}, log)
	permanent := []contract.EventSink{sink.NewNotificationSink(notifier, log)}

	sup := workers.NewSupervisor(log, config.RestartInterval)
	sup.Add(
		workers.NewEventFanout(log, events, permanent, sessions, config.SinkTimeout, metrics),
		workers.NewDrawJanitor(log, eng, clock, config.JanitorInterval, events, metrics),
		workers.NewTelemetryWorker(log, sessions, metrics, config.MetricInterval),
	)

	// 5. Context & Signals
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()
	go sup.Run(ctx)

	// 6. Services & Gateway
	tokens := auth.NewTokenSource(config.JWTSecret, config.AuthTokenDuration)
	authService := services.NewAuthService(memberRepository, tokens)
	if _, err := authService.EnsureAdmin(config.AdminCodename, config.AdminPassword); err != nil {
		return fmt.Errorf("admin seeding failed: %w", err)
	}

	poolService := services.NewPoolService(
		poolID, eng, led, sessions, memberRepository, metrics, clock,
		config.ConnectionBufferSize, log,
	)

	server := gateway.NewServer(config.Addr(), poolService, authService, tokens, metricsRegistry, log)

	if config.DebugPort > 0 {
		internal.StartDebugServer(db, config.DebugPort, func() map[string]any {
			return map[string]any{
				"sessions":        sessions.SessionCount(),
				"available_slots": slotRegistry.CountAvailable(clock.Now()),
				"schedule_status": led.Status(),
			}
		})
	}

	errChan := make(chan error, 1)
	go func() {
		if err := server.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			errChan <- fmt.Errorf("gateway error: %w", err)
		}
	}()

	// 7. Wait for Stop or Error
	select {
	case <-ctx.Done():
		log.Info("Shutting down gracefully...")
	case err := <-errChan:
		return err
	}

	// 8. Final Cleanup
	shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	_ = server.Shutdown(shutdownCtx)
	sup.Stop()
	log.Info("Program stopped cleanly")

	return nil
}
