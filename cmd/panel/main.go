// Copyright 2026 The Hostpanel Authors
//
// Licensed under the Apache License, Version 2.0 (the "License");
// you may not use this file except in compliance with the License.
// You may obtain a copy of the License at
//
//     http://www.apache.org/licenses/LICENSE-2.0
//
// Unless required by applicable law or agreed to in writing, software
// distributed under the License is distributed on an "AS IS" BASIS,
// WITHOUT WARRANTIES OR CONDITIONS OF ANY KIND, either express or implied.
// See the License for the specific language governing permissions and
// limitations under the License.

package main

import (
	"context"
	"fmt"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/joern42/hostpanel/internal/audit"
	"github.com/joern42/hostpanel/internal/auth"
	"github.com/joern42/hostpanel/internal/config"
	"github.com/joern42/hostpanel/internal/daemon"
	"github.com/joern42/hostpanel/internal/identity"
	"github.com/joern42/hostpanel/internal/observability/logger"
	"github.com/joern42/hostpanel/internal/observability/metrics"
	"github.com/joern42/hostpanel/internal/observability/tracing"
	"github.com/joern42/hostpanel/internal/session"
	"github.com/joern42/hostpanel/internal/settings"
	"github.com/joern42/hostpanel/internal/store/postgres"
	transportHTTP "github.com/joern42/hostpanel/internal/transport/http"
)

// Listener priorities within each dispatch phase. Higher runs first.
const (
	priorityStatus      = 10
	priorityMaintenance = 0
	priorityHint        = -10
)

func main() {
	// Load configuration
	cfg, err := config.Load()
	if err != nil {
		fmt.Printf("Failed to load configuration: %v\n", err)
		os.Exit(1)
	}

	// Initialize logger
	logger.Init(logger.Config{
		Level:       cfg.Observability.LogLevel,
		Format:      cfg.Observability.LogFormat,
		ServiceName: cfg.Observability.ServiceName,
		OTELEnabled: cfg.Observability.OTELEnabled,
	})
	slog.Info("starting hostpanel control panel")

	ctx := context.Background()

	// Initialize tracer
	tracer, err := tracing.New(ctx, tracing.Config{
		Enabled:        cfg.Observability.OTELEnabled,
		ServiceName:    cfg.Observability.ServiceName,
		ServiceVersion: cfg.Observability.ServiceVersion,
		SamplingRate:   1.0,
	})
	if err != nil {
		slog.Error("failed to initialize tracer", logger.Error(err))
	}
	defer tracer.Shutdown(ctx)

	// Initialize meter
	meter, err := metrics.New(ctx, metrics.Config{
		Enabled: cfg.Observability.OTELEnabled,
	}, cfg.Observability.ServiceName)
	if err != nil {
		slog.Error("failed to initialize meter", logger.Error(err))
		os.Exit(1)
	}

	// Initialize database
	db, err := postgres.New(ctx, postgres.Config{
		Host:         cfg.Database.Host,
		Port:         cfg.Database.Port,
		User:         cfg.Database.User,
		Password:     cfg.Database.Password,
		Database:     cfg.Database.Database,
		SSLMode:      cfg.Database.SSLMode,
		MaxOpenConns: cfg.Database.MaxOpenConns,
		MaxIdleConns: cfg.Database.MaxIdleConns,
	})
	if err != nil {
		slog.Error("failed to connect to database", logger.Error(err))
		os.Exit(1)
	}
	defer db.Close()
	slog.Info("connected to database")

	// Initialize repositories
	userRepo := postgres.NewUserRepository(db)
	sessionRepo := postgres.NewSessionRepository(db)
	settingsRepo := postgres.NewSettingsRepository(db)

	// Initialize helpers
	auditLogger := audit.NewSlogLogger()
	hasher := identity.NewHasher(cfg.Security.BcryptCost)
	settingsProvider := settings.NewCachedProvider(settingsRepo, cfg.Security.SettingsCacheTTL)

	// Daemon notifier: fire-and-forget signal to the provisioning daemon.
	var notifier daemon.Notifier = daemon.NoopNotifier{}
	if cfg.Daemon.Enabled {
		nc, err := daemon.Connect(cfg.Daemon.NatsURL, cfg.Daemon.Subject)
		if err != nil {
			slog.Error("failed to connect to daemon bus", logger.Error(err))
			os.Exit(1)
		}
		defer nc.Close()
		notifier = nc
		slog.Info("connected to daemon bus")
	}

	// Provision the first administrator on a fresh install (ENV driven).
	bootstrapService := identity.NewBootstrapService(userRepo, hasher, auditLogger)
	if err := bootstrapService.Bootstrap(ctx); err != nil {
		slog.Error("bootstrap failed", logger.Error(err))
		os.Exit(1)
	}

	// Initialize services
	sessionService := session.NewService(sessionRepo, cfg.Session.Lifetime, cfg.Session.IdleTimeout)
	principalStore := session.NewPrincipalStore(sessionService)

	// Authentication pipeline. The brute-force gate runs before credential
	// checks; status, maintenance and the recovery hint run after, in
	// priority order.
	dispatcher := auth.NewDispatcher()
	dispatcher.Register(auth.PhaseBefore,
		auth.NewBruteforceListener(cfg.Security.BruteforceInterval, cfg.Security.BruteforceBurst), 0)
	dispatcher.Register(auth.PhaseDuring,
		auth.NewCredentialListener(userRepo, hasher, notifier, auditLogger), 0)
	dispatcher.Register(auth.PhaseAfter,
		auth.NewAccountStatusListener(userRepo, auditLogger), priorityStatus)
	dispatcher.Register(auth.PhaseAfter,
		auth.NewMaintenanceListener(settingsProvider), priorityMaintenance)
	dispatcher.Register(auth.PhaseAfter,
		auth.NewRecoveryHintListener(settingsProvider, transportHTTP.HintScheduler()), priorityHint)

	authService := auth.NewService(dispatcher, principalStore, auditLogger)

	// Rate Limiter
	rateLimiter := transportHTTP.NewRateLimiter(cfg.RateLimit.RequestsPerSecond, cfg.RateLimit.Burst)

	// Configure SameSite mode
	sameSite := http.SameSiteLaxMode
	switch cfg.Session.CookieSameSite {
	case "Strict":
		sameSite = http.SameSiteStrictMode
	case "None":
		sameSite = http.SameSiteNoneMode
	}

	// Initialize HTTP handler
	handler := transportHTTP.NewHandler(
		authService,
		sessionService,
		userRepo,
		hasher,
		settingsProvider,
		notifier,
		auditLogger,
		meter,
		transportHTTP.SessionConfig{
			CookieName:     cfg.Session.CookieName,
			CookieDomain:   cfg.Session.CookieDomain,
			CookiePath:     cfg.Session.CookiePath,
			CookieSecure:   cfg.Session.CookieSecure,
			CookieHTTPOnly: cfg.Session.CookieHTTPOnly,
			CookieSameSite: sameSite,
		},
	)

	// Create router
	router := transportHTTP.NewRouter(handler, rateLimiter)

	// Create HTTP server
	addr := fmt.Sprintf("%s:%s", cfg.Server.Host, cfg.Server.Port)
	server := &http.Server{
		Addr:         addr,
		Handler:      router,
		ReadTimeout:  cfg.Server.ReadTimeout,
		WriteTimeout: cfg.Server.WriteTimeout,
		IdleTimeout:  cfg.Server.IdleTimeout,
	}

	// Start session cleanup goroutine
	go func() {
		ticker := time.NewTicker(1 * time.Hour)
		defer ticker.Stop()
		for range ticker.C {
			if err := sessionService.CleanupExpired(ctx); err != nil {
				slog.ErrorContext(ctx, "failed to cleanup expired sessions", logger.Error(err))
			}
		}
	}()

	// Start server
	go func() {
		slog.Info("starting http server", logger.Component("server"), logger.Operation("listen"))
		slog.Info(fmt.Sprintf("listening on %s", addr))
		if err := server.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			slog.Error("server error", logger.Error(err))
			os.Exit(1)
		}
	}()

	// Wait for interrupt signal
	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	<-quit

	slog.Info("shutting down server")

	// Graceful shutdown
	shutdownCtx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancel()

	if err := server.Shutdown(shutdownCtx); err != nil {
		slog.Error("server shutdown error", logger.Error(err))
	}

	slog.Info("server stopped")
}
