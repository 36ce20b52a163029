package main

import (
	"context"
	"net/http"
	"os"
	"os/signal"
	"sync"
	"syscall"
	"time"

	"github.com/lpkmns/nihongo-exam/internal/config"
	"github.com/lpkmns/nihongo-exam/internal/database"
	"github.com/lpkmns/nihongo-exam/internal/engine"
	"github.com/lpkmns/nihongo-exam/internal/handler"
	"github.com/lpkmns/nihongo-exam/internal/logger"
	"github.com/lpkmns/nihongo-exam/internal/repository"
	"github.com/lpkmns/nihongo-exam/internal/router"
	"github.com/lpkmns/nihongo-exam/internal/service"
	"github.com/lpkmns/nihongo-exam/internal/validator"
	"github.com/lpkmns/nihongo-exam/internal/worker"
	"github.com/rs/zerolog"
)

func main() {
	// ─── Load Configuration ────────────────────────────────────────────
	cfg := config.Load()

	// ─── Initialize Logger ─────────────────────────────────────────────
	log := logger.Setup(cfg.LogLevel, cfg.LogFormat)
	log.Info().
		Str("port", cfg.ServerPort).
		Str("mode", cfg.GinMode).
		Str("log_level", cfg.LogLevel).
		Msg("Starting Nihongo Exam Backend")

	// ─── Initialize Validator ──────────────────────────────────────────
	validator.Setup()

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	// ─── Connect to PostgreSQL ─────────────────────────────────────────
	pool, err := database.NewPostgresPool(ctx, cfg, log)
	if err != nil {
		log.Fatal().Err(err).Msg("Failed to connect to PostgreSQL")
	}
	defer pool.Close()

	// ─── Connect to Redis ──────────────────────────────────────────────
	rdb, err := database.NewRedisClient(ctx, cfg, log)
	if err != nil {
		log.Fatal().Err(err).Msg("Failed to connect to Redis")
	}
	defer rdb.Close()

	// ─── Initialize Repositories ───────────────────────────────────────
	adminRepo := repository.NewAdminRepository(pool)
	tokenRepo := repository.NewTokenRepository(pool)
	admissionRepo := repository.NewAdmissionRepository(rdb, cfg.AdmissionTTL)
	questionRepo := repository.NewQuestionRepository(pool)
	studentRepo := repository.NewStudentRepository(pool)
	sessionRepo := repository.NewSessionRepository(pool, rdb)
	resultRepo := repository.NewResultRepository(pool)
	resumeRepo := repository.NewResumeRepository(rdb)
	monitorRepo := repository.NewMonitorRepository(pool)
	dashboardRepo := repository.NewDashboardRepository(pool)

	// ─── Live Engines ──────────────────────────────────────────────────
	// Engine timers run on their own context so HTTP shutdown does not
	// stop the clocks before the final flush.
	engineCtx, engineCancel := context.WithCancel(context.Background())
	defer engineCancel()
	registry := engine.NewRegistry(engineCtx, logger.Component(log, "engine_registry"))

	// ─── Initialize Services ──────────────────────────────────────────
	authService := service.NewAuthService(cfg, rdb, adminRepo)
	adminService := service.NewAdminService(adminRepo, authService)
	tokenService := service.NewTokenService(tokenRepo, admissionRepo, log)
	questionService := service.NewQuestionService(questionRepo, log)
	monitorService := service.NewMonitorService(monitorRepo, registry, rdb, log)
	violationRecorder := service.NewViolationRecorder(rdb, monitorService)
	gateway := service.NewExamGateway(questionService, studentRepo, sessionRepo, resultRepo, rdb, monitorService, log)
	sessionService := service.NewExamSessionService(
		cfg, gateway, studentRepo, tokenService, authService,
		service.NewResumeMarker(resumeRepo), registry, monitorService, log,
	)
	studentService := service.NewStudentService(studentRepo, sessionRepo, registry, log)
	resultService := service.NewResultService(resultRepo, cfg.Location, log)
	dashboardService := service.NewDashboardService(dashboardRepo, resultRepo, tokenService, registry)

	// ─── Initialize Handlers ──────────────────────────────────────────
	handlers := &router.Handlers{
		Auth:          handler.NewAuthHandler(authService, adminService),
		StudentPortal: handler.NewStudentPortalHandler(tokenService, sessionService),
		StudentMgmt:   handler.NewStudentManagementHandler(studentService, sessionService, monitorService),
		Token:         handler.NewTokenHandler(tokenService),
		Question:      handler.NewQuestionHandler(questionService),
		Result:        handler.NewResultHandler(resultService),
		WS:            handler.NewWSHandler(sessionService, violationRecorder, cfg.WarningDuration, log, cfg.AllowedOrigins),
		Dashboard:     handler.NewDashboardHandler(dashboardService),
		Monitor:       handler.NewMonitorHandler(monitorService, log),
		System:        handler.NewSystemHandler(pool, rdb, registry, log),
	}

	// ─── Start Background Workers ─────────────────────────────────────
	workerCtx, workerCancel := context.WithCancel(context.Background())
	var workers sync.WaitGroup

	snapshotWorker := worker.NewSessionSnapshotWorker(sessionRepo, rdb, log)
	violationWorker := worker.NewViolationWorker(pool, rdb, log)
	statsWorker := worker.NewCategoryStatsWorker(pool, rdb, log)

	for _, start := range []func(context.Context){snapshotWorker.Start, violationWorker.Start, statsWorker.Start} {
		workers.Add(1)
		go func() {
			defer workers.Done()
			start(workerCtx)
		}()
	}

	// ─── Setup Router ──────────────────────────────────────────────────
	r := router.SetupRouter(ctx, authService, sessionService, handlers, cfg)

	// ─── Create HTTP Server ────────────────────────────────────────────
	srv := &http.Server{
		Addr:    ":" + cfg.ServerPort,
		Handler: r,
	}

	// ─── Start Server in Goroutine ─────────────────────────────────────
	go func() {
		log.Info().Str("addr", ":"+cfg.ServerPort).Msg("Server listening")
		if err := srv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			log.Fatal().Err(err).Msg("Server error")
		}
	}()

	// ─── Graceful Shutdown ─────────────────────────────────────────────
	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	sig := <-quit

	log.Info().Str("signal", sig.String()).Msg("Shutting down gracefully...")

	// 1. Stop accepting new HTTP requests (5s timeout). Hijacked WebSocket
	// connections are not tracked by Shutdown.
	shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer shutdownCancel()

	if err := srv.Shutdown(shutdownCtx); err != nil {
		log.Error().Err(err).Msg("HTTP server shutdown error")
	}

	// 2. Close live engines; each flushes its last snapshot onto the queue.
	flushCtx, flushCancel := context.WithTimeout(context.Background(), worker.ShutdownFlushTimeout)
	sessionService.Shutdown(flushCtx)
	flushCancel()
	engineCancel()

	// 3. Stop background workers and wait for queues to drain.
	workerCancel()
	workers.Wait()

	log.Info().Msg("Shutdown complete")
}

// init sets zerolog global defaults before main runs.
func init() {
	zerolog.TimeFieldFormat = time.RFC3339
}
