// internal/app/server.go
package app

import (
	"context"
	"fmt"
	"net/http"
	"time"

	"boda-service/internal/config"
	"boda-service/internal/db"
	activityHandler "boda-service/internal/handlers/activity"
	authHandler "boda-service/internal/handlers/auth"
	ledgerHandler "boda-service/internal/handlers/ledger"
	payoutHandler "boda-service/internal/handlers/payout"
	withdrawalHandler "boda-service/internal/handlers/withdrawal"
	"boda-service/internal/middleware"
	"boda-service/internal/pkg/jwt"
	"boda-service/internal/pkg/keymutex"
	"boda-service/internal/repository/postgres"
	activityUsecase "boda-service/internal/service/activity"
	ledgerUsecase "boda-service/internal/service/ledger"
	payoutUsecase "boda-service/internal/service/payout"
	withdrawalUsecase "boda-service/internal/service/withdrawal"
	"boda-service/internal/websocket"

	"github.com/gin-gonic/gin"
	"github.com/jackc/pgx/v5/pgxpool"
	"go.uber.org/zap"
)

type Server struct {
	cfg    config.AppConfig
	engine *gin.Engine
	logger *zap.Logger

	httpServer *http.Server
	pool       *pgxpool.Pool
	scheduler  *payoutUsecase.Scheduler
	hubCancel  context.CancelFunc
}

func NewServer() *Server {
	cfg := config.Load()
	engine := gin.New()
	return &Server{cfg: cfg, engine: engine}
}

func (s *Server) Start() error {
	ctx := context.Background()

	// ----- Logger -----
	logger, err := zap.NewProduction()
	if err != nil {
		return fmt.Errorf("failed to build logger: %w", err)
	}
	s.logger = logger

	// ----- PostgreSQL -----
	pool, err := db.ConnectDB(s.cfg.DatabaseURL)
	if err != nil {
		return fmt.Errorf("failed to connect to PostgreSQL: %w", err)
	}
	if err := pool.Ping(ctx); err != nil {
		return fmt.Errorf("failed to ping PostgreSQL: %w", err)
	}
	s.pool = pool

	// ----- Redis (sweep guard) -----
	// The sweep guard degrades to in-memory when Redis is unavailable, at
	// the cost of losing once-per-day protection across restarts.
	var guard payoutUsecase.SweepGuard = payoutUsecase.NewMemorySweepGuard()
	redisClient, err := db.NewRedisClient(db.RedisConfig{
		Addr:     s.cfg.RedisAddr,
		Password: s.cfg.RedisPass,
		DB:       0,
		PoolSize: 10,
	})
	if err != nil {
		logger.Warn("redis unavailable, sweep guard will not survive restarts", zap.Error(err))
	} else {
		guard = payoutUsecase.NewRedisSweepGuard(redisClient)
	}

	// ----- JWT Manager -----
	jwtManager, err := jwt.NewManager(s.cfg.JWT)
	if err != nil {
		return fmt.Errorf("failed to build JWT manager: %w", err)
	}

	// ----- Repositories -----
	dbWrapper := postgres.NewDB(pool)
	riderRepo := postgres.NewRiderRepository(pool)
	withdrawalRepo := postgres.NewWithdrawalRepository(pool)
	paymentRepo := postgres.NewAutomatedPaymentRepository(pool)
	activityRepo := postgres.NewActivityRepository(pool)

	// ----- WebSocket Hub -----
	hub := websocket.NewHub(logger)
	hubCtx, hubCancel := context.WithCancel(context.Background())
	s.hubCancel = hubCancel
	go hub.Run(hubCtx)

	// ----- Services -----
	// All balance writers share one lock set so a rider's balance can only
	// move under one mutation at a time.
	locks := keymutex.New()

	ledgerService := ledgerUsecase.NewService(riderRepo, activityRepo, dbWrapper, locks, s.cfg.CommissionRate, logger)
	ledgerService.SetBroadcaster(hub)

	withdrawalService := withdrawalUsecase.NewService(withdrawalRepo, riderRepo, ledgerService, activityRepo, locks, logger)
	activityService := activityUsecase.NewService(activityRepo, hub, logger)

	gateway := payoutUsecase.NewMpesaGateway(s.cfg.Mpesa, logger)

	location, err := time.LoadLocation(s.cfg.Payout.Timezone)
	if err != nil {
		logger.Warn("invalid payout timezone, using local", zap.String("timezone", s.cfg.Payout.Timezone), zap.Error(err))
		location = time.Local
	}
	s.scheduler = payoutUsecase.NewScheduler(
		riderRepo,
		paymentRepo,
		withdrawalRepo,
		activityRepo,
		ledgerService,
		gateway,
		guard,
		payoutUsecase.Config{
			DailyHour:     s.cfg.Payout.DailyHour,
			DailyMinute:   s.cfg.Payout.DailyMinute,
			CleanupDay:    s.cfg.Payout.CleanupDay,
			CleanupHour:   s.cfg.Payout.CleanupHour,
			CleanupMinute: s.cfg.Payout.CleanupMinute,
			RetentionDays: s.cfg.Payout.RetentionDays,
			PaymentDelay:  s.cfg.Payout.PaymentDelay,
			Location:      location,
		},
		logger,
	)
	s.scheduler.Start()

	// ----- Handlers -----
	authHandlerInst := authHandler.NewAuthHandler(jwtManager, s.cfg.AdminEmail, s.cfg.AdminPasswordHash, logger)
	ledgerHandlerInst := ledgerHandler.NewLedgerHandler(ledgerService)
	withdrawalHandlerInst := withdrawalHandler.NewWithdrawalHandler(withdrawalService)
	payoutHandlerInst := payoutHandler.NewPayoutHandler(s.scheduler)
	activityHandlerInst := activityHandler.NewActivityHandler(activityService)

	// ----- Middlewares -----
	authMiddleware := middleware.NewAuthMiddleware(jwtManager)

	s.engine.Use(
		middleware.RequestIDMiddleware(),
		middleware.RecoveryMiddleware(logger),
		middleware.LoggingMiddleware(logger),
		middleware.CORSMiddleware(),
	)

	// ----- Router -----
	handlers := &Handlers{
		AuthHandler:       authHandlerInst,
		LedgerHandler:     ledgerHandlerInst,
		WithdrawalHandler: withdrawalHandlerInst,
		PayoutHandler:     payoutHandlerInst,
		ActivityHandler:   activityHandlerInst,
		Hub:               hub,
		AuthMiddleware:    authMiddleware,
	}
	SetupRouter(s.engine, handlers)

	// ----- Start HTTP -----
	s.httpServer = &http.Server{
		Addr:    s.cfg.HTTPAddr,
		Handler: s.engine,
	}
	logger.Info("server starting", zap.String("addr", s.cfg.HTTPAddr))
	if err := s.httpServer.ListenAndServe(); err != nil && err != http.ErrServerClosed {
		return err
	}
	return nil
}

// Shutdown drains HTTP, stops the scheduler (letting an in-flight sweep
// finish), and releases connections.
func (s *Server) Shutdown(ctx context.Context) error {
	var firstErr error
	if s.httpServer != nil {
		if err := s.httpServer.Shutdown(ctx); err != nil {
			firstErr = err
		}
	}
	if s.scheduler != nil {
		s.scheduler.Stop()
	}
	if s.hubCancel != nil {
		s.hubCancel()
	}
	if s.pool != nil {
		s.pool.Close()
	}
	if s.logger != nil {
		s.logger.Info("server stopped")
		s.logger.Sync()
	}
	return firstErr
}
