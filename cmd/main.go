package main

import (
	"context"
	"time"

	"github.com/hellofresh/health-go/v5"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/labstack/echo/v4"
	"github.com/yakoovad/hackathon-registration/internal/api"
	"github.com/yakoovad/hackathon-registration/internal/auth"
	"github.com/yakoovad/hackathon-registration/internal/card"
	"github.com/yakoovad/hackathon-registration/internal/config"
	"github.com/yakoovad/hackathon-registration/internal/db"
	"github.com/yakoovad/hackathon-registration/internal/mailer"
	"github.com/yakoovad/hackathon-registration/internal/mint"
	"github.com/yakoovad/hackathon-registration/internal/otp"
	"github.com/yakoovad/hackathon-registration/internal/pending"
	"github.com/yakoovad/hackathon-registration/internal/pubsub"
	"github.com/yakoovad/hackathon-registration/internal/repository"
	"github.com/yakoovad/hackathon-registration/internal/service"
	"github.com/yakoovad/hackathon-registration/pkg/logger"
	"go.uber.org/zap"
)

const sweepInterval = 5 * time.Minute

func main() {
	logger, err := logger.NewLogger()
	if err != nil {
		panic(err)
	}
	defer logger.Sync()

	logger.Info("starting application")

	cfg, err := config.FromEnv()
	if err != nil {
		logger.Fatal("invalid configuration", zap.Error(err))
	}

	pool, err := pgxpool.New(context.Background(), cfg.DBURL)
	if err != nil {
		logger.Fatal("failed to connect to database", zap.Error(err))
	}
	defer pool.Close()

	if err = pool.Ping(context.Background()); err != nil {
		logger.Fatal("failed to ping database", zap.Error(err))
	}

	logger.Info("database connection established")

	transactor := db.NewPgxTransactor(pool)
	teamRepo := repository.NewPgxTeamRepository(pool)

	identity := mint.New(cfg.TeamIDPrefix)

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	otpStore := otp.NewStore(time.Now, identity.OTP)
	otpStore.StartSweeper(ctx, sweepInterval)

	pendingStore := pending.NewStore(time.Now)
	pendingStore.StartSweeper(ctx, sweepInterval)

	mail := mailer.New(cfg)
	if !mail.Configured() {
		logger.Warn("smtp transport not configured, otp delivery disabled",
			zap.Bool("dev_mode", cfg.DevMode))
	}
	dispatcher := mailer.NewDispatcher(logger)
	defer dispatcher.Close()

	renderer := card.NewRenderer(
		"CSE (AI & ML) — LBRCE",
		"TechXelarate 2026",
		"6-HOUR HACKATHON",
		time.Now,
	)
	cards := card.NewGenerator(renderer, cfg.AssetsDir)

	bus := pubsub.NewBus()

	registration := service.NewRegistrationService(transactor, otpStore, pendingStore).
		WithTeamRepo(teamRepo).
		WithMint(identity).
		WithMailer(mail, dispatcher).
		WithCards(cards, cfg.AssetsDir).
		WithPolicy(cfg.DevMode, cfg.MaxTeamSize)

	checkin := service.NewCheckInService(bus).WithTeamRepo(teamRepo)

	teams := service.NewTeamService().
		WithTeamRepo(teamRepo).
		WithCards(cards, cfg.AssetsDir)

	admin := auth.NewManager(cfg.JWTSecret, cfg.AdminUsername, cfg.AdminPasswordHash)

	e := echo.New()

	healthChecker := api.MustNewHealthChecker(health.Config{
		Name:      "postgres",
		Timeout:   5 * time.Second,
		SkipOnErr: false,
		Check: func(ctx context.Context) error {
			return pool.Ping(ctx)
		},
	})

	handler := api.NewHandler(logger).
		WithHealthChecker(healthChecker).
		WithRegistrationService(registration).
		WithCheckInService(checkin).
		WithTeamService(teams).
		WithAdminAuth(admin).
		WithBus(bus)

	handler.RegisterRoutes(e)

	logger.Info("server starting", zap.String("addr", cfg.HTTPAddr))
	if err = e.Start(cfg.HTTPAddr); err != nil {
		logger.Fatal("failed to start server", zap.Error(err))
	}
}
