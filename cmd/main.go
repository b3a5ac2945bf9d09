package main

import (
	"context"
	"errors"
	"net/http"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/kollektive-hackathon/roulette-backend/internal/game"
	"github.com/kollektive-hackathon/roulette-backend/internal/handoff"
	"github.com/kollektive-hackathon/roulette-backend/internal/notify"
	"github.com/kollektive-hackathon/roulette-backend/internal/oracle"
	"github.com/kollektive-hackathon/roulette-backend/internal/pkg/config"
	"github.com/kollektive-hackathon/roulette-backend/internal/pkg/firebase"
	"github.com/kollektive-hackathon/roulette-backend/internal/pkg/middleware"
	"github.com/kollektive-hackathon/roulette-backend/internal/pkg/pubsub"
	"github.com/kollektive-hackathon/roulette-backend/internal/pkg/reject"
	"github.com/kollektive-hackathon/roulette-backend/internal/pkg/store"
	"github.com/kollektive-hackathon/roulette-backend/internal/pkg/ws"
	"github.com/kollektive-hackathon/roulette-backend/internal/platform"
	"github.com/kollektive-hackathon/roulette-backend/internal/settlement"
	wsroutes "github.com/kollektive-hackathon/roulette-backend/internal/ws"
	"github.com/rs/zerolog"
	"github.com/rs/zerolog/log"
	"github.com/spf13/viper"
	"gorm.io/driver/postgres"
	"gorm.io/gorm"
)

func main() {
	setupViper()
	setupZerolog()
	ctx := context.Background()

	cfg, err := config.Load()
	if err != nil {
		log.Fatal().Err(err).Msg("Invalid configuration")
	}

	pubsubClient, err := pubsub.NewClient(ctx, cfg.Pubsub.ProjectId)
	if err != nil {
		log.Fatal().Err(err).Msg("Failed to initialize pubsub client")
	}
	defer pubsubClient.Close()

	authClient, err := firebase.NewAuthClient(ctx)
	if err != nil {
		log.Fatal().Err(err).Msg("Failed to initialize firebase auth")
	}

	db := setupDb(cfg.DbUrl)
	gormStore := store.NewGormStore(db)
	if err := gormStore.AutoMigrate(); err != nil {
		log.Fatal().Err(err).Msg("Failed to migrate database")
	}

	platformService := platform.NewService(gormStore)
	bootstrapPlatform(ctx, platformService, cfg.Platform)

	apiRouter := setupApiRouter(cfg, gormStore, platformService, pubsubClient, middleware.VerifyAuthToken(authClient))

	server := &http.Server{
		Addr:         cfg.Port,
		Handler:      apiRouter,
		ReadTimeout:  10 * time.Second,
		WriteTimeout: 10 * time.Second,
	}

	if err := server.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
		log.Fatal().Err(err).Msg("Server stopped")
	}
}

func setupDb(dbUrl string) *gorm.DB {
	db, err := gorm.Open(postgres.Open(dbUrl), &gorm.Config{})

	if err != nil {
		log.Fatal().Err(err).Msg("Failed to initialize database")
	}

	sqlDb, _ := db.DB()

	sqlDb.SetMaxOpenConns(50)
	sqlDb.SetConnMaxLifetime(time.Minute * 10)

	return db
}

// bootstrapPlatform creates the ledger on first start. Later starts keep the stored one.
func bootstrapPlatform(ctx context.Context, service *platform.Service, cfg config.PlatformConfig) {
	fees := settlement.Fees{PlatformBps: cfg.PlatformFeeBps, TreasuryBps: cfg.TreasuryFeeBps}
	_, problem := service.Initialize(ctx, cfg.Authority, cfg.Treasury, fees)
	if problem != nil && !errors.Is(problem, reject.ErrPlatformAlreadyInit) {
		log.Fatal().Err(problem).Msg("Failed to initialize platform")
	}
}

func setupApiRouter(
	cfg *config.Config,
	s store.Store,
	platformService *platform.Service,
	pubsubClient *pubsub.Client,
	verifyAuthToken gin.HandlerFunc,
) *gin.Engine {
	apiRouter := gin.Default()
	routerGroup := apiRouter.Group("/roulette-api")

	middleware.RegisterGlobalMiddleware(apiRouter)

	hub := ws.NewNotificationHub()
	rollup := handoff.NewLocalRollup(cfg.Handoff.PropagationDelay)
	gameHandoff := handoff.New(rollup, s, handoff.Config{
		MaxAttempts: cfg.Handoff.MaxAttempts,
		MinDelay:    cfg.Handoff.MinDelay,
		MaxDelay:    cfg.Handoff.MaxDelay,
	})

	wsroutes.RegisterRoutes(routerGroup, hub, verifyAuthToken)
	platform.RegisterRoutesAndSubscriptions(routerGroup, platform.Dependencies{
		Service:              platformService,
		Subscriber:           pubsubClient,
		DepositsSubscription: cfg.Pubsub.DepositsSubscription,
		VerifyAuthToken:      verifyAuthToken,
	})
	game.RegisterRoutesAndSubscriptions(routerGroup, game.Dependencies{
		Store:                    s,
		Handoff:                  gameHandoff,
		Oracle:                   oracle.NewAdapter(pubsubClient, cfg.Platform.Oracle),
		Publisher:                pubsubClient,
		Subscriber:               pubsubClient,
		Notifier:                 notify.NewFanout(hub, pubsubClient, cfg.Pubsub.EventsTopic),
		Config:                   cfg.Game,
		VrfFulfilledSubscription: cfg.Pubsub.VrfFulfilledSubscription,
		VerifyAuthToken:          verifyAuthToken,
	})

	return apiRouter
}

func setupViper() {
	viper.AutomaticEnv()
	viper.SetConfigFile("./.env")
	if err := viper.ReadInConfig(); err != nil {
		log.Info().Err(err).Msg("No .env file, using environment only")
	}
}

func setupZerolog() {
	zerolog.LevelFieldName = "severity"
	zerolog.TimestampFieldName = "time"
	zerolog.TimeFieldFormat = time.RFC3339Nano
}
