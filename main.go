package main

import (
	"context"
	"os"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/redis/go-redis/v9"
	"github.com/rs/zerolog"
	"go.opentelemetry.io/contrib/instrumentation/github.com/gin-gonic/gin/otelgin"

	"studio-chat/internal/auth"
	"studio-chat/internal/blobstore"
	"studio-chat/internal/config"
	"studio-chat/internal/db"
	"studio-chat/internal/handlers"
	"studio-chat/internal/middleware"
	"studio-chat/internal/observability"
	"studio-chat/internal/rabbitmq"
	"studio-chat/internal/repositories"
	"studio-chat/internal/telemetry"
	"studio-chat/internal/ws"
)

func main() {
	cfg := config.Load()

	var logger zerolog.Logger
	if cfg.IsDevelopment() {
		logger = zerolog.New(zerolog.ConsoleWriter{Out: os.Stdout, TimeFormat: time.RFC3339}).
			With().Timestamp().Logger()
	} else {
		logger = zerolog.New(os.Stdout).With().Timestamp().Logger()
	}

	ctx := context.Background()
	shutdownTracing, err := observability.InitTracing(ctx, cfg.ServiceName, cfg.OTLPAddr)
	if err != nil {
		logger.Fatal().Err(err).Msg("tracing init failed")
	}
	defer func() { _ = shutdownTracing(ctx) }()

	database, err := db.Connect(cfg.DatabaseURL, logger)
	if err != nil {
		logger.Fatal().Err(err).Msg("failed to connect to db")
	}

	var redisClient *redis.Client
	if cfg.RedisURL != "" {
		opts, err := redis.ParseURL(cfg.RedisURL)
		if err != nil {
			logger.Fatal().Err(err).Msg("invalid redis url")
		}
		redisClient = redis.NewClient(opts)
		if err := redisClient.Ping(ctx).Err(); err != nil {
			logger.Warn().Err(err).Msg("redis unreachable, rate limiting disabled")
			redisClient = nil
		}
	}

	publisher := rabbitmq.NewPublisher(cfg.AMQPURL, cfg.AMQPExchange, logger)
	defer publisher.Close()
	audit := telemetry.NewAuditEmitter(publisher, "audit.chat", cfg.ServiceName, cfg.Env, logger)

	store, err := blobstore.NewDiskStore(cfg.BlobRoot, cfg.PublicBase)
	if err != nil {
		logger.Fatal().Err(err).Msg("blob store init failed")
	}

	verifier := auth.NewVerifier(cfg.JWTSecret)

	roomRepo := repositories.NewRoomRepo(database)
	messageRepo := repositories.NewMessageRepo(database)
	requestRepo := repositories.NewRequestRepo(database)

	hub := ws.NewHub(logger)

	roomHandler := handlers.NewRoomHandler(roomRepo, requestRepo, hub, audit)
	messageHandler := handlers.NewMessageHandler(roomRepo, messageRepo, hub, audit, cfg.RecentWindow)
	requestHandler := handlers.NewRequestHandler(requestRepo, roomRepo, hub, audit)
	uploadHandler := handlers.NewUploadHandler(store)
	subscribeHandler := ws.NewSubscribeHandler(hub, roomRepo, verifier, publisher)

	if !cfg.IsDevelopment() {
		gin.SetMode(gin.ReleaseMode)
	}
	router := gin.New()
	router.Use(gin.Recovery())
	router.Use(otelgin.Middleware(cfg.ServiceName))
	router.Use(observability.HTTPMetricsMiddleware())

	router.GET("/healthz", handlers.Healthz(database))
	router.GET("/metrics", gin.WrapH(promhttp.Handler()))
	router.Static("/media", store.Root())

	authMiddleware := middleware.AuthMiddleware(verifier)
	limiter := middleware.NewRateLimiter(redisClient, cfg.SendLimit, cfg.SendLimitWindow, logger)

	router.POST("/requests", authMiddleware, requestHandler.CreateRequest)

	router.GET("/rooms", authMiddleware, roomHandler.ListRooms)
	router.POST("/rooms", authMiddleware, middleware.RequireAdmin(), roomHandler.CreateRoom)
	router.DELETE("/rooms/:room_id", authMiddleware, middleware.RequireAdmin(), roomHandler.DeactivateRoom)

	router.GET("/messages/recent", authMiddleware, messageHandler.RecentMessages)
	router.GET("/rooms/:room_id/messages", authMiddleware, messageHandler.ListMessages)
	router.POST("/rooms/:room_id/messages", authMiddleware, limiter.LimitSends(), messageHandler.PostMessage)
	router.POST("/rooms/:room_id/read", authMiddleware, messageHandler.MarkRead)
	router.DELETE("/rooms/:room_id/messages/:message_id", authMiddleware, messageHandler.DeleteMessage)

	router.POST("/uploads", authMiddleware, uploadHandler.Upload)
	router.DELETE("/uploads/*path", authMiddleware, uploadHandler.Delete)

	router.GET("/ws/subscribe", subscribeHandler.Handle)

	logger.Info().Str("port", cfg.Port).Msg("studio-chat listening")
	if err := router.Run(":" + cfg.Port); err != nil {
		logger.Fatal().Err(err).Msg("server error")
	}
}
