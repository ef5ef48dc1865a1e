package main

import (
	"context"

	"github.com/gin-gonic/gin"
	"github.com/go-redis/redis/v8"
	"github.com/sirupsen/logrus"
	"go.opentelemetry.io/contrib/instrumentation/github.com/gin-gonic/gin/otelgin"

	"chatroom-service/internal/auth"
	"chatroom-service/internal/bus"
	"chatroom-service/internal/config"
	"chatroom-service/internal/db"
	"chatroom-service/internal/handlers"
	"chatroom-service/internal/messaging"
	"chatroom-service/internal/middleware"
	"chatroom-service/internal/observability"
	"chatroom-service/internal/presence"
	"chatroom-service/internal/rabbitmq"
	"chatroom-service/internal/repositories"
	"chatroom-service/internal/rooms"
	"chatroom-service/internal/telemetry"
	"chatroom-service/internal/ws"

	"github.com/prometheus/client_golang/prometheus/promhttp"
)

func main() {
	cfg, err := config.Load()
	if err != nil {
		logrus.Fatalf("failed to load config: %v", err)
	}
	logrus.SetFormatter(&logrus.JSONFormatter{})

	ctx := context.Background()

	shutdownTracer, err := observability.InitTracer(ctx, cfg.OTLPEndpoint, "chatroom-service", cfg.Environment)
	if err != nil {
		logrus.Fatalf("failed to init tracing: %v", err)
	}
	defer shutdownTracer(ctx)

	database, err := db.Connect(cfg.DatabaseDSN)
	if err != nil {
		logrus.Fatalf("failed to connect to db: %v", err)
	}

	redisClient := redis.NewClient(&redis.Options{
		Addr:     cfg.RedisAddr,
		Password: cfg.RedisPassword,
		DB:       cfg.RedisDB,
	})
	if err := redisClient.Ping(ctx).Err(); err != nil {
		logrus.Fatalf("failed to connect to redis: %v", err)
	}
	onlineUsers := presence.NewRedisCache(redisClient, presence.DefaultHashKey)

	publisher := rabbitmq.NewPublisher(cfg.AMQPURL, cfg.AMQPExchange)
	defer publisher.Close()
	logrus.WithField("mode", rabbitmq.PublisherMode(publisher)).Info("event publisher ready")

	audit := telemetry.NewAuditEmitter(publisher, "audit.chatroom", "chatroom-service", cfg.Environment)

	roomRepo := repositories.NewRoomRepo(database)
	messageRepo := repositories.NewMessageRepo(database)

	events := bus.New(cfg.BusQueueSize)
	hub := ws.NewHub()

	pipeline := messaging.NewPipeline(hub, events, messageRepo)
	pipeline.Bind(events)

	lifecycle := rooms.NewManager(roomRepo, hub, audit, cfg.LobbyRoomID)
	lifecycle.Bind(events)

	events.Start()
	defer events.Stop()

	validator := auth.NewJWTValidator(cfg.JWTSecret)
	gateway := ws.NewGateway(hub, events, onlineUsers, validator, pipeline, cfg.LobbyRoomID, cfg.AuthGracePeriod)

	roomHandler := handlers.NewRoomHandler(roomRepo, publisher, audit)
	messageHandler := handlers.NewMessageHandler(messageRepo)

	router := gin.New()
	router.Use(gin.Recovery())
	router.Use(otelgin.Middleware("chatroom-service"))
	router.Use(observability.HTTPMetricsMiddleware())

	authMiddleware := middleware.AuthMiddleware(validator)

	api := router.Group("/api/v1")
	api.GET("/rooms", authMiddleware, roomHandler.ListRooms)
	api.GET("/rooms/:room_id", authMiddleware, roomHandler.GetRoom)
	api.GET("/rooms/:room_id/messages", authMiddleware, messageHandler.ListRoomMessages)
	api.POST("/rooms/:room_id/invite", authMiddleware, roomHandler.InviteToRoom)
	api.GET("/users/:user_id/rooms", authMiddleware, roomHandler.ListRoomsForUser)

	router.GET("/ws", gateway.Handle)
	router.GET("/metrics", gin.WrapH(promhttp.Handler()))
	handlers.RegisterDebugRoutes(router, audit, cfg.DebugRoutes)

	logrus.WithField("port", cfg.Port).Info("chatroom service listening")
	if err := router.Run(":" + cfg.Port); err != nil {
		logrus.Fatalf("server error: %v", err)
	}
}
