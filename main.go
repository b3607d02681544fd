package main

import (
	"context"
	"log"
	"net/http"
	"os"

	"github.com/gin-gonic/gin"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"go.opentelemetry.io/contrib/instrumentation/github.com/gin-gonic/gin/otelgin"

	"messaging-service/internal/conversations"
	"messaging-service/internal/db"
	"messaging-service/internal/directory"
	"messaging-service/internal/handlers"
	"messaging-service/internal/middleware"
	"messaging-service/internal/notifications"
	"messaging-service/internal/observability"
	"messaging-service/internal/policy"
	"messaging-service/internal/rabbitmq"
	"messaging-service/internal/repositories"
)

func main() {
	database, err := db.Connect()
	if err != nil {
		log.Fatalf("failed to connect to db: %v", err)
	}

	if endpoint := os.Getenv("OTEL_EXPORTER_OTLP_ENDPOINT"); endpoint != "" {
		provider, err := observability.InitTracer(context.Background(), "messaging-service", endpoint)
		if err != nil {
			log.Fatalf("failed to init tracer: %v", err)
		}
		defer func() {
			if err := provider.Shutdown(context.Background()); err != nil {
				log.Printf("tracer shutdown: %v", err)
			}
		}()
	}

	publisher := rabbitmq.NewPublisher(
		os.Getenv("AMQP_URL"),
		getEnv("AMQP_EXCHANGE", "notifications"),
	)
	defer publisher.Close()
	log.Printf("notification publisher mode=%s reason=%q",
		rabbitmq.PublisherMode(publisher), rabbitmq.PublisherNoopReason(publisher))

	dispatcher := notifications.NewDispatcher(
		publisher,
		getEnv("NOTIFY_ROUTING_KEY", "messaging.notification"),
		"messaging-service",
		getEnv("ENVIRONMENT", "development"),
	)

	dir := directory.NewDirectory(database)
	sessions := directory.NewSessionRepo(database)
	messageRepo := repositories.NewMessageRepo(database)
	policyEngine := policy.NewEngine(dir, dir)
	conversationSvc := conversations.NewService(messageRepo)

	messagingHandler := handlers.NewMessagingHandler(conversationSvc, messageRepo, policyEngine, dir, dispatcher)

	router := gin.Default()
	router.Use(gin.Recovery())
	router.Use(otelgin.Middleware("messaging-service"))
	router.Use(observability.HTTPMetricsMiddleware())

	authMiddleware := middleware.AuthMiddleware(sessions)

	router.POST("/messages", authMiddleware, messagingHandler.Send)
	router.GET("/messages/unread-count", authMiddleware, messagingHandler.UnreadCount)
	router.GET("/conversations", authMiddleware, messagingHandler.ListConversations)
	router.GET("/conversations/:thread_key", authMiddleware, messagingHandler.GetThread)
	router.POST("/conversations/:thread_key/read", authMiddleware, messagingHandler.MarkThreadRead)
	router.DELETE("/conversations/:thread_key", authMiddleware, messagingHandler.DeleteConversation)

	router.GET("/metrics", gin.WrapH(promhttp.Handler()))
	router.GET("/healthz", func(c *gin.Context) {
		if err := database.PingContext(c.Request.Context()); err != nil {
			c.JSON(http.StatusServiceUnavailable, gin.H{"status": "degraded"})
			return
		}
		c.JSON(http.StatusOK, gin.H{"status": "ok"})
	})

	handlers.RegisterDebugRoutes(router, dispatcher, messageRepo, os.Getenv("DEBUG_ROUTES") == "true")

	port := getEnv("PORT", "8086")
	if err := router.Run(":" + port); err != nil {
		log.Fatalf("server error: %v", err)
	}
}

func getEnv(key, fallback string) string {
	if val, ok := os.LookupEnv(key); ok {
		return val
	}
	return fallback
}
