package main

import (
	"context"
	"fmt"
	"os"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/leaselink/leaselink/internal/api"
	"github.com/leaselink/leaselink/internal/cache"
	"github.com/leaselink/leaselink/internal/config"
	"github.com/leaselink/leaselink/internal/db"
	"github.com/leaselink/leaselink/internal/lease"
	"github.com/leaselink/leaselink/internal/messaging"
	"github.com/leaselink/leaselink/internal/middleware"
	"github.com/leaselink/leaselink/internal/observ"
	"github.com/leaselink/leaselink/internal/repository"
	"github.com/leaselink/leaselink/internal/repository/memory"
	"github.com/leaselink/leaselink/internal/repository/postgres"
	"github.com/redis/go-redis/v9"
	"go.uber.org/zap"
)

func main() {
	if err := run(); err != nil {
		fmt.Fprintf(os.Stderr, "error: %v\n", err)
		os.Exit(1)
	}
}

// repos bundles the four stores so the storage backends stay swappable
// in one place.
type repos struct {
	users      repository.UserRepository
	properties repository.PropertyRepository
	leases     repository.LeaseRepository
	messages   repository.MessageRepository
}

func run() error {
	cfg, err := config.LoadConfig()
	if err != nil {
		return fmt.Errorf("load config: %w", err)
	}

	logger, err := observ.NewLogger(cfg.Env, cfg.LogLevel)
	if err != nil {
		return fmt.Errorf("create logger: %w", err)
	}
	defer logger.Sync()

	// ---------------------------------------------------------------
	// Storage. DATABASE_URL="memory" runs against the in-memory
	// stores — handy for local development; everything else is a
	// Postgres URL. Startup uses context.Background(): there is no
	// request deadline yet, connecting takes as long as it takes.
	// ---------------------------------------------------------------
	var r repos
	if cfg.DatabaseURL == "memory" {
		logger.Warn("running with in-memory storage, data will not survive a restart")
		r = repos{
			users:      memory.NewUserStore(),
			properties: memory.NewPropertyStore(),
			leases:     memory.NewLeaseStore(),
			messages:   memory.NewMessageStore(),
		}
	} else {
		database, err := db.New(context.Background(), cfg.DatabaseURL, logger)
		if err != nil {
			return fmt.Errorf("connect to database: %w", err)
		}
		defer database.Close()

		if err := database.EnsureSchema(context.Background()); err != nil {
			return fmt.Errorf("ensure schema: %w", err)
		}

		pool := database.Pool()
		r = repos{
			users:      postgres.NewUserStore(pool),
			properties: postgres.NewPropertyStore(pool),
			leases:     postgres.NewLeaseStore(pool),
			messages:   postgres.NewMessageStore(pool),
		}
	}

	// ---------------------------------------------------------------
	// Conversation cache. Optional: without REDIS_URL the engine just
	// recomputes every conversation list from the message log.
	// ---------------------------------------------------------------
	var conversationCache *cache.ConversationCache
	if cfg.RedisURL != "" {
		opts, err := redis.ParseURL(cfg.RedisURL)
		if err != nil {
			return fmt.Errorf("parse redis URL: %w", err)
		}
		rdb := redis.NewClient(opts)
		if err := rdb.Ping(context.Background()).Err(); err != nil {
			return fmt.Errorf("ping redis: %w", err)
		}
		defer rdb.Close()
		conversationCache = cache.NewConversationCache(rdb, 30*time.Second, logger)
		logger.Info("conversation cache enabled")
	}

	// ---------------------------------------------------------------
	// Engines and handlers.
	// ---------------------------------------------------------------
	leaseEngine := lease.NewEngine(r.leases, r.properties, r.users, logger)
	messagingEngine := messaging.NewEngine(r.messages, r.users, r.properties, r.leases, conversationCache, logger)

	authHandler := api.NewAuthHandler(r.users, cfg.JWTSecret, logger)
	userHandler := api.NewUserHandler(r.users, logger)
	propertyHandler := api.NewPropertyHandler(r.properties, logger)
	leaseHandler := api.NewLeaseHandler(leaseEngine, logger)
	messageHandler := api.NewMessageHandler(messagingEngine, logger)

	if cfg.Env == "production" {
		gin.SetMode(gin.ReleaseMode)
	}
	srv := gin.New()
	srv.Use(gin.Logger(), gin.Recovery())

	// Health check stays public — load balancers can't carry a JWT.
	srv.GET("/v1/health", func(c *gin.Context) {
		c.JSON(200, gin.H{"status": "ok"})
	})
	srv.POST("/v1/auth/signup", authHandler.Signup)
	srv.POST("/v1/auth/login", authHandler.Login)

	v1 := srv.Group("/v1")
	v1.Use(middleware.AuthMiddleware(cfg.JWTSecret))

	v1.GET("/users", userHandler.List)
	v1.GET("/users/:id", userHandler.Get)
	v1.DELETE("/users/:id", userHandler.Delete)

	v1.POST("/properties", propertyHandler.Create)
	v1.GET("/properties", propertyHandler.List)
	v1.GET("/properties/:id", propertyHandler.Get)
	v1.PUT("/properties/:id", propertyHandler.Update)
	v1.DELETE("/properties/:id", propertyHandler.Delete)
	v1.GET("/properties/:id/messages", messageHandler.ListByProperty)
	v1.GET("/properties/:id/leases", leaseHandler.ListByProperty)

	v1.POST("/leases", leaseHandler.Apply)
	v1.GET("/leases/mine", leaseHandler.ListMine)
	v1.GET("/leases/:id", leaseHandler.Get)
	v1.PUT("/leases/:id/approve", leaseHandler.Approve)
	v1.PUT("/leases/:id/terminate", leaseHandler.Terminate)
	v1.GET("/leases/:id/messages", messageHandler.ListByLease)

	v1.POST("/messages", messageHandler.Send)
	v1.GET("/messages", messageHandler.ListAll)
	v1.GET("/messages/received", messageHandler.ListReceived)
	v1.GET("/messages/sent", messageHandler.ListSent)
	v1.GET("/messages/unread", messageHandler.ListUnread)
	v1.GET("/messages/stats", messageHandler.Stats)
	v1.GET("/messages/search", messageHandler.Search)
	v1.GET("/messages/conversations", messageHandler.Conversations)
	v1.GET("/messages/conversation/:otherUserId", messageHandler.Conversation)
	v1.PUT("/messages/mark-read", messageHandler.MarkRead)
	v1.PUT("/messages/mark-all-read/:senderId", messageHandler.MarkAllFromSender)
	v1.GET("/messages/:id", messageHandler.Get)
	v1.GET("/messages/:id/replies", messageHandler.ListReplies)
	v1.DELETE("/messages/:id", messageHandler.Delete)

	logger.Info("starting leaselink",
		zap.String("port", cfg.Port),
		zap.String("env", cfg.Env),
	)
	return srv.Run(":" + cfg.Port)
}
