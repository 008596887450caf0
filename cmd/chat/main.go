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

	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/redis/go-redis/v9"

	"github.com/saiquwi/Support-chat/internal/bus"
	"github.com/saiquwi/Support-chat/internal/config"
	"github.com/saiquwi/Support-chat/internal/gateway"
	"github.com/saiquwi/Support-chat/internal/handler"
	"github.com/saiquwi/Support-chat/internal/jwt"
	"github.com/saiquwi/Support-chat/internal/repository"
	"github.com/saiquwi/Support-chat/internal/router"
	"github.com/saiquwi/Support-chat/internal/service"
	"github.com/saiquwi/Support-chat/internal/snowflake"
	"github.com/saiquwi/Support-chat/internal/workerpool"
)

func main() {
	// 初始化日志
	logger := slog.New(slog.NewJSONHandler(os.Stdout, &slog.HandlerOptions{
		Level: slog.LevelDebug,
	}))
	slog.SetDefault(logger)

	// 加载配置
	cfg, err := config.Load("configs/config.yaml")
	if err != nil {
		logger.Error("Failed to load config", "error", err)
		os.Exit(1)
	}

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	// 连接数据库
	db, err := connectDatabase(ctx, cfg.Database)
	if err != nil {
		logger.Error("Failed to connect to database", "error", err)
		os.Exit(1)
	}
	defer db.Close()
	logger.Info("Connected to PostgreSQL", "host", cfg.Database.Host)

	// 连接 Redis
	redisClient := connectRedis(cfg.Redis)
	defer redisClient.Close()
	logger.Info("Connected to Redis", "host", cfg.Redis.Host)

	// 初始化 JWT 服务
	jwtService := jwt.NewService(
		cfg.JWT.SecretKey,
		cfg.JWT.AccessExpire,
		cfg.JWT.RefreshExpire,
	)

	// 初始化雪花ID生成器
	sfNode, err := snowflake.NewNode(1)
	if err != nil {
		logger.Error("Failed to create snowflake node", "error", err)
		os.Exit(1)
	}

	// 事件中心与扇出 worker pool
	hub := bus.New(cfg.Gateway.SubscribeBuffer, logger)
	pool := workerpool.New(cfg.Fanout.Workers, cfg.Fanout.QueueSize, logger)

	// 初始化 Repository
	userRepo := repository.NewUserRepository(db)
	chatRepo := repository.NewChatRepository(db)
	participantRepo := repository.NewParticipantRepository(db)
	messageRepo := repository.NewMessageRepository(db)
	tokenRepo := repository.NewTokenRepository(redisClient)
	presenceRepo := repository.NewPresenceRepository(redisClient)

	// 初始化 Service
	routerService := service.NewRouterService(hub, pool, chatRepo, participantRepo, messageRepo)
	membershipService := service.NewMembershipService(participantRepo, sfNode)
	authService := service.NewAuthService(userRepo, tokenRepo, presenceRepo, jwtService, sfNode)
	userService := service.NewUserService(userRepo, presenceRepo, routerService)
	messageService := service.NewMessageService(messageRepo, chatRepo, membershipService, routerService, sfNode)
	readStateService := service.NewReadStateService(messageRepo, participantRepo, routerService)
	directoryService := service.NewDirectoryService(
		chatRepo, participantRepo, messageRepo, userRepo, presenceRepo,
		membershipService, routerService, sfNode,
	)

	// 初始化 Handler
	authHandler := handler.NewAuthHandler(authService)
	userHandler := handler.NewUserHandler(userService)
	chatHandler := handler.NewChatHandler(directoryService, messageService, readStateService)

	// 订阅网关
	connManager := gateway.NewManager()
	gw := gateway.New(hub, connManager, tokenRepo, readStateService, membershipService, userService, cfg.Gateway)

	// 设置路由
	r := router.SetupRouter(cfg, tokenRepo, authHandler, userHandler, chatHandler, gw)

	// 启动服务器
	addr := fmt.Sprintf(":%d", cfg.App.Port)
	srv := &http.Server{
		Addr:    addr,
		Handler: r,
	}
	go func() {
		logger.Info("Chat server started", "addr", addr, "mode", cfg.App.Mode)
		if err := srv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			logger.Error("Server failed", "error", err)
			os.Exit(1)
		}
	}()

	// 优雅退出
	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	<-quit

	logger.Info("Shutting down server...")

	shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer shutdownCancel()
	if err := srv.Shutdown(shutdownCtx); err != nil {
		logger.Error("Server shutdown failed", "error", err)
	}

	connManager.CloseAll()
	hub.Close()
	pool.Shutdown()
	cancel()

	logger.Info("Server stopped")
}

// connectDatabase 连接 PostgreSQL
func connectDatabase(ctx context.Context, cfg config.DatabaseConfig) (*pgxpool.Pool, error) {
	dsn := fmt.Sprintf("postgres://%s:%s@%s:%d/%s?sslmode=disable",
		cfg.User,
		cfg.Password,
		cfg.Host,
		cfg.Port,
		cfg.Name,
	)

	poolConfig, err := pgxpool.ParseConfig(dsn)
	if err != nil {
		return nil, err
	}

	poolConfig.MaxConns = int32(cfg.MaxOpenConns)
	poolConfig.MinConns = int32(cfg.MaxIdleConns)
	poolConfig.MaxConnLifetime = cfg.ConnMaxLifetime
	poolConfig.MaxConnIdleTime = 10 * time.Minute

	return pgxpool.NewWithConfig(ctx, poolConfig)
}

// connectRedis 连接 Redis
func connectRedis(cfg config.RedisConfig) *redis.Client {
	return redis.NewClient(&redis.Options{
		Addr:     fmt.Sprintf("%s:%d", cfg.Host, cfg.Port),
		Password: cfg.Password,
		DB:       cfg.DB,
		PoolSize: cfg.PoolSize,
	})
}
