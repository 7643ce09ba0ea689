package main

import (
	"context"
	"errors"
	"fmt"
	"log"
	"net/http"
	"os"
	"os/signal"
	"strings"
	"syscall"
	"time"

	"github.com/gorilla/handlers"
	"github.com/gorilla/mux"
	"go.uber.org/zap"

	"dm-go/internal/config"
	"dm-go/internal/crypto"
	"dm-go/internal/handlers/apiserver"
	"dm-go/internal/handlers/chatserver"
	appKafka "dm-go/internal/kafka"
	"dm-go/internal/logger"
	"dm-go/internal/middleware"
	"dm-go/internal/notify"
	appRedis "dm-go/internal/redis"
	"dm-go/internal/services"
	"dm-go/internal/storage"
	"dm-go/internal/storage/backend"
	"dm-go/internal/websocket"
)

func main() {
	// 1. 加载配置; a missing or malformed message key stops startup here
	cfg, err := config.LoadConfig(os.Getenv("DM_CONFIG"))
	if err != nil {
		log.Fatalf("无法加载配置: %v", err)
	}
	if err := logger.Init(cfg.AppName, cfg.LogLevel); err != nil {
		log.Fatalf("无法初始化日志: %v", err)
	}
	defer logger.Sync()
	logger.Info("API 服务器配置加载成功", zap.String("version", cfg.AppVersion))

	ctx := context.Background()

	// 2. 初始化数据库
	store, err := backend.Open(ctx, cfg.Database)
	if err != nil {
		logger.L().Fatal("无法初始化数据库", zap.String("type", cfg.Database.Type), zap.Error(err))
	}
	defer func() {
		if err := store.Close(context.Background()); err != nil {
			logger.Warn("database close failed", zap.Error(err))
		}
	}()

	// 3. Redis + token blacklist
	redisClient, err := appRedis.NewClient(ctx, cfg.Redis.Addr, cfg.Redis.Password, cfg.Redis.DB)
	if err != nil {
		logger.L().Fatal("无法连接到 Redis", zap.Error(err))
	}
	defer redisClient.Close()
	tokenBlacklist := appRedis.NewRedisTokenBlacklist(redisClient)

	cipher, err := crypto.NewCBCCipher(cfg.Crypto.MessageKey)
	if err != nil {
		logger.L().Fatal("无法初始化消息加密", zap.Error(err))
	}

	if cfg.Storage.Type != "local" {
		logger.L().Fatal("不支持的存储类型", zap.String("type", cfg.Storage.Type))
	}
	storageService, err := storage.NewLocalStorageService(cfg.Storage)
	if err != nil {
		logger.L().Fatal("无法初始化本地存储服务", zap.Error(err))
	}

	// 4. 推送通道
	var push services.PushSender
	switch cfg.Push.Mode {
	case "kafka":
		producer, err := appKafka.NewConfluentKafkaProducer(cfg.Kafka)
		if err != nil {
			logger.L().Fatal("无法创建 Kafka 生产者", zap.Error(err))
		}
		defer producer.Close()
		push = notify.NewKafkaSender(producer, cfg.Kafka.NotificationsTopic)
	case "direct":
		push = notify.NewExpoClient(cfg.Push.ExpoURL, cfg.Push.Timeout)
	case "off":
		logger.Warn("push notifications disabled")
	default:
		logger.L().Fatal("unknown push mode", zap.String("mode", cfg.Push.Mode))
	}

	// 5. Services
	hub := websocket.NewHub()
	messaging := services.NewMessagingService(store.Messages, store.Users, cipher, hub, push)
	authService := services.NewAuthService(store.Users, cfg.Auth)

	// 6. Handlers + 路由
	authHandler := apiserver.NewAuthHandler(authService, tokenBlacklist)
	messageHandler := apiserver.NewMessageHandler(messaging, storageService, cfg.Storage)
	wsHandler := chatserver.NewWebSocketHandler(hub, messaging, cfg.WebSocket)

	authMW := middleware.AuthMiddleware(cfg.Auth.JWTSecretKey, tokenBlacklist)

	r := mux.NewRouter()
	r.HandleFunc("/healthz", func(w http.ResponseWriter, _ *http.Request) {
		w.WriteHeader(http.StatusOK)
	}).Methods(http.MethodGet)

	apiRouter := r.PathPrefix("/api/v1").Subrouter()
	apiRouter.Use(authMW)
	apiserver.RegisterAuthRoutes(r, apiRouter, authHandler)
	apiserver.RegisterMessageRoutes(apiRouter, messageHandler)

	// Browsers cannot set headers on the upgrade request, so the middleware also reads ?token=.
	r.Handle(cfg.Server.WebSocketPath, authMW(http.HandlerFunc(wsHandler.ServeWS)))

	staticPath := strings.TrimSuffix(cfg.Storage.BaseURL, "/") + "/"
	r.PathPrefix(staticPath).Handler(http.StripPrefix(staticPath, http.FileServer(http.Dir(cfg.Storage.LocalPath))))
	logger.Info("提供静态文件服务", zap.String("prefix", staticPath), zap.String("dir", cfg.Storage.LocalPath))

	// 7. CORS
	corsOptions := []handlers.CORSOption{
		handlers.AllowedOrigins(cfg.APIServer.CORS.AllowedOrigins),
		handlers.AllowedMethods(cfg.APIServer.CORS.AllowedMethods),
		handlers.AllowedHeaders(cfg.APIServer.CORS.AllowedHeaders),
		handlers.ExposedHeaders(cfg.APIServer.CORS.ExposedHeaders),
		handlers.MaxAge(cfg.APIServer.CORS.MaxAge),
	}
	if cfg.APIServer.CORS.AllowCredentials {
		corsOptions = append(corsOptions, handlers.AllowCredentials())
	}

	serverAddr := fmt.Sprintf("%s:%s", cfg.APIServer.Host, cfg.APIServer.Port)
	srv := &http.Server{
		Addr:           serverAddr,
		Handler:        handlers.CORS(corsOptions...)(r),
		ReadTimeout:    cfg.Server.ReadTimeout,
		WriteTimeout:   cfg.Server.WriteTimeout,
		MaxHeaderBytes: cfg.Server.MaxHeaderBytes,
		IdleTimeout:    60 * time.Second,
	}

	go func() {
		logger.Info("API 服务器启动", zap.String("addr", serverAddr), zap.String("db", store.Type), zap.String("push", cfg.Push.Mode))
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			logger.L().Fatal("API 服务器启动失败", zap.Error(err))
		}
	}()

	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	<-quit
	logger.Info("收到关闭信号，正在关闭 API 服务器...")

	ctxShutdown, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	if err := srv.Shutdown(ctxShutdown); err != nil {
		logger.Error("API 服务器强制关闭", zap.Error(err))
	}
	logger.Info("API 服务器已成功关闭", zap.Int("online", hub.Online()))
}
