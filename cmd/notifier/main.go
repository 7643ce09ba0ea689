// Command notifier drains queued push notifications from Kafka and delivers
// them through the Expo push API.
package main

import (
	"context"
	"errors"
	"log"
	"os"
	"os/signal"
	"syscall"

	"go.uber.org/zap"

	"dm-go/internal/config"
	appKafka "dm-go/internal/kafka"
	kafkahandlers "dm-go/internal/kafka/handlers"
	"dm-go/internal/logger"
	"dm-go/internal/notify"
)

func main() {
	cfg, err := config.LoadConfigWithoutKey(os.Getenv("DM_CONFIG"))
	if err != nil {
		log.Fatalf("无法加载配置: %v", err)
	}
	if err := logger.Init(cfg.AppName+"-notifier", cfg.LogLevel); err != nil {
		log.Fatalf("无法初始化日志: %v", err)
	}
	defer logger.Sync()

	consumer, err := appKafka.NewConfluentKafkaConsumer(cfg.Kafka)
	if err != nil {
		logger.L().Fatal("无法创建 Kafka 消费者", zap.Error(err))
	}
	defer consumer.Close()

	expo := notify.NewExpoClient(cfg.Push.ExpoURL, cfg.Push.Timeout)
	logic := kafkahandlers.NewPushNotificationConsumerLogic(expo, kafkahandlers.DefaultMaxAge)

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	done := make(chan struct{})
	go func() {
		defer close(done)
		logger.Info("notifier 启动",
			zap.String("topic", cfg.Kafka.NotificationsTopic),
			zap.String("group", cfg.Kafka.ConsumerGroup))
		err := consumer.Consume(ctx, []string{cfg.Kafka.NotificationsTopic}, cfg.Kafka.ConsumerGroup, logic.HandlePushNotification)
		if err != nil && !errors.Is(err, context.Canceled) {
			logger.Error("Kafka 消费者错误", zap.Error(err))
		}
	}()

	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	select {
	case <-quit:
		logger.Info("收到关闭信号，正在停止 notifier...")
	case <-done:
	}
	cancel()
	<-done
	logger.Info("notifier 已停止")
}
