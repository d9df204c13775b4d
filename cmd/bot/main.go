package main

import (
	"context"
	"flag"
	"fmt"
	"os"
	"os/signal"
	"syscall"
	"time"

	tgbotapi "github.com/go-telegram-bot-api/telegram-bot-api/v5"
	"github.com/guard-tgbot-go/internal/classifier"
	"github.com/guard-tgbot-go/internal/config"
	"github.com/guard-tgbot-go/internal/handlers"
	"github.com/guard-tgbot-go/internal/middleware"
	"github.com/guard-tgbot-go/internal/moderation"
	"github.com/guard-tgbot-go/internal/replies"
	"github.com/guard-tgbot-go/internal/services/ai"
	"github.com/guard-tgbot-go/internal/services/storage"
	"github.com/guard-tgbot-go/pkg/logger"
	"github.com/joho/godotenv"
	"github.com/sirupsen/logrus"
)

func main() {
	configPath := flag.String("config", "configs/config.yaml", "Path to configuration file")
	envFile := flag.String("env", ".env", "Path to .env file")
	flag.Parse()

	if err := godotenv.Load(*envFile); err != nil {
		// It's okay if .env doesn't exist
		fmt.Printf("Warning: .env file not found: %v\n", err)
	}

	cfg, err := config.LoadConfig(*configPath)
	if err != nil {
		fmt.Printf("Failed to load config: %v\n", err)
		os.Exit(1)
	}

	log, err := logger.New(&cfg.Logging)
	if err != nil {
		fmt.Printf("Failed to initialize logger: %v\n", err)
		os.Exit(1)
	}

	log.Info("Starting moderation bot...")

	bot, err := tgbotapi.NewBotAPI(cfg.Bot.Token)
	if err != nil {
		log.WithError(err).Fatal("Failed to create bot")
	}

	bot.Debug = cfg.Logging.Level == "debug"
	log.WithField("username", bot.Self.UserName).Info("Bot authorized")

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	metrics := middleware.NewMetrics()

	storageManager, err := storage.NewManager(cfg, metrics, log)
	if err != nil {
		log.WithError(err).Fatal("Failed to initialize storage")
	}
	log.WithField("type", cfg.Storage.Type).Info("Storage initialized")

	aiService := ai.New(&cfg.Generative, metrics, log)

	triggerClassifier := classifier.New(classifier.PhraseSets{
		Affirming: cfg.Moderation.Phrases.Affirming,
		Hostile:   cfg.Moderation.Phrases.Hostile,
		Vulgar:    cfg.Moderation.Phrases.Vulgar,
	})
	replyTable := replies.NewTable(cfg.Moderation.Replies)
	log.WithFields(logrus.Fields{
		"affirming":      len(cfg.Moderation.Phrases.Affirming),
		"hostile":        len(cfg.Moderation.Phrases.Hostile),
		"vulgar":         len(cfg.Moderation.Phrases.Vulgar),
		"static_replies": replyTable.Len(),
		"noisy_users":    len(cfg.Moderation.NoisyUserIDs),
	}).Info("Moderation rules loaded")

	orchestrator := moderation.NewOrchestrator(
		triggerClassifier,
		replyTable,
		aiService,
		storageManager,
		&cfg.Moderation,
		log,
	)
	burstTracker := moderation.NewBurstTracker(aiService, storageManager, &cfg.Moderation, log)

	rateLimiter := middleware.NewRateLimiter(&cfg.RateLimit, log)

	if cfg.Monitoring.Metrics.Enabled {
		go func() {
			log.WithFields(logrus.Fields{
				"port": cfg.Monitoring.Metrics.Port,
				"path": cfg.Monitoring.Metrics.Path,
			}).Info("Starting metrics server")

			if err := middleware.StartMetricsServer(cfg.Monitoring.Metrics.Port, cfg.Monitoring.Metrics.Path); err != nil {
				log.WithError(err).Error("Metrics server failed")
			}
		}()
	}

	messageHandler := handlers.NewMessageHandler(
		cfg,
		bot,
		orchestrator,
		burstTracker,
		storageManager,
		rateLimiter,
		metrics,
		log,
	)

	var updates tgbotapi.UpdatesChannel

	if cfg.Bot.Webhook.Enabled {
		webhookURL := fmt.Sprintf("%s/%s", cfg.Bot.Webhook.URL, bot.Token)
		webhook, err := tgbotapi.NewWebhook(webhookURL)
		if err != nil {
			log.WithError(err).Fatal("Failed to create webhook")
		}

		if _, err := bot.Request(webhook); err != nil {
			log.WithError(err).Fatal("Failed to set webhook")
		}

		updates = bot.ListenForWebhook("/" + bot.Token)
		log.WithField("url", cfg.Bot.Webhook.URL).Info("Webhook set")
	} else {
		u := tgbotapi.NewUpdate(0)
		u.Timeout = cfg.Bot.UpdateTimeout

		updates = bot.GetUpdatesChan(u)
		log.Info("Using long polling")
	}

	sigChan := make(chan os.Signal, 1)
	signal.Notify(sigChan, syscall.SIGINT, syscall.SIGTERM)

	go func() {
		for update := range updates {
			if update.Message == nil {
				continue
			}

			chatType := "private"
			if update.Message.Chat.IsGroup() || update.Message.Chat.IsSuperGroup() {
				chatType = "group"
			}
			metrics.RecordMessageReceived(chatType)

			// Each event is handled independently; no ordering is assumed
			// between concurrent invocations.
			update := update
			go func() {
				if err := messageHandler.HandleMessage(ctx, &update); err != nil {
					log.WithError(err).Error("Failed to handle message")
				}
			}()
		}
	}()

	<-sigChan
	log.Info("Shutdown signal received")

	if cfg.Bot.Webhook.Enabled {
		if _, err := bot.Request(tgbotapi.DeleteWebhookConfig{}); err != nil {
			log.WithError(err).Error("Failed to delete webhook")
		}
	}

	cancel()

	// Give in-flight handlers time to finish
	time.Sleep(2 * time.Second)

	log.Info("Bot stopped")
}
