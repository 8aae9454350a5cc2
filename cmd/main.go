package main

import (
	"context"
	"errors"
	"meetinclick/backend/internal/api/handler"
	"meetinclick/backend/internal/chathub"
	"meetinclick/backend/internal/config"
	"meetinclick/backend/internal/kv"
	"meetinclick/backend/internal/localization"
	"meetinclick/backend/internal/matching"
	"meetinclick/backend/internal/negotiation"
	"meetinclick/backend/internal/notify"
	"meetinclick/backend/internal/storage"
	"meetinclick/backend/internal/telegram"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	awsconfig "github.com/aws/aws-sdk-go-v2/config"
	"github.com/aws/aws-sdk-go-v2/service/dynamodb"
	"github.com/gin-gonic/gin"
	"github.com/hibiken/asynq"
	"github.com/redis/go-redis/v9"
	"github.com/rs/cors"
	"github.com/sirupsen/logrus"
	"gorm.io/driver/postgres"
	"gorm.io/gorm"
)

const workerConcurrency = 10

func setupDatabase(cfg *config.Config) *gorm.DB {
	// TranslateError вмикає gorm.ErrDuplicatedKey для унікальних індексів
	db, err := gorm.Open(postgres.Open(cfg.PostgresDSN), &gorm.Config{TranslateError: true})
	if err != nil {
		logrus.WithError(err).Fatal("failed to connect PostgreSQL")
	}
	return db
}

func setupRedis(ctx context.Context, cfg *config.Config) *redis.Client {
	rdb := redis.NewClient(&redis.Options{
		Addr:     cfg.RedisAddr,
		Password: cfg.RedisPassword,
		DB:       cfg.RedisDB,
	})
	if _, err := rdb.Ping(ctx).Result(); err != nil {
		logrus.WithError(err).Fatal("failed to connect Redis")
	}
	return rdb
}

// setupStore builds the key-value store and the broker its change events go through.
func setupStore(ctx context.Context, cfg *config.Config, rdb *redis.Client) (kv.Store, kv.Broker) {
	switch cfg.StoreBackend {
	case config.BackendMemory:
		broker := kv.NewMemoryBroker()
		return kv.NewMemoryStore(broker), broker

	case config.BackendDynamoDB:
		awsCfg, err := awsconfig.LoadDefaultConfig(ctx, awsconfig.WithRegion(cfg.AWSRegion))
		if err != nil {
			logrus.WithError(err).Fatal("failed to load AWS config")
		}
		// DynamoDB has no push channel, change events go through Redis
		broker := kv.NewRedisBroker(rdb, cfg.StorePrefix)
		store := kv.NewDynamoStore(dynamodb.NewFromConfig(awsCfg), cfg.DynamoDBTable, broker)
		if err := store.EnsureTable(ctx); err != nil {
			logrus.WithError(err).Fatal("failed to prepare DynamoDB table")
		}
		return store, broker

	default:
		broker := kv.NewRedisBroker(rdb, cfg.StorePrefix)
		return kv.NewRedisStore(rdb, cfg.StorePrefix, broker), broker
	}
}

func main() {
	cfg, err := config.Load()
	if err != nil {
		logrus.WithError(err).Fatal("invalid configuration")
	}
	cfg.ConfigureLogging()
	if logrus.GetLevel() < logrus.DebugLevel {
		gin.SetMode(gin.ReleaseMode)
	}
	logrus.WithField("store_backend", cfg.StoreBackend).Info("starting MeetInClick backend")

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	// 1. Ініціалізація залежностей
	db := setupDatabase(cfg)
	var rdb *redis.Client
	if cfg.StoreBackend != config.BackendMemory {
		rdb = setupRedis(ctx, cfg)
		defer rdb.Close()
	}
	store, broker := setupStore(ctx, cfg, rdb)

	users := storage.NewStorageService(db, broker)
	if err := users.Migrate(); err != nil {
		logrus.WithError(err).Fatal("failed to run migrations")
	}
	loc := localization.Default()

	// 2. Ядро: matcher, ledger, negotiator
	matcher := matching.NewMatcherService(users, matching.ProximityFilter{
		Enabled:  cfg.Proximity,
		RadiusKm: cfg.RadiusKm,
		Unknown:  matching.UnknownPolicy(cfg.UnknownPolicy),
	})
	ledger := negotiation.NewLedger(store, notify.Nop{})
	ledger.Users = users
	negotiator := negotiation.NewNegotiator(store, ledger, notify.Nop{})
	negotiator.Users = users
	negotiator.MaxCharacters = cfg.MaxCharacters

	// 3. Telegram (необов'язково)
	var bot *telegram.BotService
	links := telegram.NewLinkCodes(store)
	if cfg.TelegramToken != "" {
		bot, err = telegram.NewBotService(cfg.TelegramToken, users, ledger, links, loc)
		if err != nil {
			logrus.WithError(err).Fatal("failed to start Telegram bot")
		}
	} else {
		logrus.Warn("TELEGRAM_BOT_TOKEN is not set, Telegram notifications disabled")
	}

	// 4. Сповіщення: hub завжди, Telegram коли є бот, через чергу коли увімкнено
	delivery := notify.Multi{notify.NewBrokerDispatcher(broker)}
	if bot != nil {
		delivery = append(delivery, notify.NewTelegramDispatcher(users, bot.BotAPI, loc))
	}
	var notifier notify.Dispatcher = delivery
	var worker *asynq.Server
	if cfg.NotifyQueue && rdb != nil {
		redisOpt := asynq.RedisClientOpt{Addr: cfg.RedisAddr, Password: cfg.RedisPassword, DB: cfg.RedisDB}
		queue := asynq.NewClient(redisOpt)
		defer queue.Close()
		notifier = notify.NewQueueDispatcher(queue)

		worker = notify.NewWorker(redisOpt, workerConcurrency)
		mux := asynq.NewServeMux()
		notify.RegisterDeliveryTask(mux, delivery)
		if err := worker.Start(mux); err != nil {
			logrus.WithError(err).Fatal("failed to start notification worker")
		}
	}
	ledger.Notifier = notifier
	negotiator.Notifier = notifier

	// 5. Hub і фонові goroutines
	hub := chathub.NewManagerService(broker, negotiator, ledger, matcher)
	go hub.Run(ctx)
	if bot != nil {
		go bot.Run(ctx)
	}

	// 6. Gin та роутинг
	auth, err := handler.NewAuthenticator(cfg.JWTSecret)
	if err != nil {
		logrus.WithError(err).Fatal("JWT_SECRET must be set")
	}
	h := handler.NewHandler(hub, users, matcher, ledger, negotiator, auth, loc)
	h.StoreTimeout = cfg.StoreTimeout
	h.AllowedOrigins = cfg.AllowedOrigins
	if bot != nil {
		h.Links = links
		h.BotUsername = bot.Username()
	}

	r := gin.Default()
	h.Register(r)

	corsHandler := cors.New(cors.Options{
		AllowedOrigins: cfg.AllowedOrigins,
		AllowedMethods: []string{http.MethodGet, http.MethodPost, http.MethodPut, http.MethodDelete, http.MethodOptions},
		AllowedHeaders: []string{"Authorization", "Content-Type", "Accept-Language"},
	})

	server := &http.Server{
		Addr:           cfg.HTTPAddr,
		Handler:        corsHandler.Handler(r),
		ReadTimeout:    10 * time.Second,
		WriteTimeout:   10 * time.Second,
		MaxHeaderBytes: 1 << 20,
	}

	go func() {
		logrus.WithField("addr", cfg.HTTPAddr).Info("HTTP server listening")
		if err := server.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			logrus.WithError(err).Fatal("HTTP server failed")
		}
	}()

	<-ctx.Done()
	logrus.Info("shutting down")

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	if err := server.Shutdown(shutdownCtx); err != nil {
		logrus.WithError(err).Warn("HTTP server shutdown")
	}
	if worker != nil {
		worker.Shutdown()
	}
	<-hub.Done()
}
