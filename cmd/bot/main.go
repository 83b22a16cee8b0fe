package main

import (
	"context"
	"os"
	"os/signal"
	"syscall"
	"time"

	"scribo/internal/admission"
	"scribo/internal/asr"
	"scribo/internal/bot"
	"scribo/internal/config"
	"scribo/internal/queue"
	"scribo/internal/storage"
	"scribo/internal/transport"
	"scribo/internal/worker"
	"scribo/pkg/cache"
	"scribo/pkg/logger"

	"github.com/joho/godotenv"
	"go.uber.org/zap"
)

func main() {
	_ = godotenv.Load()

	debug := os.Getenv("DEBUG") != ""
	if err := logger.Init(debug); err != nil {
		panic("Failed to init logger: " + err.Error())
	}
	defer logger.Sync()

	logger.Info("Starting scribo bot service")

	cfg, err := config.LoadConfig()
	if err != nil {
		logger.Fatal("Failed to load config", zap.Error(err))
	}
	if cfg.Telegram.Token == "" {
		logger.Fatal("TELEGRAM_BOT_TOKEN environment variable is required")
	}

	model, err := asr.LoadModel(cfg.Whisper.ModelPath)
	if err != nil {
		logger.Fatal("Failed to load whisper model", zap.Error(err))
	}
	defer model.Close()

	logger.Info("Whisper model loaded", zap.String("path", cfg.Whisper.ModelPath))

	// Optional integrations, each enabled by its config.
	var store *storage.PostgresStorage
	if cfg.Postgres.DSN != "" {
		store, err = storage.NewPostgresStorage(cfg.Postgres.DSN)
		if err != nil {
			logger.Fatal("Failed to connect to database", zap.Error(err))
		}
		defer store.Close()
		logger.Info("Database connection established")
	}

	var transcripts cache.Cache
	if cfg.Redis.Addr != "" {
		redisCache, err := cache.NewRedisCache(cfg.Redis.Addr, cfg.Redis.Password, cfg.Redis.DB, 24*time.Hour)
		if err != nil {
			logger.Fatal("Failed to connect to Redis", zap.Error(err))
		}
		defer redisCache.Close()
		transcripts = redisCache
		logger.Info("Redis cache connection established")
	}

	var archive *storage.S3Archive
	if cfg.S3.Bucket != "" {
		archive, err = storage.NewS3Archive(cfg.S3.Endpoint, cfg.S3.Region, cfg.S3.AccessKey, cfg.S3.SecretKey, cfg.S3.Bucket)
		if err != nil {
			logger.Fatal("Failed to initialize S3 archive", zap.Error(err))
		}
	}

	tb, err := bot.NewTelebot(cfg.Telegram.Token)
	if err != nil {
		logger.Fatal("Failed to create Telegram bot", zap.Error(err))
	}

	tp := transport.NewTelegram(tb)
	adm := admission.NewControl(cfg.MaxFileSize(), cfg.Limits.MaxJobsPerUser)
	jobs := queue.New(cfg.Limits.QueueCapacity)

	// nil interface values would dodge the processor's nil checks, so only
	// assign the optional sinks when they exist.
	processor := worker.NewProcessor(
		tp,
		asr.NewFFmpegDecoder(),
		transcriptStore(store),
		audioArchiver(archive),
		transcripts,
		cfg.MaxFileSize(),
		cfg.Limits.SecondsPerAudioMinute,
	)

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	pool := worker.NewPool(jobs, processor, adm, tp, cfg.Worker.Count, func() (worker.Recognizer, error) {
		return model.NewTranscriber()
	})
	started := pool.Start(ctx)
	if started == 0 {
		logger.Fatal("No workers could be started")
	}

	botInstance := bot.NewBot(cfg, tb, jobs, adm, tp, transcriptHistory(store), started)

	sigChan := make(chan os.Signal, 1)
	signal.Notify(sigChan, syscall.SIGINT, syscall.SIGTERM)

	go botInstance.Start()

	sig := <-sigChan
	logger.Info("Received shutdown signal", zap.String("signal", sig.String()))

	cancel()
	botInstance.Stop()

	logger.Info("Bot service shutdown complete")
}

func transcriptStore(store *storage.PostgresStorage) worker.TranscriptStore {
	if store == nil {
		return nil
	}
	return store
}

func transcriptHistory(store *storage.PostgresStorage) bot.TranscriptHistory {
	if store == nil {
		return nil
	}
	return store
}

func audioArchiver(archive *storage.S3Archive) worker.AudioArchiver {
	if archive == nil {
		return nil
	}
	return archive
}
