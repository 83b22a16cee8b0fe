package config

import (
	"os"

	"scribo/pkg/logger"

	"github.com/ilyakaznacheev/cleanenv"
	"github.com/joho/godotenv"
)

type Config struct {
	Telegram struct {
		Token string `yaml:"token" env:"TELEGRAM_BOT_TOKEN"`
	} `yaml:"telegram"`

	Whisper struct {
		ModelPath string `yaml:"model_path" env:"WHISPER_MODEL_PATH" env-default:"models/ggml-base.bin"`
	} `yaml:"whisper"`

	Worker struct {
		Count int `yaml:"count" env:"NUM_WORKERS" env-default:"2"`
	} `yaml:"worker"`

	Limits struct {
		MaxFileSizeMB  int64 `yaml:"max_file_size_mb" env:"MAX_FILE_SIZE_MB" env-default:"20"`
		QueueCapacity  int   `yaml:"queue_capacity" env:"MAX_QUEUE_SIZE" env-default:"100"`
		MaxJobsPerUser int   `yaml:"max_jobs_per_user" env:"MAX_JOBS_PER_USER_IN_QUEUE" env-default:"5"`
		// Empirical processing cost: seconds of inference per minute of
		// audio, used only for the user-facing estimate.
		SecondsPerAudioMinute float64 `yaml:"seconds_per_audio_minute" env:"SECONDS_PER_AUDIO_MINUTE" env-default:"13"`
	} `yaml:"limits"`

	// Optional integrations. Each is enabled only when its address or DSN
	// is set.
	Postgres struct {
		DSN string `yaml:"dsn" env:"POSTGRES_DSN"`
	} `yaml:"postgres"`

	Redis struct {
		Addr     string `yaml:"addr" env:"REDIS_ADDR"`
		Password string `yaml:"password" env:"REDIS_PASSWORD"`
		DB       int    `yaml:"db" env:"REDIS_DB" env-default:"0"`
	} `yaml:"redis"`

	S3 struct {
		Endpoint  string `yaml:"endpoint" env:"S3_ENDPOINT"`
		Region    string `yaml:"region" env:"S3_REGION" env-default:"us-east-1"`
		AccessKey string `yaml:"access_key" env:"S3_ACCESS_KEY"`
		SecretKey string `yaml:"secret_key" env:"S3_SECRET_KEY"`
		Bucket    string `yaml:"bucket" env:"S3_BUCKET"`
	} `yaml:"s3"`
}

// MaxFileSize is the size ceiling in bytes.
func (c *Config) MaxFileSize() int64 {
	return c.Limits.MaxFileSizeMB * 1024 * 1024
}

func LoadConfig() (*Config, error) {
	_ = godotenv.Load()

	var cfg Config
	if _, err := os.Stat("configs/config.yaml"); err == nil {
		if err := cleanenv.ReadConfig("configs/config.yaml", &cfg); err != nil {
			return nil, err
		}
		if err := cleanenv.UpdateEnv(&cfg); err != nil {
			return nil, err
		}
	} else {
		if err := cleanenv.ReadEnv(&cfg); err != nil {
			return nil, err
		}
	}

	logger.Info("Config loaded successfully")
	return &cfg, nil
}
