package main

import (
	"fmt"
	"time"

	"github.com/kelseyhightower/envconfig"

	"github.com/mcdev12/knockout/go/internal/dbconfig"
	"github.com/mcdev12/knockout/go/internal/trivia"
)

type Config struct {
	Port      string `envconfig:"PORT" default:"4000"`
	LogLevel  string `envconfig:"LOG_LEVEL" default:"info"`
	LogPretty bool   `envconfig:"LOG_PRETTY" default:"false"`

	Grace         time.Duration `envconfig:"TRIVIA_GRACE" default:"300ms"`
	CutMode       string        `envconfig:"TRIVIA_CUT_MODE" default:"sudden"`
	CutParam      float64       `envconfig:"TRIVIA_CUT_PARAM" default:"0.2"`
	SessionTTL    time.Duration `envconfig:"TRIVIA_SESSION_TTL" default:"24h"`
	EndedTTL      time.Duration `envconfig:"TRIVIA_ENDED_TTL" default:"30m"`
	SweepInterval time.Duration `envconfig:"TRIVIA_SWEEP_INTERVAL" default:"1m"`
	QuestionsFile string        `envconfig:"TRIVIA_QUESTIONS_FILE" default:"questions.yaml"`

	StoreDriver    string `envconfig:"STORE_DRIVER" default:"memory"`
	StoreCacheSize int    `envconfig:"STORE_CACHE_SIZE" default:"1024"`

	NATSURL           string `envconfig:"NATS_URL"`
	NATSSubjectPrefix string `envconfig:"NATS_SUBJECT_PREFIX" default:"trivia"`

	ArchiveBucket    string `envconfig:"ARCHIVE_BUCKET"`
	ArchiveRegion    string `envconfig:"ARCHIVE_REGION"`
	ArchiveEndpoint  string `envconfig:"ARCHIVE_ENDPOINT"`
	ArchiveAccessKey string `envconfig:"ARCHIVE_ACCESS_KEY_ID"`
	ArchiveSecretKey string `envconfig:"ARCHIVE_SECRET_ACCESS_KEY"`

	DB dbconfig.Config
}

func loadConfig() (Config, error) {
	var cfg Config
	if err := envconfig.Process("", &cfg); err != nil {
		return Config{}, fmt.Errorf("failed to process config: %w", err)
	}
	switch cfg.StoreDriver {
	case "memory", "postgres":
	default:
		return Config{}, fmt.Errorf("unknown STORE_DRIVER %q", cfg.StoreDriver)
	}
	return cfg, nil
}

func (c Config) engineConfig() trivia.EngineConfig {
	ec := trivia.DefaultEngineConfig()
	ec.Defaults = trivia.Config{
		CutMode:  c.CutMode,
		CutParam: c.CutParam,
		GraceMs:  c.Grace.Milliseconds(),
	}
	ec.SessionTTL = c.SessionTTL
	ec.EndedTTL = c.EndedTTL
	return ec
}
