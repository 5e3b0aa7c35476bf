// Package config содержит логику чтения конфигурации сервиса printhub.
package config

import (
	"flag"
	"fmt"

	"github.com/caarlos0/env/v11"
)

// Config содержит параметры конфигурации сервиса printhub.
// Нулевые веса и лимит ранжирования означают значения по умолчанию.
type Config struct {
	RunAddress         string  `env:"RUN_ADDRESS"`
	DatabaseURI        string  `env:"DATABASE_URI"`
	BlobStoreAddress   string  `env:"BLOB_STORE_ADDRESS"`
	BlobUploadPreset   string  `env:"BLOB_UPLOAD_PRESET"`
	AuthSecret         string  `env:"AUTH_SECRET"`
	RankDistanceWeight float64 `env:"RANK_DISTANCE_WEIGHT"`
	RankQueueWeight    float64 `env:"RANK_QUEUE_WEIGHT"`
	RankLimit          int     `env:"RANK_LIMIT"`
}

// Parse считывает конфигурацию из флагов командной строки и переменных окружения.
func Parse() (*Config, error) {
	cfg := &Config{}

	if err := env.Parse(cfg); err != nil {
		return nil, fmt.Errorf("parse env: %w", err)
	}

	envRunAddress := cfg.RunAddress
	envDatabaseURI := cfg.DatabaseURI
	envBlobAddress := cfg.BlobStoreAddress
	envBlobPreset := cfg.BlobUploadPreset
	envAuthSecret := cfg.AuthSecret
	envDistanceWeight := cfg.RankDistanceWeight
	envQueueWeight := cfg.RankQueueWeight
	envRankLimit := cfg.RankLimit

	flag.StringVar(&cfg.RunAddress, "a", "localhost:8080", "address and port for HTTP server")
	flag.StringVar(&cfg.DatabaseURI, "d", "", "database URI")
	flag.StringVar(&cfg.BlobStoreAddress, "b", "", "blob store address")
	flag.StringVar(&cfg.BlobUploadPreset, "p", "", "blob store upload preset")
	flag.StringVar(&cfg.AuthSecret, "s", "", "auth cookie signing secret")
	flag.Float64Var(&cfg.RankDistanceWeight, "wd", 0, "distance weight for shop ranking")
	flag.Float64Var(&cfg.RankQueueWeight, "wq", 0, "queue length weight for shop ranking")
	flag.IntVar(&cfg.RankLimit, "l", 0, "default number of ranked shops returned")

	flag.Parse()

	if envRunAddress != "" {
		cfg.RunAddress = envRunAddress
	}
	if envDatabaseURI != "" {
		cfg.DatabaseURI = envDatabaseURI
	}
	if envBlobAddress != "" {
		cfg.BlobStoreAddress = envBlobAddress
	}
	if envBlobPreset != "" {
		cfg.BlobUploadPreset = envBlobPreset
	}
	if envAuthSecret != "" {
		cfg.AuthSecret = envAuthSecret
	}
	if envDistanceWeight != 0 {
		cfg.RankDistanceWeight = envDistanceWeight
	}
	if envQueueWeight != 0 {
		cfg.RankQueueWeight = envQueueWeight
	}
	if envRankLimit != 0 {
		cfg.RankLimit = envRankLimit
	}

	if cfg.RunAddress == "" {
		cfg.RunAddress = "localhost:8080"
	}

	return cfg, nil
}
