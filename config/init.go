package config

import (
	"log"

	"github.com/caarlos0/env/v6"
	"github.com/joho/godotenv"

	"github.com/dmarcwatch/reportstack/internal/logger"
	"github.com/dmarcwatch/reportstack/internal/tracing"
)

type Config struct {
	AppConfig      *AppConfig
	Logger         *logger.Config
	Tracing        *tracing.JaegerConfig
	DatabaseConfig *DatabaseConfig
	IMAPConfig     *IMAPConfig
	StorageConfig  *StorageConfig
	PipelineConfig *PipelineConfig
}

func InitConfig() (*Config, error) {
	config := &Config{
		AppConfig:      &AppConfig{},
		Logger:         &logger.Config{},
		Tracing:        &tracing.JaegerConfig{},
		DatabaseConfig: &DatabaseConfig{},
		IMAPConfig:     &IMAPConfig{},
		StorageConfig:  &StorageConfig{},
		PipelineConfig: &PipelineConfig{},
	}

	err := godotenv.Load()
	if err != nil {
		log.Print("Unable to load .env file")
	}

	err = env.Parse(config)
	if err != nil {
		log.Fatalf("Error loading reportstack config: %v", err)
	}

	return config, nil
}
