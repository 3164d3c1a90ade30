package service

import (
	"context"
	"fmt"
	"os"
	"strconv"

	"hue-rest-client/internal/domain/model"
	"hue-rest-client/internal/ports"
)

const defaultBridgePort = 443

// ConfigService loads the stored configuration and layers environment
// overrides on top of it.
type ConfigService struct {
	repo   ports.ConfigRepository
	getenv func(string) string
}

func NewConfigService(repo ports.ConfigRepository) *ConfigService {
	return &ConfigService{
		repo:   repo,
		getenv: os.Getenv,
	}
}

// GetConfig returns the stored configuration with the HUE_* variables,
// LOG_LEVEL and OTEL_EXPORTER_OTLP_ENDPOINT applied. Overrides are not
// written back.
func (s *ConfigService) GetConfig(ctx context.Context) (*model.Config, error) {
	cfg, err := s.repo.Get(ctx)
	if err != nil {
		return nil, err
	}

	if v := s.getenv("HUE_ADDRESS"); v != "" {
		cfg.Address = v
	}
	if v := s.getenv("HUE_PORT"); v != "" {
		port, err := strconv.Atoi(v)
		if err != nil {
			return nil, fmt.Errorf("HUE_PORT: %w", err)
		}
		cfg.Port = port
	}
	if v := s.getenv("HUE_USERNAME"); v != "" {
		cfg.Username = v
	}
	if v := s.getenv("HUE_CLIENTKEY"); v != "" {
		cfg.ClientKey = v
	}
	if v := s.getenv("LOG_LEVEL"); v != "" {
		cfg.LogLevel = v
	}
	if v := s.getenv("OTEL_EXPORTER_OTLP_ENDPOINT"); v != "" {
		cfg.TraceEndpoint = v
	}
	if cfg.Port == 0 {
		cfg.Port = defaultBridgePort
	}
	return cfg, nil
}
