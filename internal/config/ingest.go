package config

import "time"

// IngestConfig points at the upstream authority ingest API.
type IngestConfig struct {
	BaseURL        string        `yaml:"base_url"`
	APIKey         string        `yaml:"api_key"`
	RequestTimeout time.Duration `yaml:"request_timeout"`
	AckPollInterval time.Duration `yaml:"ack_poll_interval"`
}

func loadIngestConfig() *IngestConfig {
	return &IngestConfig{
		BaseURL:        getEnv("INGEST_BASE_URL", "http://localhost:9090/api/v1"),
		APIKey:         getEnv("INGEST_API_KEY", ""),
		RequestTimeout: getEnvAsDuration("INGEST_REQUEST_TIMEOUT", 10*time.Second),
		AckPollInterval: getEnvAsDuration("INGEST_ACK_POLL_INTERVAL", 15*time.Second),
	}
}
