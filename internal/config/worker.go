package config

import "time"

// WorkerConfig tunes the delivery worker's retry policy and sweeps.
type WorkerConfig struct {
	PollInterval     time.Duration `yaml:"poll_interval"`
	BatchSize        int           `yaml:"batch_size"`
	MaxAttempts      int           `yaml:"max_attempts"`
	BackoffBase      time.Duration `yaml:"backoff_base"`
	BackoffCap       time.Duration `yaml:"backoff_cap"`
	BackoffJitter    float64       `yaml:"backoff_jitter"`
	AckTimeout       time.Duration `yaml:"ack_timeout"`
	StaleSendTimeout time.Duration `yaml:"stale_send_timeout"`
	SweepSchedule    string        `yaml:"sweep_schedule"`
}

func loadWorkerConfig() *WorkerConfig {
	return &WorkerConfig{
		PollInterval:     getEnvAsDuration("WORKER_POLL_INTERVAL", time.Second),
		BatchSize:        getEnvAsInt("WORKER_BATCH_SIZE", 16),
		MaxAttempts:      getEnvAsInt("WORKER_MAX_ATTEMPTS", 10),
		BackoffBase:      getEnvAsDuration("WORKER_BACKOFF_BASE", 2*time.Second),
		BackoffCap:       getEnvAsDuration("WORKER_BACKOFF_CAP", 60*time.Second),
		BackoffJitter:    getEnvAsFloat64("WORKER_BACKOFF_JITTER", 0.2),
		AckTimeout:       getEnvAsDuration("WORKER_ACK_TIMEOUT", 2*time.Minute),
		StaleSendTimeout: getEnvAsDuration("WORKER_STALE_SEND_TIMEOUT", 30*time.Second),
		SweepSchedule:    getEnv("WORKER_SWEEP_SCHEDULE", "@every 30s"),
	}
}
