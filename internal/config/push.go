package config

type PushConfig struct {
	Enabled        bool        `yaml:"enabled"`
	FCMCredentials string      `yaml:"fcm_credentials"`
	APNS           *APNSConfig `yaml:"apns"`
}

type APNSConfig struct {
	Enabled    bool   `yaml:"enabled"`
	KeyFile    string `yaml:"key_file"`
	KeyID      string `yaml:"key_id"`
	TeamID     string `yaml:"team_id"`
	Topic      string `yaml:"topic"`
	Production bool   `yaml:"production"`
}

func loadPushConfig() *PushConfig {
	return &PushConfig{
		Enabled:        getEnvAsBool("PUSH_ENABLED", false),
		FCMCredentials: getEnv("FCM_CREDENTIALS_FILE", ""),
		APNS: &APNSConfig{
			Enabled:    getEnvAsBool("APNS_ENABLED", false),
			KeyFile:    getEnv("APNS_KEY_FILE", ""),
			KeyID:      getEnv("APNS_KEY_ID", ""),
			TeamID:     getEnv("APNS_TEAM_ID", ""),
			Topic:      getEnv("APNS_TOPIC", ""),
			Production: getEnvAsBool("APNS_PRODUCTION", false),
		},
	}
}
