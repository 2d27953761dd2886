package config

type MapsConfig struct {
	Enabled      bool   `yaml:"enabled"`
	GoogleAPIKey string `yaml:"google_api_key"`
}

func loadMapsConfig() *MapsConfig {
	return &MapsConfig{
		Enabled:      getEnvAsBool("MAPS_ENABLED", false),
		GoogleAPIKey: getEnv("GOOGLE_MAPS_API_KEY", ""),
	}
}
