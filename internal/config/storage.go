package config

type StorageConfig struct {
	Provider       string `yaml:"provider"` // local, s3, gcs
	LocalPath      string `yaml:"local_path"`
	LocalBaseURL   string `yaml:"local_base_url"`
	S3Region       string `yaml:"s3_region"`
	S3Bucket       string `yaml:"s3_bucket"`
	GCSCredentials string `yaml:"gcs_credentials"`
	GCSBucket      string `yaml:"gcs_bucket"`
	MaxUploadBytes int64  `yaml:"max_upload_bytes"`
}

func loadStorageConfig() *StorageConfig {
	return &StorageConfig{
		Provider:       getEnv("STORAGE_PROVIDER", "local"),
		LocalPath:      getEnv("STORAGE_LOCAL_PATH", "./data/attachments"),
		LocalBaseURL:   getEnv("STORAGE_LOCAL_BASE_URL", "http://localhost:8080/attachments"),
		S3Region:       getEnv("STORAGE_S3_REGION", "us-east-1"),
		S3Bucket:       getEnv("STORAGE_S3_BUCKET", ""),
		GCSCredentials: getEnv("STORAGE_GCS_CREDENTIALS_FILE", ""),
		GCSBucket:      getEnv("STORAGE_GCS_BUCKET", ""),
		MaxUploadBytes: int64(getEnvAsInt("STORAGE_MAX_UPLOAD_BYTES", 10*1024*1024)),
	}
}
