package config

import (
	"fmt"
	"os"
	"strconv"
	"time"

	"github.com/joho/godotenv"
)

// Config holds application configuration loaded from environment.
type Config struct {
	Server   ServerConfig
	Database DatabaseConfig
	Redis    RedisConfig
	Provider ProviderConfig
	Storage  StorageConfig
	LMS      LMSConfig
	Webhook  WebhookConfig
	Retry    RetryConfig
	Pipeline PipelineConfig
	Admin    AdminConfig
	Courses  CoursesConfig
}

// ServerConfig holds HTTP server settings.
type ServerConfig struct {
	Port               string
	ReadTimeout        int
	WriteTimeout       int
	CORSAllowedOrigins string
}

// DatabaseConfig holds PostgreSQL connection settings.
type DatabaseConfig struct {
	URL      string
	Host     string
	Port     string
	User     string
	Password string
	DBName   string
	SSLMode  string
}

// RedisConfig holds Redis connection settings.
type RedisConfig struct {
	Addr     string
	Password string
	DB       int
}

// ProviderConfig holds the conferencing provider's OAuth and API settings (§6).
type ProviderConfig struct {
	TokenURL     string
	APIBaseURL   string
	AccountID    string
	ClientID     string
	ClientSecret string
}

// StorageConfig holds the object-store's resumable-upload endpoint settings (§6).
type StorageConfig struct {
	BaseURL     string
	FolderID    string
	AuthToken   string
	ChunkSizeMB int
}

// LMSConfig holds the learning-management-service web-service settings (§6).
type LMSConfig struct {
	BaseURL           string
	Token             string
	RequestsPerSecond float64
	Burst             int
}

// WebhookConfig holds the inbound webhook admission settings (§6).
type WebhookConfig struct {
	Secret           string
	DisableSignature bool
}

// RetryConfig holds the shared backoff tunables for download/upload (§4.3, §6).
type RetryConfig struct {
	MaxRetriesDownload int
	MaxRetriesUpload   int
	InitialBackoff     time.Duration
	MaxBackoff         time.Duration
	DownloadTimeout    time.Duration
	UploadTimeout      time.Duration
	MinExpectedSizeMB  int
}

// PipelineConfig holds the Coordinator's own tunables (§6).
type PipelineConfig struct {
	DownloadsDir        string
	PrepublishDelay     time.Duration
	PreviewPollTimeout  time.Duration
	PreviewPollInterval time.Duration
	UploadConcurrency   int
}

// AdminConfig holds the /admin surface's bearer-token guard.
type AdminConfig struct {
	Token string
}

// CoursesConfig holds the Course Resolver's cache and fallback settings (§6).
type CoursesConfig struct {
	DefaultCourseID *int64
	CacheTTL        time.Duration
}

// DSN returns the PostgreSQL connection string.
func (c DatabaseConfig) DSN() string {
	if c.URL != "" {
		return c.URL
	}
	return fmt.Sprintf(
		"postgres://%s:%s@%s:%s/%s?sslmode=%s",
		c.User, c.Password, c.Host, c.Port, c.DBName, c.SSLMode,
	)
}

// Load reads configuration from environment, with optional .env file.
func Load() (*Config, error) {
	_ = godotenv.Load()
	_ = godotenv.Load("env")

	readTimeout, _ := strconv.Atoi(getEnv("READ_TIMEOUT_SEC", "30"))
	writeTimeout, _ := strconv.Atoi(getEnv("WRITE_TIMEOUT_SEC", "30"))
	redisDB, _ := strconv.Atoi(getEnv("REDIS_DB", "0"))

	var defaultCourseID *int64
	if v := os.Getenv("DEFAULT_COURSE_ID"); v != "" {
		if n, err := strconv.ParseInt(v, 10, 64); err == nil {
			defaultCourseID = &n
		}
	}

	cfg := &Config{
		Server: ServerConfig{
			Port:               getEnv("PORT", "8080"),
			ReadTimeout:        readTimeout,
			WriteTimeout:       writeTimeout,
			CORSAllowedOrigins: getEnv("CORS_ALLOWED_ORIGINS", "*"),
		},
		Database: DatabaseConfig{
			URL:      getEnv("DATABASE_URL", "postgres://localhost:5432/edurecord?sslmode=disable"),
			Host:     getEnv("DB_HOST", "localhost"),
			Port:     getEnv("DB_PORT", "5432"),
			User:     getEnv("DB_USER", "postgres"),
			Password: getEnv("DB_PASSWORD", "postgres"),
			DBName:   getEnv("DB_NAME", "edurecord"),
			SSLMode:  getEnv("DB_SSLMODE", "disable"),
		},
		Redis: RedisConfig{
			Addr:     getEnv("REDIS_ADDR", "localhost:6379"),
			Password: getEnv("REDIS_PASSWORD", ""),
			DB:       redisDB,
		},
		Provider: ProviderConfig{
			TokenURL:     getEnv("PROVIDER_TOKEN_URL", ""),
			APIBaseURL:   getEnv("PROVIDER_API_BASE_URL", ""),
			AccountID:    getEnv("PROVIDER_ACCOUNT_ID", ""),
			ClientID:     getEnv("PROVIDER_CLIENT_ID", ""),
			ClientSecret: getEnv("PROVIDER_CLIENT_SECRET", ""),
		},
		Storage: StorageConfig{
			BaseURL:     getEnv("STORAGE_BASE_URL", ""),
			FolderID:    getEnv("STORAGE_FOLDER_ID", ""),
			AuthToken:   getEnv("STORAGE_AUTH_TOKEN", ""),
			ChunkSizeMB: getEnvInt("CHUNK_SIZE_MB", 32),
		},
		LMS: LMSConfig{
			BaseURL:           getEnv("LMS_BASE_URL", ""),
			Token:             getEnv("LMS_TOKEN", ""),
			RequestsPerSecond: getEnvFloat("LMS_REQUESTS_PER_SECOND", 5),
			Burst:             getEnvInt("LMS_BURST", 5),
		},
		Webhook: WebhookConfig{
			Secret:           getEnv("WEBHOOK_SECRET", ""),
			DisableSignature: getEnvBool("WEBHOOK_DISABLE_SIGNATURE", false),
		},
		Retry: RetryConfig{
			MaxRetriesDownload: getEnvInt("MAX_RETRIES_DOWNLOAD", 10),
			MaxRetriesUpload:   getEnvInt("MAX_RETRIES_UPLOAD", 10),
			InitialBackoff:     time.Duration(getEnvInt("INITIAL_BACKOFF_MS", 30000)) * time.Millisecond,
			MaxBackoff:         time.Duration(getEnvInt("MAX_BACKOFF_MS", 300000)) * time.Millisecond,
			DownloadTimeout:    time.Duration(getEnvInt("DOWNLOAD_TIMEOUT_MS", 0)) * time.Millisecond,
			UploadTimeout:      time.Duration(getEnvInt("UPLOAD_TIMEOUT_MS", 0)) * time.Millisecond,
			MinExpectedSizeMB:  getEnvInt("MIN_EXPECTED_SIZE_MB", 1),
		},
		Pipeline: PipelineConfig{
			DownloadsDir:        getEnv("DOWNLOADS_DIR", "downloads"),
			PrepublishDelay:     time.Duration(getEnvInt("PREPUBLISH_DELAY_MS", 30000)) * time.Millisecond,
			PreviewPollTimeout:  time.Duration(getEnvInt("PREVIEW_POLL_TIMEOUT_MS", 120000)) * time.Millisecond,
			PreviewPollInterval: time.Duration(getEnvInt("PREVIEW_POLL_INTERVAL_MS", 10000)) * time.Millisecond,
			UploadConcurrency:   getEnvInt("UPLOAD_CONCURRENCY", 3),
		},
		Admin: AdminConfig{
			Token: getEnv("ADMIN_TOKEN", ""),
		},
		Courses: CoursesConfig{
			DefaultCourseID: defaultCourseID,
			CacheTTL:        time.Duration(getEnvInt("COURSES_CACHE_MS", 300000)) * time.Millisecond,
		},
	}
	return cfg, nil
}

func getEnvInt(key string, fallback int) int {
	if v := os.Getenv(key); v != "" {
		if n, err := strconv.Atoi(v); err == nil {
			return n
		}
	}
	return fallback
}

func getEnvFloat(key string, fallback float64) float64 {
	if v := os.Getenv(key); v != "" {
		if f, err := strconv.ParseFloat(v, 64); err == nil {
			return f
		}
	}
	return fallback
}

func getEnvBool(key string, fallback bool) bool {
	if v := os.Getenv(key); v != "" {
		if b, err := strconv.ParseBool(v); err == nil {
			return b
		}
	}
	return fallback
}

func getEnv(key, fallback string) string {
	if v := os.Getenv(key); v != "" {
		return v
	}
	return fallback
}
