package config

import (
	"fmt"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/adhocore/gronx"
	"github.com/dustin/go-humanize"
	"github.com/joho/godotenv"
)

type Config struct {
	ServerPort  string
	Environment string
	LogLevel    string

	FirebaseProject    string
	ServiceAccountJSON string
	ServiceAccountPath string
	AuthMode           string
	JWTSecret          string

	StoreDriver   string
	MongoURI      string
	MongoDatabase string

	StorageDriver string
	StorageBucket string

	Messaging  MessagingConfig
	Attachment AttachmentConfig
	Sweeper    SweeperConfig
}

type MessagingConfig struct {
	MaxContentLength int
	MaxSubjectLength int
	SendRatePerMin   int
	SendRateBurst    int
	APIRatePerMin    int
	APIRateBurst     int
}

type AttachmentConfig struct {
	MaxFiles          int
	MaxSize           int64
	AllowedExtensions []string
}

type SweeperConfig struct {
	Cron        string
	GracePeriod time.Duration
}

const (
	StoreFirestore = "firestore"
	StoreMongo     = "mongo"

	StorageGCS    = "gcs"
	StorageGridFS = "gridfs"

	AuthFirebase = "firebase"
	AuthJWT      = "jwt"
)

func Load() (*Config, error) {
	godotenv.Load()

	config := &Config{
		ServerPort:  getEnv("SERVER_PORT", "8080"),
		Environment: getEnv("ENVIRONMENT", "development"),
		LogLevel:    getEnv("LOG_LEVEL", "info"),

		FirebaseProject:    getEnv("FIREBASE_PROJECT_ID", ""),
		ServiceAccountJSON: getEnv("FIREBASE_SERVICE_ACCOUNT_JSON", ""),
		ServiceAccountPath: getEnv("FIREBASE_SERVICE_ACCOUNT_PATH", ""),
		AuthMode:           getEnv("AUTH_MODE", AuthFirebase),
		JWTSecret:          getEnv("JWT_SECRET", "your-secret-key"),

		StoreDriver:   getEnv("STORE_DRIVER", StoreFirestore),
		MongoURI:      getEnv("MONGO_URI", "mongodb://localhost:27017"),
		MongoDatabase: getEnv("MONGO_DATABASE", "learnhub"),

		StorageDriver: getEnv("STORAGE_DRIVER", StorageGCS),
		StorageBucket: getEnv("STORAGE_BUCKET", ""),

		Messaging: MessagingConfig{
			MaxContentLength: getEnvAsInt("MESSAGE_MAX_CONTENT_LENGTH", 5000),
			MaxSubjectLength: getEnvAsInt("MESSAGE_MAX_SUBJECT_LENGTH", 200),
			SendRatePerMin:   getEnvAsInt("SEND_RATE_PER_MINUTE", 30),
			SendRateBurst:    getEnvAsInt("SEND_RATE_BURST", 10),
			APIRatePerMin:    getEnvAsInt("API_RATE_PER_MINUTE", 600),
			APIRateBurst:     getEnvAsInt("API_RATE_BURST", 60),
		},
		Attachment: AttachmentConfig{
			MaxFiles:          getEnvAsInt("ATTACHMENT_MAX_FILES", 5),
			MaxSize:           getEnvAsBytes("ATTACHMENT_MAX_SIZE", 10*1024*1024),
			AllowedExtensions: getEnvAsList("ATTACHMENT_ALLOWED_EXTENSIONS", []string{"jpg", "jpeg", "png", "gif", "pdf", "doc", "docx", "txt", "zip", "rar"}),
		},
		Sweeper: SweeperConfig{
			Cron:        getEnv("ORPHAN_SWEEP_CRON", "*/30 * * * *"),
			GracePeriod: getEnvAsDuration("ORPHAN_GRACE_PERIOD", time.Hour),
		},
	}

	if err := config.Validate(); err != nil {
		return nil, err
	}

	return config, nil
}

func (c *Config) Validate() error {
	switch c.StoreDriver {
	case StoreFirestore, StoreMongo:
	default:
		return fmt.Errorf("unknown STORE_DRIVER %q", c.StoreDriver)
	}

	switch c.StorageDriver {
	case StorageGCS, StorageGridFS:
	default:
		return fmt.Errorf("unknown STORAGE_DRIVER %q", c.StorageDriver)
	}

	if c.StorageDriver == StorageGridFS && c.StoreDriver != StoreMongo {
		return fmt.Errorf("STORAGE_DRIVER=gridfs requires STORE_DRIVER=mongo")
	}

	switch c.AuthMode {
	case AuthFirebase, AuthJWT:
	default:
		return fmt.Errorf("unknown AUTH_MODE %q", c.AuthMode)
	}

	if c.Messaging.MaxContentLength <= 0 {
		return fmt.Errorf("MESSAGE_MAX_CONTENT_LENGTH must be positive")
	}

	if c.Messaging.SendRatePerMin <= 0 || c.Messaging.APIRatePerMin <= 0 {
		return fmt.Errorf("rate limits must be positive")
	}

	if c.Attachment.MaxFiles < 0 || c.Attachment.MaxSize <= 0 {
		return fmt.Errorf("invalid attachment limits")
	}

	if c.Sweeper.Cron != "" && !gronx.IsValid(c.Sweeper.Cron) {
		return fmt.Errorf("invalid ORPHAN_SWEEP_CRON expression %q", c.Sweeper.Cron)
	}

	return nil
}

func (c *Config) IsProduction() bool {
	return c.Environment == "production"
}

func getEnv(key, defaultValue string) string {
	if value, exists := os.LookupEnv(key); exists && value != "" {
		return value
	}
	return defaultValue
}

func getEnvAsInt(key string, defaultValue int) int {
	if value, exists := os.LookupEnv(key); exists {
		intValue, err := strconv.Atoi(value)
		if err == nil {
			return intValue
		}
	}
	return defaultValue
}

// getEnvAsBytes accepts plain byte counts as well as sizes like "10MiB".
func getEnvAsBytes(key string, defaultValue int64) int64 {
	if value, exists := os.LookupEnv(key); exists {
		if n, err := humanize.ParseBytes(value); err == nil {
			return int64(n)
		}
	}
	return defaultValue
}

func getEnvAsDuration(key string, defaultValue time.Duration) time.Duration {
	if value, exists := os.LookupEnv(key); exists {
		d, err := time.ParseDuration(value)
		if err == nil {
			return d
		}
	}
	return defaultValue
}

func getEnvAsList(key string, defaultValue []string) []string {
	value, exists := os.LookupEnv(key)
	if !exists || strings.TrimSpace(value) == "" {
		return defaultValue
	}

	var items []string
	for _, item := range strings.Split(value, ",") {
		item = strings.ToLower(strings.TrimSpace(strings.TrimPrefix(strings.TrimSpace(item), ".")))
		if item != "" {
			items = append(items, item)
		}
	}
	return items
}
