package config

import (
	"errors"
	"fmt"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/joho/godotenv"
)

type Config struct {
	Database DatabaseConfig
	Redis    RedisConfig
	Kafka    KafkaConfig
	HTTP     HTTPConfig
	Report   ReportConfig
	Ingest   IngestConfig
	Log      LogConfig
}

type DatabaseConfig struct {
	Host          string
	Port          int
	User          string
	Password      string
	DBName        string
	SSLMode       string
	MigrationsDir string
}

func (d DatabaseConfig) ConnectionString() string {
	return fmt.Sprintf("host=%s port=%d user=%s password=%s dbname=%s sslmode=%s",
		d.Host, d.Port, d.User, d.Password, d.DBName, d.SSLMode)
}

// RedisConfig is optional; an empty Addr disables the status cache
type RedisConfig struct {
	Addr      string
	Password  string
	DB        int
	StatusTTL time.Duration
}

// KafkaConfig is optional; no brokers disables report events
type KafkaConfig struct {
	Brokers           []string
	TopicObservations string
	TopicReports      string
	ConsumerGroup     string
	BatchSize         int
	FlushInterval     time.Duration
}

type HTTPConfig struct {
	Addr            string
	ReadTimeout     time.Duration
	WriteTimeout    time.Duration
	ShutdownTimeout time.Duration
}

type ReportConfig struct {
	Dir         string
	Window      time.Duration
	Concurrency int
}

type IngestConfig struct {
	StatusCSV       string
	MenuHoursCSV    string
	TimezonesCSV    string
	RefreshInterval time.Duration
	RefreshDelay    time.Duration
}

type LogConfig struct {
	Level  string
	Format string
}

func Load() (*Config, error) {
	// Load .env file if it exists (ignore error if not present)
	_ = godotenv.Load()

	config := &Config{
		Database: DatabaseConfig{
			Host:          getEnv("DB_HOST", "localhost"),
			Port:          getEnvAsInt("DB_PORT", 5432),
			User:          getEnv("DB_USER", "store_user"),
			Password:      getEnv("DB_PASSWORD", "store_pass"),
			DBName:        getEnv("DB_NAME", "store_monitoring"),
			SSLMode:       getEnv("DB_SSLMODE", "disable"),
			MigrationsDir: getEnv("DB_MIGRATIONS_DIR", "migrations"),
		},
		Redis: RedisConfig{
			Addr:      getEnv("REDIS_ADDR", ""),
			Password:  getEnv("REDIS_PASSWORD", ""),
			DB:        getEnvAsInt("REDIS_DB", 0),
			StatusTTL: getEnvAsDuration("REDIS_STATUS_TTL", 24*time.Hour),
		},
		Kafka: KafkaConfig{
			Brokers:           getEnvAsList("KAFKA_BROKERS"),
			TopicObservations: getEnv("KAFKA_TOPIC_OBSERVATIONS", "store.status.raw"),
			TopicReports:      getEnv("KAFKA_TOPIC_REPORTS", "store.reports"),
			ConsumerGroup:     getEnv("KAFKA_CONSUMER_GROUP", "status-ingest-group"),
			BatchSize:         getEnvAsInt("KAFKA_BATCH_SIZE", 100),
			FlushInterval:     getEnvAsDuration("KAFKA_FLUSH_INTERVAL", 5*time.Second),
		},
		HTTP: HTTPConfig{
			Addr:            getEnv("HTTP_ADDR", ":8000"),
			ReadTimeout:     getEnvAsDuration("HTTP_READ_TIMEOUT", 15*time.Second),
			WriteTimeout:    getEnvAsDuration("HTTP_WRITE_TIMEOUT", 60*time.Second),
			ShutdownTimeout: getEnvAsDuration("HTTP_SHUTDOWN_TIMEOUT", 10*time.Second),
		},
		Report: ReportConfig{
			Dir:         getEnv("REPORT_DIR", "reports"),
			Window:      getEnvAsDuration("REPORT_WINDOW", 7*24*time.Hour),
			Concurrency: getEnvAsInt("REPORT_CONCURRENCY", 8),
		},
		Ingest: IngestConfig{
			StatusCSV:       getEnv("INGEST_STATUS_CSV", "store status.csv"),
			MenuHoursCSV:    getEnv("INGEST_MENU_HOURS_CSV", "Menu hours.csv"),
			TimezonesCSV:    getEnv("INGEST_TIMEZONES_CSV", "bq.csv"),
			RefreshInterval: getEnvAsDuration("INGEST_REFRESH_INTERVAL", time.Hour),
			RefreshDelay:    getEnvAsDuration("INGEST_REFRESH_DELAY", 0),
		},
		Log: LogConfig{
			Level:  getEnv("LOG_LEVEL", "info"),
			Format: getEnv("LOG_FORMAT", "text"),
		},
	}

	if err := config.Validate(); err != nil {
		return nil, err
	}

	return config, nil
}

// Validate checks settings that would otherwise fail at runtime
func (c *Config) Validate() error {
	var errs []error
	if c.Report.Dir == "" {
		errs = append(errs, errors.New("REPORT_DIR must not be empty"))
	}
	if c.Report.Concurrency <= 0 {
		errs = append(errs, fmt.Errorf("REPORT_CONCURRENCY must be positive, got %d", c.Report.Concurrency))
	}
	if c.Report.Window <= 0 {
		errs = append(errs, fmt.Errorf("REPORT_WINDOW must be positive, got %s", c.Report.Window))
	}
	if c.Ingest.RefreshInterval <= 0 {
		errs = append(errs, fmt.Errorf("INGEST_REFRESH_INTERVAL must be positive, got %s", c.Ingest.RefreshInterval))
	}
	if c.Kafka.BatchSize <= 0 {
		errs = append(errs, fmt.Errorf("KAFKA_BATCH_SIZE must be positive, got %d", c.Kafka.BatchSize))
	}
	if c.Kafka.FlushInterval <= 0 {
		errs = append(errs, fmt.Errorf("KAFKA_FLUSH_INTERVAL must be positive, got %s", c.Kafka.FlushInterval))
	}
	return errors.Join(errs...)
}

func getEnv(key, defaultValue string) string {
	if value := os.Getenv(key); value != "" {
		return value
	}
	return defaultValue
}

func getEnvAsInt(key string, defaultValue int) int {
	valueStr := getEnv(key, "")
	if value, err := strconv.Atoi(valueStr); err == nil {
		return value
	}
	return defaultValue
}

func getEnvAsDuration(key string, defaultValue time.Duration) time.Duration {
	valueStr := getEnv(key, "")
	if value, err := time.ParseDuration(valueStr); err == nil {
		return value
	}
	return defaultValue
}

func getEnvAsList(key string) []string {
	var out []string
	for _, item := range strings.Split(getEnv(key, ""), ",") {
		if item = strings.TrimSpace(item); item != "" {
			out = append(out, item)
		}
	}
	return out
}
