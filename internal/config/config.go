package config

import (
	"fmt"
	"os"
	"strconv"
	"time"

	"github.com/joho/godotenv"
)

// Config aggregates runtime configuration for the service.
type Config struct {
	App          AppConfig
	Postgres     PostgresConfig
	Redis        RedisConfig
	Logger       LoggerConfig
	Events       EventsConfig
	AI           AIConfig
	Notification NotificationConfig
	Workflow     WorkflowConfig
	Worker       WorkerConfig
	RunStore     RunStoreConfig
}

// AppConfig controls server level behavior.
type AppConfig struct {
	Name                  string
	Env                   string
	Host                  string
	Port                  string
	Version               string
	PublicURL             string
	RequestTimeoutSeconds int
}

// PostgresConfig holds DB connection values.
type PostgresConfig struct {
	DSN string
	// ApplicationName tags connections in pg_stat_activity.
	ApplicationName string
	MaxConns        int32
	MinConns        int32
	RunMigrations   bool
	ConnMaxIdleSec  int32
	ConnMaxLifeSec  int32
}

// RedisConfig holds Redis connection values.
type RedisConfig struct {
	Addr     string
	Password string
	DB       int
}

// LoggerConfig configures logging behavior.
type LoggerConfig struct {
	Level string
}

// EventsConfig selects the event queue backend.
type EventsConfig struct {
	Driver     string
	QueueKey   string
	BufferSize int
	SigningKey string
}

// AIConfig holds the classification service settings.
type AIConfig struct {
	Mode           string
	BaseURL        string
	Model          string
	APIKey         string
	TimeoutSeconds int
}

// NotificationConfig holds SMTP settings for outgoing mail.
type NotificationConfig struct {
	EmailFrom    string
	SMTPHost     string
	SMTPPort     int
	SMTPUser     string
	SMTPPassword string
}

// WorkflowConfig tunes step retries and failed-run redrive.
type WorkflowConfig struct {
	StepMaxAttempts  int
	StepBackoff      string
	StepDelay        time.Duration
	StepMaxDelay     time.Duration
	MaxExecutions    int
	RedriveSchedule  string
	RedriveBatchSize int
}

// WorkerConfig controls consumer concurrency.
type WorkerConfig struct {
	Concurrency int
}

// RunStoreConfig selects where workflow runs are persisted.
type RunStoreConfig struct {
	Driver     string
	SQLitePath string
}

// Load reads configuration from environment variables, applying defaults where possible.
func Load() (*Config, error) {
	_ = godotenv.Load()

	redisDB, err := strconv.Atoi(getEnv("REDIS_DB", "0"))
	if err != nil {
		return nil, fmt.Errorf("invalid REDIS_DB: %w", err)
	}
	stepDelay, err := time.ParseDuration(getEnv("WORKFLOW_STEP_DELAY", "1s"))
	if err != nil {
		return nil, fmt.Errorf("invalid WORKFLOW_STEP_DELAY: %w", err)
	}
	stepMaxDelay, err := time.ParseDuration(getEnv("WORKFLOW_STEP_MAX_DELAY", "30s"))
	if err != nil {
		return nil, fmt.Errorf("invalid WORKFLOW_STEP_MAX_DELAY: %w", err)
	}

	maxConns := int32(getEnvAsInt("POSTGRES_MAX_CONNS", 10))
	minConns := int32(getEnvAsInt("POSTGRES_MIN_CONNS", 2))
	runMigrations := getEnvAsBool("POSTGRES_RUN_MIGRATIONS", true)
	connMaxIdle := int32(getEnvAsInt("POSTGRES_CONN_MAX_IDLE_SECONDS", 30))
	connMaxLife := int32(getEnvAsInt("POSTGRES_CONN_MAX_LIFE_SECONDS", 300))

	appName := getEnv("APP_NAME", "ticket-triage")

	cfg := &Config{
		App: AppConfig{
			Name:                  appName,
			Env:                   getEnv("APP_ENV", "development"),
			Host:                  getEnv("APP_HOST", "0.0.0.0"),
			Port:                  getEnv("APP_PORT", "8080"),
			Version:               getEnv("APP_VERSION", "dev"),
			PublicURL:             getEnv("APP_URL", "http://localhost:5173/"),
			RequestTimeoutSeconds: getEnvAsInt("HTTP_REQUEST_TIMEOUT_SECONDS", 30),
		},
		Postgres: PostgresConfig{
			DSN:             os.Getenv("POSTGRES_DSN"),
			ApplicationName: appName,
			MaxConns:        maxConns,
			MinConns:        minConns,
			RunMigrations:   runMigrations,
			ConnMaxIdleSec:  connMaxIdle,
			ConnMaxLifeSec:  connMaxLife,
		},
		Redis: RedisConfig{
			Addr:     getEnv("REDIS_ADDR", "127.0.0.1:6379"),
			Password: os.Getenv("REDIS_PASSWORD"),
			DB:       redisDB,
		},
		Logger: LoggerConfig{
			Level: getEnv("LOG_LEVEL", "info"),
		},
		Events: EventsConfig{
			Driver:     getEnv("EVENTS_DRIVER", "redis"),
			QueueKey:   getEnv("EVENTS_QUEUE_KEY", "triage:events"),
			BufferSize: getEnvAsInt("EVENTS_BUFFER_SIZE", 256),
			SigningKey: os.Getenv("EVENT_SIGNING_KEY"),
		},
		AI: AIConfig{
			Mode:           getEnv("AI_MODE", "live"),
			BaseURL:        getEnv("AI_BASE_URL", "https://generativelanguage.googleapis.com/v1beta"),
			Model:          getEnv("AI_MODEL", "gemini-1.5-flash"),
			APIKey:         os.Getenv("AI_API_KEY"),
			TimeoutSeconds: getEnvAsInt("AI_TIMEOUT_SECONDS", 30),
		},
		Notification: NotificationConfig{
			EmailFrom:    getEnv("NOTIFY_EMAIL_FROM", "noreply@smarttickets.com"),
			SMTPHost:     os.Getenv("SMTP_HOST"),
			SMTPPort:     getEnvAsInt("SMTP_PORT", 587),
			SMTPUser:     os.Getenv("SMTP_USER"),
			SMTPPassword: os.Getenv("SMTP_PASSWORD"),
		},
		Workflow: WorkflowConfig{
			StepMaxAttempts:  getEnvAsInt("WORKFLOW_STEP_MAX_ATTEMPTS", 4),
			StepBackoff:      getEnv("WORKFLOW_STEP_BACKOFF", "exponential"),
			StepDelay:        stepDelay,
			StepMaxDelay:     stepMaxDelay,
			MaxExecutions:    getEnvAsInt("WORKFLOW_MAX_EXECUTIONS", 5),
			RedriveSchedule:  getEnv("WORKFLOW_REDRIVE_SCHEDULE", "@every 5m"),
			RedriveBatchSize: getEnvAsInt("WORKFLOW_REDRIVE_BATCH_SIZE", 50),
		},
		Worker: WorkerConfig{
			Concurrency: getEnvAsInt("WORKER_CONCURRENCY", 8),
		},
		RunStore: RunStoreConfig{
			Driver:     getEnv("RUN_STORE_DRIVER", "postgres"),
			SQLitePath: getEnv("RUN_STORE_SQLITE_PATH", "file:runs.db?cache=shared&mode=rwc"),
		},
	}

	return cfg, nil
}

// Addr returns the HTTP bind address.
func (a AppConfig) Addr() string {
	return fmt.Sprintf("%s:%s", a.Host, a.Port)
}

// RequestTimeout returns the configured request timeout duration.
func (a AppConfig) RequestTimeout() time.Duration {
	if a.RequestTimeoutSeconds <= 0 {
		return 0
	}
	return time.Duration(a.RequestTimeoutSeconds) * time.Second
}

// Timeout returns the per-call deadline for the AI service.
func (a AIConfig) Timeout() time.Duration {
	if a.TimeoutSeconds <= 0 {
		return 30 * time.Second
	}
	return time.Duration(a.TimeoutSeconds) * time.Second
}

// SMTPAddr returns host:port, or "" when SMTP is not configured.
func (n NotificationConfig) SMTPAddr() string {
	if n.SMTPHost == "" {
		return ""
	}
	return fmt.Sprintf("%s:%d", n.SMTPHost, n.SMTPPort)
}

func getEnv(key, fallback string) string {
	if val := os.Getenv(key); val != "" {
		return val
	}
	return fallback
}

func getEnvAsInt(key string, fallback int) int {
	val := os.Getenv(key)
	if val == "" {
		return fallback
	}
	parsed, err := strconv.Atoi(val)
	if err != nil {
		return fallback
	}
	return parsed
}

func getEnvAsBool(key string, fallback bool) bool {
	val := os.Getenv(key)
	if val == "" {
		return fallback
	}
	parsed, err := strconv.ParseBool(val)
	if err != nil {
		return fallback
	}
	return parsed
}
