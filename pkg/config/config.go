package config

import (
	"fmt"
	"net/url"
	"strings"
	"time"

	"github.com/kelseyhightower/envconfig"
)

type Config struct {
	App          AppConfig
	DB           DBConfig
	Redis        RedisConfig
	GCP          GCPConfig
	GCS          GCSConfig
	OpenAI       OpenAIConfig
	Upload       UploadConfig
	Queue        QueueConfig
	FeatureFlags FeatureFlagsConfig
}

func Load() (*Config, error) {
	var cfg Config
	if err := envconfig.Process(EnvPrefix, &cfg); err != nil {
		return nil, fmt.Errorf("parsing config: %w", err)
	}
	if err := cfg.DB.ensureDSN(); err != nil {
		return nil, err
	}
	return &cfg, nil
}

type AppConfig struct {
	Env            string   `envconfig:"KIRKI_APP_ENV" required:"true"`
	Port           string   `envconfig:"KIRKI_APP_PORT" required:"true"`
	LogLevel       string   `envconfig:"KIRKI_LOG_LEVEL" default:"info"`
	LogWarnStack   bool     `envconfig:"KIRKI_LOG_WARN_STACK" default:"false"`
	AllowedOrigins []string `envconfig:"KIRKI_ALLOWED_ORIGINS"`
}

func (a AppConfig) IsDev() bool {
	return strings.EqualFold(a.Env, AppEnvDev)
}

func (a AppConfig) IsProd() bool {
	return strings.EqualFold(a.Env, AppEnvProd)
}

type DBConfig struct {
	DSN    string `envconfig:"KIRKI_DB_DSN"`
	Driver string `envconfig:"KIRKI_DB_DRIVER" default:"postgres"`

	LegacyHost     string `envconfig:"KIRKI_DB_HOST"`
	LegacyPort     int    `envconfig:"KIRKI_DB_PORT" default:"5432"`
	LegacyUser     string `envconfig:"KIRKI_DB_USER"`
	LegacyPassword string `envconfig:"KIRKI_DB_PASSWORD"`
	LegacyName     string `envconfig:"KIRKI_DB_NAME"`
	LegacySSLMode  string `envconfig:"KIRKI_DB_SSLMODE" default:"disable"`

	MaxOpenConns    int           `envconfig:"KIRKI_DB_MAX_OPEN_CONNS" default:"20"`
	MaxIdleConns    int           `envconfig:"KIRKI_DB_MAX_IDLE_CONNS" default:"10"`
	ConnMaxLifetime time.Duration `envconfig:"KIRKI_DB_CONN_MAX_LIFETIME" default:"1h"`
	ConnMaxIdleTime time.Duration `envconfig:"KIRKI_DB_CONN_MAX_IDLE_TIME" default:"10m"`

	WorkerMaxOpenConns int `envconfig:"KIRKI_DB_WORKER_MAX_OPEN_CONNS" default:"5"`
	WorkerMaxIdleConns int `envconfig:"KIRKI_DB_WORKER_MAX_IDLE_CONNS" default:"2"`
}

// WorkerPool returns a copy of the DB config sized for the pipeline worker,
// so a saturated background workload cannot starve request-path connections.
func (db DBConfig) WorkerPool() DBConfig {
	out := db
	out.MaxOpenConns = db.WorkerMaxOpenConns
	out.MaxIdleConns = db.WorkerMaxIdleConns
	return out
}

type RedisConfig struct {
	URL          string        `envconfig:"KIRKI_REDIS_URL" required:"true"`
	Address      string        `envconfig:"KIRKI_REDIS_ADDR"`
	Password     string        `envconfig:"KIRKI_REDIS_PASSWORD"`
	DB           int           `envconfig:"KIRKI_REDIS_DB" default:"0"`
	PoolSize     int           `envconfig:"KIRKI_REDIS_POOL_SIZE" default:"10"`
	MinIdleConns int           `envconfig:"KIRKI_REDIS_MIN_IDLE_CONNS" default:"2"`
	DialTimeout  time.Duration `envconfig:"KIRKI_REDIS_DIAL_TIMEOUT" default:"5s"`
	ReadTimeout  time.Duration `envconfig:"KIRKI_REDIS_READ_TIMEOUT" default:"5s"`
	WriteTimeout time.Duration `envconfig:"KIRKI_REDIS_WRITE_TIMEOUT" default:"5s"`
}

type GCPConfig struct {
	ProjectID              string `envconfig:"KIRKI_GCP_PROJECT_ID"`
	CredentialsJSON        string `envconfig:"KIRKI_GCP_CREDENTIALS_JSON"`
	ApplicationCredentials string `envconfig:"KIRKI_GOOGLE_APPLICATION_CREDENTIALS"`
}

type GCSConfig struct {
	BucketName string `envconfig:"KIRKI_GCS_BUCKET_NAME" required:"true"`
}

type OpenAIConfig struct {
	APIKey          string        `envconfig:"KIRKI_OPENAI_API_KEY"`
	BaseURL         string        `envconfig:"KIRKI_OPENAI_BASE_URL" default:"https://api.openai.com/v1"`
	SpeechModel     string        `envconfig:"KIRKI_OPENAI_SPEECH_MODEL" default:"whisper-1"`
	ChatModel       string        `envconfig:"KIRKI_OPENAI_CHAT_MODEL" default:"gpt-4o"`
	ImageModel      string        `envconfig:"KIRKI_OPENAI_IMAGE_MODEL" default:"dall-e-3"`
	RequestTimeout  time.Duration `envconfig:"KIRKI_OPENAI_REQUEST_TIMEOUT" default:"120s"`
	DownloadTimeout time.Duration `envconfig:"KIRKI_OPENAI_DOWNLOAD_TIMEOUT" default:"30s"`
}

type UploadConfig struct {
	MaxUploadMB int `envconfig:"KIRKI_MAX_UPLOAD_MB" default:"500"`
}

// MaxUploadBytes returns the upload ceiling in bytes.
func (u UploadConfig) MaxUploadBytes() int64 {
	return int64(u.MaxUploadMB) * 1024 * 1024
}

type QueueConfig struct {
	JobTimeout   time.Duration `envconfig:"KIRKI_QUEUE_JOB_TIMEOUT" default:"30m"`
	StatusTTL    time.Duration `envconfig:"KIRKI_QUEUE_STATUS_TTL" default:"24h"`
	PollInterval time.Duration `envconfig:"KIRKI_QUEUE_POLL_INTERVAL" default:"2s"`
	Concurrency  int           `envconfig:"KIRKI_QUEUE_CONCURRENCY" default:"2"`
}

type FeatureFlagsConfig struct {
	AutoMigrate bool `envconfig:"KIRKI_AUTO_MIGRATE" default:"false"`
	// InlineQueue forces the dispatcher into inline mode so local runs and
	// tests can bypass redis entirely.
	InlineQueue bool `envconfig:"KIRKI_QUEUE_INLINE" default:"false"`
}

func (db *DBConfig) ensureDSN() error {
	if db.DSN != "" {
		return nil
	}

	missing := []string{}
	legacyValues := map[string]string{
		EnvDBHost: db.LegacyHost,
		EnvDBUser: db.LegacyUser,
		EnvDBName: db.LegacyName,
	}
	for _, env := range legacyDBEnvVars {
		if legacyValues[env] == "" {
			missing = append(missing, env)
		}
	}

	if len(missing) > 0 {
		return fmt.Errorf("either %s or %s are required", EnvDBDSN, strings.Join(missing, ", "))
	}

	userInfo := url.User(db.LegacyUser)
	if db.LegacyPassword != "" {
		userInfo = url.UserPassword(db.LegacyUser, db.LegacyPassword)
	}

	u := &url.URL{
		Scheme: "postgres",
		User:   userInfo,
		Host:   fmt.Sprintf("%s:%d", db.LegacyHost, db.LegacyPort),
		Path:   db.LegacyName,
	}

	if db.LegacySSLMode != "" {
		q := u.Query()
		q.Set("sslmode", db.LegacySSLMode)
		u.RawQuery = q.Encode()
	}

	db.DSN = u.String()
	return nil
}
