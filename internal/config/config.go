package config

import (
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/joho/godotenv"

	"ai-opportunities/report-portal/report-portal-backend/internal/delivery"
	"ai-opportunities/report-portal/report-portal-backend/internal/imagegen"
	"ai-opportunities/report-portal/report-portal-backend/internal/llm"
	"ai-opportunities/report-portal/report-portal-backend/internal/reports/jobs"
	"ai-opportunities/report-portal/report-portal-backend/internal/reports/render"
	"ai-opportunities/report-portal/report-portal-backend/pkg/browser"
	"ai-opportunities/report-portal/report-portal-backend/pkg/storage"
)

// Config represents the application configuration
type Config struct {
	Server    ServerConfig       `json:"server"`
	Database  DatabaseConfig     `json:"database"`
	Security  SecurityConfig     `json:"security"`
	Logging   LoggingConfig      `json:"logging"`
	LLM       llm.Config         `json:"llm"`
	ImageGen  ImageGenConfig     `json:"image_gen"`
	Render    RenderConfig       `json:"render"`
	Browser   browser.Config     `json:"browser"`
	Email     EmailConfig        `json:"email"`
	CRM       delivery.CRMConfig `json:"crm"`
	Storage   StorageConfig      `json:"storage"`
	RateLimit RateLimitConfig    `json:"rate_limit"`
	Redis     RedisConfig        `json:"redis"`
	Jobs      JobsConfig         `json:"jobs"`
}

// ServerConfig represents server configuration
type ServerConfig struct {
	Host            string        `json:"host"`
	Port            int           `json:"port"`
	Mode            string        `json:"mode"` // debug, release, test
	ReadTimeout     time.Duration `json:"read_timeout"`
	WriteTimeout    time.Duration `json:"write_timeout"`
	IdleTimeout     time.Duration `json:"idle_timeout"`
	ShutdownTimeout time.Duration `json:"shutdown_timeout"`
	MaxBodyBytes    int64         `json:"max_body_bytes"`
	CORSOrigins     []string      `json:"cors_origins"`
}

// DatabaseConfig represents database configuration
type DatabaseConfig struct {
	URL            string        `json:"url"`
	Host           string        `json:"host"`
	Port           int           `json:"port"`
	User           string        `json:"user"`
	Password       string        `json:"password"`
	DBName         string        `json:"db_name"`
	SSLMode        string        `json:"ssl_mode"`
	MaxConnections int           `json:"max_connections"`
	MaxIdleConns   int           `json:"max_idle_conns"`
	MaxLifetime    time.Duration `json:"max_lifetime"`
}

// SecurityConfig
type SecurityConfig struct {
	JWTSecret   string        `json:"jwt_secret"`
	JWTIssuer   string        `json:"jwt_issuer"`
	TokenTTL    time.Duration `json:"token_ttl"`
	AdminAPIKey string        `json:"admin_api_key"`
}

// LoggingConfig
type LoggingConfig struct {
	Level string `json:"level"`
}

// ImageGenConfig enables banner generation
type ImageGenConfig struct {
	Enabled bool `json:"enabled"`
	imagegen.Config
}

// RenderConfig holds page options and backend selection
type RenderConfig struct {
	Options  render.Options      `json:"options"`
	Banners  render.BannerConfig `json:"banners"`
	Backend  string              `json:"backend"`  // default for generated reports
	Fallback string              `json:"fallback"` // used once when the primary lacks an essential resource
}

// EmailConfig enables SES delivery
type EmailConfig struct {
	Enabled bool   `json:"enabled"`
	Region  string `json:"region"`
	delivery.EmailConfig
}

// StorageConfig selects where generated PDFs are archived
type StorageConfig struct {
	Driver string           `json:"driver"` // s3, memory or empty to disable
	Bucket string           `json:"bucket"`
	Prefix string           `json:"prefix"`
	URLTTL time.Duration    `json:"url_ttl"`
	S3     storage.S3Config `json:"s3"`
}

// RateLimitRule bounds requests per client per window
type RateLimitRule struct {
	Limit  int64         `json:"limit"`
	Window time.Duration `json:"window"`
}

// RateLimitConfig per route class
type RateLimitConfig struct {
	Render   RateLimitRule `json:"render"`
	Generate RateLimitRule `json:"generate"`
	Survey   RateLimitRule `json:"survey"`
	Token    RateLimitRule `json:"token"`
}

// RedisConfig backs shared rate-limit counters when Addr is set
type RedisConfig struct {
	Addr     string `json:"addr"`
	Password string `json:"password"`
	DB       int    `json:"db"`
	Prefix   string `json:"prefix"`
}

// JobsConfig for asynchronous report generation
type JobsConfig struct {
	Worker       jobs.WorkerConfig `json:"worker"`
	TTL          time.Duration     `json:"ttl"`
	ReapSchedule string            `json:"reap_schedule"` // cron spec with seconds
}

// Default returns the configuration used when nothing overrides it
func Default() *Config {
	return &Config{
		Server: ServerConfig{
			Host:            "0.0.0.0",
			Port:            8080,
			Mode:            "release",
			ReadTimeout:     30 * time.Second,
			WriteTimeout:    2 * time.Minute,
			IdleTimeout:     2 * time.Minute,
			ShutdownTimeout: 30 * time.Second,
			MaxBodyBytes:    2 << 20,
			CORSOrigins:     []string{"*"},
		},
		Database: DatabaseConfig{
			Host:           "localhost",
			Port:           5432,
			User:           os.Getenv("USER"),
			DBName:         "report_portal",
			SSLMode:        "disable",
			MaxConnections: 25,
			MaxIdleConns:   5,
			MaxLifetime:    30 * time.Minute,
		},
		Security: SecurityConfig{
			JWTIssuer: "report-portal",
			TokenTTL:  time.Hour,
		},
		Logging: LoggingConfig{Level: "info"},
		Render: RenderConfig{
			Options:  render.DefaultOptions(),
			Banners:  render.BannerConfig{Timeout: 10 * time.Second, Retries: 1, Concurrency: 4},
			Backend:  string(render.BackendVector),
			Fallback: string(render.BackendVector),
		},
		CRM: delivery.CRMConfig{Timeout: 30 * time.Second, RetryCount: 3},
		Storage: StorageConfig{
			Prefix: "reports",
			URLTTL: 7 * 24 * time.Hour,
		},
		RateLimit: RateLimitConfig{
			Render:   RateLimitRule{Limit: 30, Window: time.Minute},
			Generate: RateLimitRule{Limit: 5, Window: time.Hour},
			Survey:   RateLimitRule{Limit: 20, Window: time.Hour},
			Token:    RateLimitRule{Limit: 10, Window: time.Minute},
		},
		Jobs: JobsConfig{
			Worker:       jobs.DefaultWorkerConfig(),
			TTL:          time.Hour,
			ReapSchedule: "0 */5 * * * *",
		},
	}
}

// LoadConfig loads configuration from file and environment variables.
// Variables from envFiles are loaded first when the files exist; a
// missing config file is not an error.
func LoadConfig(configPath string, envFiles ...string) (*Config, error) {
	if err := loadDotEnv(envFiles...); err != nil {
		return nil, err
	}

	config := Default()

	// Load from file if exists
	if configPath != "" {
		data, err := os.ReadFile(configPath)
		switch {
		case err == nil:
			if err := json.Unmarshal(data, config); err != nil {
				return nil, fmt.Errorf("failed to parse config file: %w", err)
			}
		case !errors.Is(err, os.ErrNotExist):
			return nil, fmt.Errorf("failed to read config file: %w", err)
		}
	}

	// Override with environment variables
	if err := overrideWithEnv(config); err != nil {
		return nil, err
	}

	return config, config.Validate()
}

func loadDotEnv(files ...string) error {
	if len(files) == 0 {
		files = []string{".env"}
	}
	for _, f := range files {
		if _, err := os.Stat(f); err != nil {
			continue
		}
		if err := godotenv.Load(f); err != nil {
			return fmt.Errorf("failed to load %s: %w", f, err)
		}
	}
	return nil
}

type envReader struct {
	errs []error
}

func (r *envReader) str(key string, dst *string) {
	if v, ok := os.LookupEnv(key); ok && v != "" {
		*dst = v
	}
}

func (r *envReader) int(key string, dst *int) {
	if v := os.Getenv(key); v != "" {
		n, err := strconv.Atoi(v)
		if err != nil {
			r.errs = append(r.errs, fmt.Errorf("%s: %w", key, err))
			return
		}
		*dst = n
	}
}

func (r *envReader) int64(key string, dst *int64) {
	if v := os.Getenv(key); v != "" {
		n, err := strconv.ParseInt(v, 10, 64)
		if err != nil {
			r.errs = append(r.errs, fmt.Errorf("%s: %w", key, err))
			return
		}
		*dst = n
	}
}

func (r *envReader) bool(key string, dst *bool) {
	if v := os.Getenv(key); v != "" {
		b, err := strconv.ParseBool(v)
		if err != nil {
			r.errs = append(r.errs, fmt.Errorf("%s: %w", key, err))
			return
		}
		*dst = b
	}
}

func (r *envReader) duration(key string, dst *time.Duration) {
	if v := os.Getenv(key); v != "" {
		d, err := time.ParseDuration(v)
		if err != nil {
			r.errs = append(r.errs, fmt.Errorf("%s: %w", key, err))
			return
		}
		*dst = d
	}
}

func (r *envReader) list(key string, dst *[]string) {
	if v := os.Getenv(key); v != "" {
		var out []string
		for _, item := range strings.Split(v, ",") {
			if item = strings.TrimSpace(item); item != "" {
				out = append(out, item)
			}
		}
		*dst = out
	}
}

func overrideWithEnv(config *Config) error {
	env := &envReader{}

	env.str("SERVER_HOST", &config.Server.Host)
	env.int("SERVER_PORT", &config.Server.Port)
	env.str("GIN_MODE", &config.Server.Mode)
	env.int64("SERVER_MAX_BODY_BYTES", &config.Server.MaxBodyBytes)
	env.list("CORS_ORIGINS", &config.Server.CORSOrigins)

	env.str("DATABASE_URL", &config.Database.URL)
	env.str("DATABASE_HOST", &config.Database.Host)
	env.int("DATABASE_PORT", &config.Database.Port)
	env.str("DATABASE_USER", &config.Database.User)
	env.str("DATABASE_PASSWORD", &config.Database.Password)
	env.str("DATABASE_DBNAME", &config.Database.DBName)
	env.str("DATABASE_SSLMODE", &config.Database.SSLMode)

	env.str("JWT_SECRET", &config.Security.JWTSecret)
	env.duration("JWT_TTL", &config.Security.TokenTTL)
	env.str("ADMIN_API_KEY", &config.Security.AdminAPIKey)

	env.str("LOG_LEVEL", &config.Logging.Level)

	env.str("OPENAI_API_KEY", &config.LLM.APIKey)
	env.str("LLM_API_KEY", &config.LLM.APIKey)
	env.str("LLM_BASE_URL", &config.LLM.BaseURL)
	env.str("LLM_MODEL", &config.LLM.Model)
	env.duration("LLM_TIMEOUT", &config.LLM.Timeout)
	env.int("LLM_MAX_ATTEMPTS", &config.LLM.MaxAttempts)

	env.bool("IMAGE_GEN_ENABLED", &config.ImageGen.Enabled)
	env.str("IMAGE_GEN_BASE_URL", &config.ImageGen.BaseURL)
	env.str("IMAGE_GEN_API_KEY", &config.ImageGen.APIKey)

	env.str("RENDER_BACKEND", &config.Render.Backend)
	env.str("RENDER_FALLBACK", &config.Render.Fallback)
	env.str("RENDER_FONT_FILE", &config.Render.Options.FontFile)
	env.str("RENDER_BOLD_FONT_FILE", &config.Render.Options.BoldFontFile)
	env.str("BROWSER_BIN", &config.Browser.Bin)
	env.bool("BROWSER_NO_SANDBOX", &config.Browser.NoSandbox)

	env.str("AWS_REGION", &config.Email.Region)
	env.str("AWS_REGION", &config.Storage.S3.Region)
	env.bool("EMAIL_ENABLED", &config.Email.Enabled)
	env.str("EMAIL_FROM", &config.Email.FromAddress)
	env.str("EMAIL_FROM_NAME", &config.Email.FromName)
	env.str("EMAIL_REPLY_TO", &config.Email.ReplyTo)
	env.str("EMAIL_BCC", &config.Email.BCC)

	env.str("CRM_WEBHOOK_URL", &config.CRM.WebhookURL)
	env.str("CRM_TOKEN", &config.CRM.Token)

	env.str("STORAGE_DRIVER", &config.Storage.Driver)
	env.str("STORAGE_BUCKET", &config.Storage.Bucket)
	env.str("S3_ENDPOINT", &config.Storage.S3.Endpoint)
	env.str("S3_ACCESS_KEY_ID", &config.Storage.S3.AccessKeyID)
	env.str("S3_SECRET_ACCESS_KEY", &config.Storage.S3.SecretAccessKey)
	env.bool("S3_USE_PATH_STYLE", &config.Storage.S3.UsePathStyle)

	env.str("REDIS_ADDR", &config.Redis.Addr)
	env.str("REDIS_PASSWORD", &config.Redis.Password)
	env.int("REDIS_DB", &config.Redis.DB)

	env.int("JOBS_MAX_CONCURRENT", &config.Jobs.Worker.MaxConcurrent)
	env.duration("JOBS_TIMEOUT", &config.Jobs.Worker.JobTimeout)

	return errors.Join(env.errs...)
}

// Validate checks settings that would otherwise fail at first use
func (c *Config) Validate() error {
	var errs []error
	if c.Security.AdminAPIKey != "" && len(c.Security.JWTSecret) < 32 {
		errs = append(errs, errors.New("security.jwt_secret must be at least 32 bytes when admin_api_key is set"))
	}
	if _, err := render.ParseBackend(c.Render.Backend); err != nil {
		errs = append(errs, fmt.Errorf("render.backend: %w", err))
	}
	if c.Render.Fallback != "" {
		if _, err := render.ParseBackend(c.Render.Fallback); err != nil {
			errs = append(errs, fmt.Errorf("render.fallback: %w", err))
		}
	}
	switch c.Storage.Driver {
	case "", "memory":
	case "s3":
		if c.Storage.Bucket == "" {
			errs = append(errs, errors.New("storage.bucket is required for the s3 driver"))
		}
	default:
		errs = append(errs, fmt.Errorf("storage.driver: unknown driver %q", c.Storage.Driver))
	}
	if c.Email.Enabled && c.Email.FromAddress == "" {
		errs = append(errs, errors.New("email.from_address is required when email is enabled"))
	}
	return errors.Join(errs...)
}

// GetDatabaseURL returns the database connection string
func (c *DatabaseConfig) GetDatabaseURL() string {
	if c.URL != "" {
		return c.URL
	}
	return fmt.Sprintf("postgres://%s:%s@%s:%d/%s?sslmode=%s",
		c.User, c.Password, c.Host, c.Port, c.DBName, c.SSLMode)
}

// GetServerAddr returns the server address
func (c *ServerConfig) GetServerAddr() string {
	return fmt.Sprintf("%s:%d", c.Host, c.Port)
}
