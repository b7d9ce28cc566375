package config

import (
	"fmt"
	"log"
	"os"
	"time"

	"github.com/ilyakaznacheev/cleanenv"
	"github.com/joho/godotenv"
)

// Config holds all the configuration for the application.
type Config struct {
	Env        string `yaml:"env" env:"ENV" env-default:"production"`
	HTTPServer `yaml:"http_server"`
	Database   `yaml:"database"`
	Telegram   `yaml:"telegram"`
	Analytics  `yaml:"analytics"`
	RateLimit  `yaml:"rate_limit"`
	UserAgent  `yaml:"user_agent"`
	Log        `yaml:"log"`
}

// HTTPServer holds HTTP listener configuration.
type HTTPServer struct {
	Address         string        `yaml:"address" env:"HTTP_ADDRESS" env-default:":8080"`
	ReadTimeout     time.Duration `yaml:"read_timeout" env:"HTTP_READ_TIMEOUT" env-default:"30s"`
	WriteTimeout    time.Duration `yaml:"write_timeout" env:"HTTP_WRITE_TIMEOUT" env-default:"30s"`
	IdleTimeout     time.Duration `yaml:"idle_timeout" env:"HTTP_IDLE_TIMEOUT" env-default:"60s"`
	ShutdownTimeout time.Duration `yaml:"shutdown_timeout" env:"HTTP_SHUTDOWN_TIMEOUT" env-default:"30s"`
}

// Database holds PostgreSQL connection settings.
//
// URL has priority; the host/user fields are only used when no connection
// string is found in the environment (see DSN).
type Database struct {
	URL             string `yaml:"url" env:"DATABASE_DSN"`
	Host            string `yaml:"host" env:"DB_HOST"`
	Port            int    `yaml:"port" env:"DB_PORT" env-default:"5432"`
	User            string `yaml:"user" env:"DB_USER" env-default:"postgres"`
	Password        string `yaml:"password" env:"DB_PASSWORD"`
	DBName          string `yaml:"dbname" env:"DB_NAME" env-default:"postgres"`
	SSLMode         string `yaml:"sslmode" env:"DB_SSLMODE" env-default:"disable"`
	Timezone        string `yaml:"timezone" env:"DB_TIMEZONE" env-default:"UTC"`
	MaxIdleConns    int    `yaml:"max_idle_conns" env:"DB_MAX_IDLE_CONNS" env-default:"2"`
	MaxOpenConns    int    `yaml:"max_open_conns" env:"DB_MAX_OPEN_CONNS" env-default:"10"`
	ConnMaxLifetime string `yaml:"conn_max_lifetime" env:"DB_CONN_MAX_LIFETIME" env-default:"1h"`
	AutoMigrate     bool   `yaml:"auto_migrate" env:"DB_AUTO_MIGRATE" env-default:"true"`
}

// Telegram holds Bot API credentials for visitor notifications.
type Telegram struct {
	BotToken string        `yaml:"bot_token" env:"TELEGRAM_BOT_TOKEN"`
	ChatID   string        `yaml:"chat_id" env:"TELEGRAM_CHAT_ID"`
	BaseURL  string        `yaml:"base_url" env:"TELEGRAM_BASE_URL" env-default:"https://api.telegram.org"`
	Timeout  time.Duration `yaml:"timeout" env:"TELEGRAM_TIMEOUT" env-default:"10s"`
}

// Analytics holds dashboard settings.
type Analytics struct {
	Password          string `yaml:"password" env:"ANALYTICS_PASSWORD"`
	PasswordHash      string `yaml:"password_hash" env:"ANALYTICS_PASSWORD_HASH"`
	RecentEventsLimit int    `yaml:"recent_events_limit" env:"ANALYTICS_RECENT_EVENTS_LIMIT" env-default:"50"`
	JourneysLimit     int    `yaml:"journeys_limit" env:"ANALYTICS_JOURNEYS_LIMIT" env-default:"100"`
}

// RateLimit holds per-IP limits for the ingest endpoint.
// Requests <= 0 disables limiting. Forwarding headers are trusted only from
// TrustedProxies (IPs or CIDRs).
type RateLimit struct {
	Requests       int           `yaml:"requests" env:"RATE_LIMIT_REQUESTS" env-default:"60"`
	Window         time.Duration `yaml:"window" env:"RATE_LIMIT_WINDOW" env-default:"1m"`
	RedisURL       string        `yaml:"redis_url" env:"RATE_LIMIT_REDIS_URL"`
	TrustedProxies []string      `yaml:"trusted_proxies" env:"RATE_LIMIT_TRUSTED_PROXIES" env-separator:","`
}

// DefaultRateLimitWindow replaces a non-positive window.
const DefaultRateLimitWindow = time.Minute

// normalize reports whether Window had to be replaced.
func (r *RateLimit) normalize() bool {
	if r.Window > 0 {
		return false
	}
	r.Window = DefaultRateLimitWindow
	return true
}

// UserAgent holds the uap-go regexes location. Empty means built-in definitions.
type UserAgent struct {
	RegexesPath string `yaml:"regexes_path" env:"UA_REGEXES_PATH" env-default:"assets/regexes.yaml"`
}

// Log holds optional file output settings.
type Log struct {
	File       string `yaml:"file" env:"LOG_FILE"`
	MaxSizeMB  int    `yaml:"max_size_mb" env:"LOG_MAX_SIZE_MB" env-default:"100"`
	MaxBackups int    `yaml:"max_backups" env:"LOG_MAX_BACKUPS" env-default:"3"`
	MaxAgeDays int    `yaml:"max_age_days" env:"LOG_MAX_AGE_DAYS" env-default:"28"`
}

// ConnectionStringEnv lists the variables checked for a database URL, in order.
// Hosting providers expose the same database under different names.
var ConnectionStringEnv = []string{
	"POSTGRES_URL_POSTGRES_URL",
	"POSTGRES_URL",
	"DATABASE_URL",
	"SUPABASE_URL",
	"POSTGRES_PRISMA_URL",
}

// DSN resolves the connection string: explicit URL, then ConnectionStringEnv,
// then a keyword DSN built from the host fields. Empty means no database.
func (d *Database) DSN() string {
	return d.dsn(os.Getenv)
}

func (d *Database) dsn(getenv func(string) string) string {
	if d.URL != "" {
		return d.URL
	}
	for _, key := range ConnectionStringEnv {
		if v := getenv(key); v != "" {
			return v
		}
	}
	if d.Host == "" {
		return ""
	}
	return fmt.Sprintf("host=%s user=%s password=%s dbname=%s port=%d sslmode=%s TimeZone=%s",
		d.Host, d.User, d.Password, d.DBName, d.Port, d.SSLMode, d.Timezone)
}

// Enabled reports whether Telegram notifications are configured.
func (t *Telegram) Enabled() bool {
	return t.BotToken != "" && t.ChatID != ""
}

// MustLoad loads the application configuration.
func MustLoad() *Config {
	// Try to load .env file (ignore error in production)
	if err := godotenv.Load(); err != nil {
		log.Println("No .env file found, reading from environment variables")
	}

	var cfg Config

	configPath := os.Getenv("CONFIG_PATH")
	if configPath == "" {
		configPath = "config/local.yml"
	}

	if _, err := os.Stat(configPath); err == nil {
		if err := cleanenv.ReadConfig(configPath, &cfg); err != nil {
			log.Fatalf("cannot read config: %s", err)
		}
	} else {
		log.Println("Config file not found, using environment variables only")
		if err := cleanenv.ReadEnv(&cfg); err != nil {
			log.Fatalf("cannot read config from environment: %s", err)
		}
	}

	if cfg.RateLimit.normalize() {
		log.Printf("WARNING: RATE_LIMIT_WINDOW must be positive, using %s", DefaultRateLimitWindow)
	}

	if cfg.Analytics.Password == "" && cfg.Analytics.PasswordHash == "" {
		log.Println("WARNING: ANALYTICS_PASSWORD is not set, dashboard endpoints will reject every request")
	}

	return &cfg
}
