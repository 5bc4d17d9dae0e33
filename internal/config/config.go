package config

import (
	"fmt"
	"os"
	"slices"
	"strings"
	"time"

	"github.com/joho/godotenv"
	"github.com/knadh/koanf/parsers/yaml"
	"github.com/knadh/koanf/providers/confmap"
	"github.com/knadh/koanf/providers/env"
	"github.com/knadh/koanf/providers/file"
	"github.com/knadh/koanf/providers/posflag"
	"github.com/knadh/koanf/v2"
	"github.com/spf13/pflag"
)

const envPrefix = "SCOUT_"

const (
	DriverPostgres = "postgres"
	DriverSQLite   = "sqlite"
	DriverCSV      = "csv"
)

type Config struct {
	Server    ServerConfig    `koanf:"server"`
	Database  DatabaseConfig  `koanf:"database"`
	Logger    LoggerConfig    `koanf:"logger"`
	Security  SecurityConfig  `koanf:"security"`
	Auth      AuthConfig      `koanf:"auth"`
	Assistant AssistantConfig `koanf:"assistant"`
	Console   ConsoleConfig   `koanf:"console"`
}

type ServerConfig struct {
	Host            string        `koanf:"host"`
	Port            int           `koanf:"port"`
	ReadTimeout     time.Duration `koanf:"read_timeout"`
	WriteTimeout    time.Duration `koanf:"write_timeout"`
	IdleTimeout     time.Duration `koanf:"idle_timeout"`
	ShutdownTimeout time.Duration `koanf:"shutdown_timeout"`
	LoadTimeout     time.Duration `koanf:"load_timeout"`
}

// DatabaseConfig selects where the two base tables come from. DSN wins over
// the discrete host fields when both are set.
type DatabaseConfig struct {
	Driver           string `koanf:"driver"`
	DSN              string `koanf:"dsn"`
	Host             string `koanf:"host"`
	Port             int    `koanf:"port"`
	Name             string `koanf:"name"`
	User             string `koanf:"user"`
	Password         string `koanf:"password"`
	SSLMode          string `koanf:"sslmode"`
	SQLitePath       string `koanf:"sqlite_path"`
	TransactionsCSV  string `koanf:"transactions_csv"`
	ItemsCSV         string `koanf:"items_csv"`
	SnapshotCacheDir string `koanf:"snapshot_cache_dir"`
}

type LoggerConfig struct {
	Level  string `koanf:"level"`
	Format string `koanf:"format"`
}

type SecurityConfig struct {
	EnableRateLimit bool     `koanf:"rate_limit_enabled"`
	RateLimitRPS    int      `koanf:"rate_limit_rps"`
	RateLimitBurst  int      `koanf:"rate_limit_burst"`
	AllowedOrigins  []string `koanf:"allowed_origins"`
	TrustedProxies  []string `koanf:"trusted_proxies"`
}

type AuthConfig struct {
	Username      string        `koanf:"username"`
	Password      string        `koanf:"password"`
	SessionSecret string        `koanf:"session_secret"`
	SessionMaxAge time.Duration `koanf:"session_max_age"`
	SecureCookie  bool          `koanf:"secure_cookie"`
}

type AssistantConfig struct {
	APIKey      string        `koanf:"api_key"`
	BaseURL     string        `koanf:"base_url"`
	Model       string        `koanf:"model"`
	Temperature float32       `koanf:"temperature"`
	MaxTokens   int           `koanf:"max_tokens"`
	Timeout     time.Duration `koanf:"timeout"`
}

type ConsoleConfig struct {
	QueryTimeout time.Duration `koanf:"query_timeout"`
	MaxRows      int           `koanf:"max_rows"`
}

// legacyEnv maps the bare variable names used by existing deployments onto
// config keys. They sit below the SCOUT_ prefixed variables in precedence.
var legacyEnv = map[string]string{
	"PORT":                 "server.port",
	"DB_CONNECTION_STRING": "database.dsn",
	"DB_HOST":              "database.host",
	"DB_PORT":              "database.port",
	"DB_NAME":              "database.name",
	"DB_USER":              "database.user",
	"DB_PASSWORD":          "database.password",
	"OPENAI_API_KEY":       "assistant.api_key",
	"DASHBOARD_USERNAME":   "auth.username",
	"DASHBOARD_PASSWORD":   "auth.password",
	"SESSION_SECRET":       "auth.session_secret",
}

func defaults() map[string]any {
	return map[string]any{
		"server.host":             "localhost",
		"server.port":             8050,
		"server.read_timeout":     "10s",
		"server.write_timeout":    "30s",
		"server.idle_timeout":     "60s",
		"server.shutdown_timeout": "30s",
		"server.load_timeout":     "60s",

		"database.driver":             DriverPostgres,
		"database.port":               5432,
		"database.sslmode":            "require",
		"database.sqlite_path":        "scout.db",
		"database.transactions_csv":   "data/twba_transactions.csv",
		"database.items_csv":          "data/twba_items.csv",
		"database.snapshot_cache_dir": ".cache",

		"logger.level":  "info",
		"logger.format": "json",

		"security.rate_limit_enabled": true,
		"security.rate_limit_rps":     100,
		"security.rate_limit_burst":   20,
		"security.allowed_origins":    []string{"http://localhost:8050"},
		"security.trusted_proxies":    []string{"127.0.0.1"},

		"auth.username":        "twba-admin",
		"auth.session_max_age": "12h",

		"assistant.base_url":    "https://api.openai.com/v1",
		"assistant.model":       "gpt-4o-mini",
		"assistant.temperature": 0.1,
		"assistant.max_tokens":  500,
		"assistant.timeout":     "30s",

		"console.query_timeout": "30s",
		"console.max_rows":      1000,
	}
}

// Load reads configuration with precedence flags > SCOUT_* env > legacy env >
// config file > defaults. A .env file in the working directory is read first
// and never overrides variables already set in the process.
func Load(cfgFile string, flags *pflag.FlagSet) (*Config, error) {
	_ = godotenv.Load()

	k := koanf.New(".")

	if err := k.Load(confmap.Provider(defaults(), "."), nil); err != nil {
		return nil, fmt.Errorf("load defaults: %w", err)
	}

	if cfgFile == "" {
		cfgFile = os.Getenv(envPrefix + "CONFIG")
	}
	if cfgFile != "" {
		if err := k.Load(file.Provider(cfgFile), yaml.Parser()); err != nil {
			return nil, fmt.Errorf("read config file %s: %w", cfgFile, err)
		}
	}

	legacy := make(map[string]any)
	for name, key := range legacyEnv {
		if v, ok := os.LookupEnv(name); ok && v != "" {
			legacy[key] = v
		}
	}
	if err := k.Load(confmap.Provider(legacy, "."), nil); err != nil {
		return nil, fmt.Errorf("load legacy env: %w", err)
	}

	// SCOUT_SERVER__READ_TIMEOUT -> server.read_timeout
	if err := k.Load(env.Provider(envPrefix, ".", func(s string) string {
		s = strings.ToLower(strings.TrimPrefix(s, envPrefix))
		return strings.ReplaceAll(s, "__", ".")
	}), nil); err != nil {
		return nil, fmt.Errorf("load env: %w", err)
	}

	if flags != nil {
		if err := k.Load(posflag.ProviderWithFlag(flags, ".", k, func(f *pflag.Flag) (string, any) {
			if !f.Changed {
				return "", nil
			}
			key, ok := flagKeys[f.Name]
			if !ok {
				return "", nil
			}
			return key, posflag.FlagVal(flags, f)
		}), nil); err != nil {
			return nil, fmt.Errorf("load flags: %w", err)
		}
	}

	var cfg Config
	if err := k.Unmarshal("", &cfg); err != nil {
		return nil, fmt.Errorf("decode config: %w", err)
	}

	if err := cfg.validate(); err != nil {
		return nil, fmt.Errorf("invalid configuration: %w", err)
	}

	return &cfg, nil
}

// flagKeys binds CLI flag names to config keys. Flags not listed here are
// command-local and never reach the config.
var flagKeys = map[string]string{
	"host":       "server.host",
	"port":       "server.port",
	"driver":     "database.driver",
	"dsn":        "database.dsn",
	"sqlite":     "database.sqlite_path",
	"log-level":  "logger.level",
	"log-format": "logger.format",
}

func (c *Config) validate() error {
	if c.Server.Port < 1 || c.Server.Port > 65535 {
		return fmt.Errorf("server port must be between 1 and 65535, got %d", c.Server.Port)
	}

	if c.Server.ReadTimeout <= 0 {
		return fmt.Errorf("server read timeout must be positive")
	}

	if c.Server.WriteTimeout <= 0 {
		return fmt.Errorf("server write timeout must be positive")
	}

	validDrivers := []string{DriverPostgres, DriverSQLite, DriverCSV}
	if !slices.Contains(validDrivers, c.Database.Driver) {
		return fmt.Errorf("invalid database driver %q, must be one of: %s", c.Database.Driver, strings.Join(validDrivers, ", "))
	}

	switch c.Database.Driver {
	case DriverPostgres:
		if c.Database.DSN == "" && c.Database.Host == "" {
			return fmt.Errorf("postgres requires database.dsn or database.host")
		}
	case DriverSQLite:
		if c.Database.SQLitePath == "" {
			return fmt.Errorf("sqlite path cannot be empty")
		}
	case DriverCSV:
		if c.Database.TransactionsCSV == "" || c.Database.ItemsCSV == "" {
			return fmt.Errorf("csv driver requires both transactions_csv and items_csv")
		}
	}

	validLogLevels := []string{"debug", "info", "warn", "error"}
	if !slices.Contains(validLogLevels, c.Logger.Level) {
		return fmt.Errorf("invalid log level %q, must be one of: %s", c.Logger.Level, strings.Join(validLogLevels, ", "))
	}

	validLogFormats := []string{"json", "text"}
	if !slices.Contains(validLogFormats, c.Logger.Format) {
		return fmt.Errorf("invalid log format %q, must be one of: %s", c.Logger.Format, strings.Join(validLogFormats, ", "))
	}

	if c.Security.RateLimitRPS <= 0 {
		return fmt.Errorf("rate limit RPS must be positive")
	}

	if c.Security.RateLimitBurst <= 0 {
		return fmt.Errorf("rate limit burst must be positive")
	}

	if c.Console.MaxRows <= 0 {
		return fmt.Errorf("console max rows must be positive")
	}

	return nil
}

// ValidateServe applies the checks that only matter when the HTTP server
// runs: the login pair and the cookie signing secret.
func (c *Config) ValidateServe() error {
	if c.Auth.Username == "" {
		return fmt.Errorf("auth username cannot be empty")
	}
	if c.Auth.Password == "" {
		return fmt.Errorf("auth password is required (set DASHBOARD_PASSWORD or SCOUT_AUTH__PASSWORD)")
	}
	if len(c.Auth.SessionSecret) < 32 {
		return fmt.Errorf("session secret must be at least 32 bytes")
	}
	return nil
}

func (c *Config) Address() string {
	return fmt.Sprintf("%s:%d", c.Server.Host, c.Server.Port)
}

// PostgresDSN returns the explicit DSN, or builds a key=value one from the
// discrete fields.
func (d DatabaseConfig) PostgresDSN() string {
	if d.DSN != "" {
		return d.DSN
	}

	host := d.Host
	if host == "" {
		host = "localhost"
	}
	port := d.Port
	if port == 0 {
		port = 5432
	}
	sslmode := d.SSLMode
	if sslmode == "" {
		sslmode = "require"
	}

	dsn := fmt.Sprintf("host=%s port=%d dbname=%s sslmode=%s", host, port, d.Name, sslmode)
	if d.User != "" {
		dsn += fmt.Sprintf(" user=%s", d.User)
	}
	if d.Password != "" {
		dsn += fmt.Sprintf(" password=%s", d.Password)
	}
	return dsn
}
