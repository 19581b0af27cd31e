package config

import (
	"fmt"
	"os"
	"strconv"
	"strings"
	"time"

	"gopkg.in/yaml.v3"
)

const (
	defaultAppName         = "TokenLend"
	defaultAppEnv          = "development"
	defaultPort            = "8080"
	defaultLogLevel        = "info"
	defaultShutdownDelay   = 10 * time.Second
	defaultIdempotencyTTL  = 24 * time.Hour
	defaultIssuerAddress   = "rIssuer123456789012345678901234567"
	defaultBalancePolicy   = "native"
	defaultDerivation      = "sum"
	defaultRatePerMinute   = 120
	idemTTLSecondsEnvVar   = "IDEMPOTENCY_TTL_SECONDS"
	idemTTLDurEnvVar       = "IDEMPOTENCY_TTL"
	shutdownSecondsEnvVar  = "SHUTDOWN_TIMEOUT_SECONDS"
	shutdownDurationEnvVar = "SHUTDOWN_TIMEOUT"
	configFileEnvVar       = "CONFIG_FILE"
)

// Config captures application runtime configuration.
type Config struct {
	AppName             string
	AppEnv              string
	Port                string
	LogLevel            string
	LogFormat           string
	RedisURL            string
	ShutdownPeriod      time.Duration
	IdempotencyTTL      time.Duration
	IdempotencyRequired bool
	BasePath            string
	IssuerAddress       string
	EmptyBalancePolicy  string
	EnforceFinishAfter  bool
	AccountDerivation   string
	RateLimitPerMinute  int
	MetricsEnabled      bool
}

// fileConfig mirrors the optional YAML file. Pointer fields distinguish
// "unset" from explicit zero values.
type fileConfig struct {
	App struct {
		Name     string `yaml:"name"`
		Env      string `yaml:"env"`
		Port     string `yaml:"port"`
		BasePath string `yaml:"basePath"`
	} `yaml:"app"`
	Log struct {
		Level  string `yaml:"level"`
		Format string `yaml:"format"`
	} `yaml:"log"`
	Redis struct {
		URL string `yaml:"url"`
	} `yaml:"redis"`
	Server struct {
		ShutdownTimeout time.Duration `yaml:"shutdownTimeout"`
	} `yaml:"server"`
	Idempotency struct {
		TTL      time.Duration `yaml:"ttl"`
		Required *bool         `yaml:"required"`
	} `yaml:"idempotency"`
	Ledger struct {
		IssuerAddress      string `yaml:"issuerAddress"`
		EmptyBalancePolicy string `yaml:"emptyBalancePolicy"`
		EnforceFinishAfter *bool  `yaml:"enforceFinishAfter"`
		AccountDerivation  string `yaml:"accountDerivation"`
	} `yaml:"ledger"`
	RateLimit struct {
		PerMinute *int `yaml:"perMinute"`
	} `yaml:"rateLimit"`
	Metrics struct {
		Enabled *bool `yaml:"enabled"`
	} `yaml:"metrics"`
}

// Default returns the built-in configuration used before any overrides.
func Default() Config {
	return Config{
		AppName:            defaultAppName,
		AppEnv:             defaultAppEnv,
		Port:               defaultPort,
		LogLevel:           defaultLogLevel,
		ShutdownPeriod:     defaultShutdownDelay,
		IdempotencyTTL:     defaultIdempotencyTTL,
		IssuerAddress:      defaultIssuerAddress,
		EmptyBalancePolicy: defaultBalancePolicy,
		AccountDerivation:  defaultDerivation,
		RateLimitPerMinute: defaultRatePerMinute,
		MetricsEnabled:     true,
	}
}

// Load builds a Config from defaults, the YAML file named by CONFIG_FILE (if
// any) and finally environment variables.
func Load() (Config, error) {
	cfg := Default()

	if path := strings.TrimSpace(os.Getenv(configFileEnvVar)); path != "" {
		data, err := os.ReadFile(path)
		if err != nil {
			return Config{}, fmt.Errorf("read %s: %w", configFileEnvVar, err)
		}
		var parsed fileConfig
		if err := yaml.Unmarshal(data, &parsed); err != nil {
			return Config{}, fmt.Errorf("parse %s: %w", path, err)
		}
		merge(&cfg, parsed)
	}

	if err := applyEnv(&cfg); err != nil {
		return Config{}, err
	}

	cfg.LogLevel = strings.ToLower(cfg.LogLevel)
	if cfg.LogFormat == "" {
		cfg.LogFormat = "json"
		if cfg.IsDevelopment() {
			cfg.LogFormat = "text"
		}
	}
	cfg.BasePath = normalizeBasePath(cfg.BasePath)

	if cfg.RedisURL == "" && cfg.IsProduction() {
		return Config{}, fmt.Errorf("REDIS_URL must be set in production")
	}
	if cfg.RateLimitPerMinute < 0 {
		return Config{}, fmt.Errorf("RATE_LIMIT_PER_MINUTE must not be negative")
	}

	return cfg, nil
}

func merge(dst *Config, src fileConfig) {
	setString(&dst.AppName, src.App.Name)
	setString(&dst.AppEnv, src.App.Env)
	setString(&dst.Port, src.App.Port)
	setString(&dst.BasePath, src.App.BasePath)
	setString(&dst.LogLevel, src.Log.Level)
	setString(&dst.LogFormat, src.Log.Format)
	setString(&dst.RedisURL, src.Redis.URL)
	setString(&dst.IssuerAddress, src.Ledger.IssuerAddress)
	setString(&dst.EmptyBalancePolicy, src.Ledger.EmptyBalancePolicy)
	setString(&dst.AccountDerivation, src.Ledger.AccountDerivation)
	if src.Server.ShutdownTimeout != 0 {
		dst.ShutdownPeriod = src.Server.ShutdownTimeout
	}
	if src.Idempotency.TTL != 0 {
		dst.IdempotencyTTL = src.Idempotency.TTL
	}
	if src.Idempotency.Required != nil {
		dst.IdempotencyRequired = *src.Idempotency.Required
	}
	if src.Ledger.EnforceFinishAfter != nil {
		dst.EnforceFinishAfter = *src.Ledger.EnforceFinishAfter
	}
	if src.RateLimit.PerMinute != nil {
		dst.RateLimitPerMinute = *src.RateLimit.PerMinute
	}
	if src.Metrics.Enabled != nil {
		dst.MetricsEnabled = *src.Metrics.Enabled
	}
}

func applyEnv(cfg *Config) error {
	cfg.AppName = getEnv("APP_NAME", cfg.AppName)
	cfg.AppEnv = getEnv("APP_ENV", cfg.AppEnv)
	cfg.Port = getEnv("PORT", cfg.Port)
	cfg.LogLevel = getEnv("LOG_LEVEL", cfg.LogLevel)
	cfg.LogFormat = getEnv("LOG_FORMAT", cfg.LogFormat)
	cfg.RedisURL = getEnv("REDIS_URL", cfg.RedisURL)
	cfg.BasePath = getEnv("API_BASE_PATH", cfg.BasePath)
	cfg.IssuerAddress = getEnv("LEDGER_ISSUER_ADDRESS", cfg.IssuerAddress)
	cfg.EmptyBalancePolicy = getEnv("LEDGER_EMPTY_BALANCE_POLICY", cfg.EmptyBalancePolicy)
	cfg.AccountDerivation = getEnv("LEDGER_ACCOUNT_DERIVATION", cfg.AccountDerivation)

	if v := os.Getenv(shutdownSecondsEnvVar); v != "" {
		seconds, err := strconv.Atoi(v)
		if err != nil {
			return fmt.Errorf("invalid %s: %w", shutdownSecondsEnvVar, err)
		}
		cfg.ShutdownPeriod = time.Duration(seconds) * time.Second
	} else if v := os.Getenv(shutdownDurationEnvVar); v != "" {
		d, err := time.ParseDuration(v)
		if err != nil {
			return fmt.Errorf("invalid %s: %w", shutdownDurationEnvVar, err)
		}
		cfg.ShutdownPeriod = d
	}

	if v := os.Getenv(idemTTLSecondsEnvVar); v != "" {
		seconds, err := strconv.Atoi(v)
		if err != nil {
			return fmt.Errorf("invalid %s: %w", idemTTLSecondsEnvVar, err)
		}
		cfg.IdempotencyTTL = time.Duration(seconds) * time.Second
	} else if v := os.Getenv(idemTTLDurEnvVar); v != "" {
		d, err := time.ParseDuration(v)
		if err != nil {
			return fmt.Errorf("invalid %s: %w", idemTTLDurEnvVar, err)
		}
		cfg.IdempotencyTTL = d
	}

	if v := os.Getenv("RATE_LIMIT_PER_MINUTE"); v != "" {
		n, err := strconv.Atoi(v)
		if err != nil {
			return fmt.Errorf("invalid RATE_LIMIT_PER_MINUTE: %w", err)
		}
		cfg.RateLimitPerMinute = n
	}

	for key, dst := range map[string]*bool{
		"IDEMPOTENCY_REQUIRED":        &cfg.IdempotencyRequired,
		"LEDGER_ENFORCE_FINISH_AFTER": &cfg.EnforceFinishAfter,
		"METRICS_ENABLED":             &cfg.MetricsEnabled,
	} {
		v := os.Getenv(key)
		if v == "" {
			continue
		}
		b, err := strconv.ParseBool(v)
		if err != nil {
			return fmt.Errorf("invalid %s: %w", key, err)
		}
		*dst = b
	}

	return nil
}

// IsDevelopment reports whether APP_ENV names a local deployment.
func (c Config) IsDevelopment() bool {
	switch strings.ToLower(c.AppEnv) {
	case "dev", "development", "local":
		return true
	default:
		return false
	}
}

// IsProduction reports whether APP_ENV names a production deployment.
func (c Config) IsProduction() bool {
	env := strings.ToLower(c.AppEnv)
	return env == "production" || env == "prod"
}

// Address returns the listen address in the format Fiber expects.
func (c Config) Address() string {
	if strings.HasPrefix(c.Port, ":") {
		return c.Port
	}
	return fmt.Sprintf(":%s", c.Port)
}

func normalizeBasePath(p string) string {
	p = strings.TrimSpace(p)
	p = strings.TrimRight(p, "/")
	if p == "" {
		return ""
	}
	if !strings.HasPrefix(p, "/") {
		p = "/" + p
	}
	return p
}

func setString(dst *string, v string) {
	if v = strings.TrimSpace(v); v != "" {
		*dst = v
	}
}

func getEnv(key, fallback string) string {
	if value := os.Getenv(key); value != "" {
		return value
	}
	return fallback
}
