package config

import (
	"context"
	"errors"
	"fmt"
	"net/netip"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/joho/godotenv"
)

type Config struct {
	AppEnv        string
	HTTPAddr      string
	DatabaseURL   string
	RedisURL      string
	StorageRoot   string
	PublicBaseURL string
	LogLevel      string
	CORSOrigins   []string
	// TrustedProxies are the peers whose forwarded-for headers are believed.
	TrustedProxies []netip.Prefix

	SessionTTL    time.Duration
	SessionPepper string
	CookieName    string

	AuthRateLimitPerMin    int
	APIRateLimitPerMin     int
	RateLimitSweepInterval time.Duration
	UploadMaxBytes         int64
	UnknownCredentialTTL   time.Duration

	ShutdownTimeout time.Duration

	OTELServiceName           string
	OTELEnvironment           string
	OTELExporterOTLPEndpoint  string
	OTELExporterOTLPInsecure  bool
	OTELMetricsEnabled        bool
	OTELTracingEnabled        bool
	OTELLogsEnabled           bool
	OTELMetricsExportInterval time.Duration

	SeedAdminEmail    string
	SeedAdminPassword string
}

// IsProduction gates Secure cookies and strict config validation.
func (c *Config) IsProduction() bool {
	env := strings.ToLower(strings.TrimSpace(c.AppEnv))
	return env == "production" || env == "prod"
}

// Load reads configuration from the environment, after merging envFile when it exists.
// Variables already present in the environment win over the file.
func Load(envFile string) (*Config, error) {
	if envFile != "" {
		if err := godotenv.Load(envFile); err != nil && !errors.Is(err, os.ErrNotExist) {
			err = fmt.Errorf("load env file: %w", err)
			recordLoad(context.Background(), os.Getenv("APP_ENV"), err)
			return nil, err
		}
	}
	cfg, err := fromEnv()
	profile := getEnv("APP_ENV", "development")
	if err != nil {
		recordLoad(context.Background(), profile, err)
		return nil, err
	}
	if err := cfg.Validate(); err != nil {
		err = fmt.Errorf("validate config: %w", err)
		recordLoad(context.Background(), profile, err)
		return nil, err
	}
	recordLoad(context.Background(), profile, nil)
	return cfg, nil
}

func fromEnv() (*Config, error) {
	cfg := &Config{
		AppEnv:                   getEnv("APP_ENV", "development"),
		HTTPAddr:                 getEnv("HTTP_ADDR", ":3001"),
		DatabaseURL:              getEnv("DATABASE_URL", "sqlite:credentials.db"),
		RedisURL:                 os.Getenv("REDIS_URL"),
		StorageRoot:              getEnv("STORAGE_ROOT", "storage"),
		PublicBaseURL:            strings.TrimRight(getEnv("PUBLIC_BASE_URL", "http://localhost:3000"), "/"),
		LogLevel:                 getEnv("LOG_LEVEL", "info"),
		CORSOrigins:              splitList(getEnv("CORS_ORIGINS", "http://localhost:3000")),
		SessionPepper:            os.Getenv("SESSION_PEPPER"),
		CookieName:               getEnv("SESSION_COOKIE_NAME", "session"),
		OTELServiceName:          getEnv("OTEL_SERVICE_NAME", "ctm-credential-service"),
		OTELEnvironment:          getEnv("OTEL_ENVIRONMENT", getEnv("APP_ENV", "development")),
		OTELExporterOTLPEndpoint: getEnv("OTEL_EXPORTER_OTLP_ENDPOINT", "localhost:4317"),
		SeedAdminEmail:           getEnv("SEED_ADMIN_EMAIL", "admin@ctm.local"),
		SeedAdminPassword:        os.Getenv("SEED_ADMIN_PASSWORD"),
	}

	var err error
	if cfg.TrustedProxies, err = getPrefixes("TRUSTED_PROXIES"); err != nil {
		return nil, err
	}
	if cfg.SessionTTL, err = getDuration("SESSION_TTL", 7*24*time.Hour); err != nil {
		return nil, err
	}
	if cfg.RateLimitSweepInterval, err = getDuration("RATE_LIMIT_SWEEP_INTERVAL", time.Minute); err != nil {
		return nil, err
	}
	if cfg.UnknownCredentialTTL, err = getDuration("UNKNOWN_CREDENTIAL_TTL", time.Minute); err != nil {
		return nil, err
	}
	if cfg.ShutdownTimeout, err = getDuration("SHUTDOWN_TIMEOUT", 15*time.Second); err != nil {
		return nil, err
	}
	if cfg.OTELMetricsExportInterval, err = getDuration("OTEL_METRICS_EXPORT_INTERVAL", 15*time.Second); err != nil {
		return nil, err
	}
	if cfg.AuthRateLimitPerMin, err = getInt("AUTH_RATE_LIMIT_PER_MIN", 10); err != nil {
		return nil, err
	}
	if cfg.APIRateLimitPerMin, err = getInt("API_RATE_LIMIT_PER_MIN", 300); err != nil {
		return nil, err
	}
	maxBytes, err := getInt("UPLOAD_MAX_BYTES", 2*1024*1024)
	if err != nil {
		return nil, err
	}
	cfg.UploadMaxBytes = int64(maxBytes)
	if cfg.OTELExporterOTLPInsecure, err = getBool("OTEL_EXPORTER_OTLP_INSECURE", true); err != nil {
		return nil, err
	}
	if cfg.OTELMetricsEnabled, err = getBool("OTEL_METRICS_ENABLED", false); err != nil {
		return nil, err
	}
	if cfg.OTELTracingEnabled, err = getBool("OTEL_TRACING_ENABLED", false); err != nil {
		return nil, err
	}
	if cfg.OTELLogsEnabled, err = getBool("OTEL_LOGS_ENABLED", false); err != nil {
		return nil, err
	}
	return cfg, nil
}

func (c *Config) Validate() error {
	var errs []error
	if strings.TrimSpace(c.DatabaseURL) == "" {
		errs = append(errs, errors.New("DATABASE_URL is required"))
	}
	if strings.TrimSpace(c.StorageRoot) == "" {
		errs = append(errs, errors.New("STORAGE_ROOT is required"))
	}
	if c.SessionTTL <= 0 {
		errs = append(errs, errors.New("SESSION_TTL must be positive"))
	}
	if c.AuthRateLimitPerMin <= 0 || c.APIRateLimitPerMin <= 0 {
		errs = append(errs, errors.New("rate limits must be positive"))
	}
	if c.UploadMaxBytes <= 0 {
		errs = append(errs, errors.New("UPLOAD_MAX_BYTES must be positive"))
	}
	if c.IsProduction() && len(c.SessionPepper) < 32 {
		errs = append(errs, errors.New("SESSION_PEPPER must be at least 32 characters in production"))
	}
	if len(errs) == 0 {
		return nil
	}
	return &ValidationError{Problems: errs}
}

func getEnv(key, def string) string {
	if v := strings.TrimSpace(os.Getenv(key)); v != "" {
		return v
	}
	return def
}

func getInt(key string, def int) (int, error) {
	raw := strings.TrimSpace(os.Getenv(key))
	if raw == "" {
		return def, nil
	}
	v, err := strconv.Atoi(raw)
	if err != nil {
		return 0, &ParseError{Key: key, Err: err}
	}
	return v, nil
}

func getBool(key string, def bool) (bool, error) {
	raw := strings.TrimSpace(os.Getenv(key))
	if raw == "" {
		return def, nil
	}
	v, err := strconv.ParseBool(raw)
	if err != nil {
		return false, &ParseError{Key: key, Err: err}
	}
	return v, nil
}

func getDuration(key string, def time.Duration) (time.Duration, error) {
	raw := strings.TrimSpace(os.Getenv(key))
	if raw == "" {
		return def, nil
	}
	v, err := time.ParseDuration(raw)
	if err != nil {
		return 0, &ParseError{Key: key, Err: err}
	}
	return v, nil
}

// getPrefixes parses a comma separated list of CIDRs or bare addresses.
func getPrefixes(key string) ([]netip.Prefix, error) {
	var out []netip.Prefix
	for _, raw := range splitList(os.Getenv(key)) {
		if strings.Contains(raw, "/") {
			p, err := netip.ParsePrefix(raw)
			if err != nil {
				return nil, &ParseError{Key: key, Err: err}
			}
			out = append(out, p.Masked())
			continue
		}
		addr, err := netip.ParseAddr(raw)
		if err != nil {
			return nil, &ParseError{Key: key, Err: err}
		}
		addr = addr.Unmap()
		out = append(out, netip.PrefixFrom(addr, addr.BitLen()))
	}
	return out, nil
}

func splitList(raw string) []string {
	parts := strings.Split(raw, ",")
	out := make([]string, 0, len(parts))
	for _, p := range parts {
		if p = strings.TrimSpace(p); p != "" {
			out = append(out, p)
		}
	}
	return out
}
