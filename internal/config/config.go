package config

import (
	"errors"
	"fmt"
	"io/fs"
	"net/url"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/joho/godotenv"
	"gopkg.in/yaml.v3"
)

// ConfigPath is the YAML file read when neither the caller nor CONFIG_PATH
// names one.
const ConfigPath = "config.yaml"

const defaultMaxUploadBytes int64 = 50 << 20

// FileConfig represents configuration loaded from YAML and the environment.
type FileConfig struct {
	Port                     string   `yaml:"port"`
	LogLevel                 string   `yaml:"logLevel"`
	JWTSecret                string   `yaml:"jwtSecret"`
	JWTIssuer                string   `yaml:"jwtIssuer"`
	TokenTTL                 string   `yaml:"tokenTTL"`
	AdminSecret              string   `yaml:"adminSecret"`
	DatabaseURL              string   `yaml:"databaseURL"`
	DatabaseName             string   `yaml:"databaseName"`
	MinioEndpoint            string   `yaml:"minioEndpoint"`
	MinioAccessKey           string   `yaml:"minioAccessKey"`
	MinioSecretKey           string   `yaml:"minioSecretKey"`
	MinioBucket              string   `yaml:"minioBucket"`
	MinioUseSSL              bool     `yaml:"minioUseSSL"`
	StoragePublicBaseURL     string   `yaml:"storagePublicBaseURL"`
	RedisAddr                string   `yaml:"redisAddr"`
	RedisPassword            string   `yaml:"redisPassword"`
	SignupRateLimitPerMinute int      `yaml:"signupRateLimitPerMinute"`
	LoginRateLimitPerMinute  int      `yaml:"loginRateLimitPerMinute"`
	MaxUploadBytes           int64    `yaml:"maxUploadBytes"`
	TrustedProxyCIDRs        []string `yaml:"trustedProxyCidrs"`
}

// Load reads .env, then the YAML file at path (CONFIG_PATH or ConfigPath
// when empty), then applies environment overrides and validates. A missing
// YAML file is not an error.
func Load(path string) (FileConfig, error) {
	_ = godotenv.Load()

	cfg := FileConfig{}
	if path == "" {
		path = strings.TrimSpace(os.Getenv("CONFIG_PATH"))
	}
	if path == "" {
		path = ConfigPath
	}
	data, err := os.ReadFile(path)
	switch {
	case errors.Is(err, fs.ErrNotExist):
	case err != nil:
		return cfg, fmt.Errorf("read config: %w", err)
	default:
		if err := yaml.Unmarshal(data, &cfg); err != nil {
			return cfg, fmt.Errorf("parse config: %w", err)
		}
	}
	if err := applyEnv(&cfg); err != nil {
		return cfg, err
	}
	applyDefaults(&cfg)
	if err := validateConfig(cfg); err != nil {
		return cfg, err
	}
	return cfg, nil
}

func applyEnv(cfg *FileConfig) error {
	strs := map[string]*string{
		"PORT":                    &cfg.Port,
		"LOG_LEVEL":               &cfg.LogLevel,
		"JWT_SECRET":              &cfg.JWTSecret,
		"JWT_ISSUER":              &cfg.JWTIssuer,
		"TOKEN_TTL":               &cfg.TokenTTL,
		"ADMIN_SECRET":            &cfg.AdminSecret,
		"DATABASE_URL":            &cfg.DatabaseURL,
		"DATABASE_NAME":           &cfg.DatabaseName,
		"MINIO_ENDPOINT":          &cfg.MinioEndpoint,
		"MINIO_ACCESS_KEY":        &cfg.MinioAccessKey,
		"MINIO_SECRET_KEY":        &cfg.MinioSecretKey,
		"MINIO_BUCKET":            &cfg.MinioBucket,
		"STORAGE_PUBLIC_BASE_URL": &cfg.StoragePublicBaseURL,
		"REDIS_ADDR":              &cfg.RedisAddr,
		"REDIS_PASSWORD":          &cfg.RedisPassword,
	}
	for key, dst := range strs {
		if v := os.Getenv(key); v != "" {
			*dst = v
		}
	}
	if v := os.Getenv("MINIO_USE_SSL"); v != "" {
		b, err := strconv.ParseBool(v)
		if err != nil {
			return fmt.Errorf("config: MINIO_USE_SSL: %w", err)
		}
		cfg.MinioUseSSL = b
	}
	ints := map[string]*int{
		"SIGNUP_RATE_LIMIT_PER_MINUTE": &cfg.SignupRateLimitPerMinute,
		"LOGIN_RATE_LIMIT_PER_MINUTE":  &cfg.LoginRateLimitPerMinute,
	}
	for key, dst := range ints {
		if v := os.Getenv(key); v != "" {
			n, err := strconv.Atoi(v)
			if err != nil {
				return fmt.Errorf("config: %s: %w", key, err)
			}
			*dst = n
		}
	}
	if v := os.Getenv("MAX_UPLOAD_BYTES"); v != "" {
		n, err := strconv.ParseInt(v, 10, 64)
		if err != nil {
			return fmt.Errorf("config: MAX_UPLOAD_BYTES: %w", err)
		}
		cfg.MaxUploadBytes = n
	}
	if v := os.Getenv("TRUSTED_PROXY_CIDRS"); v != "" {
		cfg.TrustedProxyCIDRs = splitCSV(v)
	}
	return nil
}

func applyDefaults(cfg *FileConfig) {
	if cfg.Port == "" {
		cfg.Port = "5000"
	}
	if cfg.LogLevel == "" {
		cfg.LogLevel = "info"
	}
	if cfg.DatabaseName == "" {
		cfg.DatabaseName = "ebook"
	}
	if cfg.MaxUploadBytes == 0 {
		cfg.MaxUploadBytes = defaultMaxUploadBytes
	}
}

func validateConfig(cfg FileConfig) error {
	if strings.TrimSpace(cfg.JWTSecret) == "" {
		return errors.New("config: jwtSecret is required (set in config.yaml or JWT_SECRET)")
	}
	if _, err := ParseTokenTTL(cfg.TokenTTL); err != nil {
		return err
	}
	if _, err := DatabaseKind(cfg.DatabaseURL); err != nil {
		return err
	}
	if cfg.MinioEndpoint == "" {
		return errors.New("config: minioEndpoint is required (set in config.yaml or MINIO_ENDPOINT)")
	}
	if cfg.MinioAccessKey == "" || cfg.MinioSecretKey == "" {
		return errors.New("config: minioAccessKey and minioSecretKey are required")
	}
	if cfg.MinioBucket == "" {
		return errors.New("config: minioBucket is required (set in config.yaml or MINIO_BUCKET)")
	}
	if cfg.StoragePublicBaseURL != "" {
		u, err := url.Parse(cfg.StoragePublicBaseURL)
		if err != nil || u.Scheme == "" || u.Host == "" {
			return fmt.Errorf("config: storagePublicBaseURL %q must be an absolute URL", cfg.StoragePublicBaseURL)
		}
	}
	if cfg.SignupRateLimitPerMinute < 0 || cfg.LoginRateLimitPerMinute < 0 {
		return errors.New("config: rate limits must be >= 0")
	}
	if cfg.MaxUploadBytes < 0 {
		return errors.New("config: maxUploadBytes must be >= 0")
	}
	return nil
}

// ParseTokenTTL parses the token lifetime. Empty means the default; a
// trailing "d" counts days, anything else is a Go duration.
func ParseTokenTTL(ttl string) (time.Duration, error) {
	ttl = strings.TrimSpace(ttl)
	if ttl == "" {
		return 0, nil
	}
	var (
		dur time.Duration
		err error
	)
	if days, ok := strings.CutSuffix(ttl, "d"); ok {
		var n int
		n, err = strconv.Atoi(days)
		dur = time.Duration(n) * 24 * time.Hour
	} else {
		dur, err = time.ParseDuration(ttl)
	}
	if err != nil || dur <= 0 {
		return 0, fmt.Errorf("config: invalid tokenTTL %q", ttl)
	}
	return dur, nil
}

// DatabaseKind reports which store a database URL selects: "mongo" or
// "postgres".
func DatabaseKind(databaseURL string) (string, error) {
	raw := strings.TrimSpace(databaseURL)
	if raw == "" {
		return "", errors.New("config: databaseURL is required (set in config.yaml or DATABASE_URL)")
	}
	switch {
	case strings.HasPrefix(raw, "mongodb://"), strings.HasPrefix(raw, "mongodb+srv://"):
		return "mongo", nil
	case strings.HasPrefix(raw, "postgres://"), strings.HasPrefix(raw, "postgresql://"):
		return "postgres", nil
	default:
		return "", fmt.Errorf("config: unsupported databaseURL scheme in %q", redactURL(raw))
	}
}

func redactURL(raw string) string {
	u, err := url.Parse(raw)
	if err != nil {
		return "<invalid>"
	}
	return u.Redacted()
}

func splitCSV(value string) []string {
	parts := strings.Split(value, ",")
	out := make([]string, 0, len(parts))
	for _, part := range parts {
		part = strings.TrimSpace(part)
		if part == "" {
			continue
		}
		out = append(out, part)
	}
	return out
}
