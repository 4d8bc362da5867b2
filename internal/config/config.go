package config

import (
	"fmt"
	"os"
	"path/filepath"
	"strconv"
	"strings"
	"time"

	"github.com/BurntSushi/toml"
)

const (
	DefaultAPIURL     = "http://127.0.0.1:8080"
	DefaultDBFileName = ".imgpost.db"
	DefaultLogLevel   = "info"

	StorageBackendLocal = "local"
	StorageBackendS3    = "s3"

	DefaultStorageBackend  = StorageBackendLocal
	DefaultUploadDir       = "uploads"
	DefaultLocalPublicPath = "/uploads"
	DefaultS3KeyPrefix     = "images/"
	DefaultMaxUploadBytes  = int64(50 * 1024 * 1024)
	DefaultCacheTTL        = 5 * time.Minute
	DefaultSweepGrace      = time.Hour

	configFileName           = ".imgpost.toml"
	configDirEnvKey          = "IMGPOST_CONFIG_DIR"
	trustProjectConfigEnvKey = "IMGPOST_TRUST_PROJECT_CONFIG"
)

// LocalStorageConfig configures the filesystem blob backend.
type LocalStorageConfig struct {
	UploadDir  string `toml:"upload_dir"`
	PublicPath string `toml:"public_path"`
}

// S3StorageConfig configures the S3 blob backend.
type S3StorageConfig struct {
	Bucket         string `toml:"bucket"`
	Region         string `toml:"region"`
	Endpoint       string `toml:"endpoint"`
	KeyPrefix      string `toml:"key_prefix"`
	PublicBaseURL  string `toml:"public_base_url"`
	ForcePathStyle bool   `toml:"force_path_style"`
}

// StorageConfig selects and configures exactly one blob backend.
type StorageConfig struct {
	Backend string             `toml:"backend"`
	Local   LocalStorageConfig `toml:"local"`
	S3      S3StorageConfig    `toml:"s3"`
}

// CacheConfig configures the optional Redis post cache. An empty address
// disables caching.
type CacheConfig struct {
	RedisAddr     string   `toml:"redis_addr"`
	RedisPassword string   `toml:"redis_password"`
	RedisDB       int      `toml:"redis_db"`
	TTL           Duration `toml:"ttl"`
}

// ServerConfig holds HTTP server settings.
type ServerConfig struct {
	AdminToken     string `toml:"admin_token"`
	MaxUploadBytes int64  `toml:"max_upload_bytes"`
}

// UIConfig points at a built SPA bundle.
type UIConfig struct {
	Dir string `toml:"dir"`
}

// SweepConfig configures orphan blob reconciliation.
type SweepConfig struct {
	Grace Duration `toml:"grace"`
}

// Config defines runtime configuration for imgpost.
type Config struct {
	APIURL                   string        `toml:"api_url"`
	DBPath                   string        `toml:"db_path"`
	LogLevel                 string        `toml:"log_level"`
	Storage                  StorageConfig `toml:"storage"`
	Cache                    CacheConfig   `toml:"cache"`
	Server                   ServerConfig  `toml:"server"`
	UI                       UIConfig      `toml:"ui"`
	Sweep                    SweepConfig   `toml:"sweep"`
	TrustedProjectConfigPath string        `toml:"-"`
}

// Duration decodes TOML strings like "90s" or "1h".
type Duration struct {
	time.Duration
}

func (d *Duration) UnmarshalText(text []byte) error {
	raw := strings.TrimSpace(string(text))
	if raw == "" {
		d.Duration = 0
		return nil
	}
	parsed, err := time.ParseDuration(raw)
	if err != nil {
		return err
	}
	d.Duration = parsed
	return nil
}

func (d Duration) MarshalText() ([]byte, error) {
	return []byte(d.Duration.String()), nil
}

// Default returns default configuration values.
func Default() Config {
	return Config{
		APIURL:   DefaultAPIURL,
		DBPath:   "",
		LogLevel: DefaultLogLevel,
		Storage: StorageConfig{
			Backend: DefaultStorageBackend,
			Local: LocalStorageConfig{
				UploadDir:  DefaultUploadDir,
				PublicPath: DefaultLocalPublicPath,
			},
			S3: S3StorageConfig{
				KeyPrefix: DefaultS3KeyPrefix,
			},
		},
		Cache: CacheConfig{
			TTL: Duration{DefaultCacheTTL},
		},
		Server: ServerConfig{
			MaxUploadBytes: DefaultMaxUploadBytes,
		},
		Sweep: SweepConfig{
			Grace: Duration{DefaultSweepGrace},
		},
	}
}

func loadFile(path string, cfg *Config) error {
	_, err := loadFileIfExists(path, cfg)
	return err
}

func loadFileIfExists(path string, cfg *Config) (bool, error) {
	info, err := os.Stat(path)
	if err != nil {
		if os.IsNotExist(err) {
			return false, nil
		}
		return false, err
	}
	if info.IsDir() {
		return false, nil
	}
	if _, err := toml.DecodeFile(path, cfg); err != nil {
		return false, fmt.Errorf("failed to parse config %s: %w", path, err)
	}
	return true, nil
}

func overrideConfigPath() (string, bool) {
	dir := strings.TrimSpace(os.Getenv(configDirEnvKey))
	if dir == "" {
		return "", false
	}
	return filepath.Join(dir, configFileName), true
}

func trustProjectConfig() bool {
	raw := strings.TrimSpace(os.Getenv(trustProjectConfigEnvKey))
	if raw == "" {
		return false
	}
	value, err := strconv.ParseBool(raw)
	if err != nil {
		return false
	}
	return value
}

var allowedKeys = []string{
	"api_url",
	"db_path",
	"log_level",
	"storage.backend",
	"storage.local.upload_dir",
	"storage.local.public_path",
	"storage.s3.bucket",
	"storage.s3.region",
	"storage.s3.endpoint",
	"storage.s3.key_prefix",
	"storage.s3.public_base_url",
	"storage.s3.force_path_style",
	"cache.redis_addr",
	"cache.redis_password",
	"cache.redis_db",
	"cache.ttl",
	"server.admin_token",
	"server.max_upload_bytes",
	"ui.dir",
	"sweep.grace",
}

// AllowedKeys returns the set of valid config keys.
func AllowedKeys() []string {
	return allowedKeys
}

// IsAllowedKey checks if a key is a valid config key.
func IsAllowedKey(key string) bool {
	for _, k := range allowedKeys {
		if k == key {
			return true
		}
	}
	return false
}

// Get returns the value of a config key.
func (c *Config) Get(key string) (string, error) {
	switch key {
	case "api_url":
		return c.APIURL, nil
	case "db_path":
		return c.DBPath, nil
	case "log_level":
		return c.LogLevel, nil
	case "storage.backend":
		return c.Storage.Backend, nil
	case "storage.local.upload_dir":
		return c.Storage.Local.UploadDir, nil
	case "storage.local.public_path":
		return c.Storage.Local.PublicPath, nil
	case "storage.s3.bucket":
		return c.Storage.S3.Bucket, nil
	case "storage.s3.region":
		return c.Storage.S3.Region, nil
	case "storage.s3.endpoint":
		return c.Storage.S3.Endpoint, nil
	case "storage.s3.key_prefix":
		return c.Storage.S3.KeyPrefix, nil
	case "storage.s3.public_base_url":
		return c.Storage.S3.PublicBaseURL, nil
	case "storage.s3.force_path_style":
		return strconv.FormatBool(c.Storage.S3.ForcePathStyle), nil
	case "cache.redis_addr":
		return c.Cache.RedisAddr, nil
	case "cache.redis_password":
		return c.Cache.RedisPassword, nil
	case "cache.redis_db":
		return strconv.Itoa(c.Cache.RedisDB), nil
	case "cache.ttl":
		return c.Cache.TTL.String(), nil
	case "server.admin_token":
		return c.Server.AdminToken, nil
	case "server.max_upload_bytes":
		return strconv.FormatInt(c.Server.MaxUploadBytes, 10), nil
	case "ui.dir":
		return c.UI.Dir, nil
	case "sweep.grace":
		return c.Sweep.Grace.String(), nil
	default:
		return "", fmt.Errorf("unknown key: %s", key)
	}
}

// GlobalPath returns the path to the global config file.
func GlobalPath() (string, error) {
	if path, ok := overrideConfigPath(); ok {
		return path, nil
	}
	home, err := os.UserHomeDir()
	if err != nil {
		return "", err
	}
	return filepath.Join(home, configFileName), nil
}

// ProjectPath returns the path to the project config file.
func ProjectPath() (string, error) {
	if path, ok := overrideConfigPath(); ok {
		return path, nil
	}
	cwd, err := os.Getwd()
	if err != nil {
		return "", err
	}
	return filepath.Join(cwd, configFileName), nil
}

// SetKey reads the TOML file at path, sets key=value, and writes it back.
func SetKey(path, key, value string) error {
	if !IsAllowedKey(key) {
		return fmt.Errorf("unknown key: %s", key)
	}

	data := make(map[string]any)
	if _, err := os.Stat(path); err == nil {
		if _, err := toml.DecodeFile(path, &data); err != nil {
			return fmt.Errorf("parse %s: %w", path, err)
		}
	}

	parsedValue, err := parseSetValue(key, value)
	if err != nil {
		return err
	}
	if err := setNestedKey(data, strings.Split(key, "."), parsedValue); err != nil {
		return err
	}

	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		return err
	}

	f, err := os.Create(path)
	if err != nil {
		return err
	}
	defer f.Close()

	return toml.NewEncoder(f).Encode(data)
}

// Load reads config from trusted files and applies env overrides.
func Load() (*Config, error) {
	cfg := Default()

	if overridePath, ok := overrideConfigPath(); ok {
		if err := loadFile(overridePath, &cfg); err != nil {
			return nil, err
		}
	} else {
		if home, err := os.UserHomeDir(); err == nil {
			if err := loadFile(filepath.Join(home, configFileName), &cfg); err != nil {
				return nil, err
			}
		}

		if trustProjectConfig() {
			if cwd, err := os.Getwd(); err == nil {
				projectPath := filepath.Join(cwd, configFileName)
				info, statErr := os.Stat(projectPath)
				switch {
				case statErr == nil && !info.IsDir():
					if err := loadFile(projectPath, &cfg); err != nil {
						return nil, err
					}
					cfg.TrustedProjectConfigPath = projectPath
				case statErr != nil && !os.IsNotExist(statErr):
					return nil, statErr
				}
			}
		}
	}

	if cfg.DBPath == "" {
		if cwd, err := os.Getwd(); err == nil {
			cfg.DBPath = filepath.Join(cwd, DefaultDBFileName)
		}
	}

	applyEnvOverrides(&cfg)
	cfg.normalizeDefaults()

	return &cfg, nil
}

func applyEnvOverrides(cfg *Config) {
	overrides := []struct {
		key string
		dst *string
	}{
		{"IMGPOST_API_URL", &cfg.APIURL},
		{"IMGPOST_DB", &cfg.DBPath},
		{"IMGPOST_STORAGE_BACKEND", &cfg.Storage.Backend},
		{"IMGPOST_UPLOAD_DIR", &cfg.Storage.Local.UploadDir},
		{"IMGPOST_S3_BUCKET", &cfg.Storage.S3.Bucket},
		{"IMGPOST_S3_REGION", &cfg.Storage.S3.Region},
		{"IMGPOST_S3_ENDPOINT", &cfg.Storage.S3.Endpoint},
		{"IMGPOST_S3_PUBLIC_BASE_URL", &cfg.Storage.S3.PublicBaseURL},
		{"IMGPOST_REDIS_ADDR", &cfg.Cache.RedisAddr},
		{"IMGPOST_REDIS_PASSWORD", &cfg.Cache.RedisPassword},
		{"IMGPOST_ADMIN_TOKEN", &cfg.Server.AdminToken},
		{"IMGPOST_UI_DIR", &cfg.UI.Dir},
	}
	for _, o := range overrides {
		if v := strings.TrimSpace(os.Getenv(o.key)); v != "" {
			*o.dst = v
		}
	}

	if raw := strings.TrimSpace(os.Getenv("IMGPOST_S3_FORCE_PATH_STYLE")); raw != "" {
		if parsed, err := strconv.ParseBool(raw); err == nil {
			cfg.Storage.S3.ForcePathStyle = parsed
		}
	}
}

// Validate reports configuration that cannot start a server.
func (c *Config) Validate() error {
	switch c.Storage.Backend {
	case StorageBackendLocal:
		if strings.TrimSpace(c.Storage.Local.UploadDir) == "" {
			return fmt.Errorf("storage.local.upload_dir is required for the local backend")
		}
		if !strings.HasPrefix(c.Storage.Local.PublicPath, "/") {
			return fmt.Errorf("storage.local.public_path must start with /")
		}
	case StorageBackendS3:
		if strings.TrimSpace(c.Storage.S3.Bucket) == "" {
			return fmt.Errorf("storage.s3.bucket is required for the s3 backend")
		}
		if strings.TrimSpace(c.Storage.S3.Region) == "" {
			return fmt.Errorf("storage.s3.region is required for the s3 backend")
		}
	default:
		return fmt.Errorf("unknown storage.backend %q (want %s or %s)", c.Storage.Backend, StorageBackendLocal, StorageBackendS3)
	}
	return nil
}

func parseSetValue(key, value string) (any, error) {
	value = strings.TrimSpace(value)
	switch key {
	case "server.max_upload_bytes":
		parsed, err := strconv.ParseInt(value, 10, 64)
		if err != nil || parsed <= 0 {
			return nil, fmt.Errorf("%s must be a positive integer", key)
		}
		return parsed, nil
	case "cache.redis_db":
		parsed, err := strconv.Atoi(value)
		if err != nil || parsed < 0 {
			return nil, fmt.Errorf("%s must be a non-negative integer", key)
		}
		return parsed, nil
	case "storage.s3.force_path_style":
		parsed, err := strconv.ParseBool(value)
		if err != nil {
			return nil, fmt.Errorf("%s must be true or false", key)
		}
		return parsed, nil
	case "cache.ttl", "sweep.grace":
		parsed, err := time.ParseDuration(value)
		if err != nil || parsed < 0 {
			return nil, fmt.Errorf("%s must be a duration like 30s or 1h", key)
		}
		return parsed.String(), nil
	case "storage.backend":
		value = strings.ToLower(value)
		if value != StorageBackendLocal && value != StorageBackendS3 {
			return nil, fmt.Errorf("%s must be %s or %s", key, StorageBackendLocal, StorageBackendS3)
		}
		return value, nil
	case "log_level":
		value = strings.ToLower(value)
		switch value {
		case "debug", "info", "warn", "warning", "error":
			return value, nil
		}
		return nil, fmt.Errorf("%s must be one of debug, info, warn, error", key)
	default:
		return value, nil
	}
}

func setNestedKey(data map[string]any, parts []string, value any) error {
	if len(parts) == 0 {
		return fmt.Errorf("invalid config key")
	}
	if len(parts) == 1 {
		data[parts[0]] = value
		return nil
	}
	childRaw, ok := data[parts[0]]
	if !ok {
		child := map[string]any{}
		data[parts[0]] = child
		return setNestedKey(child, parts[1:], value)
	}
	child, ok := childRaw.(map[string]any)
	if !ok {
		return fmt.Errorf("cannot set nested key %q", strings.Join(parts, "."))
	}
	return setNestedKey(child, parts[1:], value)
}

func (c *Config) normalizeDefaults() {
	c.LogLevel = strings.ToLower(strings.TrimSpace(c.LogLevel))
	if c.LogLevel == "" {
		c.LogLevel = DefaultLogLevel
	}
	c.Storage.Backend = strings.ToLower(strings.TrimSpace(c.Storage.Backend))
	if c.Storage.Backend == "" {
		c.Storage.Backend = DefaultStorageBackend
	}
	if strings.TrimSpace(c.Storage.Local.PublicPath) == "" {
		c.Storage.Local.PublicPath = DefaultLocalPublicPath
	}
	if c.Server.MaxUploadBytes <= 0 {
		c.Server.MaxUploadBytes = DefaultMaxUploadBytes
	}
	if c.Cache.TTL.Duration <= 0 {
		c.Cache.TTL.Duration = DefaultCacheTTL
	}
	if c.Sweep.Grace.Duration <= 0 {
		c.Sweep.Grace.Duration = DefaultSweepGrace
	}
}
