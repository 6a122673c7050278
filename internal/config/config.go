package config

import (
	"fmt"
	"os"
	"path/filepath"
	"regexp"
	"runtime"
	"strings"

	"gopkg.in/yaml.v3"
)

// Config holds the contentrest configuration.
type Config struct {
	HTTP         HTTPConfig            `yaml:"http"`
	Database     DatabaseConfig        `yaml:"database"`
	Storage      StorageConfig         `yaml:"storage"`
	Logging      LoggingConfig         `yaml:"logging"`
	Auth         AuthConfig            `yaml:"auth"`
	Permissions  map[string]RoleConfig `yaml:"permissions"`
	REST         RESTConfig            `yaml:"rest"`
	ContentTypes []ContentTypeConfig   `yaml:"content_types"`
}

// LoggingConfig holds logging settings.
type LoggingConfig struct {
	Level string `yaml:"level"` // debug, info, warn, error (default: determined by env)
}

// HTTPConfig holds HTTP server settings.
type HTTPConfig struct {
	Port            int `yaml:"port"`
	ReadTimeoutSec  int `yaml:"read_timeout_sec"`
	WriteTimeoutSec int `yaml:"write_timeout_sec"`
	ShutdownSec     int `yaml:"shutdown_timeout_sec"`
}

// Supported database drivers.
const (
	DriverRedis    = "redis"
	DriverPostgres = "postgres"
	DriverMemory   = "memory"
)

// DatabaseConfig holds database connection settings.
type DatabaseConfig struct {
	Driver           string   `yaml:"driver"` // redis, postgres, memory (default: redis)
	Addrs            []string `yaml:"addrs"`
	Password         string   `yaml:"password"`
	DSN              string   `yaml:"dsn"`
	ReadinessTimeout int      `yaml:"readiness_timeout_sec"`
}

// StorageConfig holds storage settings.
type StorageConfig struct {
	KeyPrefix string `yaml:"key_prefix"`
}

// AuthConfig holds identity settings.
type AuthConfig struct {
	APIKeys []APIKeyConfig `yaml:"api_keys"`
	JWT     JWTConfig      `yaml:"jwt"`
	Users   []UserConfig   `yaml:"users"`
}

// APIKeyConfig binds a static bearer key to a principal.
type APIKeyConfig struct {
	Key   string   `yaml:"key"`
	Name  string   `yaml:"name"`
	Roles []string `yaml:"roles"`
}

// JWTConfig holds access token settings.
type JWTConfig struct {
	Secret             string `yaml:"secret"`
	LifetimeSec        int    `yaml:"lifetime_sec"`
	RequestHeaderName  string `yaml:"request_header_name"`
	ResponseHeaderName string `yaml:"response_header_name"`
	Prefix             string `yaml:"prefix"`
	UserParam          string `yaml:"user_param"`
	PassParam          string `yaml:"pass_param"`
}

// UserConfig is a login account. PasswordHash is a bcrypt hash.
type UserConfig struct {
	Name         string   `yaml:"name"`
	PasswordHash string   `yaml:"password_hash"`
	Roles        []string `yaml:"roles"`
}

// RoleConfig lists the actions and status transitions a role may perform.
type RoleConfig struct {
	Actions     []string           `yaml:"actions"`
	Transitions []TransitionConfig `yaml:"transitions"`
}

// TransitionConfig is an allowed status change. Empty From means creation.
type TransitionConfig struct {
	Type string `yaml:"type"`
	From string `yaml:"from"`
	To   string `yaml:"to"`
}

// RESTConfig holds API surface settings.
type RESTConfig struct {
	Endpoint      string           `yaml:"endpoint"`
	Canonical     string           `yaml:"canonical"`
	FilesPath     string           `yaml:"files_path"`
	Thumbnail     ThumbnailConfig  `yaml:"thumbnail"`
	SoftDelete    SoftDeleteConfig `yaml:"soft_delete"`
	Defaults      DefaultsConfig   `yaml:"defaults"`
	EditorStatus  string           `yaml:"editor_status"`
	PrefetchLimit int              `yaml:"prefetch_limit"`
	CORS          CORSConfig       `yaml:"cors"`
}

// ThumbnailConfig sets the size of generated image thumbnail links.
type ThumbnailConfig struct {
	Width  int `yaml:"width"`
	Height int `yaml:"height"`
}

// SoftDeleteConfig makes DELETE set a status instead of removing records.
type SoftDeleteConfig struct {
	Enabled bool   `yaml:"enabled"`
	Status  string `yaml:"status"`
}

// DefaultsConfig holds query defaults.
type DefaultsConfig struct {
	Status      string `yaml:"status"`
	Limit       int    `yaml:"limit"`
	MaxPageSize int    `yaml:"max_page_size"`
	Sort        string `yaml:"sort"`
}

// CORSConfig holds cross-origin settings.
type CORSConfig struct {
	Enabled     bool   `yaml:"enabled"`
	AllowOrigin string `yaml:"allow_origin"`
}

// Load reads configuration from a YAML file by environment name (local, dev, prod).
func Load(env string) (Config, error) {
	return LoadFile(findConfigPath(env))
}

// LoadFile reads configuration from an explicit path.
func LoadFile(configPath string) (Config, error) {
	data, err := os.ReadFile(filepath.Clean(configPath))
	if err != nil {
		return Config{}, fmt.Errorf("failed to read config %s: %w", configPath, err)
	}
	return Parse(data)
}

// Parse decodes, defaults and validates raw YAML.
func Parse(data []byte) (Config, error) {
	// Substitute env variables of the form ${VAR}
	data = expandEnvVars(data)

	var cfg Config
	if err := yaml.Unmarshal(data, &cfg); err != nil {
		return Config{}, fmt.Errorf("failed to parse config: %w", err)
	}

	cfg.ApplyDefaults()

	if err := cfg.Validate(); err != nil {
		return Config{}, fmt.Errorf("invalid config: %w", err)
	}

	return cfg, nil
}

// MustLoad loads configuration or panics.
func MustLoad(env string) Config {
	cfg, err := Load(env)
	if err != nil {
		panic(err)
	}
	return cfg
}

// GetEnv returns the current environment from the ENV variable, defaulting to "local".
func GetEnv() string {
	if env := os.Getenv("ENV"); env != "" {
		return env
	}
	return "local"
}

// ApplyDefaults fills empty fields with default values.
func (c *Config) ApplyDefaults() {
	if c.HTTP.ReadTimeoutSec <= 0 {
		c.HTTP.ReadTimeoutSec = 10
	}
	if c.HTTP.WriteTimeoutSec <= 0 {
		c.HTTP.WriteTimeoutSec = 10
	}
	if c.HTTP.ShutdownSec <= 0 {
		c.HTTP.ShutdownSec = 10
	}
	if c.Database.Driver == "" {
		c.Database.Driver = DriverRedis
	}
	if c.Database.ReadinessTimeout <= 0 {
		c.Database.ReadinessTimeout = 10
	}
	if c.Storage.KeyPrefix == "" {
		c.Storage.KeyPrefix = "contentrest:"
	}
	c.Auth.JWT.applyDefaults()
	c.REST.applyDefaults()
}

func (j *JWTConfig) applyDefaults() {
	if j.LifetimeSec <= 0 {
		j.LifetimeSec = 14 * 24 * 3600
	}
	if j.RequestHeaderName == "" {
		j.RequestHeaderName = "Authorization"
	}
	if j.ResponseHeaderName == "" {
		j.ResponseHeaderName = "X-Access-Token"
	}
	if j.Prefix == "" {
		j.Prefix = "Bearer"
	}
	if j.UserParam == "" {
		j.UserParam = "username"
	}
	if j.PassParam == "" {
		j.PassParam = "password"
	}
}

func (r *RESTConfig) applyDefaults() {
	if r.Endpoint == "" {
		r.Endpoint = "/api"
	}
	r.Endpoint = "/" + strings.Trim(r.Endpoint, "/")
	r.Canonical = strings.TrimRight(r.Canonical, "/")
	if r.FilesPath == "" {
		r.FilesPath = "/files"
	}
	if r.Thumbnail.Width <= 0 {
		r.Thumbnail.Width = 500
	}
	if r.Thumbnail.Height <= 0 {
		r.Thumbnail.Height = 500
	}
	if r.SoftDelete.Status == "" {
		r.SoftDelete.Status = "held"
	}
	if r.Defaults.Status == "" {
		r.Defaults.Status = "published"
	}
	if r.Defaults.Limit <= 0 {
		r.Defaults.Limit = 20
	}
	if r.Defaults.MaxPageSize <= 0 {
		r.Defaults.MaxPageSize = 100
	}
	if r.EditorStatus == "" {
		r.EditorStatus = "published || draft || held"
	}
	if r.PrefetchLimit <= 0 {
		r.PrefetchLimit = 8
	}
	if r.CORS.AllowOrigin == "" {
		r.CORS.AllowOrigin = "*"
	}
}

// Validate checks the configuration for correctness.
func (c *Config) Validate() error {
	if c.HTTP.Port <= 0 || c.HTTP.Port > 65535 {
		return fmt.Errorf("http.port must be between 1 and 65535, got %d", c.HTTP.Port)
	}
	switch c.Database.Driver {
	case DriverRedis:
		if len(c.Database.Addrs) == 0 {
			return fmt.Errorf("database.addrs is required for driver %q", DriverRedis)
		}
	case DriverPostgres:
		if c.Database.DSN == "" {
			return fmt.Errorf("database.dsn is required for driver %q", DriverPostgres)
		}
	case DriverMemory:
	default:
		return fmt.Errorf("database.driver must be redis, postgres or memory, got %q", c.Database.Driver)
	}
	if len(c.Auth.Users) > 0 && c.Auth.JWT.Secret == "" {
		return fmt.Errorf("auth.jwt.secret is required when auth.users are configured")
	}
	for i, u := range c.Auth.Users {
		if u.Name == "" || u.PasswordHash == "" {
			return fmt.Errorf("auth.users[%d]: name and password_hash are required", i)
		}
	}
	for i, k := range c.Auth.APIKeys {
		if k.Key == "" || k.Name == "" {
			return fmt.Errorf("auth.api_keys[%d]: key and name are required", i)
		}
	}
	if c.REST.Defaults.Limit > c.REST.Defaults.MaxPageSize {
		return fmt.Errorf("rest.defaults.limit %d exceeds max_page_size %d",
			c.REST.Defaults.Limit, c.REST.Defaults.MaxPageSize)
	}
	if len(c.ContentTypes) == 0 {
		return fmt.Errorf("content_types must declare at least one type")
	}
	return nil
}

// findConfigPath locates the config file.
func findConfigPath(env string) string {
	filename := fmt.Sprintf("%s.yaml", env)

	// 1. Check ./config/
	if path := filepath.Join("config", filename); fileExists(path) {
		return path
	}

	// 2. Check relative to the source file
	_, b, _, _ := runtime.Caller(0)
	projectRoot := filepath.Dir(filepath.Dir(filepath.Dir(b))) // internal/config -> project root
	if path := filepath.Join(projectRoot, "config", filename); fileExists(path) {
		return path
	}

	// 3. Fallback to ./config/
	return filepath.Join("config", filename)
}

func fileExists(path string) bool {
	_, err := os.Stat(path)
	return err == nil
}

// expandEnvVars replaces ${VAR} and ${VAR:-default} with environment variable values.
var envVarRegex = regexp.MustCompile(`\$\{([^}]+)\}`)

func expandEnvVars(data []byte) []byte {
	return envVarRegex.ReplaceAllFunc(data, func(match []byte) []byte {
		expr := string(match[2 : len(match)-1]) // strip ${ and }
		varName, defaultVal, hasDefault := strings.Cut(expr, ":-")
		val := os.Getenv(varName)
		if val == "" && hasDefault {
			val = defaultVal
		}
		return []byte(val)
	})
}
