package shared

import (
	_ "embed"
	"fmt"
	"os"
	"strings"

	"github.com/BurntSushi/toml"
	"github.com/joho/godotenv"
)

//go:embed config.example.toml
var exampleConf []byte

// Environment variables that override secrets from the config file.
const (
	EnvCMSToken          = "TRAINHUB_CMS_TOKEN"
	EnvOAuthClientSecret = "TRAINHUB_OAUTH_CLIENT_SECRET"
	EnvDatabasePath      = "TRAINHUB_DATABASE_PATH"
)

// Config represents the application configuration loaded from a TOML file.
type Config struct {
	CMS      CMSConfig      `toml:"cms"`
	Database DatabaseConfig `toml:"database"`
	Server   ServerConfig   `toml:"server"`
	Storage  StorageConfig  `toml:"storage"`
	Auth     AuthConfig     `toml:"auth"`
	Sync     SyncConfig     `toml:"sync"`
	Log      LogConfig      `toml:"log"`
}

// CMSConfig contains headless CMS connection settings.
type CMSConfig struct {
	ProjectID      string `toml:"project_id"`
	Dataset        string `toml:"dataset"`
	APIVersion     string `toml:"api_version"`
	Token          string `toml:"token"`
	UseCDN         bool   `toml:"use_cdn"`
	BaseURL        string `toml:"base_url"`
	CDNURL         string `toml:"cdn_url"`
	TimeoutSeconds int    `toml:"timeout_seconds"`
}

// DatabaseConfig contains database connection settings.
type DatabaseConfig struct {
	Path         string `toml:"path"`
	MaxOpenConns int    `toml:"max_open_conns"`
	MaxIdleConns int    `toml:"max_idle_conns"`
}

// ServerConfig contains HTTP server settings.
type ServerConfig struct {
	Host            string `toml:"host"`
	Port            int    `toml:"port"`
	BaseURL         string `toml:"base_url"`
	SessionTTLHours int    `toml:"session_ttl_hours"`
	CookieSecure    bool   `toml:"cookie_secure"`
}

// Addr returns the host:port listen address.
func (s ServerConfig) Addr() string {
	return fmt.Sprintf("%s:%d", s.Host, s.Port)
}

// StorageConfig contains object storage settings for uploaded files.
type StorageConfig struct {
	Path        string `toml:"path"`
	MaxUploadMB int    `toml:"max_upload_mb"`
}

// MaxUploadBytes returns the upload limit in bytes.
func (s StorageConfig) MaxUploadBytes() int64 {
	return int64(s.MaxUploadMB) << 20
}

// AuthConfig groups login providers.
type AuthConfig struct {
	OAuth OAuthConfig `toml:"oauth"`
}

// OAuthConfig describes a generic OAuth2 login provider.
type OAuthConfig struct {
	Name         string   `toml:"name"`
	ClientID     string   `toml:"client_id"`
	ClientSecret string   `toml:"client_secret"`
	AuthURL      string   `toml:"auth_url"`
	TokenURL     string   `toml:"token_url"`
	UserInfoURL  string   `toml:"userinfo_url"`
	RedirectURI  string   `toml:"redirect_uri"`
	Scopes       []string `toml:"scopes"`
}

// Enabled reports whether enough is configured to run the login flow.
func (o OAuthConfig) Enabled() bool {
	return o.ClientID != "" && o.AuthURL != "" && o.TokenURL != "" && o.UserInfoURL != ""
}

// SyncConfig tunes the CMS content sync.
type SyncConfig struct {
	Workers   int     `toml:"workers"`
	RateLimit float64 `toml:"rate_limit"`
}

// LogConfig contains logger settings.
type LogConfig struct {
	Level string `toml:"level"`
}

// LoadConfig reads and parses a TOML configuration file from the specified path.
//
// Keys missing from the file keep their default values.
func LoadConfig(path string) (*Config, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("failed to read config file: %w", err)
	}

	config := DefaultConfig()
	if err := toml.Unmarshal(data, config); err != nil {
		return nil, fmt.Errorf("%w: failed to parse config: %v", ErrInvalidConfig, err)
	}

	return config, nil
}

// DefaultConfig returns a Config with sensible defaults loaded from the embedded example config.
func DefaultConfig() *Config {
	var config Config
	if err := toml.Unmarshal(exampleConf, &config); err != nil {
		panic(fmt.Sprintf("failed to parse embedded default config: %v", err))
	}
	return &config
}

// CreateConfigFile creates a config.toml file at the specified path using the embedded example config.
func CreateConfigFile(path string) error {
	if _, err := os.Stat(path); err == nil {
		return fmt.Errorf("%w: config file already exists at %s", ErrConflict, path)
	}

	if err := os.WriteFile(path, exampleConf, 0644); err != nil {
		return fmt.Errorf("failed to write config file: %w", err)
	}

	return nil
}

// LoadEnv loads variables from the given dotenv files into the process environment.
//
// Missing files are ignored; variables already set are not overwritten.
func LoadEnv(paths ...string) error {
	existing := make([]string, 0, len(paths))
	for _, p := range paths {
		if _, err := os.Stat(p); err == nil {
			existing = append(existing, p)
		}
	}
	if len(existing) == 0 {
		return nil
	}
	if err := godotenv.Load(existing...); err != nil {
		return fmt.Errorf("failed to load env files: %w", err)
	}
	return nil
}

// ApplyEnv overrides secret settings in config with values from the environment.
func ApplyEnv(config *Config) {
	if v := strings.TrimSpace(os.Getenv(EnvCMSToken)); v != "" {
		config.CMS.Token = v
	}
	if v := strings.TrimSpace(os.Getenv(EnvOAuthClientSecret)); v != "" {
		config.Auth.OAuth.ClientSecret = v
	}
	if v := strings.TrimSpace(os.Getenv(EnvDatabasePath)); v != "" {
		config.Database.Path = v
	}
}
