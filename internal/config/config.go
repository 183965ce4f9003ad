package config

import (
	"fmt"
	"strings"
	"time"

	"github.com/spf13/viper"
)

const (
	envPrefix           = "NIMBUS"
	defaultHTTPAddress  = "0.0.0.0:8080"
	defaultDatabasePath = "nimbus.db"
	defaultLogLevel     = "info"
	defaultGitHubAPIURL = "https://api.github.com"
	defaultAccessTTLMin = 30
	defaultRefreshTTLHr = 24
	defaultPageSize     = 6
)

// AppConfig captures runtime configuration for the API server.
type AppConfig struct {
	HTTPAddress   string
	DatabasePath  string
	LogLevel      string
	SigningSecret string
	AccessTTL     time.Duration
	RefreshTTL    time.Duration
	GitHubBaseURL string
	AdminUsername string
	AdminPassword string
	PageSize      int
}

// NewViper returns a viper instance with defaults and env bindings configured.
func NewViper() *viper.Viper {
	configViper := viper.New()
	ApplyDefaults(configViper)
	return configViper
}

// ApplyDefaults configures defaults and env bindings on the provided viper instance.
func ApplyDefaults(configViper *viper.Viper) {
	configViper.SetEnvPrefix(envPrefix)
	configViper.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	configViper.AutomaticEnv()

	configViper.SetDefault("http.address", defaultHTTPAddress)
	configViper.SetDefault("database.path", defaultDatabasePath)
	configViper.SetDefault("log.level", defaultLogLevel)
	configViper.SetDefault("auth.access_ttl_minutes", defaultAccessTTLMin)
	configViper.SetDefault("auth.refresh_ttl_hours", defaultRefreshTTLHr)
	configViper.SetDefault("github.base_url", defaultGitHubAPIURL)
	configViper.SetDefault("notes.page_size", defaultPageSize)
}

// Load parses runtime configuration from viper.
func Load(configViper *viper.Viper) (AppConfig, error) {
	cfg := AppConfig{
		HTTPAddress:   configViper.GetString("http.address"),
		DatabasePath:  configViper.GetString("database.path"),
		LogLevel:      configViper.GetString("log.level"),
		SigningSecret: configViper.GetString("auth.signing_secret"),
		AccessTTL:     time.Duration(configViper.GetInt("auth.access_ttl_minutes")) * time.Minute,
		RefreshTTL:    time.Duration(configViper.GetInt("auth.refresh_ttl_hours")) * time.Hour,
		GitHubBaseURL: configViper.GetString("github.base_url"),
		AdminUsername: configViper.GetString("admin.username"),
		AdminPassword: configViper.GetString("admin.password"),
		PageSize:      configViper.GetInt("notes.page_size"),
	}

	if err := cfg.validate(); err != nil {
		return AppConfig{}, err
	}

	return cfg, nil
}

func (c AppConfig) validate() error {
	if strings.TrimSpace(c.SigningSecret) == "" {
		return fmt.Errorf("auth.signing_secret is required")
	}
	if strings.TrimSpace(c.DatabasePath) == "" {
		return fmt.Errorf("database.path is required")
	}
	if strings.TrimSpace(c.GitHubBaseURL) == "" {
		return fmt.Errorf("github.base_url is required")
	}
	if c.AccessTTL <= 0 {
		return fmt.Errorf("auth.access_ttl_minutes must be positive")
	}
	if c.RefreshTTL <= 0 {
		return fmt.Errorf("auth.refresh_ttl_hours must be positive")
	}
	if c.PageSize <= 0 {
		return fmt.Errorf("notes.page_size must be positive")
	}
	if (c.AdminUsername == "") != (c.AdminPassword == "") {
		return fmt.Errorf("admin.username and admin.password must be set together")
	}
	return nil
}
