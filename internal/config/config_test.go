package config

import (
	"testing"
	"time"
)

func TestLoadAppliesDefaults(t *testing.T) {
	configViper := NewViper()
	configViper.Set("auth.signing_secret", "secret")

	cfg, err := Load(configViper)
	if err != nil {
		t.Fatalf("unexpected load error: %v", err)
	}

	if cfg.HTTPAddress != "0.0.0.0:8080" {
		t.Fatalf("unexpected http address %s", cfg.HTTPAddress)
	}
	if cfg.DatabasePath != "nimbus.db" {
		t.Fatalf("unexpected database path %s", cfg.DatabasePath)
	}
	if cfg.AccessTTL != 30*time.Minute {
		t.Fatalf("unexpected access ttl %s", cfg.AccessTTL)
	}
	if cfg.RefreshTTL != 24*time.Hour {
		t.Fatalf("unexpected refresh ttl %s", cfg.RefreshTTL)
	}
	if cfg.GitHubBaseURL != "https://api.github.com" {
		t.Fatalf("unexpected github base url %s", cfg.GitHubBaseURL)
	}
	if cfg.PageSize != 6 {
		t.Fatalf("unexpected page size %d", cfg.PageSize)
	}
}

func TestLoadRejectsInvalidConfig(t *testing.T) {
	testCases := []struct {
		name  string
		setup func(v map[string]any)
	}{
		{name: "missing-signing-secret", setup: func(v map[string]any) {
			delete(v, "auth.signing_secret")
		}},
		{name: "empty-database-path", setup: func(v map[string]any) {
			v["database.path"] = " "
		}},
		{name: "empty-github-base-url", setup: func(v map[string]any) {
			v["github.base_url"] = ""
		}},
		{name: "non-positive-access-ttl", setup: func(v map[string]any) {
			v["auth.access_ttl_minutes"] = 0
		}},
		{name: "non-positive-page-size", setup: func(v map[string]any) {
			v["notes.page_size"] = -1
		}},
		{name: "admin-username-without-password", setup: func(v map[string]any) {
			v["admin.username"] = "admin"
		}},
	}

	for _, testCase := range testCases {
		t.Run(testCase.name, func(t *testing.T) {
			values := map[string]any{"auth.signing_secret": "secret"}
			testCase.setup(values)

			configViper := NewViper()
			for key, value := range values {
				configViper.Set(key, value)
			}

			if _, err := Load(configViper); err == nil {
				t.Fatalf("expected load error")
			}
		})
	}
}
