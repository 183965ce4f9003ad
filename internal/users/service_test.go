package users

import (
	"context"
	"errors"
	"fmt"
	"testing"
	"time"

	sqlite "github.com/glebarez/sqlite"
	"go.uber.org/zap"
	"go.uber.org/zap/zaptest/observer"
	"gorm.io/gorm"
)

func newTestAccounts(t *testing.T) *Service {
	t.Helper()

	dsn := fmt.Sprintf("file:%s?mode=memory&cache=shared", t.Name())
	db, err := gorm.Open(sqlite.Open(dsn), &gorm.Config{})
	if err != nil {
		t.Fatalf("failed to open test database: %v", err)
	}
	if err := db.AutoMigrate(&Account{}); err != nil {
		t.Fatalf("failed to migrate schema: %v", err)
	}

	service, err := NewService(ServiceConfig{
		Database: db,
		Clock:    func() time.Time { return time.Date(2026, 3, 10, 10, 0, 0, 0, time.UTC) },
	})
	if err != nil {
		t.Fatalf("failed to construct accounts service: %v", err)
	}
	return service
}

func TestEnsureAccountThenAuthenticate(t *testing.T) {
	service := newTestAccounts(t)

	created, err := service.EnsureAccount(context.Background(), "admin", "hunter2")
	if err != nil {
		t.Fatalf("unexpected ensure error: %v", err)
	}
	if created.ID == "" {
		t.Fatalf("expected generated account id")
	}

	account, err := service.Authenticate(context.Background(), "admin", "hunter2")
	if err != nil {
		t.Fatalf("expected authentication success: %v", err)
	}
	if account.ID != created.ID {
		t.Fatalf("unexpected account id %s", account.ID)
	}
	if account.LastLoginAt == nil {
		t.Fatalf("expected last login timestamp to be recorded")
	}
}

func TestAuthenticateRejectsBadCredentials(t *testing.T) {
	service := newTestAccounts(t)

	if _, err := service.EnsureAccount(context.Background(), "admin", "hunter2"); err != nil {
		t.Fatalf("unexpected ensure error: %v", err)
	}

	if _, err := service.Authenticate(context.Background(), "admin", "wrong"); !errors.Is(err, ErrInvalidCredentials) {
		t.Fatalf("expected invalid credentials for wrong password, got %v", err)
	}
	if _, err := service.Authenticate(context.Background(), "nobody", "hunter2"); !errors.Is(err, ErrInvalidCredentials) {
		t.Fatalf("expected invalid credentials for unknown user, got %v", err)
	}
	if _, err := service.Authenticate(context.Background(), "", ""); !errors.Is(err, ErrInvalidCredentials) {
		t.Fatalf("expected invalid credentials for empty input, got %v", err)
	}
}

func TestAuthenticateSurvivesLastLoginUpdateFailure(t *testing.T) {
	dsn := fmt.Sprintf("file:%s?mode=memory&cache=shared", t.Name())
	db, err := gorm.Open(sqlite.Open(dsn), &gorm.Config{})
	if err != nil {
		t.Fatalf("failed to open test database: %v", err)
	}
	if err := db.AutoMigrate(&Account{}); err != nil {
		t.Fatalf("failed to migrate schema: %v", err)
	}

	core, recorded := observer.New(zap.WarnLevel)
	service, err := NewService(ServiceConfig{
		Database: db,
		Logger:   zap.New(core),
	})
	if err != nil {
		t.Fatalf("failed to construct accounts service: %v", err)
	}
	if _, err := service.EnsureAccount(context.Background(), "admin", "hunter2"); err != nil {
		t.Fatalf("unexpected ensure error: %v", err)
	}

	// Break the bump target so only the timestamp update can fail.
	if err := db.Exec("ALTER TABLE accounts DROP COLUMN last_login_at").Error; err != nil {
		t.Fatalf("failed to drop column: %v", err)
	}

	account, err := service.Authenticate(context.Background(), "admin", "hunter2")
	if err != nil {
		t.Fatalf("expected authentication to succeed despite failed bump: %v", err)
	}
	if account.Username != "admin" {
		t.Fatalf("unexpected account %q", account.Username)
	}
	if recorded.FilterMessage("last login update failed").Len() != 1 {
		t.Fatalf("expected one warning about the failed bump, got %d entries", recorded.Len())
	}
}

func TestEnsureAccountIsIdempotent(t *testing.T) {
	service := newTestAccounts(t)

	first, err := service.EnsureAccount(context.Background(), "admin", "old-password")
	if err != nil {
		t.Fatalf("unexpected ensure error: %v", err)
	}
	second, err := service.EnsureAccount(context.Background(), "admin", "new-password")
	if err != nil {
		t.Fatalf("unexpected ensure error: %v", err)
	}
	if first.ID != second.ID {
		t.Fatalf("expected the same account to be reused")
	}

	if _, err := service.Authenticate(context.Background(), "admin", "old-password"); !errors.Is(err, ErrInvalidCredentials) {
		t.Fatalf("expected the old password to be rotated out, got %v", err)
	}
	if _, err := service.Authenticate(context.Background(), "admin", "new-password"); err != nil {
		t.Fatalf("expected the new password to authenticate: %v", err)
	}
}

func TestEnsureAccountValidatesInput(t *testing.T) {
	service := newTestAccounts(t)

	if _, err := service.EnsureAccount(context.Background(), " ", "pw"); !errors.Is(err, ErrInvalidAccountInput) {
		t.Fatalf("expected input error for empty username, got %v", err)
	}
	if _, err := service.EnsureAccount(context.Background(), "admin", ""); !errors.Is(err, ErrInvalidAccountInput) {
		t.Fatalf("expected input error for empty password, got %v", err)
	}
}
