package users

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"
	"go.uber.org/zap"
	"golang.org/x/crypto/bcrypt"
	"gorm.io/gorm"
)

var (
	// ErrInvalidCredentials covers both unknown usernames and wrong
	// passwords so callers cannot distinguish the two.
	ErrInvalidCredentials = errors.New("users: invalid credentials")
	// ErrInvalidAccountInput indicates an unusable username or password.
	ErrInvalidAccountInput = errors.New("users: invalid account input")
)

// ServiceConfig describes the dependencies of the account service.
type ServiceConfig struct {
	Database *gorm.DB
	Clock    func() time.Time
	Logger   *zap.Logger
}

// Service manages credential accounts backing the token endpoints.
type Service struct {
	db     *gorm.DB
	now    func() time.Time
	logger *zap.Logger
}

// NewService constructs the account service.
func NewService(cfg ServiceConfig) (*Service, error) {
	if cfg.Database == nil {
		return nil, fmt.Errorf("users: database connection required")
	}
	clock := cfg.Clock
	if clock == nil {
		clock = time.Now
	}
	logger := cfg.Logger
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Service{db: cfg.Database, now: clock, logger: logger}, nil
}

// Authenticate verifies the username/password pair and returns the
// matching account, bumping its last_login_at on success.
func (s *Service) Authenticate(ctx context.Context, username, password string) (Account, error) {
	username = strings.TrimSpace(username)
	if username == "" || password == "" {
		return Account{}, ErrInvalidCredentials
	}

	var account Account
	err := s.db.WithContext(ctx).Where("username = ?", username).Take(&account).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return Account{}, ErrInvalidCredentials
	}
	if err != nil {
		return Account{}, err
	}

	if bcrypt.CompareHashAndPassword([]byte(account.PasswordHash), []byte(password)) != nil {
		return Account{}, ErrInvalidCredentials
	}

	loginTime := s.now().UTC()
	account.LastLoginAt = &loginTime
	// A failed bump must not reject an otherwise valid login.
	if err := s.db.WithContext(ctx).Model(&Account{}).
		Where("id = ?", account.ID).
		Update("last_login_at", loginTime).Error; err != nil {
		s.logger.Warn("last login update failed",
			zap.String("username", account.Username),
			zap.Error(err))
	}

	return account, nil
}

// EnsureAccount creates the account when it does not exist yet and
// refreshes its password hash when it does. Used to bootstrap the
// configured admin account at startup.
func (s *Service) EnsureAccount(ctx context.Context, username, password string) (Account, error) {
	username = strings.TrimSpace(username)
	if username == "" {
		return Account{}, fmt.Errorf("%w: username is required", ErrInvalidAccountInput)
	}
	if password == "" {
		return Account{}, fmt.Errorf("%w: password is required", ErrInvalidAccountInput)
	}

	hash, err := bcrypt.GenerateFromPassword([]byte(password), bcrypt.DefaultCost)
	if err != nil {
		return Account{}, err
	}

	now := s.now().UTC()

	var account Account
	err = s.db.WithContext(ctx).Where("username = ?", username).Take(&account).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		id, err := uuid.NewV7()
		if err != nil {
			return Account{}, err
		}
		account = Account{
			ID:           id.String(),
			Username:     username,
			PasswordHash: string(hash),
			CreatedAt:    now,
			UpdatedAt:    now,
		}
		if err := s.db.WithContext(ctx).Create(&account).Error; err != nil {
			return Account{}, err
		}
		return account, nil
	}
	if err != nil {
		return Account{}, err
	}

	account.PasswordHash = string(hash)
	account.UpdatedAt = now
	if err := s.db.WithContext(ctx).Save(&account).Error; err != nil {
		return Account{}, err
	}
	return account, nil
}
