package users

import "time"

// Account is a credential-bearing user able to obtain token pairs.
type Account struct {
	ID           string     `gorm:"column:id;primaryKey;size:36;not null"`
	Username     string     `gorm:"column:username;size:150;not null;uniqueIndex"`
	PasswordHash string     `gorm:"column:password_hash;size:60;not null"`
	LastLoginAt  *time.Time `gorm:"column:last_login_at"`
	CreatedAt    time.Time  `gorm:"column:created_at;not null"`
	UpdatedAt    time.Time  `gorm:"column:updated_at;not null"`
}

// TableName exposes the table backing accounts.
func (Account) TableName() string {
	return "accounts"
}
