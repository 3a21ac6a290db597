package models

import (
	"time"

	"github.com/google/uuid"
	"gorm.io/gorm"
)

// User is a registered account. Passwords are stored as bcrypt hashes only.
type User struct {
	ID       string `gorm:"primaryKey;type:uuid" json:"id"`
	Username string `gorm:"uniqueIndex;not null" json:"username"`
	Email    string `gorm:"uniqueIndex;not null" json:"email"`
	Password string `gorm:"not null" json:"-"`

	FirstName string `json:"first_name"`
	LastName  string `json:"last_name"`

	IsActive bool `gorm:"default:true" json:"is_active"`

	// EmailVerifiedAt is nil until the account-confirmation key is consumed.
	// Password login is refused while nil when verification is mandatory.
	EmailVerifiedAt *time.Time `json:"email_verified_at"`

	Identities []Identity `gorm:"foreignKey:UserID" json:"-"`
	Sessions   []Session  `gorm:"foreignKey:UserID" json:"-"`

	LastLoginAt *time.Time `json:"last_login_at"`
	LastLoginIP string     `json:"last_login_ip"`

	FailedAttempts int        `gorm:"default:0" json:"-"`
	LockedUntil    *time.Time `json:"-"`

	CreatedAt time.Time `json:"created_at"`
	UpdatedAt time.Time `json:"updated_at"`
}

// BeforeCreate ensures a UUID is present before persisting.
func (u *User) BeforeCreate(tx *gorm.DB) error {
	if u.ID == "" {
		u.ID = uuid.NewString()
	}
	return nil
}

// EmailVerified reports whether the account's email has been confirmed.
func (u *User) EmailVerified() bool {
	return u.EmailVerifiedAt != nil
}
