package models

// Identity links a local user to an external OAuth identity. A user may hold
// one identity per provider; the provider subject is the stable key.
type Identity struct {
	BaseModel

	UserID   string `gorm:"type:uuid;not null;index" json:"user_id"`
	User     *User  `gorm:"foreignKey:UserID" json:"user,omitempty"`
	Provider string `gorm:"not null;uniqueIndex:idx_identity_provider_subject" json:"provider"`
	Subject  string `gorm:"not null;uniqueIndex:idx_identity_provider_subject" json:"subject"`
	Email    string `json:"email"`
}
