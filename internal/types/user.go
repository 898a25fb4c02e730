package types

import (
	"time"

	"github.com/google/uuid"
)

const (
	RoleUser  = "user"
	RoleAdmin = "admin"
)

// User is the canonical identity record. LegacyID carries the id the row had
// in the historical secondary identity table; enrollments written against it
// are re-pointed by identity reconciliation.
type User struct {
	ID        uuid.UUID  `gorm:"type:uuid;default:uuid_generate_v4();primaryKey" json:"id"`
	Email     string     `gorm:"uniqueIndex;not null;column:email" json:"email"`
	Password  string     `gorm:"not null;column:password" json:"-"`
	FirstName string     `gorm:"column:first_name" json:"first_name"`
	LastName  string     `gorm:"column:last_name" json:"last_name"`
	Role      string     `gorm:"column:role;not null;default:'user';index" json:"role"`
	LegacyID  *uuid.UUID `gorm:"type:uuid;column:legacy_id;index" json:"legacy_id,omitempty"`
	CreatedAt time.Time  `gorm:"not null;default:now()" json:"created_at"`
	UpdatedAt time.Time  `gorm:"not null;default:now()" json:"updated_at"`
}

func (User) TableName() string { return "users" }

func (u *User) DisplayName() string {
	name := u.FirstName
	if u.LastName != "" {
		if name != "" {
			name += " "
		}
		name += u.LastName
	}
	if name == "" {
		return u.Email
	}
	return name
}

// Profile mirrors a user row in the secondary identity table. Kept only as a
// lookup fallback for email resolution and as the source of stale ids during
// reconciliation.
type Profile struct {
	ID        uuid.UUID `gorm:"type:uuid;default:uuid_generate_v4();primaryKey" json:"id"`
	UserID    uuid.UUID `gorm:"type:uuid;not null;index;column:user_id" json:"user_id"`
	Email     string    `gorm:"not null;index;column:email" json:"email"`
	FullName  string    `gorm:"column:full_name" json:"full_name"`
	CreatedAt time.Time `gorm:"not null;default:now()" json:"created_at"`
	UpdatedAt time.Time `gorm:"not null;default:now()" json:"updated_at"`
}

func (Profile) TableName() string { return "profiles" }

// UserToken stores the active refresh token for a user session.
type UserToken struct {
	ID           uuid.UUID `gorm:"type:uuid;default:uuid_generate_v4();primaryKey" json:"id"`
	UserID       uuid.UUID `gorm:"type:uuid;not null;index;column:user_id" json:"user_id"`
	RefreshToken string    `gorm:"not null;column:refresh_token" json:"-"`
	ExpiresAt    time.Time `gorm:"not null;column:expires_at" json:"expires_at"`
	CreatedAt    time.Time `gorm:"not null;default:now()" json:"created_at"`
}

func (UserToken) TableName() string { return "user_tokens" }
