package models

import (
	"time"

	"github.com/google/uuid"
	"gorm.io/gorm"
)

const (
	RoleAdmin = "admin"
	RoleStaff = "staff"
)

// User is a staff account known to the identity provider.
type User struct {
	ID        uuid.UUID  `gorm:"type:uuid;primary_key" json:"id"`
	Name      string     `gorm:"not null" json:"name"`
	Email     string     `gorm:"uniqueIndex;not null" json:"email"`
	Password  string     `gorm:"not null" json:"-"`
	Role      string     `gorm:"type:varchar(20);not null;default:'staff'" json:"role"`
	LastLogin *time.Time `json:"last_login"`

	CreatedAt time.Time `json:"created_at"`
	UpdatedAt time.Time `json:"updated_at"`
}

func (u *User) BeforeCreate(tx *gorm.DB) (err error) {
	if u.ID == uuid.Nil {
		u.ID = uuid.New()
	}
	return
}

// Principal is the authenticated caller handed to every service operation.
type Principal struct {
	UserID uuid.UUID
	Email  string
	Role   string
}

func (p Principal) IsAdmin() bool {
	return p.Role == RoleAdmin
}
