package models

import (
	"time"
)

const (
	RoleUser  = "user" // buys and sells with the same account
	RoleAdmin = "admin"
)

type User struct {
	ID uint `gorm:"primaryKey" json:"id"`

	// Login
	Username string `gorm:"unique;not null;size:50" json:"username"`
	Email    string `gorm:"unique;not null;size:100" json:"email"`
	Password string `gorm:"not null" json:"-"`

	// Profile
	Phone      *string `gorm:"size:20" json:"phone"`
	Bio        string  `gorm:"type:text" json:"bio"`
	ProfilePic string  `json:"profile_pic"`

	// Role & verification
	Role         string     `gorm:"default:'user';size:20" json:"role"`
	IsVerified   bool       `gorm:"default:false" json:"is_verified"`
	OTPCode      *string    `gorm:"size:8" json:"-"`
	OTPExpiresAt *time.Time `json:"-"`

	CreatedAt time.Time `json:"created_at"`
	UpdatedAt time.Time `json:"updated_at"`
}

func (u *User) IsAdmin() bool {
	return u.Role == RoleAdmin
}

// PublicUser is the subset of a user that other users may see.
type PublicUser struct {
	ID         uint      `json:"id"`
	Username   string    `json:"username"`
	Bio        string    `json:"bio"`
	ProfilePic string    `json:"profile_pic"`
	CreatedAt  time.Time `json:"created_at"`
}

func (u *User) Public() PublicUser {
	return PublicUser{
		ID:         u.ID,
		Username:   u.Username,
		Bio:        u.Bio,
		ProfilePic: u.ProfilePic,
		CreatedAt:  u.CreatedAt,
	}
}
