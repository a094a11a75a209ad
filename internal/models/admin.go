package models

import (
	"time"
)

// AdminRole represents the role of an admin account
type AdminRole string

const (
	AdminRoleAdmin    AdminRole = "admin"
	AdminRoleReadonly AdminRole = "readonly"
)

// Admin represents a management console account. Admin credentials never
// participate in RADIUS exchanges, so the password is bcrypt-hashed.
type Admin struct {
	ID               uint       `gorm:"column:id;primaryKey" json:"id"`
	Username         string     `gorm:"column:username;uniqueIndex;size:100;not null" json:"username"`
	Password         string     `gorm:"column:password;size:255;not null" json:"-"`
	FullName         string     `gorm:"column:full_name;size:255" json:"full_name"`
	Role             AdminRole  `gorm:"column:role;size:20;default:admin" json:"role"`
	TwoFactorSecret  string     `gorm:"column:two_factor_secret;size:64" json:"-"`
	TwoFactorEnabled bool       `gorm:"column:two_factor_enabled;default:false" json:"two_factor_enabled"`
	IsActive         bool       `gorm:"column:is_active;default:true" json:"is_active"`
	LastLogin        *time.Time `gorm:"column:last_login" json:"last_login"`
	CreatedAt        time.Time  `gorm:"column:created_at" json:"created_at"`
	UpdatedAt        time.Time  `gorm:"column:updated_at" json:"updated_at"`
}

func (Admin) TableName() string {
	return "admins"
}
