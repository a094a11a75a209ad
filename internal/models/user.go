package models

import (
	"time"
)

// User represents a RADIUS subscriber account.
//
// MS-CHAP and MS-CHAPv2 verification require the NT hash of the password, so
// the hash is always persisted (hex, 32 chars). The cleartext password itself
// is kept only when StoreCleartext is set: CHAP is the one method that cannot
// be verified from the hash alone.
type User struct {
	ID             uint       `gorm:"column:id;primaryKey" json:"id"`
	Username       string     `gorm:"column:username;uniqueIndex;size:64;not null" json:"username"`
	NTHash         string     `gorm:"column:nt_hash;size:32;not null" json:"-"`
	Password       string     `gorm:"column:password;size:128" json:"-"`
	StoreCleartext bool       `gorm:"column:store_cleartext;default:false" json:"store_cleartext"`
	FullName       string     `gorm:"column:full_name;size:255" json:"full_name"`
	ProfileName    string     `gorm:"column:profile_name;size:64;default:default" json:"profile_name"`
	IsActive       bool       `gorm:"column:is_active;default:true" json:"is_active"`
	ExpiredAt      *time.Time `gorm:"column:expired_at" json:"expired_at"`
	CreatedAt      time.Time  `gorm:"column:created_at" json:"created_at"`
	UpdatedAt      time.Time  `gorm:"column:updated_at" json:"updated_at"`
}

func (User) TableName() string {
	return "users"
}

// IsExpired reports whether the account expiry has passed
func (u *User) IsExpired() bool {
	return u.ExpiredAt != nil && u.ExpiredAt.Before(time.Now())
}
