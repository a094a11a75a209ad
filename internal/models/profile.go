package models

import (
	"time"
)

// Profile is a named attribute group attached to users. The rate limit uses
// the MikroTik vendor format, e.g. "10M/10M" or with burst parameters
// "10M/10M 20M/20M 15M/15M 10/10". Timeouts are in seconds; zero means the
// attribute is not sent.
type Profile struct {
	ID             uint      `gorm:"column:id;primaryKey" json:"id"`
	Name           string    `gorm:"column:name;size:64;not null;uniqueIndex" json:"name"`
	RateLimit      string    `gorm:"column:rate_limit;size:100" json:"rate_limit"`
	SessionTimeout int       `gorm:"column:session_timeout;default:0" json:"session_timeout"`
	IdleTimeout    int       `gorm:"column:idle_timeout;default:0" json:"idle_timeout"`
	Description    string    `gorm:"column:description;size:255" json:"description"`
	CreatedAt      time.Time `gorm:"column:created_at" json:"created_at"`
	UpdatedAt      time.Time `gorm:"column:updated_at" json:"updated_at"`
}

func (Profile) TableName() string {
	return "profiles"
}

// DefaultProfileName is seeded on first boot and carries no extra attributes
const DefaultProfileName = "default"
