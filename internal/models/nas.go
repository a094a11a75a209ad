package models

import (
	"time"
)

// NasType represents the vendor type of a NAS device
type NasType string

const (
	NasTypeMikrotik NasType = "mikrotik"
	NasTypeCisco    NasType = "cisco"
	NasTypeHuawei   NasType = "huawei"
	NasTypeUbiquiti NasType = "ubiquiti"
	NasTypeOther    NasType = "other"
)

// Nas represents a NAS/Router device that speaks RADIUS to this server.
// An inactive NAS is treated as unknown: its datagrams are dropped.
type Nas struct {
	ID          uint      `gorm:"column:id;primaryKey" json:"id"`
	Name        string    `gorm:"column:name;size:100;not null" json:"name"`
	IPAddress   string    `gorm:"column:ip_address;size:50;not null;uniqueIndex" json:"ip_address"`
	Type        NasType   `gorm:"column:type;size:50;default:mikrotik" json:"type"`
	Description string    `gorm:"column:description;size:255" json:"description"`
	Secret      string    `gorm:"column:secret;size:100;not null" json:"-"`
	HasSecret   bool      `gorm:"-" json:"has_secret"` // Computed field, secret itself stays hidden
	IsActive    bool      `gorm:"column:is_active;default:true" json:"is_active"`
	CreatedAt   time.Time `gorm:"column:created_at" json:"created_at"`
	UpdatedAt   time.Time `gorm:"column:updated_at" json:"updated_at"`
}

func (Nas) TableName() string {
	return "nas_devices"
}
