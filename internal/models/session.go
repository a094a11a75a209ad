package models

import (
	"time"
)

// Session is the live state of one PPP/hotspot session, keyed by the NAS
// supplied Acct-Session-Id. StopTime is null while the session is active.
// Octet counters hold the 64-bit logical totals reconstructed from the
// 32-bit octet and gigaword attributes.
type Session struct {
	ID             uint       `gorm:"column:id;primaryKey" json:"id"`
	SessionID      string     `gorm:"column:session_id;size:64;not null;uniqueIndex" json:"session_id"`
	Username       string     `gorm:"column:username;size:64;not null;index" json:"username"`
	NasIPAddress   string     `gorm:"column:nas_ip_address;size:50;index" json:"nas_ip_address"`
	FramedIP       string     `gorm:"column:framed_ip;size:50" json:"framed_ip"`
	MACAddress     string     `gorm:"column:mac_address;size:50" json:"mac_address"`
	StartTime      time.Time  `gorm:"column:start_time;index" json:"start_time"`
	UpdateTime     *time.Time `gorm:"column:update_time" json:"update_time"`
	StopTime       *time.Time `gorm:"column:stop_time;index" json:"stop_time"`
	SessionTime    int64      `gorm:"column:session_time;default:0" json:"session_time"`
	InputOctets    int64      `gorm:"column:input_octets;default:0" json:"input_octets"`
	OutputOctets   int64      `gorm:"column:output_octets;default:0" json:"output_octets"`
	TerminateCause string     `gorm:"column:terminate_cause;size:32" json:"terminate_cause"`
}

func (Session) TableName() string {
	return "sessions"
}

// IsActive reports whether the session has not been stopped
func (s *Session) IsActive() bool {
	return s.StopTime == nil
}
