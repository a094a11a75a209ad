package models

import (
	"time"
)

// AcctRecord is one row of the append-only accounting log. Every
// Accounting-Request produces exactly one row regardless of status type;
// rows are never updated in place.
type AcctRecord struct {
	ID             uint      `gorm:"column:id;primaryKey" json:"id"`
	SessionID      string    `gorm:"column:session_id;size:64;not null;index" json:"session_id"`
	Username       string    `gorm:"column:username;size:64;not null;index" json:"username"`
	StatusType     string    `gorm:"column:status_type;size:20;not null" json:"status_type"`
	NasIPAddress   string    `gorm:"column:nas_ip_address;size:50" json:"nas_ip_address"`
	FramedIP       string    `gorm:"column:framed_ip;size:50" json:"framed_ip"`
	MACAddress     string    `gorm:"column:mac_address;size:50" json:"mac_address"`
	SessionTime    int64     `gorm:"column:session_time;default:0" json:"session_time"`
	InputOctets    int64     `gorm:"column:input_octets;default:0" json:"input_octets"`
	OutputOctets   int64     `gorm:"column:output_octets;default:0" json:"output_octets"`
	TerminateCause string    `gorm:"column:terminate_cause;size:32" json:"terminate_cause"`
	Timestamp      time.Time `gorm:"column:timestamp;autoCreateTime;index" json:"timestamp"`
}

func (AcctRecord) TableName() string {
	return "acct_log"
}

// AuthLog is one row of the append-only authentication log. Reject reasons
// are recorded here and never leaked onto the wire.
type AuthLog struct {
	ID               uint      `gorm:"column:id;primaryKey" json:"id"`
	Username         string    `gorm:"column:username;size:64;not null;index" json:"username"`
	Reply            string    `gorm:"column:reply;size:32" json:"reply"`
	Method           string    `gorm:"column:method;size:16" json:"method"`
	Reason           string    `gorm:"column:reason;size:100" json:"reason"`
	CallingStationID string    `gorm:"column:calling_station_id;size:50" json:"calling_station_id"`
	NasIPAddress     string    `gorm:"column:nas_ip_address;size:50" json:"nas_ip_address"`
	AuthDate         time.Time `gorm:"column:auth_date;autoCreateTime;index" json:"auth_date"`
}

func (AuthLog) TableName() string {
	return "auth_log"
}
