package models

import (
	"time"
)

// ScanStatus is the terminal state of a keyword scan
type ScanStatus string

const (
	ScanStatusSuccess ScanStatus = "success"
	ScanStatusError   ScanStatus = "error"
)

// ScanLog is an append-only audit record, one per keyword scan
type ScanLog struct {
	ID        uint       `gorm:"primaryKey" json:"id"`
	KeywordID *uint      `gorm:"index" json:"keyword_id"`
	Status    ScanStatus `gorm:"not null" json:"status"`
	Message   string     `json:"message"`
	CreatedAt time.Time  `gorm:"autoCreateTime;index" json:"created_at"`
}
