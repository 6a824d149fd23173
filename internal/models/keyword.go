package models

import (
	"time"
)

// KeywordStatus represents whether a keyword takes part in scan passes
type KeywordStatus string

const (
	KeywordStatusActive   KeywordStatus = "active"
	KeywordStatusInactive KeywordStatus = "inactive"
)

// Valid reports whether s is a known keyword status
func (s KeywordStatus) Valid() bool {
	return s == KeywordStatusActive || s == KeywordStatusInactive
}

// Keyword is an operator-defined search term that drives channel discovery
type Keyword struct {
	ID        uint          `gorm:"primaryKey" json:"id"`
	Text      string        `gorm:"column:keyword;uniqueIndex;not null" json:"keyword"`
	Status    KeywordStatus `gorm:"index;not null;default:'active'" json:"status"`
	CreatedAt time.Time     `gorm:"autoCreateTime" json:"created_at"`
}

// IsActive returns true if the keyword should be scanned
func (k *Keyword) IsActive() bool {
	return k.Status == KeywordStatusActive
}
