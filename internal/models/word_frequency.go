package models

import "time"

// WordFrequency counts how often a word appeared in messages scanned for a keyword
type WordFrequency struct {
	ID        uint      `gorm:"primaryKey" json:"id"`
	KeywordID uint      `gorm:"not null;uniqueIndex:idx_word_frequencies_keyword_word,priority:1" json:"keyword_id"`
	Word      string    `gorm:"not null;index;uniqueIndex:idx_word_frequencies_keyword_word,priority:2" json:"word"`
	Count     int64     `gorm:"not null" json:"count"`
	UpdatedAt time.Time `json:"updated_at"`
}
