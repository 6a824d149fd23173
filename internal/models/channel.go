package models

import (
	"time"
)

// Channel is a channel discovered on the messaging platform.
// PlatformID is the platform's stable numeric identity; the first keyword
// that discovered the channel owns it for the rest of its life.
type Channel struct {
	ID               uint      `gorm:"primaryKey" json:"id"`
	KeywordID        uint      `gorm:"index;not null" json:"keyword_id"`
	PlatformID       int64     `gorm:"column:telegram_id;uniqueIndex;not null" json:"telegram_id"`
	Name             string    `gorm:"column:channel_name;not null" json:"channel_name"`
	Username         *string   `gorm:"index" json:"username,omitempty"`
	Description      *string   `json:"description,omitempty"`
	Location         *string   `json:"location,omitempty"`
	PhoneNumber      *string   `json:"phone_number,omitempty"`
	SubscribersCount int       `gorm:"not null" json:"subscribers_count"`
	URL              string    `gorm:"column:channel_url;not null" json:"channel_url"`
	ScannedAt        time.Time `json:"scanned_at"`
	CreatedAt        time.Time `gorm:"autoCreateTime" json:"created_at"`
}

// HasPhone returns true if a phone number was extracted for the channel
func (c *Channel) HasPhone() bool {
	return c.PhoneNumber != nil && *c.PhoneNumber != ""
}

// HasLocation returns true if a city was extracted for the channel
func (c *Channel) HasLocation() bool {
	return c.Location != nil && *c.Location != ""
}

// Message is a single post fetched from a channel for text mining
type Message struct {
	ID         uint      `gorm:"primaryKey" json:"id"`
	ChannelID  uint      `gorm:"not null;uniqueIndex:idx_messages_channel_platform,priority:1" json:"channel_id"`
	PlatformID int64     `gorm:"column:telegram_id;not null;uniqueIndex:idx_messages_channel_platform,priority:2" json:"telegram_id"`
	Text       string    `gorm:"not null" json:"text"`
	Date       time.Time `gorm:"index" json:"date"`
	CreatedAt  time.Time `gorm:"autoCreateTime" json:"created_at"`
}
