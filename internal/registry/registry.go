// Package registry maps platform channel identities onto locally owned
// channel records.
package registry

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/channel-scout/internal/extract"
	"github.com/channel-scout/internal/models"
	"github.com/channel-scout/internal/storage"
)

const publicLinkBase = "https://t.me/"

// ChannelInfo is what the platform tells us about a channel during a scan
type ChannelInfo struct {
	PlatformID       int64
	Title            string
	Username         string
	Description      string
	SubscribersCount int
}

// Registry deduplicates discovered channels by platform identity
type Registry struct {
	repository storage.Repository
	now        func() time.Time
}

// New creates a new channel registry
func New(repository storage.Repository) *Registry {
	return &Registry{
		repository: repository,
		now:        time.Now,
	}
}

// Upsert creates the channel if its platform ID is unknown, owned by
// keywordID, or refreshes its mutable fields otherwise. The returned
// channel always carries a store-assigned ID. isNew is true only when a
// record was created.
func (r *Registry) Upsert(ctx context.Context, keywordID uint, info ChannelInfo) (*models.Channel, bool, error) {
	text := info.Title + "\n" + info.Description
	location := optional(extract.Location(text))
	phone := optional(extract.Phone(text))
	now := r.now().UTC()

	existing, err := r.repository.GetChannelByPlatformID(ctx, info.PlatformID)
	if err != nil && !errors.Is(err, storage.ErrNotFound) {
		return nil, false, fmt.Errorf("failed to look up channel %d: %w", info.PlatformID, err)
	}

	if existing != nil {
		existing.Description = nonEmpty(info.Description)
		existing.Location = location
		existing.PhoneNumber = phone
		existing.SubscribersCount = info.SubscribersCount
		existing.ScannedAt = now
		if err := r.repository.UpdateChannel(ctx, existing); err != nil {
			return nil, false, fmt.Errorf("failed to refresh channel %d: %w", info.PlatformID, err)
		}
		return existing, false, nil
	}

	channel := &models.Channel{
		KeywordID:        keywordID,
		PlatformID:       info.PlatformID,
		Name:             info.Title,
		Username:         nonEmpty(info.Username),
		Description:      nonEmpty(info.Description),
		Location:         location,
		PhoneNumber:      phone,
		SubscribersCount: info.SubscribersCount,
		URL:              ChannelURL(info.Username, info.PlatformID),
		ScannedAt:        now,
	}
	if err := r.repository.CreateChannel(ctx, channel); err != nil {
		return nil, false, fmt.Errorf("failed to create channel %d: %w", info.PlatformID, err)
	}
	if channel.ID == 0 {
		return nil, false, fmt.Errorf("channel %d created without an identifier", info.PlatformID)
	}
	return channel, true, nil
}

// ChannelURL returns the public link for a channel with a username, or
// the private-channel link form otherwise.
func ChannelURL(username string, platformID int64) string {
	username = strings.TrimPrefix(strings.TrimSpace(username), "@")
	if username != "" {
		return publicLinkBase + username
	}
	return fmt.Sprintf("%sc/%d/1", publicLinkBase, platformID)
}

func optional(value string, ok bool) *string {
	if !ok {
		return nil
	}
	return &value
}

func nonEmpty(value string) *string {
	if value == "" {
		return nil
	}
	return &value
}
