package storage

import (
	"context"
	"errors"
	"time"

	"github.com/channel-scout/internal/models"
)

// Domain-level storage errors
var (
	ErrNotFound         = errors.New("record not found")
	ErrDuplicateKeyword = errors.New("keyword already exists")
)

// Repository defines the interface for data persistence
type Repository interface {
	// Keyword operations
	CreateKeyword(ctx context.Context, keyword *models.Keyword) error
	GetKeywordByID(ctx context.Context, id uint) (*models.Keyword, error)
	ListKeywords(ctx context.Context, filter KeywordFilter) ([]*models.Keyword, error)
	UpdateKeywordStatus(ctx context.Context, id uint, status models.KeywordStatus) error
	DeleteKeyword(ctx context.Context, id uint) error

	// Channel operations
	CreateChannel(ctx context.Context, channel *models.Channel) error
	GetChannelByPlatformID(ctx context.Context, platformID int64) (*models.Channel, error)
	UpdateChannel(ctx context.Context, channel *models.Channel) error
	ListChannels(ctx context.Context, filter ChannelFilter) ([]*models.Channel, error)

	// Message operations
	// InsertMessage stores msg unless (channel_id, platform_id) already exists.
	// It reports whether a new row was created.
	InsertMessage(ctx context.Context, msg *models.Message) (bool, error)
	SearchMessages(ctx context.Context, query string, limit int) ([]*models.Message, error)

	// Word frequency operations
	// IncrementWordCounts adds counts[word] to each (keywordID, word) row in
	// one transaction, creating missing rows.
	IncrementWordCounts(ctx context.Context, keywordID uint, counts map[string]int, at time.Time) error
	GetWordFrequency(ctx context.Context, keywordID uint, word string) (*models.WordFrequency, error)
	TopWords(ctx context.Context, filter WordFilter) ([]*models.WordFrequency, error)

	// Scan log operations
	CreateScanLog(ctx context.Context, log *models.ScanLog) error
	ListScanLogs(ctx context.Context, filter ScanLogFilter) ([]*models.ScanLog, error)

	// Dashboard
	Stats(ctx context.Context) (*Stats, error)

	// Maintenance
	Close() error
	Migrate() error
}

// KeywordFilter defines filtering options for keywords
type KeywordFilter struct {
	Status *models.KeywordStatus
	Limit  int
}

// ChannelFilter defines filtering options for channels
type ChannelFilter struct {
	KeywordID   *uint
	Query       string // substring of name or description
	HasPhone    bool
	HasLocation bool
	Limit       int
	Offset      int
}

// WordFilter defines filtering options for word frequencies
type WordFilter struct {
	KeywordID *uint
	Limit     int
}

// ScanLogFilter defines filtering options for scan logs
type ScanLogFilter struct {
	KeywordID *uint
	Status    *models.ScanStatus
	Limit     int
}

// Stats holds dashboard totals
type Stats struct {
	TotalKeywords        int64 `json:"total_keywords"`
	TotalChannels        int64 `json:"total_channels"`
	ChannelsWithPhone    int64 `json:"channels_with_phone"`
	ChannelsWithLocation int64 `json:"channels_with_location"`
	TotalMessages        int64 `json:"total_messages"`
}

// DefaultWordFilter returns a filter with sensible defaults
func DefaultWordFilter() WordFilter {
	return WordFilter{
		Limit: 20,
	}
}

// DefaultScanLogFilter returns a filter with sensible defaults
func DefaultScanLogFilter() ScanLogFilter {
	return ScanLogFilter{
		Limit: 50,
	}
}
