package sqlite

import (
	"context"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"sort"
	"strings"
	"time"

	"github.com/glebarez/sqlite"
	"gorm.io/gorm"
	"gorm.io/gorm/clause"
	"gorm.io/gorm/logger"

	"github.com/channel-scout/internal/models"
	"github.com/channel-scout/internal/storage"
)

// Repository implements storage.Repository using SQLite
type Repository struct {
	db *gorm.DB
}

// New creates a new SQLite repository
func New(dsn string) (*Repository, error) {
	// Ensure directory exists
	if dsn != ":memory:" && !strings.HasPrefix(dsn, "file:") {
		dir := filepath.Dir(dsn)
		if dir != "." && dir != "" {
			if err := os.MkdirAll(dir, 0755); err != nil {
				return nil, fmt.Errorf("failed to create data directory: %w", err)
			}
		}
	}

	db, err := gorm.Open(sqlite.Open(dsn), &gorm.Config{
		Logger:         logger.Default.LogMode(logger.Silent),
		TranslateError: true,
	})
	if err != nil {
		return nil, fmt.Errorf("failed to open database: %w", err)
	}

	// SQLite serialises writers; a single connection keeps scans and API
	// reads from tripping over "database is locked".
	sqlDB, err := db.DB()
	if err != nil {
		return nil, fmt.Errorf("failed to get database handle: %w", err)
	}
	sqlDB.SetMaxOpenConns(1)

	return &Repository{db: db}, nil
}

// Migrate runs database migrations
func (r *Repository) Migrate() error {
	return r.db.AutoMigrate(
		&models.Keyword{},
		&models.Channel{},
		&models.Message{},
		&models.WordFrequency{},
		&models.ScanLog{},
	)
}

// Close closes the database connection
func (r *Repository) Close() error {
	sqlDB, err := r.db.DB()
	if err != nil {
		return err
	}
	return sqlDB.Close()
}

func translate(err error) error {
	switch {
	case err == nil:
		return nil
	case errors.Is(err, gorm.ErrRecordNotFound):
		return storage.ErrNotFound
	default:
		return err
	}
}

var likeEscaper = strings.NewReplacer(`\`, `\\`, `%`, `\%`, `_`, `\_`)

// containsPattern builds a LIKE pattern matching s literally anywhere
func containsPattern(s string) string {
	return "%" + likeEscaper.Replace(s) + "%"
}

func isUniqueViolation(err error) bool {
	return errors.Is(err, gorm.ErrDuplicatedKey) ||
		strings.Contains(err.Error(), "UNIQUE constraint failed")
}

// Keyword operations

func (r *Repository) CreateKeyword(ctx context.Context, keyword *models.Keyword) error {
	if keyword.Status == "" {
		keyword.Status = models.KeywordStatusActive
	}
	if err := r.db.WithContext(ctx).Create(keyword).Error; err != nil {
		if isUniqueViolation(err) {
			return storage.ErrDuplicateKeyword
		}
		return err
	}
	return nil
}

func (r *Repository) GetKeywordByID(ctx context.Context, id uint) (*models.Keyword, error) {
	var keyword models.Keyword
	if err := r.db.WithContext(ctx).First(&keyword, id).Error; err != nil {
		return nil, translate(err)
	}
	return &keyword, nil
}

func (r *Repository) ListKeywords(ctx context.Context, filter storage.KeywordFilter) ([]*models.Keyword, error) {
	var keywords []*models.Keyword
	query := r.db.WithContext(ctx).Model(&models.Keyword{})

	if filter.Status != nil {
		query = query.Where("status = ?", *filter.Status)
	}
	if filter.Limit > 0 {
		query = query.Limit(filter.Limit)
	}

	if err := query.Order("id ASC").Find(&keywords).Error; err != nil {
		return nil, err
	}
	return keywords, nil
}

func (r *Repository) UpdateKeywordStatus(ctx context.Context, id uint, status models.KeywordStatus) error {
	res := r.db.WithContext(ctx).Model(&models.Keyword{}).Where("id = ?", id).Update("status", status)
	if res.Error != nil {
		return res.Error
	}
	if res.RowsAffected == 0 {
		return storage.ErrNotFound
	}
	return nil
}

// DeleteKeyword removes a keyword with its channels, messages and word
// counts. Scan logs are kept as an audit trail with keyword_id cleared.
func (r *Repository) DeleteKeyword(ctx context.Context, id uint) error {
	return r.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		res := tx.Delete(&models.Keyword{}, id)
		if res.Error != nil {
			return res.Error
		}
		if res.RowsAffected == 0 {
			return storage.ErrNotFound
		}

		channelIDs := tx.Model(&models.Channel{}).Select("id").Where("keyword_id = ?", id)
		if err := tx.Where("channel_id IN (?)", channelIDs).Delete(&models.Message{}).Error; err != nil {
			return err
		}
		if err := tx.Where("keyword_id = ?", id).Delete(&models.Channel{}).Error; err != nil {
			return err
		}
		if err := tx.Where("keyword_id = ?", id).Delete(&models.WordFrequency{}).Error; err != nil {
			return err
		}
		return tx.Model(&models.ScanLog{}).Where("keyword_id = ?", id).Update("keyword_id", nil).Error
	})
}

// Channel operations

func (r *Repository) CreateChannel(ctx context.Context, channel *models.Channel) error {
	return r.db.WithContext(ctx).Create(channel).Error
}

func (r *Repository) GetChannelByPlatformID(ctx context.Context, platformID int64) (*models.Channel, error) {
	var channel models.Channel
	if err := r.db.WithContext(ctx).Where("telegram_id = ?", platformID).First(&channel).Error; err != nil {
		return nil, translate(err)
	}
	return &channel, nil
}

func (r *Repository) UpdateChannel(ctx context.Context, channel *models.Channel) error {
	return r.db.WithContext(ctx).Save(channel).Error
}

func (r *Repository) ListChannels(ctx context.Context, filter storage.ChannelFilter) ([]*models.Channel, error) {
	var channels []*models.Channel
	query := r.db.WithContext(ctx).Model(&models.Channel{})

	if filter.KeywordID != nil {
		query = query.Where("keyword_id = ?", *filter.KeywordID)
	}
	if filter.Query != "" {
		like := containsPattern(filter.Query)
		query = query.Where(`channel_name LIKE ? ESCAPE '\' OR description LIKE ? ESCAPE '\'`, like, like)
	}
	if filter.HasPhone {
		query = query.Where("phone_number IS NOT NULL")
	}
	if filter.HasLocation {
		query = query.Where("location IS NOT NULL")
	}

	// Pagination
	if filter.Limit > 0 {
		query = query.Limit(filter.Limit)
	}
	if filter.Offset > 0 {
		query = query.Offset(filter.Offset)
	}

	if err := query.Order("id ASC").Find(&channels).Error; err != nil {
		return nil, err
	}
	return channels, nil
}

// Message operations

func (r *Repository) InsertMessage(ctx context.Context, msg *models.Message) (bool, error) {
	res := r.db.WithContext(ctx).
		Clauses(clause.OnConflict{
			Columns:   []clause.Column{{Name: "channel_id"}, {Name: "telegram_id"}},
			DoNothing: true,
		}).
		Create(msg)
	if res.Error != nil {
		return false, res.Error
	}
	return res.RowsAffected > 0, nil
}

func (r *Repository) SearchMessages(ctx context.Context, query string, limit int) ([]*models.Message, error) {
	var messages []*models.Message
	q := r.db.WithContext(ctx).
		Where(`text LIKE ? ESCAPE '\'`, containsPattern(query)).
		Order("date DESC")
	if limit > 0 {
		q = q.Limit(limit)
	}
	if err := q.Find(&messages).Error; err != nil {
		return nil, err
	}
	return messages, nil
}

// Word frequency operations

func (r *Repository) IncrementWordCounts(ctx context.Context, keywordID uint, counts map[string]int, at time.Time) error {
	if len(counts) == 0 {
		return nil
	}

	// Stable order keeps lock acquisition and test output deterministic
	words := make([]string, 0, len(counts))
	for w := range counts {
		words = append(words, w)
	}
	sort.Strings(words)

	return r.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		for _, word := range words {
			row := &models.WordFrequency{
				KeywordID: keywordID,
				Word:      word,
				Count:     int64(counts[word]),
				UpdatedAt: at,
			}
			err := tx.Clauses(clause.OnConflict{
				Columns: []clause.Column{{Name: "keyword_id"}, {Name: "word"}},
				DoUpdates: clause.Assignments(map[string]interface{}{
					"count":      gorm.Expr("word_frequencies.count + excluded.count"),
					"updated_at": at,
				}),
			}).Create(row).Error
			if err != nil {
				return fmt.Errorf("increment %q: %w", word, err)
			}
		}
		return nil
	})
}

func (r *Repository) GetWordFrequency(ctx context.Context, keywordID uint, word string) (*models.WordFrequency, error) {
	var wf models.WordFrequency
	if err := r.db.WithContext(ctx).
		Where("keyword_id = ? AND word = ?", keywordID, word).
		First(&wf).Error; err != nil {
		return nil, translate(err)
	}
	return &wf, nil
}

func (r *Repository) TopWords(ctx context.Context, filter storage.WordFilter) ([]*models.WordFrequency, error) {
	var words []*models.WordFrequency
	query := r.db.WithContext(ctx).Model(&models.WordFrequency{})

	if filter.KeywordID != nil {
		query = query.Where("keyword_id = ?", *filter.KeywordID)
	}
	if filter.Limit > 0 {
		query = query.Limit(filter.Limit)
	}

	if err := query.Order("count DESC").Order("word ASC").Find(&words).Error; err != nil {
		return nil, err
	}
	return words, nil
}

// Scan log operations

func (r *Repository) CreateScanLog(ctx context.Context, log *models.ScanLog) error {
	return r.db.WithContext(ctx).Create(log).Error
}

func (r *Repository) ListScanLogs(ctx context.Context, filter storage.ScanLogFilter) ([]*models.ScanLog, error) {
	var logs []*models.ScanLog
	query := r.db.WithContext(ctx).Model(&models.ScanLog{})

	if filter.KeywordID != nil {
		query = query.Where("keyword_id = ?", *filter.KeywordID)
	}
	if filter.Status != nil {
		query = query.Where("status = ?", *filter.Status)
	}
	if filter.Limit > 0 {
		query = query.Limit(filter.Limit)
	}

	if err := query.Order("created_at DESC").Order("id DESC").Find(&logs).Error; err != nil {
		return nil, err
	}
	return logs, nil
}

// Stats returns dashboard totals
func (r *Repository) Stats(ctx context.Context) (*storage.Stats, error) {
	var stats storage.Stats
	db := r.db.WithContext(ctx)

	counts := []struct {
		dest  *int64
		query *gorm.DB
	}{
		{&stats.TotalKeywords, db.Model(&models.Keyword{})},
		{&stats.TotalChannels, db.Model(&models.Channel{})},
		{&stats.ChannelsWithPhone, db.Model(&models.Channel{}).Where("phone_number IS NOT NULL")},
		{&stats.ChannelsWithLocation, db.Model(&models.Channel{}).Where("location IS NOT NULL")},
		{&stats.TotalMessages, db.Model(&models.Message{})},
	}
	for _, c := range counts {
		if err := c.query.Count(c.dest).Error; err != nil {
			return nil, err
		}
	}
	return &stats, nil
}

// Ensure Repository implements storage.Repository
var _ storage.Repository = (*Repository)(nil)
