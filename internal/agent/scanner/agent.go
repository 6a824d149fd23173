package scanner

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/channel-scout/internal/frequency"
	"github.com/channel-scout/internal/metrics"
	"github.com/channel-scout/internal/models"
	"github.com/channel-scout/internal/platform"
	"github.com/channel-scout/internal/registry"
	"github.com/channel-scout/internal/storage"
	"github.com/channel-scout/pkg/logger"
)

// Default result caps for one keyword scan
const (
	DefaultSearchLimit  = 50
	DefaultMessageLimit = 50
)

// ChannelOutcome is the result of processing one search result
type ChannelOutcome int

const (
	// OutcomeOK means the channel and its messages were processed
	OutcomeOK ChannelOutcome = iota
	// OutcomeChannelFetchFailed means the channel was upserted but its
	// messages could not be fetched; the scan moves on
	OutcomeChannelFetchFailed
)

func (o ChannelOutcome) String() string {
	switch o {
	case OutcomeOK:
		return "ok"
	case OutcomeChannelFetchFailed:
		return "channel_fetch_failed"
	default:
		return "unknown"
	}
}

// Options tunes the per-keyword caps
type Options struct {
	SearchLimit  int
	MessageLimit int
}

// Agent drives one keyword's scan: search, channel upsert, message
// backfill, word counts and the terminal scan log.
type Agent struct {
	connector    platform.Connector
	repository   storage.Repository
	registry     *registry.Registry
	aggregator   *frequency.Aggregator
	metrics      *metrics.Collector
	searchLimit  int
	messageLimit int
	log          *logger.Logger
}

// NewAgent creates a new scan agent
func NewAgent(
	connector platform.Connector,
	repository storage.Repository,
	opts Options,
	log *logger.Logger,
) *Agent {
	if opts.SearchLimit <= 0 {
		opts.SearchLimit = DefaultSearchLimit
	}
	if opts.MessageLimit <= 0 {
		opts.MessageLimit = DefaultMessageLimit
	}
	return &Agent{
		connector:    connector,
		repository:   repository,
		registry:     registry.New(repository),
		aggregator:   frequency.NewAggregator(repository),
		searchLimit:  opts.SearchLimit,
		messageLimit: opts.MessageLimit,
		log:          log.WithComponent("scanner"),
	}
}

// SetMetrics enables scan metrics
func (a *Agent) SetMetrics(m *metrics.Collector) {
	a.metrics = m
}

// ScanResult contains the results of one keyword scan
type ScanResult struct {
	KeywordID      uint
	Status         models.ScanStatus
	NewChannels    int
	ChannelsSeen   int
	MessagesStored int
	FailedChannels int
	Err            error
	Duration       time.Duration
}

// ScanKeyword runs a full scan for keyword and writes exactly one ScanLog.
// Failures are reported through the result and the log, never returned.
func (a *Agent) ScanKeyword(ctx context.Context, keyword *models.Keyword) *ScanResult {
	startTime := time.Now()
	log := a.log.WithKeyword(keyword.ID, keyword.Text)
	result := &ScanResult{KeywordID: keyword.ID}

	log.Info().Msg("Starting keyword scan")

	err := a.scan(ctx, keyword, result, log)
	result.Duration = time.Since(startTime)

	entry := &models.ScanLog{KeywordID: &keyword.ID}
	if err != nil {
		result.Status = models.ScanStatusError
		result.Err = err
		entry.Status = models.ScanStatusError
		entry.Message = err.Error()
		log.Error().Err(err).Dur("duration", result.Duration).Msg("Keyword scan failed")
	} else {
		result.Status = models.ScanStatusSuccess
		entry.Status = models.ScanStatusSuccess
		entry.Message = fmt.Sprintf("Found %d new channels", result.NewChannels)
		log.Info().
			Int("new_channels", result.NewChannels).
			Int("channels_seen", result.ChannelsSeen).
			Int("messages_stored", result.MessagesStored).
			Int("failed_channels", result.FailedChannels).
			Dur("duration", result.Duration).
			Msg("Keyword scan completed")
	}

	// The audit record must land even if the caller's context is done
	if logErr := a.repository.CreateScanLog(context.WithoutCancel(ctx), entry); logErr != nil {
		log.Error().Err(logErr).Msg("Failed to write scan log")
	}

	a.metrics.ScanFinished(string(result.Status), result.NewChannels, result.MessagesStored, result.FailedChannels)
	return result
}

// scan holds the session for the whole invocation and releases it on every
// exit path, panics included.
func (a *Agent) scan(ctx context.Context, keyword *models.Keyword, result *ScanResult, log *logger.Logger) (err error) {
	defer func() {
		if r := recover(); r != nil {
			err = fmt.Errorf("scan aborted: %v", r)
		}
	}()

	session, err := a.connector.Connect(ctx)
	if err != nil {
		return fmt.Errorf("failed to connect to platform: %w", err)
	}
	defer func() {
		if closeErr := session.Close(); closeErr != nil {
			log.Warn().Err(closeErr).Msg("Failed to close platform session")
		}
	}()

	authorized, err := session.IsAuthorized(ctx)
	if err != nil {
		return fmt.Errorf("auth check failed: %w", err)
	}
	if !authorized {
		return ErrNotAuthorized
	}

	chats, err := session.Search(ctx, keyword.Text, a.searchLimit)
	if err != nil {
		return &SearchError{Query: keyword.Text, Err: err}
	}

	log.Debug().Int("results", len(chats)).Msg("Search returned results")

	for _, chat := range chats {
		if !chat.IsChannel() {
			continue
		}
		result.ChannelsSeen++

		outcome, err := a.processChannel(ctx, session, keyword, chat, result, log.WithChannel(chat.ID))
		if err != nil {
			return err
		}
		if outcome == OutcomeChannelFetchFailed {
			result.FailedChannels++
		}
	}

	return nil
}

// processChannel upserts one channel and backfills its recent messages.
// Message fetch failures are contained; any returned error ends the scan.
func (a *Agent) processChannel(
	ctx context.Context,
	session platform.Session,
	keyword *models.Keyword,
	chat platform.Chat,
	result *ScanResult,
	log *logger.Logger,
) (ChannelOutcome, error) {
	profile, err := session.ResolveEntity(ctx, chat)
	if err != nil {
		return OutcomeOK, fmt.Errorf("failed to resolve channel %d: %w", chat.ID, err)
	}

	channel, isNew, err := a.registry.Upsert(ctx, keyword.ID, registry.ChannelInfo{
		PlatformID:       chat.ID,
		Title:            chat.Title,
		Username:         chat.Username,
		Description:      profile.About,
		SubscribersCount: platform.SubscriberCount(chat.ParticipantsCount, profile.ParticipantsCount),
	})
	if err != nil {
		return OutcomeOK, &StoreError{Op: "upsert channel", Err: err}
	}
	if isNew {
		result.NewChannels++
		log.Info().Str("title", channel.Name).Str("url", channel.URL).Msg("Discovered new channel")
	}

	for msg, err := range session.RecentMessages(ctx, chat, a.messageLimit) {
		if err != nil {
			fetchErr := &ChannelFetchError{PlatformID: chat.ID, Err: err}
			log.Warn().Err(fetchErr).Msg("Skipping channel messages")
			return OutcomeChannelFetchFailed, nil
		}
		if msg.Text == "" {
			continue
		}

		created, err := a.repository.InsertMessage(ctx, &models.Message{
			ChannelID:  channel.ID,
			PlatformID: msg.ID,
			Text:       msg.Text,
			Date:       msg.Date,
		})
		if err != nil {
			return OutcomeOK, &StoreError{Op: "insert message", Err: err}
		}
		if created {
			result.MessagesStored++
		}

		if _, err := a.aggregator.RecordOccurrences(ctx, keyword.ID, msg.Text); err != nil {
			return OutcomeOK, &StoreError{Op: "record word frequency", Err: err}
		}
	}

	return OutcomeOK, nil
}

// IsStoreError reports whether err came from the persistence layer
func IsStoreError(err error) bool {
	var storeErr *StoreError
	return errors.As(err, &storeErr)
}
