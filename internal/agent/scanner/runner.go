package scanner

import (
	"context"
	"fmt"
	"time"

	"github.com/channel-scout/internal/metrics"
	"github.com/channel-scout/internal/models"
	"github.com/channel-scout/internal/storage"
	"github.com/channel-scout/pkg/logger"
)

// Runner executes scan passes over all active keywords
type Runner struct {
	repository storage.Repository
	agent      *Agent
	metrics    *metrics.Collector
	log        *logger.Logger
}

// NewRunner creates a new scan pass runner
func NewRunner(repository storage.Repository, agent *Agent, log *logger.Logger) *Runner {
	return &Runner{
		repository: repository,
		agent:      agent,
		log:        log.WithComponent("runner"),
	}
}

// SetMetrics enables pass metrics
func (r *Runner) SetMetrics(m *metrics.Collector) {
	r.metrics = m
}

// PassResult contains the results of a scan pass
type PassResult struct {
	KeywordsScanned int
	Succeeded       int
	Failed          int
	NewChannels     int
	Results         []*ScanResult
	Duration        time.Duration
}

// RunPass scans every active keyword one at a time, in store order.
// A failed keyword is recorded in its scan log and the pass moves on.
func (r *Runner) RunPass(ctx context.Context) (*PassResult, error) {
	startTime := time.Now()

	status := models.KeywordStatusActive
	keywords, err := r.repository.ListKeywords(ctx, storage.KeywordFilter{Status: &status})
	if err != nil {
		return nil, fmt.Errorf("failed to load active keywords: %w", err)
	}

	r.log.Info().Int("keywords", len(keywords)).Msg("Starting scan pass")

	result := &PassResult{Results: make([]*ScanResult, 0, len(keywords))}
	for _, kw := range keywords {
		res := r.agent.ScanKeyword(ctx, kw)
		result.record(res)

		if res.Err != nil && IsStoreError(res.Err) {
			r.log.Error().Err(res.Err).Uint("keyword_id", kw.ID).Msg("Store failure during keyword scan")
		}
	}

	result.Duration = time.Since(startTime)
	r.metrics.PassFinished(result.Duration)

	r.log.Info().
		Int("keywords_scanned", result.KeywordsScanned).
		Int("succeeded", result.Succeeded).
		Int("failed", result.Failed).
		Int("new_channels", result.NewChannels).
		Dur("duration", result.Duration).
		Msg("Scan pass completed")

	return result, nil
}

// RunKeyword scans a single keyword regardless of its status
func (r *Runner) RunKeyword(ctx context.Context, keywordID uint) (*ScanResult, error) {
	kw, err := r.repository.GetKeywordByID(ctx, keywordID)
	if err != nil {
		return nil, fmt.Errorf("failed to load keyword %d: %w", keywordID, err)
	}
	if !kw.IsActive() {
		r.log.Warn().Uint("keyword_id", kw.ID).Str("keyword", kw.Text).Msg("Scanning inactive keyword on request")
	}
	return r.agent.ScanKeyword(ctx, kw), nil
}

func (p *PassResult) record(res *ScanResult) {
	p.KeywordsScanned++
	p.NewChannels += res.NewChannels
	if res.Status == models.ScanStatusSuccess {
		p.Succeeded++
	} else {
		p.Failed++
	}
	p.Results = append(p.Results, res)
}
