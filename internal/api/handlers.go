package api

import (
	"encoding/json"
	"math"
	"net/http"
	"strings"

	"github.com/channel-scout/internal/models"
	"github.com/channel-scout/internal/storage"
	"github.com/channel-scout/pkg/ratelimit"
)

const (
	defaultChannelLimit  = 50
	maxChannelLimit      = 500
	searchMessageLimit   = 50
	searchChannelLimit   = 20
	dashboardLogLimit    = 5
	dashboardWordLimit   = 10
	maxWordLimit         = 200
	maxScanLogLimit      = 500
	maxKeywordTextLength = 255
)

func (s *Server) handleHealth(w http.ResponseWriter, r *http.Request) {
	s.writeJSON(w, http.StatusOK, map[string]string{"status": "ok"})
}

// scanStartResponse tells the caller the pass was handed off, not finished
type scanStartResponse struct {
	Status  string `json:"status"`
	Message string `json:"message"`
	Queued  bool   `json:"queued"`
}

// handleScanStart POST /api/scan/start
func (s *Server) handleScanStart(w http.ResponseWriter, r *http.Request) {
	if s.limiter != nil && s.limiter.Has(ratelimit.LimiterScanTrigger) &&
		!s.limiter.Allow(ratelimit.LimiterScanTrigger) {
		s.writeError(w, http.StatusTooManyRequests, "scan triggered too often, try again later")
		return
	}

	queued := s.scans.Request()
	msg := "Scan started"
	if !queued {
		msg = "Scan already pending"
	}
	s.log.Info().Bool("queued", queued).Msg("Scan requested over HTTP")
	s.writeJSON(w, http.StatusAccepted, scanStartResponse{Status: "accepted", Message: msg, Queued: queued})
}

// handleListKeywords GET /api/keywords?status=
func (s *Server) handleListKeywords(w http.ResponseWriter, r *http.Request) {
	var filter storage.KeywordFilter
	if raw := r.URL.Query().Get("status"); raw != "" {
		status := models.KeywordStatus(raw)
		if !status.Valid() {
			s.writeError(w, http.StatusBadRequest, "invalid status")
			return
		}
		filter.Status = &status
	}

	keywords, err := s.repository.ListKeywords(r.Context(), filter)
	if err != nil {
		s.writeStoreError(w, err)
		return
	}
	s.writeJSON(w, http.StatusOK, keywords)
}

type keywordRequest struct {
	Keyword string               `json:"keyword"`
	Status  models.KeywordStatus `json:"status"`
}

// handleCreateKeyword POST /api/keywords
func (s *Server) handleCreateKeyword(w http.ResponseWriter, r *http.Request) {
	var req keywordRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		s.writeError(w, http.StatusBadRequest, "invalid request body")
		return
	}

	text := strings.TrimSpace(req.Keyword)
	if text == "" || len(text) > maxKeywordTextLength {
		s.writeError(w, http.StatusBadRequest, "keyword is required and must be at most 255 bytes")
		return
	}
	if req.Status == "" {
		req.Status = models.KeywordStatusActive
	}
	if !req.Status.Valid() {
		s.writeError(w, http.StatusBadRequest, "invalid status")
		return
	}

	kw := &models.Keyword{Text: text, Status: req.Status}
	if err := s.repository.CreateKeyword(r.Context(), kw); err != nil {
		s.writeStoreError(w, err)
		return
	}

	s.log.Info().Uint("keyword_id", kw.ID).Str("keyword", kw.Text).Msg("Keyword created")
	s.writeJSON(w, http.StatusCreated, kw)
}

// handleUpdateKeyword PATCH /api/keywords/{id}
func (s *Server) handleUpdateKeyword(w http.ResponseWriter, r *http.Request) {
	id, ok := pathID(r)
	if !ok {
		s.writeError(w, http.StatusBadRequest, "invalid keyword id")
		return
	}

	var req keywordRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		s.writeError(w, http.StatusBadRequest, "invalid request body")
		return
	}
	if !req.Status.Valid() {
		s.writeError(w, http.StatusBadRequest, "status must be active or inactive")
		return
	}

	if err := s.repository.UpdateKeywordStatus(r.Context(), id, req.Status); err != nil {
		s.writeStoreError(w, err)
		return
	}
	kw, err := s.repository.GetKeywordByID(r.Context(), id)
	if err != nil {
		s.writeStoreError(w, err)
		return
	}
	s.writeJSON(w, http.StatusOK, kw)
}

// handleDeleteKeyword DELETE /api/keywords/{id}
func (s *Server) handleDeleteKeyword(w http.ResponseWriter, r *http.Request) {
	id, ok := pathID(r)
	if !ok {
		s.writeError(w, http.StatusBadRequest, "invalid keyword id")
		return
	}
	if err := s.repository.DeleteKeyword(r.Context(), id); err != nil {
		s.writeStoreError(w, err)
		return
	}
	s.log.Info().Uint("keyword_id", id).Msg("Keyword deleted")
	w.WriteHeader(http.StatusNoContent)
}

// handleListChannels GET /api/channels?keyword_id=&q=&has_phone=&has_location=&limit=&offset=
func (s *Server) handleListChannels(w http.ResponseWriter, r *http.Request) {
	keywordID, err := queryUint(r, "keyword_id")
	if err != nil {
		s.writeError(w, http.StatusBadRequest, err.Error())
		return
	}
	limit, err := queryLimit(r, defaultChannelLimit, maxChannelLimit)
	if err != nil {
		s.writeError(w, http.StatusBadRequest, err.Error())
		return
	}
	offset, err := queryInt(r, "offset", 0, math.MaxInt32)
	if err != nil {
		s.writeError(w, http.StatusBadRequest, err.Error())
		return
	}

	channels, err := s.repository.ListChannels(r.Context(), storage.ChannelFilter{
		KeywordID:   keywordID,
		Query:       strings.TrimSpace(r.URL.Query().Get("q")),
		HasPhone:    queryBool(r, "has_phone"),
		HasLocation: queryBool(r, "has_location"),
		Limit:       limit,
		Offset:      offset,
	})
	if err != nil {
		s.writeStoreError(w, err)
		return
	}
	s.writeJSON(w, http.StatusOK, channels)
}

type searchResponse struct {
	Query    string            `json:"query"`
	Messages []*models.Message `json:"messages"`
	Channels []*models.Channel `json:"channels"`
}

// handleSearch GET /api/search?q=
func (s *Server) handleSearch(w http.ResponseWriter, r *http.Request) {
	q := strings.TrimSpace(r.URL.Query().Get("q"))
	if q == "" {
		s.writeError(w, http.StatusBadRequest, "q is required")
		return
	}

	messages, err := s.repository.SearchMessages(r.Context(), q, searchMessageLimit)
	if err != nil {
		s.writeStoreError(w, err)
		return
	}
	channels, err := s.repository.ListChannels(r.Context(), storage.ChannelFilter{Query: q, Limit: searchChannelLimit})
	if err != nil {
		s.writeStoreError(w, err)
		return
	}
	s.writeJSON(w, http.StatusOK, searchResponse{Query: q, Messages: messages, Channels: channels})
}

type statsResponse struct {
	*storage.Stats
	RecentLogs []*models.ScanLog       `json:"recent_logs"`
	TopWords   []*models.WordFrequency `json:"top_words"`
}

// handleStats GET /api/stats
func (s *Server) handleStats(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()

	stats, err := s.repository.Stats(ctx)
	if err != nil {
		s.writeStoreError(w, err)
		return
	}
	logs, err := s.repository.ListScanLogs(ctx, storage.ScanLogFilter{Limit: dashboardLogLimit})
	if err != nil {
		s.writeStoreError(w, err)
		return
	}
	words, err := s.repository.TopWords(ctx, storage.WordFilter{Limit: dashboardWordLimit})
	if err != nil {
		s.writeStoreError(w, err)
		return
	}

	s.writeJSON(w, http.StatusOK, statsResponse{Stats: stats, RecentLogs: logs, TopWords: words})
}

// handleWordFrequency GET /api/stats/word-frequency?keyword_id=&limit=
func (s *Server) handleWordFrequency(w http.ResponseWriter, r *http.Request) {
	filter := storage.DefaultWordFilter()

	keywordID, err := queryUint(r, "keyword_id")
	if err != nil {
		s.writeError(w, http.StatusBadRequest, err.Error())
		return
	}
	filter.KeywordID = keywordID
	if filter.Limit, err = queryLimit(r, filter.Limit, maxWordLimit); err != nil {
		s.writeError(w, http.StatusBadRequest, err.Error())
		return
	}

	words, err := s.repository.TopWords(r.Context(), filter)
	if err != nil {
		s.writeStoreError(w, err)
		return
	}
	s.writeJSON(w, http.StatusOK, words)
}

// handleListLogs GET /api/logs?keyword_id=&status=&limit=
func (s *Server) handleListLogs(w http.ResponseWriter, r *http.Request) {
	filter := storage.DefaultScanLogFilter()

	keywordID, err := queryUint(r, "keyword_id")
	if err != nil {
		s.writeError(w, http.StatusBadRequest, err.Error())
		return
	}
	filter.KeywordID = keywordID
	if raw := r.URL.Query().Get("status"); raw != "" {
		status := models.ScanStatus(raw)
		if status != models.ScanStatusSuccess && status != models.ScanStatusError {
			s.writeError(w, http.StatusBadRequest, "invalid status")
			return
		}
		filter.Status = &status
	}
	if filter.Limit, err = queryLimit(r, filter.Limit, maxScanLogLimit); err != nil {
		s.writeError(w, http.StatusBadRequest, err.Error())
		return
	}

	logs, err := s.repository.ListScanLogs(r.Context(), filter)
	if err != nil {
		s.writeStoreError(w, err)
		return
	}
	s.writeJSON(w, http.StatusOK, logs)
}
