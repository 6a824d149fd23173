// Package gateway implements platform.Connector against an HTTP/JSON
// bridge in front of the platform's MTProto API.
package gateway

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"iter"
	"net/http"
	"net/url"
	"strconv"
	"strings"
	"time"

	"github.com/channel-scout/internal/config"
	"github.com/channel-scout/internal/platform"
	"github.com/channel-scout/pkg/logger"
	"github.com/channel-scout/pkg/ratelimit"
)

// Largest page the bridge serves for message history
const maxPageSize = 100

// Connector opens gateway sessions
type Connector struct {
	cfg         config.PlatformConfig
	httpClient  *http.Client
	rateLimiter *ratelimit.MultiLimiter
	log         *logger.Logger
}

// NewConnector creates a new gateway connector
func NewConnector(cfg config.PlatformConfig, limiter *ratelimit.MultiLimiter, log *logger.Logger) *Connector {
	return &Connector{
		cfg: cfg,
		httpClient: &http.Client{
			Timeout: cfg.Timeout,
		},
		rateLimiter: limiter,
		log:         log.WithComponent("platform"),
	}
}

// Connect opens a session on the bridge for the configured identity
func (c *Connector) Connect(ctx context.Context) (platform.Session, error) {
	s := &Session{
		baseURL:     strings.TrimRight(c.cfg.BaseURL, "/"),
		cfg:         c.cfg,
		httpClient:  c.httpClient,
		rateLimiter: c.rateLimiter,
		log:         c.log,
	}

	resp, err := s.do(ctx, http.MethodPost, "/v1/session/connect", nil)
	if err != nil {
		return nil, fmt.Errorf("failed to connect: %w", err)
	}
	defer resp.Body.Close()

	if err := checkStatus(resp, "connect"); err != nil {
		return nil, err
	}

	c.log.Debug().Str("session", c.cfg.Session).Msg("Platform session connected")
	return s, nil
}

// Session is one connection to the bridge
type Session struct {
	baseURL     string
	cfg         config.PlatformConfig
	httpClient  *http.Client
	rateLimiter *ratelimit.MultiLimiter
	log         *logger.Logger
	closed      bool
}

// wire types

type sessionStatus struct {
	Authorized bool `json:"authorized"`
}

type chatDTO struct {
	Type              string `json:"type"`
	ID                int64  `json:"id"`
	Title             string `json:"title"`
	Username          string `json:"username"`
	ParticipantsCount *int   `json:"participants_count"`
}

type searchResponse struct {
	Chats []chatDTO `json:"chats"`
}

type entityResponse struct {
	About             string `json:"about"`
	ParticipantsCount *int   `json:"participants_count"`
	Username          string `json:"username"`
	Title             string `json:"title"`
}

type messageDTO struct {
	ID   int64     `json:"id"`
	Text string    `json:"text"`
	Date time.Time `json:"date"`
}

type messagesResponse struct {
	Messages []messageDTO `json:"messages"`
}

// do performs a request with rate limiting, session headers and bounded retry
func (s *Session) do(ctx context.Context, method, path string, body interface{}) (*http.Response, error) {
	var payload []byte
	if body != nil {
		data, err := json.Marshal(body)
		if err != nil {
			return nil, fmt.Errorf("failed to marshal request body: %w", err)
		}
		payload = data
	}

	backoff := s.cfg.RetryBackoff
	var lastErr error
	for attempt := 0; attempt <= s.cfg.MaxRetries; attempt++ {
		if attempt > 0 {
			s.log.Debug().
				Int("attempt", attempt).
				Str("path", path).
				Err(lastErr).
				Msg("Retrying platform request")
			select {
			case <-ctx.Done():
				return nil, ctx.Err()
			case <-time.After(backoff):
			}
			backoff *= 2
		}

		resp, err := s.attempt(ctx, method, path, payload)
		if err != nil {
			lastErr = err
			continue
		}
		if resp.StatusCode >= 500 && attempt < s.cfg.MaxRetries {
			resp.Body.Close()
			lastErr = fmt.Errorf("server error: %s", resp.Status)
			continue
		}
		return resp, nil
	}
	return nil, lastErr
}

func (s *Session) attempt(ctx context.Context, method, path string, payload []byte) (*http.Response, error) {
	// Wait for rate limiter
	if err := s.rateLimiter.Wait(ctx, ratelimit.LimiterPlatform); err != nil {
		return nil, fmt.Errorf("rate limit error: %w", err)
	}

	var reqBody io.Reader
	if payload != nil {
		reqBody = bytes.NewReader(payload)
	}

	req, err := http.NewRequestWithContext(ctx, method, s.baseURL+path, reqBody)
	if err != nil {
		return nil, fmt.Errorf("failed to create request: %w", err)
	}

	req.Header.Set("X-Session", s.cfg.Session)
	req.Header.Set("X-Api-Id", strconv.Itoa(s.cfg.APIID))
	req.Header.Set("X-Api-Hash", s.cfg.APIHash)
	req.Header.Set("Accept", "application/json")
	if payload != nil {
		req.Header.Set("Content-Type", "application/json")
	}

	s.log.Debug().
		Str("method", method).
		Str("path", path).
		Msg("Making platform request")

	resp, err := s.httpClient.Do(req)
	if err != nil {
		return nil, fmt.Errorf("request failed: %w", err)
	}

	s.log.Debug().
		Int("status", resp.StatusCode).
		Msg("Platform response")

	return resp, nil
}

func (s *Session) getJSON(ctx context.Context, path string, op string, out interface{}) error {
	resp, err := s.do(ctx, http.MethodGet, path, nil)
	if err != nil {
		return err
	}
	defer resp.Body.Close()

	if err := checkStatus(resp, op); err != nil {
		return err
	}
	if err := json.NewDecoder(resp.Body).Decode(out); err != nil {
		return fmt.Errorf("failed to decode %s response: %w", op, err)
	}
	return nil
}

// IsAuthorized reports whether the session identity is logged in
func (s *Session) IsAuthorized(ctx context.Context) (bool, error) {
	var status sessionStatus
	if err := s.getJSON(ctx, "/v1/session", "session status", &status); err != nil {
		return false, err
	}
	return status.Authorized, nil
}

// Search returns chats matching query
func (s *Session) Search(ctx context.Context, query string, limit int) ([]platform.Chat, error) {
	params := url.Values{}
	params.Set("q", query)
	params.Set("limit", strconv.Itoa(limit))

	var result searchResponse
	if err := s.getJSON(ctx, "/v1/search?"+params.Encode(), "search", &result); err != nil {
		return nil, err
	}

	chats := make([]platform.Chat, 0, len(result.Chats))
	for _, c := range result.Chats {
		chats = append(chats, platform.Chat{
			Kind:              platform.ChatKind(c.Type),
			ID:                c.ID,
			Title:             c.Title,
			Username:          c.Username,
			ParticipantsCount: c.ParticipantsCount,
		})
	}
	if limit > 0 && len(chats) > limit {
		chats = chats[:limit]
	}
	return chats, nil
}

// ResolveEntity fetches the extended profile of a chat
func (s *Session) ResolveEntity(ctx context.Context, chat platform.Chat) (*platform.Profile, error) {
	var entity entityResponse
	path := "/v1/entities/" + strconv.FormatInt(chat.ID, 10)
	if err := s.getJSON(ctx, path, "entity", &entity); err != nil {
		return nil, err
	}
	return &platform.Profile{
		About:             entity.About,
		ParticipantsCount: entity.ParticipantsCount,
		Username:          entity.Username,
		Title:             entity.Title,
	}, nil
}

// RecentMessages pages backwards through the chat's history until limit
// messages were yielded or history runs out
func (s *Session) RecentMessages(ctx context.Context, chat platform.Chat, limit int) iter.Seq2[platform.Message, error] {
	return func(yield func(platform.Message, error) bool) {
		var offsetID int64
		remaining := limit

		for remaining > 0 {
			pageSize := min(remaining, maxPageSize)
			params := url.Values{}
			params.Set("limit", strconv.Itoa(pageSize))
			if offsetID > 0 {
				params.Set("offset_id", strconv.FormatInt(offsetID, 10))
			}

			var page messagesResponse
			path := fmt.Sprintf("/v1/channels/%d/messages?%s", chat.ID, params.Encode())
			if err := s.getJSON(ctx, path, "messages", &page); err != nil {
				yield(platform.Message{}, err)
				return
			}
			if len(page.Messages) == 0 {
				return
			}

			for _, m := range page.Messages {
				if remaining == 0 {
					return
				}
				remaining--
				offsetID = m.ID
				if !yield(platform.Message{ID: m.ID, Text: m.Text, Date: m.Date}, nil) {
					return
				}
			}
			if len(page.Messages) < pageSize {
				return
			}
		}
	}
}

// Close disconnects the session. It is safe to call more than once.
func (s *Session) Close() error {
	if s.closed {
		return nil
	}
	s.closed = true

	// Disconnect must run even when the scan's context is already done
	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()

	resp, err := s.do(ctx, http.MethodPost, "/v1/session/disconnect", nil)
	if err != nil {
		return fmt.Errorf("failed to disconnect: %w", err)
	}
	defer resp.Body.Close()
	return checkStatus(resp, "disconnect")
}

func checkStatus(resp *http.Response, op string) error {
	if resp.StatusCode >= 200 && resp.StatusCode < 300 {
		return nil
	}
	body, _ := io.ReadAll(io.LimitReader(resp.Body, 4096))
	return &StatusError{Op: op, StatusCode: resp.StatusCode, Body: strings.TrimSpace(string(body))}
}

// StatusError is returned when the bridge answers with a non-2xx status
type StatusError struct {
	Op         string
	StatusCode int
	Body       string
}

func (e *StatusError) Error() string {
	if e.Body == "" {
		return fmt.Sprintf("%s failed: status %d", e.Op, e.StatusCode)
	}
	return fmt.Sprintf("%s failed: status %d - %s", e.Op, e.StatusCode, e.Body)
}

// Ensure Connector implements platform.Connector
var _ platform.Connector = (*Connector)(nil)
