package scanner

import (
	"context"
	"errors"
	"iter"
	"sync"

	"github.com/channel-scout/internal/platform"
)

// fakeConnector implements platform.Connector for testing.
type fakeConnector struct {
	mu         sync.Mutex
	newSession func() *fakeSession
	connectErr error
	sessions   []*fakeSession
}

func (f *fakeConnector) Connect(ctx context.Context) (platform.Session, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.connectErr != nil {
		return nil, f.connectErr
	}
	s := f.newSession()
	f.sessions = append(f.sessions, s)
	return s, nil
}

func (f *fakeConnector) allClosed() bool {
	f.mu.Lock()
	defer f.mu.Unlock()
	for _, s := range f.sessions {
		if !s.closed {
			return false
		}
	}
	return true
}

// fakeSession implements platform.Session for testing. Search results and
// errors are keyed by query; messages and fetch errors by chat ID.
type fakeSession struct {
	unauthorized bool
	results      map[string][]platform.Chat
	searchErrs   map[string]error
	profiles     map[int64]*platform.Profile
	messages     map[int64][]platform.Message
	fetchErrs    map[int64]error
	panicOn      int64

	searches int
	closed   bool
}

func newFakeSession() *fakeSession {
	return &fakeSession{
		results:    map[string][]platform.Chat{},
		searchErrs: map[string]error{},
		profiles:   map[int64]*platform.Profile{},
		messages:   map[int64][]platform.Message{},
		fetchErrs:  map[int64]error{},
	}
}

func (s *fakeSession) IsAuthorized(ctx context.Context) (bool, error) {
	return !s.unauthorized, nil
}

func (s *fakeSession) Search(ctx context.Context, query string, limit int) ([]platform.Chat, error) {
	s.searches++
	if err := s.searchErrs[query]; err != nil {
		return nil, err
	}
	chats := s.results[query]
	if len(chats) > limit {
		chats = chats[:limit]
	}
	return chats, nil
}

func (s *fakeSession) ResolveEntity(ctx context.Context, chat platform.Chat) (*platform.Profile, error) {
	if chat.ID == s.panicOn {
		panic("entity decoder blew up")
	}
	if p, ok := s.profiles[chat.ID]; ok {
		return p, nil
	}
	return &platform.Profile{Title: chat.Title, Username: chat.Username}, nil
}

func (s *fakeSession) RecentMessages(ctx context.Context, chat platform.Chat, limit int) iter.Seq2[platform.Message, error] {
	return func(yield func(platform.Message, error) bool) {
		for i, m := range s.messages[chat.ID] {
			if i >= limit {
				return
			}
			if !yield(m, nil) {
				return
			}
		}
		if err := s.fetchErrs[chat.ID]; err != nil {
			yield(platform.Message{}, err)
		}
	}
}

func (s *fakeSession) Close() error {
	s.closed = true
	return nil
}

var errFlood = errors.New("FLOOD_WAIT_X")

func intPtr(v int) *int { return &v }
