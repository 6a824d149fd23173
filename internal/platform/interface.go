// Package platform defines the contract the scanner needs from the
// messaging platform client.
package platform

import (
	"context"
	"iter"
	"time"
)

// ChatKind distinguishes result types returned by a platform search
type ChatKind string

const (
	KindChannel ChatKind = "channel"
	KindGroup   ChatKind = "chat"
	KindUser    ChatKind = "user"
)

// Chat is a single search result
type Chat struct {
	Kind              ChatKind
	ID                int64
	Title             string
	Username          string
	ParticipantsCount *int
}

// IsChannel returns true if the result is a broadcast channel
func (c Chat) IsChannel() bool {
	return c.Kind == KindChannel
}

// Profile is the extended information about a resolved entity
type Profile struct {
	About             string
	ParticipantsCount *int
	Username          string
	Title             string
}

// Message is a channel post
type Message struct {
	ID   int64
	Text string
	Date time.Time
}

// Session is one authenticated connection to the platform.
// A session must not be shared between concurrent scans.
type Session interface {
	// IsAuthorized reports whether the session identity is logged in
	IsAuthorized(ctx context.Context) (bool, error)

	// Search returns chats matching query, at most limit results
	Search(ctx context.Context, query string, limit int) ([]Chat, error)

	// ResolveEntity fetches the extended profile of a chat
	ResolveEntity(ctx context.Context, chat Chat) (*Profile, error)

	// RecentMessages lazily yields up to limit of the chat's most recent
	// messages, newest first. The sequence stops after the first error.
	RecentMessages(ctx context.Context, chat Chat, limit int) iter.Seq2[Message, error]

	// Close tears down the connection
	Close() error
}

// Connector opens platform sessions
type Connector interface {
	Connect(ctx context.Context) (Session, error)
}

// SubscriberCount picks the best known participant count, defaulting to 0
func SubscriberCount(counts ...*int) int {
	for _, c := range counts {
		if c != nil {
			return *c
		}
	}
	return 0
}
