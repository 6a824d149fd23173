package scanner

import (
	"context"
	"sync"

	"github.com/channel-scout/pkg/logger"
)

// PassRunner runs one scan pass
type PassRunner interface {
	RunPass(ctx context.Context) (*PassResult, error)
}

// Trigger hands scan passes to a single background worker.
// Callers only learn that a request was accepted; outcomes land in the
// scan log. One pass runs at a time and at most one more waits behind it.
type Trigger struct {
	runner   PassRunner
	requests chan struct{}
	log      *logger.Logger
	wg       sync.WaitGroup
	once     sync.Once
}

// NewTrigger creates a new trigger around runner
func NewTrigger(runner PassRunner, log *logger.Logger) *Trigger {
	return &Trigger{
		runner:   runner,
		requests: make(chan struct{}, 1),
		log:      log.WithComponent("trigger"),
	}
}

// Start launches the worker. It stops when ctx is done; a pass in flight
// sees the cancellation through its context.
func (t *Trigger) Start(ctx context.Context) {
	t.once.Do(func() {
		t.wg.Add(1)
		go t.loop(ctx)
	})
}

// Wait blocks until the worker has stopped
func (t *Trigger) Wait() {
	t.wg.Wait()
}

// Request asks for a scan pass and returns immediately. It reports false
// when an earlier request is still waiting, in which case the two are
// served by the same pass.
func (t *Trigger) Request() bool {
	select {
	case t.requests <- struct{}{}:
		t.log.Debug().Msg("Scan pass queued")
		return true
	default:
		t.log.Debug().Msg("Scan pass already pending")
		return false
	}
}

func (t *Trigger) loop(ctx context.Context) {
	defer t.wg.Done()

	for {
		select {
		case <-ctx.Done():
			t.log.Info().Msg("Scan worker stopped")
			return
		case <-t.requests:
			t.run(ctx)
		}
	}
}

func (t *Trigger) run(ctx context.Context) {
	defer func() {
		if r := recover(); r != nil {
			t.log.Error().Interface("panic", r).Msg("Scan pass panicked")
		}
	}()

	if _, err := t.runner.RunPass(ctx); err != nil {
		t.log.Error().Err(err).Msg("Scan pass failed")
	}
}
