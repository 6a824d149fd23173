package scanner

import (
	"context"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/channel-scout/pkg/logger"
)

// blockingRunner counts passes and holds each one until released.
type blockingRunner struct {
	started chan struct{}
	release chan struct{}
	passes  atomic.Int32
	panics  bool
}

func newBlockingRunner() *blockingRunner {
	return &blockingRunner{
		started: make(chan struct{}, 10),
		release: make(chan struct{}),
	}
}

func (r *blockingRunner) RunPass(ctx context.Context) (*PassResult, error) {
	r.passes.Add(1)
	r.started <- struct{}{}
	if r.panics {
		panic("pass exploded")
	}
	select {
	case <-r.release:
	case <-ctx.Done():
	}
	return &PassResult{}, nil
}

func waitStarted(t *testing.T, r *blockingRunner) {
	t.Helper()
	select {
	case <-r.started:
	case <-time.After(2 * time.Second):
		t.Fatal("timed out waiting for pass to start")
	}
}

func TestTrigger_CoalescesPendingRequests(t *testing.T) {
	runner := newBlockingRunner()
	trigger := NewTrigger(runner, logger.Nop())

	ctx, cancel := context.WithCancel(context.Background())
	defer func() {
		cancel()
		trigger.Wait()
	}()
	trigger.Start(ctx)

	if !trigger.Request() {
		t.Fatal("first Request() = false, want true")
	}
	waitStarted(t, runner)

	// While the first pass runs, one request is queued and the rest coalesce
	if !trigger.Request() {
		t.Error("second Request() = false, want true")
	}
	if trigger.Request() {
		t.Error("third Request() = true, want coalesced")
	}

	runner.release <- struct{}{}
	waitStarted(t, runner)
	runner.release <- struct{}{}

	select {
	case <-runner.started:
		t.Fatal("unexpected third pass")
	case <-time.After(100 * time.Millisecond):
	}
	if got := runner.passes.Load(); got != 2 {
		t.Errorf("passes = %d, want 2", got)
	}
}

func TestTrigger_SurvivesPanickingPass(t *testing.T) {
	runner := newBlockingRunner()
	runner.panics = true
	trigger := NewTrigger(runner, logger.Nop())

	ctx, cancel := context.WithCancel(context.Background())
	trigger.Start(ctx)

	trigger.Request()
	waitStarted(t, runner)
	trigger.Request()
	waitStarted(t, runner)

	cancel()
	trigger.Wait()

	if got := runner.passes.Load(); got != 2 {
		t.Errorf("passes = %d, want 2", got)
	}
}

func TestTrigger_StartIsIdempotent(t *testing.T) {
	runner := newBlockingRunner()
	trigger := NewTrigger(runner, logger.Nop())

	ctx, cancel := context.WithCancel(context.Background())
	var wg sync.WaitGroup
	for range 3 {
		wg.Add(1)
		go func() {
			defer wg.Done()
			trigger.Start(ctx)
		}()
	}
	wg.Wait()

	cancel()
	done := make(chan struct{})
	go func() {
		trigger.Wait()
		close(done)
	}()
	select {
	case <-done:
	case <-time.After(2 * time.Second):
		t.Fatal("worker did not stop after cancel")
	}
}
