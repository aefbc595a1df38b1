package ingest

import (
	"context"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"feedpipe/internal/model"

	"github.com/stretchr/testify/assert"
	"go.uber.org/zap"
)

type countingRunner struct {
	calls atomic.Int32
}

func (r *countingRunner) Run(ctx context.Context) (model.RunReport, error) {
	r.calls.Add(1)
	return model.RunReport{model.Succeeded("f", 1)}, nil
}

func TestScheduler_RunsUntilCancelled(t *testing.T) {
	r := &countingRunner{}
	ctx, cancel := context.WithCancel(context.Background())

	done := make(chan struct{})
	go func() {
		NewScheduler(r, 10*time.Millisecond, zap.NewNop()).Start(ctx)
		close(done)
	}()

	assert.Eventually(t, func() bool { return r.calls.Load() >= 2 }, time.Second, 5*time.Millisecond)
	cancel()

	select {
	case <-done:
	case <-time.After(time.Second):
		t.Fatal("scheduler did not stop")
	}
}

func TestScheduler_DisabledWithZeroInterval(t *testing.T) {
	r := &countingRunner{}
	NewScheduler(r, 0, zap.NewNop()).Start(context.Background())
	assert.Zero(t, r.calls.Load())
}

type blockingRunner struct {
	once    sync.Once
	started chan struct{}
	release chan struct{}
	ctxErr  error
}

func (r *blockingRunner) Run(ctx context.Context) (model.RunReport, error) {
	r.once.Do(func() { close(r.started) })
	<-r.release
	r.ctxErr = ctx.Err()
	return nil, nil
}

func TestScheduler_InFlightRunSurvivesCancel(t *testing.T) {
	r := &blockingRunner{started: make(chan struct{}), release: make(chan struct{})}
	ctx, cancel := context.WithCancel(context.Background())

	done := make(chan struct{})
	go func() {
		NewScheduler(r, 10*time.Millisecond, zap.NewNop()).Start(ctx)
		close(done)
	}()

	<-r.started
	cancel()

	select {
	case <-done:
		t.Fatal("scheduler returned while a run was in flight")
	case <-time.After(50 * time.Millisecond):
	}

	close(r.release)
	select {
	case <-done:
	case <-time.After(time.Second):
		t.Fatal("scheduler did not stop")
	}
	assert.NoError(t, r.ctxErr)
}
