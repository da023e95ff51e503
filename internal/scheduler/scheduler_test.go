package scheduler

import (
	"context"
	"errors"
	"io"
	"log/slog"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/i474232898/airbot/internal/airquality"
)

type fakeRefresher struct {
	mu       sync.Mutex
	sources  []airquality.Source
	failures map[airquality.Source]error
	calls    []airquality.Source
	active   int
	overlap  bool
}

func (f *fakeRefresher) Sources() []airquality.Source {
	return f.sources
}

func (f *fakeRefresher) Refresh(ctx context.Context, source airquality.Source) error {
	f.mu.Lock()
	f.active++
	if f.active > 1 {
		f.overlap = true
	}
	f.calls = append(f.calls, source)
	f.mu.Unlock()

	defer func() {
		f.mu.Lock()
		f.active--
		f.mu.Unlock()
	}()

	if _, ok := ctx.Deadline(); !ok {
		return errors.New("refresh without deadline")
	}
	return f.failures[source]
}

func (f *fakeRefresher) callCount() int {
	f.mu.Lock()
	defer f.mu.Unlock()
	return len(f.calls)
}

func discardLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(io.Discard, nil))
}

func TestRunOnce_Sequential(t *testing.T) {
	f := &fakeRefresher{sources: []airquality.Source{airquality.SourceAirly, airquality.SourceGIOS}}
	s := New(time.Minute, f, discardLogger())

	failed := s.RunOnce(context.Background())

	assert.Zero(t, failed)
	assert.Equal(t, []airquality.Source{airquality.SourceAirly, airquality.SourceGIOS}, f.calls)
	assert.False(t, f.overlap)
}

func TestRunOnce_ContinuesAfterFailure(t *testing.T) {
	f := &fakeRefresher{
		sources:  []airquality.Source{airquality.SourceAirly, airquality.SourceGIOS},
		failures: map[airquality.Source]error{airquality.SourceAirly: errors.New("boom")},
	}
	s := New(time.Minute, f, discardLogger())

	failed := s.RunOnce(context.Background())

	assert.Equal(t, 1, failed)
	assert.Len(t, f.calls, 2)
}

func TestRunOnce_Cancelled(t *testing.T) {
	f := &fakeRefresher{sources: []airquality.Source{airquality.SourceAirly}}
	s := New(time.Minute, f, discardLogger())

	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	assert.Equal(t, 1, s.RunOnce(ctx))
	assert.Empty(t, f.calls)
}

func TestStart_RunsImmediately(t *testing.T) {
	f := &fakeRefresher{sources: []airquality.Source{airquality.SourceGIOS}}
	s := New(time.Hour, f, discardLogger())

	require.NoError(t, s.Start())
	defer s.Stop()

	assert.Eventually(t, func() bool { return f.callCount() == 1 }, 2*time.Second, 10*time.Millisecond)
}

func TestStart_NoSources(t *testing.T) {
	f := &fakeRefresher{}
	s := New(0, f, nil)

	require.NoError(t, s.Start())
	s.Stop()

	assert.Equal(t, defaultInterval, s.interval)
	assert.Zero(t, f.callCount())
}

// blockingRefresher holds every refresh until its context ends.
type blockingRefresher struct {
	started chan struct{}
	done    chan error
}

func (b *blockingRefresher) Sources() []airquality.Source {
	return []airquality.Source{airquality.SourceAirly}
}

func (b *blockingRefresher) Refresh(ctx context.Context, _ airquality.Source) error {
	b.started <- struct{}{}
	<-ctx.Done()
	b.done <- ctx.Err()
	return ctx.Err()
}

func TestStop_CancelsRunningRefresh(t *testing.T) {
	b := &blockingRefresher{started: make(chan struct{}, 1), done: make(chan error, 1)}
	s := New(time.Hour, b, discardLogger())

	require.NoError(t, s.Start())

	select {
	case <-b.started:
	case <-time.After(2 * time.Second):
		t.Fatal("refresh did not start")
	}

	stopped := make(chan struct{})
	go func() {
		s.Stop()
		close(stopped)
	}()

	select {
	case err := <-b.done:
		assert.ErrorIs(t, err, context.Canceled)
	case <-time.After(2 * time.Second):
		t.Fatal("refresh was not cancelled by Stop")
	}
	<-stopped
}
