package spondmodule

import (
	"context"
	"errors"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/jonboulle/clockwork"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestSearchBoxDebouncesToSingleRequest(t *testing.T) {
	clock := clockwork.NewFakeClock()
	var calls int32
	var lastQuery string
	var mu sync.Mutex

	box := NewSearchBox(clock, func(ctx context.Context, q string) ([]SearchResult, error) {
		atomic.AddInt32(&calls, 1)
		mu.Lock()
		lastQuery = q
		mu.Unlock()
		return []SearchResult{{ID: 1, Name: "Ada"}}, nil
	})

	// two keystrokes inside the debounce window fire one search, for
	// the final text
	box.Input("a")
	assert.Equal(t, BoxIdle, box.State())
	box.Input("ab")
	assert.Equal(t, BoxDebouncing, box.State())

	clock.Advance(100 * time.Millisecond)
	assert.EqualValues(t, 0, atomic.LoadInt32(&calls))

	clock.Advance(DebounceInterval)
	require.Eventually(t, func() bool {
		return box.State() == BoxShowingResults
	}, time.Second, 5*time.Millisecond)

	assert.EqualValues(t, 1, atomic.LoadInt32(&calls))
	mu.Lock()
	assert.Equal(t, "ab", lastQuery)
	mu.Unlock()
	assert.Len(t, box.Results(), 1)
}

func TestSearchBoxShortQueryClearsToIdle(t *testing.T) {
	clock := clockwork.NewFakeClock()
	var calls int32
	box := NewSearchBox(clock, func(ctx context.Context, q string) ([]SearchResult, error) {
		atomic.AddInt32(&calls, 1)
		return nil, nil
	})

	box.Input("ab")
	box.Input("a") // deleted a character below the minimum
	assert.Equal(t, BoxIdle, box.State())

	clock.Advance(2 * DebounceInterval)
	assert.EqualValues(t, 0, atomic.LoadInt32(&calls))
	assert.Empty(t, box.Results())
}

func TestSearchBoxDiscardsStaleResponse(t *testing.T) {
	clock := clockwork.NewFakeClock()
	firstStarted := make(chan struct{})
	release := make(chan struct{})

	box := NewSearchBox(clock, func(ctx context.Context, q string) ([]SearchResult, error) {
		if q == "old" {
			close(firstStarted)
			<-release
			return []SearchResult{{Name: "stale"}}, nil
		}
		return []SearchResult{{Name: "fresh"}}, nil
	})

	box.Input("old")
	go clock.Advance(DebounceInterval)
	<-firstStarted

	// a newer query fires while the first request is still in flight
	box.Input("new")
	clock.Advance(DebounceInterval)
	require.Eventually(t, func() bool {
		results := box.Results()
		return len(results) == 1 && results[0].Name == "fresh"
	}, time.Second, 5*time.Millisecond)

	// releasing the stale response must not overwrite the fresh one
	close(release)
	time.Sleep(20 * time.Millisecond)
	results := box.Results()
	require.Len(t, results, 1)
	assert.Equal(t, "fresh", results[0].Name)
}

func TestSearchBoxFailureShowsEmptyResults(t *testing.T) {
	clock := clockwork.NewFakeClock()
	box := NewSearchBox(clock, func(ctx context.Context, q string) ([]SearchResult, error) {
		return nil, errors.New("boom")
	})

	box.Input("ab")
	clock.Advance(DebounceInterval)
	require.Eventually(t, func() bool {
		return box.State() == BoxShowingResults
	}, time.Second, 5*time.Millisecond)

	assert.Empty(t, box.Results())
	assert.Error(t, box.Err())
}

func TestLinkRowBlocksDuplicateSubmits(t *testing.T) {
	row := NewLinkRow()
	started := make(chan struct{})
	release := make(chan struct{})
	var calls int32

	go row.Submit(context.Background(), func(ctx context.Context) error {
		atomic.AddInt32(&calls, 1)
		close(started)
		<-release
		return nil
	})
	<-started

	// second submit while the first is in flight is rejected
	attempted := row.Submit(context.Background(), func(ctx context.Context) error {
		atomic.AddInt32(&calls, 1)
		return nil
	})
	assert.False(t, attempted)
	assert.Equal(t, RowLinking, row.State())

	close(release)
	require.Eventually(t, func() bool {
		return row.State() == RowLinked
	}, time.Second, 5*time.Millisecond)
	assert.EqualValues(t, 1, atomic.LoadInt32(&calls))

	// linked is terminal
	attempted = row.Submit(context.Background(), func(ctx context.Context) error { return nil })
	assert.False(t, attempted)
}

func TestLinkRowFailureAllowsRetry(t *testing.T) {
	row := NewLinkRow()

	attempted := row.Submit(context.Background(), func(ctx context.Context) error {
		return errors.New("network down")
	})
	assert.True(t, attempted)
	assert.Equal(t, RowFailed, row.State())

	attempted = row.Submit(context.Background(), func(ctx context.Context) error { return nil })
	assert.True(t, attempted)
	assert.Equal(t, RowLinked, row.State())
}
