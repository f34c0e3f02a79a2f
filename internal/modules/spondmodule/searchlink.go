package spondmodule

import (
	"context"
	"strings"
	"sync"
	"time"

	"github.com/jonboulle/clockwork"

	"github.com/redbridgehc/clubhouse/internal/logger"
)

// Search box states. One box exists per player row on the linking page;
// the server drives the same machine for its widget endpoint so the
// debounce and stale-response rules are enforced in one place.
type BoxState string

const (
	BoxIdle           BoxState = "idle"
	BoxDebouncing     BoxState = "debouncing"
	BoxSearching      BoxState = "searching"
	BoxShowingResults BoxState = "showing_results"
)

// Link row states. Linked is terminal; Failed allows a retry.
type RowState string

const (
	RowUnlinked RowState = "unlinked"
	RowLinking  RowState = "linking"
	RowLinked   RowState = "linked"
	RowFailed   RowState = "failed"
)

const (
	// DebounceInterval is how long input must be quiet before a search
	// fires.
	DebounceInterval = 250 * time.Millisecond
	// MinQueryLength is the minimum query length that triggers a search.
	MinQueryLength = 2
)

// SearchResult is one row offered for linking.
type SearchResult struct {
	ID            uint   `json:"id"`
	SpondMemberID string `json:"spond_member_id"`
	Name          string `json:"name"`
	Email         string `json:"email"`
}

// SearchFunc performs the actual member search.
type SearchFunc func(ctx context.Context, query string) ([]SearchResult, error)

// SearchBox debounces queries and discards stale responses. Every fired
// request carries a sequence number; a response only lands if no newer
// request has been fired since.
type SearchBox struct {
	mu      sync.Mutex
	clock   clockwork.Clock
	search  SearchFunc
	state   BoxState
	query   string
	pending clockwork.Timer
	seq     uint64
	results []SearchResult
	lastErr error
}

// NewSearchBox builds a search box. Pass a fake clock in tests.
func NewSearchBox(clock clockwork.Clock, search SearchFunc) *SearchBox {
	return &SearchBox{clock: clock, search: search, state: BoxIdle}
}

// State returns the current box state.
func (b *SearchBox) State() BoxState {
	b.mu.Lock()
	defer b.mu.Unlock()
	return b.state
}

// Results returns the most recent search results.
func (b *SearchBox) Results() []SearchResult {
	b.mu.Lock()
	defer b.mu.Unlock()
	return append([]SearchResult(nil), b.results...)
}

// Input registers a keystroke. Queries shorter than MinQueryLength clear
// the box back to idle; anything else restarts the debounce timer, so a
// burst of typing fires at most one search for the final text.
func (b *SearchBox) Input(query string) {
	b.mu.Lock()
	defer b.mu.Unlock()

	query = strings.TrimSpace(query)
	b.query = query

	if b.pending != nil {
		b.pending.Stop()
		b.pending = nil
	}

	if len(query) < MinQueryLength {
		b.state = BoxIdle
		b.results = nil
		return
	}

	b.state = BoxDebouncing
	b.pending = b.clock.AfterFunc(DebounceInterval, b.fire)
}

// fire runs when the debounce interval elapses without further input.
func (b *SearchBox) fire() {
	b.mu.Lock()
	b.pending = nil
	b.seq++
	seq := b.seq
	query := b.query
	b.state = BoxSearching
	b.mu.Unlock()

	results, err := b.search(context.Background(), query)

	b.mu.Lock()
	defer b.mu.Unlock()
	if seq != b.seq {
		// a newer request fired while this one was in flight
		logger.Debug("discarding stale search response", logger.String("query", query))
		return
	}
	if err != nil {
		// render as empty results rather than leaving the box stuck
		b.results = nil
		b.lastErr = err
	} else {
		b.results = results
		b.lastErr = nil
	}
	b.state = BoxShowingResults
}

// Err returns the error from the last completed search, if any.
func (b *SearchBox) Err() error {
	b.mu.Lock()
	defer b.mu.Unlock()
	return b.lastErr
}

// LinkFunc submits one link request.
type LinkFunc func(ctx context.Context) error

// LinkRow guards a single result row's link action. Linking blocks
// duplicate submissions; success is terminal; failure re-enables the row.
type LinkRow struct {
	mu    sync.Mutex
	state RowState
}

// NewLinkRow starts unlinked.
func NewLinkRow() *LinkRow {
	return &LinkRow{state: RowUnlinked}
}

// State returns the current row state.
func (r *LinkRow) State() RowState {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.state
}

// Submit runs the link action unless one is already in flight or done.
// Returns whether the action was attempted.
func (r *LinkRow) Submit(ctx context.Context, link LinkFunc) bool {
	r.mu.Lock()
	if r.state == RowLinking || r.state == RowLinked {
		r.mu.Unlock()
		return false
	}
	r.state = RowLinking
	r.mu.Unlock()

	err := link(ctx)

	r.mu.Lock()
	defer r.mu.Unlock()
	if err != nil {
		r.state = RowFailed
		return true
	}
	r.state = RowLinked
	return true
}
