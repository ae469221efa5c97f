// Package search turns keystrokes into a debounced, race-safe list of location
// candidates and emits one coordinate when the user commits a choice.
package search

import (
	"context"
	"errors"
	"strings"
	"sync"
	"time"

	"go.uber.org/zap"
	"golang.org/x/time/rate"

	"weather-dashboard/datasource"
	"weather-dashboard/models"
)

// DefaultDebounce is the quiet period between the last keystroke and the lookup
const DefaultDebounce = 200 * time.Millisecond

// ErrNoCandidate is returned when a selection does not name a visible candidate
var ErrNoCandidate = errors.New("no such candidate")

// Session is a snapshot of the search control state
type Session struct {
	QueryText     string                     `json:"queryText"`
	Candidates    []models.LocationCandidate `json:"candidates"`
	IsOpen        bool                       `json:"isOpen"`
	IsLoading     bool                       `json:"isLoading"`
	SelectedLabel *string                    `json:"selectedLabel"`
	Focused       bool                       `json:"focused"`
}

// Display returns what the input box shows: the selected label, else the query
func (s Session) Display() string {
	if s.SelectedLabel != nil {
		return *s.SelectedLabel
	}
	return s.QueryText
}

// Stats counts lookups by outcome
type Stats struct {
	Lookups   int `json:"lookups"`
	Applied   int `json:"applied"`
	Discarded int `json:"discarded"`
	Failed    int `json:"failed"`
}

// SelectFunc receives the coordinate of a committed candidate
type SelectFunc func(models.Coordinate)

// Option configures a Controller
type Option func(*Controller)

// WithDebounce overrides DefaultDebounce
func WithDebounce(d time.Duration) Option {
	return func(c *Controller) { c.delay = d }
}

// WithScheduler replaces the runtime timers, mainly for tests
func WithScheduler(s Scheduler) Option {
	return func(c *Controller) { c.scheduler = s }
}

// WithLogger sets the logger
func WithLogger(l *zap.Logger) Option {
	return func(c *Controller) { c.logger = l }
}

// Controller owns one search session. All state changes happen under mu;
// lookups run on their own goroutines and re-enter through apply.
type Controller struct {
	geocoder  datasource.Geocoder
	onSelect  SelectFunc
	scheduler Scheduler
	delay     time.Duration
	logger    *zap.Logger
	errLog    rate.Sometimes

	ctx    context.Context
	cancel context.CancelFunc

	mu       sync.Mutex
	session  Session
	timer    Timer
	seq      uint64 // identity of the latest input; lookups carry the value they were issued for
	lastErr  error
	stats    Stats
	closed   bool
	inflight sync.WaitGroup
}

// New creates a controller that looks up candidates with geocoder and reports selections to onSelect
func New(geocoder datasource.Geocoder, onSelect SelectFunc, opts ...Option) *Controller {
	c := &Controller{
		geocoder:  geocoder,
		onSelect:  onSelect,
		scheduler: SystemScheduler,
		delay:     DefaultDebounce,
		logger:    zap.NewNop(),
		errLog:    rate.Sometimes{First: 1, Interval: time.Minute},
	}
	for _, opt := range opts {
		opt(c)
	}
	c.ctx, c.cancel = context.WithCancel(context.Background())
	return c
}

// Input handles a change of the input text
func (c *Controller) Input(text string) {
	c.mu.Lock()
	defer c.mu.Unlock()

	if c.closed {
		return
	}

	c.session.QueryText = text
	c.session.SelectedLabel = nil
	c.session.Focused = true
	c.seq++
	c.stopTimer()

	if strings.TrimSpace(text) == "" {
		c.session.Candidates = nil
		c.session.IsLoading = false
		c.session.IsOpen = false
		return
	}

	seq := c.seq
	c.timer = c.scheduler.AfterFunc(c.delay, func() { c.fire(seq) })
}

// fire runs when the debounce timer for seq elapses
func (c *Controller) fire(seq uint64) {
	c.mu.Lock()
	defer c.mu.Unlock()

	// A newer keystroke replaced this timer after it had already started running
	if c.closed || seq != c.seq {
		return
	}
	c.timer = nil

	query := c.session.QueryText
	c.session.IsOpen = true
	c.session.IsLoading = true
	c.stats.Lookups++

	c.inflight.Add(1)
	go c.lookup(seq, query)
}

func (c *Controller) lookup(seq uint64, query string) {
	defer c.inflight.Done()

	candidates, err := c.geocoder.Search(c.ctx, query)
	c.apply(seq, query, candidates, err)
}

// apply installs a lookup result if nothing superseded the query it was issued for
func (c *Controller) apply(seq uint64, query string, candidates []models.LocationCandidate, err error) {
	c.mu.Lock()
	defer c.mu.Unlock()

	if c.closed {
		return
	}
	if seq != c.seq {
		c.stats.Discarded++
		c.logger.Debug("discarding stale lookup",
			zap.String("query", query),
			zap.String("current", c.session.QueryText),
		)
		return
	}

	c.session.IsLoading = false
	if err != nil {
		c.stats.Failed++
		c.lastErr = err
		c.session.Candidates = nil
		c.errLog.Do(func() {
			c.logger.Warn("location search failed", zap.String("query", query), zap.Error(err))
		})
		return
	}

	c.stats.Applied++
	c.lastErr = nil
	c.session.Candidates = candidates
}

// Select commits the candidate at index and emits its coordinate
func (c *Controller) Select(index int) error {
	c.mu.Lock()
	if c.closed || index < 0 || index >= len(c.session.Candidates) {
		c.mu.Unlock()
		return ErrNoCandidate
	}

	candidate := c.session.Candidates[index]
	label := candidate.DisplayName

	c.seq++
	c.stopTimer()
	c.session = Session{SelectedLabel: &label}
	c.mu.Unlock()

	c.logger.Info("location selected",
		zap.String("label", label),
		zap.Stringer("coordinate", candidate.Coordinate),
	)
	if c.onSelect != nil {
		c.onSelect(candidate.Coordinate)
	}
	return nil
}

// Dismiss handles a pointer interaction outside the control. The dropdown
// closes; query and candidates are kept.
func (c *Controller) Dismiss() {
	c.mu.Lock()
	defer c.mu.Unlock()

	c.session.IsOpen = false
	c.session.Focused = false
}

// Clear resets the control to its idle state and focuses the input
func (c *Controller) Clear() {
	c.mu.Lock()
	defer c.mu.Unlock()

	c.seq++
	c.stopTimer()
	c.session = Session{Focused: true}
}

// Session returns a snapshot of the current state
func (c *Controller) Session() Session {
	c.mu.Lock()
	defer c.mu.Unlock()

	s := c.session
	if s.Candidates != nil {
		s.Candidates = append([]models.LocationCandidate(nil), s.Candidates...)
	}
	if s.SelectedLabel != nil {
		label := *s.SelectedLabel
		s.SelectedLabel = &label
	}
	return s
}

// LastError returns the failure of the most recent applied lookup, if any
func (c *Controller) LastError() error {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.lastErr
}

// Stats returns lookup counters
func (c *Controller) Stats() Stats {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.stats
}

// Close cancels the pending timer and outstanding lookups and waits for them to return
func (c *Controller) Close() {
	c.mu.Lock()
	c.closed = true
	c.stopTimer()
	c.mu.Unlock()

	c.cancel()
	c.inflight.Wait()
}

func (c *Controller) stopTimer() {
	if c.timer != nil {
		c.timer.Stop()
		c.timer = nil
	}
}
