// Package dashboard picks the position to show, fetches its weather and holds
// the loading and result state.
package dashboard

import (
	"context"
	"sync"

	"go.uber.org/zap"

	"weather-dashboard/datasource"
	"weather-dashboard/models"
)

// Where the displayed coordinate came from
const (
	OriginGeolocation = "geolocation"
	OriginDefault     = "default"
	OriginSearch      = "search"
)

// DefaultLocation is shown when geolocation fails (London)
var DefaultLocation = models.Coordinate{Latitude: 51.5074, Longitude: -0.1278}

// Locator yields the starting position once
type Locator interface {
	Locate(ctx context.Context) (models.Coordinate, error)
}

// View is a snapshot of what the dashboard renders
type View struct {
	Loading    bool                  `json:"loading"`
	Report     *models.WeatherReport `json:"report"`
	Coordinate *models.Coordinate    `json:"coordinate"`
	Origin     string                `json:"origin,omitempty"`
	LastError  string                `json:"lastError,omitempty"`
}

// Option configures a Controller
type Option func(*Controller)

// WithFallback overrides DefaultLocation
func WithFallback(coord models.Coordinate) Option {
	return func(c *Controller) { c.fallback = coord }
}

// WithLogger sets the logger
func WithLogger(l *zap.Logger) Option {
	return func(c *Controller) { c.logger = l }
}

// Controller orchestrates geolocation and weather fetches for one dashboard
type Controller struct {
	source   datasource.WeatherSource
	locator  Locator
	fallback models.Coordinate
	logger   *zap.Logger

	ctx    context.Context
	cancel context.CancelFunc
	once   sync.Once

	mu      sync.Mutex
	loading bool
	report  *models.WeatherReport
	coord   *models.Coordinate
	origin  string
	lastErr error
	gen     uint64 // bumped by every fetch; older fetches are superseded
	closed  bool
	fetches sync.WaitGroup
}

// New creates a dashboard. It shows the loading state until the first fetch completes.
func New(source datasource.WeatherSource, locator Locator, opts ...Option) *Controller {
	c := &Controller{
		source:   source,
		locator:  locator,
		fallback: DefaultLocation,
		logger:   zap.NewNop(),
		loading:  true,
	}
	for _, opt := range opts {
		opt(c)
	}
	c.ctx, c.cancel = context.WithCancel(context.Background())
	return c
}

// Activate resolves the starting position and fetches its weather in the background.
// Only the first call has an effect.
func (c *Controller) Activate() {
	c.once.Do(func() {
		c.mu.Lock()
		defer c.mu.Unlock()
		if c.closed {
			return
		}
		c.fetches.Add(1)
		go c.locate(c.gen)
	})
}

func (c *Controller) locate(gen uint64) {
	defer c.fetches.Done()

	coord, err := c.locator.Locate(c.ctx)
	origin := OriginGeolocation
	if err != nil {
		c.logger.Info("geolocation unavailable, using default location",
			zap.Error(err),
			zap.Stringer("coordinate", c.fallback),
		)
		coord, origin = c.fallback, OriginDefault
	}

	c.mu.Lock()
	if c.closed || gen != c.gen {
		// A selection arrived first and owns the display now
		c.mu.Unlock()
		return
	}
	gen = c.begin(coord, origin)
	c.mu.Unlock()

	c.fetch(gen, coord)
}

// Select shows the weather for coord, superseding whatever is displayed or loading
func (c *Controller) Select(coord models.Coordinate) {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.closed {
		return
	}
	gen := c.begin(coord, OriginSearch)
	c.fetches.Add(1)
	go func() {
		defer c.fetches.Done()
		c.fetch(gen, coord)
	}()
}

// begin must be called with mu held
func (c *Controller) begin(coord models.Coordinate, origin string) uint64 {
	c.gen++
	c.loading = true
	c.report = nil
	c.coord = &coord
	c.origin = origin
	return c.gen
}

func (c *Controller) fetch(gen uint64, coord models.Coordinate) {
	report, err := c.source.FetchReport(c.ctx, coord)

	c.mu.Lock()
	defer c.mu.Unlock()

	if gen != c.gen {
		c.logger.Debug("discarding superseded weather fetch", zap.Stringer("coordinate", coord))
		return
	}

	c.loading = false
	if err != nil {
		c.lastErr = err
		c.logger.Warn("error fetching weather data",
			zap.String("provider", c.source.Name()),
			zap.Stringer("coordinate", coord),
			zap.Error(err),
		)
		return
	}
	c.lastErr = nil
	c.report = &report
	c.logger.Info("weather updated",
		zap.Stringer("coordinate", coord),
		zap.String("place", report.Current.Place.City),
	)
}

// View returns a snapshot of the dashboard state
func (c *Controller) View() View {
	c.mu.Lock()
	defer c.mu.Unlock()

	v := View{Loading: c.loading, Origin: c.origin}
	if c.report != nil {
		report := *c.report
		report.Forecast = append([]models.ForecastDay(nil), c.report.Forecast...)
		v.Report = &report
	}
	if c.coord != nil {
		coord := *c.coord
		v.Coordinate = &coord
	}
	if c.lastErr != nil {
		v.LastError = c.lastErr.Error()
	}
	return v
}

// Wait blocks until the outstanding geolocation and fetches have finished
func (c *Controller) Wait() {
	c.fetches.Wait()
}

// Close cancels outstanding work and waits for it
func (c *Controller) Close() {
	c.mu.Lock()
	c.closed = true
	c.mu.Unlock()

	c.cancel()
	c.fetches.Wait()
}
