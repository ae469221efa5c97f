package api

import (
	"sync"
	"sync/atomic"
	"time"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"weather-dashboard/dashboard"
	"weather-dashboard/datasource"
	"weather-dashboard/geolocation"
	"weather-dashboard/models"
	"weather-dashboard/search"
)

// SessionConfig holds what every new session is built from
type SessionConfig struct {
	Weather            datasource.WeatherSource
	Geocoder           datasource.Geocoder
	Fallback           models.Coordinate
	Debounce           time.Duration
	GeolocationTimeout time.Duration
	Logger             *zap.Logger
}

// Session pairs one dashboard with its search control
type Session struct {
	ID        string
	Created   time.Time
	Dashboard *dashboard.Controller
	Search    *search.Controller

	lastSeen atomic.Int64 // unix nanoseconds
}

func (s *Session) touch() {
	s.lastSeen.Store(time.Now().UnixNano())
}

// LastSeen returns when the session was last accessed
func (s *Session) LastSeen() time.Time {
	return time.Unix(0, s.lastSeen.Load())
}

func (s *Session) close() {
	s.Search.Close()
	s.Dashboard.Close()
}

// SessionStore holds the live sessions by ID
type SessionStore struct {
	cfg   SessionConfig
	data  map[string]*Session
	mutex sync.RWMutex
}

// NewSessionStore creates an empty in-memory session store
func NewSessionStore(cfg SessionConfig) *SessionStore {
	if cfg.Logger == nil {
		cfg.Logger = zap.NewNop()
	}
	if cfg.Debounce <= 0 {
		cfg.Debounce = search.DefaultDebounce
	}
	if cfg.Fallback == (models.Coordinate{}) {
		cfg.Fallback = dashboard.DefaultLocation
	}
	return &SessionStore{
		cfg:  cfg,
		data: make(map[string]*Session),
	}
}

// Create starts a session whose dashboard locates itself through platform
func (s *SessionStore) Create(platform geolocation.Platform) *Session {
	id := uuid.New().String()
	logger := s.cfg.Logger.With(zap.String("session", id))

	dash := dashboard.New(s.cfg.Weather,
		geolocation.NewLocator(platform, s.cfg.GeolocationTimeout),
		dashboard.WithFallback(s.cfg.Fallback),
		dashboard.WithLogger(logger),
	)
	sess := &Session{
		ID:        id,
		Created:   time.Now(),
		Dashboard: dash,
		Search: search.New(s.cfg.Geocoder, dash.Select,
			search.WithDebounce(s.cfg.Debounce),
			search.WithLogger(logger),
		),
	}
	sess.touch()

	s.mutex.Lock()
	s.data[id] = sess
	s.mutex.Unlock()

	dash.Activate()
	logger.Info("session created")
	return sess
}

// Get retrieves a session and marks it as seen
func (s *SessionStore) Get(id string) (*Session, bool) {
	s.mutex.RLock()
	sess, exists := s.data[id]
	s.mutex.RUnlock()

	if exists {
		sess.touch()
	}
	return sess, exists
}

// Delete closes and removes a session
func (s *SessionStore) Delete(id string) bool {
	s.mutex.Lock()
	sess, exists := s.data[id]
	delete(s.data, id)
	s.mutex.Unlock()

	if exists {
		sess.close()
	}
	return exists
}

// Count returns the number of live sessions
func (s *SessionStore) Count() int {
	s.mutex.RLock()
	defer s.mutex.RUnlock()
	return len(s.data)
}

// PruneIdle removes sessions not accessed within maxAge
func (s *SessionStore) PruneIdle(maxAge time.Duration) int {
	cutoff := time.Now().Add(-maxAge)

	var stale []*Session
	s.mutex.Lock()
	for id, sess := range s.data {
		if sess.LastSeen().Before(cutoff) {
			stale = append(stale, sess)
			delete(s.data, id)
		}
	}
	s.mutex.Unlock()

	for _, sess := range stale {
		sess.close()
	}
	if len(stale) > 0 {
		s.cfg.Logger.Info("pruned idle sessions", zap.Int("count", len(stale)))
	}
	return len(stale)
}

// Close shuts every session down
func (s *SessionStore) Close() {
	s.mutex.Lock()
	sessions := s.data
	s.data = make(map[string]*Session)
	s.mutex.Unlock()

	for _, sess := range sessions {
		sess.close()
	}
}
