package api

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net"
	"net/http"
	"net/netip"
	"strconv"
	"strings"
	"time"

	"github.com/gorilla/mux"
	"go.uber.org/zap"

	"weather-dashboard/dashboard"
	"weather-dashboard/datasource"
	"weather-dashboard/geolocation"
	"weather-dashboard/models"
	"weather-dashboard/search"
)

// Server represents the API server
type Server struct {
	sessions    *SessionStore
	weather     datasource.WeatherSource
	geocoder    datasource.Geocoder
	ipLookupURL string
	logger      *zap.Logger
	router      *mux.Router
	server      *http.Server
}

// NewServer creates a new API server
func NewServer(sessions *SessionStore, ipLookupURL string, port int) *Server {
	s := &Server{
		sessions:    sessions,
		weather:     sessions.cfg.Weather,
		geocoder:    sessions.cfg.Geocoder,
		ipLookupURL: ipLookupURL,
		logger:      sessions.cfg.Logger,
		router:      mux.NewRouter(),
	}
	s.server = &http.Server{
		Addr:              fmt.Sprintf(":%d", port),
		Handler:           s.router,
		ReadHeaderTimeout: 5 * time.Second,
	}

	s.router.Use(RequestID, AccessLog(s.logger))

	api := s.router.PathPrefix("/api").Subrouter()
	api.HandleFunc("/health", s.handleHealthCheck).Methods(http.MethodGet)

	// Stateless provider shims
	api.HandleFunc("/weather", s.handleGetWeather).Methods(http.MethodGet)
	api.HandleFunc("/geocode", s.handleGeocode).Methods(http.MethodGet)

	// Dashboard sessions
	api.HandleFunc("/sessions", s.handleCreateSession).Methods(http.MethodPost)
	api.HandleFunc("/sessions/{id}", s.handleGetSession).Methods(http.MethodGet)
	api.HandleFunc("/sessions/{id}", s.handleDeleteSession).Methods(http.MethodDelete)
	api.HandleFunc("/sessions/{id}/view", s.handleRenderSession).Methods(http.MethodGet)
	api.HandleFunc("/sessions/{id}/search/input", s.handleSearchInput).Methods(http.MethodPost)
	api.HandleFunc("/sessions/{id}/search/select", s.handleSearchSelect).Methods(http.MethodPost)
	api.HandleFunc("/sessions/{id}/search/dismiss", s.handleSearchDismiss).Methods(http.MethodPost)
	api.HandleFunc("/sessions/{id}/search/clear", s.handleSearchClear).Methods(http.MethodPost)

	return s
}

// Handler returns the routed handler
func (s *Server) Handler() http.Handler {
	return s.router
}

// Start begins the API server
func (s *Server) Start() error {
	s.logger.Info("starting API server", zap.String("addr", s.server.Addr))
	return s.server.ListenAndServe()
}

// Shutdown stops accepting requests and waits for active ones
func (s *Server) Shutdown(ctx context.Context) error {
	return s.server.Shutdown(ctx)
}

type sessionResponse struct {
	ID        string         `json:"id"`
	Dashboard dashboard.View `json:"dashboard"`
	Search    search.Session `json:"search"`
	Display   string         `json:"display"`
	Stats     search.Stats   `json:"stats"`
}

func newSessionResponse(sess *Session) sessionResponse {
	ss := sess.Search.Session()
	return sessionResponse{
		ID:        sess.ID,
		Dashboard: sess.Dashboard.View(),
		Search:    ss,
		Display:   ss.Display(),
		Stats:     sess.Search.Stats(),
	}
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	json.NewEncoder(w).Encode(v)
}

func writeError(w http.ResponseWriter, status int, msg string) {
	writeJSON(w, status, map[string]string{"error": msg})
}

// handleGetWeather fetches a report for lat/lon directly from the provider
func (s *Server) handleGetWeather(w http.ResponseWriter, r *http.Request) {
	lat, err := strconv.ParseFloat(r.URL.Query().Get("lat"), 64)
	if err != nil {
		writeError(w, http.StatusBadRequest, "invalid lat parameter")
		return
	}
	lon, err := strconv.ParseFloat(r.URL.Query().Get("lon"), 64)
	if err != nil {
		writeError(w, http.StatusBadRequest, "invalid lon parameter")
		return
	}
	coord := models.Coordinate{Latitude: lat, Longitude: lon}
	if !coord.Valid() {
		writeError(w, http.StatusBadRequest, "coordinate out of range")
		return
	}

	report, err := s.weather.FetchReport(r.Context(), coord)
	if err != nil {
		s.logger.Warn("weather fetch failed", zap.Stringer("coordinate", coord), zap.Error(err))
		writeError(w, http.StatusBadGateway, fmt.Sprintf("Failed to fetch weather: %v", err))
		return
	}
	writeJSON(w, http.StatusOK, report)
}

// handleGeocode resolves q directly through the provider
func (s *Server) handleGeocode(w http.ResponseWriter, r *http.Request) {
	query := strings.TrimSpace(r.URL.Query().Get("q"))
	if query == "" {
		writeJSON(w, http.StatusOK, map[string]any{"candidates": []models.LocationCandidate{}})
		return
	}

	candidates, err := s.geocoder.Search(r.Context(), query)
	if err != nil {
		s.logger.Warn("geocode failed", zap.String("query", query), zap.Error(err))
		writeError(w, http.StatusBadGateway, fmt.Sprintf("Failed to search locations: %v", err))
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{"candidates": candidates})
}

type createSessionRequest struct {
	Position *models.Coordinate `json:"position"`
	Deny     bool               `json:"deny"`
}

// handleCreateSession starts a dashboard. The body says how the client
// answered the location prompt; without one the client address is looked up.
func (s *Server) handleCreateSession(w http.ResponseWriter, r *http.Request) {
	var req createSessionRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil && !errors.Is(err, io.EOF) {
		writeError(w, http.StatusBadRequest, "invalid request body")
		return
	}
	if req.Position != nil && !req.Position.Valid() {
		writeError(w, http.StatusBadRequest, "coordinate out of range")
		return
	}

	var platform geolocation.Platform
	switch {
	case req.Deny:
		platform = geolocation.Denied{}
	case req.Position != nil:
		platform = geolocation.Fixed(*req.Position)
	case s.ipLookupURL != "":
		platform = geolocation.NewIPLookup(s.ipLookupURL, publicClientAddr(r))
	}

	sess := s.sessions.Create(platform)
	writeJSON(w, http.StatusCreated, newSessionResponse(sess))
}

func (s *Server) session(w http.ResponseWriter, r *http.Request) (*Session, bool) {
	id := mux.Vars(r)["id"]
	sess, exists := s.sessions.Get(id)
	if !exists {
		writeError(w, http.StatusNotFound, fmt.Sprintf("No session found: %s", id))
	}
	return sess, exists
}

func (s *Server) handleGetSession(w http.ResponseWriter, r *http.Request) {
	sess, ok := s.session(w, r)
	if !ok {
		return
	}
	writeJSON(w, http.StatusOK, newSessionResponse(sess))
}

func (s *Server) handleDeleteSession(w http.ResponseWriter, r *http.Request) {
	id := mux.Vars(r)["id"]
	if !s.sessions.Delete(id) {
		writeError(w, http.StatusNotFound, fmt.Sprintf("No session found: %s", id))
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

func (s *Server) handleSearchInput(w http.ResponseWriter, r *http.Request) {
	sess, ok := s.session(w, r)
	if !ok {
		return
	}
	var req struct {
		Text string `json:"text"`
	}
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, "invalid request body")
		return
	}
	sess.Search.Input(req.Text)
	writeJSON(w, http.StatusOK, newSessionResponse(sess))
}

func (s *Server) handleSearchSelect(w http.ResponseWriter, r *http.Request) {
	sess, ok := s.session(w, r)
	if !ok {
		return
	}
	var req struct {
		Index *int `json:"index"`
	}
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil || req.Index == nil {
		writeError(w, http.StatusBadRequest, "invalid request body")
		return
	}
	if err := sess.Search.Select(*req.Index); err != nil {
		if errors.Is(err, search.ErrNoCandidate) {
			writeError(w, http.StatusConflict, err.Error())
			return
		}
		writeError(w, http.StatusInternalServerError, err.Error())
		return
	}
	writeJSON(w, http.StatusOK, newSessionResponse(sess))
}

func (s *Server) handleSearchDismiss(w http.ResponseWriter, r *http.Request) {
	sess, ok := s.session(w, r)
	if !ok {
		return
	}
	sess.Search.Dismiss()
	writeJSON(w, http.StatusOK, newSessionResponse(sess))
}

func (s *Server) handleSearchClear(w http.ResponseWriter, r *http.Request) {
	sess, ok := s.session(w, r)
	if !ok {
		return
	}
	sess.Search.Clear()
	writeJSON(w, http.StatusOK, newSessionResponse(sess))
}

// handleHealthCheck provides a simple health check endpoint
func (s *Server) handleHealthCheck(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, map[string]any{
		"status":    "ok",
		"sessions":  s.sessions.Count(),
		"timestamp": time.Now().Format(time.RFC3339),
	})
}

// publicClientAddr returns the client address worth geolocating, or "" when it
// is private and the lookup should fall back to the server's own address.
func publicClientAddr(r *http.Request) string {
	host := r.RemoteAddr
	if fwd := r.Header.Get("X-Forwarded-For"); fwd != "" {
		host = strings.TrimSpace(strings.Split(fwd, ",")[0])
	} else if h, _, err := net.SplitHostPort(host); err == nil {
		host = h
	}

	addr, err := netip.ParseAddr(host)
	if err != nil || addr.IsLoopback() || addr.IsPrivate() || addr.IsUnspecified() || addr.IsLinkLocalUnicast() {
		return ""
	}
	return addr.String()
}
