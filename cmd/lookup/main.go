package main

import (
	"bytes"
	"encoding/json"
	"errors"
	"flag"
	"fmt"
	"io"
	"net/http"
	"os"
	"time"

	"weather-dashboard/dashboard"
	"weather-dashboard/search"
)

type sessionState struct {
	ID        string         `json:"id"`
	Dashboard dashboard.View `json:"dashboard"`
	Search    search.Session `json:"search"`
	Display   string         `json:"display"`
}

type client struct {
	baseURL string
	http    *http.Client
}

func (c *client) call(method, path string, body any) (*sessionState, error) {
	var reader io.Reader
	if body != nil {
		data, err := json.Marshal(body)
		if err != nil {
			return nil, err
		}
		reader = bytes.NewReader(data)
	}

	req, err := http.NewRequest(method, c.baseURL+path, reader)
	if err != nil {
		return nil, err
	}
	req.Header.Set("Content-Type", "application/json")

	resp, err := c.http.Do(req)
	if err != nil {
		return nil, err
	}
	defer resp.Body.Close()

	if resp.StatusCode >= 300 {
		msg, _ := io.ReadAll(resp.Body)
		return nil, fmt.Errorf("%s %s: %s: %s", method, path, resp.Status, bytes.TrimSpace(msg))
	}

	var state sessionState
	if err := json.NewDecoder(resp.Body).Decode(&state); err != nil {
		return nil, err
	}
	return &state, nil
}

// waitFor polls the session until done reports true
func (c *client) waitFor(id string, timeout time.Duration, done func(*sessionState) bool) (*sessionState, error) {
	deadline := time.Now().Add(timeout)
	for {
		state, err := c.call(http.MethodGet, "/api/sessions/"+id, nil)
		if err != nil {
			return nil, err
		}
		if done(state) {
			return state, nil
		}
		if time.Now().After(deadline) {
			return state, errors.New("timed out waiting for the server")
		}
		time.Sleep(100 * time.Millisecond)
	}
}

func main() {
	server := flag.String("server", "http://localhost:8080", "Weather dashboard server URL")
	query := flag.String("query", "London", "Location to search for")
	delay := flag.Duration("delay", 50*time.Millisecond, "Pause between simulated keystrokes")
	flag.Parse()

	if err := run(&client{baseURL: *server, http: &http.Client{Timeout: 15 * time.Second}}, *query, *delay); err != nil {
		fmt.Printf("Error: %v\n", err)
		os.Exit(1)
	}
}

func run(c *client, query string, delay time.Duration) error {
	fmt.Println("Weather Dashboard Lookup")
	fmt.Println("========================")

	state, err := c.call(http.MethodPost, "/api/sessions", map[string]bool{"deny": true})
	if err != nil {
		return fmt.Errorf("creating session: %w", err)
	}
	id := state.ID
	defer c.call(http.MethodDelete, "/api/sessions/"+id, nil)

	// Type the query one key at a time, like a user would
	fmt.Printf("Searching for %q...\n", query)
	runes := []rune(query)
	for i := range runes {
		if _, err := c.call(http.MethodPost, "/api/sessions/"+id+"/search/input", map[string]string{"text": string(runes[:i+1])}); err != nil {
			return err
		}
		time.Sleep(delay)
	}
	// Let the debounce window close so the lookup for the full query fires
	time.Sleep(2 * search.DefaultDebounce)

	state, err = c.waitFor(id, 10*time.Second, func(s *sessionState) bool {
		return s.Search.IsOpen && !s.Search.IsLoading
	})
	if err != nil {
		return err
	}
	if len(state.Search.Candidates) == 0 {
		return fmt.Errorf("no results found for %q", query)
	}
	for i, cand := range state.Search.Candidates {
		fmt.Printf("  %d. %s (%s)\n", i+1, cand.DisplayName, cand.Coordinate)
	}

	state, err = c.call(http.MethodPost, "/api/sessions/"+id+"/search/select", map[string]int{"index": 0})
	if err != nil {
		return err
	}
	fmt.Printf("\nSelected %s\n", state.Display)

	state, err = c.waitFor(id, 15*time.Second, func(s *sessionState) bool {
		return !s.Dashboard.Loading && s.Dashboard.Origin == dashboard.OriginSearch
	})
	if err != nil {
		return err
	}
	if state.Dashboard.Report == nil {
		return fmt.Errorf("failed to fetch weather: %s", state.Dashboard.LastError)
	}

	report := state.Dashboard.Report
	cur := report.Current
	fmt.Printf("\nCurrent Weather in %s, %s\n", cur.Place.City, cur.Place.Country)
	fmt.Printf("  %d°C, %s\n", cur.TemperatureC, cur.Description)
	fmt.Printf("  Humidity: %d%%\n", cur.HumidityPct)
	fmt.Printf("  Wind Speed: %d m/s\n", cur.WindSpeedMps)
	fmt.Println("\n5-Day Forecast")
	for _, day := range report.Forecast {
		fmt.Printf("  %s  %3d°C  %s\n", day.Date, day.TemperatureC, day.Description)
	}
	return nil
}
