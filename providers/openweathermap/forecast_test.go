package openweathermap

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/davecgh/go-spew/spew"

	"weather-dashboard/datasource"
	"weather-dashboard/models"
)

// 2024-01-01T00:00:00Z, a Monday
const baseUnix = 1704067200

// fixture builds a payload of n slots where slot i has temperature i+0.4
func fixture(n int, timezone int) map[string]any {
	list := make([]any, 0, n)
	for i := 0; i < n; i++ {
		list = append(list, map[string]any{
			"dt":   baseUnix + i*3*3600,
			"main": map[string]any{"temp": float64(i) + 0.4, "humidity": 81},
			"weather": []any{map[string]any{
				"description": fmt.Sprintf("slot %d", i),
				"icon":        fmt.Sprintf("%02dd", i%10),
			}},
			"wind": map[string]any{"speed": 4.5},
		})
	}
	return map[string]any{
		"city": map[string]any{"name": "London", "country": "GB", "timezone": timezone},
		"list": list,
	}
}

func encode(t *testing.T, v any) []byte {
	t.Helper()
	data, err := json.Marshal(v)
	if err != nil {
		t.Fatal(err)
	}
	return data
}

func TestParseForecast(t *testing.T) {
	report, err := ParseForecast(encode(t, fixture(40, 0)))
	if err != nil {
		t.Fatal(err)
	}

	want := models.CurrentConditions{
		Place:        models.Place{City: "London", Country: "GB"},
		TemperatureC: 0,
		Description:  "slot 0",
		IconCode:     "00d",
		HumidityPct:  81,
		WindSpeedMps: 5,
	}
	if report.Current != want {
		t.Errorf("unexpected current conditions:\n%s", spew.Sdump(report.Current))
	}

	if len(report.Forecast) != models.ForecastDays {
		t.Fatalf("expected %d forecast days, got %d", models.ForecastDays, len(report.Forecast))
	}

	wantTemps := []int{8, 16, 24, 32, 39}
	wantDates := []string{"Tue", "Wed", "Thu", "Fri", "Fri"}
	for i, day := range report.Forecast {
		if day.TemperatureC != wantTemps[i] {
			t.Errorf("day %d: expected slot %d, got temperature %d", i, wantTemps[i], day.TemperatureC)
		}
		if day.Date != wantDates[i] {
			t.Errorf("day %d: expected %s, got %s", i, wantDates[i], day.Date)
		}
		if day.Description == report.Current.Description {
			t.Errorf("day %d repeats the current slot", i)
		}
		if i > 0 && day.TemperatureC <= report.Forecast[i-1].TemperatureC {
			t.Errorf("forecast not chronological:\n%s", spew.Sdump(report.Forecast))
		}
	}
}

func TestParseForecastUsesCityTimezone(t *testing.T) {
	report, err := ParseForecast(encode(t, fixture(40, 3*3600)))
	if err != nil {
		t.Fatal(err)
	}
	if got := report.Forecast[4].Date; got != "Sat" {
		t.Errorf("expected last slot to fall on Sat in UTC+3, got %s", got)
	}
}

func TestDailySlots(t *testing.T) {
	cases := []struct {
		n    int
		want []int
	}{
		{40, []int{8, 16, 24, 32, 39}},
		{41, []int{8, 16, 24, 32, 40}},
		{34, []int{8, 16, 24, 32, 33}},
		{33, []int{8, 16, 24, 32}},
		{1, nil},
	}
	for _, tc := range cases {
		got := DailySlots(tc.n)
		if fmt.Sprint(got) != fmt.Sprint(tc.want) {
			t.Errorf("DailySlots(%d) = %v, want %v", tc.n, got, tc.want)
		}
	}
}

func TestParseForecastMalformed(t *testing.T) {
	cases := map[string]func(p map[string]any){
		"missing city name": func(p map[string]any) {
			delete(p["city"].(map[string]any), "name")
		},
		"empty list": func(p map[string]any) {
			p["list"] = []any{}
		},
		"short list": func(p map[string]any) {
			p["list"] = p["list"].([]any)[:20]
		},
		"missing current humidity": func(p map[string]any) {
			slot := p["list"].([]any)[0].(map[string]any)
			delete(slot["main"].(map[string]any), "humidity")
		},
		"missing sampled temperature": func(p map[string]any) {
			slot := p["list"].([]any)[16].(map[string]any)
			delete(slot["main"].(map[string]any), "temp")
		},
		"missing sampled weather": func(p map[string]any) {
			slot := p["list"].([]any)[39].(map[string]any)
			slot["weather"] = []any{}
		},
		"missing sampled timestamp": func(p map[string]any) {
			delete(p["list"].([]any)[8].(map[string]any), "dt")
		},
	}

	for name, mutate := range cases {
		t.Run(name, func(t *testing.T) {
			payload := fixture(40, 0)
			mutate(payload)
			_, err := ParseForecast(encode(t, payload))
			if !errors.Is(err, datasource.ErrMalformedPayload) {
				t.Fatalf("expected ErrMalformedPayload, got %v", err)
			}
		})
	}

	if _, err := ParseForecast([]byte("not json")); !errors.Is(err, datasource.ErrMalformedPayload) {
		t.Fatalf("expected ErrMalformedPayload for invalid JSON, got %v", err)
	}
}

func TestParseForecastIgnoresUnsampledSlots(t *testing.T) {
	payload := fixture(40, 0)
	slot := payload["list"].([]any)[5].(map[string]any)
	delete(slot, "main")
	if _, err := ParseForecast(encode(t, payload)); err != nil {
		t.Fatalf("unsampled slot should not matter: %v", err)
	}
}

func TestRoundHalfUp(t *testing.T) {
	cases := map[float64]int{2.5: 3, 2.49: 2, -2.5: -2, -2.51: -3, 0: 0}
	for in, want := range cases {
		if got := roundHalfUp(in); got != want {
			t.Errorf("roundHalfUp(%v) = %d, want %d", in, got, want)
		}
	}
}

func TestFetchReport(t *testing.T) {
	var query map[string]string
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path != "/data/2.5/forecast" {
			http.NotFound(w, r)
			return
		}
		q := r.URL.Query()
		query = map[string]string{
			"lat": q.Get("lat"), "lon": q.Get("lon"), "appid": q.Get("appid"), "units": q.Get("units"),
		}
		w.Header().Set("Content-Type", "application/json")
		json.NewEncoder(w).Encode(fixture(40, 0))
	}))
	defer srv.Close()

	client := NewClient("secret", srv.URL, nil)
	report, err := client.FetchReport(context.Background(), models.Coordinate{Latitude: 51.5074, Longitude: -0.1278})
	if err != nil {
		t.Fatal(err)
	}
	if report.Current.Place.City != "London" {
		t.Errorf("unexpected report:\n%s", spew.Sdump(report))
	}

	want := map[string]string{"lat": "51.5074", "lon": "-0.1278", "appid": "secret", "units": "metric"}
	for k, v := range want {
		if query[k] != v {
			t.Errorf("query %s = %q, want %q", k, query[k], v)
		}
	}
}

func TestFetchReportErrors(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		http.Error(w, `{"cod":401,"message":"Invalid API key"}`, http.StatusUnauthorized)
	}))
	defer srv.Close()

	coord := models.Coordinate{Latitude: 1, Longitude: 2}

	_, err := NewClient("bad", srv.URL, nil).FetchReport(context.Background(), coord)
	var apiErr *datasource.APIError
	if !errors.As(err, &apiErr) {
		t.Fatalf("expected APIError, got %v", err)
	}
	if apiErr.StatusCode != http.StatusUnauthorized {
		t.Errorf("expected status 401, got %d", apiErr.StatusCode)
	}

	_, err = NewClient("", srv.URL, nil).FetchReport(context.Background(), coord)
	if !errors.Is(err, datasource.ErrMissingAPIKey) {
		t.Fatalf("expected ErrMissingAPIKey, got %v", err)
	}
}
