package dashboard

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/davecgh/go-spew/spew"
	"go.uber.org/zap/zaptest"

	"weather-dashboard/geolocation"
	"weather-dashboard/models"
)

type fetchResult struct {
	report models.WeatherReport
	err    error
}

type fetchCall struct {
	coord models.Coordinate
	reply chan fetchResult
}

type fakeSource struct {
	calls chan fetchCall
}

func newFakeSource() *fakeSource {
	return &fakeSource{calls: make(chan fetchCall, 16)}
}

func (s *fakeSource) Name() string { return "fake" }

func (s *fakeSource) FetchReport(ctx context.Context, coord models.Coordinate) (models.WeatherReport, error) {
	c := fetchCall{coord: coord, reply: make(chan fetchResult, 1)}
	s.calls <- c
	select {
	case r := <-c.reply:
		return r.report, r.err
	case <-ctx.Done():
		return models.WeatherReport{}, ctx.Err()
	}
}

func (s *fakeSource) next(t *testing.T) fetchCall {
	t.Helper()
	select {
	case c := <-s.calls:
		return c
	case <-time.After(2 * time.Second):
		t.Fatal("expected a weather fetch")
		return fetchCall{}
	}
}

func (s *fakeSource) none(t *testing.T) {
	t.Helper()
	select {
	case c := <-s.calls:
		t.Fatalf("unexpected weather fetch for %s", c.coord)
	default:
	}
}

type gateLocator struct {
	release chan struct{}
	coord   models.Coordinate
	err     error
}

func (l *gateLocator) Locate(ctx context.Context) (models.Coordinate, error) {
	select {
	case <-l.release:
	case <-ctx.Done():
		return models.Coordinate{}, ctx.Err()
	}
	return l.coord, l.err
}

func reportFor(city string) models.WeatherReport {
	return models.WeatherReport{
		Current: models.CurrentConditions{
			Place:        models.Place{City: city, Country: "XX"},
			TemperatureC: 12,
			Description:  "light rain",
			IconCode:     "10d",
			HumidityPct:  80,
			WindSpeedMps: 4,
		},
		Forecast: make([]models.ForecastDay, models.ForecastDays),
	}
}

func waitFor(t *testing.T, cond func() bool) {
	t.Helper()
	deadline := time.Now().Add(2 * time.Second)
	for !cond() {
		if time.Now().After(deadline) {
			t.Fatal("condition not met in time")
		}
		time.Sleep(time.Millisecond)
	}
}

var paris = models.Coordinate{Latitude: 48.8566, Longitude: 2.3522}

func TestActivateUsesGeolocation(t *testing.T) {
	src := newFakeSource()
	d := New(src, geolocation.NewLocator(geolocation.Fixed(paris), time.Second), WithLogger(zaptest.NewLogger(t)))
	defer d.Close()

	if v := d.View(); !v.Loading || v.Report != nil {
		t.Fatalf("expected initial loading state:\n%s", spew.Sdump(v))
	}

	d.Activate()
	d.Activate()

	c := src.next(t)
	if c.coord != paris {
		t.Fatalf("expected fetch for %s, got %s", paris, c.coord)
	}
	if v := d.View(); !v.Loading || v.Report != nil {
		t.Fatalf("expected loading while the fetch is outstanding:\n%s", spew.Sdump(v))
	}

	c.reply <- fetchResult{report: reportFor("Paris")}
	d.Wait()
	src.none(t)

	v := d.View()
	if v.Loading || v.Report == nil || v.Report.Current.Place.City != "Paris" {
		t.Fatalf("expected Paris report:\n%s", spew.Sdump(v))
	}
	if v.Origin != OriginGeolocation || *v.Coordinate != paris {
		t.Errorf("unexpected origin %q / coordinate %v", v.Origin, v.Coordinate)
	}
}

func TestActivateFallsBackWhenDenied(t *testing.T) {
	src := newFakeSource()
	d := New(src, geolocation.NewLocator(geolocation.Denied{}, time.Second), WithLogger(zaptest.NewLogger(t)))
	defer d.Close()

	d.Activate()
	c := src.next(t)
	want := models.Coordinate{Latitude: 51.5074, Longitude: -0.1278}
	if c.coord != want {
		t.Fatalf("expected fetch for the default location, got %s", c.coord)
	}
	if c.coord == (models.Coordinate{}) {
		t.Fatal("fetched weather for an empty coordinate")
	}

	c.reply <- fetchResult{report: reportFor("London")}
	d.Wait()
	src.none(t)

	v := d.View()
	if v.Report == nil || v.Origin != OriginDefault {
		t.Fatalf("expected default location report:\n%s", spew.Sdump(v))
	}
}

func TestActivateFallsBackWhenUnsupported(t *testing.T) {
	src := newFakeSource()
	fallback := models.Coordinate{Latitude: 40.7128, Longitude: -74.006}
	d := New(src, geolocation.NewLocator(nil, time.Second), WithFallback(fallback))
	defer d.Close()

	d.Activate()
	c := src.next(t)
	if c.coord != fallback {
		t.Fatalf("expected fetch for %s, got %s", fallback, c.coord)
	}
	c.reply <- fetchResult{report: reportFor("New York")}
}

func TestFetchFailureShowsNothing(t *testing.T) {
	src := newFakeSource()
	d := New(src, geolocation.NewLocator(geolocation.Fixed(paris), time.Second))
	defer d.Close()

	d.Activate()
	src.next(t).reply <- fetchResult{err: errors.New("status 401")}
	d.Wait()

	v := d.View()
	if v.Loading || v.Report != nil {
		t.Fatalf("expected no report and no loading indicator:\n%s", spew.Sdump(v))
	}
	if v.LastError == "" {
		t.Error("expected the failure to be recorded")
	}
}

func TestSelectSupersedesPreviousFetch(t *testing.T) {
	src := newFakeSource()
	d := New(src, geolocation.NewLocator(geolocation.Denied{}, time.Second), WithLogger(zaptest.NewLogger(t)))
	defer d.Close()

	d.Activate()
	first := src.next(t)

	d.Select(paris)
	second := src.next(t)
	if second.coord != paris {
		t.Fatalf("expected fetch for %s, got %s", paris, second.coord)
	}

	second.reply <- fetchResult{report: reportFor("Paris")}
	waitFor(t, func() bool { return !d.View().Loading })

	first.reply <- fetchResult{report: reportFor("London")}
	d.Wait()

	v := d.View()
	if v.Report == nil || v.Report.Current.Place.City != "Paris" || v.Origin != OriginSearch {
		t.Fatalf("superseded fetch overwrote the selection:\n%s", spew.Sdump(v))
	}
}

func TestSelectBeforeGeolocationResolves(t *testing.T) {
	src := newFakeSource()
	loc := &gateLocator{release: make(chan struct{}), coord: models.Coordinate{Latitude: 1, Longitude: 2}}
	d := New(src, loc)
	defer d.Close()

	d.Activate()
	d.Select(paris)
	src.next(t).reply <- fetchResult{report: reportFor("Paris")}

	close(loc.release)
	d.Wait()
	src.none(t)

	if v := d.View(); v.Report == nil || *v.Coordinate != paris {
		t.Fatalf("expected the selection to stay displayed:\n%s", spew.Sdump(v))
	}
}

func TestSelectShowsLoading(t *testing.T) {
	src := newFakeSource()
	d := New(src, geolocation.NewLocator(geolocation.Fixed(paris), time.Second))
	defer d.Close()

	d.Activate()
	src.next(t).reply <- fetchResult{report: reportFor("Paris")}
	d.Wait()

	berlin := models.Coordinate{Latitude: 52.52, Longitude: 13.405}
	d.Select(berlin)
	c := src.next(t)
	if v := d.View(); !v.Loading || v.Report != nil {
		t.Fatalf("expected loading without the old report:\n%s", spew.Sdump(v))
	}
	c.reply <- fetchResult{report: reportFor("Berlin")}
	d.Wait()
	if v := d.View(); v.Report.Current.Place.City != "Berlin" {
		t.Fatalf("expected Berlin:\n%s", spew.Sdump(v))
	}
}
