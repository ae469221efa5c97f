package api

import (
	"html/template"
	"net/http"

	"go.uber.org/zap"

	"weather-dashboard/dashboard"
	"weather-dashboard/models"
	"weather-dashboard/search"
)

var dashboardTemplate = template.Must(template.New("dashboard").Funcs(template.FuncMap{
	"icon": models.IconURL,
}).Parse(`<!DOCTYPE html>
<html lang="en">
<head>
<meta charset="utf-8">
<title>Weather Dashboard</title>
</head>
<body>
<main>
<h1>Weather Dashboard</h1>
<section class="search">
<input type="text" placeholder="Search for a location..." value="{{.Display}}"{{if .Search.Focused}} autofocus{{end}}>
{{- if .Search.IsOpen}}
<ul class="dropdown">
{{- if .Search.IsLoading}}
<li class="loading">Searching...</li>
{{- else if not .Search.Candidates}}
<li class="empty">No results found</li>
{{- else}}{{range $i, $c := .Search.Candidates}}
<li data-index="{{$i}}">{{$c.DisplayName}}</li>
{{- end}}{{end}}
</ul>
{{- end}}
</section>
{{- if .Dashboard.Loading}}
<div class="loading">Loading...</div>
{{- else}}{{with .Dashboard.Report}}
<section class="current">
<h2>Current Weather in {{.Current.Place.City}}, {{.Current.Place.Country}}</h2>
<img src="{{icon .Current.IconCode true}}" alt="{{.Current.Description}}" width="100" height="100">
<p class="temperature">{{.Current.TemperatureC}}°C</p>
<p class="description">{{.Current.Description}}</p>
<p>Humidity: {{.Current.HumidityPct}}%</p>
<p>Wind Speed: {{.Current.WindSpeedMps}} m/s</p>
</section>
<section class="forecast">
<h2>5-Day Forecast</h2>
{{- range .Forecast}}
<div class="day">
<p>{{.Date}}</p>
<img src="{{icon .IconCode false}}" alt="{{.Description}}" width="50" height="50">
<p>{{.TemperatureC}}°C</p>
<p>{{.Description}}</p>
</div>
{{- end}}
</section>
{{- end}}{{end}}
</main>
</body>
</html>
`))

type pageData struct {
	Display   string
	Search    search.Session
	Dashboard dashboard.View
}

// handleRenderSession renders the session as an HTML page
func (s *Server) handleRenderSession(w http.ResponseWriter, r *http.Request) {
	sess, ok := s.session(w, r)
	if !ok {
		return
	}

	ss := sess.Search.Session()
	data := pageData{
		Display:   ss.Display(),
		Search:    ss,
		Dashboard: sess.Dashboard.View(),
	}

	w.Header().Set("Content-Type", "text/html; charset=utf-8")
	if err := dashboardTemplate.Execute(w, data); err != nil {
		s.logger.Error("failed to render dashboard", zap.Error(err))
	}
}
