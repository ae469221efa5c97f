package openweathermap

import (
	"encoding/json"
	"fmt"
	"math"
	"time"

	"weather-dashboard/datasource"
	"weather-dashboard/models"
)

// slotsPerDay is the number of 3-hour slots in a day
const slotsPerDay = 8

// ForecastResponse represents the API response structure. Pointer fields
// distinguish a missing value from a zero one.
type ForecastResponse struct {
	City struct {
		Name     *string `json:"name"`
		Country  *string `json:"country"`
		Timezone int     `json:"timezone"` // shift in seconds from UTC
	} `json:"city"`
	List []ForecastSlot `json:"list"`
}

// ForecastSlot is one 3-hour entry of the forecast list
type ForecastSlot struct {
	Dt   *int64 `json:"dt"`
	Main struct {
		Temp     *float64 `json:"temp"`
		Humidity *float64 `json:"humidity"`
	} `json:"main"`
	Weather []struct {
		Description *string `json:"description"`
		Icon        *string `json:"icon"`
	} `json:"weather"`
	Wind struct {
		Speed *float64 `json:"speed"`
	} `json:"wind"`
}

// ParseForecast decodes a forecast payload and reshapes it into a report
func ParseForecast(data []byte) (models.WeatherReport, error) {
	var resp ForecastResponse
	if err := json.Unmarshal(data, &resp); err != nil {
		return models.WeatherReport{}, fmt.Errorf("%w: %v", datasource.ErrMalformedPayload, err)
	}
	return BuildReport(resp)
}

// BuildReport selects slot 0 as the current conditions and samples one slot
// per day for the following days.
func BuildReport(resp ForecastResponse) (models.WeatherReport, error) {
	if resp.City.Name == nil {
		return models.WeatherReport{}, datasource.Malformed("city.name")
	}
	if resp.City.Country == nil {
		return models.WeatherReport{}, datasource.Malformed("city.country")
	}
	if len(resp.List) == 0 {
		return models.WeatherReport{}, datasource.Malformed("list")
	}

	now := resp.List[0]
	if now.Main.Humidity == nil {
		return models.WeatherReport{}, datasource.Malformed("list[0].main.humidity")
	}
	if now.Wind.Speed == nil {
		return models.WeatherReport{}, datasource.Malformed("list[0].wind.speed")
	}
	temp, desc, icon, err := slotConditions(now, 0)
	if err != nil {
		return models.WeatherReport{}, err
	}

	report := models.WeatherReport{
		Current: models.CurrentConditions{
			Place: models.Place{
				City:    *resp.City.Name,
				Country: *resp.City.Country,
			},
			TemperatureC: temp,
			Description:  desc,
			IconCode:     icon,
			HumidityPct:  roundHalfUp(*now.Main.Humidity),
			WindSpeedMps: roundHalfUp(*now.Wind.Speed),
		},
	}

	indices := DailySlots(len(resp.List))
	if len(indices) < models.ForecastDays {
		return models.WeatherReport{}, datasource.Malformed(
			fmt.Sprintf("list has %d slots, not enough for %d days", len(resp.List), models.ForecastDays))
	}

	zone := time.FixedZone("", resp.City.Timezone)
	report.Forecast = make([]models.ForecastDay, 0, models.ForecastDays)
	for _, i := range indices {
		slot := resp.List[i]
		if slot.Dt == nil {
			return models.WeatherReport{}, datasource.Malformed(fmt.Sprintf("list[%d].dt", i))
		}
		temp, desc, icon, err := slotConditions(slot, i)
		if err != nil {
			return models.WeatherReport{}, err
		}
		report.Forecast = append(report.Forecast, models.ForecastDay{
			Date:         time.Unix(*slot.Dt, 0).In(zone).Format("Mon"),
			TemperatureC: temp,
			Description:  desc,
			IconCode:     icon,
		})
	}

	return report, nil
}

// DailySlots returns the indices sampled for the daily forecast out of n slots:
// every slotsPerDay-th slot plus the final one, without slot 0, capped at
// models.ForecastDays entries. Near the end of the window the final slot can
// sit closer than a day to its predecessor.
func DailySlots(n int) []int {
	var indices []int
	for i := 1; i < n && len(indices) < models.ForecastDays; i++ {
		if i%slotsPerDay == 0 || i == n-1 {
			indices = append(indices, i)
		}
	}
	return indices
}

func slotConditions(slot ForecastSlot, i int) (temp int, desc, icon string, err error) {
	if slot.Main.Temp == nil {
		return 0, "", "", datasource.Malformed(fmt.Sprintf("list[%d].main.temp", i))
	}
	if len(slot.Weather) == 0 {
		return 0, "", "", datasource.Malformed(fmt.Sprintf("list[%d].weather", i))
	}
	w := slot.Weather[0]
	if w.Description == nil || w.Icon == nil {
		return 0, "", "", datasource.Malformed(fmt.Sprintf("list[%d].weather[0]", i))
	}
	return roundHalfUp(*slot.Main.Temp), *w.Description, *w.Icon, nil
}

// roundHalfUp rounds to the nearest integer with halves going towards +Inf,
// so -2.5 becomes -2.
func roundHalfUp(v float64) int {
	return int(math.Floor(v + 0.5))
}
