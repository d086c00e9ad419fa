package models

import "time"

// KindWeather is the durable-store kind holding one WeatherRecord per date key.
const KindWeather = "Weather"

// DateLayout and MonthLayout are the wire formats for weather keys.
const (
	DateLayout  = "2006-01-02"
	MonthLayout = "2006-01"
)

// Condition is the weather label derived from the season ladder.
type Condition string

const (
	Sunny  Condition = "Sunny"
	Cloudy Condition = "Cloudy"
	Rainy  Condition = "Rainy"
	Snowy  Condition = "Snowy"
	Windy  Condition = "Windy"
)

// Descriptions maps each condition to its fixed human-readable description.
var Descriptions = map[Condition]string{
	Sunny:  "Clear skies and warm temperatures.",
	Cloudy: "Overcast skies with mild temperatures.",
	Rainy:  "Showers expected throughout the day.",
	Snowy:  "Snowy weather, please bundle up!",
	Windy:  "Breezy with gusts of wind.",
}

// Season is derived from the month number.
type Season string

const (
	Winter Season = "Winter"
	Spring Season = "Spring"
	Summer Season = "Summer"
	Fall   Season = "Fall"
)

// SeasonOf returns the season for a calendar month.
func SeasonOf(m time.Month) Season {
	switch m {
	case time.December, time.January, time.February:
		return Winter
	case time.March, time.April, time.May:
		return Spring
	case time.June, time.July, time.August:
		return Summer
	default:
		return Fall
	}
}

// DaysInMonth returns the number of calendar days in the month, leap years included.
func DaysInMonth(year int, month time.Month) int {
	return time.Date(year, month+1, 0, 0, 0, 0, 0, time.UTC).Day()
}

// WeatherRecord is one day of synthetic weather.
type WeatherRecord struct {
	Date          string    `json:"date"`
	Temperature   int       `json:"temperature"`
	Wind          int       `json:"wind"`
	Precipitation int       `json:"precipitation"`
	Condition     Condition `json:"condition"`
	Description   string    `json:"description"`
}
