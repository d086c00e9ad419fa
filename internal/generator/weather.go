package generator

import (
	"time"

	"github.com/kjstillabower/apiverse/internal/models"
)

var seasonTemperatures = map[models.Season][2]int{
	models.Winter: {-10, 5},
	models.Spring: {5, 20},
	models.Summer: {15, 35},
	models.Fall:   {5, 20},
}

const (
	minWind = 5
	maxWind = 30
)

func precipitationRange(s models.Season) [2]int {
	switch s {
	case models.Winter:
		return [2]int{0, 20}
	case models.Summer:
		return [2]int{0, 10}
	default:
		return [2]int{0, 15}
	}
}

// WeatherGenerator produces one day of weather from the season of its date.
type WeatherGenerator struct {
	src *Source
}

func NewWeatherGenerator(src *Source) *WeatherGenerator {
	return &WeatherGenerator{src: src}
}

// Generate returns a fresh record for day. Temperature, wind and
// precipitation are independent uniform draws; condition follows Ladder.
func (g *WeatherGenerator) Generate(day time.Time) models.WeatherRecord {
	season := models.SeasonOf(day.Month())
	temps := seasonTemperatures[season]
	precip := precipitationRange(season)

	temperature := g.src.IntRange(temps[0], temps[1])
	wind := g.src.IntRange(minWind, maxWind)
	precipitation := g.src.IntRange(precip[0], precip[1])
	condition := Ladder(season, temperature, precipitation, func() models.Condition {
		return Pick(g.src, []models.Condition{models.Cloudy, models.Windy})
	})

	return models.WeatherRecord{
		Date:          day.Format(models.DateLayout),
		Temperature:   temperature,
		Wind:          wind,
		Precipitation: precipitation,
		Condition:     condition,
		Description:   models.Descriptions[condition],
	}
}

// Ladder derives the condition: dry days are Sunny, cold wet winter days are
// Snowy, heavy precipitation is Rainy, anything else is chosen by mild.
func Ladder(season models.Season, temperature, precipitation int, mild func() models.Condition) models.Condition {
	switch {
	case precipitation == 0:
		return models.Sunny
	case season == models.Winter && temperature <= 0 && precipitation > 8:
		return models.Snowy
	case precipitation > 12:
		return models.Rainy
	default:
		return mild()
	}
}
