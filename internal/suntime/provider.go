package suntime

import (
	"errors"
	"time"

	sunrise "github.com/nathan-osman/go-sunrise"
)

// ErrNoSunTimes is returned when sunrise/sunset cannot be computed for a
// location and date (polar day/night).
var ErrNoSunTimes = errors.New("suntime: no sunrise/sunset for date")

// Provider computes sunrise and sunset for a location and date. The
// default implementation is astronomical; tests substitute fixed values
// or failures.
type Provider interface {
	SunTimes(date time.Time, latitude, longitude float64) (sunriseAt, sunsetAt time.Time, err error)
}

// Astronomical computes sun times with the go-sunrise NOAA algorithm.
type Astronomical struct{}

// SunTimes returns sunrise and sunset in UTC for the date's calendar day.
func (Astronomical) SunTimes(date time.Time, latitude, longitude float64) (time.Time, time.Time, error) {
	rise, set := sunrise.SunriseSunset(latitude, longitude, date.Year(), date.Month(), date.Day())
	if rise.IsZero() && set.IsZero() {
		// Polar day or polar night: the sun never crosses the horizon.
		return time.Time{}, time.Time{}, ErrNoSunTimes
	}
	return rise, set, nil
}
