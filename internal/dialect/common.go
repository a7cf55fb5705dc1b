package dialect

import (
	"errors"
	"fmt"
	"math"
	"strings"
	"time"

	"github.com/couchcryptid/strong-motion-etl/internal/domain"
)

var errNoStationCode = errors.New("no NET-STA station code")

// civilTime assembles a UTC timestamp from calendar fields. Fractional seconds
// are kept to the microsecond.
func civilTime(year, month, day, hour, minute int, seconds float64) (time.Time, error) {
	switch {
	case month < 1 || month > 12:
		return time.Time{}, fmt.Errorf("month %d out of range", month)
	case day < 1 || day > 31:
		return time.Time{}, fmt.Errorf("day %d out of range", day)
	case hour < 0 || hour > 23:
		return time.Time{}, fmt.Errorf("hour %d out of range", hour)
	case minute < 0 || minute > 59:
		return time.Time{}, fmt.Errorf("minute %d out of range", minute)
	case seconds < 0 || seconds >= 61 || math.IsNaN(seconds):
		return time.Time{}, fmt.Errorf("seconds %v out of range", seconds)
	}
	whole := math.Floor(seconds)
	micros := math.Round((seconds - whole) * 1e6)
	return time.Date(year, time.Month(month), day, hour, minute, int(whole), int(micros)*int(time.Microsecond), time.UTC), nil
}

// ordinalTime assembles a UTC timestamp from a year and 1-based day of year.
func ordinalTime(year, yday, hour, minute, second, millis int) (time.Time, error) {
	t, err := civilTime(year, 1, 1, hour, minute, float64(second))
	if err != nil {
		return time.Time{}, err
	}
	if days := time.Date(year, time.December, 31, 0, 0, 0, 0, time.UTC).YearDay(); yday < 1 || yday > days {
		return time.Time{}, fmt.Errorf("day of year %d out of range for %d", yday, year)
	}
	return t.AddDate(0, 0, yday-1).Add(time.Duration(millis) * time.Millisecond), nil
}

// inPath stamps the file path on a DecodeError that was built without one.
func inPath(err error, path string) error {
	var de *domain.DecodeError
	if errors.As(err, &de) && de.Path == "" {
		de.Path = path
	}
	return err
}

// withLine stamps a line number on a DecodeError that was built without one.
func withLine(err error, line int) error {
	var de *domain.DecodeError
	if errors.As(err, &de) && de.Line == 0 {
		de.Line = line
	}
	return err
}

// nameToken joins the words of s with underscores.
func nameToken(s string) string {
	return strings.Join(strings.Fields(s), "_")
}

// baseRecord carries the fields every dialect fills the same way.
func baseRecord(format string) domain.ChannelRecord {
	return domain.ChannelRecord{
		Location: domain.UnknownLocation,
		Format:   format,
		Units:    domain.UnitsAcceleration,
	}
}

func allZero(vals ...int) bool {
	for _, v := range vals {
		if v != 0 {
			return false
		}
	}
	return true
}
