package app

import (
	"time"

	"studykit/internal"
	"studykit/internal/errors"
)

// resolveLocation loads tz, falling back to def when tz is empty.
func resolveLocation(tz string, def *time.Location) (*time.Location, error) {
	if tz == "" {
		if def == nil {
			return time.UTC, nil
		}
		return def, nil
	}
	loc, err := time.LoadLocation(tz)
	if err != nil {
		return nil, errors.InvalidInput("unknown timezone " + tz)
	}
	return loc, nil
}

func serviceLogger(component string) *internal.Logger {
	return internal.DefaultLogger.Named(component)
}
