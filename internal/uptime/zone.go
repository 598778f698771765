package uptime

import (
	"fmt"
	"sync"
	"time"
	_ "time/tzdata" // hosts without a system zoneinfo
)

// DefaultTimezone is used for stores without a timezone record
const DefaultTimezone = "America/Chicago"

var zones sync.Map // name -> *time.Location

// LoadZone resolves an IANA timezone name. An empty name resolves to
// DefaultTimezone.
func LoadZone(name string) (*time.Location, error) {
	if name == "" {
		name = DefaultTimezone
	}
	if loc, ok := zones.Load(name); ok {
		return loc.(*time.Location), nil
	}

	loc, err := time.LoadLocation(name)
	if err != nil {
		return nil, fmt.Errorf("unknown timezone %q: %w", name, err)
	}
	zones.Store(name, loc)
	return loc, nil
}

// Localize converts an instant to civil time in loc
func Localize(t time.Time, loc *time.Location) time.Time {
	return t.In(loc)
}
