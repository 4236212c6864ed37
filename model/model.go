// Package model holds the resources persisted by the store and exchanged
// over the API.
package model

import (
	"errors"
	"time"

	"github.com/oklog/ulid/v2"
)

// ErrInvalid reports a request body that fails validation.
var ErrInvalid = errors.New("model: invalid input")

// NewID returns a new lexicographically sortable identifier.
func NewID() string {
	return ulid.Make().String()
}

// Now returns the current UTC time truncated to microseconds, the precision
// every backend can round-trip.
func Now() time.Time {
	return time.Now().UTC().Truncate(time.Microsecond)
}

// Location is a WGS84 coordinate.
type Location struct {
	Lat float64 `json:"lat" bson:"lat"`
	Lon float64 `json:"lon" bson:"lon"`
}

// Geotagged reports whether l carries usable coordinates.
func (l *Location) Geotagged() bool {
	return l != nil && l.Lat != 0 && l.Lon != 0
}
