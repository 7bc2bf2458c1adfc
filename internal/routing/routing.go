// Package routing talks to the external street-routing engine.
package routing

import (
	"context"
	"errors"

	"github.com/paulmach/orb"
)

var (
	// ErrTransport covers network failures, non-2xx responses and
	// undecodable bodies.
	ErrTransport = errors.New("routing transport failure")
	// ErrNoRoute means the engine answered but had no usable path.
	ErrNoRoute = errors.New("no route found")
)

// Route is a walkable path returned by the engine.
type Route struct {
	Distance  float64        `json:"distance"` // meters
	Duration  float64        `json:"duration"` // seconds
	Geometry  orb.LineString `json:"geometry"` // lng/lat order
	Maneuvers []Maneuver     `json:"maneuvers"`
}

// Client routes an ordered list of coordinates.
type Client interface {
	Route(ctx context.Context, coords []orb.Point) (*Route, error)
}

// ClientFunc adapts a function to Client.
type ClientFunc func(ctx context.Context, coords []orb.Point) (*Route, error)

// Route implements Client.
func (f ClientFunc) Route(ctx context.Context, coords []orb.Point) (*Route, error) {
	return f(ctx, coords)
}
