// Package waypoints places the ring of intermediate points that forces the
// routing engine into a loop.
package waypoints

import (
	"math"
	"math/rand/v2"

	"github.com/paulmach/orb"

	"loop-planner/internal/geo"
)

const (
	// MinCount and MaxCount bound the number of waypoints per ring.
	MinCount = 3
	MaxCount = 8

	safeDraws       = 3
	fallbackAngle   = 0.5
	minAngleJitter  = 0.025
	maxAngleJitter  = 0.05
	tightScaleDelta = 0.05
	wideScaleDelta  = 0.1
)

// Spread selects how far waypoints may stray from the requested radius.
type Spread int

const (
	Tight Spread = iota // radial scale in [0.95, 1.05]
	Wide                // radial scale in [0.9, 1.1]
)

// ParseSpread maps a config string to a Spread, defaulting to Tight.
func ParseSpread(s string) Spread {
	if s == "wide" {
		return Wide
	}
	return Tight
}

// Source is the randomness the generator draws from.
// *rand.Rand from math/rand/v2 satisfies it.
type Source interface {
	Float64() float64
}

// NewSource returns a deterministic source for the given seed.
func NewSource(seed uint64) *rand.Rand {
	return rand.New(rand.NewPCG(seed, seed^0x9e3779b97f4a7c15))
}

// RandomSource returns a freshly seeded source.
func RandomSource() *rand.Rand {
	return rand.New(rand.NewPCG(rand.Uint64(), rand.Uint64()))
}

// Classifier answers point-in-unsafe-area queries.
type Classifier interface {
	Contains(p orb.Point) bool
}

// Generator produces waypoint rings. It holds no per-call state, but the
// Source it wraps is only as concurrency-safe as its implementation.
type Generator struct {
	zones  Classifier
	rnd    Source
	spread Spread
}

// NewGenerator creates a generator. A nil classifier disables zone checks.
func NewGenerator(zones Classifier, rnd Source, spread Spread) *Generator {
	return &Generator{zones: zones, rnd: rnd, spread: spread}
}

// Generate returns count points around center at roughly radiusKm.
// The whole ring shares one random rotation. Each angle gets up to three
// draws that avoid unsafe areas; after that a point at angle+0.5 rad is
// accepted without checking, so avoidance is best-effort.
func (g *Generator) Generate(center orb.Point, radiusKm float64, count int) []orb.Point {
	if count <= 0 {
		return nil
	}

	baseOffset := g.rnd.Float64() * 2 * math.Pi
	step := 2 * math.Pi / float64(count)

	points := make([]orb.Point, 0, count)
	for i := 0; i < count; i++ {
		angle := baseOffset + float64(i)*step
		points = append(points, g.place(center, radiusKm, angle))
	}
	return points
}

func (g *Generator) place(center orb.Point, radiusKm, angle float64) orb.Point {
	for attempt := 0; attempt < safeDraws; attempt++ {
		candidate := g.jittered(center, radiusKm, angle)
		if g.zones == nil || !g.zones.Contains(candidate) {
			return candidate
		}
	}
	return g.jittered(center, radiusKm, angle+fallbackAngle)
}

func (g *Generator) jittered(center orb.Point, radiusKm, angle float64) orb.Point {
	delta := tightScaleDelta
	if g.spread == Wide {
		delta = wideScaleDelta
	}
	scale := 1 - delta + g.rnd.Float64()*2*delta

	magnitude := minAngleJitter + g.rnd.Float64()*(maxAngleJitter-minAngleJitter)
	if g.rnd.Float64() < 0.5 {
		magnitude = -magnitude
	}

	return geo.Offset(center, angle+magnitude, radiusKm*scale)
}

// Count derives the waypoint count for a target loop length in meters.
func Count(targetDistance float64) int {
	n := int(math.Round(targetDistance / 1500))
	return min(max(n, MinCount), MaxCount)
}
