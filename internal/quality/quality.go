// Package quality scores the shape of a candidate walking loop.
//
// Every check is a deterministic pure function of the path geometry. Scores
// are penalties: 0 is an ideal loop and larger is worse.
package quality

import (
	"math"

	"github.com/paulmach/orb"
	"github.com/paulmach/orb/planar"

	"loop-planner/internal/geo"
)

const (
	// MetersPerStep converts between step counts and distance.
	MetersPerStep = 0.75

	distanceTolerance = 0.1

	// Backtracking: cell edge of roughly 5 m expressed in degrees.
	gridCellDegrees    = 5.0 / (geo.KmPerDegreeLat * 1000)
	minIndexGap        = 15
	backtrackMeters    = 10.0
	closureZoneFrac    = 0.05
	intersectionSample = 200

	// Circularity.
	degenerateMeters      = 50.0
	DegenerateCircularity = 10.0
	AcceptableCircularity = 1.5

	penaltyDistance     = 1.0
	penaltyBacktracking = 5.0
	penaltyIntersection = 4.0
)

// TargetDistance converts a step goal into meters.
func TargetDistance(targetSteps int) float64 {
	return float64(targetSteps) * MetersPerStep
}

// StepsEstimate converts meters back into a rounded step count.
func StepsEstimate(distance float64) int {
	return int(math.Round(distance / MetersPerStep))
}

// Report holds the independent quality signals of one candidate.
type Report struct {
	DistanceOK       bool    `json:"distanceOk"`
	Backtracking     bool    `json:"backtracking"`
	SelfIntersecting bool    `json:"selfIntersecting"`
	Circularity      float64 `json:"circularity"`
	Score            float64 `json:"score"`
}

// Acceptable reports whether the candidate passes every check.
func (r Report) Acceptable() bool {
	return r.DistanceOK && !r.Backtracking && !r.SelfIntersecting && r.Circularity < AcceptableCircularity
}

// Evaluate runs all checks on a routed loop of the given length against
// targetDistance (meters).
func Evaluate(geometry orb.LineString, distance, targetDistance float64) Report {
	r := Report{
		DistanceOK:       DistanceFits(distance, targetDistance),
		Backtracking:     HasBacktracking(geometry),
		SelfIntersecting: HasSelfIntersection(geometry),
		Circularity:      CircularityScore(geometry),
	}
	r.Score = Composite(r)
	return r
}

// Composite folds the individual signals into a single non-negative score.
func Composite(r Report) float64 {
	score := r.Circularity
	if !r.DistanceOK {
		score += penaltyDistance
	}
	if r.Backtracking {
		score += penaltyBacktracking
	}
	if r.SelfIntersecting {
		score += penaltyIntersection
	}
	return score
}

// DistanceFits reports whether distance is within ±10% of target.
func DistanceFits(distance, target float64) bool {
	return distance >= target*(1-distanceTolerance) && distance <= target*(1+distanceTolerance)
}

// closureMargin is the number of points at each end treated as the natural
// loop-closure zone.
func closureMargin(n int) int {
	return int(float64(n) * closureZoneFrac)
}

type cell struct{ x, y int64 }

func cellOf(p orb.Point) cell {
	return cell{
		x: int64(math.Floor(p.X() / gridCellDegrees)),
		y: int64(math.Floor(p.Y() / gridCellDegrees)),
	}
}

// HasBacktracking detects out-and-back spurs: two points outside the
// closure zone, at least 15 positions apart in the sequence, yet less than
// 10 m apart on the ground. Points are bucketed in a uniform grid so only
// neighbouring cells are compared.
func HasBacktracking(geometry orb.LineString) bool {
	n := len(geometry)
	margin := closureMargin(n)
	lo, hi := margin, n-margin
	if hi-lo <= minIndexGap {
		return false
	}

	grid := make(map[cell][]int, hi-lo)
	for i := lo; i < hi; i++ {
		c := cellOf(geometry[i])
		grid[c] = append(grid[c], i)
	}

	for i := lo; i < hi; i++ {
		c := cellOf(geometry[i])
		for dx := int64(-1); dx <= 1; dx++ {
			for dy := int64(-1); dy <= 1; dy++ {
				for _, j := range grid[cell{c.x + dx, c.y + dy}] {
					if j-i < minIndexGap {
						continue
					}
					if geo.DistanceMeters(geometry[i], geometry[j]) < backtrackMeters {
						return true
					}
				}
			}
		}
	}
	return false
}

// HasSelfIntersection downsamples the path to about 200 points and tests
// every pair of non-adjacent segments for a proper crossing. Pairs where both
// segments sit in the closure zone are ignored.
func HasSelfIntersection(geometry orb.LineString) bool {
	stride := len(geometry) / intersectionSample
	if stride < 1 {
		stride = 1
	}

	sampled := make(orb.LineString, 0, len(geometry)/stride+1)
	for i := 0; i < len(geometry); i += stride {
		sampled = append(sampled, geometry[i])
	}

	segments := len(sampled) - 1
	if segments < 3 {
		return false
	}

	margin := closureMargin(segments)
	inClosure := func(k int) bool {
		return k < margin || k >= segments-margin
	}

	for a := 0; a < segments; a++ {
		segA := geo.Segment{P1: sampled[a], P2: sampled[a+1]}
		for b := a + 2; b < segments; b++ {
			if inClosure(a) && inClosure(b) {
				continue
			}
			if geo.SegmentsCross(segA, geo.Segment{P1: sampled[b], P2: sampled[b+1]}) {
				return true
			}
		}
	}
	return false
}

// CircularityScore measures how far the loop is from a round shape:
// (aspect ratio - 1) plus a penalty for a low area fill of the bounding box.
// Loops under 50 m in either dimension score DegenerateCircularity.
func CircularityScore(geometry orb.LineString) float64 {
	if len(geometry) < 3 {
		return DegenerateCircularity
	}

	b := geometry.Bound()
	midLat := (b.Min.Lat() + b.Max.Lat()) / 2
	midLng := (b.Min.Lon() + b.Max.Lon()) / 2

	width := geo.DistanceMeters(orb.Point{b.Min.Lon(), midLat}, orb.Point{b.Max.Lon(), midLat})
	height := geo.DistanceMeters(orb.Point{midLng, b.Min.Lat()}, orb.Point{midLng, b.Max.Lat()})
	if width < degenerateMeters || height < degenerateMeters {
		return DegenerateCircularity
	}

	aspect := math.Max(width, height) / math.Min(width, height)

	// Area ratio in raw degrees; the units cancel.
	fill := shoelaceArea(geometry) / ((b.Max.Lon() - b.Min.Lon()) * (b.Max.Lat() - b.Min.Lat()))

	penalty := 0.0
	switch {
	case fill < 0.2:
		penalty = 3
	case fill < 0.3:
		penalty = 1
	}
	return (aspect - 1) + penalty
}

// shoelaceArea returns the unsigned area enclosed by the path, closing it if
// the engine left a gap between the first and last coordinate.
func shoelaceArea(geometry orb.LineString) float64 {
	ring := orb.Ring(geometry.Clone())
	if !ring.Closed() {
		ring = append(ring, ring[0])
	}
	return math.Abs(planar.Area(ring))
}
