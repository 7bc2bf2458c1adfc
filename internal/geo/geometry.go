package geo

import (
	"math"

	"github.com/paulmach/orb"
	orbgeo "github.com/paulmach/orb/geo"
)

// KmPerDegreeLat is the length of one degree of latitude used by the
// flat-earth projection.
const KmPerDegreeLat = 111.32

// NewPoint builds an orb.Point from latitude/longitude degrees.
// orb stores points in (lng, lat) order.
func NewPoint(lat, lng float64) orb.Point {
	return orb.Point{lng, lat}
}

// DistanceMeters calculates the great-circle distance between two points
// using the Haversine formula.
func DistanceMeters(a, b orb.Point) float64 {
	return orbgeo.DistanceHaversine(a, b)
}

// PathLength sums the haversine length of consecutive points.
func PathLength(path orb.LineString) float64 {
	var total float64
	for i := 0; i < len(path)-1; i++ {
		total += DistanceMeters(path[i], path[i+1])
	}
	return total
}

// Offset projects a point from center along angle (radians, 0 = east,
// counter-clockwise) by distanceKm using a flat-earth approximation.
// Undefined near the poles.
func Offset(center orb.Point, angle, distanceKm float64) orb.Point {
	latDeg := center.Lat()
	dLat := distanceKm * math.Sin(angle) / KmPerDegreeLat
	dLng := distanceKm * math.Cos(angle) / (KmPerDegreeLat * math.Cos(latDeg*math.Pi/180.0))
	return orb.Point{center.Lon() + dLng, latDeg + dLat}
}

// Segment is a straight line between two points.
type Segment struct {
	P1, P2 orb.Point
}

// SegmentsCross reports whether two segments properly cross each other.
// Touching endpoints and collinear overlaps do not count.
func SegmentsCross(seg1, seg2 Segment) bool {
	p1, p2 := seg1.P1, seg1.P2
	p3, p4 := seg2.P1, seg2.P2

	d1 := direction(p3, p4, p1)
	d2 := direction(p3, p4, p2)
	d3 := direction(p1, p2, p3)
	d4 := direction(p1, p2, p4)

	return ((d1 > 0 && d2 < 0) || (d1 < 0 && d2 > 0)) &&
		((d3 > 0 && d4 < 0) || (d3 < 0 && d4 > 0))
}

// direction calculates the cross product to determine orientation
func direction(p1, p2, p3 orb.Point) float64 {
	return (p3.X()-p1.X())*(p2.Y()-p1.Y()) - (p2.X()-p1.X())*(p3.Y()-p1.Y())
}

// RingContains checks if a point is inside a ring using ray casting.
// The ring may or may not repeat its first vertex.
func RingContains(ring orb.Ring, point orb.Point) bool {
	n := len(ring)
	if n < 3 {
		return false
	}

	count := 0
	for i := 0; i < n; i++ {
		v1 := ring[i]
		v2 := ring[(i+1)%n]

		// Count edges crossed by a horizontal ray cast towards -x
		if (v1.Y() > point.Y()) != (v2.Y() > point.Y()) {
			slope := (point.X()-v1.X())*(v2.Y()-v1.Y()) - (v2.X()-v1.X())*(point.Y()-v1.Y())
			if v2.Y() > v1.Y() {
				if slope > 0 {
					count++
				}
			} else if slope < 0 {
				count++
			}
		}
	}

	return count%2 == 1
}
