package zones

import (
	"github.com/paulmach/orb"
	"github.com/paulmach/orb/simplify"

	"loop-planner/internal/geo"
)

// Region is an unsafe area the planner steers around.
type Region struct {
	Name string
	Ring orb.Ring
}

// Contains reports whether p lies inside the region's outer ring.
func (r Region) Contains(p orb.Point) bool {
	return geo.RingContains(r.Ring, p)
}

// containedIn reports whether every vertex of r lies inside other.
func (r Region) containedIn(other Region) bool {
	if len(r.Ring) == 0 {
		return false
	}
	if !other.Ring.Bound().Intersects(r.Ring.Bound()) {
		return false
	}
	for _, v := range r.Ring {
		if !other.Contains(v) {
			return false
		}
	}
	return true
}

// RemoveContained drops regions that are fully contained within another
// region. Containment queries answer the same either way.
func RemoveContained(regions []Region) []Region {
	if len(regions) <= 1 {
		return regions
	}

	contained := make([]bool, len(regions))
	for i := range regions {
		if contained[i] {
			continue
		}
		for j := range regions {
			if i == j || contained[j] {
				continue
			}
			if regions[i].containedIn(regions[j]) {
				contained[i] = true
				break
			}
			if regions[j].containedIn(regions[i]) {
				contained[j] = true
			}
		}
	}

	result := make([]Region, 0, len(regions))
	for i, r := range regions {
		if !contained[i] {
			result = append(result, r)
		}
	}
	return result
}

// Simplify reduces ring complexity with Douglas-Peucker. Rings that would
// collapse below a triangle are kept as-is.
func Simplify(regions []Region, epsilon float64) []Region {
	if epsilon <= 0 {
		return regions
	}

	out := make([]Region, len(regions))
	for i, r := range regions {
		out[i] = r
		simplified, ok := simplify.DouglasPeucker(epsilon).Simplify(r.Ring.Clone()).(orb.Ring)
		if ok && len(simplified) >= 4 {
			out[i].Ring = simplified
		}
	}
	return out
}
