package zones

import (
	"github.com/dhconnelly/rtreego"
	"github.com/paulmach/orb"
)

// crossingSamples is the number of evenly strided points Crosses inspects.
const crossingSamples = 50

// boundsTolerance pads point queries against the R-tree.
const boundsTolerance = 1e-9

// regionEntry wraps a region for R-tree storage
type regionEntry struct {
	region Region
	bbox   rtreego.Rect
}

// Bounds implements rtreego.Spatial interface
func (e *regionEntry) Bounds() rtreego.Rect {
	return e.bbox
}

// Registry is the immutable set of unsafe regions. It is built once and
// safe for unlimited concurrent reads.
type Registry struct {
	regions []Region
	tree    *rtreego.Rtree
}

// NewRegistry indexes regions by bounding box. Rings with fewer than three
// vertices are ignored.
func NewRegistry(regions []Region) *Registry {
	tree := rtreego.NewTree(2, 25, 50) // 2D, min 25, max 50 entries per node
	kept := make([]Region, 0, len(regions))

	for _, region := range regions {
		if len(region.Ring) < 3 {
			continue
		}
		region.Ring = region.Ring.Clone()
		tree.Insert(&regionEntry{
			region: region,
			bbox:   boundingRect(region.Ring),
		})
		kept = append(kept, region)
	}

	return &Registry{regions: kept, tree: tree}
}

// Len returns the number of indexed regions.
func (r *Registry) Len() int {
	if r == nil {
		return 0
	}
	return len(r.regions)
}

// Regions returns a copy of the indexed regions.
func (r *Registry) Regions() []Region {
	if r == nil {
		return nil
	}
	out := make([]Region, len(r.regions))
	for i, region := range r.regions {
		out[i] = Region{Name: region.Name, Ring: region.Ring.Clone()}
	}
	return out
}

// Contains reports whether p lies inside any region.
func (r *Registry) Contains(p orb.Point) bool {
	if r.Len() == 0 {
		return false
	}

	query := rtreego.Point{p.X(), p.Y()}.ToRect(boundsTolerance)
	for _, item := range r.tree.SearchIntersect(query) {
		if item.(*regionEntry).region.Contains(p) {
			return true
		}
	}
	return false
}

// Crosses samples roughly every 1/50th of the geometry (every point for
// shorter geometries) and reports whether any sample lies inside a region.
func (r *Registry) Crosses(geometry orb.LineString) bool {
	if r.Len() == 0 || len(geometry) == 0 {
		return false
	}

	stride := len(geometry) / crossingSamples
	if stride < 1 {
		stride = 1
	}
	for i := 0; i < len(geometry); i += stride {
		if r.Contains(geometry[i]) {
			return true
		}
	}
	return false
}

// boundingRect computes the axis-aligned bounding box for a ring. Degenerate
// extents are padded so rtreego accepts them.
func boundingRect(ring orb.Ring) rtreego.Rect {
	b := ring.Bound()
	width := b.Max.X() - b.Min.X()
	height := b.Max.Y() - b.Min.Y()
	if width <= 0 {
		width = boundsTolerance
	}
	if height <= 0 {
		height = boundsTolerance
	}

	rect, err := rtreego.NewRect(rtreego.Point{b.Min.X(), b.Min.Y()}, []float64{width, height})
	if err != nil {
		// Only reachable with non-positive lengths, which are padded above.
		return rtreego.Point{b.Min.X(), b.Min.Y()}.ToRect(boundsTolerance)
	}
	return rect
}
