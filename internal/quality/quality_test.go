package quality

import (
	"math"
	"testing"

	"github.com/paulmach/orb"
	"github.com/stretchr/testify/assert"

	"loop-planner/internal/geo"
)

// regularPolygon returns a closed ring of n vertices around center with the
// given radius in meters.
func regularPolygon(center orb.Point, radiusMeters float64, n int) orb.LineString {
	ls := make(orb.LineString, 0, n+1)
	for i := 0; i < n; i++ {
		ls = append(ls, geo.Offset(center, 2*math.Pi*float64(i)/float64(n), radiusMeters/1000))
	}
	return append(ls, ls[0])
}

// figureEight traces a lemniscate starting at the tip of one lobe so that
// both crossings of the centre fall well outside the closure zone.
func figureEight(center orb.Point, scaleDeg float64, n int) orb.LineString {
	ls := make(orb.LineString, n)
	for k := 0; k < n; k++ {
		t := math.Pi/2 + 2*math.Pi*float64(k)/float64(n-1)
		ls[k] = orb.Point{
			center.Lon() + scaleDeg*math.Sin(t),
			center.Lat() + scaleDeg*math.Sin(t)*math.Cos(t),
		}
	}
	return ls
}

var paris = geo.NewPoint(48.8566, 2.3522)

func TestDistanceFits(t *testing.T) {
	assert.True(t, DistanceFits(7500, 7500))
	assert.True(t, DistanceFits(6750, 7500))
	assert.True(t, DistanceFits(8250, 7500))
	assert.False(t, DistanceFits(6749, 7500))
	assert.False(t, DistanceFits(8251, 7500))
}

func TestStepConversions(t *testing.T) {
	assert.Equal(t, 7500.0, TargetDistance(10000))
	assert.Equal(t, 10000, StepsEstimate(7500))
	assert.Equal(t, 10001, StepsEstimate(7500.5))
}

func TestCircularityRegularPolygonAtOrigin(t *testing.T) {
	poly := regularPolygon(orb.Point{0, 0}, 1000, 64)
	assert.InDelta(t, 0, CircularityScore(poly), 0.05)
}

func TestCircularityDegenerate(t *testing.T) {
	tiny := regularPolygon(paris, 20, 32)
	assert.Equal(t, DegenerateCircularity, CircularityScore(tiny))

	// Long but only 30 m wide.
	strip := orb.LineString{
		paris,
		geo.Offset(paris, 0, 2),
		geo.Offset(geo.Offset(paris, 0, 2), math.Pi/2, 0.03),
		geo.Offset(paris, math.Pi/2, 0.03),
		paris,
	}
	assert.Equal(t, DegenerateCircularity, CircularityScore(strip))

	assert.Equal(t, DegenerateCircularity, CircularityScore(orb.LineString{paris, paris}))
}

func TestCircularityElongatedAndSparse(t *testing.T) {
	// 2 km by 500 m rectangle: aspect 4, full box.
	w, h := 2.0, 0.5
	rect := orb.LineString{
		paris,
		geo.Offset(paris, 0, w),
		geo.Offset(geo.Offset(paris, 0, w), math.Pi/2, h),
		geo.Offset(paris, math.Pi/2, h),
		paris,
	}
	assert.InDelta(t, 3, CircularityScore(rect), 0.05)

	// A thin diagonal triangle fills well under 20% of its box.
	tri := orb.LineString{
		paris,
		geo.Offset(paris, math.Pi/4, 1.5),
		geo.Offset(paris, math.Pi/4+0.1, 1.5),
		paris,
	}
	assert.Greater(t, CircularityScore(tri), 3.0)
}

func TestCircularityClosesOpenLoops(t *testing.T) {
	closed := regularPolygon(paris, 800, 40)
	open := closed[:len(closed)-1]
	assert.InDelta(t, CircularityScore(closed), CircularityScore(open), 1e-9)
}

// circleLoop is a closed 200-point circle of ~1 km radius: consecutive
// points are ~31 m apart, so nothing backtracks by itself.
func circleLoop() orb.LineString {
	return regularPolygon(paris, 1000, 199)
}

func TestBacktrackingCleanLoop(t *testing.T) {
	assert.False(t, HasBacktracking(circleLoop()))
}

func TestBacktrackingDetectsRevisit(t *testing.T) {
	circle := circleLoop()
	const k = 50

	revisit := circle.Clone()
	revisit[k+minIndexGap] = geo.Offset(circle[k], 0.3, 0.003)
	assert.True(t, HasBacktracking(revisit))

	nearby := circle.Clone()
	nearby[k+minIndexGap-1] = geo.Offset(circle[k], 0.3, 0.003)
	assert.False(t, HasBacktracking(nearby))
}

func TestBacktrackingIgnoresClosureZone(t *testing.T) {
	circle := circleLoop()
	n := len(circle)

	// Both ends of the loop coincide, and a point near the end revisits the
	// start; all inside the first/last 5%.
	spur := circle.Clone()
	spur[n-4] = geo.Offset(circle[3], 0.3, 0.003)
	assert.False(t, HasBacktracking(spur))
}

func TestBacktrackingShortPaths(t *testing.T) {
	assert.False(t, HasBacktracking(nil))
	assert.False(t, HasBacktracking(orb.LineString{paris, paris}))
}

func TestSelfIntersection(t *testing.T) {
	assert.False(t, HasSelfIntersection(regularPolygon(paris, 1000, 64)))
	assert.True(t, HasSelfIntersection(figureEight(paris, 0.01, 360)))
	assert.False(t, HasSelfIntersection(orb.LineString{paris, geo.Offset(paris, 0, 1)}))
}

func TestSelfIntersectionDownsamplesLongPaths(t *testing.T) {
	assert.False(t, HasSelfIntersection(regularPolygon(paris, 2000, 5000)))
	assert.True(t, HasSelfIntersection(figureEight(paris, 0.01, 4101)))
}

func TestEvaluateComposite(t *testing.T) {
	loop := regularPolygon(paris, 1200, 120)

	good := Evaluate(loop, 7500, 7500)
	assert.True(t, good.DistanceOK)
	assert.False(t, good.Backtracking)
	assert.False(t, good.SelfIntersecting)
	assert.Less(t, good.Circularity, 0.1)
	assert.True(t, good.Acceptable())
	assert.InDelta(t, good.Circularity, good.Score, 1e-12)

	short := Evaluate(loop, 5000, 7500)
	assert.False(t, short.Acceptable())
	assert.InDelta(t, good.Score+1, short.Score, 1e-12)

	crossed := Evaluate(figureEight(paris, 0.01, 360), 7500, 7500)
	assert.True(t, crossed.SelfIntersecting)
	assert.GreaterOrEqual(t, crossed.Score, 4.0)
}

func TestComposite(t *testing.T) {
	assert.Equal(t, 0.0, Composite(Report{DistanceOK: true}))
	assert.Equal(t, 10.0, Composite(Report{Backtracking: true, SelfIntersecting: true, DistanceOK: false}))
	assert.Equal(t, 2.5, Composite(Report{DistanceOK: false, Circularity: 1.5}))
}
