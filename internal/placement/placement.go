// Package placement implements the radial placement search for newly
// added nodes that carry no explicit coordinates (spec.md §4.9). This is
// pure geometry with no I/O and no direct teacher analogue — there is no
// placement algorithm anywhere in the retrieval pack to ground this on;
// it is implemented directly from spec.md's description.
package placement

import "math"

// Tunable constants (spec.md §4.9 names these but does not pin exact
// values; chosen here and recorded in DESIGN.md).
const (
	RootNodeRadius   = 120.0
	PlacementMargin  = 24.0
	CellWidthPx      = 9.0
	CellHeightPx     = 18.0
	DefaultCols      = 160
	DefaultRows      = 45
	hintSearchRadii  = 3
	hintSearchPoints = 12
	sweepAngles      = 36
)

var sweepRingMultipliers = []float64{1, 1.25, 1.5, 2, 3, 4}

// Point is a 2D coordinate in the workspace's integer coordinate space
// (float64 internally for geometry, rounded on return).
type Point struct{ X, Y float64 }

// Rect is an axis-aligned rectangle, given as a center and half-extents
// (so half-diagonal and overlap checks stay simple).
type Rect struct {
	Center       Point
	HalfW, HalfH float64
}

func (r Rect) halfDiagonal() float64 {
	return math.Hypot(r.HalfW, r.HalfH)
}

// overlaps reports whether r and o overlap once each is padded outward by
// margin on every side (an AABB separating-axis test).
func (r Rect) overlaps(o Rect, margin float64) bool {
	dx := math.Abs(r.Center.X - o.Center.X)
	dy := math.Abs(r.Center.Y - o.Center.Y)
	return dx < r.HalfW+o.HalfW+margin && dy < r.HalfH+o.HalfH+margin
}

// Edge is an existing parent-child edge used for occlusion scoring.
type Edge struct{ A, B Point }

// Parent describes the new node's parent geometry: either a rectangle
// (an ordinary node) or — for the root sentinel — a circle of radius
// RootNodeRadius centered at (0,0).
type Parent struct {
	Rect     Rect
	IsRoot   bool
	Center   Point // same as Rect.Center for non-root; (0,0) for root
}

func (p Parent) halfDiagonal() float64 {
	if p.IsRoot {
		return RootNodeRadius
	}
	return p.Rect.halfDiagonal()
}

// Input bundles everything the placement search needs.
type Input struct {
	Parent Parent

	// NewHalfW/NewHalfH size the node being placed.
	NewHalfW, NewHalfH float64

	// Hint is an optional caller-suggested position (e.g. drop point).
	Hint *Point

	// Existing is every other live node's rectangle, for overlap/occlusion
	// checks. Should not include the node being placed.
	Existing []Rect

	// Edges are existing parent-child edges, for occlusion scoring.
	Edges []Edge

	// SiblingCenters are the parent's existing children's centers, used
	// to find the widest angular gap.
	SiblingCenters []Point

	// GrandparentCenter is the position of the parent's parent. Nil when
	// the parent is root (root has no grandparent).
	GrandparentCenter *Point
}

// Place returns the chosen center position for the new node.
func Place(in Input) Point {
	newHalfDiag := math.Hypot(in.NewHalfW, in.NewHalfH)
	newRect := func(c Point) Rect { return Rect{Center: c, HalfW: in.NewHalfW, HalfH: in.NewHalfH} }

	if in.Hint != nil {
		if p, ok := placeAtHint(*in.Hint, newRect, in.Existing); ok {
			return p
		}
	}

	idealDist := idealDistance(in.Parent, newHalfDiag)
	bestAngle := bestAngle(in.Parent, in.SiblingCenters, in.GrandparentCenter)

	best, found := sweepForBest(in, newRect, idealDist, bestAngle)
	if found {
		return best
	}
	// Hard-reject fallback: farthest ring at the best angle.
	farthest := idealDist * sweepRingMultipliers[len(sweepRingMultipliers)-1]
	return polar(in.Parent.Center, bestAngle, farthest)
}

func placeAtHint(hint Point, newRect func(Point) Rect, existing []Rect) (Point, bool) {
	if !anyOverlap(newRect(hint), existing) {
		return hint, true
	}
	radii := []float64{100, 200, 300}
	for _, radius := range radii {
		for i := 0; i < hintSearchPoints; i++ {
			angle := 2 * math.Pi * float64(i) / float64(hintSearchPoints)
			cand := polar(hint, angle, radius)
			if !anyOverlap(newRect(cand), existing) {
				return cand, true
			}
		}
	}
	return hint, true // final fallback: the hint itself
}

func anyOverlap(r Rect, existing []Rect) bool {
	for _, o := range existing {
		if r.overlaps(o, PlacementMargin) {
			return true
		}
	}
	return false
}

func idealDistance(parent Parent, newHalfDiag float64) float64 {
	defaultTerminalHalfDiag := math.Hypot(
		float64(DefaultCols)*CellWidthPx/2,
		float64(DefaultRows)*CellHeightPx/2,
	)
	a := parent.halfDiagonal() + newHalfDiag + 2*PlacementMargin
	b := 2*defaultTerminalHalfDiag + PlacementMargin
	if a > b {
		return a
	}
	return b
}

// bestAngle finds the widest angular gap among the parent's children and
// the direction to the grandparent (or straight up if root with no
// grandparent), returning the gap's midpoint. With no siblings and a
// grandparent present, the widest gap around a single obstacle angle is
// exactly its opposite, which is the "direction opposite the grandparent"
// case spec.md calls out separately.
func bestAngle(parent Parent, siblings []Point, grandparent *Point) float64 {
	var angles []float64
	for _, s := range siblings {
		angles = append(angles, math.Atan2(s.Y-parent.Center.Y, s.X-parent.Center.X))
	}
	if grandparent != nil {
		angles = append(angles, math.Atan2(grandparent.Y-parent.Center.Y, grandparent.X-parent.Center.X))
	}
	if len(angles) == 0 {
		return -math.Pi / 2 // straight up
	}
	return widestGapMidpoint(angles)
}

func widestGapMidpoint(angles []float64) float64 {
	norm := make([]float64, len(angles))
	for i, a := range angles {
		m := math.Mod(a, 2*math.Pi)
		if m < 0 {
			m += 2 * math.Pi
		}
		norm[i] = m
	}
	sortFloats(norm)
	bestGap := -1.0
	bestMid := norm[0]
	for i := range norm {
		next := norm[(i+1)%len(norm)]
		gap := next - norm[i]
		if gap <= 0 {
			gap += 2 * math.Pi
		}
		if gap > bestGap {
			bestGap = gap
			bestMid = math.Mod(norm[i]+gap/2, 2*math.Pi)
		}
	}
	return bestMid
}

func sortFloats(f []float64) {
	for i := 1; i < len(f); i++ {
		for j := i; j > 0 && f[j-1] > f[j]; j-- {
			f[j-1], f[j] = f[j], f[j-1]
		}
	}
}

func sweepForBest(in Input, newRect func(Point) Rect, idealDist, bestAngle float64) (Point, bool) {
	angleStep := 2 * math.Pi / float64(sweepAngles)
	var fanOffsets []float64
	fanOffsets = append(fanOffsets, 0)
	for i := 1; i <= sweepAngles/2; i++ {
		fanOffsets = append(fanOffsets, float64(i)*angleStep, -float64(i)*angleStep)
	}

	bestScore := math.Inf(1)
	var bestPoint Point
	found := false

	for _, mult := range sweepRingMultipliers {
		radius := idealDist * mult
		for _, offset := range fanOffsets {
			angle := bestAngle + offset
			cand := polar(in.Parent.Center, angle, radius)
			r := newRect(cand)
			if anyOverlap(r, in.Existing) {
				continue
			}
			score := scoreCandidate(in, cand, radius)
			if score < bestScore {
				bestScore = score
				bestPoint = cand
				found = true
			}
		}
	}
	return bestPoint, found
}

func scoreCandidate(in Input, cand Point, distFromParent float64) float64 {
	const (
		edgeOcclusionWeight    = 2.0
		grandparentProxWeight  = 5.0
		parentDistanceWeight   = 0.1
	)
	occlusion := 0.0
	for _, e := range in.Edges {
		if segmentsNear(cand, in.Parent.Center, e.A, e.B) {
			occlusion++
		}
	}
	grandparentProx := 0.0
	if in.GrandparentCenter != nil {
		d := math.Hypot(cand.X-in.GrandparentCenter.X, cand.Y-in.GrandparentCenter.Y)
		grandparentProx = 1.0 / (1.0 + d)
	}
	return edgeOcclusionWeight*occlusion + grandparentProxWeight*grandparentProx + parentDistanceWeight*distFromParent
}

// segmentsNear reports whether segment (a1,a2) counts as visually
// occluding segment (b1,b2). It is an exact proper-intersection test with
// no margin: segments that merely pass close to each other do not count.
func segmentsNear(a1, a2, b1, b2 Point) bool {
	if segmentsIntersect(a1, a2, b1, b2) {
		return true
	}
	return false
}

func segmentsIntersect(p1, p2, p3, p4 Point) bool {
	d1 := cross(sub(p4, p3), sub(p1, p3))
	d2 := cross(sub(p4, p3), sub(p2, p3))
	d3 := cross(sub(p2, p1), sub(p3, p1))
	d4 := cross(sub(p2, p1), sub(p4, p1))
	if ((d1 > 0 && d2 < 0) || (d1 < 0 && d2 > 0)) &&
		((d3 > 0 && d4 < 0) || (d3 < 0 && d4 > 0)) {
		return true
	}
	return false
}

func sub(a, b Point) Point   { return Point{a.X - b.X, a.Y - b.Y} }
func cross(a, b Point) float64 { return a.X*b.Y - a.Y*b.X }

func polar(center Point, angle, radius float64) Point {
	return Point{X: center.X + radius*math.Cos(angle), Y: center.Y + radius*math.Sin(angle)}
}
