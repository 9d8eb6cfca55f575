package placement

import (
	"math"
	"testing"
)

func TestPlaceUsesHintWhenNoOverlap(t *testing.T) {
	hint := Point{X: 500, Y: 500}
	in := Input{
		Parent:   Parent{Rect: Rect{Center: Point{0, 0}, HalfW: 50, HalfH: 50}},
		NewHalfW: 40, NewHalfH: 20,
		Hint: &hint,
	}
	got := Place(in)
	if got != hint {
		t.Fatalf("got %+v, want hint %+v", got, hint)
	}
}

func TestPlaceSearchesAroundHintWhenOverlapping(t *testing.T) {
	hint := Point{X: 0, Y: 0}
	in := Input{
		Parent:   Parent{Rect: Rect{Center: Point{0, 0}, HalfW: 50, HalfH: 50}},
		NewHalfW: 40, NewHalfH: 20,
		Hint:     &hint,
		Existing: []Rect{{Center: Point{0, 0}, HalfW: 200, HalfH: 200}},
	}
	got := Place(in)
	// Should have moved away from the hint since it overlaps the existing rect.
	if got == hint {
		t.Fatalf("expected search to move away from overlapping hint, got %+v", got)
	}
}

func TestPlaceWithoutHintAvoidsOverlap(t *testing.T) {
	in := Input{
		Parent:   Parent{Rect: Rect{Center: Point{0, 0}, HalfW: 50, HalfH: 50}},
		NewHalfW: 40, NewHalfH: 20,
		Existing: []Rect{{Center: Point{0, -300}, HalfW: 100, HalfH: 100}},
	}
	got := Place(in)
	cand := Rect{Center: got, HalfW: in.NewHalfW, HalfH: in.NewHalfH}
	if cand.overlaps(in.Existing[0], PlacementMargin) {
		t.Fatalf("placed node overlaps existing rect: %+v", got)
	}
}

func TestBestAngleOppositeGrandparentWithNoSiblings(t *testing.T) {
	parent := Parent{Rect: Rect{Center: Point{0, 0}}}
	grandparent := Point{X: 100, Y: 0}
	angle := bestAngle(parent, nil, &grandparent)
	want := math.Pi // opposite of angle 0
	if diff := math.Abs(angle - want); diff > 1e-9 && math.Abs(diff-2*math.Pi) > 1e-9 {
		t.Fatalf("angle = %v, want %v (opposite grandparent)", angle, want)
	}
}

func TestBestAngleStraightUpAtRootWithNoSiblings(t *testing.T) {
	parent := Parent{IsRoot: true}
	angle := bestAngle(parent, nil, nil)
	if math.Abs(angle-(-math.Pi/2)) > 1e-9 {
		t.Fatalf("angle = %v, want -pi/2 (up)", angle)
	}
}

func TestWidestGapMidpointFindsLargestGap(t *testing.T) {
	// Three obstacles clustered near 0; the widest gap should be roughly
	// opposite that cluster, around pi.
	angles := []float64{-0.1, 0, 0.1}
	mid := widestGapMidpoint(angles)
	if math.Abs(mid-math.Pi) > 0.2 {
		t.Fatalf("mid = %v, want close to pi", mid)
	}
}
