package wire

import (
	"math"

	"github.com/chriswa/spaceterm/internal/node"
	"github.com/chriswa/spaceterm/internal/placement"
)

// Fixed icon footprints for kinds whose on-screen size isn't otherwise
// tracked in the graph (spec.md §4.9 names the algorithm but not these
// exact figures; chosen here and recorded in DESIGN.md as an Open
// Question decision).
const (
	directoryHalfW = 60.0
	directoryHalfH = 40.0
	fileHalfW      = 60.0
	fileHalfH      = 40.0
	titleHalfW     = 100.0
	titleHalfH     = 30.0
)

// nodeHalfExtents returns n's half-width/half-height in workspace px,
// used by the placement search for overlap/occlusion checks.
func nodeHalfExtents(n node.Node) (halfW, halfH float64) {
	switch n.Kind {
	case node.KindTerminal:
		if n.Terminal != nil {
			return float64(n.Terminal.Cols) * placement.CellWidthPx / 2, float64(n.Terminal.Rows) * placement.CellHeightPx / 2
		}
	case node.KindMarkdown:
		if n.Markdown != nil {
			return float64(n.Markdown.Width) / 2, float64(n.Markdown.Height) / 2
		}
	case node.KindDirectory:
		return directoryHalfW, directoryHalfH
	case node.KindFile:
		return fileHalfW, fileHalfH
	case node.KindTitle:
		return titleHalfW, titleHalfH
	}
	return directoryHalfW, directoryHalfH
}

// positionHint turns a request's optional explicit x/y into a placement
// hint, honored by the search as a preferred starting point (spec.md
// §4.9: a client-supplied position, e.g. a drop location, takes
// priority over the default search origin).
func positionHint(req request) *placement.Point {
	if !req.HasPosition {
		return nil
	}
	return &placement.Point{X: float64(req.X), Y: float64(req.Y)}
}

// placeNewNode resolves the center position for a new child of parentID
// sized newHalfW x newHalfH, given the current graph state. hint is an
// optional caller-suggested point (e.g. a drop location).
func placeNewNode(st *node.State, parentID string, newHalfW, newHalfH float64, hint *placement.Point) (x, y int) {
	var parent placement.Parent
	if parentID == "" || parentID == node.RootID {
		parent = placement.Parent{IsRoot: true, Center: placement.Point{}}
	} else if pn, ok := st.Nodes[parentID]; ok {
		hw, hh := nodeHalfExtents(pn)
		center := placement.Point{X: float64(pn.X), Y: float64(pn.Y)}
		parent = placement.Parent{Rect: placement.Rect{Center: center, HalfW: hw, HalfH: hh}, Center: center}
	}

	var existing []placement.Rect
	var edges []placement.Edge
	var siblings []placement.Point
	for _, n := range st.Nodes {
		hw, hh := nodeHalfExtents(n)
		center := placement.Point{X: float64(n.X), Y: float64(n.Y)}
		rect := placement.Rect{Center: center, HalfW: hw, HalfH: hh}
		existing = append(existing, rect)
		if n.ParentID != "" {
			if pn, ok := st.Nodes[n.ParentID]; ok {
				edges = append(edges, placement.Edge{A: placement.Point{X: float64(pn.X), Y: float64(pn.Y)}, B: center})
			}
		}
		if n.ParentID == parentID {
			siblings = append(siblings, center)
		}
	}

	var grandparentCenter *placement.Point
	if !parent.IsRoot {
		if pn, ok := st.Nodes[parentID]; ok && pn.ParentID != "" {
			if gp, ok := st.Nodes[pn.ParentID]; ok {
				c := placement.Point{X: float64(gp.X), Y: float64(gp.Y)}
				grandparentCenter = &c
			}
		}
	}

	p := placement.Place(placement.Input{
		Parent:            parent,
		NewHalfW:           newHalfW,
		NewHalfH:           newHalfH,
		Hint:               hint,
		Existing:           existing,
		Edges:              edges,
		SiblingCenters:     siblings,
		GrandparentCenter:  grandparentCenter,
	})
	return int(math.Round(p.X)), int(math.Round(p.Y))
}
