// Package pathutil implements the small filesystem path helpers shared by
// internal/store and internal/wire (spec.md §4.10): tilde expansion and
// the nearest-ancestor-CWD walk used for cwd-mismatch alerts.
package pathutil

import (
	"os"
	"path/filepath"
	"strings"
)

// ExpandHome expands a leading "~" or "~/..." to the current user's home
// directory. Paths without a leading "~" are returned unchanged.
func ExpandHome(p string) string {
	if p == "" {
		return p
	}
	home, err := os.UserHomeDir()
	if err != nil {
		return p
	}
	if p == "~" {
		return home
	}
	if strings.HasPrefix(p, "~/") {
		return filepath.Join(home, p[2:])
	}
	return p
}

// NormalizeCWD expands "~" and strips a trailing slash, so two CWD
// strings that denote the same directory compare equal (spec.md §4.3:
// "after home-expansion and trailing-slash normalization").
func NormalizeCWD(p string) string {
	p = ExpandHome(p)
	if len(p) > 1 {
		p = strings.TrimRight(p, "/")
	}
	return p
}

// Ancestor is the minimal view pathutil needs of a node to walk the
// parent chain: its own CWD (empty if the node carries no CWD) and its
// parent id ("root" is the sentinel with no further parent).
type Ancestor struct {
	ParentID string
	CWD      string
	HasCWD   bool
}

// Lookup resolves a node id to its Ancestor view, or ok=false if the id
// does not exist (should not normally happen for a well-formed graph).
type Lookup func(id string) (Ancestor, bool)

// NearestAncestorCWD walks the parent chain starting at startParentID,
// returning the first ancestor's CWD that carries one. Cycles are
// detected via a visited-id set and abort the walk (returns "", false)
// rather than looping forever, per spec.md §4.10.
func NearestAncestorCWD(startParentID string, lookup Lookup) (string, bool) {
	visited := make(map[string]bool)
	id := startParentID
	for id != "" && id != "root" {
		if visited[id] {
			return "", false
		}
		visited[id] = true
		anc, ok := lookup(id)
		if !ok {
			return "", false
		}
		if anc.HasCWD {
			return anc.CWD, true
		}
		id = anc.ParentID
	}
	return "", false
}
