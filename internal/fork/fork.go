// Package fork rewrites a Claude Code transcript into a brand-new
// resumable session so a forked terminal can continue independently
// from the point its source terminal was at (spec.md §4.10 "Fork").
//
// There is no teacher or pack precedent for parsing Claude Code's own
// transcript JSONL shape or its on-disk project-directory convention
// (_examples/original_source kept zero files) — both the line format
// assumed here (flat objects carrying type/uuid/parentUuid/isSidechain)
// and the path convention in internal/transcript's PathResolver wiring
// are an honest extrapolation from the well-known real-world Claude
// Code CLI layout, not a grounded pack pattern. See DESIGN.md.
package fork

import (
	"bufio"
	"bytes"
	"crypto/rand"
	"encoding/hex"
	"encoding/json"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strings"

	"github.com/google/uuid"

	"github.com/chriswa/spaceterm/internal/plancache"
	"github.com/chriswa/spaceterm/internal/transcript"
)

// keepTypes are the entry types a fork preserves (spec.md §4.10:
// "user, assistant, attachment, system, progress" side-chains excluded).
var keepTypes = map[string]bool{
	"user": true, "assistant": true, "attachment": true, "system": true, "progress": true,
}

// Forker produces a forked transcript (and, when present, a forked plan
// file) from an existing terminal's resumable agent session.
type Forker struct {
	pathFor transcript.PathResolver
	plans   *plancache.Store
}

// New returns a Forker. plans may be nil, in which case plan-file
// forking is skipped (used by callers with no plan cache configured).
func New(pathFor transcript.PathResolver, plans *plancache.Store) *Forker {
	return &Forker{pathFor: pathFor, plans: plans}
}

// Result describes the session a fork produced.
type Result struct {
	NewAgentSessionID string
	NewTranscriptPath string
	NewPlanPath       string // "" if the source had no tracked plan file
}

// Fork reads the transcript for sourceAgentSessionID under cwd, emits a
// filtered, uuid-remapped copy under a freshly generated session id, and
// — if sourceSurfaceID has a plan file on record — copies it alongside
// under a "-fork-<4hex>" slug and rewrites any in-transcript references
// to its old path. newSurfaceID is the forked terminal's node id, used
// only to register the new plan-file cursor.
func (f *Forker) Fork(sourceAgentSessionID, cwd, sourceSurfaceID, newSurfaceID string) (Result, error) {
	srcPath := f.pathFor(sourceAgentSessionID, cwd)
	raw, err := readLines(srcPath)
	if err != nil {
		return Result{}, fmt.Errorf("fork: read transcript %s: %w", srcPath, err)
	}

	newSessionID := uuid.NewString()
	dstPath := f.pathFor(newSessionID, cwd)

	kept := make([]map[string]any, 0, len(raw))
	for _, entry := range raw {
		t, _ := entry["type"].(string)
		if !keepTypes[t] {
			continue
		}
		if sidechain, _ := entry["isSidechain"].(bool); sidechain {
			continue
		}
		kept = append(kept, entry)
	}

	uuidRemap := make(map[string]string, len(kept))
	for _, entry := range kept {
		if old, ok := entry["uuid"].(string); ok && old != "" {
			uuidRemap[old] = uuid.NewString()
		}
	}

	var oldPlanPath, newPlanPath string
	if f.plans != nil {
		if p, ok, err := f.plans.PlanPath(sourceSurfaceID); err == nil && ok {
			oldPlanPath = p
		}
	}
	if oldPlanPath != "" {
		newPlanPath, err = forkPlanFile(oldPlanPath)
		if err != nil {
			return Result{}, fmt.Errorf("fork: plan file: %w", err)
		}
	}

	out := make([]map[string]any, 0, len(kept))
	for _, entry := range kept {
		e := cloneEntry(entry)
		oldUUID, _ := e["uuid"].(string)
		oldParent, _ := e["parentUuid"].(string)

		e["sessionId"] = newSessionID
		if oldUUID != "" {
			e["forkedFrom"] = map[string]any{
				"sessionId":   sourceAgentSessionID,
				"messageUuid": oldUUID,
			}
			e["uuid"] = uuidRemap[oldUUID]
		}
		if newParent, ok := uuidRemap[oldParent]; ok {
			e["parentUuid"] = newParent
		}
		if oldPlanPath != "" && newPlanPath != "" {
			rewriteContentPath(e, oldPlanPath, newPlanPath)
		}
		out = append(out, e)
	}

	if err := writeLines(dstPath, out); err != nil {
		return Result{}, fmt.Errorf("fork: write transcript %s: %w", dstPath, err)
	}

	if newPlanPath != "" && f.plans != nil {
		if err := f.plans.SetPlanPath(newSurfaceID, newPlanPath); err != nil {
			return Result{}, fmt.Errorf("fork: record plan path: %w", err)
		}
	}

	return Result{
		NewAgentSessionID: newSessionID,
		NewTranscriptPath: dstPath,
		NewPlanPath:       newPlanPath,
	}, nil
}

// ForkedName computes the forked terminal's display name (spec.md
// §4.10): "<source> (fork)", no double suffix when forking a fork
// already named "... (fork)", "Untitled (fork)" when the source had no
// name.
func ForkedName(sourceName string) string {
	if sourceName == "" {
		return "Untitled (fork)"
	}
	if len(sourceName) >= len(" (fork)") && sourceName[len(sourceName)-len(" (fork)"):] == " (fork)" {
		return sourceName
	}
	return sourceName + " (fork)"
}

func cloneEntry(e map[string]any) map[string]any {
	out := make(map[string]any, len(e))
	for k, v := range e {
		out[k] = v
	}
	return out
}

func readLines(path string) ([]map[string]any, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, err
	}
	defer f.Close()

	var out []map[string]any
	scanner := bufio.NewScanner(f)
	scanner.Buffer(make([]byte, 0, 64*1024), 16*1024*1024)
	for scanner.Scan() {
		line := bytes.TrimSpace(scanner.Bytes())
		if len(line) == 0 {
			continue
		}
		var m map[string]any
		if err := json.Unmarshal(line, &m); err != nil {
			continue // malformed lines are skipped, not fatal
		}
		out = append(out, m)
	}
	return out, scanner.Err()
}

func writeLines(path string, entries []map[string]any) error {
	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		return err
	}
	f, err := os.OpenFile(path, os.O_CREATE|os.O_TRUNC|os.O_WRONLY, 0o644)
	if err != nil {
		return err
	}
	defer f.Close()

	w := bufio.NewWriter(f)
	for _, e := range entries {
		data, err := json.Marshal(e)
		if err != nil {
			return err
		}
		if _, err := w.Write(data); err != nil {
			return err
		}
		if _, err := w.WriteString("\n"); err != nil {
			return err
		}
	}
	return w.Flush()
}

// forkPlanFile copies src to a sibling path with a "-fork-<4hex>" slug
// spliced before the extension (spec.md §4.10).
func forkPlanFile(src string) (string, error) {
	in, err := os.Open(src)
	if err != nil {
		if os.IsNotExist(err) {
			return "", nil
		}
		return "", err
	}
	defer in.Close()

	dst := forkedPlanPath(src)
	out, err := os.OpenFile(dst, os.O_CREATE|os.O_TRUNC|os.O_WRONLY, 0o644)
	if err != nil {
		return "", err
	}
	defer out.Close()

	if _, err := io.Copy(out, in); err != nil {
		return "", err
	}
	return dst, nil
}

func forkedPlanPath(src string) string {
	ext := filepath.Ext(src)
	base := src[:len(src)-len(ext)]
	return fmt.Sprintf("%s-fork-%s%s", base, randHex4(), ext)
}

func randHex4() string {
	var b [2]byte
	rand.Read(b[:])
	return hex.EncodeToString(b[:])
}

// rewriteContentPath replaces any occurrence of oldPath in e's message
// content with newPath, covering both the plain-string and content-block
// shapes Claude Code transcripts use.
func rewriteContentPath(e map[string]any, oldPath, newPath string) {
	msg, ok := e["message"].(map[string]any)
	if !ok {
		return
	}
	switch c := msg["content"].(type) {
	case string:
		msg["content"] = strings.ReplaceAll(c, oldPath, newPath)
	case []any:
		for _, b := range c {
			block, ok := b.(map[string]any)
			if !ok {
				continue
			}
			if text, ok := block["text"].(string); ok {
				block["text"] = strings.ReplaceAll(text, oldPath, newPath)
			}
			if input, ok := block["input"].(map[string]any); ok {
				rewriteStringFields(input, oldPath, newPath)
			}
		}
	}
}

func rewriteStringFields(m map[string]any, oldPath, newPath string) {
	for k, v := range m {
		if s, ok := v.(string); ok {
			m[k] = strings.ReplaceAll(s, oldPath, newPath)
		}
	}
}
