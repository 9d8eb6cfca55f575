package wire

import (
	"bufio"
	"bytes"
	"os/exec"
	"strconv"
	"strings"

	"github.com/chriswa/spaceterm/internal/node"
)

// fetchGitStatus shells out to git (porcelain v2, branch info included)
// and parses the counts spec.md §4.9's directory git-status block needs.
// Errors (not a repo, git missing) are reported to the caller rather
// than swallowed, since the handler decides whether to clear or leave
// the node's existing status on failure.
func fetchGitStatus(cwd string) (*node.GitStatus, error) {
	cmd := exec.Command("git", "-C", cwd, "status", "--porcelain=2", "--branch")
	var out bytes.Buffer
	cmd.Stdout = &out
	if err := cmd.Run(); err != nil {
		return nil, err
	}

	gs := &node.GitStatus{}
	scanner := bufio.NewScanner(&out)
	for scanner.Scan() {
		line := scanner.Text()
		switch {
		case strings.HasPrefix(line, "# branch.head "):
			gs.Branch = strings.TrimPrefix(line, "# branch.head ")
		case strings.HasPrefix(line, "# branch.upstream "):
			gs.Upstream = strings.TrimPrefix(line, "# branch.upstream ")
		case strings.HasPrefix(line, "# branch.ab "):
			parseAheadBehind(strings.TrimPrefix(line, "# branch.ab "), gs)
		case strings.HasPrefix(line, "1 "), strings.HasPrefix(line, "2 "):
			classifyChange(line, gs)
		case strings.HasPrefix(line, "u "):
			gs.Conflicted++
		case strings.HasPrefix(line, "? "):
			gs.Untracked++
		}
	}
	return gs, nil
}

func parseAheadBehind(field string, gs *node.GitStatus) {
	parts := strings.Fields(field)
	if len(parts) != 2 {
		return
	}
	ahead, _ := strconv.Atoi(strings.TrimPrefix(parts[0], "+"))
	behind, _ := strconv.Atoi(strings.TrimPrefix(parts[1], "-"))
	gs.Ahead, gs.Behind = ahead, behind
}

// classifyChange reads a porcelain v2 "1"/"2" change line's XY status
// field (the second space-separated token) to bucket it as staged
// and/or unstaged.
func classifyChange(line string, gs *node.GitStatus) {
	parts := strings.Fields(line)
	if len(parts) < 2 || len(parts[1]) != 2 {
		return
	}
	xy := parts[1]
	if xy[0] != '.' {
		gs.Staged++
	}
	if xy[1] != '.' {
		gs.Unstaged++
	}
}
