package session

import (
	"fmt"
	"os"
	"path/filepath"
)

// shellIntegration writes the server-owned shell-integration files for
// one session and returns the environment variables to merge in so a
// login shell picks them up (spec.md §4.1).
type shellIntegration struct {
	dir string // shellIntegrationDir, e.g. ~/.spaceterm/shell-integration
}

// zshEnv returns the ZDOTDIR override for a zsh login shell, writing a
// per-session .zshenv that restores the user's original ZDOTDIR and
// installs a pre-prompt hook emitting the OSC 7 CWD sequence.
func (si shellIntegration) zshEnv(sessionID, origZDOTDIR string) (map[string]string, error) {
	dir := filepath.Join(si.dir, "zsh", sessionID)
	if err := os.MkdirAll(dir, 0755); err != nil {
		return nil, err
	}
	restore := ""
	if origZDOTDIR != "" {
		restore = fmt.Sprintf("export ZDOTDIR=%q\n", origZDOTDIR)
	} else {
		restore = "unset ZDOTDIR\n"
	}
	script := restore + oscPreromptHook("zsh")
	path := filepath.Join(dir, ".zshenv")
	if err := os.WriteFile(path, []byte(script), 0644); err != nil {
		return nil, err
	}
	return map[string]string{"ZDOTDIR": dir}, nil
}

// bashPromptCommand returns the PROMPT_COMMAND prefix for a bash login
// shell that emits the equivalent OSC 7 sequence before each prompt.
func (si shellIntegration) bashPromptCommand(existing string) map[string]string {
	cmd := oscPreromptPrintf()
	if existing != "" {
		cmd = cmd + "; " + existing
	}
	return map[string]string{"PROMPT_COMMAND": cmd}
}

// oscPreromptHook returns a shell-specific pre-prompt hook installer that
// prints `ESC ] 7 ; file://<host><pwd> BEL` before each prompt.
func oscPreromptHook(shell string) string {
	switch shell {
	case "zsh":
		return "spaceterm_cwd_osc() { printf '\\033]7;file://%s%s\\a' \"$HOST\" \"$PWD\"; }\n" +
			"autoload -Uz add-zsh-hook\n" +
			"add-zsh-hook precmd spaceterm_cwd_osc\n"
	default:
		return ""
	}
}

// oscPreromptPrintf returns the bash PROMPT_COMMAND fragment equivalent
// to oscPreromptHook("zsh").
func oscPreromptPrintf() string {
	return `printf '\033]7;file://%s%s\a' "$HOSTNAME" "$PWD"`
}
