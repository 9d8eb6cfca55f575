// Command spacetermd is the persistent workspace session server
// (spec.md §5): it wires together the node store, PTY session manager,
// assistant state engine, transcript watcher, snapshot pipeline, plan
// cache, and fork helper, then serves the two Unix sockets described in
// internal/wire until interrupted.
//
// The entrypoint shape (a single cobra RunE, a signal-derived context,
// an error channel fed by the blocking server goroutine) is grounded on
// the teacher's cmd/wtd/main.go.
package main

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"path/filepath"
	"syscall"
	"time"

	"github.com/spf13/cobra"

	"github.com/chriswa/spaceterm/internal/assistant"
	"github.com/chriswa/spaceterm/internal/config"
	"github.com/chriswa/spaceterm/internal/fork"
	"github.com/chriswa/spaceterm/internal/logger"
	"github.com/chriswa/spaceterm/internal/plancache"
	"github.com/chriswa/spaceterm/internal/session"
	"github.com/chriswa/spaceterm/internal/snapshot"
	"github.com/chriswa/spaceterm/internal/store"
	"github.com/chriswa/spaceterm/internal/transcript"
	"github.com/chriswa/spaceterm/internal/wire"
)

func main() {
	root := &cobra.Command{
		Use:   "spacetermd",
		Short: "spaceterm workspace session server",
		RunE:  run,
	}
	root.Flags().String("home", "", "override home directory (defaults to $HOME)")

	if err := root.Execute(); err != nil {
		fmt.Fprintln(os.Stderr, "spacetermd:", err)
		os.Exit(1)
	}
}

func run(cmd *cobra.Command, args []string) error {
	home, _ := cmd.Flags().GetString("home")

	paths, err := config.ResolvePaths(home)
	if err != nil {
		return fmt.Errorf("resolve paths: %w", err)
	}
	if err := paths.EnsureDirs(); err != nil {
		return fmt.Errorf("ensure dirs: %w", err)
	}
	cfg, err := config.Load(paths.ConfigPath)
	if err != nil {
		return fmt.Errorf("load config: %w", err)
	}
	if err := logger.Init(cfg.LogLevel, cfg.LogFile); err != nil {
		return fmt.Errorf("init logger: %w", err)
	}

	srv := wire.New(paths)

	state := store.Load(paths.StatePath)
	st := store.New(paths.StatePath, state, store.Callbacks{
		NodeAdded:   srv.HandleNodeAdded,
		NodeUpdated: srv.HandleNodeUpdated,
		NodeRemoved: srv.HandleNodeRemoved,
	})

	sessions := session.New(session.Callbacks{
		OnData:  srv.HandleSessionData,
		OnExit:  srv.HandleSessionExit,
		OnTitle: srv.HandleSessionTitle,
		OnCWD:   srv.HandleSessionCWD,
	}, paths.ShellIntegrationDir, cfg.DefaultCols, cfg.DefaultRows)

	assistantEng := assistant.New(st, paths.DecisionLogsDir)

	pathFor := claudeTranscriptPath
	deliver := func(surfaceID string, newEntries []transcript.Entry, totalLineCount int, isBackfill bool) {
		assistantEng.HandleTranscriptEntries(surfaceID, newEntries, time.Now().UnixMilli())
	}
	transcripts, err := transcript.New(deliver, pathFor)
	if err != nil {
		return fmt.Errorf("start transcript watcher: %w", err)
	}
	defer transcripts.Close()

	snapshots := snapshot.NewManager(srv.EmitSnapshot)
	defer snapshots.Close()

	plans, err := plancache.Open(paths.PlanCacheDBPath)
	if err != nil {
		return fmt.Errorf("open plan cache: %w", err)
	}
	defer plans.Close()

	forker := fork.New(pathFor, plans)

	srv.Attach(st, sessions, assistantEng, snapshots, transcripts, plans, forker)

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	go assistantEng.Run(ctx)

	reviveAfterRecovery(st, sessions, pathFor)

	errCh := make(chan error, 1)
	go func() {
		logger.Info("spacetermd listening", "root", paths.Root)
		errCh <- srv.ListenAndServe(ctx)
	}()

	select {
	case <-ctx.Done():
		logger.Info("spacetermd shutting down")
		sessions.DestroyAll()
		assistantEng.Close()
		if err := st.Flush(); err != nil {
			logger.Warn("spacetermd: final flush failed", "err", err)
		}
		<-errCh
		return nil
	case err := <-errCh:
		return err
	}
}

// reviveAfterRecovery runs store.RecoverOnStartup and, for every
// revivable candidate, spawns a replacement PTY resuming the same
// Claude Code agent session (spec.md §4.3: "revival spawns claude
// --resume <agentSessionId> in the node's last known cwd").
func reviveAfterRecovery(st *store.Store, sessions *session.Manager, pathFor transcript.PathResolver) {
	candidates := st.RecoverOnStartup(transcriptExists)
	for _, c := range candidates {
		if !c.Revivable {
			continue
		}
		n, ok := st.GetNode(c.NodeID)
		if !ok || n.Terminal == nil {
			st.RevivalSpawnFailed(c.NodeID)
			continue
		}
		res, err := sessions.Create(session.CreateOptions{
			CWD:     n.Terminal.CWD,
			Command: "claude",
			Args:    []string{"--resume", c.AgentSessionID},
			Cols:    n.Terminal.Cols,
			Rows:    n.Terminal.Rows,
		})
		if err != nil {
			logger.Warn("spacetermd: revival spawn failed", "node", c.NodeID, "err", err)
			st.RevivalSpawnFailed(c.NodeID)
			continue
		}
		if err := st.ReincarnateTerminal(c.NodeID, res.SessionID, res.Cols, res.Rows); err != nil {
			logger.Warn("spacetermd: reincarnate failed", "node", c.NodeID, "err", err)
			st.RevivalSpawnFailed(c.NodeID)
			continue
		}
		st.ClearRevivingAfterWindow(c.NodeID)
	}
}

// claudeTranscriptPath resolves a Claude Code agent session id to its
// JSONL transcript file under ~/.claude/projects. This mirrors the CLI's
// own per-project-slug layout but is not grounded on any example in the
// pack (see DESIGN.md).
func claudeTranscriptPath(agentSessionID, cwd string) string {
	home, err := os.UserHomeDir()
	if err != nil {
		return ""
	}
	slug := projectSlug(cwd)
	return filepath.Join(home, ".claude", "projects", slug, agentSessionID+".jsonl")
}

// transcriptExists reports whether some project directory under
// ~/.claude/projects holds a transcript for agentSessionID. RecoverOnStartup
// only knows the agent session id at this point, not the node's cwd, so
// this scans by filename rather than computing a single project-slug path
// the way claudeTranscriptPath does once the cwd is known.
func transcriptExists(agentSessionID string) bool {
	home, err := os.UserHomeDir()
	if err != nil {
		return false
	}
	matches, err := filepath.Glob(filepath.Join(home, ".claude", "projects", "*", agentSessionID+".jsonl"))
	return err == nil && len(matches) > 0
}

func projectSlug(cwd string) string {
	slug := make([]byte, 0, len(cwd))
	for i := 0; i < len(cwd); i++ {
		c := cwd[i]
		if c == '/' || c == '.' {
			slug = append(slug, '-')
			continue
		}
		slug = append(slug, c)
	}
	return string(slug)
}
