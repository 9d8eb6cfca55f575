package main

import "testing"

func TestProjectSlugReplacesPathSeparatorsAndDots(t *testing.T) {
	got := projectSlug("/home/chris/work/spaceterm.go")
	want := "-home-chris-work-spaceterm-go"
	if got != want {
		t.Fatalf("projectSlug = %q, want %q", got, want)
	}
}

func TestClaudeTranscriptPathEndsInSessionIDJSONL(t *testing.T) {
	p := claudeTranscriptPath("abc123", "/tmp/proj")
	const want = "abc123.jsonl"
	if len(p) < len(want) || p[len(p)-len(want):] != want {
		t.Fatalf("path %q does not end in %q", p, want)
	}
}
