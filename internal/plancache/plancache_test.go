package plancache

import "testing"

func openTestStore(t *testing.T) *Store {
	t.Helper()
	s, err := Open(":memory:")
	if err != nil {
		t.Fatalf("open test store: %v", err)
	}
	t.Cleanup(func() { s.Close() })
	return s
}

func TestSnapshotRecordsNewVersion(t *testing.T) {
	s := openTestStore(t)
	res, err := s.Snapshot("sess-1", "/plans/a.md", []byte("v1"))
	if err != nil {
		t.Fatalf("snapshot: %v", err)
	}
	if !res.Recorded || res.Version != 1 {
		t.Fatalf("got %+v, want recorded v1", res)
	}
}

func TestSnapshotDedupsAgainstPrevious(t *testing.T) {
	s := openTestStore(t)
	if _, err := s.Snapshot("sess-1", "/plans/a.md", []byte("v1")); err != nil {
		t.Fatalf("snapshot: %v", err)
	}
	res, err := s.Snapshot("sess-1", "/plans/a.md", []byte("v1"))
	if err != nil {
		t.Fatalf("snapshot: %v", err)
	}
	if res.Recorded {
		t.Fatalf("expected duplicate content to not be recorded, got %+v", res)
	}
}

func TestSnapshotAdvancesVersionOnChange(t *testing.T) {
	s := openTestStore(t)
	s.Snapshot("sess-1", "/plans/a.md", []byte("v1"))
	res, err := s.Snapshot("sess-1", "/plans/a.md", []byte("v2"))
	if err != nil {
		t.Fatalf("snapshot: %v", err)
	}
	if res.Version != 2 {
		t.Fatalf("version = %d, want 2", res.Version)
	}
}

func TestVersionCountReflectsAtLeastTwoRule(t *testing.T) {
	s := openTestStore(t)
	s.Snapshot("sess-1", "/plans/a.md", []byte("v1"))
	n, _ := s.VersionCount("sess-1")
	if n != 1 {
		t.Fatalf("count = %d, want 1 before second snapshot", n)
	}
	s.Snapshot("sess-1", "/plans/a.md", []byte("v2"))
	n, _ = s.VersionCount("sess-1")
	if n != 2 {
		t.Fatalf("count = %d, want 2", n)
	}
}

func TestPlanPathRoundTrip(t *testing.T) {
	s := openTestStore(t)
	if _, ok, _ := s.PlanPath("surface-1"); ok {
		t.Fatal("expected no plan path before SetPlanPath")
	}
	if err := s.SetPlanPath("surface-1", "/plans/a.md"); err != nil {
		t.Fatalf("set: %v", err)
	}
	path, ok, err := s.PlanPath("surface-1")
	if err != nil || !ok || path != "/plans/a.md" {
		t.Fatalf("got (%q, %v, %v), want (/plans/a.md, true, nil)", path, ok, err)
	}
}
