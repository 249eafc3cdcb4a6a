package report

import (
	"errors"
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"
)

func sample(id string, code int) *RunResult {
	start := time.Date(2024, 5, 1, 12, 0, 0, 0, time.UTC)
	return &RunResult{
		ID:         id,
		Label:      "DART_BUILD",
		Argv:       []string{"dart", "compile", "exe", "example/main.dart"},
		Dir:        "/project",
		ExitCode:   code,
		Output:     "Compiled successfully",
		StartedAt:  start,
		FinishedAt: start.Add(1500 * time.Millisecond),
		Seconds:    1.5,
		Artifact:   "example/main.dart",
	}
}

// memStore is a backing Store that counts loads.
type memStore struct {
	items map[string]*RunResult
	loads int
}

func newMemStore() *memStore { return &memStore{items: map[string]*RunResult{}} }

func (m *memStore) Save(r *RunResult) error { m.items[r.ID] = r; return nil }

func (m *memStore) Load(id string) (*RunResult, error) {
	m.loads++
	r, ok := m.items[id]
	if !ok {
		return nil, ErrNotFound
	}
	return r, nil
}

func TestRunResult_Status(t *testing.T) {
	if got := sample("a", 0).Status(); got != "pass" {
		t.Errorf("Status() = %q, want pass", got)
	}
	if got := sample("a", 1).Status(); got != "fail" {
		t.Errorf("Status() = %q, want fail", got)
	}
}

func TestDiskStore_RoundTrip(t *testing.T) {
	dir := t.TempDir()
	s := NewDiskStore(dir)
	want := sample("run-1", 1)
	if err := s.Save(want); err != nil {
		t.Fatalf("Save: %v", err)
	}
	if _, err := os.Stat(filepath.Join(dir, "run-1.json")); err != nil {
		t.Fatalf("expected file on disk: %v", err)
	}

	got, err := NewDiskStore(dir).Load("run-1")
	if err != nil {
		t.Fatalf("Load: %v", err)
	}
	if got.ExitCode != 1 || got.Output != want.Output || !got.StartedAt.Equal(want.StartedAt) {
		t.Errorf("Load = %+v, want %+v", got, want)
	}
}

func TestDiskStore_NotFound(t *testing.T) {
	s := NewDiskStore(t.TempDir())
	_, err := s.Load("missing")
	if !errors.Is(err, ErrNotFound) {
		t.Errorf("Load(missing) = %v, want ErrNotFound", err)
	}
}

func TestDiskStore_RejectsPathInRunID(t *testing.T) {
	s := NewDiskStore(t.TempDir())
	if _, err := s.Load("../etc/passwd"); err == nil {
		t.Error("expected error for run id containing a path")
	}
}

func TestDiskStore_LazyTempDir(t *testing.T) {
	s := NewDiskStore("")
	dir, err := s.Dir()
	if err != nil {
		t.Fatalf("Dir: %v", err)
	}
	t.Cleanup(func() { _ = os.RemoveAll(dir) })
	again, _ := s.Dir()
	if again != dir {
		t.Errorf("Dir() changed from %q to %q", dir, again)
	}
}

func TestLRUStore_WritesThrough(t *testing.T) {
	back := newMemStore()
	s := NewLRUStore(2, back)
	if err := s.Save(sample("a", 0)); err != nil {
		t.Fatal(err)
	}
	if _, ok := back.items["a"]; !ok {
		t.Error("Save did not reach the backing store")
	}
	if _, err := s.Load("a"); err != nil {
		t.Fatal(err)
	}
	if back.loads != 0 {
		t.Errorf("backing loads = %d, want 0 (cache hit)", back.loads)
	}
}

func TestLRUStore_Evicts(t *testing.T) {
	back := newMemStore()
	s := NewLRUStore(2, back)
	for _, id := range []string{"a", "b", "c"} {
		if err := s.Save(sample(id, 0)); err != nil {
			t.Fatal(err)
		}
	}
	if s.Len() != 2 {
		t.Fatalf("Len() = %d, want 2", s.Len())
	}

	// "a" was evicted and must come from the backing store.
	if _, err := s.Load("a"); err != nil {
		t.Fatal(err)
	}
	if back.loads != 1 {
		t.Errorf("backing loads = %d, want 1", back.loads)
	}
}

func TestLRUStore_LoadPromotes(t *testing.T) {
	back := newMemStore()
	s := NewLRUStore(2, back)
	_ = s.Save(sample("a", 0))
	_ = s.Save(sample("b", 0))
	_, _ = s.Load("a") // a is now most recent
	_ = s.Save(sample("c", 0))

	back.loads = 0
	if _, err := s.Load("a"); err != nil {
		t.Fatal(err)
	}
	if back.loads != 0 {
		t.Errorf("a was evicted despite recent use")
	}
}

func TestLRUStore_MissPropagatesError(t *testing.T) {
	s := NewLRUStore(1, newMemStore())
	if _, err := s.Load("nope"); !errors.Is(err, ErrNotFound) {
		t.Errorf("Load(nope) = %v, want ErrNotFound", err)
	}
}

func TestNewLRUStore_MinCapacity(t *testing.T) {
	s := NewLRUStore(0, newMemStore())
	_ = s.Save(sample("a", 0))
	_ = s.Save(sample("b", 0))
	if s.Len() != 1 {
		t.Errorf("Len() = %d, want 1", s.Len())
	}
}

func TestRunResult_String(t *testing.T) {
	text := sample("run-1", 0).String()
	for _, want := range []string{
		"Status: PASS",
		"Run: run-1",
		"Command: dart compile exe example/main.dart",
		"Exit code: 0",
		"Duration: 1.500s",
		"Artifact: example/main.dart",
		"Output:\nCompiled successfully\n",
	} {
		if !strings.Contains(text, want) {
			t.Errorf("String() missing %q:\n%s", want, text)
		}
	}
}

func TestRunResult_String_FailedAndTruncated(t *testing.T) {
	r := sample("run-2", 1)
	r.Output = ""
	r.Truncated = true
	text := r.String()
	for _, want := range []string{"Status: FAIL", "Output: (none)", "(output truncated)"} {
		if !strings.Contains(text, want) {
			t.Errorf("String() missing %q:\n%s", want, text)
		}
	}
	if strings.Contains(text, "Artifact:") {
		t.Errorf("artifact hint shown for failed build:\n%s", text)
	}
}

func TestRunResult_Killed(t *testing.T) {
	r := sample("run-3", -1)
	r.Killed = KilledTimeout
	if r.Success() {
		t.Error("Success() = true for a killed run")
	}
	if text := r.String(); !strings.Contains(text, "Killed: timeout") {
		t.Errorf("String() missing kill reason:\n%s", text)
	}
}
