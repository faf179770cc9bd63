package cache

import (
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"testing"
)

func newTestCache(t *testing.T, maxLines int) *Cache {
	t.Helper()
	return New(filepath.Join(t.TempDir(), DirName), maxLines)
}

func mustLines(t *testing.T, c *Cache) []string {
	t.Helper()
	data, err := c.Get()
	if err != nil {
		t.Fatalf("Get: %v", err)
	}
	if data == "" {
		return nil
	}
	return strings.Split(strings.TrimRight(data, "\n"), "\n")
}

func TestLazyCreation(t *testing.T) {
	c := newTestCache(t, 0)

	if c.HasData() {
		t.Error("HasData = true before any append")
	}
	if _, err := os.Stat(c.Path()); !os.IsNotExist(err) {
		t.Errorf("store file exists before first append: %v", err)
	}
	data, err := c.Get()
	if err != nil || data != "" {
		t.Errorf("Get on missing store = %q, %v; want empty, nil", data, err)
	}
	n, err := c.Lines()
	if err != nil || n != 0 {
		t.Errorf("Lines on missing store = %d, %v", n, err)
	}

	if err := c.Append("line-1"); err != nil {
		t.Fatalf("Append: %v", err)
	}
	if _, err := os.Stat(c.Path()); err != nil {
		t.Errorf("store file missing after append: %v", err)
	}
	if !c.HasData() {
		t.Error("HasData = false after append")
	}
}

func TestAppendNormalizesNewlines(t *testing.T) {
	c := newTestCache(t, 0)

	if err := c.Append("a"); err != nil {
		t.Fatal(err)
	}
	if err := c.Append("b\n\n\n"); err != nil {
		t.Fatal(err)
	}
	if err := c.Append(""); err != nil {
		t.Fatal(err)
	}

	data, err := c.Get()
	if err != nil {
		t.Fatal(err)
	}
	if data != "a\nb\n" {
		t.Errorf("content = %q, want %q", data, "a\nb\n")
	}
}

func TestAppendPreservesOrder(t *testing.T) {
	c := newTestCache(t, 0)

	if err := c.Append("first\nsecond"); err != nil {
		t.Fatal(err)
	}
	if err := c.Append("third"); err != nil {
		t.Fatal(err)
	}

	got := mustLines(t, c)
	want := []string{"first", "second", "third"}
	if len(got) != len(want) {
		t.Fatalf("lines = %v, want %v", got, want)
	}
	for i := range want {
		if got[i] != want[i] {
			t.Errorf("line %d = %q, want %q", i, got[i], want[i])
		}
	}
}

func TestClear(t *testing.T) {
	c := newTestCache(t, 0)

	// Clearing a store that was never created is fine.
	if err := c.Clear(); err != nil {
		t.Fatalf("Clear on missing store: %v", err)
	}

	if err := c.Append("line"); err != nil {
		t.Fatal(err)
	}
	if err := c.Clear(); err != nil {
		t.Fatalf("Clear: %v", err)
	}
	if c.HasData() {
		t.Error("HasData = true after Clear")
	}

	// The store keeps working after a clear.
	if err := c.Append("again"); err != nil {
		t.Fatal(err)
	}
	if got := mustLines(t, c); len(got) != 1 || got[0] != "again" {
		t.Errorf("lines after clear+append = %v", got)
	}
}

func TestEvictionAtCapacity(t *testing.T) {
	c := newTestCache(t, 5)

	for i := 1; i <= 5; i++ {
		if err := c.Append(fmt.Sprintf("old-%d", i)); err != nil {
			t.Fatal(err)
		}
	}

	// At capacity: a 2-line batch evicts the 2 oldest lines.
	if err := c.Append("new-1\nnew-2"); err != nil {
		t.Fatal(err)
	}

	got := mustLines(t, c)
	want := []string{"old-3", "old-4", "old-5", "new-1", "new-2"}
	if len(got) != len(want) {
		t.Fatalf("lines = %v, want %v", got, want)
	}
	for i := range want {
		if got[i] != want[i] {
			t.Errorf("line %d = %q, want %q", i, got[i], want[i])
		}
	}
}

func TestNoEvictionBelowCapacity(t *testing.T) {
	c := newTestCache(t, 5)

	if err := c.Append("old-1\nold-2\nold-3"); err != nil {
		t.Fatal(err)
	}
	// 3 < 5, so an 8-line batch appends without eviction and the store
	// overshoots its bound. That is the documented tradeoff: eviction
	// only triggers at or above capacity.
	var batch []string
	for i := 1; i <= 8; i++ {
		batch = append(batch, fmt.Sprintf("new-%d", i))
	}
	if err := c.Append(strings.Join(batch, "\n")); err != nil {
		t.Fatal(err)
	}

	n, err := c.Lines()
	if err != nil {
		t.Fatal(err)
	}
	if n != 11 {
		t.Errorf("lines = %d, want 11", n)
	}
	got := mustLines(t, c)
	if got[0] != "old-1" {
		t.Errorf("oldest line = %q, want old-1", got[0])
	}
}

func TestEvictionKeepsNewestUnderChurn(t *testing.T) {
	c := newTestCache(t, 10)

	for i := 1; i <= 30; i++ {
		if err := c.Append(fmt.Sprintf("line-%d", i)); err != nil {
			t.Fatal(err)
		}
	}

	got := mustLines(t, c)
	if len(got) != 10 {
		t.Fatalf("lines = %d, want 10", len(got))
	}
	if got[0] != "line-21" || got[9] != "line-30" {
		t.Errorf("window = %q..%q, want line-21..line-30", got[0], got[9])
	}
}

func TestDefaultMaxLines(t *testing.T) {
	c := New(t.TempDir(), 0)
	if c.maxLines != DefaultMaxLines {
		t.Errorf("maxLines = %d, want %d", c.maxLines, DefaultMaxLines)
	}
	if filepath.Base(c.Path()) != FileName {
		t.Errorf("Path = %q, want base %q", c.Path(), FileName)
	}
}
