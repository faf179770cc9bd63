// Package cache persists payloads that could not be delivered, one
// encoded line per file line, so they survive daemon restarts and ride
// along with the next delivery attempt.
package cache

import (
	"bufio"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"sync"
)

const (
	// DirName is the per-user state directory under the home directory.
	DirName = ".vs-build-logger"
	// FileName is the retry store inside the state directory.
	FileName = "influxdb-build-cache.txt"

	// DefaultMaxLines bounds the store. The bound is approximate: a
	// large batch appended to a store already at capacity can push it
	// past the limit, and eviction only reclaims as many lines as the
	// incoming batch carries.
	DefaultMaxLines = 1000
)

// maxLineBytes sizes the scanner buffer for eviction rewrites. Encoded
// build lines are far smaller; this is the hard ceiling.
const maxLineBytes = 1 << 20

// DefaultDir returns the per-user state directory, ~/.vs-build-logger.
func DefaultDir() (string, error) {
	home, err := os.UserHomeDir()
	if err != nil {
		return "", fmt.Errorf("resolve home directory: %w", err)
	}
	return filepath.Join(home, DirName), nil
}

// Cache is a bounded, append-only line store on disk. The directory and
// file are created lazily on first append; creation is idempotent.
//
// Cache serializes its own file access, but the delivery pipeline still
// funnels all mutation through the single dispatch goroutine so that
// read-send-clear sequences stay atomic with respect to each other.
type Cache struct {
	mu       sync.Mutex
	dir      string
	path     string
	maxLines int
}

// New returns a Cache rooted at dir. maxLines <= 0 selects
// DefaultMaxLines. Nothing touches the filesystem until the first
// append.
func New(dir string, maxLines int) *Cache {
	if maxLines <= 0 {
		maxLines = DefaultMaxLines
	}
	return &Cache{
		dir:      dir,
		path:     filepath.Join(dir, FileName),
		maxLines: maxLines,
	}
}

// Path returns the location of the store file.
func (c *Cache) Path() string {
	return c.path
}

// MaxLines returns the store's line capacity.
func (c *Cache) MaxLines() int {
	return c.maxLines
}

// HasData reports whether the store holds any cached payload.
func (c *Cache) HasData() bool {
	c.mu.Lock()
	defer c.mu.Unlock()

	info, err := os.Stat(c.path)
	return err == nil && info.Size() > 0
}

// Get returns the entire cached payload. A store that was never written
// reads as empty.
func (c *Cache) Get() (string, error) {
	c.mu.Lock()
	defer c.mu.Unlock()

	data, err := os.ReadFile(c.path)
	if os.IsNotExist(err) {
		return "", nil
	}
	if err != nil {
		return "", fmt.Errorf("read retry cache: %w", err)
	}
	return string(data), nil
}

// Lines returns the number of cached lines.
func (c *Cache) Lines() (int, error) {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.countLocked()
}

// Clear empties the store. Clearing a store that does not exist yet is
// a no-op.
func (c *Cache) Clear() error {
	c.mu.Lock()
	defer c.mu.Unlock()

	err := os.Truncate(c.path, 0)
	if os.IsNotExist(err) {
		return nil
	}
	if err != nil {
		return fmt.Errorf("clear retry cache: %w", err)
	}
	return nil
}

// Append adds payload to the end of the store, creating it on first
// use. If the store is already at capacity, the oldest lines are
// evicted first, as many as the incoming payload carries, so newer
// failures displace older ones.
//
// The payload is normalized to end in exactly one newline; interior
// newlines separate batch lines and are preserved.
func (c *Cache) Append(payload string) error {
	payload = strings.TrimRight(payload, "\n")
	if payload == "" {
		return nil
	}
	payload += "\n"
	incoming := strings.Count(payload, "\n")

	c.mu.Lock()
	defer c.mu.Unlock()

	if err := c.ensureLocked(); err != nil {
		return err
	}

	current, err := c.countLocked()
	if err != nil {
		return err
	}
	if current >= c.maxLines {
		if err := c.evictLocked(incoming, payload); err != nil {
			return err
		}
		return nil
	}

	f, err := os.OpenFile(c.path, os.O_WRONLY|os.O_APPEND, 0o600)
	if err != nil {
		return fmt.Errorf("open retry cache: %w", err)
	}
	defer f.Close()

	if _, err := f.WriteString(payload); err != nil {
		return fmt.Errorf("append retry cache: %w", err)
	}
	return nil
}

// ensureLocked creates the state directory and store file if missing.
func (c *Cache) ensureLocked() error {
	if err := os.MkdirAll(c.dir, 0o700); err != nil {
		return fmt.Errorf("create cache directory: %w", err)
	}
	f, err := os.OpenFile(c.path, os.O_CREATE|os.O_WRONLY, 0o600)
	if err != nil {
		return fmt.Errorf("create retry cache: %w", err)
	}
	return f.Close()
}

func (c *Cache) countLocked() (int, error) {
	f, err := os.Open(c.path)
	if os.IsNotExist(err) {
		return 0, nil
	}
	if err != nil {
		return 0, fmt.Errorf("open retry cache: %w", err)
	}
	defer f.Close()

	n := 0
	sc := bufio.NewScanner(f)
	sc.Buffer(make([]byte, 0, 64*1024), maxLineBytes)
	for sc.Scan() {
		n++
	}
	if err := sc.Err(); err != nil {
		return 0, fmt.Errorf("scan retry cache: %w", err)
	}
	return n, nil
}

// evictLocked drops the drop oldest lines and appends payload, writing
// the result through a temp file so a crash mid-rewrite cannot corrupt
// the store.
func (c *Cache) evictLocked(drop int, payload string) error {
	f, err := os.Open(c.path)
	if err != nil {
		return fmt.Errorf("open retry cache: %w", err)
	}

	var kept strings.Builder
	skipped := 0
	sc := bufio.NewScanner(f)
	sc.Buffer(make([]byte, 0, 64*1024), maxLineBytes)
	for sc.Scan() {
		if skipped < drop {
			skipped++
			continue
		}
		kept.WriteString(sc.Text())
		kept.WriteByte('\n')
	}
	if err := sc.Err(); err != nil {
		f.Close()
		return fmt.Errorf("scan retry cache: %w", err)
	}
	f.Close()

	kept.WriteString(payload)

	tmp := c.path + ".tmp"
	if err := os.WriteFile(tmp, []byte(kept.String()), 0o600); err != nil {
		return fmt.Errorf("write retry cache: %w", err)
	}
	if err := os.Rename(tmp, c.path); err != nil {
		return fmt.Errorf("replace retry cache: %w", err)
	}
	return nil
}
