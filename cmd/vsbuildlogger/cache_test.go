package main

import (
	"bytes"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/vsbuildlogger/vsbuildlogger/internal/cache"
)

func runCacheCmd(t *testing.T, configPath string, args ...string) string {
	t.Helper()

	root := newRootCmd()
	var out bytes.Buffer
	root.SetOut(&out)
	root.SetErr(&out)
	root.SetArgs(append(append([]string{"cache"}, args...), "--config", configPath))
	if err := root.Execute(); err != nil {
		t.Fatalf("cache %v failed: %v\noutput:\n%s", args, err, out.String())
	}
	return out.String()
}

func TestCacheStatusAndClear(t *testing.T) {
	t.Parallel()

	dir := t.TempDir()
	cacheDir := filepath.Join(dir, "cache")
	cfgPath := filepath.Join(dir, "config.yaml")
	if err := os.WriteFile(cfgPath, []byte("cache:\n  dir: "+cacheDir+"\n"), 0o600); err != nil {
		t.Fatalf("write config: %v", err)
	}

	got := runCacheCmd(t, cfgPath, "status")
	if !strings.Contains(got, "Backlog: empty (no cache file yet)") {
		t.Errorf("fresh cache not reported empty:\n%s", got)
	}
	if want := fmt.Sprintf("Capacity: %d line(s)", cache.DefaultMaxLines); !strings.Contains(got, want) {
		t.Errorf("output missing %q:\n%s", want, got)
	}

	store := cache.New(cacheDir, 0)
	if err := store.Append("build_event a=1 1\nbuild_event b=2 2"); err != nil {
		t.Fatalf("seed cache: %v", err)
	}

	got = runCacheCmd(t, cfgPath, "status")
	if !strings.Contains(got, "Backlog: 2 line(s)") {
		t.Errorf("backlog depth not reported:\n%s", got)
	}
	if !strings.Contains(got, "Path: "+store.Path()) {
		t.Errorf("cache path not reported:\n%s", got)
	}

	got = runCacheCmd(t, cfgPath, "clear")
	if !strings.Contains(got, "Discarded 2 cached line(s)") {
		t.Errorf("clear did not report discarded lines:\n%s", got)
	}

	got = runCacheCmd(t, cfgPath, "clear")
	if !strings.Contains(got, "Retry cache is already empty") {
		t.Errorf("second clear not a no-op:\n%s", got)
	}

	got = runCacheCmd(t, cfgPath, "status")
	if !strings.Contains(got, "Backlog: 0 line(s), 0 bytes") {
		t.Errorf("cleared cache not reported empty:\n%s", got)
	}
}
