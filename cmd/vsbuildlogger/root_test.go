package main

import (
	"bytes"
	"strings"
	"testing"
)

func TestCommandsRegistered(t *testing.T) {
	t.Parallel()

	root := newRootCmd()

	tests := []struct {
		input   []string
		wantUse string
	}{
		{[]string{"serve"}, "serve"},
		{[]string{"check"}, "check"},
		{[]string{"replay"}, "replay"},
		{[]string{"cache"}, "cache"},
		{[]string{"cache", "status"}, "status"},
		{[]string{"cache", "clear"}, "clear"},
		{[]string{"version"}, "version"},
		{[]string{"v"}, "version"},
	}

	for _, tc := range tests {
		t.Run(strings.Join(tc.input, " "), func(t *testing.T) {
			cmd, _, err := root.Find(tc.input)
			if err != nil {
				t.Fatalf("root.Find(%v) failed: %v", tc.input, err)
			}
			if cmd == nil || cmd.Name() != tc.wantUse {
				t.Fatalf("resolved to %q, want %q", cmd.Name(), tc.wantUse)
			}
		})
	}
}

func TestPersistentFlags(t *testing.T) {
	t.Parallel()

	root := newRootCmd()
	if root.PersistentFlags().Lookup("config") == nil {
		t.Error("persistent flag --config is not configured")
	}
	if root.PersistentFlags().Lookup("log-level") == nil {
		t.Error("persistent flag --log-level is not configured")
	}
}

func TestVersionOutput(t *testing.T) {
	t.Parallel()

	root := newRootCmd()
	var out bytes.Buffer
	root.SetOut(&out)
	root.SetErr(&out)
	root.SetArgs([]string{"version"})

	if err := root.Execute(); err != nil {
		t.Fatalf("version command failed: %v", err)
	}
	if !strings.HasPrefix(out.String(), "vsbuildlogger ") {
		t.Errorf("version output = %q", out.String())
	}
}
