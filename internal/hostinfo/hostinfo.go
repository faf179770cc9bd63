// Package hostinfo captures the machine facts stamped onto every build
// record: machine name, CPU model and counts, installed RAM, and the
// host IDE and daemon versions.
//
// Facts are captured once at startup and shared by reference afterwards;
// a Snapshot is never mutated after Capture returns.
package hostinfo

import (
	"context"
	"log/slog"
	"os"
	"os/user"

	"github.com/shirou/gopsutil/v4/cpu"
	"github.com/shirou/gopsutil/v4/mem"

	"github.com/vsbuildlogger/vsbuildlogger/internal/buildinfo"
)

// Snapshot is the immutable environment description attached to build
// records. Fields that could not be probed are left zero; encoding
// handles empty strings and zero counts without special cases.
type Snapshot struct {
	MachineName string
	CPUModel    string
	CPUCores    int
	CPUThreads  int
	RAMBytes    uint64

	// HostVersion is the IDE version reported by configuration
	// (the vs_version tag).
	HostVersion string
	// AgentVersion is this daemon's version (the extension_version tag).
	AgentVersion string
	// User is the OS account name. Empty unless the operator opted in.
	User string
}

// Options control what Capture records beyond the hardware probes.
type Options struct {
	// HostVersion is copied into Snapshot.HostVersion verbatim.
	HostVersion string
	// IncludeUser enables recording the OS account name. Off by
	// default: the user tag is still emitted on the wire, as an empty
	// string.
	IncludeUser bool
}

// Collector probes the local machine. The probe functions are fields so
// tests can substitute fixed values.
type Collector struct {
	hostname   func() (string, error)
	cpuInfo    func(ctx context.Context) ([]cpu.InfoStat, error)
	cpuCounts  func(ctx context.Context, logical bool) (int, error)
	virtualMem func(ctx context.Context) (*mem.VirtualMemoryStat, error)
	username   func() (string, error)
}

// NewCollector returns a Collector backed by the real OS probes.
func NewCollector() *Collector {
	return &Collector{
		hostname:   os.Hostname,
		cpuInfo:    cpu.InfoWithContext,
		cpuCounts:  cpu.CountsWithContext,
		virtualMem: mem.VirtualMemoryWithContext,
		username: func() (string, error) {
			u, err := user.Current()
			if err != nil {
				return "", err
			}
			return u.Username, nil
		},
	}
}

// Capture probes the machine and returns a Snapshot. Probe failures are
// logged and leave the corresponding field zero; Capture itself never
// fails, so a machine with an unreadable CPU inventory still gets its
// builds logged.
func (c *Collector) Capture(ctx context.Context, opts Options) *Snapshot {
	snap := &Snapshot{
		HostVersion:  opts.HostVersion,
		AgentVersion: buildinfo.String(),
	}

	if name, err := c.hostname(); err != nil {
		slog.Warn("hostinfo: hostname probe failed", "error", err)
	} else {
		snap.MachineName = name
	}

	if info, err := c.cpuInfo(ctx); err != nil {
		slog.Warn("hostinfo: cpu info probe failed", "error", err)
	} else if len(info) > 0 {
		snap.CPUModel = info[0].ModelName
	}

	if cores, err := c.cpuCounts(ctx, false); err != nil {
		slog.Warn("hostinfo: physical core count probe failed", "error", err)
	} else {
		snap.CPUCores = cores
	}

	if threads, err := c.cpuCounts(ctx, true); err != nil {
		slog.Warn("hostinfo: logical core count probe failed", "error", err)
	} else {
		snap.CPUThreads = threads
	}

	if vm, err := c.virtualMem(ctx); err != nil {
		slog.Warn("hostinfo: memory probe failed", "error", err)
	} else {
		snap.RAMBytes = vm.Total
	}

	if opts.IncludeUser {
		if name, err := c.username(); err != nil {
			slog.Warn("hostinfo: username probe failed", "error", err)
		} else {
			snap.User = name
		}
	}

	return snap
}

// Capture probes with the default Collector.
func Capture(ctx context.Context, opts Options) *Snapshot {
	return NewCollector().Capture(ctx, opts)
}
