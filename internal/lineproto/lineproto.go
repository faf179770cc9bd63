// Package lineproto renders build records into the line format the
// InfluxDB write endpoints accept.
//
// Encoding is pure: no clock reads, no I/O, no logging. The same record
// always produces the same bytes, which is what makes cached payloads
// replayable verbatim.
package lineproto

import (
	"strconv"
	"strings"
	"time"

	"github.com/vsbuildlogger/vsbuildlogger/internal/correlate"
	"github.com/vsbuildlogger/vsbuildlogger/internal/hostinfo"
)

// Measurement is the series name every build record is written under.
const Measurement = "build_event"

// WrapQuotes returns s surrounded by double quotes. String tag values
// travel quoted so that empty names stay representable.
func WrapQuotes(s string) string {
	return `"` + s + `"`
}

// EscapeSpaces replaces each literal space in s with a backslash-space
// sequence. Spaces are the line format's segment separators; project and
// solution names routinely contain them.
func EscapeSpaces(s string) string {
	return strings.ReplaceAll(s, " ", `\ `)
}

// FormatSeconds renders d as seconds with exactly three decimal places:
// 20s becomes "20.000", 1.5s becomes "1.500".
func FormatSeconds(d time.Duration) string {
	return strconv.FormatFloat(d.Seconds(), 'f', 3, 64)
}

// Encode renders one finished record as a single line:
//
//	build_event,<tags> build_start=...,build_finish=...,build_duration=... <timestamp>
//
// Timestamps are Unix seconds; the trailing point timestamp is the build
// finish instant. The record's pass id is internal bookkeeping and never
// appears in the output.
func Encode(r *correlate.Record) string {
	facts := r.Facts
	if facts == nil {
		facts = &hostinfo.Snapshot{}
	}

	start := strconv.FormatInt(r.Start.Unix(), 10)
	finish := strconv.FormatInt(r.Finish.Unix(), 10)

	var b strings.Builder
	b.WriteString(Measurement)
	tag(&b, "user", WrapQuotes(facts.User))
	tag(&b, "vs_version", WrapQuotes(facts.HostVersion))
	tag(&b, "extension_version", WrapQuotes(facts.AgentVersion))
	tag(&b, "project_name", WrapQuotes(r.Project))
	tag(&b, "solution_name", WrapQuotes(r.Solution))
	tag(&b, "machine_name", WrapQuotes(facts.MachineName))
	tag(&b, "build_type", WrapQuotes(r.Configuration))
	tag(&b, "build_event_type", WrapQuotes(r.Kind))
	tag(&b, "cpu_model", WrapQuotes(facts.CPUModel))
	tag(&b, "build_success", strconv.FormatBool(r.Success))
	tag(&b, "cpu_core_count", strconv.Itoa(facts.CPUCores))
	tag(&b, "cpu_thread_count", strconv.Itoa(facts.CPUThreads))
	tag(&b, "ram_size", strconv.FormatUint(facts.RAMBytes, 10))

	b.WriteString(" build_start=")
	b.WriteString(start)
	b.WriteString(",build_finish=")
	b.WriteString(finish)
	b.WriteString(",build_duration=")
	b.WriteString(FormatSeconds(r.Duration))

	b.WriteByte(' ')
	b.WriteString(finish)
	return b.String()
}

// EncodeBatch renders records as newline-separated lines, in order.
func EncodeBatch(records []*correlate.Record) string {
	lines := make([]string, len(records))
	for i, r := range records {
		lines[i] = Encode(r)
	}
	return strings.Join(lines, "\n")
}

func tag(b *strings.Builder, key, value string) {
	b.WriteByte(',')
	b.WriteString(key)
	b.WriteByte('=')
	b.WriteString(EscapeSpaces(value))
}
