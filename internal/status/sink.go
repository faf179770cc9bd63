package status

import (
	"fmt"
	"io"
	"log/slog"
)

// Sink receives one-line progress reports from the pipeline: pass
// started, records queued, delivery failed, and so on. It stands in for
// the IDE output window the original desktop tooling wrote to.
//
// Reporting is best effort. Implementations must never block the caller
// on slow consumers and must never return an error.
type Sink interface {
	Printf(format string, args ...any)
}

type writerSink struct {
	w io.Writer
}

// NewWriterSink returns a Sink that writes one line per report to w.
// Write errors are dropped.
func NewWriterSink(w io.Writer) Sink {
	return &writerSink{w: w}
}

func (s *writerSink) Printf(format string, args ...any) {
	fmt.Fprintf(s.w, format+"\n", args...)
}

type slogSink struct {
	log *slog.Logger
}

// NewSlogSink returns a Sink that reports through the given structured
// logger at info level.
func NewSlogSink(log *slog.Logger) Sink {
	return &slogSink{log: log}
}

func (s *slogSink) Printf(format string, args ...any) {
	s.log.Info(fmt.Sprintf(format, args...))
}

type multiSink struct {
	sinks []Sink
}

// Multi fans each report out to every given sink in order.
func Multi(sinks ...Sink) Sink {
	return &multiSink{sinks: sinks}
}

func (s *multiSink) Printf(format string, args ...any) {
	for _, sink := range s.sinks {
		sink.Printf(format, args...)
	}
}

type nopSink struct{}

// Nop returns a Sink that discards everything.
func Nop() Sink {
	return nopSink{}
}

func (nopSink) Printf(format string, args ...any) {}
