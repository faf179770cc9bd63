package main

import (
	"bufio"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"os"

	"github.com/spf13/cobra"

	"github.com/vsbuildlogger/vsbuildlogger/internal/alerts"
	"github.com/vsbuildlogger/vsbuildlogger/internal/cache"
	"github.com/vsbuildlogger/vsbuildlogger/internal/config"
	"github.com/vsbuildlogger/vsbuildlogger/internal/correlate"
	"github.com/vsbuildlogger/vsbuildlogger/internal/dispatch"
	"github.com/vsbuildlogger/vsbuildlogger/internal/hostinfo"
	"github.com/vsbuildlogger/vsbuildlogger/internal/influx"
	"github.com/vsbuildlogger/vsbuildlogger/internal/ingest"
	"github.com/vsbuildlogger/vsbuildlogger/internal/lineproto"
	"github.com/vsbuildlogger/vsbuildlogger/internal/metrics"
	"github.com/vsbuildlogger/vsbuildlogger/internal/status"
	"github.com/vsbuildlogger/vsbuildlogger/pkg/buildevent"
)

func newReplayCmd(opts *rootOptions) *cobra.Command {
	var dryRun bool

	cmd := &cobra.Command{
		Use:   "replay <events-file>",
		Short: "Replay recorded build events through the delivery pipeline",
		Long: "replay reads newline-delimited JSON build events, correlates them into\n" +
			"build records, and delivers each completed pass synchronously with the\n" +
			"same retry-cache transaction the daemon uses. With --dry-run the encoded\n" +
			"line protocol is printed to stdout instead of being sent.",
		Args: cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			setupLogger(cmd.ErrOrStderr(), opts.logLevel)

			in, closeIn, err := openEvents(args[0])
			if err != nil {
				return err
			}
			defer closeIn()

			cfg, err := config.LoadOrDefaults(opts.configPath)
			if err != nil {
				return fmt.Errorf("load config: %w", err)
			}

			tracker := status.NewTracker()
			sink := status.NewWriterSink(cmd.ErrOrStderr())
			facts := hostinfo.Capture(cmd.Context(), hostinfo.Options{
				HostVersion: cfg.VSVersion,
				IncludeUser: cfg.IncludeUser,
			})

			var batcher correlate.Batcher
			printer := &printBatcher{out: cmd.OutOrStdout()}
			if dryRun {
				batcher = printer
			} else {
				store, err := openCache(cfg)
				if err != nil {
					return err
				}
				disp := dispatch.New(influx.New(nil), store, config.NewProvider(cfg), sink,
					tracker, metrics.Nop{}, alerts.New(cfg.Alerts), 0)
				batcher = syncBatcher{ctx: cmd.Context(), disp: disp}
			}

			corr := correlate.New(facts, batcher, sink, tracker)
			loop := ingest.NewLoop(corr, metrics.Nop{}, 0)

			read, skipped := 0, 0
			scanner := bufio.NewScanner(in)
			scanner.Buffer(make([]byte, 0, 64*1024), 1<<20)
			for scanner.Scan() {
				line := scanner.Bytes()
				if len(line) == 0 {
					continue
				}
				read++

				var ev buildevent.Event
				if err := json.Unmarshal(line, &ev); err != nil {
					skipped++
					fmt.Fprintf(cmd.ErrOrStderr(), "line %d: malformed event: %v\n", read, err)
					continue
				}
				if err := ev.Validate(); err != nil {
					skipped++
					fmt.Fprintf(cmd.ErrOrStderr(), "line %d: invalid event: %v\n", read, err)
					continue
				}
				loop.Apply(ev)
			}
			if err := scanner.Err(); err != nil {
				return fmt.Errorf("read events: %w", err)
			}

			s := tracker.Summary()
			if s.ActivePass {
				printWarn(cmd.ErrOrStderr(), "input ended mid-pass; the open pass was discarded")
			}

			if dryRun {
				fmt.Fprintf(cmd.ErrOrStderr(), "Encoded %d record(s) from %d event(s), %d skipped\n",
					printer.records, read, skipped)
				return nil
			}
			fmt.Fprintf(cmd.OutOrStdout(), "Replayed %d event(s): %d pass(es), %d record(s) delivered, %d skipped\n",
				read, s.PassesSeen, s.RecordsDelivered, skipped)
			if s.LastError != "" {
				printWarn(cmd.OutOrStdout(), "last delivery error: %s", s.LastError)
				printHint(cmd.OutOrStdout(), "Undelivered records are in the retry cache; run the daemon or replay again later.")
			}
			return nil
		},
	}

	cmd.Flags().BoolVar(&dryRun, "dry-run", false, "print encoded line protocol instead of sending")
	return cmd
}

func openEvents(path string) (io.Reader, func() error, error) {
	if path == "-" {
		return os.Stdin, func() error { return nil }, nil
	}
	f, err := os.Open(path)
	if err != nil {
		return nil, nil, fmt.Errorf("open events file: %w", err)
	}
	return f, f.Close, nil
}

func openCache(cfg *config.Config) (*cache.Cache, error) {
	dir := cfg.Cache.Dir
	if dir == "" {
		var err error
		dir, err = cache.DefaultDir()
		if err != nil {
			return nil, fmt.Errorf("resolve cache directory: %w", err)
		}
	}
	return cache.New(dir, cfg.Cache.MaxLines), nil
}

// printBatcher encodes each finished pass to stdout. Used by --dry-run.
type printBatcher struct {
	out     io.Writer
	records int
}

func (b *printBatcher) Enqueue(records []*correlate.Record) {
	if len(records) == 0 {
		return
	}
	b.records += len(records)
	fmt.Fprintln(b.out, lineproto.EncodeBatch(records))
}

// syncBatcher delivers each finished pass inline. Replay has no worker,
// so every pass settles against the retry cache before the next event
// is read.
type syncBatcher struct {
	ctx  context.Context
	disp *dispatch.Dispatcher
}

func (b syncBatcher) Enqueue(records []*correlate.Record) {
	b.disp.DispatchNow(b.ctx, records)
}
