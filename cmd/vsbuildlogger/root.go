package main

import (
	"io"
	"log/slog"

	"github.com/spf13/cobra"
)

// rootOptions carries the persistent flags shared by every subcommand.
type rootOptions struct {
	configPath string
	logLevel   string
}

func newRootCmd() *cobra.Command {
	opts := &rootOptions{}

	rootCmd := &cobra.Command{
		Use:   "vsbuildlogger",
		Short: "Ship Visual Studio build telemetry to InfluxDB",
		Long: "vsbuildlogger runs a local daemon that receives build lifecycle events\n" +
			"from the IDE, correlates them into timed build records, and ships them\n" +
			"to InfluxDB with an on-disk retry cache for offline periods.",
	}

	rootCmd.SilenceUsage = true
	rootCmd.SilenceErrors = true

	rootCmd.PersistentFlags().StringVar(&opts.configPath, "config", "config.yaml", "path to config file")
	rootCmd.PersistentFlags().StringVar(&opts.logLevel, "log-level", "info", "log level: debug|info|warn|error")

	rootCmd.AddCommand(
		newServeCmd(opts),
		newCheckCmd(opts),
		newReplayCmd(opts),
		newCacheCmd(opts),
		newVersionCmd(),
	)

	return rootCmd
}

// setupLogger installs the global JSON logger. Serve logs to stdout;
// offline commands log to stderr so stdout stays clean for payload
// output.
func setupLogger(w io.Writer, level string) {
	logger := slog.New(slog.NewJSONHandler(w, &slog.HandlerOptions{Level: parseLevel(level)}))
	slog.SetDefault(logger)
}

func parseLevel(s string) slog.Level {
	switch s {
	case "debug":
		return slog.LevelDebug
	case "warn":
		return slog.LevelWarn
	case "error":
		return slog.LevelError
	default:
		return slog.LevelInfo
	}
}
