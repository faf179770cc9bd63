package main

import (
	"errors"
	"fmt"
	"os"
	"runtime"

	"github.com/spf13/cobra"

	"github.com/vsbuildlogger/vsbuildlogger/internal/cache"
	"github.com/vsbuildlogger/vsbuildlogger/internal/config"
	"github.com/vsbuildlogger/vsbuildlogger/internal/influx"
)

func newCheckCmd(opts *rootOptions) *cobra.Command {
	return &cobra.Command{
		Use:   "check",
		Short: "Run configuration and connectivity diagnostics",
		RunE: func(cmd *cobra.Command, _ []string) error {
			out := cmd.OutOrStdout()

			fmt.Fprintln(out, "vsbuildlogger check")
			fmt.Fprintln(out)
			fmt.Fprintf(out, "OS: %s/%s\n", runtime.GOOS, runtime.GOARCH)
			fmt.Fprintf(out, "Config file: %s\n", opts.configPath)

			if _, err := os.Stat(opts.configPath); os.IsNotExist(err) {
				printWarn(out, "Config file: NOT FOUND (using defaults and environment)")
			}

			cfg, err := config.LoadOrDefaults(opts.configPath)
			if err != nil {
				printError(out, "Config load: FAILED (%v)", err)
				return errors.New("diagnostics failed")
			}
			printOK(out, "Config load: OK")

			failed := false

			// Backend settings. Secrets are reported as present or
			// missing, never printed.
			fmt.Fprintln(out)
			switch cfg.Influx.Variant {
			case config.VariantV1:
				fmt.Fprintf(out, "Backend: InfluxDB 1.x at %s (database %q, user %q)\n",
					cfg.Influx.URL, cfg.Influx.Database, cfg.Influx.Username)
				if cfg.Influx.EffectivePassword() == "" {
					printWarn(out, "Credentials: password not set")
					if cfg.Influx.PasswordEnv != "" {
						printHint(out, "Expected in environment variable %s.", cfg.Influx.PasswordEnv)
					}
				} else {
					printOK(out, "Credentials: password set")
				}
			case config.VariantV2:
				fmt.Fprintf(out, "Backend: InfluxDB 2.x at %s (org %q, bucket %q)\n",
					cfg.Influx.URL, cfg.Influx.Org, cfg.Influx.Bucket)
				if cfg.Influx.EffectiveToken() == "" {
					printWarn(out, "Credentials: token not set")
					if cfg.Influx.TokenEnv != "" {
						printHint(out, "Expected in environment variable %s.", cfg.Influx.TokenEnv)
					}
				} else {
					printOK(out, "Credentials: token set")
				}
			default:
				printWarn(out, "Backend: no write variant configured")
				printHint(out, "Set influx.variant to v1 or v2; until then completed builds are dropped at dispatch.")
			}

			// Connectivity and certificate, only when there is a URL to probe.
			if cfg.Influx.URL != "" {
				client := influx.New(nil)
				if err := client.CheckConnection(cmd.Context(), cfg.Influx); err != nil {
					printError(out, "Connectivity (ping): FAILED (%v)", err)
					failed = true
				} else {
					printOK(out, "Connectivity (ping): OK")
				}

				if cs := influx.InspectTLS(cmd.Context(), cfg.Influx.URL); cs != nil {
					switch cs.Status {
					case "valid":
						printOK(out, "TLS certificate: OK (issuer %q, %d day(s) left)", cs.Issuer, cs.DaysLeft)
					case "expiring":
						printWarn(out, "TLS certificate: EXPIRING in %d day(s) (not after %s)", cs.DaysLeft, cs.NotAfter)
					case "expired":
						printError(out, "TLS certificate: EXPIRED (not after %s)", cs.NotAfter)
						failed = true
					default:
						printError(out, "TLS certificate: endpoint %s unreachable", cs.Endpoint)
						failed = true
					}
				}
			}

			// Retry cache.
			fmt.Fprintln(out)
			cacheDir := cfg.Cache.Dir
			if cacheDir == "" {
				cacheDir, err = cache.DefaultDir()
				if err != nil {
					printError(out, "Cache directory: FAILED (%v)", err)
					return errors.New("diagnostics failed")
				}
			}
			store := cache.New(cacheDir, cfg.Cache.MaxLines)
			fmt.Fprintf(out, "Retry cache: %s\n", store.Path())

			if err := ensureWritable(cacheDir); err != nil {
				printError(out, "Cache writable check: FAILED (%v)", err)
				failed = true
			} else {
				printOK(out, "Cache writable check: OK")
			}

			if n, err := store.Lines(); err != nil {
				printError(out, "Cache read check: FAILED (%v)", err)
				failed = true
			} else if n > 0 {
				printWarn(out, "Cache backlog: %d line(s) awaiting delivery", n)
			} else {
				printOK(out, "Cache backlog: empty")
			}

			if failed {
				return errors.New("one or more checks failed")
			}
			return nil
		},
	}
}

// ensureWritable proves the directory accepts writes by creating and
// removing a probe file.
func ensureWritable(dir string) error {
	if err := os.MkdirAll(dir, 0o700); err != nil {
		return fmt.Errorf("create cache dir: %w", err)
	}
	file, err := os.CreateTemp(dir, "check-write-*")
	if err != nil {
		return fmt.Errorf("create probe file: %w", err)
	}
	path := file.Name()
	if err := file.Close(); err != nil {
		_ = os.Remove(path)
		return fmt.Errorf("close probe file: %w", err)
	}
	if err := os.Remove(path); err != nil {
		return fmt.Errorf("remove probe file: %w", err)
	}
	return nil
}
