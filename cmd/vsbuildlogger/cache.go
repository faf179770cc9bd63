package main

import (
	"fmt"
	"os"

	"github.com/spf13/cobra"

	"github.com/vsbuildlogger/vsbuildlogger/internal/cache"
	"github.com/vsbuildlogger/vsbuildlogger/internal/config"
)

func newCacheCmd(opts *rootOptions) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "cache",
		Short: "Inspect and manage the on-disk retry cache",
	}
	cmd.AddCommand(newCacheStatusCmd(opts), newCacheClearCmd(opts))
	return cmd
}

func newCacheStatusCmd(opts *rootOptions) *cobra.Command {
	return &cobra.Command{
		Use:   "status",
		Short: "Show retry cache location and backlog depth",
		RunE: func(cmd *cobra.Command, _ []string) error {
			store, maxLines, err := cacheFromConfig(opts)
			if err != nil {
				return err
			}

			out := cmd.OutOrStdout()
			fmt.Fprintf(out, "Path: %s\n", store.Path())
			fmt.Fprintf(out, "Capacity: %d line(s)\n", maxLines)

			info, err := os.Stat(store.Path())
			if os.IsNotExist(err) {
				fmt.Fprintln(out, "Backlog: empty (no cache file yet)")
				return nil
			}
			if err != nil {
				return fmt.Errorf("stat cache file: %w", err)
			}

			n, err := store.Lines()
			if err != nil {
				return fmt.Errorf("read cache: %w", err)
			}
			fmt.Fprintf(out, "Backlog: %d line(s), %d bytes\n", n, info.Size())
			return nil
		},
	}
}

func newCacheClearCmd(opts *rootOptions) *cobra.Command {
	return &cobra.Command{
		Use:   "clear",
		Short: "Discard all cached records",
		RunE: func(cmd *cobra.Command, _ []string) error {
			store, _, err := cacheFromConfig(opts)
			if err != nil {
				return err
			}

			n, err := store.Lines()
			if err != nil {
				return fmt.Errorf("read cache: %w", err)
			}
			if n == 0 {
				fmt.Fprintln(cmd.OutOrStdout(), "Retry cache is already empty")
				return nil
			}

			if err := store.Clear(); err != nil {
				return fmt.Errorf("clear cache: %w", err)
			}
			fmt.Fprintf(cmd.OutOrStdout(), "Discarded %d cached line(s)\n", n)
			return nil
		},
	}
}

func cacheFromConfig(opts *rootOptions) (*cache.Cache, int, error) {
	cfg, err := config.LoadOrDefaults(opts.configPath)
	if err != nil {
		return nil, 0, fmt.Errorf("load config: %w", err)
	}
	store, err := openCache(cfg)
	if err != nil {
		return nil, 0, err
	}
	maxLines := cfg.Cache.MaxLines
	if maxLines <= 0 {
		maxLines = cache.DefaultMaxLines
	}
	return store, maxLines, nil
}
