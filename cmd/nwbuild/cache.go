package main

import (
	"fmt"
	"io"
	"io/fs"
	"path/filepath"
	"slices"

	"github.com/dustin/go-humanize"
	"github.com/spf13/cobra"

	"github.com/conn-castle/nwbuild/internal/cache"
	"github.com/conn-castle/nwbuild/internal/messages"
)

func newCacheCmd(flags *rootFlags) *cobra.Command {
	cmd := &cobra.Command{
		Use:   messages.CacheUse,
		Short: messages.CacheShort,
		Args:  cobra.NoArgs,
	}
	cmd.AddCommand(newCacheLsCmd(flags), newCacheCleanCmd(flags))
	return cmd
}

func newCacheLsCmd(flags *rootFlags) *cobra.Command {
	return &cobra.Command{
		Use:   messages.CacheLsUse,
		Short: messages.CacheLsShort,
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			mgr, err := cacheManager(cmd, flags)
			if err != nil {
				return err
			}
			entries, err := mgr.List()
			if err != nil {
				return err
			}
			out := cmd.OutOrStdout()
			if len(entries) == 0 {
				_, err := fmt.Fprintf(out, messages.CacheLsEmptyFmt, mgr.Root)
				return err
			}
			for _, e := range entries {
				if _, err := fmt.Fprintf(out, messages.CacheLsRowFmt, e.Key, e.State, humanize.Bytes(dirSize(e.Path)), e.Path); err != nil {
					return err
				}
			}
			return nil
		},
	}
}

func newCacheCleanCmd(flags *rootFlags) *cobra.Command {
	var all bool
	cmd := &cobra.Command{
		Use:   messages.CacheCleanUse,
		Short: messages.CacheCleanShort,
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			mgr, err := cacheManager(cmd, flags)
			if err != nil {
				return err
			}
			out := cmd.OutOrStdout()
			cleaned, err := mgr.Sweep()
			if err != nil {
				return err
			}
			if all {
				removed, err := removeEntries(mgr, out)
				if err != nil {
					return err
				}
				for _, key := range removed {
					if !slices.Contains(cleaned, key) {
						cleaned = append(cleaned, key)
					}
				}
			}
			if len(cleaned) == 0 {
				_, err := fmt.Fprintln(out, messages.CacheCleanNone)
				return err
			}
			for _, key := range cleaned {
				if _, err := fmt.Fprintf(out, messages.CacheCleanedFmt, key); err != nil {
					return err
				}
			}
			return nil
		},
	}
	cmd.Flags().BoolVar(&all, "all", false, messages.CacheCleanAll)
	return cmd
}

// removeEntries deletes every populated entry whose lock is free.
func removeEntries(mgr *cache.Manager, out io.Writer) ([]string, error) {
	entries, err := mgr.List()
	if err != nil {
		return nil, err
	}
	var removed []string
	for _, e := range entries {
		unlock, ok, err := mgr.TryLock(e.Key)
		if err != nil {
			return removed, err
		}
		if !ok {
			_, _ = fmt.Fprintf(out, messages.CacheSkipLocked, e.Key)
			continue
		}
		removeErr := mgr.Remove(e.Key)
		_ = unlock()
		if removeErr != nil {
			return removed, removeErr
		}
		removed = append(removed, e.Key)
	}
	return removed, nil
}

func cacheManager(cmd *cobra.Command, flags *rootFlags) (*cache.Manager, error) {
	inv, err := flags.load(cmd)
	if err != nil {
		return nil, err
	}
	opts, err := inv.resolveOptions()
	if err != nil {
		return nil, err
	}
	return cache.New(opts.CacheDir, inv.logger.Named("cache")), nil
}

func dirSize(dir string) uint64 {
	var total uint64
	_ = filepath.WalkDir(dir, func(_ string, d fs.DirEntry, err error) error {
		if err != nil || d.IsDir() {
			return nil
		}
		if info, err := d.Info(); err == nil {
			total += uint64(info.Size())
		}
		return nil
	})
	return total
}
