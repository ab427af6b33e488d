package cmd

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"time"

	"github.com/evenwebb/wtw-cinemas-calendar/internal/cache"
	"github.com/evenwebb/wtw-cinemas-calendar/internal/config"
	"github.com/evenwebb/wtw-cinemas-calendar/internal/history"
	"github.com/evenwebb/wtw-cinemas-calendar/internal/ical"
	"github.com/spf13/afero"
	"github.com/spf13/cobra"
)

var flagPruneOlderThan string

var pruneCmd = &cobra.Command{
	Use:   "prune",
	Short: "Remove stale film details from the local cache",
	Long: `Delete cached film details older than the cache window and rewrite the cache file.

Uses cache_expiry from config (default: 7d) unless overridden with --older-than.`,
	RunE: func(cmd *cobra.Command, args []string) error {
		cfg, err := config.Load(flagConfig)
		if err != nil {
			return fmt.Errorf("loading config: %w", err)
		}

		store, err := cache.Load(afero.NewOsFs(), cfg.ResolvedCachePath())
		if err != nil {
			return err
		}

		window := cfg.CacheExpiryDuration()
		if flagPruneOlderThan != "" {
			d, err := config.ParseDuration(flagPruneOlderThan)
			if err != nil {
				return fmt.Errorf("invalid --older-than value: %w", err)
			}
			window = d
		}

		deleted := store.Prune(window)
		if deleted == 0 {
			fmt.Println("Nothing to prune.")
			return nil
		}
		if err := store.Save(); err != nil {
			return err
		}
		fmt.Printf("Pruned %d film(s) older than %s.\n", deleted, formatDuration(window))
		return nil
	},
}

var statsCmd = &cobra.Command{
	Use:   "stats",
	Short: "Show cache and history statistics",
	RunE: func(cmd *cobra.Command, args []string) error {
		cfg, err := config.Load(flagConfig)
		if err != nil {
			return fmt.Errorf("loading config: %w", err)
		}

		cachePath := cfg.ResolvedCachePath()
		store, err := cache.Load(afero.NewOsFs(), cachePath)
		if err != nil {
			fmt.Printf("Cache: %s (unreadable: %v)\n", cachePath, err)
		} else {
			fmt.Printf("Cache: %s\n", cachePath)
			fmt.Printf("Films: %d (%d older than %s)\n", store.Len(), store.Stale(cfg.CacheExpiryDuration()), formatDuration(cfg.CacheExpiryDuration()))
			fmt.Printf("Size: %s\n", formatBytes(fileSize(cachePath)))
		}

		historyPath := cfg.ResolvedHistoryPath()
		ledger, err := history.Open(historyPath)
		if err != nil {
			return fmt.Errorf("opening history: %w", err)
		}
		defer ledger.Close()

		count, err := ledger.Count()
		if err != nil {
			return err
		}
		fmt.Printf("History: %s\n", historyPath)
		fmt.Printf("Releases seen: %d\n", count)
		if last := ledger.LastRun(); !last.IsZero() {
			fmt.Printf("Last run: %s\n", last.Local().Format(time.DateTime))
		} else {
			fmt.Println("Last run: never")
		}
		recent, err := ledger.Entries(5)
		if err != nil {
			return err
		}
		for _, e := range recent {
			fmt.Printf("  %s  %s\n", e.FirstSeenAt.Local().Format(time.DateOnly), e.Key)
		}
		return nil
	},
}

var checkCmd = &cobra.Command{
	Use:   "check [file.ics...]",
	Short: "Validate calendar files",
	Long:  "Parse each calendar file and check it for the properties calendar apps need. With no arguments, checks every enabled cinema's file in output_dir.",
	RunE: func(cmd *cobra.Command, args []string) error {
		if len(args) == 0 {
			cfg, err := config.Load(flagConfig)
			if err != nil {
				return fmt.Errorf("loading config: %w", err)
			}
			for _, s := range cfg.EnabledCinemas() {
				args = append(args, filepath.Join(cfg.OutputDir, ical.FileName(s.ID)))
			}
		}

		var errs []error
		for _, path := range args {
			n, err := checkFile(path)
			if err != nil {
				fmt.Printf("✗ %s: %v\n", path, err)
				errs = append(errs, err)
				continue
			}
			fmt.Printf("✓ %s: %d event(s)\n", path, n)
		}
		return errors.Join(errs...)
	},
}

func checkFile(path string) (int, error) {
	f, err := os.Open(path)
	if err != nil {
		return 0, err
	}
	defer f.Close()

	doc, err := ical.Parse(f)
	if err != nil {
		return 0, err
	}
	if err := doc.Validate(); err != nil {
		return 0, err
	}
	return len(doc.Events()), nil
}

func init() {
	pruneCmd.Flags().StringVar(&flagPruneOlderThan, "older-than", "", "override cache window (e.g., 30d, 720h)")
}

func fileSize(path string) int64 {
	info, err := os.Stat(path)
	if err != nil {
		return 0
	}
	return info.Size()
}

func formatDuration(d time.Duration) string {
	h := d.Hours()
	days := int(h / 24)
	if days > 0 {
		return fmt.Sprintf("%dd", days)
	}
	return fmt.Sprintf("%dh", int(h))
}

func formatBytes(b int64) string {
	switch {
	case b >= 1<<20:
		return fmt.Sprintf("%.1f MB", float64(b)/(1<<20))
	case b >= 1<<10:
		return fmt.Sprintf("%.1f KB", float64(b)/(1<<10))
	default:
		return fmt.Sprintf("%d B", b)
	}
}
