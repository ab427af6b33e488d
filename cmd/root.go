package cmd

import (
	"fmt"
	"os"

	"github.com/evenwebb/wtw-cinemas-calendar/internal/update"
	"github.com/spf13/cobra"
)

var (
	version = "dev"
	commit  = "none"
	date    = "unknown"
)

var (
	flagConfig  string
	flagToday   string
	flagRefresh bool
	flagOutput  string
	flagVerbose bool
	flagCheck   bool
)

var rootCmd = &cobra.Command{
	Use:   "wtwcal",
	Short: "WTW Cinemas release calendar generator",
	Long: `wtwcal scrapes the WTW Cinemas "coming soon" pages and writes one iCalendar
file per cinema, so upcoming film releases can be subscribed to from any calendar app.`,
	SilenceUsage: true,
	RunE:         runPipeline,
}

func init() {
	rootCmd.PersistentFlags().StringVar(&flagConfig, "config", "", "path to config file")
	rootCmd.Flags().StringVar(&flagToday, "today", "", "reference date for year inference (YYYY-MM-DD)")
	rootCmd.Flags().BoolVar(&flagRefresh, "refresh", false, "ignore cached film details and fetch them all again")
	rootCmd.Flags().StringVar(&flagOutput, "output", "", "directory for .ics files (overrides output_dir)")
	rootCmd.Flags().BoolVarP(&flagVerbose, "verbose", "v", false, "log cache hits and fetches")

	versionCmd.Flags().BoolVar(&flagCheck, "check", false, "check GitHub for a newer release")

	rootCmd.AddCommand(versionCmd)
	rootCmd.AddCommand(pruneCmd)
	rootCmd.AddCommand(statsCmd)
	rootCmd.AddCommand(checkCmd)
	rootCmd.AddCommand(openCmd)
}

var versionCmd = &cobra.Command{
	Use:   "version",
	Short: "Print version information",
	Run: func(cmd *cobra.Command, args []string) {
		fmt.Printf("wtwcal %s (commit: %s, built: %s)\n", version, commit, date)
		if !flagCheck {
			return
		}
		if r := update.Check(cmd.Context(), version); r != nil {
			fmt.Printf("A newer version is available: %s %s\n", r.LatestVersion, r.URL)
		} else {
			fmt.Println("You are on the latest version.")
		}
	},
}

func Execute() {
	if err := rootCmd.Execute(); err != nil {
		os.Exit(1)
	}
}

func SetVersionInfo(v, c, d string) {
	version = v
	commit = c
	date = d
}
