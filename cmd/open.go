package cmd

import (
	"fmt"

	"github.com/evenwebb/wtw-cinemas-calendar/internal/browser"
	"github.com/evenwebb/wtw-cinemas-calendar/internal/config"
	"github.com/spf13/cobra"
)

var openCmd = &cobra.Command{
	Use:   "open <cinema-id>",
	Short: "Open a cinema's coming-soon page in the browser",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		cfg, err := config.Load(flagConfig)
		if err != nil {
			return fmt.Errorf("loading config: %w", err)
		}
		src, ok := cfg.Cinema(args[0])
		if !ok {
			return fmt.Errorf("unknown cinema %q", args[0])
		}
		fmt.Printf("Opening %s\n", src.URL)
		return browser.Open(src.URL)
	},
}
