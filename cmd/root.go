// Package cmd defines the CLI for the dealwatch executable.
package cmd

import (
	"fmt"
	"os"
	"os/signal"
	"path/filepath"
	"syscall"

	"github.com/spf13/cobra"

	"dealwatch/internal/app"
)

const defaultRuleFile = "dealwatch.yaml"

// newRootCmd creates and configures the root command. The single
// optional positional argument is the rule-file path.
func newRootCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "dealwatch [rules-file]",
		Short: "Keyword deal monitor with chat notifications",
		Long: `dealwatch polls a product-search endpoint for items matching
configured keyword rules, filters out noise and previously-seen items,
and pushes new hits to a Telegram chat. Rules hot-reload from the file
while the monitor is running.`,
		Args:          cobra.MaximumNArgs(1),
		SilenceUsage:  true,
		SilenceErrors: true,
		RunE:          runMonitor,
	}
	return cmd
}

func runMonitor(cmd *cobra.Command, args []string) error {
	path := defaultRuleFile
	if len(args) > 0 {
		path = args[0]
	}
	abs, err := filepath.Abs(path)
	if err != nil {
		return fmt.Errorf("resolve rule file path: %w", err)
	}

	application, err := app.New(abs)
	if err != nil {
		return err
	}
	defer application.Close()

	ctx, stop := signal.NotifyContext(cmd.Context(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	return application.Run(ctx)
}

// Execute runs the root command. A startup failure exits with code 1.
func Execute() {
	if err := newRootCmd().Execute(); err != nil {
		fmt.Fprintln(os.Stderr, "dealwatch:", err)
		os.Exit(1)
	}
}
