// Package main is the entry point for the cadence CLI.
package main

import (
	"fmt"
	"log/slog"
	"os"

	"github.com/flemzord/cadence/pkg/app"
	"github.com/spf13/cobra"
)

// Set by goreleaser ldflags.
var (
	version = "dev"
	commit  = "none"
	date    = "unknown"
)

func main() {
	if err := rootCmd().Execute(); err != nil {
		fmt.Fprintln(os.Stderr, "error:", err)
		os.Exit(1)
	}
}

func rootCmd() *cobra.Command {
	root := &cobra.Command{
		Use:           "cadence",
		Short:         "Scheduled reflection: periodic summaries of a memory log",
		SilenceUsage:  true,
		SilenceErrors: true,
	}
	root.PersistentFlags().StringP("config", "c", "", "Path to configuration file")
	root.PersistentFlags().Bool("debug", false, "Enable debug logging")

	root.AddCommand(versionCmd(), startCmd(), runCmd(), configCmd(), serviceCmd())
	return root
}

func params(cmd *cobra.Command) app.RunParams {
	cfgPath, _ := cmd.Flags().GetString("config")
	level := slog.LevelInfo
	if debug, _ := cmd.Flags().GetBool("debug"); debug {
		level = slog.LevelDebug
	}
	return app.RunParams{
		ConfigPath: cfgPath,
		Version:    version,
		Commit:     commit,
		Date:       date,
		LogLevel:   level,
	}
}

func versionCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "version",
		Short: "Print version information",
		Run: func(_ *cobra.Command, _ []string) {
			fmt.Printf("cadence %s (commit: %s, built: %s)\n", version, commit, date)
		},
	}
}

func startCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "start",
		Short: "Start the scheduler daemon",
		RunE: func(cmd *cobra.Command, _ []string) error {
			return app.Run(params(cmd))
		},
	}
}

func runCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "run <job>",
		Short: "Run one job immediately and exit",
		Long: "Run one job immediately and exit. Jobs: capsule-daytime, " +
			"capsule-nighttime, today-so-far, hud, backup.\n\n" +
			"An empty memory window is a normal completion, not a failure.",
		Args: cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			date, _ := cmd.Flags().GetString("date")
			dryRun, _ := cmd.Flags().GetBool("dry-run")
			return app.RunOnce(params(cmd), args[0], date, dryRun)
		},
	}
	cmd.Flags().String("date", "", "Civil day to summarize (YYYY-MM-DD, capsule jobs only)")
	cmd.Flags().Bool("dry-run", false, "Print the would-be writes instead of storing them")
	return cmd
}

func configCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "config",
		Short: "Configuration management",
	}
	cmd.AddCommand(&cobra.Command{
		Use:   "check [path]",
		Short: "Validate configuration",
		Args:  cobra.MaximumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			path := ""
			if len(args) == 1 {
				path = args[0]
			} else {
				path, _ = cmd.Flags().GetString("config")
			}
			if err := app.CheckConfig(path); err != nil {
				return err
			}
			fmt.Println("configuration is valid")
			return nil
		},
	})
	return cmd
}
