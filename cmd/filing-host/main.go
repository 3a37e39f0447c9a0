// Command filing-host runs the court e-filing bridge: it polls the queue
// directory, submits filings to the court's filing manager and serves the
// review callback listener.
package main

import (
	"context"
	"fmt"
	"io"
	"log/slog"
	"os"

	"github.com/Lllllllleong/efilingbridge/internal/config"
	"github.com/spf13/cobra"
	"gopkg.in/yaml.v3"
)

var Version = "dev"

func main() {
	var configPath string

	rootCmd := &cobra.Command{
		Use:           "filing-host",
		Short:         "Court e-filing bridge host",
		Version:       Version,
		SilenceUsage:  true,
		SilenceErrors: true,
	}
	rootCmd.PersistentFlags().StringVarP(&configPath, "config", "c", "", "path to the YAML config file")

	rootCmd.AddCommand(runCmd(&configPath))
	rootCmd.AddCommand(pollCmd(&configPath))
	rootCmd.AddCommand(cleanupCmd(&configPath))
	rootCmd.AddCommand(configCmd(&configPath))

	if err := rootCmd.Execute(); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}

// setup loads and validates the configuration and wires the runtime. The
// returned closer releases the log file.
func setup(ctx context.Context, configPath string) (*Runtime, io.Closer, error) {
	cfg, err := config.Load(configPath)
	if err != nil {
		return nil, nil, err
	}
	if err := cfg.Validate(); err != nil {
		return nil, nil, err
	}
	logger, logFile, err := newLogger(cfg.Log)
	if err != nil {
		return nil, nil, err
	}
	slog.SetDefault(logger)

	rt, err := NewRuntime(ctx, cfg, logger)
	if err != nil {
		closeQuietly(logFile)
		return nil, nil, err
	}
	logger.Info("Filing host configured.", "courtId", cfg.CourtID, "courts", courtList(cfg.CourtLocations), "queueDir", cfg.QueueDir)
	return rt, logFile, nil
}

func closeQuietly(c io.Closer) {
	if c != nil {
		_ = c.Close()
	}
}

func runCmd(configPath *string) *cobra.Command {
	return &cobra.Command{
		Use:   "run",
		Short: "Run the scheduler and the callback listener until interrupted",
		RunE: func(cmd *cobra.Command, args []string) error {
			rt, logFile, err := setup(cmd.Context(), *configPath)
			if err != nil {
				return err
			}
			defer closeQuietly(logFile)
			return rt.Run(cmd.Context())
		},
	}
}

func pollCmd(configPath *string) *cobra.Command {
	return &cobra.Command{
		Use:   "poll",
		Short: "Run a single poll cycle over the queue directory",
		RunE: func(cmd *cobra.Command, args []string) error {
			rt, logFile, err := setup(cmd.Context(), *configPath)
			if err != nil {
				return err
			}
			defer closeQuietly(logFile)
			report, err := rt.Poll(cmd.Context())
			if err != nil {
				return fmt.Errorf("poll cycle failed: %w", err)
			}
			fmt.Fprintf(cmd.OutOrStdout(), "cycle %s: %d succeeded, %d failed\n", report.CycleID, report.Succeeded, report.Failed)
			return nil
		},
	}
}

func cleanupCmd(configPath *string) *cobra.Command {
	return &cobra.Command{
		Use:   "cleanup",
		Short: "Purge aged audit copies and log files",
		RunE: func(cmd *cobra.Command, args []string) error {
			rt, logFile, err := setup(cmd.Context(), *configPath)
			if err != nil {
				return err
			}
			defer closeQuietly(logFile)
			removed, err := rt.Cleanup(cmd.Context())
			if err != nil {
				return fmt.Errorf("cleanup failed: %w", err)
			}
			fmt.Fprintf(cmd.OutOrStdout(), "removed %d files\n", removed)
			return nil
		},
	}
}

func configCmd(configPath *string) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "config",
		Short: "Inspect the effective configuration",
	}
	cmd.AddCommand(&cobra.Command{
		Use:   "show",
		Short: "Print the effective configuration with secrets masked",
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := config.Load(*configPath)
			if err != nil {
				return err
			}
			out, err := yaml.Marshal(cfg.Redacted())
			if err != nil {
				return fmt.Errorf("failed to encode config: %w", err)
			}
			_, err = cmd.OutOrStdout().Write(out)
			return err
		},
	})
	return cmd
}
