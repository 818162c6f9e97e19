// Command sim is the CLI entry point for the simulation kernel.
package main

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"os"

	"github.com/spf13/cobra"

	"github.com/mescourrou/simkernel/pkg/config"
	"github.com/mescourrou/simkernel/pkg/failure"
	"github.com/mescourrou/simkernel/pkg/simlog"
	"github.com/mescourrou/simkernel/pkg/simulator"
	"github.com/mescourrou/simkernel/pkg/traceexport"
)

// runtimeErr marks an error as having happened after the simulator
// started running, rather than while loading its configuration, so main
// can pick the right exit code (1 for config errors, 2 for runtime
// errors).
type runtimeErr struct{ cause error }

func (e *runtimeErr) Error() string { return e.cause.Error() }
func (e *runtimeErr) Unwrap() error { return e.cause }

func main() {
	if err := newRootCmd().Execute(); err != nil {
		var rerr *runtimeErr
		var ferr *failure.Error
		switch {
		case errors.As(err, &rerr):
			os.Exit(2)
		case errors.As(err, &ferr) && ferr.Kind != failure.Config && ferr.Kind != failure.Initialization:
			os.Exit(2)
		default:
			os.Exit(1)
		}
	}
}

func newRootCmd() *cobra.Command {
	root := &cobra.Command{
		Use:   "sim",
		Short: "Run and inspect multi-robot discrete-event simulations",
	}
	root.AddCommand(newRunCmd(), newGenerateSchemaCmd())
	return root
}

func newRunCmd() *cobra.Command {
	var configPath string
	var noGUI bool
	var loadResults string

	cmd := &cobra.Command{
		Use:   "run",
		Short: "Load a configuration and run the simulation to its deadline",
		RunE: func(cmd *cobra.Command, args []string) error {
			logger := simlog.FromEnv()

			if loadResults != "" {
				return printResults(loadResults)
			}

			if configPath == "" {
				return fmt.Errorf("--config is required")
			}
			f, err := os.Open(configPath)
			if err != nil {
				return fmt.Errorf("opening config: %w", err)
			}
			defer f.Close()

			cfg, err := config.Load(f)
			if err != nil {
				return fmt.Errorf("loading config: %w", err)
			}

			s := simulator.New()
			if err := s.Load(cfg); err != nil {
				return fmt.Errorf("configuring simulator: %w", err)
			}

			logger.Infof("starting run: seed=%d nodes=%d deadline=%v", cfg.Seed, len(cfg.Nodes), cfg.Deadline)
			runErr := s.Run(context.Background())
			if runErr != nil {
				logger.Errorf("run failed: %v", runErr)
			}

			// Records are drained to disk even after a failed run, so
			// post-mortem analysis stays possible.
			if err := writeArtifacts(s, cfg); err != nil {
				if runErr != nil {
					return &runtimeErr{cause: runErr}
				}
				return &runtimeErr{cause: err}
			}
			if runErr != nil {
				return &runtimeErr{cause: runErr}
			}
			_ = noGUI // the GUI viewer is out of scope for this kernel
			return nil
		},
	}

	cmd.Flags().StringVar(&configPath, "config", "", "path to the simulator configuration YAML file")
	cmd.Flags().BoolVar(&noGUI, "no-gui", false, "accepted for compatibility; this kernel has no live viewer")
	cmd.Flags().StringVar(&loadResults, "load-results", "", "print a previously saved result document instead of running")
	return cmd
}

func newGenerateSchemaCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "generate-schema <path>",
		Short: "Write the configuration JSON Schema to path",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			raw, err := json.MarshalIndent(config.GenerateSchema(), "", "  ")
			if err != nil {
				return err
			}
			return os.WriteFile(args[0], raw, 0o644)
		},
	}
}

// writeArtifacts collects the run's records and writes every configured
// artifact: the result document (to the configured path, or stdout when
// none is set), the Chrome trace profile, and the per-block statistics
// report.
func writeArtifacts(s *simulator.Simulator, cfg *config.SimulatorConfig) error {
	doc, err := s.GetRecords()
	if err != nil {
		return fmt.Errorf("collecting records: %w", err)
	}

	if cfg.Results.Path != "" {
		f, err := os.Create(cfg.Results.Path)
		if err != nil {
			return fmt.Errorf("creating result file: %w", err)
		}
		defer f.Close()
		enc := json.NewEncoder(f)
		enc.SetIndent("", "  ")
		if err := enc.Encode(doc); err != nil {
			return fmt.Errorf("writing result file: %w", err)
		}
	} else {
		enc := json.NewEncoder(os.Stdout)
		enc.SetIndent("", "  ")
		if err := enc.Encode(doc); err != nil {
			return err
		}
	}

	events := s.TraceEvents()
	if cfg.Results.TracePath != "" {
		f, err := os.Create(cfg.Results.TracePath)
		if err != nil {
			return fmt.Errorf("creating trace file: %w", err)
		}
		defer f.Close()
		if err := traceexport.WriteTrace(f, events); err != nil {
			return fmt.Errorf("writing trace file: %w", err)
		}
	}
	if cfg.Results.ReportPath != "" {
		f, err := os.Create(cfg.Results.ReportPath)
		if err != nil {
			return fmt.Errorf("creating report file: %w", err)
		}
		defer f.Close()
		if err := traceexport.WriteReport(f, traceexport.ComputeStats(events)); err != nil {
			return fmt.Errorf("writing report file: %w", err)
		}
	}
	return nil
}

func printResults(path string) error {
	raw, err := os.ReadFile(path)
	if err != nil {
		return err
	}
	fmt.Println(string(raw))
	return nil
}
