package main

import (
	"context"
	"encoding/json"
	"fmt"
	"os"
	"os/signal"
	"syscall"

	"github.com/spf13/cobra"

	"github.com/ledgerflow/ledgerflow/engine"
	"github.com/ledgerflow/ledgerflow/ledger"
	"github.com/ledgerflow/ledgerflow/state"
	"github.com/ledgerflow/ledgerflow/tools"
	"github.com/ledgerflow/ledgerflow/workflows"
)

// NewRunCommand creates the run command, which executes the built-in
// aggregation workflow against a seed state and records the run's ledger.
func NewRunCommand(rootOpts *RootOptions) *cobra.Command {
	var (
		seedJSON   string
		ledgerPath string
	)

	cmd := &cobra.Command{
		Use:   "run",
		Short: "Run the sample aggregation workflow",
		Long: `Run the built-in aggregation workflow against a seed state.

The seed is a JSON object; the workflow sums the numbers under "values",
stores the result under "total", and records every step into the
configured ledger sink.`,
		SilenceUsage:  true,
		SilenceErrors: true,
		RunE: func(cmd *cobra.Command, args []string) error {
			return runWorkflow(cmd, rootOpts, seedJSON, ledgerPath)
		},
	}

	cmd.Flags().StringVar(&seedJSON, "seed", `{"values": [1, 2, 3]}`, "seed state as a JSON object")
	cmd.Flags().StringVar(&ledgerPath, "ledger", "", "write the ledger as NDJSON to this path")

	return cmd
}

func runWorkflow(cmd *cobra.Command, rootOpts *RootOptions, seedJSON, ledgerPath string) error {
	ctx, stop := signal.NotifyContext(cmd.Context(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	cfg, err := loadConfig(rootOpts.ConfigPath)
	if err != nil {
		return err
	}
	if ledgerPath != "" {
		cfg.Ledger = engine.LedgerConfig{Sink: "file", Path: ledgerPath}
	}

	var seed map[string]any
	if err := json.Unmarshal([]byte(seedJSON), &seed); err != nil {
		return fmt.Errorf("invalid seed: %w", err)
	}

	var opts []engine.Option
	if rootOpts.Verbose {
		opts = append(opts, engine.WithDebug(func(ev ledger.Event, resulting state.State) {
			fmt.Fprintf(cmd.ErrOrStderr(), "seq=%d %s after=%s\n", ev.Seq, ev.Name, ev.AfterHash[:12])
		}))
	}

	e, err := engine.New(cfg, opts...)
	if err != nil {
		return err
	}
	defer e.Close()

	registerBuiltins(e.Tools())

	sum, err := e.Tools().Call("sum", "values", "total")
	if err != nil {
		return err
	}

	workflow := workflows.Sequence(
		sum,
		workflows.Action("count", func(ctx context.Context, s state.State) (state.State, error) {
			values, _ := s.Get("values")
			items, _ := values.([]any)
			return s.Set("count", len(items)), nil
		}),
	)

	final, lg, err := e.Spawn(ctx, workflow, seed)
	if err != nil {
		return err
	}

	out, err := json.MarshalIndent(final.Data, "", "  ")
	if err != nil {
		return err
	}
	fmt.Fprintln(cmd.OutOrStdout(), string(out))
	fmt.Fprintf(cmd.ErrOrStderr(), "run %s recorded %d event(s), head %s\n", lg.RunID(), lg.Len(), lg.Head())
	return nil
}

func loadConfig(path string) (*engine.Config, error) {
	if path == "" {
		cfg := engine.DefaultConfig()
		return &cfg, nil
	}
	return engine.LoadConfig(path)
}

// registerBuiltins installs the tools the sample workflow depends on.
func registerBuiltins(reg *tools.Registry) {
	reg.Register("sum", tools.MustCUE(`[string, string]`), func(ctx context.Context, s state.State, args ...any) (state.State, error) {
		from, _ := args[0].(string)
		to, _ := args[1].(string)

		raw, ok := s.Get(from)
		if !ok {
			return s.Set(to, 0.0), nil
		}
		items, ok := raw.([]any)
		if !ok {
			return s, fmt.Errorf("key %q does not hold an array", from)
		}

		var total float64
		for _, item := range items {
			switch n := item.(type) {
			case float64:
				total += n
			case int:
				total += float64(n)
			case json.Number:
				f, err := n.Float64()
				if err != nil {
					return s, fmt.Errorf("non-numeric element in %q: %w", from, err)
				}
				total += f
			default:
				return s, fmt.Errorf("non-numeric element in %q: %T", from, item)
			}
		}
		return s.Set(to, total), nil
	})
}
