package main

import (
	"fmt"
	"log/slog"
	"os"
	"os/signal"
	"time"

	"github.com/google/uuid"
	"github.com/spf13/cobra"

	"github.com/cwbudde/thinfilm/internal/design"
	"github.com/cwbudde/thinfilm/internal/optim"
	"github.com/cwbudde/thinfilm/internal/store"
)

var (
	optMethod string
	optOut    string
	optStore  string
	optID     string
)

var optimizeCmd = &cobra.Command{
	Use:   "optimize <design.yaml>",
	Short: "Optimise a design against its targets",
	Long: `Runs the optimisation method of a design document (refine, needle, step,
fourier or global) and writes the design with the optimised coating.

With --store the snapshot, the iteration trace and the spectrum of the first
target are saved under <store>/designs/<id>/.`,
	Args: cobra.ExactArgs(1),
	RunE: runOptimize,
}

func init() {
	f := optimizeCmd.Flags()
	f.StringVar(&optMethod, "method", "", "Override the optimisation method of the design")
	f.StringVarP(&optOut, "out", "o", "", "Write the optimised design to this YAML file")
	f.StringVar(&optStore, "store", "", "Directory of the design store")
	f.StringVar(&optID, "id", "", "Snapshot ID in the store (default: a new UUID)")
	rootCmd.AddCommand(optimizeCmd)
}

func runOptimize(cmd *cobra.Command, args []string) error {
	doc, err := design.Load(args[0])
	if err != nil {
		return fmt.Errorf("failed to load design: %w", err)
	}
	if optMethod != "" {
		doc.Optimization.Method = optMethod
	}
	f, targets, err := doc.Build()
	if err != nil {
		return fmt.Errorf("failed to build design: %w", err)
	}

	ctx, stop := signal.NotifyContext(cmd.Context(), os.Interrupt)
	defer stop()

	var (
		st    *store.FSStore
		trace *store.TraceWriter
		id    = optID
	)
	if id == "" {
		id = uuid.New().String()
	}
	if optStore != "" {
		if st, err = store.NewFSStore(optStore); err != nil {
			return err
		}
		if trace, err = store.NewTraceWriter(st.BaseDir(), id, false); err != nil {
			return err
		}
		defer trace.Close()
	}

	hooks := design.Hooks{
		OnIteration: func(it optim.Iteration) {
			slog.Debug("Iteration", "n", it.N, "chi2", it.Chi2, "lambda", it.Lambda)
			if trace != nil {
				if err := trace.Write(store.TraceEntry{Iteration: it.N, Chi2: it.Chi2, Lambda: it.Lambda, Params: it.X}); err != nil {
					slog.Warn("Failed to write trace entry", "error", err)
				}
			}
		},
	}

	slog.Info("Starting optimisation", "design", doc.DisplayName(), "method", doc.Optimization.Method, "targets", len(targets))
	start := time.Now()
	out, err := doc.Run(ctx, f, targets, hooks)
	if err != nil && ctx.Err() == nil {
		return fmt.Errorf("optimisation failed: %w", err)
	}
	if ctx.Err() != nil {
		slog.Warn("Optimisation interrupted, keeping the last design", "error", err)
	}
	slog.Info("Optimisation finished",
		"elapsed", time.Since(start),
		"status", out.Status,
		"initial_chi2", out.InitialChi2,
		"chi2", out.Chi2,
		"iterations", out.Iterations,
		"inserted", out.Inserted,
	)

	if st != nil {
		if _, err := doc.Archive(st, id, f, targets, out); err != nil {
			return fmt.Errorf("failed to save design: %w", err)
		}
		fmt.Fprintf(cmd.OutOrStdout(), "Saved design %s to %s\n", id, st.BaseDir())
	}

	result := design.FromFilter(doc, f)
	if optOut != "" {
		if err := design.Save(optOut, result); err != nil {
			return err
		}
		fmt.Fprintf(cmd.OutOrStdout(), "Wrote %s\n", optOut)
		return nil
	}
	fmt.Fprintf(cmd.OutOrStdout(), "%s: chi2 %.6g -> %.6g (%s)\n", out.Method, out.InitialChi2, out.Chi2, out.Status)
	return design.Encode(cmd.OutOrStdout(), result)
}
