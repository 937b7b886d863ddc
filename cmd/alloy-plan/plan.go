package main

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"os"
	"time"

	"github.com/shourjoguha/alloy/internal/assembly"
	"github.com/shourjoguha/alloy/internal/catalog"
	"github.com/shourjoguha/alloy/internal/config"
	"github.com/shourjoguha/alloy/internal/jobs"
	"github.com/shourjoguha/alloy/internal/models"
	"github.com/shourjoguha/alloy/internal/optimizer"
	"github.com/shourjoguha/alloy/internal/planner"
	"github.com/shourjoguha/alloy/internal/progress"
	"github.com/shourjoguha/alloy/internal/sequencer"
	"github.com/shourjoguha/alloy/internal/storage"
	"github.com/shourjoguha/alloy/internal/structure"
	"github.com/spf13/cobra"
)

func newSkeletonCmd(newLogger func() *slog.Logger) *cobra.Command {
	var pf programFlags
	var asJSON bool

	cmd := &cobra.Command{
		Use:   "skeleton",
		Short: "Lay out microcycles and session types for a program",
		RunE: func(cmd *cobra.Command, args []string) error {
			p, err := pf.program(time.Now())
			if err != nil {
				return err
			}
			cycles, err := structure.NewBuilder(config.DefaultSnapshot(), newLogger()).Build(p)
			if err != nil {
				return err
			}
			if asJSON {
				return writeJSON(map[string]any{"program": p, "microcycles": cycles})
			}
			printSkeleton(os.Stdout, p, cycles)
			return nil
		},
	}
	pf.bind(cmd)
	cmd.Flags().BoolVar(&asJSON, "json", false, "print JSON instead of a table")
	return cmd
}

func newGenerateCmd(newLogger func() *slog.Logger) *cobra.Command {
	var (
		pf           programFlags
		asJSON       bool
		microcycles  int
		catalogDir   string
		optimizerURL string
		timeout      time.Duration
	)

	cmd := &cobra.Command{
		Use:   "generate",
		Short: "Structure a program and generate session content offline",
		Long:  "generate structures the program in memory, then generates microcycles in order, each one seeded from the last.",
		RunE: func(cmd *cobra.Command, args []string) error {
			log := newLogger()
			p, err := pf.program(time.Now())
			if err != nil {
				return err
			}

			cat, closeCat, err := openCatalog(catalogDir)
			if err != nil {
				return err
			}
			defer closeCat()

			gen := config.DefaultGeneration()
			if timeout > 0 {
				gen.SessionTimeout = timeout
			}
			snap := gen.Snapshot()

			var opt optimizer.Optimizer = optimizer.Disabled{}
			if optimizerURL != "" {
				opt = optimizer.NewHTTPClient(optimizerURL, 5*time.Second, 2, log)
			}

			store := storage.NewMemory()
			seq := sequencer.New(store, assembly.New(cat, opt, snap, log), cat, snap, progress.Nop{}, log)
			pool := jobs.NewPool(store, jobs.NewRunner(seq, store, cat, log), 1, log)
			sweep := jobs.NewScheduler(store, store, gen.SweepSchedule, log)

			ctx := cmd.Context()
			res, err := planner.New(store, store, snap, log).Create(ctx, p)
			if err != nil {
				return err
			}
			if !res.OK() {
				return res.Err
			}

			if microcycles <= 0 || microcycles > len(res.Microcycles) {
				microcycles = len(res.Microcycles)
			}
			for i := 0; i < microcycles; i++ {
				if i > 0 {
					if _, err := sweep.Sweep(ctx); err != nil {
						return fmt.Errorf("queueing microcycle %d: %w", i+1, err)
					}
				}
				if _, err := pool.Drain(ctx); err != nil {
					return fmt.Errorf("generating microcycle %d: %w", i+1, err)
				}
			}

			generated, err := loadGenerated(ctx, store, res.Microcycles[:microcycles])
			if err != nil {
				return err
			}
			if asJSON {
				return writeJSON(map[string]any{"program": p, "microcycles": generated})
			}
			printGenerated(os.Stdout, p, generated)
			return nil
		},
	}
	pf.bind(cmd)
	flags := cmd.Flags()
	flags.BoolVar(&asJSON, "json", false, "print JSON instead of a table")
	flags.IntVar(&microcycles, "microcycles", 1, "number of microcycles to generate (0 for all)")
	flags.StringVar(&catalogDir, "catalog-dir", "", "directory of a catalog imported with import-catalog (defaults to the built-in catalog)")
	flags.StringVar(&optimizerURL, "optimizer-url", "", "movement-selection service URL (heuristic selection when empty)")
	flags.DurationVar(&timeout, "session-timeout", 0, "per-session generation timeout")
	return cmd
}

// openCatalog returns the SQLite catalog in dir, or the built-in catalog.
func openCatalog(dir string) (catalog.Catalog, func(), error) {
	if dir == "" {
		cat, err := catalog.Default()
		if err != nil {
			return nil, nil, err
		}
		return cat, func() {}, nil
	}
	cat, err := catalog.OpenSQLite(dir)
	if err != nil {
		return nil, nil, err
	}
	return cat, func() { _ = cat.Close() }, nil
}

func loadGenerated(ctx context.Context, store *storage.Memory, cycles []models.Microcycle) ([]models.Microcycle, error) {
	out := make([]models.Microcycle, 0, len(cycles))
	for _, mc := range cycles {
		got, err := store.GetMicrocycle(ctx, mc.ID)
		if err != nil {
			return nil, fmt.Errorf("loading microcycle %d: %w", mc.Sequence, err)
		}
		out = append(out, *got)
	}
	return out, nil
}

func writeJSON(v any) error {
	enc := json.NewEncoder(os.Stdout)
	enc.SetIndent("", "  ")
	return enc.Encode(v)
}
