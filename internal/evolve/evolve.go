package evolve

import (
	"context"
	"errors"
	"fmt"
	"log/slog"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/trace"

	"bgsim/internal/logging"
	"bgsim/internal/params"
	"bgsim/internal/population"
	"bgsim/internal/rng"
)

var ErrExtinct = errors.New("population fitness collapsed to zero")

const defaultProgressEvery = 1000

// Recorder observes the population once per generation, after mutation counts
// are current.
type Recorder interface {
	Record(pop *population.Population)
}

type RecorderFunc func(pop *population.Population)

func (f RecorderFunc) Record(pop *population.Population) { f(pop) }

type Options struct {
	// SimplificationInterval is the number of generations between table
	// simplifications.
	SimplificationInterval int
	Recorder               Recorder
	// TrackMutationCounts refreshes counts every generation; otherwise counts
	// are only refreshed when tables are simplified.
	TrackMutationCounts bool
	// SuppressTableIndexing skips building the edge index after simplification.
	SuppressTableIndexing bool
	Logger                *slog.Logger
	ProgressEvery         int
}

// Run advances pop by p.SimLen generations of Wright-Fisher reproduction with
// selection, mutation and recombination, recording ancestry in pop.Tables.
func Run(ctx context.Context, g *rng.Generator, pop *population.Population, p params.ModelParams, opts Options) error {
	if g == nil {
		return fmt.Errorf("random source is required")
	}
	if pop == nil {
		return fmt.Errorf("population is required")
	}
	if err := p.Validate(); err != nil {
		return err
	}
	if pop.GenomeLength != p.GenomeLength {
		return fmt.Errorf("%w: population genome length %g != %g", params.ErrInvalid, pop.GenomeLength, p.GenomeLength)
	}
	if opts.SimplificationInterval <= 0 {
		return fmt.Errorf("simplification interval must be > 0, got %d", opts.SimplificationInterval)
	}
	if opts.Logger == nil {
		opts.Logger = logging.Discard()
	}
	if opts.ProgressEvery <= 0 {
		opts.ProgressEvery = defaultProgressEvery
	}

	ctx, span := otel.Tracer("bgsim/evolve").Start(ctx, "evolve.Run", trace.WithAttributes(
		attribute.Int("bgs.population_size", pop.N),
		attribute.Int("bgs.simlen", p.SimLen),
		attribute.Int64("bgs.seed", int64(g.Seed())),
	))
	defer span.End()

	m, err := newMutator(g, p)
	if err != nil {
		return err
	}

	perGeneration := opts.Logger.Enabled(ctx, logging.LevelTrace)
	fitness := make([]float64, pop.N)
	for step := 1; step <= p.SimLen; step++ {
		if err := ctx.Err(); err != nil {
			return err
		}

		if err := m.nextGeneration(pop, fitness); err != nil {
			return err
		}

		simplify := step%opts.SimplificationInterval == 0 || step == p.SimLen
		if opts.TrackMutationCounts || simplify {
			pop.RecountMutations()
			pop.Prune()
		}
		if simplify {
			if err := pop.Simplify(); err != nil {
				return err
			}
			if !opts.SuppressTableIndexing {
				if err := pop.Tables.BuildIndex(); err != nil {
					return fmt.Errorf("index tables at generation %d: %w", pop.Generation, err)
				}
			}
		}

		if opts.Recorder != nil {
			opts.Recorder.Record(pop)
		}

		if perGeneration {
			opts.Logger.Log(ctx, logging.LevelTrace, "generation",
				"generation", pop.Generation,
				"mutations", len(pop.Mutations),
			)
		}
		if step%opts.ProgressEvery == 0 {
			opts.Logger.Debug("generation complete",
				"generation", pop.Generation,
				"segregating", pop.Segregating(),
				"fixations", len(pop.Fixations),
				"nodes", len(pop.Tables.Nodes),
				"edges", len(pop.Tables.Edges),
			)
		}
	}

	span.SetAttributes(attribute.Int("bgs.fixations", len(pop.Fixations)))
	return nil
}

// nextGeneration replaces pop.Individuals with offspring drawn in proportion to
// parental fitness.
func (m *mutator) nextGeneration(pop *population.Population, fitness []float64) error {
	total := 0.0
	for i, ind := range pop.Individuals {
		fitness[i] = m.gvalue(pop, ind)
		total += fitness[i]
	}
	if total <= 0 {
		return fmt.Errorf("%w at generation %d", ErrExtinct, pop.Generation)
	}
	parents, err := m.rng.NewLookup(fitness)
	if err != nil {
		return err
	}

	generation := pop.Generation + 1
	offspring := make([]population.Diploid, pop.N)
	for i := range offspring {
		p1 := pop.Individuals[parents.Draw()]
		p2 := pop.Individuals[parents.Draw()]
		offspring[i].Genomes[0] = m.gamete(pop, p1, generation)
		offspring[i].Genomes[1] = m.gamete(pop, p2, generation)
	}
	pop.Individuals = offspring
	pop.Generation = generation
	return nil
}
