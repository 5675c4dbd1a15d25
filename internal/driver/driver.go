// Package driver runs the single fixed experiment: one population evolved under
// one parameter bundle with a frequency tracker attached.
package driver

import (
	"context"
	"fmt"
	"log/slog"

	"bgsim/internal/evolve"
	"bgsim/internal/freqtracker"
	"bgsim/internal/params"
	"bgsim/internal/population"
	"bgsim/internal/rng"
)

// Model describes the population and tracker sizes that go with a parameter
// bundle.
type Model struct {
	Params params.ModelParams
	N      int
	// TrackFrom is the generation at which trajectory recording starts.
	TrackFrom uint32
}

// Table1Line4 is the published configuration: N=1600, 20N generations, recording
// from generation 10N.
func Table1Line4() Model {
	return Model{
		Params:    params.Table1Line4(),
		N:         params.N,
		TrackFrom: 10 * params.N,
	}
}

// Run evolves a fresh population for model.Params.SimLen generations and returns
// the final state and the tracker holding recorded trajectories.
func Run(ctx context.Context, seed uint64, model Model, logger *slog.Logger) (*population.Population, *freqtracker.FreqTracker, error) {
	g := rng.New(seed)

	pop, err := population.New(model.N, model.Params.GenomeLength)
	if err != nil {
		return nil, nil, err
	}

	tracker := freqtracker.New(model.TrackFrom)

	err = evolve.Run(ctx, g, pop, model.Params, evolve.Options{
		SimplificationInterval: 1,
		Recorder:               tracker,
		TrackMutationCounts:    true,
		SuppressTableIndexing:  false,
		Logger:                 logger,
	})
	if err != nil {
		return nil, nil, fmt.Errorf("evolve seed %d: %w", seed, err)
	}
	return pop, tracker, nil
}
