package evolve

import (
	"context"
	"errors"
	"math"
	"testing"

	"bgsim/internal/params"
	"bgsim/internal/population"
	"bgsim/internal/rng"
)

func smallModel() params.ModelParams {
	p := params.Table1Line4()
	p.Rates.Selected = 0.5
	p.Rates.Recombination = 0.5
	p.SimLen = 120
	return p
}

func runSmall(t *testing.T, seed uint64, p params.ModelParams, opts Options) *population.Population {
	t.Helper()
	pop, err := population.New(20, p.GenomeLength)
	if err != nil {
		t.Fatalf("new population: %v", err)
	}
	if err := Run(context.Background(), rng.New(seed), pop, p, opts); err != nil {
		t.Fatalf("run: %v", err)
	}
	return pop
}

func defaultOptions(rec Recorder) Options {
	return Options{
		SimplificationInterval: 1,
		Recorder:               rec,
		TrackMutationCounts:    true,
	}
}

func TestRunAdvancesGenerationsAndCallsRecorder(t *testing.T) {
	calls := 0
	var lastGen uint32
	p := smallModel()
	pop := runSmall(t, 1, p, defaultOptions(RecorderFunc(func(pop *population.Population) {
		calls++
		lastGen = pop.Generation
	})))
	if calls != p.SimLen {
		t.Fatalf("recorder called %d times, want %d", calls, p.SimLen)
	}
	if pop.Generation != uint32(p.SimLen) || lastGen != pop.Generation {
		t.Fatalf("generation = %d (last recorded %d), want %d", pop.Generation, lastGen, p.SimLen)
	}
	if len(pop.Individuals) != 20 {
		t.Fatalf("population size changed to %d", len(pop.Individuals))
	}
}

func TestRunIsDeterministicPerSeed(t *testing.T) {
	p := smallModel()
	a := runSmall(t, 42, p, defaultOptions(nil))
	b := runSmall(t, 42, p, defaultOptions(nil))

	if len(a.Mutations) != len(b.Mutations) || len(a.Fixations) != len(b.Fixations) {
		t.Fatalf("runs diverged: mutations %d/%d fixations %d/%d", len(a.Mutations), len(b.Mutations), len(a.Fixations), len(b.Fixations))
	}
	for k := range a.Mutations {
		if a.Mutations[k] != b.Mutations[k] || a.MCounts[k] != b.MCounts[k] {
			t.Fatalf("mutation %d differs: %+v/%d vs %+v/%d", k, a.Mutations[k], a.MCounts[k], b.Mutations[k], b.MCounts[k])
		}
	}
	if len(a.Tables.Edges) != len(b.Tables.Edges) {
		t.Fatalf("edge tables differ: %d vs %d", len(a.Tables.Edges), len(b.Tables.Edges))
	}
	for i := range a.Tables.Edges {
		if a.Tables.Edges[i] != b.Tables.Edges[i] {
			t.Fatalf("edge %d differs: %+v vs %+v", i, a.Tables.Edges[i], b.Tables.Edges[i])
		}
	}
}

func TestNeutralCentreIsOneTreeWithoutMutations(t *testing.T) {
	p := smallModel()
	pop := runSmall(t, 7, p, defaultOptions(nil))
	lo, hi := 1.0/3.0, 2.0/3.0

	for i, e := range pop.Tables.Edges {
		if (e.Left > lo && e.Left < hi) || (e.Right > lo && e.Right < hi) {
			t.Fatalf("edge %d breaks inside the neutral centre: %+v", i, e)
		}
	}
	if !pop.Tables.Indexed() {
		t.Fatal("expected indexed tables")
	}
	trees, err := pop.Tables.TreesIn(lo, hi)
	if err != nil {
		t.Fatalf("trees in: %v", err)
	}
	if trees != 1 {
		t.Fatalf("expected one tree over the neutral centre, got %d", trees)
	}
	for _, m := range pop.Mutations {
		if m.Position >= lo && m.Position < hi {
			t.Fatalf("mutation arose in the neutral centre at %g", m.Position)
		}
	}
	if len(pop.Mutations) == 0 {
		t.Fatal("expected some mutations at the raised test rate")
	}
}

func TestRunLeavesSimplifiedSamples(t *testing.T) {
	p := smallModel()
	pop := runSmall(t, 3, p, defaultOptions(nil))
	for i, s := range pop.Samples() {
		if s != int32(i) {
			t.Fatalf("expected samples to be the first nodes, got %v", pop.Samples())
		}
		if pop.Tables.Nodes[s].Time != int64(pop.Generation) {
			t.Fatalf("sample %d born at %d, want %d", s, pop.Tables.Nodes[s].Time, pop.Generation)
		}
	}
	if err := pop.Tables.CheckIntegrity(); err != nil {
		t.Fatalf("integrity: %v", err)
	}
}

func TestRunCountsMatchGenomes(t *testing.T) {
	p := smallModel()
	pop := runSmall(t, 5, p, defaultOptions(nil))
	counts := append([]uint32(nil), pop.MCounts...)
	pop.RecountMutations()
	for k := range counts {
		if counts[k] != pop.MCounts[k] {
			t.Fatalf("mutation %d count %d, recount %d", k, counts[k], pop.MCounts[k])
		}
		if counts[k] == pop.Copies() {
			t.Fatalf("fixed mutation %d left in genomes", k)
		}
	}
}

func TestRunSuppressTableIndexing(t *testing.T) {
	p := smallModel()
	opts := defaultOptions(nil)
	opts.SuppressTableIndexing = true
	pop := runSmall(t, 9, p, opts)
	if pop.Tables.Indexed() {
		t.Fatal("expected unindexed tables")
	}
}

func TestRunWithSparseSimplification(t *testing.T) {
	p := smallModel()
	opts := defaultOptions(nil)
	opts.SimplificationInterval = 25
	opts.TrackMutationCounts = false
	pop := runSmall(t, 11, p, opts)
	for i, s := range pop.Samples() {
		if s != int32(i) {
			t.Fatalf("expected final simplification, samples %v", pop.Samples())
		}
	}
}

func TestRunRejectsBadInput(t *testing.T) {
	p := smallModel()
	pop, _ := population.New(10, 1)
	ctx := context.Background()

	if err := Run(ctx, rng.New(1), pop, p, Options{}); err == nil {
		t.Fatal("expected error for zero simplification interval")
	}
	bad := p
	bad.SimLen = 0
	if err := Run(ctx, rng.New(1), pop, bad, defaultOptions(nil)); !errors.Is(err, params.ErrInvalid) {
		t.Fatalf("expected ErrInvalid, got %v", err)
	}
	other, _ := population.New(10, 2)
	if err := Run(ctx, rng.New(1), other, p, defaultOptions(nil)); !errors.Is(err, params.ErrInvalid) {
		t.Fatalf("expected genome length mismatch, got %v", err)
	}
	if err := Run(ctx, nil, pop, p, defaultOptions(nil)); err == nil {
		t.Fatal("expected error for nil rng")
	}
}

func TestRunHonorsCancellation(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	pop, _ := population.New(10, 1)
	err := Run(ctx, rng.New(1), pop, smallModel(), defaultOptions(nil))
	if !errors.Is(err, context.Canceled) {
		t.Fatalf("expected context.Canceled, got %v", err)
	}
}

func TestRunReportsExtinction(t *testing.T) {
	p := smallModel()
	p.Rates.Selected = 50
	for i := range p.SRegions {
		p.SRegions[i].S = -1
	}
	pop, _ := population.New(10, 1)
	err := Run(context.Background(), rng.New(1), pop, p, defaultOptions(nil))
	if !errors.Is(err, ErrExtinct) {
		t.Fatalf("expected ErrExtinct, got %v", err)
	}
}

func TestGValueMultiplicative(t *testing.T) {
	p := params.Table1Line4()
	m, err := newMutator(rng.New(1), p)
	if err != nil {
		t.Fatalf("new mutator: %v", err)
	}
	pop, _ := population.New(1, 1)
	het := pop.AddMutation(population.Mutation{Position: 0.1, Effect: -0.02, Dominance: 1})
	hom := pop.AddMutation(population.Mutation{Position: 0.2, Effect: -0.02, Dominance: 1})
	ind := population.Diploid{}
	ind.Genomes[0].Keys = []int32{het, hom}
	ind.Genomes[1].Keys = []int32{hom}

	got := m.gvalue(pop, ind)
	want := (1 - 0.02) * (1 - 2*0.02)
	if math.Abs(got-want) > 1e-12 {
		t.Fatalf("gvalue = %g, want %g", got, want)
	}
	if w := m.gvalue(pop, population.Diploid{}); w != 1 {
		t.Fatalf("gvalue of mutation-free diploid = %g, want 1", w)
	}
}

func TestBreakpointsStayInRecombinationRegions(t *testing.T) {
	p := params.Table1Line4()
	p.Rates.Recombination = 5
	m, err := newMutator(rng.New(2), p)
	if err != nil {
		t.Fatalf("new mutator: %v", err)
	}
	for i := 0; i < 200; i++ {
		last := -1.0
		for _, b := range m.breakpoints() {
			if b >= 1.0/3.0 && b < 2.0/3.0 {
				t.Fatalf("breakpoint %g in neutral centre", b)
			}
			if b <= last {
				t.Fatalf("breakpoints not strictly increasing")
			}
			last = b
		}
	}
}

func TestSelectedFlanksAreDrawnEvenly(t *testing.T) {
	g := rng.New(11)
	m, err := newMutator(g, params.Table1Line4())
	if err != nil {
		t.Fatalf("new mutator: %v", err)
	}
	const draws = 20000
	left := 0
	for i := 0; i < draws; i++ {
		region, pos := m.sel.draw(g)
		if region == 0 {
			left++
			if pos >= 1.0/3.0 {
				t.Fatalf("left flank draw at %g", pos)
			}
		} else if pos < 2.0/3.0 {
			t.Fatalf("right flank draw at %g", pos)
		}
	}
	if frac := float64(left) / draws; math.Abs(frac-0.5) > 0.02 {
		t.Fatalf("left flank drawn %.3f of the time, want about 0.5", frac)
	}
}
