// Package freqtracker records allele-count trajectories of segregating mutations
// during a simulation.
package freqtracker

import (
	"sort"

	"bgsim/internal/population"
)

// Key identifies a mutation by origin generation, position and effect size.
type Key struct {
	Origin   uint32  `json:"origin"`
	Position float64 `json:"position"`
	Effect   float64 `json:"effect"`
}

func (k Key) Less(o Key) bool {
	if k.Origin != o.Origin {
		return k.Origin < o.Origin
	}
	if k.Position != o.Position {
		return k.Position < o.Position
	}
	return k.Effect < o.Effect
}

// Trajectory is the per-generation copy number of one mutation while it
// segregated after the tracker's start generation.
type Trajectory struct {
	Key
	Counts []uint32 `json:"counts"`
}

type FreqTracker struct {
	burnin       uint32
	trajectories map[Key][]uint32
}

// New returns a tracker that records from generation burnin onwards.
func New(burnin uint32) *FreqTracker {
	return &FreqTracker{burnin: burnin, trajectories: make(map[Key][]uint32)}
}

func (f *FreqTracker) Burnin() uint32 {
	return f.burnin
}

// Record appends the current count of every segregating mutation.
func (f *FreqTracker) Record(pop *population.Population) {
	if pop.Generation < f.burnin {
		return
	}
	twoN := pop.Copies()
	for k, count := range pop.MCounts {
		if count == 0 || count >= twoN {
			continue
		}
		m := pop.Mutations[k]
		key := Key{Origin: m.Origin, Position: m.Position, Effect: m.Effect}
		f.trajectories[key] = append(f.trajectories[key], count)
	}
}

func (f *FreqTracker) Len() int {
	return len(f.trajectories)
}

// Trajectories returns every recorded trajectory ordered by key.
func (f *FreqTracker) Trajectories() []Trajectory {
	out := make([]Trajectory, 0, len(f.trajectories))
	for k, counts := range f.trajectories {
		out = append(out, Trajectory{Key: k, Counts: append([]uint32(nil), counts...)})
	}
	sort.Slice(out, func(i, j int) bool { return out[i].Key.Less(out[j].Key) })
	return out
}
