package evolve

import (
	"fmt"
	"sort"

	"bgsim/internal/params"
	"bgsim/internal/population"
	"bgsim/internal/rng"
	"bgsim/internal/tables"
)

// maxPositionDraws bounds redraws when a new mutation lands on an occupied site.
const maxPositionDraws = 100

type regionSampler struct {
	regions []params.Region
	lookup  *rng.Lookup
}

func newRegionSampler(g *rng.Generator, regions []params.Region) (*regionSampler, error) {
	if len(regions) == 0 {
		return nil, nil
	}
	weights := make([]float64, len(regions))
	for i, r := range regions {
		weights[i] = r.Mass()
	}
	lookup, err := g.NewLookup(weights)
	if err != nil {
		return nil, fmt.Errorf("%w: region weights: %v", params.ErrInvalid, err)
	}
	return &regionSampler{regions: regions, lookup: lookup}, nil
}

func (s *regionSampler) draw(g *rng.Generator) (int, float64) {
	i := s.lookup.Draw()
	r := s.regions[i]
	return i, g.Uniform(r.Beg, r.End)
}

type mutator struct {
	rng     *rng.Generator
	params  params.ModelParams
	neutral *regionSampler
	sel     *regionSampler
	rec     *regionSampler
}

func newMutator(g *rng.Generator, p params.ModelParams) (*mutator, error) {
	m := &mutator{rng: g, params: p}
	var err error
	if p.Rates.Neutral > 0 {
		if m.neutral, err = newRegionSampler(g, p.NRegions); err != nil {
			return nil, err
		}
	}
	if p.Rates.Selected > 0 {
		sregions := make([]params.Region, len(p.SRegions))
		for i, r := range p.SRegions {
			sregions[i] = r.Region
		}
		if m.sel, err = newRegionSampler(g, sregions); err != nil {
			return nil, err
		}
	}
	if p.Rates.Recombination > 0 {
		if m.rec, err = newRegionSampler(g, p.RecRegions); err != nil {
			return nil, err
		}
	}
	return m, nil
}

// gvalue is the multiplicative fitness of one diploid, floored at zero.
func (m *mutator) gvalue(pop *population.Population, ind population.Diploid) float64 {
	a, b := ind.Genomes[0].Keys, ind.Genomes[1].Keys
	scaling := m.params.GeneticValue.Scaling
	w := 1.0
	i, j := 0, 0
	for i < len(a) || j < len(b) {
		switch {
		case j == len(b) || (i < len(a) && pop.Mutations[a[i]].Position < pop.Mutations[b[j]].Position):
			mut := pop.Mutations[a[i]]
			w *= 1 + mut.Dominance*mut.Effect
			i++
		case i == len(a) || pop.Mutations[b[j]].Position < pop.Mutations[a[i]].Position:
			mut := pop.Mutations[b[j]]
			w *= 1 + mut.Dominance*mut.Effect
			j++
		default:
			mut := pop.Mutations[a[i]]
			w *= 1 + scaling*mut.Effect
			i++
			j++
		}
	}
	if w < 0 {
		return 0
	}
	return w
}

// gamete transmits a recombinant copy of parent's genomes to a new node born in
// generation, then adds new mutations to it.
func (m *mutator) gamete(pop *population.Population, parent population.Diploid, generation uint32) population.Genome {
	first := m.rng.IntN(2)
	cur, other := parent.Genomes[first], parent.Genomes[1-first]
	breaks := m.breakpoints()

	tc := pop.Tables
	child := tc.AddNode(int64(generation))
	keys := make([]int32, 0, len(cur.Keys)+1)
	left := 0.0
	for i := 0; i <= len(breaks); i++ {
		right := pop.GenomeLength
		if i < len(breaks) {
			right = breaks[i]
		}
		if left < right {
			for _, k := range cur.Keys {
				if pos := pop.Mutations[k].Position; pos >= left && pos < right {
					keys = append(keys, k)
				}
			}
			tc.AddEdge(left, right, cur.Node, child)
		}
		cur, other = other, cur
		left = right
	}

	keys = m.mutate(pop, keys, child, generation, m.neutral, m.params.Rates.Neutral, nil)
	keys = m.mutate(pop, keys, child, generation, m.sel, m.params.Rates.Selected, m.params.SRegions)
	return population.Genome{Keys: keys, Node: child}
}

// breakpoints returns sorted crossover positions. Coincident pairs cancel.
func (m *mutator) breakpoints() []float64 {
	if m.rec == nil {
		return nil
	}
	n := m.rng.Poisson(m.params.Rates.Recombination)
	if n == 0 {
		return nil
	}
	breaks := make([]float64, n)
	for i := range breaks {
		_, breaks[i] = m.rec.draw(m.rng)
	}
	sort.Float64s(breaks)
	out := breaks[:0]
	for _, b := range breaks {
		if k := len(out); k > 0 && out[k-1] == b {
			out = out[:k-1]
			continue
		}
		out = append(out, b)
	}
	return out
}

func (m *mutator) mutate(pop *population.Population, keys []int32, node int32, generation uint32, sampler *regionSampler, rate float64, sregions []params.ConstantS) []int32 {
	if sampler == nil {
		return keys
	}
	n := m.rng.Poisson(rate)
	for ; n > 0; n-- {
		var (
			region int
			pos    float64
			ok     bool
		)
		for attempt := 0; attempt < maxPositionDraws; attempt++ {
			region, pos = sampler.draw(m.rng)
			if !pop.HasPosition(pos) {
				ok = true
				break
			}
		}
		if !ok {
			continue
		}

		mut := population.Mutation{Position: pos, Origin: generation, Neutral: sregions == nil}
		if sregions != nil {
			mut.Effect = sregions[region].S
			mut.Dominance = sregions[region].H
		}
		key := pop.AddMutation(mut)
		keys = pop.InsertKey(keys, key)
		pop.Tables.AddMutation(tables.Mutation{
			Node:     node,
			Position: pos,
			Origin:   generation,
			Effect:   mut.Effect,
		})
	}
	return keys
}
