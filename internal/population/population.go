// Package population holds the state of a diploid Wright-Fisher population:
// individuals, their haploid genomes, the mutations they carry and the tables
// recording their ancestry.
package population

import (
	"fmt"
	"sort"

	"bgsim/internal/tables"
)

// Mutation is identified by its origin generation, position and effect size.
type Mutation struct {
	Position  float64 `json:"position"`
	Effect    float64 `json:"effect"`
	Dominance float64 `json:"dominance"`
	Origin    uint32  `json:"origin"`
	Neutral   bool    `json:"neutral"`
}

// Genome is one haploid copy: mutation keys sorted by position, and the table
// node that records its ancestry.
type Genome struct {
	Keys []int32
	Node int32
}

type Diploid struct {
	Genomes [2]Genome
}

type Population struct {
	N            int
	GenomeLength float64
	Generation   uint32

	Individuals []Diploid
	Mutations   []Mutation
	// MCounts[k] is the number of genomes carrying Mutations[k].
	MCounts       []uint32
	Fixations     []Mutation
	FixationTimes []uint32

	Tables *tables.TableCollection

	live      []bool
	free      []int32
	positions map[float64]int32
}

// New returns n diploids with no variation at generation 0. Each genome gets a
// table node at time 0.
func New(n int, genomeLength float64) (*Population, error) {
	if n <= 0 {
		return nil, fmt.Errorf("population size must be > 0, got %d", n)
	}
	if genomeLength <= 0 {
		return nil, fmt.Errorf("genome length must be > 0, got %g", genomeLength)
	}
	tc := tables.NewTableCollection(genomeLength)
	individuals := make([]Diploid, n)
	for i := range individuals {
		individuals[i].Genomes[0].Node = tc.AddNode(0)
		individuals[i].Genomes[1].Node = tc.AddNode(0)
	}
	return &Population{
		N:            n,
		GenomeLength: genomeLength,
		Individuals:  individuals,
		Tables:       tc,
		positions:    make(map[float64]int32),
	}, nil
}

// Copies is the number of haploid genomes, 2N.
func (p *Population) Copies() uint32 {
	return uint32(2 * p.N)
}

// HasPosition reports whether a live mutation already occupies pos.
func (p *Population) HasPosition(pos float64) bool {
	_, ok := p.positions[pos]
	return ok
}

// AddMutation stores m, reusing a recycled key when one is available.
func (p *Population) AddMutation(m Mutation) int32 {
	var key int32
	if n := len(p.free); n > 0 {
		key = p.free[n-1]
		p.free = p.free[:n-1]
		p.Mutations[key] = m
		p.MCounts[key] = 0
		p.live[key] = true
	} else {
		key = int32(len(p.Mutations))
		p.Mutations = append(p.Mutations, m)
		p.MCounts = append(p.MCounts, 0)
		p.live = append(p.live, true)
	}
	p.positions[m.Position] = key
	return key
}

// InsertKey adds key to a position-sorted key list.
func (p *Population) InsertKey(keys []int32, key int32) []int32 {
	pos := p.Mutations[key].Position
	i := sort.Search(len(keys), func(i int) bool {
		return p.Mutations[keys[i]].Position >= pos
	})
	keys = append(keys, 0)
	copy(keys[i+1:], keys[i:])
	keys[i] = key
	return keys
}

// RecountMutations recomputes MCounts from the genomes.
func (p *Population) RecountMutations() {
	for k := range p.MCounts {
		p.MCounts[k] = 0
	}
	for _, ind := range p.Individuals {
		for _, g := range ind.Genomes {
			for _, k := range g.Keys {
				p.MCounts[k]++
			}
		}
	}
}

// Prune moves fixed mutations to Fixations, strips them from every genome and
// recycles the keys of fixed and lost mutations in ascending key order. MCounts
// must be current. It returns the number of fixations recorded.
func (p *Population) Prune() int {
	twoN := p.Copies()
	var (
		released []int32
		fixed    []bool
		nfixed   int
	)
	for k, live := range p.live {
		if !live {
			continue
		}
		switch p.MCounts[k] {
		case 0:
			released = append(released, int32(k))
		case twoN:
			if fixed == nil {
				fixed = make([]bool, len(p.live))
			}
			fixed[k] = true
			nfixed++
			released = append(released, int32(k))
			p.Fixations = append(p.Fixations, p.Mutations[k])
			p.FixationTimes = append(p.FixationTimes, p.Generation)
		}
	}
	if nfixed > 0 {
		for i := range p.Individuals {
			for j := range p.Individuals[i].Genomes {
				g := &p.Individuals[i].Genomes[j]
				kept := g.Keys[:0]
				for _, k := range g.Keys {
					if !fixed[k] {
						kept = append(kept, k)
					}
				}
				g.Keys = kept
			}
		}
	}
	for _, k := range released {
		p.release(k)
	}
	return nfixed
}

func (p *Population) release(key int32) {
	delete(p.positions, p.Mutations[key].Position)
	p.live[key] = false
	p.MCounts[key] = 0
	p.free = append(p.free, key)
}

// Segregating counts live mutations with 0 < count < 2N.
func (p *Population) Segregating() int {
	twoN := p.Copies()
	n := 0
	for k, live := range p.live {
		if live && p.MCounts[k] > 0 && p.MCounts[k] < twoN {
			n++
		}
	}
	return n
}

// Samples lists the table nodes of every living genome, individual by individual.
func (p *Population) Samples() []int32 {
	samples := make([]int32, 0, 2*p.N)
	for _, ind := range p.Individuals {
		samples = append(samples, ind.Genomes[0].Node, ind.Genomes[1].Node)
	}
	return samples
}

// Simplify reduces the tables to the living genomes and renumbers their nodes.
func (p *Population) Simplify() error {
	idmap, err := p.Tables.Simplify(p.Samples())
	if err != nil {
		return fmt.Errorf("simplify at generation %d: %w", p.Generation, err)
	}
	for i := range p.Individuals {
		for j := range p.Individuals[i].Genomes {
			g := &p.Individuals[i].Genomes[j]
			g.Node = idmap[g.Node]
		}
	}
	return nil
}
