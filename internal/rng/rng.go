// Package rng provides the seeded random number generator shared by every
// stochastic step of a simulation run.
package rng

import (
	"fmt"
	"math"
	"math/rand/v2"

	"gonum.org/v1/gonum/stat/distuv"
)

const streamSalt = 0x9e3779b97f4a7c15

// Generator is a stateful PCG stream. It is not safe for concurrent use; each run
// owns its own.
type Generator struct {
	seed uint64
	src  *rand.PCG
	r    *rand.Rand
}

func New(seed uint64) *Generator {
	src := rand.NewPCG(seed, seed^streamSalt)
	return &Generator{seed: seed, src: src, r: rand.New(src)}
}

func (g *Generator) Seed() uint64 {
	return g.seed
}

// Float64 returns a uniform deviate in [0, 1).
func (g *Generator) Float64() float64 {
	return g.r.Float64()
}

// Uniform returns a uniform deviate in [lo, hi).
func (g *Generator) Uniform(lo, hi float64) float64 {
	x := lo + (hi-lo)*g.r.Float64()
	if x >= hi {
		x = math.Nextafter(hi, lo)
	}
	return x
}

func (g *Generator) IntN(n int) int {
	return g.r.IntN(n)
}

// Poisson draws a Poisson deviate. A zero mean always yields zero without
// consuming the stream.
func (g *Generator) Poisson(lambda float64) int {
	if lambda <= 0 {
		return 0
	}
	return int(distuv.Poisson{Lambda: lambda, Src: g.src}.Rand())
}

// Lookup samples indices with probability proportional to a fixed weight vector.
type Lookup struct {
	dist distuv.Categorical
	n    int
}

// NewLookup builds a weighted index sampler over weights. At least one weight
// must be positive.
func (g *Generator) NewLookup(weights []float64) (*Lookup, error) {
	total := 0.0
	for i, w := range weights {
		if w < 0 {
			return nil, fmt.Errorf("weight %d is negative: %g", i, w)
		}
		total += w
	}
	if total <= 0 {
		return nil, fmt.Errorf("weights sum to zero")
	}
	return &Lookup{dist: distuv.NewCategorical(weights, g.src), n: len(weights)}, nil
}

func (l *Lookup) Draw() int {
	i := int(l.dist.Rand())
	if i >= l.n {
		i = l.n - 1
	}
	return i
}
