// Package stats summarizes finished runs and writes their artifacts.
package stats

import (
	"fmt"

	"bgsim/internal/model"
	"bgsim/internal/population"
	"bgsim/internal/rng"
)

// Summarize draws nsam diploids without replacement and measures pairwise
// coalescence times at the midpoint of the non-recombining centre
// [L/3, 2L/3). Tables must be simplified and indexed.
func Summarize(pop *population.Population, nsam int, g *rng.Generator) (model.Summary, error) {
	if nsam <= 0 || nsam > pop.N {
		return model.Summary{}, fmt.Errorf("sample size must be in [1, %d], got %d", pop.N, nsam)
	}

	left, right := pop.GenomeLength/3, 2*pop.GenomeLength/3
	trees, err := pop.Tables.TreesIn(left, right)
	if err != nil {
		return model.Summary{}, fmt.Errorf("count neutral trees: %w", err)
	}

	summary := model.Summary{
		Generation:   pop.Generation,
		Segregating:  pop.Segregating(),
		Fixations:    len(pop.Fixations),
		NeutralTrees: trees,
		SampleSize:   2 * nsam,
	}

	nodes := sampleNodes(pop, nsam, g)
	tree := pop.Tables.TreeAt((left + right) / 2)
	var (
		total float64
		pairs int
	)
	for i := 0; i < len(nodes); i++ {
		for j := i + 1; j < len(nodes); j++ {
			mrca := tree.MRCA(nodes[i], nodes[j])
			if mrca < 0 {
				summary.Uncoalesced++
				continue
			}
			total += float64(int64(pop.Generation) - pop.Tables.Nodes[mrca].Time)
			pairs++
		}
	}
	if pairs > 0 {
		summary.MeanTMRCA = total / float64(pairs)
		summary.ScaledTMRCA = summary.MeanTMRCA / float64(2*pop.N)
	}
	return summary, nil
}

// sampleNodes returns both genome nodes of nsam distinct individuals.
func sampleNodes(pop *population.Population, nsam int, g *rng.Generator) []int32 {
	order := make([]int, pop.N)
	for i := range order {
		order[i] = i
	}
	nodes := make([]int32, 0, 2*nsam)
	for i := 0; i < nsam; i++ {
		j := i + g.IntN(pop.N-i)
		order[i], order[j] = order[j], order[i]
		ind := pop.Individuals[order[i]]
		nodes = append(nodes, ind.Genomes[0].Node, ind.Genomes[1].Node)
	}
	return nodes
}
