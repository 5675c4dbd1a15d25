package params

import (
	"errors"
	"fmt"
)

// Constants of Hudson & Kaplan (1995), Table 1, line 4.
const (
	GenomeLength = 1.0
	R            = 0.04
	U            = 0.08
	N            = 1600
	// NSam is the number of diploids drawn for neutral-region summaries.
	NSam = 10
)

var ErrInvalid = errors.New("invalid model parameters")

// Region is a half-open genomic interval [Beg, End) with a sampling weight.
type Region struct {
	Beg    float64 `json:"beg" yaml:"beg"`
	End    float64 `json:"end" yaml:"end"`
	Weight float64 `json:"weight" yaml:"weight"`
}

func (r Region) Contains(pos float64) bool {
	return pos >= r.Beg && pos < r.End
}

// Mass is the coupled weight: Weight scaled by the region length.
func (r Region) Mass() float64 {
	return r.Weight * (r.End - r.Beg)
}

// ConstantS generates mutations with a fixed selection coefficient S and
// dominance H.
type ConstantS struct {
	Region
	S float64 `json:"s" yaml:"s"`
	H float64 `json:"h" yaml:"h"`
}

// Multiplicative fitness: heterozygotes contribute 1+H*S, homozygotes 1+Scaling*S.
type Multiplicative struct {
	Scaling float64 `json:"scaling" yaml:"scaling"`
}

// Rates holds per-gamete neutral and selected mutation rates and the per-gamete
// recombination rate.
type Rates struct {
	Neutral       float64 `json:"neutral" yaml:"neutral"`
	Selected      float64 `json:"selected" yaml:"selected"`
	Recombination float64 `json:"recombination" yaml:"recombination"`
}

// DiscreteDemography lists demographic events. Only the empty history is
// supported.
type DiscreteDemography struct {
	SizeChanges []SizeChange `json:"size_changes,omitempty" yaml:"size_changes,omitempty"`
}

type SizeChange struct {
	When    int `json:"when" yaml:"when"`
	NewSize int `json:"new_size" yaml:"new_size"`
}

func (d DiscreteDemography) Empty() bool {
	return len(d.SizeChanges) == 0
}

type ModelParams struct {
	GenomeLength float64            `json:"genome_length" yaml:"genome_length"`
	GeneticValue Multiplicative     `json:"gvalue" yaml:"gvalue"`
	Rates        Rates              `json:"rates" yaml:"rates"`
	NRegions     []Region           `json:"nregions" yaml:"nregions"`
	SRegions     []ConstantS        `json:"sregions" yaml:"sregions"`
	RecRegions   []Region           `json:"recregions" yaml:"recregions"`
	Demography   DiscreteDemography `json:"demography" yaml:"demography"`
	SimLen       int                `json:"simlen" yaml:"simlen"`
}

// Table1Line4 builds the configuration of Hudson & Kaplan's Figure 1 layout:
// selected, recombining thirds flank a neutral, non-recombining centre.
func Table1Line4() ModelParams {
	const (
		left  = 1.0 / 3.0
		right = 2.0 / 3.0
	)
	return ModelParams{
		GenomeLength: GenomeLength,
		GeneticValue: Multiplicative{Scaling: 2.0},
		// U/2 follows their eqn. 2.
		Rates: Rates{Neutral: 0, Selected: U / 2.0, Recombination: R},
		SRegions: []ConstantS{
			{Region: Region{Beg: 0, End: left, Weight: 1}, S: -0.02, H: 1},
			{Region: Region{Beg: right, End: 1.0, Weight: 1}, S: -0.02, H: 1},
		},
		RecRegions: []Region{
			{Beg: 0, End: left, Weight: 1},
			{Beg: right, End: 1.0, Weight: 1},
		},
		Demography: DiscreteDemography{},
		SimLen:     20 * N,
	}
}

func (p ModelParams) Validate() error {
	if p.GenomeLength <= 0 {
		return fmt.Errorf("%w: genome length must be > 0", ErrInvalid)
	}
	if p.Rates.Neutral < 0 || p.Rates.Selected < 0 || p.Rates.Recombination < 0 {
		return fmt.Errorf("%w: rates must be >= 0", ErrInvalid)
	}
	if p.GeneticValue.Scaling <= 0 {
		return fmt.Errorf("%w: genetic value scaling must be > 0", ErrInvalid)
	}
	for i, r := range p.NRegions {
		if err := p.checkRegion(r); err != nil {
			return fmt.Errorf("%w: nregions[%d]: %v", ErrInvalid, i, err)
		}
	}
	for i, r := range p.SRegions {
		if err := p.checkRegion(r.Region); err != nil {
			return fmt.Errorf("%w: sregions[%d]: %v", ErrInvalid, i, err)
		}
	}
	for i, r := range p.RecRegions {
		if err := p.checkRegion(r); err != nil {
			return fmt.Errorf("%w: recregions[%d]: %v", ErrInvalid, i, err)
		}
	}
	if p.Rates.Neutral > 0 && len(p.NRegions) == 0 {
		return fmt.Errorf("%w: neutral rate > 0 requires nregions", ErrInvalid)
	}
	if p.Rates.Selected > 0 && len(p.SRegions) == 0 {
		return fmt.Errorf("%w: selected rate > 0 requires sregions", ErrInvalid)
	}
	if p.Rates.Recombination > 0 && len(p.RecRegions) == 0 {
		return fmt.Errorf("%w: recombination rate > 0 requires recregions", ErrInvalid)
	}
	if !p.Demography.Empty() {
		return fmt.Errorf("%w: demographic events are not supported", ErrInvalid)
	}
	if p.SimLen <= 0 {
		return fmt.Errorf("%w: simlen must be > 0", ErrInvalid)
	}
	return nil
}

func (p ModelParams) checkRegion(r Region) error {
	if r.Beg < 0 || r.End > p.GenomeLength {
		return fmt.Errorf("region [%g, %g) outside genome [0, %g]", r.Beg, r.End, p.GenomeLength)
	}
	if r.Beg >= r.End {
		return fmt.Errorf("region begin %g must be < end %g", r.Beg, r.End)
	}
	if r.Weight < 0 {
		return fmt.Errorf("region weight must be >= 0, got %g", r.Weight)
	}
	return nil
}

// Covers reports whether any mutation or recombination region contains pos.
func (p ModelParams) Covers(pos float64) bool {
	for _, r := range p.NRegions {
		if r.Contains(pos) {
			return true
		}
	}
	for _, r := range p.SRegions {
		if r.Contains(pos) {
			return true
		}
	}
	for _, r := range p.RecRegions {
		if r.Contains(pos) {
			return true
		}
	}
	return false
}
