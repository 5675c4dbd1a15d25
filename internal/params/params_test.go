package params

import (
	"errors"
	"math"
	"testing"
)

func TestTable1Line4Fidelity(t *testing.T) {
	p := Table1Line4()
	if err := p.Validate(); err != nil {
		t.Fatalf("validate: %v", err)
	}
	if p.GenomeLength != 1.0 {
		t.Fatalf("genome length = %g, want 1", p.GenomeLength)
	}
	if p.Rates.Selected != 0.04 {
		t.Fatalf("selected rate = %g, want 0.04", p.Rates.Selected)
	}
	if p.Rates.Recombination != 0.04 {
		t.Fatalf("recombination rate = %g, want 0.04", p.Rates.Recombination)
	}
	if p.Rates.Neutral != 0 || len(p.NRegions) != 0 {
		t.Fatalf("expected no neutral mutation, got rate=%g regions=%d", p.Rates.Neutral, len(p.NRegions))
	}
	if p.SimLen != 32000 {
		t.Fatalf("simlen = %d, want 32000", p.SimLen)
	}
	if p.GeneticValue.Scaling != 2.0 {
		t.Fatalf("gvalue scaling = %g, want 2", p.GeneticValue.Scaling)
	}
	if !p.Demography.Empty() {
		t.Fatal("expected empty demography")
	}
	for i, r := range p.SRegions {
		if r.S != -0.02 || r.H != 1 || r.Weight != 1 {
			t.Fatalf("sregions[%d] = %+v", i, r)
		}
	}
}

func TestTable1Line4RegionsAvoidNeutralCentre(t *testing.T) {
	p := Table1Line4()
	want := [][2]float64{{0, 1.0 / 3.0}, {2.0 / 3.0, 1.0}}
	if len(p.SRegions) != 2 || len(p.RecRegions) != 2 {
		t.Fatalf("expected two selected and two recombination regions, got %d and %d", len(p.SRegions), len(p.RecRegions))
	}
	for i, w := range want {
		if p.SRegions[i].Beg != w[0] || p.SRegions[i].End != w[1] {
			t.Fatalf("sregions[%d] = [%g, %g), want [%g, %g)", i, p.SRegions[i].Beg, p.SRegions[i].End, w[0], w[1])
		}
		if p.RecRegions[i].Beg != w[0] || p.RecRegions[i].End != w[1] {
			t.Fatalf("recregions[%d] = [%g, %g), want [%g, %g)", i, p.RecRegions[i].Beg, p.RecRegions[i].End, w[0], w[1])
		}
	}
	for x := 1.0 / 3.0; x < 2.0/3.0; x += 0.001 {
		if p.Covers(x) {
			t.Fatalf("position %g in neutral centre is covered by a region", x)
		}
	}
	for _, x := range []float64{0, 0.1, 0.333, 0.667, 0.9, math.Nextafter(1, 0)} {
		if !p.Covers(x) {
			t.Fatalf("position %g should be covered", x)
		}
	}
	if math.Abs(p.SRegions[0].Mass()-p.SRegions[1].Mass()) > 1e-12 {
		t.Fatalf("expected equal region masses, got %g and %g", p.SRegions[0].Mass(), p.SRegions[1].Mass())
	}
}

func TestValidateRejectsMalformedParams(t *testing.T) {
	tests := []struct {
		name   string
		mutate func(*ModelParams)
	}{
		{"zero genome", func(p *ModelParams) { p.GenomeLength = 0 }},
		{"negative rate", func(p *ModelParams) { p.Rates.Recombination = -1 }},
		{"inverted region", func(p *ModelParams) { p.SRegions[0].Beg, p.SRegions[0].End = 0.3, 0.1 }},
		{"region past genome end", func(p *ModelParams) { p.RecRegions[1].End = 1.5 }},
		{"negative weight", func(p *ModelParams) { p.RecRegions[0].Weight = -1 }},
		{"rate without regions", func(p *ModelParams) { p.SRegions = nil }},
		{"neutral rate without regions", func(p *ModelParams) { p.Rates.Neutral = 0.1 }},
		{"demography", func(p *ModelParams) {
			p.Demography.SizeChanges = []SizeChange{{When: 10, NewSize: 100}}
		}},
		{"zero simlen", func(p *ModelParams) { p.SimLen = 0 }},
		{"zero scaling", func(p *ModelParams) { p.GeneticValue.Scaling = 0 }},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			p := Table1Line4()
			tt.mutate(&p)
			err := p.Validate()
			if err == nil {
				t.Fatal("expected validation error")
			}
			if !errors.Is(err, ErrInvalid) {
				t.Fatalf("expected ErrInvalid, got %v", err)
			}
		})
	}
}
