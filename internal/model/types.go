package model

import "bgsim/internal/params"

// VersionedRecord captures schema and codec evolution for persistent data.
type VersionedRecord struct {
	SchemaVersion int `json:"schema_version"`
	CodecVersion  int `json:"codec_version"`
}

type Trajectory struct {
	Origin   uint32   `json:"origin"`
	Position float64  `json:"position"`
	Effect   float64  `json:"effect"`
	Counts   []uint32 `json:"counts"`
}

// Summary describes the final population and the neutral-region genealogy of a
// sample drawn from it.
type Summary struct {
	Generation   uint32  `json:"generation"`
	Segregating  int     `json:"segregating"`
	Fixations    int     `json:"fixations"`
	Trajectories int     `json:"trajectories"`
	NeutralTrees int     `json:"neutral_trees"`
	SampleSize   int     `json:"sample_size"`
	MeanTMRCA    float64 `json:"mean_tmrca"`
	// ScaledTMRCA is MeanTMRCA divided by the neutral expectation 2N.
	ScaledTMRCA float64 `json:"scaled_tmrca"`
	Uncoalesced int     `json:"uncoalesced_pairs"`
}

type Run struct {
	VersionedRecord
	ID           string             `json:"id"`
	CreatedAtUTC string             `json:"created_at_utc"`
	Seed         uint64             `json:"seed"`
	N            int                `json:"n"`
	TrackFrom    uint32             `json:"track_from"`
	Params       params.ModelParams `json:"params"`
	Summary      Summary            `json:"summary"`
	Trajectories []Trajectory       `json:"trajectories"`
}

// RunIndexEntry is the listing view of a stored run.
type RunIndexEntry struct {
	ID           string  `json:"id"`
	CreatedAtUTC string  `json:"created_at_utc"`
	Seed         uint64  `json:"seed"`
	Trajectories int     `json:"trajectories"`
	Fixations    int     `json:"fixations"`
	ScaledTMRCA  float64 `json:"scaled_tmrca"`
}

func (r Run) IndexEntry() RunIndexEntry {
	return RunIndexEntry{
		ID:           r.ID,
		CreatedAtUTC: r.CreatedAtUTC,
		Seed:         r.Seed,
		Trajectories: len(r.Trajectories),
		Fixations:    r.Summary.Fixations,
		ScaledTMRCA:  r.Summary.ScaledTMRCA,
	}
}
