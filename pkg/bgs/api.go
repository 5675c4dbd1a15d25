// Package bgs is the programmatic entry point for background-selection runs:
// it runs the fixed experiment for a seed, summarizes and persists the result,
// and lists or re-reads earlier runs.
package bgs

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"path/filepath"
	"runtime"
	"sync"
	"time"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"golang.org/x/sync/errgroup"

	"bgsim/internal/driver"
	"bgsim/internal/freqtracker"
	"bgsim/internal/logging"
	"bgsim/internal/model"
	"bgsim/internal/params"
	"bgsim/internal/rng"
	"bgsim/internal/stats"
	"bgsim/internal/storage"
)

const (
	defaultDBPath     = "bgsim.db"
	defaultExportsDir = "exports"
	// summaryStream decorrelates the sampling stream from the simulation stream
	// of the same seed.
	summaryStream = 0x5bd1e995
)

type Options struct {
	StoreKind string
	DBPath    string
	// ArtifactsDir, when set, receives one directory per run.
	ArtifactsDir string
	// Model defaults to driver.Table1Line4.
	Model *driver.Model
	// SampleSize is the number of diploids summarized; defaults to params.NSam.
	SampleSize int
	Logger     *slog.Logger
}

type Client struct {
	store        storage.Store
	artifactsDir string
	model        driver.Model
	sampleSize   int
	logger       *slog.Logger

	initMu      sync.Mutex
	initialized bool
	// artifactsMu serializes writes to the shared run index.
	artifactsMu sync.Mutex
}

type RunRequest struct {
	Seed uint64
}

type RunSummary struct {
	RunID        string
	Seed         uint64
	ArtifactsDir string
	Summary      model.Summary
	Trajectories []freqtracker.Trajectory
}

type BatchRequest struct {
	Seeds []uint64
	// Workers bounds concurrent runs; 0 means one per CPU.
	Workers int
}

type RunsRequest struct {
	Limit int
}

type ExportRequest struct {
	RunID string
	// Latest exports the newest run when RunID is empty.
	Latest bool
	// OutDir defaults to "exports".
	OutDir string
}

func New(opts Options) (*Client, error) {
	storeKind := opts.StoreKind
	if storeKind == "" {
		storeKind = storage.DefaultStoreKind()
	}
	dbPath := opts.DBPath
	if dbPath == "" {
		dbPath = defaultDBPath
	}
	m := driver.Table1Line4()
	if opts.Model != nil {
		m = *opts.Model
	}
	sampleSize := opts.SampleSize
	if sampleSize <= 0 {
		sampleSize = min(params.NSam, m.N)
	}
	logger := opts.Logger
	if logger == nil {
		logger = logging.Discard()
	}

	store, err := storage.NewStore(storeKind, dbPath)
	if err != nil {
		return nil, err
	}

	return &Client{
		store:        store,
		artifactsDir: opts.ArtifactsDir,
		model:        m,
		sampleSize:   sampleSize,
		logger:       logger,
	}, nil
}

func (c *Client) Close() error {
	return storage.CloseIfSupported(c.store)
}

func (c *Client) Init(ctx context.Context) error {
	c.initMu.Lock()
	defer c.initMu.Unlock()

	if c.initialized {
		return nil
	}
	if err := c.store.Init(ctx); err != nil {
		return fmt.Errorf("init store: %w", err)
	}
	c.initialized = true
	return nil
}

// Run evolves one population for req.Seed and returns its tracked trajectories.
func (c *Client) Run(ctx context.Context, req RunRequest) (RunSummary, error) {
	if err := c.Init(ctx); err != nil {
		return RunSummary{}, err
	}

	ctx, span := otel.Tracer("bgsim/bgs").Start(ctx, "bgs.Run")
	defer span.End()
	span.SetAttributes(attribute.Int64("bgs.seed", int64(req.Seed)))

	started := time.Now()
	logger := c.logger.With("seed", req.Seed)
	logger.Info("run started", "n", c.model.N, "simlen", c.model.Params.SimLen, "track_from", c.model.TrackFrom)

	pop, tracker, err := driver.Run(ctx, req.Seed, c.model, logger)
	if err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, "run failed")
		return RunSummary{}, err
	}

	summary, err := stats.Summarize(pop, c.sampleSize, rng.New(req.Seed^summaryStream))
	if err != nil {
		return RunSummary{}, fmt.Errorf("summarize seed %d: %w", req.Seed, err)
	}
	trajectories := tracker.Trajectories()
	summary.Trajectories = len(trajectories)

	now := time.Now().UTC()
	run := model.Run{
		ID:           fmt.Sprintf("bgs-%d-%d", req.Seed, now.UnixNano()),
		CreatedAtUTC: now.Format(time.RFC3339Nano),
		Seed:         req.Seed,
		N:            c.model.N,
		TrackFrom:    c.model.TrackFrom,
		Params:       c.model.Params,
		Summary:      summary,
		Trajectories: toModelTrajectories(trajectories),
	}
	if err := c.store.SaveRun(ctx, run); err != nil {
		return RunSummary{}, fmt.Errorf("save run %s: %w", run.ID, err)
	}

	out := RunSummary{
		RunID:        run.ID,
		Seed:         req.Seed,
		Summary:      summary,
		Trajectories: trajectories,
	}
	if c.artifactsDir != "" {
		c.artifactsMu.Lock()
		runDir, err := stats.WriteRunArtifacts(c.artifactsDir, run)
		c.artifactsMu.Unlock()
		if err != nil {
			return RunSummary{}, fmt.Errorf("write artifacts for %s: %w", run.ID, err)
		}
		out.ArtifactsDir = filepath.Clean(runDir)
	}

	span.SetAttributes(
		attribute.Int("bgs.trajectories", summary.Trajectories),
		attribute.Int("bgs.fixations", summary.Fixations),
	)
	logger.Info("run finished",
		"run_id", run.ID,
		"trajectories", summary.Trajectories,
		"segregating", summary.Segregating,
		"fixations", summary.Fixations,
		"neutral_trees", summary.NeutralTrees,
		"scaled_tmrca", summary.ScaledTMRCA,
		"elapsed", time.Since(started).Round(time.Millisecond),
	)
	return out, nil
}

// Batch runs independent seeds concurrently. Results are returned in seed
// order; the first failure cancels the remaining runs.
func (c *Client) Batch(ctx context.Context, req BatchRequest) ([]RunSummary, error) {
	if len(req.Seeds) == 0 {
		return nil, errors.New("batch requires at least one seed")
	}
	if req.Workers < 0 {
		return nil, fmt.Errorf("workers must be >= 0, got %d", req.Workers)
	}
	workers := req.Workers
	if workers == 0 {
		workers = runtime.GOMAXPROCS(0)
	}
	if err := c.Init(ctx); err != nil {
		return nil, err
	}

	results := make([]RunSummary, len(req.Seeds))
	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(workers)
	for i, seed := range req.Seeds {
		g.Go(func() error {
			summary, err := c.Run(gctx, RunRequest{Seed: seed})
			if err != nil {
				return err
			}
			results[i] = summary
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		return nil, err
	}
	return results, nil
}

// Runs lists stored runs, newest first, merged with any runs indexed under the
// artifacts directory.
func (c *Client) Runs(ctx context.Context, req RunsRequest) ([]model.RunIndexEntry, error) {
	if req.Limit < 0 {
		return nil, errors.New("limit must be >= 0")
	}
	if err := c.Init(ctx); err != nil {
		return nil, err
	}

	entries, err := c.store.ListRuns(ctx)
	if err != nil {
		return nil, err
	}
	if c.artifactsDir != "" {
		indexed, err := stats.ListRunIndex(c.artifactsDir)
		if err != nil {
			return nil, err
		}
		entries = mergeIndex(entries, indexed)
	}
	if req.Limit > 0 && len(entries) > req.Limit {
		entries = entries[:req.Limit]
	}
	return entries, nil
}

// Show returns a run from the store, falling back to the artifacts directory.
func (c *Client) Show(ctx context.Context, runID string) (model.Run, error) {
	if runID == "" {
		return model.Run{}, errors.New("run id is required")
	}
	if err := c.Init(ctx); err != nil {
		return model.Run{}, err
	}

	run, ok, err := c.store.GetRun(ctx, runID)
	if err != nil {
		return model.Run{}, err
	}
	if ok {
		return run, nil
	}
	if c.artifactsDir != "" {
		run, ok, err = stats.ReadRun(c.artifactsDir, runID)
		if err != nil {
			return model.Run{}, err
		}
		if ok {
			return run, nil
		}
	}
	return model.Run{}, fmt.Errorf("run not found: %s", runID)
}

// Export copies a run's artifacts to req.OutDir and returns the exported run
// directory. Runs without artifacts on disk are rendered from the store.
func (c *Client) Export(ctx context.Context, req ExportRequest) (string, error) {
	runID := req.RunID
	if runID == "" {
		if !req.Latest {
			return "", errors.New("run id is required unless latest is set")
		}
		entries, err := c.Runs(ctx, RunsRequest{Limit: 1})
		if err != nil {
			return "", err
		}
		if len(entries) == 0 {
			return "", errors.New("no runs to export")
		}
		runID = entries[0].ID
	}
	outDir := req.OutDir
	if outDir == "" {
		outDir = defaultExportsDir
	}

	if c.artifactsDir != "" {
		_, ok, err := stats.ReadRun(c.artifactsDir, runID)
		if err != nil {
			return "", err
		}
		if ok {
			dir, err := stats.ExportRunArtifacts(c.artifactsDir, runID, outDir)
			if err != nil {
				return "", fmt.Errorf("export %s: %w", runID, err)
			}
			return filepath.Clean(dir), nil
		}
	}

	run, err := c.Show(ctx, runID)
	if err != nil {
		return "", err
	}
	dir, err := stats.WriteRunArtifacts(outDir, run)
	if err != nil {
		return "", fmt.Errorf("export %s: %w", runID, err)
	}
	c.logger.Debug("exported run from store", "run_id", runID, "dir", dir)
	return filepath.Clean(dir), nil
}

// Trajectories converts a stored run back to report order.
func Trajectories(run model.Run) []freqtracker.Trajectory {
	out := make([]freqtracker.Trajectory, 0, len(run.Trajectories))
	for _, tr := range run.Trajectories {
		out = append(out, freqtracker.Trajectory{
			Key:    freqtracker.Key{Origin: tr.Origin, Position: tr.Position, Effect: tr.Effect},
			Counts: append([]uint32(nil), tr.Counts...),
		})
	}
	return out
}

func toModelTrajectories(trajectories []freqtracker.Trajectory) []model.Trajectory {
	out := make([]model.Trajectory, 0, len(trajectories))
	for _, tr := range trajectories {
		out = append(out, model.Trajectory{
			Origin:   tr.Origin,
			Position: tr.Position,
			Effect:   tr.Effect,
			Counts:   tr.Counts,
		})
	}
	return out
}

func mergeIndex(primary, secondary []model.RunIndexEntry) []model.RunIndexEntry {
	seen := make(map[string]struct{}, len(primary))
	for _, e := range primary {
		seen[e.ID] = struct{}{}
	}
	merged := append([]model.RunIndexEntry(nil), primary...)
	for _, e := range secondary {
		if _, ok := seen[e.ID]; ok {
			continue
		}
		merged = append(merged, e)
	}
	storage.SortIndex(merged)
	return merged
}
