package storage

import (
	"context"

	"bgsim/internal/model"
)

// Store persists simulation runs.
type Store interface {
	Init(ctx context.Context) error
	SaveRun(ctx context.Context, run model.Run) error
	GetRun(ctx context.Context, id string) (model.Run, bool, error)
	ListRuns(ctx context.Context) ([]model.RunIndexEntry, error)
}
