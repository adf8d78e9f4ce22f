// Package memory holds process-local stand-ins for the database and the
// broker, used when the CLI runs without DATABASE_URL or RABBITMQ_URL.
package memory

import (
	"context"
	"errors"
	"fmt"
	"sync"

	"github.com/fiapx/fiapx-frame-pipeline/internal/domain/entity"
	"github.com/google/uuid"
)

var ErrRunNotFound = errors.New("run not found")

type RunRepository struct {
	mu   sync.RWMutex
	runs map[uuid.UUID]entity.Run
}

func NewRunRepository() *RunRepository {
	return &RunRepository{runs: make(map[uuid.UUID]entity.Run)}
}

func (r *RunRepository) Create(_ context.Context, run *entity.Run) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	if _, ok := r.runs[run.ID]; ok {
		return fmt.Errorf("insert run %s: duplicate id", run.ID)
	}
	r.runs[run.ID] = clone(run)
	return nil
}

func (r *RunRepository) Update(_ context.Context, run *entity.Run) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	if _, ok := r.runs[run.ID]; !ok {
		return fmt.Errorf("update run %s: %w", run.ID, ErrRunNotFound)
	}
	r.runs[run.ID] = clone(run)
	return nil
}

func (r *RunRepository) FindByID(_ context.Context, id uuid.UUID) (*entity.Run, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	run, ok := r.runs[id]
	if !ok {
		return nil, fmt.Errorf("find run %s: %w", id, ErrRunNotFound)
	}
	out := clone(&run)
	return &out, nil
}

func clone(run *entity.Run) entity.Run {
	c := *run
	c.Processors = append([]string(nil), run.Processors...)
	if run.CompletedAt != nil {
		t := *run.CompletedAt
		c.CompletedAt = &t
	}
	return c
}
