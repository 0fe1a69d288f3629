package job

import (
	"context"
	"sort"
	"sync"
)

// Compile-time check that MemoryRepository implements Repository.
var _ Repository = (*MemoryRepository)(nil)

// MemoryRepository keeps jobs in a map guarded by a RWMutex.
// Jobs are cloned on the way in and on the way out so callers never share
// state with the stored copy.
type MemoryRepository struct {
	mu   sync.RWMutex
	jobs map[string]*Job
}

// NewMemoryRepository creates a new in-memory job repository.
func NewMemoryRepository() *MemoryRepository {
	return &MemoryRepository{
		jobs: make(map[string]*Job),
	}
}

// Save stores a clone of job.
func (r *MemoryRepository) Save(ctx context.Context, job *Job) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	snapshot := job.Clone()

	r.mu.Lock()
	defer r.mu.Unlock()
	r.jobs[snapshot.ID] = snapshot
	return nil
}

// FindByID returns a clone of the stored job.
func (r *MemoryRepository) FindByID(_ context.Context, id string) (*Job, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	job, ok := r.jobs[id]
	if !ok {
		return nil, ErrJobNotFound
	}
	return job.Clone(), nil
}

// List returns clones of all jobs ordered by creation time, newest first.
func (r *MemoryRepository) List(_ context.Context) ([]*Job, error) {
	r.mu.RLock()
	result := make([]*Job, 0, len(r.jobs))
	for _, job := range r.jobs {
		result = append(result, job.Clone())
	}
	r.mu.RUnlock()

	sort.Slice(result, func(i, k int) bool {
		if result[i].CreatedAt.Equal(result[k].CreatedAt) {
			return result[i].ID > result[k].ID
		}
		return result[i].CreatedAt.After(result[k].CreatedAt)
	})
	return result, nil
}

// Delete removes a job from storage.
func (r *MemoryRepository) Delete(_ context.Context, id string) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	if _, ok := r.jobs[id]; !ok {
		return ErrJobNotFound
	}
	delete(r.jobs, id)
	return nil
}
