package application

import (
	"context"
	"sync"
	"time"

	"github.com/lagscout/lagscout/internal/domain"
	"github.com/lagscout/lagscout/internal/utils"
)

// StatusStore keeps the latest check result per instance for the status API.
type StatusStore struct {
	mu      sync.RWMutex
	results map[string]domain.CheckResult
}

// NewStatusStore creates an empty store.
func NewStatusStore() *StatusStore {
	return &StatusStore{results: make(map[string]domain.CheckResult)}
}

// Update records the latest result for an instance.
func (s *StatusStore) Update(res domain.CheckResult) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.results[res.Instance] = res
}

// Get returns the latest result for an instance.
func (s *StatusStore) Get(instance string) (domain.CheckResult, bool) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	res, ok := s.results[instance]
	return res, ok
}

// Snapshot returns the latest result of every instance.
func (s *StatusStore) Snapshot() map[string]domain.CheckResult {
	s.mu.RLock()
	defer s.mu.RUnlock()
	out := make(map[string]domain.CheckResult, len(s.results))
	for k, v := range s.results {
		out[k] = v
	}
	return out
}

// Runner schedules check passes over all instances at the configured
// interval and publishes each result.
type Runner struct {
	repo     domain.InstanceRepository
	checks   *CheckService
	store    *StatusStore
	onResult func(domain.CheckResult)
}

// NewRunner creates a runner. onResult may be nil.
func NewRunner(repo domain.InstanceRepository, checks *CheckService, store *StatusStore, onResult func(domain.CheckResult)) *Runner {
	return &Runner{repo: repo, checks: checks, store: store, onResult: onResult}
}

// Run blocks until ctx is canceled, executing one pass immediately and then
// one per check_interval. The interval is re-read every tick so hot reloads
// take effect without a restart.
func (r *Runner) Run(ctx context.Context) {
	r.pass(ctx)
	for {
		interval := r.repo.InitConfig().CheckIntervalDuration()
		select {
		case <-ctx.Done():
			return
		case <-time.After(interval):
			r.pass(ctx)
		}
	}
}

func (r *Runner) pass(ctx context.Context) {
	for _, inst := range r.repo.FindAll() {
		if ctx.Err() != nil {
			return
		}
		res := r.checks.Run(ctx, inst)
		utils.Logger.Debug("check pass finished",
			"instance", res.Instance,
			"metrics", len(res.Metrics),
			"events", len(res.Events),
			"warnings", len(res.Warnings),
			"duration", res.Duration.String(),
		)
		r.store.Update(res)
		if r.onResult != nil {
			r.onResult(res)
		}
	}
}
