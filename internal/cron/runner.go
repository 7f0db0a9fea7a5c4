package cronrunner

import (
	"context"
	"sync"

	"github.com/robfig/cron/v3"
	"go.uber.org/zap"
)

// Runner owns the periodic sync timers. Each job id maps to zero or one
// active cron entry; scheduling an id again replaces its previous entry.
// Start and Stop are idempotent.
type Runner struct {
	cron    *cron.Cron
	logger  *zap.Logger
	baseCtx context.Context

	mu      sync.Mutex
	entries map[string]cron.EntryID
	started bool
}

func New(logger *zap.Logger, baseCtx context.Context) *Runner {
	if baseCtx == nil {
		baseCtx = context.Background()
	}
	return &Runner{
		cron:    cron.New(cron.WithSeconds()),
		logger:  logger,
		baseCtx: baseCtx,
		entries: make(map[string]cron.EntryID),
	}
}

// Schedule registers job under the given cron spec, replacing any existing
// entry for the same job id.
func (r *Runner) Schedule(job, spec string, fn func(context.Context)) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	entryID, err := r.cron.AddFunc(spec, func() {
		fn(r.baseCtx)
	})
	if err != nil {
		return err
	}
	if previous, ok := r.entries[job]; ok {
		r.cron.Remove(previous)
	}
	r.entries[job] = entryID
	return nil
}

// Unschedule removes the job's entry, if any.
func (r *Runner) Unschedule(job string) {
	r.mu.Lock()
	defer r.mu.Unlock()
	if entryID, ok := r.entries[job]; ok {
		r.cron.Remove(entryID)
		delete(r.entries, job)
	}
}

func (r *Runner) Start() {
	r.mu.Lock()
	defer r.mu.Unlock()
	if r.started {
		return
	}
	r.started = true
	if r.logger != nil {
		r.logger.Info("cron started")
	}
	r.cron.Start()
}

// Stop halts scheduling and waits for in-flight jobs to finish.
func (r *Runner) Stop() {
	r.mu.Lock()
	if !r.started {
		r.mu.Unlock()
		return
	}
	r.started = false
	r.mu.Unlock()

	ctx := r.cron.Stop()
	<-ctx.Done()
	if r.logger != nil {
		r.logger.Info("cron stopped")
	}
}
