package cron

import "context"

// Job is one scheduled sweep (reservation expiry, overdue fines, reminders).
// Jobs must be safe to rerun: the worker retries the whole batch on restart.
type Job interface {
	Name() string
	Run(ctx context.Context) error
}

// Registry holds the sweeps in their execution order. Reservation expiry runs
// before fine assessment so a freed copy is handed off before fines are cut.
type Registry struct {
	jobs []Job
}

// NewRegistry builds a registry preloaded with the provided jobs, skipping
// nil entries.
func NewRegistry(jobs ...Job) *Registry {
	registry := &Registry{}
	for _, job := range jobs {
		registry.Register(job)
	}
	return registry
}

// Register appends a job; order of registration is order of execution.
func (r *Registry) Register(job Job) {
	if job == nil {
		return
	}
	r.jobs = append(r.jobs, job)
}

// Jobs returns a copy of the registered jobs.
func (r *Registry) Jobs() []Job {
	jobs := make([]Job, len(r.jobs))
	copy(jobs, r.jobs)
	return jobs
}
