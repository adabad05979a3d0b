package job

import (
	"sync"
)

// Registry keeps jobs by key in insertion order.
type Registry struct {
	mu    sync.Mutex
	jobs  map[string]*Job
	order []string
}

func NewRegistry() *Registry {
	return &Registry{jobs: make(map[string]*Job)}
}

// Ensure returns the job for key, creating it when missing.
func (r *Registry) Ensure(key, url string) *Job {
	r.mu.Lock()
	defer r.mu.Unlock()
	if j, ok := r.jobs[key]; ok {
		return j
	}
	j := New(key, url)
	r.jobs[key] = j
	r.order = append(r.order, key)
	return j
}

func (r *Registry) Get(key string) (*Job, bool) {
	r.mu.Lock()
	defer r.mu.Unlock()
	j, ok := r.jobs[key]
	return j, ok
}

func (r *Registry) List() []*Job {
	r.mu.Lock()
	defer r.mu.Unlock()
	out := make([]*Job, 0, len(r.order))
	for _, k := range r.order {
		out = append(out, r.jobs[k])
	}
	return out
}

// Clear stops every running job and marks all of them Cleared.
func (r *Registry) Clear() {
	for _, j := range r.List() {
		j.Clear()
	}
}
