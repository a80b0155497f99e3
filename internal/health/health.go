// Package health tracks the availability of escrowd's external
// dependencies. The server registers one probe per dependency
// (PostgreSQL, the algod node) and the health endpoint runs them all
// on each request; liveness and readiness are served separately from
// the server's own state and do not touch the probes.
package health

import (
	"context"
	"sync"
	"time"
)

// Status is the outcome of one dependency probe.
type Status struct {
	Name      string `json:"name"`
	Healthy   bool   `json:"healthy"`
	Detail    string `json:"detail,omitempty"`
	LatencyMS int64  `json:"latencyMs"`
}

// Probe checks one dependency. A nil return means available.
type Probe func(ctx context.Context) error

type registered struct {
	name    string
	timeout time.Duration
	probe   Probe
}

// Registry holds named dependency probes and runs them on demand.
type Registry struct {
	mu     sync.RWMutex
	probes []registered
}

// NewRegistry creates an empty probe registry.
func NewRegistry() *Registry {
	return &Registry{}
}

// Register adds a named probe. timeout bounds a single run so one
// stuck dependency cannot hang the whole health endpoint.
func (r *Registry) Register(name string, timeout time.Duration, p Probe) {
	r.mu.Lock()
	r.probes = append(r.probes, registered{name: name, timeout: timeout, probe: p})
	r.mu.Unlock()
}

// CheckAll runs every probe and reports the aggregate plus
// per-dependency results. An empty registry is healthy: in-memory
// mode has no external dependencies to probe.
func (r *Registry) CheckAll(ctx context.Context) (healthy bool, statuses []Status) {
	r.mu.RLock()
	probes := make([]registered, len(r.probes))
	copy(probes, r.probes)
	r.mu.RUnlock()

	healthy = true
	statuses = make([]Status, len(probes))

	for i, reg := range probes {
		pctx, cancel := context.WithTimeout(ctx, reg.timeout)
		start := time.Now()
		err := reg.probe(pctx)
		cancel()

		statuses[i] = Status{
			Name:      reg.name,
			Healthy:   err == nil,
			LatencyMS: time.Since(start).Milliseconds(),
		}
		if err != nil {
			statuses[i].Detail = err.Error()
			healthy = false
		}
	}

	return healthy, statuses
}
