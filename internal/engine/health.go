package engine

import (
	"sync"

	"github.com/readygate-io/readygate/internal/model"
)

// healthTracker owns the effective check-binding set per resource and
// the latest global result per check key. A single check key may be
// bound to many resources; one reported result updates all of them.
type healthTracker struct {
	mu       sync.Mutex
	bindings map[string][]string // resource -> ordered, deduplicated keys
	results  map[string]bool     // check key -> latest reported outcome
}

func newHealthTracker(topo *model.Topology) *healthTracker {
	h := &healthTracker{
		bindings: make(map[string][]string, topo.Len()),
		results:  make(map[string]bool),
	}
	for _, r := range topo.Resources() {
		h.bindings[r.Name] = dedupe(r.HealthCheckKeys())
	}
	return h
}

// mergeParent unions the parent's current effective binding set into
// the child's, preserving the child's declared keys first. Runs once,
// synchronously, before the child's startup notification fires.
func (h *healthTracker) mergeParent(child, parent string) {
	h.mu.Lock()
	defer h.mu.Unlock()

	merged := h.bindings[child]
	seen := make(map[string]bool, len(merged))
	for _, key := range merged {
		seen[key] = true
	}
	for _, key := range h.bindings[parent] {
		if !seen[key] {
			seen[key] = true
			merged = append(merged, key)
		}
	}
	h.bindings[child] = merged
}

// boundKeys returns the resource's current effective binding set.
func (h *healthTracker) boundKeys(name string) []string {
	h.mu.Lock()
	defer h.mu.Unlock()
	out := make([]string, len(h.bindings[name]))
	copy(out, h.bindings[name])
	return out
}

// record stores a check outcome and returns the resources bound to the
// key, in no particular order.
func (h *healthTracker) record(key string, healthy bool) []string {
	h.mu.Lock()
	defer h.mu.Unlock()

	h.results[key] = healthy
	var affected []string
	for name, keys := range h.bindings {
		for _, k := range keys {
			if k == key {
				affected = append(affected, name)
				break
			}
		}
	}
	return affected
}

// aggregate computes the resource's health status and ordered report
// sequence from the latest results. Unknown until every bound key has
// reported at least once; Healthy iff all bound checks report healthy.
// A resource with no bound checks has no health signal at all and
// stays Unknown rather than vacuously Healthy.
func (h *healthTracker) aggregate(name string) (model.HealthStatus, []model.HealthReport) {
	h.mu.Lock()
	defer h.mu.Unlock()

	keys := h.bindings[name]
	if len(keys) == 0 {
		return model.HealthUnknown, nil
	}

	reports := make([]model.HealthReport, 0, len(keys))
	status := model.HealthHealthy
	for _, key := range keys {
		healthy, reported := h.results[key]
		switch {
		case !reported:
			reports = append(reports, model.HealthReport{Key: key, Status: model.HealthUnknown})
			status = model.HealthUnknown
		case healthy:
			reports = append(reports, model.HealthReport{Key: key, Status: model.HealthHealthy})
		default:
			reports = append(reports, model.HealthReport{Key: key, Status: model.HealthUnhealthy})
			if status != model.HealthUnknown {
				status = model.HealthUnhealthy
			}
		}
	}
	return status, reports
}

func dedupe(keys []string) []string {
	if len(keys) == 0 {
		return nil
	}
	seen := make(map[string]bool, len(keys))
	out := keys[:0]
	for _, key := range keys {
		if !seen[key] {
			seen[key] = true
			out = append(out, key)
		}
	}
	return out
}
