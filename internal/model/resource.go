package model

// WaitMode selects the dependency condition a waiting resource requires.
type WaitMode string

const (
	// WaitUntilRunning is satisfied when the dependency reaches Running.
	WaitUntilRunning WaitMode = "running"
	// WaitUntilCompleted is satisfied when the dependency reaches Finished.
	WaitUntilCompleted WaitMode = "completed"
)

// Annotation is a declarative marker attached to a resource at
// topology-construction time. Annotations are immutable after Build.
type Annotation interface {
	annotation()
}

// WaitAnnotation declares that the resource must not start before the
// target resource satisfies the wait condition. ExitCode is only
// meaningful for WaitUntilCompleted.
type WaitAnnotation struct {
	Target   string
	Mode     WaitMode
	ExitCode *int
}

// HealthCheckAnnotation binds the resource to an externally registered
// health-check procedure identified by Key.
type HealthCheckAnnotation struct {
	Key string
}

// ReplicaAnnotation declares how many replicas of the resource run.
type ReplicaAnnotation struct {
	Count int
}

func (WaitAnnotation) annotation()        {}
func (HealthCheckAnnotation) annotation() {}
func (ReplicaAnnotation) annotation()     {}

// Resource is a named unit in the application topology. Parent is a
// weak back-reference by name; a resource never owns its parent.
type Resource struct {
	Name        string
	Parent      string
	Annotations []Annotation
}

// Waits returns the resource's wait annotations in declaration order.
func (r *Resource) Waits() []WaitAnnotation {
	var waits []WaitAnnotation
	for _, a := range r.Annotations {
		if w, ok := a.(WaitAnnotation); ok {
			waits = append(waits, w)
		}
	}
	return waits
}

// HealthCheckKeys returns the declared check keys in declaration order.
func (r *Resource) HealthCheckKeys() []string {
	var keys []string
	for _, a := range r.Annotations {
		if h, ok := a.(HealthCheckAnnotation); ok {
			keys = append(keys, h.Key)
		}
	}
	return keys
}

// Replicas returns the declared replica count, defaulting to 1.
// If the annotation appears more than once the last one wins.
func (r *Resource) Replicas() int {
	count := 1
	for _, a := range r.Annotations {
		if rep, ok := a.(ReplicaAnnotation); ok {
			count = rep.Count
		}
	}
	return count
}
