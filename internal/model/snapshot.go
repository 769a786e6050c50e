package model

// LifecycleState identifies where a resource is in its run lifecycle.
type LifecycleState string

const (
	StateNotStarted    LifecycleState = "NotStarted"
	StateWaiting       LifecycleState = "Waiting"
	StateStarting      LifecycleState = "Starting"
	StateRunning       LifecycleState = "Running"
	StateFinished      LifecycleState = "Finished"
	StateFailedToStart LifecycleState = "FailedToStart"
)

// Terminal reports whether no further lifecycle transitions occur for this run.
func (s LifecycleState) Terminal() bool {
	return s == StateFinished || s == StateFailedToStart
}

// HealthStatus is the aggregated tri-state health of a resource,
// orthogonal to its lifecycle state.
type HealthStatus string

const (
	HealthUnknown   HealthStatus = "Unknown"
	HealthHealthy   HealthStatus = "Healthy"
	HealthUnhealthy HealthStatus = "Unhealthy"
)

// HealthReport is the latest observed outcome for one bound check key.
// A bound key that has not reported yet carries HealthUnknown.
type HealthReport struct {
	Key    string
	Status HealthStatus
}

// Snapshot is an immutable point-in-time state record for a resource.
// The current snapshot is the most recently published one; Version
// increases by one with every replacement.
type Snapshot struct {
	State         LifecycleState
	ExitCode      *int
	Health        HealthStatus
	HealthReports []HealthReport
	Version       uint64
}

// Clone returns a deep copy so transforms never alias a published snapshot.
func (s Snapshot) Clone() Snapshot {
	out := s
	if s.ExitCode != nil {
		code := *s.ExitCode
		out.ExitCode = &code
	}
	if s.HealthReports != nil {
		out.HealthReports = make([]HealthReport, len(s.HealthReports))
		copy(out.HealthReports, s.HealthReports)
	}
	return out
}

// Report returns the latest report for a check key, if the key is bound.
func (s Snapshot) Report(key string) (HealthStatus, bool) {
	for _, r := range s.HealthReports {
		if r.Key == key {
			return r.Status, true
		}
	}
	return HealthUnknown, false
}
