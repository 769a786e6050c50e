package model

import "sort"

// Topology is the arena-style table of all declared resources. It is
// built once, validated, and immutable afterwards; parent and wait
// links are stored as name references, never owning pointers.
type Topology struct {
	resources map[string]*Resource
	order     []string
}

// Builder accumulates resource declarations before validation.
type Builder struct {
	resources []*Resource
}

// NewTopology returns an empty topology builder.
func NewTopology() *Builder {
	return &Builder{}
}

// Add declares a resource. Declaration order is preserved.
func (b *Builder) Add(r *Resource) *Builder {
	b.resources = append(b.resources, r)
	return b
}

// Build validates the declarations and freezes the topology.
// Any structural error aborts construction; nothing runs.
func (b *Builder) Build() (*Topology, error) {
	t := &Topology{
		resources: make(map[string]*Resource, len(b.resources)),
	}

	for _, r := range b.resources {
		if _, exists := t.resources[r.Name]; exists {
			return nil, &DuplicateResourceError{Name: r.Name}
		}
		t.resources[r.Name] = r
		t.order = append(t.order, r.Name)
	}

	for _, r := range b.resources {
		if r.Parent != "" {
			if _, ok := t.resources[r.Parent]; !ok {
				return nil, &UnknownParentError{Resource: r.Name, Parent: r.Parent}
			}
		}
		if count := r.Replicas(); count < 1 {
			return nil, &InvalidReplicaError{Resource: r.Name, Count: count}
		}
		for _, w := range r.Waits() {
			if w.Target == r.Name {
				return nil, &SelfWaitError{Resource: r.Name}
			}
			if r.Parent != "" && w.Target == r.Parent {
				return nil, &ParentWaitError{Resource: r.Name, Parent: r.Parent}
			}
			if _, ok := t.resources[w.Target]; !ok {
				return nil, &UnknownWaitTargetError{Resource: r.Name, Target: w.Target}
			}
		}
	}

	if err := t.checkWaitCycles(); err != nil {
		return nil, err
	}

	return t, nil
}

// Resource looks up a resource by name.
func (t *Topology) Resource(name string) (*Resource, bool) {
	r, ok := t.resources[name]
	return r, ok
}

// Resources returns all resources in declaration order.
func (t *Topology) Resources() []*Resource {
	out := make([]*Resource, 0, len(t.order))
	for _, name := range t.order {
		out = append(out, t.resources[name])
	}
	return out
}

// Names returns all resource names in declaration order.
func (t *Topology) Names() []string {
	out := make([]string, len(t.order))
	copy(out, t.order)
	return out
}

// Len returns the number of declared resources.
func (t *Topology) Len() int {
	return len(t.order)
}

// checkWaitCycles runs Kahn's algorithm over the wait graph. Any nodes
// left with unresolved in-degree sit on a cycle or behind one; all of
// them are reported since none could ever leave Waiting.
func (t *Topology) checkWaitCycles() error {
	inDegree := make(map[string]int, len(t.resources))
	dependents := make(map[string][]string, len(t.resources))

	for name := range t.resources {
		inDegree[name] = 0
	}
	for name, r := range t.resources {
		for _, w := range r.Waits() {
			inDegree[name]++
			dependents[w.Target] = append(dependents[w.Target], name)
		}
	}

	var queue []string
	for name, deg := range inDegree {
		if deg == 0 {
			queue = append(queue, name)
		}
	}

	sorted := 0
	for len(queue) > 0 {
		name := queue[0]
		queue = queue[1:]
		sorted++

		for _, dep := range dependents[name] {
			inDegree[dep]--
			if inDegree[dep] == 0 {
				queue = append(queue, dep)
			}
		}
	}

	if sorted == len(t.resources) {
		return nil
	}

	var members []string
	for name, deg := range inDegree {
		if deg > 0 {
			members = append(members, name)
		}
	}
	sort.Strings(members)
	return &WaitCycleError{Members: members}
}
