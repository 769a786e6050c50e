// Package topofile loads topology declarations from YAML files into
// the in-process model. The file surface is a thin convenience for the
// CLI; programs embedding the engine build topologies directly.
package topofile

import (
	"fmt"
	"os"

	"github.com/readygate-io/readygate/internal/model"
	"gopkg.in/yaml.v3"
)

type topologyFile struct {
	Resources []resourceEntry `yaml:"resources"`
}

type resourceEntry struct {
	Name         string      `yaml:"name"`
	Parent       string      `yaml:"parent,omitempty"`
	Replicas     int         `yaml:"replicas,omitempty"`
	HealthChecks []string    `yaml:"healthChecks,omitempty"`
	WaitFor      []waitEntry `yaml:"waitFor,omitempty"`
}

type waitEntry struct {
	Resource string `yaml:"resource"`
	Mode     string `yaml:"mode,omitempty"` // "running" (default) or "completed"
	ExitCode *int   `yaml:"exitCode,omitempty"`
}

// Load reads and validates a topology file.
func Load(path string) (*model.Topology, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("reading topology file: %w", err)
	}
	return Parse(data)
}

// Parse decodes YAML topology declarations and validates them.
func Parse(data []byte) (*model.Topology, error) {
	var file topologyFile
	if err := yaml.Unmarshal(data, &file); err != nil {
		return nil, fmt.Errorf("decoding topology file: %w", err)
	}

	builder := model.NewTopology()
	for _, entry := range file.Resources {
		if entry.Name == "" {
			return nil, fmt.Errorf("topology file declares a resource without a name")
		}
		res := &model.Resource{
			Name:   entry.Name,
			Parent: entry.Parent,
		}
		for _, key := range entry.HealthChecks {
			res.Annotations = append(res.Annotations, model.HealthCheckAnnotation{Key: key})
		}
		if entry.Replicas != 0 {
			res.Annotations = append(res.Annotations, model.ReplicaAnnotation{Count: entry.Replicas})
		}
		for _, w := range entry.WaitFor {
			mode, err := parseMode(w.Mode)
			if err != nil {
				return nil, fmt.Errorf("resource %q: %w", entry.Name, err)
			}
			res.Annotations = append(res.Annotations, model.WaitAnnotation{
				Target:   w.Resource,
				Mode:     mode,
				ExitCode: w.ExitCode,
			})
		}
		builder.Add(res)
	}

	topo, err := builder.Build()
	if err != nil {
		return nil, fmt.Errorf("invalid topology: %w", err)
	}
	return topo, nil
}

func parseMode(mode string) (model.WaitMode, error) {
	switch mode {
	case "", string(model.WaitUntilRunning):
		return model.WaitUntilRunning, nil
	case string(model.WaitUntilCompleted):
		return model.WaitUntilCompleted, nil
	default:
		return "", fmt.Errorf("unknown wait mode %q", mode)
	}
}
