package dag

import (
	"bytes"
	"fmt"
	"os"

	"gopkg.in/yaml.v3"

	shederrors "github.com/maxkimambo/shed/internal/errors"
)

// Plan is the file form of a task graph
type Plan struct {
	Name  string     `yaml:"name"`
	Nodes []NodeSpec `yaml:"nodes"`
}

// NodeSpec describes one plan node
type NodeSpec struct {
	ID        string   `yaml:"id"`
	Task      TaskSpec `yaml:"task"`
	Channel   int      `yaml:"channel,omitempty"`
	Yields    int      `yaml:"yields,omitempty"`
	DependsOn []string `yaml:"depends_on,omitempty"`
}

// LoadPlan reads and parses a plan file
func LoadPlan(path string) (*Plan, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, shederrors.NewPlanLoadError(path, err)
	}
	plan, err := ParsePlan(data)
	if err != nil {
		return nil, shederrors.NewPlanLoadError(path, err)
	}
	return plan, nil
}

// ParsePlan decodes a YAML plan. Unknown fields are rejected.
func ParsePlan(data []byte) (*Plan, error) {
	dec := yaml.NewDecoder(bytes.NewReader(data))
	dec.KnownFields(true)

	var plan Plan
	if err := dec.Decode(&plan); err != nil {
		return nil, fmt.Errorf("failed to parse plan: %w", err)
	}
	if len(plan.Nodes) == 0 {
		return nil, fmt.Errorf("plan has no nodes")
	}
	return &plan, nil
}

// Build turns the plan into a validated DAG for a scheduler with the given
// channel count
func (p *Plan) Build(channels int) (*DAG, error) {
	d := NewDAG()
	for _, spec := range p.Nodes {
		if spec.ID == "" {
			return nil, fmt.Errorf("plan node without id")
		}
		if spec.Channel < 0 || spec.Channel >= channels {
			return nil, shederrors.NewPlanChannelError(spec.ID, spec.Channel, channels)
		}
		task, err := NewTask(spec.ID, spec.Task)
		if err != nil {
			return nil, shederrors.NewPlanTaskError(spec.ID, spec.Task.Kind, err)
		}
		node := NewBaseNode(task, WithChannel(uint8(spec.Channel)), WithYields(spec.Yields))
		if err := d.AddNode(node); err != nil {
			return nil, err
		}
	}

	for _, spec := range p.Nodes {
		for _, dep := range spec.DependsOn {
			if err := d.AddDependency(dep, spec.ID); err != nil {
				return nil, err
			}
		}
	}

	if err := d.Validate(); err != nil {
		return nil, err
	}
	return d, nil
}

// Marshal renders the plan back to YAML
func (p *Plan) Marshal() ([]byte, error) {
	return yaml.Marshal(p)
}
