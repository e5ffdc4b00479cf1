package dag

import (
	"fmt"
	"sync"

	"github.com/gammazero/toposort"

	shederrors "github.com/maxkimambo/shed/internal/errors"
)

// DAG is the dependency graph of a plan. An edge from A to B means B waits
// for A; in scheduler terms A is B's dependency.
type DAG struct {
	nodes      map[string]Node
	order      []string
	deps       map[string][]string
	dependents map[string][]string
	edges      int
	mutex      sync.RWMutex
}

// NewDAG creates a new DAG instance
func NewDAG() *DAG {
	return &DAG{
		nodes:      make(map[string]Node),
		deps:       make(map[string][]string),
		dependents: make(map[string][]string),
	}
}

// AddNode adds a node to the DAG
func (d *DAG) AddNode(node Node) error {
	if node == nil {
		return fmt.Errorf("node cannot be nil")
	}

	id := node.ID()
	if id == "" {
		return fmt.Errorf("node ID cannot be empty")
	}

	d.mutex.Lock()
	defer d.mutex.Unlock()

	if _, exists := d.nodes[id]; exists {
		return shederrors.NewDuplicateNodeError(id)
	}

	d.nodes[id] = node
	d.order = append(d.order, id)
	return nil
}

// AddDependency creates a directed edge between nodes (from -> to): to
// runs only after from completes.
func (d *DAG) AddDependency(fromID, toID string) error {
	d.mutex.Lock()
	defer d.mutex.Unlock()

	if _, exists := d.nodes[toID]; !exists {
		return fmt.Errorf("target node %s does not exist", toID)
	}
	if _, exists := d.nodes[fromID]; !exists {
		return shederrors.NewUnknownDependencyError(toID, fromID)
	}
	if fromID == toID {
		return shederrors.NewPlanCycleError(fmt.Errorf("node %s depends on itself", toID))
	}
	for _, existing := range d.deps[toID] {
		if existing == fromID {
			return nil
		}
	}

	d.deps[toID] = append(d.deps[toID], fromID)
	d.dependents[fromID] = append(d.dependents[fromID], toID)
	d.edges++
	return nil
}

// GetNode retrieves a node by its ID
func (d *DAG) GetNode(id string) (Node, error) {
	d.mutex.RLock()
	defer d.mutex.RUnlock()

	node, exists := d.nodes[id]
	if !exists {
		return nil, fmt.Errorf("node %s not found", id)
	}
	return node, nil
}

// GetDependencies returns all nodes that must complete before the given node can run
func (d *DAG) GetDependencies(id string) ([]string, error) {
	d.mutex.RLock()
	defer d.mutex.RUnlock()

	if _, exists := d.nodes[id]; !exists {
		return nil, fmt.Errorf("node %s not found", id)
	}
	return append([]string(nil), d.deps[id]...), nil
}

// GetDependents returns all nodes that depend on the given node
func (d *DAG) GetDependents(id string) ([]string, error) {
	d.mutex.RLock()
	defer d.mutex.RUnlock()

	if _, exists := d.nodes[id]; !exists {
		return nil, fmt.Errorf("node %s not found", id)
	}
	return append([]string(nil), d.dependents[id]...), nil
}

// GetAllNodes returns all node IDs in insertion order
func (d *DAG) GetAllNodes() []string {
	d.mutex.RLock()
	defer d.mutex.RUnlock()
	return append([]string(nil), d.order...)
}

// GetRootNodes returns all nodes with no dependencies, in insertion order
func (d *DAG) GetRootNodes() []string {
	d.mutex.RLock()
	defer d.mutex.RUnlock()

	var roots []string
	for _, id := range d.order {
		if len(d.deps[id]) == 0 {
			roots = append(roots, id)
		}
	}
	return roots
}

// Validate checks the DAG for cycles
func (d *DAG) Validate() error {
	_, err := d.TopologicalOrder()
	return err
}

// TopologicalOrder returns node ids so that every node follows its
// dependencies
func (d *DAG) TopologicalOrder() ([]string, error) {
	d.mutex.RLock()
	defer d.mutex.RUnlock()

	edges := make([]toposort.Edge, 0, len(d.order)+d.edges)
	for _, id := range d.order {
		deps := d.deps[id]
		if len(deps) == 0 {
			edges = append(edges, toposort.Edge{nil, id})
			continue
		}
		for _, depID := range deps {
			edges = append(edges, toposort.Edge{depID, id})
		}
	}

	sorted, err := toposort.Toposort(edges)
	if err != nil {
		return nil, shederrors.NewPlanCycleError(err)
	}

	order := make([]string, 0, len(d.order))
	for _, id := range sorted {
		if id != nil {
			order = append(order, id.(string))
		}
	}
	if len(order) != len(d.order) {
		return nil, shederrors.NewPlanCycleError(
			fmt.Errorf("sorted %d of %d nodes", len(order), len(d.order)))
	}
	return order, nil
}

// Size returns the number of nodes in the DAG
func (d *DAG) Size() int {
	d.mutex.RLock()
	defer d.mutex.RUnlock()
	return len(d.nodes)
}

// EdgeCount returns the number of dependency edges, which is the number of
// dependency slots one frame consumes
func (d *DAG) EdgeCount() int {
	d.mutex.RLock()
	defer d.mutex.RUnlock()
	return d.edges
}

// MaxChannel returns the highest channel any node uses
func (d *DAG) MaxChannel() uint8 {
	d.mutex.RLock()
	defer d.mutex.RUnlock()

	var max uint8
	for _, node := range d.nodes {
		if node.Channel() > max {
			max = node.Channel()
		}
	}
	return max
}

// IsComplete returns true if all nodes have completed successfully
func (d *DAG) IsComplete() bool {
	d.mutex.RLock()
	defer d.mutex.RUnlock()

	for _, node := range d.nodes {
		if node.GetStatus() != StatusCompleted {
			return false
		}
	}
	return true
}

// HasFailed returns true if any node has failed or been cancelled
func (d *DAG) HasFailed() bool {
	d.mutex.RLock()
	defer d.mutex.RUnlock()

	for _, node := range d.nodes {
		status := node.GetStatus()
		if status == StatusFailed || status == StatusCancelled {
			return true
		}
	}
	return false
}
