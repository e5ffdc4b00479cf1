package dag

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	shederrors "github.com/maxkimambo/shed/internal/errors"
)

func TestLoadPlan(t *testing.T) {
	plan, err := LoadPlan(filepath.Join("testdata", "pipeline.yaml"))
	require.NoError(t, err)

	assert.Equal(t, "pipeline", plan.Name)
	require.Len(t, plan.Nodes, 5)

	streaming := plan.Nodes[3]
	assert.Equal(t, "streaming", streaming.ID)
	assert.Equal(t, TaskKindSleep, streaming.Task.Kind)
	assert.Equal(t, 200*time.Microsecond, streaming.Task.Duration)
	assert.Equal(t, 1, streaming.Channel)
	assert.Equal(t, 1, streaming.Yields)
	assert.Equal(t, []string{"physics", "animation", "streaming"}, plan.Nodes[4].DependsOn)
}

func TestLoadPlanMissingFile(t *testing.T) {
	_, err := LoadPlan(filepath.Join(t.TempDir(), "missing.yaml"))
	require.Error(t, err)
	assert.Equal(t, "PLAN-001", shederrors.GetErrorCode(err))
}

func TestParsePlanRejectsBadInput(t *testing.T) {
	_, err := ParsePlan([]byte("name: x\nnodes: []\n"))
	assert.ErrorContains(t, err, "no nodes")

	_, err = ParsePlan([]byte("name: x\nnodes:\n  - id: a\n    colour: red\n"))
	assert.Error(t, err)

	_, err = ParsePlan([]byte("nodes: [\n"))
	assert.Error(t, err)
}

func TestPlanBuild(t *testing.T) {
	plan, err := LoadPlan(filepath.Join("testdata", "pipeline.yaml"))
	require.NoError(t, err)

	d, err := plan.Build(2)
	require.NoError(t, err)
	assert.Equal(t, 5, d.Size())
	assert.Equal(t, 5, d.EdgeCount())
	assert.Equal(t, []string{"input", "streaming"}, d.GetRootNodes())

	node, err := d.GetNode("streaming")
	require.NoError(t, err)
	assert.Equal(t, uint8(1), node.Channel())
	assert.Equal(t, 1, node.Yields())
}

func TestPlanBuildErrors(t *testing.T) {
	tests := []struct {
		name     string
		yaml     string
		wantCode string
	}{
		{
			name:     "channel out of range",
			yaml:     "nodes:\n  - id: a\n    channel: 4\n",
			wantCode: "PLAN-005",
		},
		{
			name:     "unknown task",
			yaml:     "nodes:\n  - id: a\n    task: {kind: warp}\n",
			wantCode: "PLAN-006",
		},
		{
			name:     "unknown dependency",
			yaml:     "nodes:\n  - id: a\n    depends_on: [ghost]\n",
			wantCode: "PLAN-003",
		},
		{
			name:     "duplicate node",
			yaml:     "nodes:\n  - id: a\n  - id: a\n",
			wantCode: "PLAN-002",
		},
		{
			name:     "cycle",
			yaml:     "nodes:\n  - id: a\n    depends_on: [b]\n  - id: b\n    depends_on: [a]\n",
			wantCode: "PLAN-004",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			plan, err := ParsePlan([]byte(tt.yaml))
			require.NoError(t, err)
			_, err = plan.Build(2)
			require.Error(t, err)
			assert.Equal(t, tt.wantCode, shederrors.GetErrorCode(err))
		})
	}
}

func TestPlanMarshalRoundTrip(t *testing.T) {
	path := filepath.Join(t.TempDir(), "plan.yaml")
	plan := &Plan{Name: "tiny", Nodes: []NodeSpec{
		{ID: "a", Task: TaskSpec{Kind: TaskKindSpin, Iterations: 5}},
		{ID: "b", DependsOn: []string{"a"}},
	}}
	data, err := plan.Marshal()
	require.NoError(t, err)
	require.NoError(t, os.WriteFile(path, data, 0o644))

	loaded, err := LoadPlan(path)
	require.NoError(t, err)
	assert.Equal(t, plan, loaded)
}
