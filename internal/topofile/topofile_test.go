package topofile

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/readygate-io/readygate/internal/model"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

const sampleTopology = `
resources:
  - name: postgres
    healthChecks: [pg_ready]
  - name: migration
    waitFor:
      - resource: postgres
        mode: running
  - name: api
    parent: postgres
    replicas: 2
    waitFor:
      - resource: migration
        mode: completed
        exitCode: 0
`

func TestParse_Valid(t *testing.T) {
	topo, err := Parse([]byte(sampleTopology))
	require.NoError(t, err)
	require.Equal(t, 3, topo.Len())
	assert.Equal(t, []string{"postgres", "migration", "api"}, topo.Names())

	api, ok := topo.Resource("api")
	require.True(t, ok)
	assert.Equal(t, "postgres", api.Parent)
	assert.Equal(t, 2, api.Replicas())

	waits := api.Waits()
	require.Len(t, waits, 1)
	assert.Equal(t, "migration", waits[0].Target)
	assert.Equal(t, model.WaitUntilCompleted, waits[0].Mode)
	require.NotNil(t, waits[0].ExitCode)
	assert.Equal(t, 0, *waits[0].ExitCode)

	pg, ok := topo.Resource("postgres")
	require.True(t, ok)
	assert.Equal(t, []string{"pg_ready"}, pg.HealthCheckKeys())

	mig, ok := topo.Resource("migration")
	require.True(t, ok)
	waits = mig.Waits()
	require.Len(t, waits, 1)
	assert.Equal(t, model.WaitUntilRunning, waits[0].Mode)
	assert.Nil(t, waits[0].ExitCode)
}

func TestParse_DefaultModeIsRunning(t *testing.T) {
	topo, err := Parse([]byte(`
resources:
  - name: a
  - name: b
    waitFor:
      - resource: a
`))
	require.NoError(t, err)
	b, ok := topo.Resource("b")
	require.True(t, ok)
	assert.Equal(t, model.WaitUntilRunning, b.Waits()[0].Mode)
}

func TestParse_Errors(t *testing.T) {
	tests := []struct {
		name    string
		input   string
		wantErr string
	}{
		{
			name:    "bad yaml",
			input:   "resources: [",
			wantErr: "decoding topology file",
		},
		{
			name: "missing name",
			input: `
resources:
  - parent: x
`,
			wantErr: "resource without a name",
		},
		{
			name: "unknown mode",
			input: `
resources:
  - name: a
  - name: b
    waitFor:
      - resource: a
        mode: finished
`,
			wantErr: `unknown wait mode "finished"`,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := Parse([]byte(tt.input))
			require.Error(t, err)
			assert.Contains(t, err.Error(), tt.wantErr)
		})
	}
}

func TestParse_StructuralValidationRuns(t *testing.T) {
	_, err := Parse([]byte(`
resources:
  - name: a
    waitFor:
      - resource: a
`))
	require.Error(t, err)
	assert.ErrorIs(t, err, model.ErrStructural)

	var selfErr *model.SelfWaitError
	assert.ErrorAs(t, err, &selfErr)
}

func TestLoad(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "topology.yaml")
	require.NoError(t, os.WriteFile(path, []byte(sampleTopology), 0o644))

	topo, err := Load(path)
	require.NoError(t, err)
	assert.Equal(t, 3, topo.Len())

	_, err = Load(filepath.Join(dir, "missing.yaml"))
	require.Error(t, err)
	assert.Contains(t, err.Error(), "reading topology file")
}
