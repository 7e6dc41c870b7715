package config

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestParseSimulation(t *testing.T) {
	sc, err := ParseSimulation([]byte(`{
		"manifest": {"$OUTPUT_DIR": "./output", "$BASE": "/circuits"},
		"network": "$BASE/circuit_config.json",
		"node_sets_file": "node_sets.json",
		"output": {"output_dir": "$OUTPUT_DIR"},
		"reports": {
			"soma": {"module": "membrane_report"},
			"legacy": {"module": "membrame_report"},
			"spikes": {"module": "spike_report"},
			"broken": {}
		}
	}`), "/sim/simulation_config.json")
	require.NoError(t, err)

	assert.Equal(t, "/circuits/circuit_config.json", sc.NetworkConfig)
	assert.Equal(t, "/sim/node_sets.json", sc.NodeSets)
	assert.Equal(t, "/sim/output", sc.OutputRoot)
	assert.Equal(t, []string{"legacy", "soma"}, sc.ReportNames)
}

func TestParseSimulation_NetworksFallback(t *testing.T) {
	sc, err := ParseSimulation([]byte(`{
		"networks": {"nodes": []},
		"output": {"output_dir": "out"}
	}`), "/sim/config.json")
	require.NoError(t, err)
	assert.Equal(t, "/sim/config.json", sc.NetworkConfig)
	assert.Empty(t, sc.NodeSets)
	assert.Empty(t, sc.ReportNames)
}

func TestParseSimulation_Errors(t *testing.T) {
	tests := map[string]string{
		"no network": `{"output": {"output_dir": "out"}}`,
		"no output":  `{"network": "c.json"}`,
		"no dir":     `{"network": "c.json", "output": {}}`,
		"not json":   `network`,
	}
	for name, doc := range tests {
		t.Run(name, func(t *testing.T) {
			_, err := ParseSimulation([]byte(doc), "/sim/config.json")
			assert.ErrorIs(t, err, ErrSimulation)
		})
	}
}

func TestLoadSimulation(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "simulation.json")
	require.NoError(t, os.WriteFile(path, []byte(`{"network": "circuit.json", "output": {"output_dir": "/abs/out"}}`), 0o600))

	sc, err := LoadSimulation(path)
	require.NoError(t, err)
	assert.Equal(t, filepath.Join(dir, "circuit.json"), sc.NetworkConfig)
	assert.Equal(t, "/abs/out", sc.OutputRoot)

	_, err = LoadSimulation(filepath.Join(dir, "absent.json"))
	assert.Error(t, err)
}
