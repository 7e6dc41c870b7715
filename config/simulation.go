package config

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"sort"
	"strings"

	"github.com/goccy/go-json"
)

// ErrSimulation is returned for simulation configs that cannot be used.
var ErrSimulation = errors.New("config: invalid simulation config")

// Report modules whose reports are compartment reports. The second
// spelling is accepted for configs written by older tools.
var compartmentModules = map[string]struct{}{
	"membrane_report": {},
	"membrame_report": {},
}

// SimulationConfig is the part of a SONATA simulation config needed to
// locate a circuit and its outputs. Paths are absolute.
type SimulationConfig struct {
	// NetworkConfig is the circuit config. It is the simulation config
	// itself when that also declares the networks.
	NetworkConfig string
	// NodeSets is the node sets file, or empty.
	NodeSets string
	// OutputRoot is the output directory.
	OutputRoot string
	// ReportNames lists the compartment reports, sorted.
	ReportNames []string
}

type simulationJSON struct {
	Manifest     map[string]string `json:"manifest"`
	Network      *string           `json:"network"`
	Networks     json.RawMessage   `json:"networks"`
	NodeSetsFile *string           `json:"node_sets_file"`
	Output       *struct {
		OutputDir *string `json:"output_dir"`
	} `json:"output"`
	Reports map[string]struct {
		Module string `json:"module"`
	} `json:"reports"`
}

// LoadSimulation reads the simulation config at path.
func LoadSimulation(path string) (*SimulationConfig, error) {
	abs, err := filepath.Abs(path)
	if err != nil {
		return nil, err
	}
	data, err := os.ReadFile(abs)
	if err != nil {
		return nil, fmt.Errorf("read simulation config: %w", err)
	}
	return ParseSimulation(data, abs)
}

// ParseSimulation parses a simulation config located at path. Relative
// paths in it resolve against the directory of path.
func ParseSimulation(data []byte, path string) (*SimulationConfig, error) {
	var raw simulationJSON
	if err := json.Unmarshal(data, &raw); err != nil {
		return nil, fmt.Errorf("%w: %w", ErrSimulation, err)
	}

	r := resolver{dir: filepath.Dir(path), manifest: raw.Manifest}
	sc := &SimulationConfig{}

	switch {
	case raw.Network != nil:
		sc.NetworkConfig = r.abs(*raw.Network)
	case len(raw.Networks) > 0:
		sc.NetworkConfig = path
	default:
		return nil, fmt.Errorf("%w: network not specified", ErrSimulation)
	}

	if raw.NodeSetsFile != nil {
		sc.NodeSets = r.abs(*raw.NodeSetsFile)
	}

	if raw.Output == nil || raw.Output.OutputDir == nil {
		return nil, fmt.Errorf("%w: output.output_dir not specified", ErrSimulation)
	}
	sc.OutputRoot = r.abs(*raw.Output.OutputDir)

	for name, rep := range raw.Reports {
		if _, ok := compartmentModules[rep.Module]; ok {
			sc.ReportNames = append(sc.ReportNames, name)
		}
	}
	sort.Strings(sc.ReportNames)
	return sc, nil
}

// resolver expands manifest variables and makes paths absolute.
type resolver struct {
	dir      string
	manifest map[string]string
}

func (r resolver) expand(p string) string {
	// Longer names first so $BASE_DIR_X is not split by $BASE_DIR.
	names := make([]string, 0, len(r.manifest))
	for name := range r.manifest {
		names = append(names, name)
	}
	sort.Slice(names, func(i, j int) bool { return len(names[i]) > len(names[j]) })

	for _, name := range names {
		if strings.HasPrefix(name, "$") {
			p = strings.ReplaceAll(p, name, r.manifest[name])
		}
	}
	return p
}

func (r resolver) abs(p string) string {
	p = r.expand(p)
	if p == "" || filepath.IsAbs(p) {
		return p
	}
	return filepath.Join(r.dir, p)
}
