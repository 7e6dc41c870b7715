// Package mapping translates between population-local node ids and
// circuit-wide GIDs.
package mapping

import (
	"errors"
	"fmt"
	"slices"

	"github.com/hupe1980/synapgo/internal/codec"
)

var (
	// ErrUnknownPopulation is returned for population names not in the mapping.
	ErrUnknownPopulation = errors.New("mapping: unknown population")
	// ErrUnknownNode is returned for node ids not in a population.
	ErrUnknownNode = errors.New("mapping: unknown node id")
	// ErrUnknownGID is returned for GIDs no population maps to.
	ErrUnknownGID = errors.New("mapping: unknown gid")
)

// Location is the population and node id of a GID.
type Location struct {
	Population string
	Node       uint64
}

// Mapping maps node ids of each population to GIDs and back.
// It is immutable and safe for concurrent use.
type Mapping struct {
	names       []string
	populations map[string]map[uint64]uint64
	reverse     map[uint64]Location
}

// document is the JSON form: population name to the GIDs of its nodes,
// where a node's id is its position in the list.
type document struct {
	Populations map[string][]uint64 `json:"populations"`
}

// New builds a mapping from the GID lists of each population.
// A GID may belong to only one node.
func New(populations map[string][]uint64) (*Mapping, error) {
	m := &Mapping{
		populations: make(map[string]map[uint64]uint64, len(populations)),
		reverse:     make(map[uint64]Location),
	}
	for name, gids := range populations {
		m.names = append(m.names, name)
		nodes := make(map[uint64]uint64, len(gids))
		for node, gid := range gids {
			if prev, ok := m.reverse[gid]; ok {
				return nil, fmt.Errorf("gid %d mapped by %s/%d and %s/%d", gid, prev.Population, prev.Node, name, node)
			}
			nodes[uint64(node)] = gid
			m.reverse[gid] = Location{Population: name, Node: uint64(node)}
		}
		m.populations[name] = nodes
	}
	slices.Sort(m.names)
	return m, nil
}

// Parse decodes a mapping from JSON.
func Parse(data []byte) (*Mapping, error) {
	var doc document
	if err := codec.Default.Unmarshal(data, &doc); err != nil {
		return nil, fmt.Errorf("parse mapping: %w", err)
	}
	return New(doc.Populations)
}

// Marshal encodes the mapping as JSON.
func (m *Mapping) Marshal() ([]byte, error) {
	doc := document{Populations: make(map[string][]uint64, len(m.populations))}
	for name, nodes := range m.populations {
		gids := make([]uint64, len(nodes))
		for node, gid := range nodes {
			gids[node] = gid
		}
		doc.Populations[name] = gids
	}
	return codec.Default.Marshal(doc)
}

// Populations returns the population names, sorted.
func (m *Mapping) Populations() []string {
	return slices.Clone(m.names)
}

// Population returns the mapping of one population.
func (m *Mapping) Population(name string) (PopulationMapping, error) {
	nodes, ok := m.populations[name]
	if !ok {
		return PopulationMapping{}, fmt.Errorf("%w: %q", ErrUnknownPopulation, name)
	}
	return PopulationMapping{name: name, nodes: nodes}, nil
}

// Lookup returns the population and node id of gid.
func (m *Mapping) Lookup(gid uint64) (Location, error) {
	loc, ok := m.reverse[gid]
	if !ok {
		return Location{}, fmt.Errorf("%w: %d", ErrUnknownGID, gid)
	}
	return loc, nil
}

// PopulationMapping maps the node ids of one population.
type PopulationMapping struct {
	name  string
	nodes map[uint64]uint64
}

// Name returns the population name.
func (p PopulationMapping) Name() string { return p.name }

// Len returns the number of nodes.
func (p PopulationMapping) Len() int { return len(p.nodes) }

// GID returns the GID of node.
func (p PopulationMapping) GID(node uint64) (uint64, error) {
	gid, ok := p.nodes[node]
	if !ok {
		return 0, fmt.Errorf("%w: %s/%d", ErrUnknownNode, p.name, node)
	}
	return gid, nil
}
