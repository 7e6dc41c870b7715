package testutil

import (
	"context"
	"fmt"
	"slices"

	"github.com/hupe1980/synapgo/blobstore"
	"github.com/hupe1980/synapgo/dataset"
	"github.com/hupe1980/synapgo/mapping"
	"github.com/hupe1980/synapgo/source"
)

// ProjectionBase is the first source id of generated projections.
const ProjectionBase = 1_000_000

// CircuitSpec sizes a synthetic circuit.
type CircuitSpec struct {
	// Neurons are numbered 1..Neurons.
	Neurons int
	// MeanPeers is the mean number of presynaptic peers per neuron.
	MeanPeers int
	// MaxSynapsesPerPair bounds the synapses of one connected pair.
	// Defaults to 4.
	MaxSynapsesPerPair int
	// Wide adds surface positions.
	Wide bool
	// Projections maps projection names to their number of source ids.
	Projections map[string]int
	// Population names the mapping of neurons to GIDs. Defaults to "default".
	Population string
}

// Circuit is a generated circuit in the row layout of package source.
type Circuit struct {
	Spec              CircuitSpec
	Summary           map[uint32][]source.SummaryEntry
	Afferent          map[uint32]source.Matrix
	Efferent          map[uint32]source.Matrix
	Extra             map[uint32]source.Matrix
	AfferentPositions map[uint32]source.Matrix
	EfferentPositions map[uint32]source.Matrix
	Projections       map[string]map[uint32]source.Matrix
	Mapping           *mapping.Mapping
	// Synapses is the total number of internal synapses.
	Synapses int
}

type synapse struct {
	attrs []float32 // AttributeWidth, peer column unset
	pos   []float32 // position row, peer column unset
}

type pair struct{ pre, post uint32 }

// Circuit generates a circuit for spec. Peer counts follow a Zipf
// distribution, so a few neurons have many more peers than the mean.
func (r *RNG) Circuit(spec CircuitSpec) *Circuit {
	if spec.MaxSynapsesPerPair <= 0 {
		spec.MaxSynapsesPerPair = 4
	}
	if spec.Population == "" {
		spec.Population = "default"
	}
	n := spec.Neurons
	posWidth := source.NarrowPositionWidth
	if spec.Wide {
		posWidth = source.WidePositionWidth
	}

	newSynapse := func(pre, post uint32) synapse {
		a := make([]float32, source.AttributeWidth)
		r.Uniform(a, 0, 1)
		a[source.ColDelay] = 0.1 + 5*a[source.ColDelay]
		a[source.ColPostSection] = float32(r.Intn(200))
		a[source.ColPostSegment] = float32(r.Intn(50))
		a[source.ColPreSection] = float32(r.Intn(200))
		a[source.ColPreSegment] = float32(r.Intn(50))
		a[source.ColEfficacy] = float32(r.Intn(100))

		p := make([]float32, posWidth)
		r.Uniform(p, -500, 500)
		// Centers sit on the soma axis of their neuron.
		p[posWidth-6] = float32(pre)
		p[posWidth-3] = float32(post)
		return synapse{attrs: a, pos: p}
	}

	// Connected pairs and their synapses.
	pairs := map[pair][]synapse{}
	for post := uint32(1); int(post) <= n; post++ {
		peers := 0
		if spec.MeanPeers > 0 && n > 1 {
			peers = min(r.Zipf(4*spec.MeanPeers, 1.0)+1, n-1)
		}
		for range peers {
			pre := uint32(r.Intn(n) + 1)
			if pre == post {
				continue
			}
			p := pair{pre, post}
			if _, ok := pairs[p]; ok {
				continue
			}
			k := r.Intn(spec.MaxSynapsesPerPair) + 1
			syns := make([]synapse, k)
			for i := range syns {
				syns[i] = newSynapse(pre, post)
			}
			pairs[p] = syns
		}
	}

	c := &Circuit{
		Spec:              spec,
		Summary:           map[uint32][]source.SummaryEntry{},
		Afferent:          map[uint32]source.Matrix{},
		Efferent:          map[uint32]source.Matrix{},
		Extra:             map[uint32]source.Matrix{},
		AfferentPositions: map[uint32]source.Matrix{},
		EfferentPositions: map[uint32]source.Matrix{},
		Projections:       map[string]map[uint32]source.Matrix{},
	}

	// Summary entries per id, merged over both directions.
	entries := map[uint32]map[uint32]*source.SummaryEntry{}
	entry := func(id, peer uint32) *source.SummaryEntry {
		m := entries[id]
		if m == nil {
			m = map[uint32]*source.SummaryEntry{}
			entries[id] = m
		}
		e := m[peer]
		if e == nil {
			e = &source.SummaryEntry{Peer: peer}
			m[peer] = e
		}
		return e
	}
	for p, syns := range pairs {
		entry(p.pre, p.post).Efferent += uint32(len(syns))
		entry(p.post, p.pre).Afferent += uint32(len(syns))
		c.Synapses += len(syns)
	}

	var nextIndex float32
	for id := uint32(1); int(id) <= n; id++ {
		peers := make([]uint32, 0, len(entries[id]))
		for peer := range entries[id] {
			peers = append(peers, peer)
		}
		slices.Sort(peers)

		var (
			aff, eff, extra, apos, epos []float32
			list                        []source.SummaryEntry
		)
		for _, peer := range peers {
			e := entries[id][peer]
			list = append(list, *e)
			for _, s := range pairs[pair{peer, id}] {
				aff = appendRow(aff, s.attrs, peer)
				apos = appendRow(apos, s.pos, peer)
				extra = append(extra, nextIndex)
				nextIndex++
			}
			for _, s := range pairs[pair{id, peer}] {
				eff = appendRow(eff, s.attrs, peer)
				epos = appendRow(epos, s.pos, peer)
			}
		}
		if len(list) == 0 {
			continue
		}
		c.Summary[id] = list
		c.Afferent[id] = source.Matrix{Data: aff, Width: source.AttributeWidth}
		c.Efferent[id] = source.Matrix{Data: eff, Width: source.AttributeWidth}
		c.Extra[id] = source.Matrix{Data: extra, Width: source.ExtraWidth}
		c.AfferentPositions[id] = source.Matrix{Data: apos, Width: posWidth}
		c.EfferentPositions[id] = source.Matrix{Data: epos, Width: posWidth}
	}

	names := make([]string, 0, len(spec.Projections))
	for name := range spec.Projections {
		names = append(names, name)
	}
	slices.Sort(names)
	for _, name := range names {
		sources := spec.Projections[name]
		rows := map[uint32]source.Matrix{}
		for post := uint32(1); int(post) <= n && sources > 0; post++ {
			var data []float32
			for range r.Intn(3) {
				pre := uint32(ProjectionBase + r.Intn(sources))
				data = appendRow(data, newSynapse(pre, post).attrs, pre)
			}
			if len(data) > 0 {
				rows[post] = source.Matrix{Data: data, Width: source.AttributeWidth}
			}
		}
		c.Projections[name] = rows
	}

	gids := make([]uint64, n)
	for i := range gids {
		gids[i] = uint64(i + 1)
	}
	c.Mapping, _ = mapping.New(map[string][]uint64{spec.Population: gids})
	return c
}

func appendRow(dst, row []float32, peer uint32) []float32 {
	start := len(dst)
	dst = append(dst, row...)
	dst[start] = float32(peer)
	return dst
}

// Write stores c as a dataset in store.
func (c *Circuit) Write(ctx context.Context, store blobstore.BlobStore, optFns ...dataset.Option) error {
	w := dataset.NewWriter(store, optFns...)
	steps := []func() error{
		func() error { return w.WriteSummary(ctx, c.Summary) },
		func() error { return w.WriteAttributes(ctx, true, c.Afferent) },
		func() error { return w.WriteAttributes(ctx, false, c.Efferent) },
		func() error { return w.WriteExtra(ctx, c.Extra) },
		func() error { return w.WritePositions(ctx, true, c.AfferentPositions, c.Spec.Wide) },
		func() error { return w.WritePositions(ctx, false, c.EfferentPositions, c.Spec.Wide) },
		func() error { return w.WriteMapping(ctx, c.Mapping) },
	}
	for _, step := range steps {
		if err := step(); err != nil {
			return err
		}
	}
	for name, rows := range c.Projections {
		if err := w.WriteProjection(ctx, name, rows); err != nil {
			return fmt.Errorf("projection %s: %w", name, err)
		}
	}
	return w.Commit(ctx)
}

// AfferentCount returns the number of incoming synapses of ids.
func (c *Circuit) AfferentCount(ids ...uint32) int {
	total := 0
	for _, id := range ids {
		total += c.Afferent[id].Rows()
	}
	return total
}
