package synapses

import (
	"context"
	"slices"
	"testing"

	"github.com/RoaringBitmap/roaring/v2"
	"github.com/hupe1980/synapgo/source"
	"github.com/stretchr/testify/require"
)

type fixture struct {
	summary   *source.MemorySummary
	afferent  *source.MemoryRows
	efferent  *source.MemoryRows
	extra     *source.MemoryRows
	positions *source.MemoryPositions
}

func attributeRow(peer, owner uint32, j int) []float32 {
	row := make([]float32, source.AttributeWidth)
	row[source.ColPeer] = float32(peer)
	row[source.ColDelay] = float32(owner) + 0.5
	row[source.ColPostSection] = float32(j + 1)
	row[source.ColPostSegment] = float32(j + 2)
	row[source.ColPostDistance] = 0.25
	row[source.ColPreSection] = float32(j + 3)
	row[source.ColPreSegment] = float32(j + 4)
	row[source.ColPreDistance] = 0.75
	row[source.ColConductance] = 1.5
	row[source.ColUtilization] = 0.1
	row[source.ColDepression] = 600
	row[source.ColFacilitation] = 20
	row[source.ColDecay] = 1.7
	row[source.ColEfficacy] = float32(j)
	return row
}

func positionRow(peer, owner uint32, j int, wide bool) []float32 {
	center := []float32{float32(peer), float32(owner), float32(j), float32(owner), float32(peer), float32(j)}
	if !wide {
		return append([]float32{float32(peer)}, center...)
	}
	surface := []float32{-1, -2, -3, -4, -5, -6}
	return append(append([]float32{float32(peer)}, surface...), center...)
}

// newFixture builds sources consistent with the summary entries. Ids in
// wideIDs get wide position rows.
func newFixture(t *testing.T, entries map[uint32][]source.SummaryEntry, wideIDs ...uint32) *fixture {
	t.Helper()

	aff := make(map[uint32]source.Matrix)
	eff := make(map[uint32]source.Matrix)
	extra := make(map[uint32]source.Matrix)
	posAff := make(map[uint32]source.Matrix)
	posEff := make(map[uint32]source.Matrix)

	for id, list := range entries {
		wide := slices.Contains(wideIDs, id)
		width := source.NarrowPositionWidth
		if wide {
			width = source.WidePositionWidth
		}

		var ar, er, xr, par, per [][]float32
		for _, e := range list {
			for range e.Afferent {
				j := len(ar)
				ar = append(ar, attributeRow(e.Peer, id, j))
				xr = append(xr, []float32{float32(1000*id) + float32(j)})
				par = append(par, positionRow(e.Peer, id, j, wide))
			}
			for range e.Efferent {
				j := len(er)
				er = append(er, attributeRow(e.Peer, id, j))
				per = append(per, positionRow(e.Peer, id, j, wide))
			}
		}

		var err error
		aff[id], err = source.NewMatrix(source.AttributeWidth, ar...)
		require.NoError(t, err)
		eff[id], err = source.NewMatrix(source.AttributeWidth, er...)
		require.NoError(t, err)
		extra[id], err = source.NewMatrix(source.ExtraWidth, xr...)
		require.NoError(t, err)
		posAff[id], err = source.NewMatrix(width, par...)
		require.NoError(t, err)
		posEff[id], err = source.NewMatrix(width, per...)
		require.NoError(t, err)
	}

	return &fixture{
		summary:  source.NewMemorySummary(entries),
		afferent: source.NewMemoryRows(source.AttributeWidth, aff),
		efferent: source.NewMemoryRows(source.AttributeWidth, eff),
		extra:    source.NewMemoryRows(source.ExtraWidth, extra),
		positions: &source.MemoryPositions{
			Afferent: source.NewMemoryRows(source.NarrowPositionWidth, posAff),
			Efferent: source.NewMemoryRows(source.NarrowPositionWidth, posEff),
			Surface:  len(wideIDs) > 0,
		},
	}
}

func (f *fixture) config(afferent bool, ids ...uint32) Config {
	attrs := f.efferent
	if afferent {
		attrs = f.afferent
	}
	return Config{
		IDs:        roaring.BitmapOf(ids...),
		Afferent:   afferent,
		Summary:    f.summary,
		Attributes: attrs,
		Positions:  f.positions,
	}
}

func exampleEntries() map[uint32][]source.SummaryEntry {
	return map[uint32][]source.SummaryEntry{
		1: {{Peer: 5, Afferent: 2, Efferent: 0}},
		2: {{Peer: 5, Afferent: 1, Efferent: 1}},
	}
}

func mustNew(t *testing.T, cfg Config) *Set {
	t.Helper()
	s, err := New(context.Background(), cfg)
	require.NoError(t, err)
	t.Cleanup(s.Release)
	return s
}
