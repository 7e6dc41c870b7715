package synapgo

import (
	"testing"

	"github.com/hupe1980/synapgo/source"
	"github.com/stretchr/testify/require"
)

type testSources struct {
	summary   *source.MemorySummary
	afferent  *source.MemoryRows
	efferent  *source.MemoryRows
	positions *source.MemoryPositions
}

func testRow(peer, owner uint32, j int) []float32 {
	row := make([]float32, source.AttributeWidth)
	row[source.ColPeer] = float32(peer)
	row[source.ColDelay] = float32(owner)
	row[source.ColPreSection] = float32(j)
	row[source.ColConductance] = 2
	row[source.ColEfficacy] = 3
	return row
}

func testPosition(peer, owner uint32, wide bool) []float32 {
	if wide {
		return []float32{float32(peer), 1, 1, 1, 2, 2, 2, float32(peer), 0, 0, float32(owner), 0, 0}
	}
	return []float32{float32(peer), float32(peer), 0, 0, float32(owner), 0, 0}
}

// newTestSources builds consistent in-memory sources for the summary entries.
func newTestSources(t *testing.T, entries map[uint32][]source.SummaryEntry, wide bool) *testSources {
	t.Helper()

	width := source.NarrowPositionWidth
	if wide {
		width = source.WidePositionWidth
	}
	aff := map[uint32]source.Matrix{}
	eff := map[uint32]source.Matrix{}
	paff := map[uint32]source.Matrix{}
	peff := map[uint32]source.Matrix{}
	for id, list := range entries {
		var ar, er, pa, pe [][]float32
		for _, e := range list {
			for range e.Afferent {
				ar = append(ar, testRow(e.Peer, id, len(ar)))
				pa = append(pa, testPosition(e.Peer, id, wide))
			}
			for range e.Efferent {
				er = append(er, testRow(e.Peer, id, len(er)))
				pe = append(pe, testPosition(e.Peer, id, wide))
			}
		}
		var err error
		aff[id], err = source.NewMatrix(source.AttributeWidth, ar...)
		require.NoError(t, err)
		eff[id], err = source.NewMatrix(source.AttributeWidth, er...)
		require.NoError(t, err)
		paff[id], err = source.NewMatrix(width, pa...)
		require.NoError(t, err)
		peff[id], err = source.NewMatrix(width, pe...)
		require.NoError(t, err)
	}

	return &testSources{
		summary:  source.NewMemorySummary(entries),
		afferent: source.NewMemoryRows(source.AttributeWidth, aff),
		efferent: source.NewMemoryRows(source.AttributeWidth, eff),
		positions: &source.MemoryPositions{
			Afferent: source.NewMemoryRows(width, paff),
			Efferent: source.NewMemoryRows(width, peff),
			Surface:  wide,
		},
	}
}

func (ts *testSources) sources() Sources {
	return Sources{
		Summary:   ts.summary,
		Afferent:  ts.afferent,
		Efferent:  ts.efferent,
		Positions: ts.positions,
	}
}

func exampleSummary() map[uint32][]source.SummaryEntry {
	return map[uint32][]source.SummaryEntry{
		1: {{Peer: 5, Afferent: 2, Efferent: 0}},
		2: {{Peer: 5, Afferent: 1, Efferent: 1}},
	}
}

func newTestCircuit(t *testing.T, ts *testSources, optFns ...Option) *Circuit {
	t.Helper()
	c, err := NewCircuit(ts.sources(), optFns...)
	require.NoError(t, err)
	t.Cleanup(func() { _ = c.Close() })
	return c
}
