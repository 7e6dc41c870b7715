package mapping

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestMapping(t *testing.T) {
	m, err := New(map[string][]uint64{
		"hippocampus": {10, 11, 12},
		"thalamus":    {100, 101},
	})
	require.NoError(t, err)

	assert.Equal(t, []string{"hippocampus", "thalamus"}, m.Populations())

	p, err := m.Population("thalamus")
	require.NoError(t, err)
	assert.Equal(t, "thalamus", p.Name())
	assert.Equal(t, 2, p.Len())

	gid, err := p.GID(1)
	require.NoError(t, err)
	assert.Equal(t, uint64(101), gid)

	_, err = p.GID(2)
	assert.ErrorIs(t, err, ErrUnknownNode)

	_, err = m.Population("cortex")
	assert.ErrorIs(t, err, ErrUnknownPopulation)

	loc, err := m.Lookup(12)
	require.NoError(t, err)
	assert.Equal(t, Location{Population: "hippocampus", Node: 2}, loc)

	_, err = m.Lookup(13)
	assert.ErrorIs(t, err, ErrUnknownGID)
}

func TestMapping_DuplicateGID(t *testing.T) {
	_, err := New(map[string][]uint64{"a": {1, 2}, "b": {2}})
	assert.Error(t, err)
}

func TestMapping_JSON(t *testing.T) {
	m, err := Parse([]byte(`{"populations":{"pop":[5,7,9]}}`))
	require.NoError(t, err)

	data, err := m.Marshal()
	require.NoError(t, err)
	assert.JSONEq(t, `{"populations":{"pop":[5,7,9]}}`, string(data))

	_, err = Parse([]byte(`{"populations":`))
	assert.Error(t, err)
}
