package codec

import (
	"bytes"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestCompressBlock(t *testing.T) {
	compressible := bytes.Repeat([]byte("synapse"), 1000)
	random := []byte{0x9a, 0x13, 0x77, 0x01, 0xfe, 0x42, 0x88, 0x3c}

	for _, c := range []Compression{CompressionNone, CompressionLZ4, CompressionZSTD} {
		t.Run(c.String(), func(t *testing.T) {
			for _, data := range [][]byte{compressible, random, {}} {
				block, err := CompressBlock(data, c)
				require.NoError(t, err)

				got, err := DecompressBlock(block, c)
				require.NoError(t, err)
				assert.Equal(t, len(data), len(got))
				assert.True(t, bytes.Equal(data, got))
			}
		})
	}
}

func TestCompressBlock_Shrinks(t *testing.T) {
	data := bytes.Repeat([]byte{1, 2, 3, 4}, 4096)

	for _, c := range []Compression{CompressionLZ4, CompressionZSTD} {
		block, err := CompressBlock(data, c)
		require.NoError(t, err)
		assert.Less(t, len(block), len(data)/2, c.String())
	}
}

func TestDecompressBlock_Corrupt(t *testing.T) {
	_, err := DecompressBlock([]byte{1, 2}, CompressionLZ4)
	assert.ErrorIs(t, err, ErrCorruptBlock)

	block, err := CompressBlock(bytes.Repeat([]byte("x"), 512), CompressionZSTD)
	require.NoError(t, err)
	_, err = DecompressBlock(block[:len(block)-3], CompressionZSTD)
	assert.ErrorIs(t, err, ErrCorruptBlock)

	_, err = DecompressBlock(block, Compression(9))
	assert.ErrorIs(t, err, ErrCorruptBlock)
}

func TestRows(t *testing.T) {
	data := []float32{1, 2.5, -3, 4, 5, 6, 7, 8, 9, 10, 11, 12, 13, 14}

	for _, c := range []Compression{CompressionNone, CompressionLZ4, CompressionZSTD} {
		b, err := EncodeRows(data, 7, c)
		require.NoError(t, err)

		got, width, err := DecodeRows(b)
		require.NoError(t, err)
		assert.Equal(t, 7, width)
		assert.Equal(t, data, got)
	}

	_, _, err := DecodeRows([]byte{1})
	assert.ErrorIs(t, err, ErrCorruptBlock)
}

func TestRows_Empty(t *testing.T) {
	b, err := EncodeRows(nil, 13, CompressionLZ4)
	require.NoError(t, err)

	got, width, err := DecodeRows(b)
	require.NoError(t, err)
	assert.Equal(t, 13, width)
	assert.Empty(t, got)
}

func TestParseCompression(t *testing.T) {
	c, err := ParseCompression("ZSTD")
	require.NoError(t, err)
	assert.Equal(t, CompressionZSTD, c)

	_, err = ParseCompression("brotli")
	assert.Error(t, err)
}

func TestGoJSON(t *testing.T) {
	type manifest struct {
		Name  string `json:"name"`
		Width int    `json:"width"`
	}
	in := manifest{Name: "afferent", Width: 19}

	b := MustMarshal(nil, in)
	var out manifest
	require.NoError(t, Default.Unmarshal(b, &out))
	assert.Equal(t, in, out)

	c, ok := ByName("go-json")
	require.True(t, ok)
	assert.Equal(t, "go-json", c.Name())
	_, ok = ByName("msgpack")
	assert.False(t, ok)
}

func TestUint32s(t *testing.T) {
	in := []uint32{0, 1, 1 << 31, 4294967295}
	got, err := DecodeUint32s(EncodeUint32s([]byte{9}, in)[1:])
	require.NoError(t, err)
	assert.Equal(t, in, got)

	_, err = DecodeUint32s([]byte{1, 2, 3})
	assert.ErrorIs(t, err, ErrCorruptBlock)
}
