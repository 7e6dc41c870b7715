package codec

import (
	"encoding/binary"
	"fmt"
	"math"
)

// EncodeFloat32s appends the little-endian encoding of vals to dst.
func EncodeFloat32s(dst []byte, vals []float32) []byte {
	off := len(dst)
	dst = append(dst, make([]byte, 4*len(vals))...)
	for i, v := range vals {
		binary.LittleEndian.PutUint32(dst[off+4*i:], math.Float32bits(v))
	}
	return dst
}

// DecodeFloat32s decodes little-endian float32 values.
func DecodeFloat32s(b []byte) ([]float32, error) {
	if len(b)%4 != 0 {
		return nil, fmt.Errorf("%w: %d bytes is not a multiple of 4", ErrCorruptBlock, len(b))
	}
	out := make([]float32, len(b)/4)
	for i := range out {
		out[i] = math.Float32frombits(binary.LittleEndian.Uint32(b[4*i:]))
	}
	return out, nil
}

// RowsHeaderSize is the size of the header written by EncodeRows.
// Format: [Width uint16][Compression uint8][Reserved uint8][Block...]
const RowsHeaderSize = 4

// EncodeRows encodes a row group of the given width as a compressed block.
func EncodeRows(data []float32, width int, c Compression) ([]byte, error) {
	if width < 0 || width > math.MaxUint16 {
		return nil, fmt.Errorf("row width %d out of range", width)
	}
	block, err := CompressBlock(EncodeFloat32s(nil, data), c)
	if err != nil {
		return nil, err
	}
	out := make([]byte, RowsHeaderSize, RowsHeaderSize+len(block))
	binary.LittleEndian.PutUint16(out[0:], uint16(width))
	out[2] = byte(c)
	return append(out, block...), nil
}

// DecodeRows decodes a row group written by EncodeRows.
func DecodeRows(b []byte) (data []float32, width int, err error) {
	if len(b) < RowsHeaderSize {
		return nil, 0, fmt.Errorf("%w: rows header truncated", ErrCorruptBlock)
	}
	width = int(binary.LittleEndian.Uint16(b[0:]))
	raw, err := DecompressBlock(b[RowsHeaderSize:], Compression(b[2]))
	if err != nil {
		return nil, 0, err
	}
	data, err = DecodeFloat32s(raw)
	if err != nil {
		return nil, 0, err
	}
	if width > 0 && len(data)%width != 0 {
		return nil, 0, fmt.Errorf("%w: %d values for width %d", ErrCorruptBlock, len(data), width)
	}
	return data, width, nil
}

// EncodeUint32s appends the little-endian encoding of vals to dst.
func EncodeUint32s(dst []byte, vals []uint32) []byte {
	off := len(dst)
	dst = append(dst, make([]byte, 4*len(vals))...)
	for i, v := range vals {
		binary.LittleEndian.PutUint32(dst[off+4*i:], v)
	}
	return dst
}

// DecodeUint32s decodes little-endian uint32 values.
func DecodeUint32s(b []byte) ([]uint32, error) {
	if len(b)%4 != 0 {
		return nil, fmt.Errorf("%w: %d bytes is not a multiple of 4", ErrCorruptBlock, len(b))
	}
	out := make([]uint32, len(b)/4)
	for i := range out {
		out[i] = binary.LittleEndian.Uint32(b[4*i:])
	}
	return out, nil
}
