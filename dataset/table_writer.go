package dataset

import (
	"context"
	"encoding/binary"
	"fmt"
	"math"
	"slices"

	"github.com/hupe1980/synapgo/blobstore"
	"github.com/hupe1980/synapgo/internal/codec"
	"github.com/hupe1980/synapgo/internal/conv"
)

// TableWriter streams a table to a blob. Ids must be added in ascending
// order; Close writes the index and footer and commits the blob.
type TableWriter struct {
	w      blobstore.WritableBlob
	footer footer
	index  []indexEntry
	offset uint64
	lastID int64
	err    error
}

// NewTableWriter creates the blob name and returns a writer for rows of
// the given width and element type.
func NewTableWriter(ctx context.Context, store blobstore.BlobStore, name string, width int, elem ElemType, c codec.Compression) (*TableWriter, error) {
	if width <= 0 || width > math.MaxUint16 {
		return nil, fmt.Errorf("table %s: width %d out of range", name, width)
	}
	w, err := store.Create(ctx, name)
	if err != nil {
		return nil, fmt.Errorf("create table %s: %w", name, err)
	}
	return &TableWriter{
		w: w,
		footer: footer{
			Version:     tableVersion,
			Width:       uint16(width),
			Elem:        elem,
			Compression: c,
		},
		lastID: -1,
	}, nil
}

// AddFloat32 appends the rows of id.
func (tw *TableWriter) AddFloat32(id uint32, data []float32) error {
	if tw.footer.Elem != ElemFloat32 {
		return fmt.Errorf("table stores %s rows", tw.footer.Elem)
	}
	return tw.add(id, len(data), codec.EncodeFloat32s(nil, data))
}

// AddUint32 appends the rows of id.
func (tw *TableWriter) AddUint32(id uint32, data []uint32) error {
	if tw.footer.Elem != ElemUint32 {
		return fmt.Errorf("table stores %s rows", tw.footer.Elem)
	}
	return tw.add(id, len(data), codec.EncodeUint32s(nil, data))
}

func (tw *TableWriter) add(id uint32, values int, raw []byte) error {
	if tw.err != nil {
		return tw.err
	}
	if int64(id) <= tw.lastID {
		return fmt.Errorf("id %d added after %d", id, tw.lastID)
	}
	width := int(tw.footer.Width)
	if values%width != 0 {
		return fmt.Errorf("id %d: %d values is not a multiple of width %d", id, values, width)
	}
	if values == 0 {
		return nil
	}

	rows, err := conv.IntToUint32(values / width)
	if err != nil {
		return fmt.Errorf("id %d: %w", id, err)
	}
	block, err := codec.CompressBlock(raw, tw.footer.Compression)
	if err != nil {
		tw.err = err
		return err
	}
	length, err := conv.IntToUint32(len(block))
	if err != nil {
		return fmt.Errorf("id %d: block too large: %w", id, err)
	}
	if _, err := tw.w.Write(block); err != nil {
		tw.err = err
		return err
	}

	tw.index = append(tw.index, indexEntry{ID: id, Offset: tw.offset, Length: length, Rows: rows})
	tw.offset += uint64(length)
	tw.footer.TotalRows += uint64(rows)
	tw.lastID = int64(id)
	return nil
}

// Close writes the index and footer. On earlier failures the blob is
// still closed and the first error is returned.
func (tw *TableWriter) Close() error {
	if tw.err != nil {
		_ = tw.w.Close()
		return tw.err
	}

	ib := make([]byte, len(tw.index)*indexEntrySize)
	for i, e := range tw.index {
		b := ib[i*indexEntrySize:]
		binary.LittleEndian.PutUint32(b[0:], e.ID)
		binary.LittleEndian.PutUint64(b[4:], e.Offset)
		binary.LittleEndian.PutUint32(b[12:], e.Length)
		binary.LittleEndian.PutUint32(b[16:], e.Rows)
	}
	tw.footer.Entries = uint32(len(tw.index))
	tw.footer.IndexOffset = tw.offset

	if _, err := tw.w.Write(ib); err != nil {
		_ = tw.w.Close()
		return err
	}
	if _, err := tw.w.Write(tw.footer.encode()); err != nil {
		_ = tw.w.Close()
		return err
	}
	return tw.w.Close()
}

// sortedIDs returns the keys of m in ascending order.
func sortedIDs[V any](m map[uint32]V) []uint32 {
	ids := make([]uint32, 0, len(m))
	for id := range m {
		ids = append(ids, id)
	}
	slices.Sort(ids)
	return ids
}
