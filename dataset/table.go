package dataset

import (
	"context"
	"encoding/binary"
	"errors"
	"fmt"
	"io"
	"sort"
	"sync/atomic"

	"github.com/RoaringBitmap/roaring/v2"
	"github.com/hupe1980/synapgo/blobstore"
	"github.com/hupe1980/synapgo/internal/codec"
	"github.com/hupe1980/synapgo/internal/conv"
	"github.com/hupe1980/synapgo/resource"
	"github.com/hupe1980/synapgo/source"
)

// Table layout:
//
//	[block 0][block 1]...[index][footer]
//
// Each block holds the rows of one id, compressed with codec.CompressBlock.
// The index lists (id, offset, length, rows) sorted by id. The footer is
// fixed size so tables can be written in one streaming pass.
const (
	tableMagic     = "SYNT"
	tableVersion   = 1
	footerSize     = 32
	indexEntrySize = 20
)

// ElemType is the element type of a table's rows.
type ElemType uint8

const (
	ElemFloat32 ElemType = 1
	ElemUint32  ElemType = 2
)

func (e ElemType) String() string {
	switch e {
	case ElemFloat32:
		return "float32"
	case ElemUint32:
		return "uint32"
	default:
		return fmt.Sprintf("elem(%d)", uint8(e))
	}
}

var (
	// ErrCorrupt is returned for tables or manifests that cannot be decoded.
	ErrCorrupt = errors.New("dataset: corrupt table")
	// ErrClosed is returned by reads on a closed table.
	ErrClosed = errors.New("dataset: table closed")
)

type footer struct {
	Version     uint16
	Width       uint16
	Elem        ElemType
	Compression codec.Compression
	Entries     uint32
	IndexOffset uint64
	TotalRows   uint64
}

func (f footer) encode() []byte {
	b := make([]byte, footerSize)
	copy(b[0:4], tableMagic)
	binary.LittleEndian.PutUint16(b[4:], f.Version)
	binary.LittleEndian.PutUint16(b[6:], f.Width)
	b[8] = byte(f.Elem)
	b[9] = byte(f.Compression)
	binary.LittleEndian.PutUint32(b[12:], f.Entries)
	binary.LittleEndian.PutUint64(b[16:], f.IndexOffset)
	binary.LittleEndian.PutUint64(b[24:], f.TotalRows)
	return b
}

func decodeFooter(b []byte) (footer, error) {
	if len(b) != footerSize || string(b[0:4]) != tableMagic {
		return footer{}, fmt.Errorf("%w: bad magic", ErrCorrupt)
	}
	f := footer{
		Version:     binary.LittleEndian.Uint16(b[4:]),
		Width:       binary.LittleEndian.Uint16(b[6:]),
		Elem:        ElemType(b[8]),
		Compression: codec.Compression(b[9]),
		Entries:     binary.LittleEndian.Uint32(b[12:]),
		IndexOffset: binary.LittleEndian.Uint64(b[16:]),
		TotalRows:   binary.LittleEndian.Uint64(b[24:]),
	}
	if f.Version != tableVersion {
		return footer{}, fmt.Errorf("%w: unsupported version %d", ErrCorrupt, f.Version)
	}
	if f.Width == 0 {
		return footer{}, fmt.Errorf("%w: zero width", ErrCorrupt)
	}
	return f, nil
}

type indexEntry struct {
	ID     uint32
	Offset uint64
	Length uint32
	Rows   uint32
}

// Table is a read-only row table. It is safe for concurrent use.
type Table struct {
	name   string
	blob   blobstore.Blob
	footer footer
	index  []indexEntry
	rc     *resource.Controller
	closed atomic.Bool

	reads     atomic.Int64
	readBytes atomic.Int64
}

// OpenTable opens the table blob name and loads its index.
func OpenTable(ctx context.Context, store blobstore.BlobStore, name string, rc *resource.Controller) (*Table, error) {
	blob, err := store.Open(ctx, name)
	if err != nil {
		return nil, fmt.Errorf("open table %s: %w", name, err)
	}
	t, err := newTable(ctx, name, blob, rc)
	if err != nil {
		_ = blob.Close()
		return nil, err
	}
	return t, nil
}

func newTable(ctx context.Context, name string, blob blobstore.Blob, rc *resource.Controller) (*Table, error) {
	size := blob.Size()
	if size < footerSize {
		return nil, fmt.Errorf("%w: %s has %d bytes", ErrCorrupt, name, size)
	}

	r := resource.NewRateLimitedReader(ctx, blobstore.ReaderAt(ctx, blob), rc)

	fb := make([]byte, footerSize)
	if _, err := io.ReadFull(io.NewSectionReader(r, size-footerSize, footerSize), fb); err != nil {
		return nil, fmt.Errorf("read footer of %s: %w", name, err)
	}
	f, err := decodeFooter(fb)
	if err != nil {
		return nil, fmt.Errorf("%s: %w", name, err)
	}

	indexLen := int64(f.Entries) * indexEntrySize
	if f.IndexOffset > uint64(size-footerSize) || int64(f.IndexOffset)+indexLen != size-footerSize {
		return nil, fmt.Errorf("%w: %s index out of bounds", ErrCorrupt, name)
	}

	ib := make([]byte, indexLen)
	if _, err := io.ReadFull(io.NewSectionReader(r, int64(f.IndexOffset), indexLen), ib); err != nil {
		return nil, fmt.Errorf("read index of %s: %w", name, err)
	}

	index := make([]indexEntry, f.Entries)
	for i := range index {
		e := ib[i*indexEntrySize:]
		index[i] = indexEntry{
			ID:     binary.LittleEndian.Uint32(e[0:]),
			Offset: binary.LittleEndian.Uint64(e[4:]),
			Length: binary.LittleEndian.Uint32(e[12:]),
			Rows:   binary.LittleEndian.Uint32(e[16:]),
		}
		if i > 0 && index[i].ID <= index[i-1].ID {
			return nil, fmt.Errorf("%w: %s index not sorted at entry %d", ErrCorrupt, name, i)
		}
		if index[i].Offset+uint64(index[i].Length) > f.IndexOffset {
			return nil, fmt.Errorf("%w: %s block of id %d out of bounds", ErrCorrupt, name, index[i].ID)
		}
	}

	return &Table{name: name, blob: blob, footer: f, index: index, rc: rc}, nil
}

// Name returns the blob name of the table.
func (t *Table) Name() string { return t.name }

// Width returns the number of fields per row.
func (t *Table) Width() int { return int(t.footer.Width) }

// Elem returns the element type of the rows.
func (t *Table) Elem() ElemType { return t.footer.Elem }

// Compression returns the block compression.
func (t *Table) Compression() codec.Compression { return t.footer.Compression }

// Len returns the number of ids with rows.
func (t *Table) Len() int { return len(t.index) }

// TotalRows returns the number of rows across all ids.
func (t *Table) TotalRows() uint64 { return t.footer.TotalRows }

// IDs returns the ids with rows.
func (t *Table) IDs() *roaring.Bitmap {
	bm := roaring.New()
	for _, e := range t.index {
		bm.Add(e.ID)
	}
	return bm
}

func (t *Table) lookup(id uint32) (indexEntry, bool) {
	i := sort.Search(len(t.index), func(i int) bool { return t.index[i].ID >= id })
	if i < len(t.index) && t.index[i].ID == id {
		return t.index[i], true
	}
	return indexEntry{}, false
}

// RowCount returns the number of rows of id without reading its block.
func (t *Table) RowCount(id uint32) int {
	e, _ := t.lookup(id)
	return int(e.Rows)
}

// SizeForIDs sums the row counts of ids from the index.
func (t *Table) SizeForIDs(_ context.Context, ids *roaring.Bitmap) (int, error) {
	if t.closed.Load() {
		return 0, ErrClosed
	}
	total := 0
	it := ids.Iterator()
	for it.HasNext() {
		total += t.RowCount(it.Next())
	}
	return total, nil
}

// readRaw returns the decompressed block of id, or nil when id has no rows.
func (t *Table) readRaw(ctx context.Context, id uint32) ([]byte, int, error) {
	if t.closed.Load() {
		return nil, 0, ErrClosed
	}
	e, ok := t.lookup(id)
	if !ok {
		return nil, 0, nil
	}
	off, err := conv.Uint64ToInt(e.Offset)
	if err != nil {
		return nil, 0, fmt.Errorf("%w: %s id %d: %w", ErrCorrupt, t.name, id, err)
	}
	if err := t.rc.AcquireIO(ctx, int(e.Length)); err != nil {
		return nil, 0, err
	}

	block, err := blobstore.ReadFull(ctx, t.blob, int64(off), int(e.Length))
	if err != nil {
		return nil, 0, fmt.Errorf("read %s id %d: %w", t.name, id, err)
	}
	t.reads.Add(1)
	t.readBytes.Add(int64(e.Length))

	raw, err := codec.DecompressBlock(block, t.footer.Compression)
	if err != nil {
		return nil, 0, fmt.Errorf("%w: %s id %d: %w", ErrCorrupt, t.name, id, err)
	}
	if want := int(e.Rows) * t.Width() * 4; len(raw) != want {
		return nil, 0, fmt.Errorf("%w: %s id %d has %d bytes, expected %d", ErrCorrupt, t.name, id, len(raw), want)
	}
	return raw, int(e.Rows), nil
}

// Read returns the float32 rows of id. Ids without rows yield an empty
// matrix of the table width.
func (t *Table) Read(ctx context.Context, id uint32) (source.Matrix, error) {
	if t.footer.Elem != ElemFloat32 {
		return source.Matrix{}, fmt.Errorf("%s stores %s rows", t.name, t.footer.Elem)
	}
	raw, _, err := t.readRaw(ctx, id)
	if err != nil {
		return source.Matrix{}, err
	}
	data, err := codec.DecodeFloat32s(raw)
	if err != nil {
		return source.Matrix{}, err
	}
	return source.Matrix{Data: data, Width: t.Width()}, nil
}

// ReadUint32 returns the uint32 rows of id, flattened.
func (t *Table) ReadUint32(ctx context.Context, id uint32) ([]uint32, error) {
	if t.footer.Elem != ElemUint32 {
		return nil, fmt.Errorf("%s stores %s rows", t.name, t.footer.Elem)
	}
	raw, _, err := t.readRaw(ctx, id)
	if err != nil {
		return nil, err
	}
	return codec.DecodeUint32s(raw)
}

// Reads returns the number of blocks read and their compressed size.
func (t *Table) Reads() (blocks, bytes int64) {
	return t.reads.Load(), t.readBytes.Load()
}

// Close releases the blob. It is idempotent.
func (t *Table) Close() error {
	if t.closed.Swap(true) {
		return nil
	}
	return t.blob.Close()
}
