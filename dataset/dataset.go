package dataset

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"sync"

	"github.com/hupe1980/synapgo/blobstore"
	"github.com/hupe1980/synapgo/mapping"
	"github.com/hupe1980/synapgo/resource"
	"github.com/hupe1980/synapgo/source"
)

// ErrNoTable is returned when the manifest does not name a requested table.
var ErrNoTable = errors.New("dataset: table not present")

// Dataset is an opened synapse dataset. Its accessors return the
// collaborators a circuit loads from; all of them share the dataset's
// tables and are closed by Close.
type Dataset struct {
	store    blobstore.BlobStore
	manifest *Manifest
	rc       *resource.Controller
	logger   *slog.Logger

	summary     *Table
	afferent    *Table
	efferent    *Table
	extra       *Table
	projections map[string]*Table

	mu        sync.Mutex
	positions [2]*Table // efferent, afferent
	closed    bool
}

// Open reads the manifest of store and opens every table except the
// position tables, which are opened on first use.
func Open(ctx context.Context, store blobstore.BlobStore, optFns ...Option) (*Dataset, error) {
	o := applyOptions(optFns)

	m, err := ReadManifest(ctx, store)
	if err != nil {
		return nil, err
	}

	d := &Dataset{
		store:       store,
		manifest:    m,
		rc:          o.rc,
		logger:      o.logger,
		projections: make(map[string]*Table, len(m.Projections)),
	}

	open := func(name string, width int, elem ElemType) (*Table, error) {
		if name == "" {
			return nil, nil
		}
		t, err := OpenTable(ctx, store, name, o.rc)
		if err != nil {
			return nil, err
		}
		if (width > 0 && t.Width() != width) || t.Elem() != elem {
			_ = t.Close()
			return nil, fmt.Errorf("%w: %s has %d %s fields, expected %d %s", ErrCorrupt, name, t.Width(), t.Elem(), width, elem)
		}
		return t, nil
	}

	if d.summary, err = open(m.Summary, summaryWidth, ElemUint32); err != nil {
		return nil, d.closeAfter(err)
	}
	if d.afferent, err = open(m.Afferent, source.AttributeWidth, ElemFloat32); err != nil {
		return nil, d.closeAfter(err)
	}
	if d.efferent, err = open(m.Efferent, source.AttributeWidth, ElemFloat32); err != nil {
		return nil, d.closeAfter(err)
	}
	if d.extra, err = open(m.Extra, source.ExtraWidth, ElemFloat32); err != nil {
		return nil, d.closeAfter(err)
	}
	for name, blob := range m.Projections {
		t, err := open(blob, source.AttributeWidth, ElemFloat32)
		if err != nil {
			return nil, d.closeAfter(err)
		}
		d.projections[name] = t
	}

	d.logger.Debug("dataset opened",
		"summary_ids", d.summary.Len(),
		"afferent_rows", d.afferent.TotalRows(),
		"projections", len(d.projections),
	)
	return d, nil
}

func (d *Dataset) closeAfter(err error) error {
	return errors.Join(err, d.Close())
}

// Manifest returns the dataset manifest.
func (d *Dataset) Manifest() Manifest { return *d.manifest }

// Summary returns the summary index.
func (d *Dataset) Summary() source.SummaryIndex { return summaryIndex{d.summary} }

// Afferent returns the afferent attribute table.
func (d *Dataset) Afferent() *Table { return d.afferent }

// Efferent returns the efferent attribute table, or nil.
func (d *Dataset) Efferent() *Table { return d.efferent }

// Extra returns the explicit synapse index table, or nil.
func (d *Dataset) Extra() *Table { return d.extra }

// Projection returns the named projection table.
func (d *Dataset) Projection(name string) (*Table, bool) {
	t, ok := d.projections[name]
	return t, ok
}

// Projections returns the projection tables as sources.
func (d *Dataset) Projections() map[string]source.ProjectionSource {
	out := make(map[string]source.ProjectionSource, len(d.projections))
	for name, t := range d.projections {
		out[name] = t
	}
	return out
}

// Positions returns the position opener, or nil when the dataset has no
// position tables.
func (d *Dataset) Positions() source.PositionOpener {
	if d.manifest.AfferentPositions == "" && d.manifest.EfferentPositions == "" {
		return nil
	}
	return positionOpener{d}
}

// OpenPositions opens the position table of a direction. The table is
// opened once and owned by the dataset.
func (d *Dataset) OpenPositions(ctx context.Context, afferent bool) (*Table, error) {
	name := d.manifest.EfferentPositions
	dir := 0
	if afferent {
		name = d.manifest.AfferentPositions
		dir = 1
	}
	if name == "" {
		return nil, ErrNoTable
	}

	d.mu.Lock()
	defer d.mu.Unlock()

	if d.closed {
		return nil, ErrClosed
	}
	if t := d.positions[dir]; t != nil {
		return t, nil
	}

	t, err := OpenTable(ctx, d.store, name, d.rc)
	if err != nil {
		return nil, err
	}
	if w := t.Width(); w != source.NarrowPositionWidth && w != source.WidePositionWidth {
		d.logger.Warn("unexpected position table width", "table", name, "width", w)
	}
	d.positions[dir] = t
	d.logger.Debug("position table opened", "table", name, "ids", t.Len())
	return t, nil
}

// HasMapping reports whether the manifest names a population mapping.
func (d *Dataset) HasMapping() bool { return d.manifest.Mapping != "" }

// Mapping loads the population mapping named by the manifest.
func (d *Dataset) Mapping(ctx context.Context) (*mapping.Mapping, error) {
	if d.manifest.Mapping == "" {
		return nil, ErrNoTable
	}
	data, err := blobstore.ReadAll(ctx, d.store, d.manifest.Mapping)
	if err != nil {
		return nil, fmt.Errorf("read mapping: %w", err)
	}
	return mapping.Parse(data)
}

// Close closes every opened table. It is idempotent.
func (d *Dataset) Close() error {
	d.mu.Lock()
	if d.closed {
		d.mu.Unlock()
		return nil
	}
	d.closed = true
	positions := d.positions
	d.mu.Unlock()

	var errs []error
	for _, t := range []*Table{d.summary, d.afferent, d.efferent, d.extra, positions[0], positions[1]} {
		if t != nil {
			errs = append(errs, t.Close())
		}
	}
	for _, t := range d.projections {
		errs = append(errs, t.Close())
	}
	return errors.Join(errs...)
}

type positionOpener struct {
	d *Dataset
}

func (p positionOpener) OpenPositions(ctx context.Context, afferent bool) (source.PositionSource, error) {
	t, err := p.d.OpenPositions(ctx, afferent)
	if err != nil {
		return nil, err
	}
	return t, nil
}

func (p positionOpener) SurfacePositions() bool {
	return p.d.manifest.SurfacePositions
}

// summaryWidth is the number of fields per summary row: peer, efferent, afferent.
const summaryWidth = 3

type summaryIndex struct {
	t *Table
}

func (s summaryIndex) Read(ctx context.Context, id uint32) ([]source.SummaryEntry, error) {
	vals, err := s.t.ReadUint32(ctx, id)
	if err != nil {
		return nil, err
	}
	entries := make([]source.SummaryEntry, len(vals)/summaryWidth)
	for i := range entries {
		r := vals[i*summaryWidth:]
		entries[i] = source.SummaryEntry{Peer: r[0], Efferent: r[1], Afferent: r[2]}
	}
	return entries, nil
}
