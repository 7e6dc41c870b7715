package dataset

import (
	"context"
	"fmt"
	"path"

	"github.com/hupe1980/synapgo/blobstore"
	"github.com/hupe1980/synapgo/mapping"
	"github.com/hupe1980/synapgo/source"
)

// Writer builds a dataset from in-memory row groups. Tables are written
// as they are added; Commit writes the manifest that makes them visible.
type Writer struct {
	store    blobstore.BlobStore
	opts     options
	manifest Manifest
}

// NewWriter returns a writer for a new dataset in store.
func NewWriter(store blobstore.BlobStore, optFns ...Option) *Writer {
	o := applyOptions(optFns)
	return &Writer{
		store: store,
		opts:  o,
		manifest: Manifest{
			Version:     manifestVersion,
			Compression: o.compression.String(),
		},
	}
}

func tableName(name string) string {
	return path.Join("tables", name+".synt")
}

// WriteSummary writes the summary index.
func (w *Writer) WriteSummary(ctx context.Context, entries map[uint32][]source.SummaryEntry) error {
	name := tableName("summary")
	tw, err := NewTableWriter(ctx, w.store, name, summaryWidth, ElemUint32, w.opts.compression)
	if err != nil {
		return err
	}
	for _, id := range sortedIDs(entries) {
		vals := make([]uint32, 0, summaryWidth*len(entries[id]))
		for _, e := range entries[id] {
			vals = append(vals, e.Peer, e.Efferent, e.Afferent)
		}
		if err := tw.AddUint32(id, vals); err != nil {
			_ = tw.Close()
			return err
		}
	}
	if err := tw.Close(); err != nil {
		return err
	}
	w.manifest.Summary = name
	return nil
}

// WriteAttributes writes the attribute table of a direction.
func (w *Writer) WriteAttributes(ctx context.Context, afferent bool, rows map[uint32]source.Matrix) error {
	dir := "efferent"
	if afferent {
		dir = "afferent"
	}
	name, err := w.writeFloat32(ctx, dir, source.AttributeWidth, rows)
	if err != nil {
		return err
	}
	if afferent {
		w.manifest.Afferent = name
	} else {
		w.manifest.Efferent = name
	}
	return nil
}

// WriteExtra writes the explicit synapse indices of afferent rows.
func (w *Writer) WriteExtra(ctx context.Context, rows map[uint32]source.Matrix) error {
	name, err := w.writeFloat32(ctx, "extra", source.ExtraWidth, rows)
	if err != nil {
		return err
	}
	w.manifest.Extra = name
	return nil
}

// WritePositions writes the position table of a direction. Rows must be
// all narrow or all wide; both directions must agree.
func (w *Writer) WritePositions(ctx context.Context, afferent bool, rows map[uint32]source.Matrix, wide bool) error {
	width := source.NarrowPositionWidth
	if wide {
		width = source.WidePositionWidth
	}
	if (w.manifest.AfferentPositions != "" || w.manifest.EfferentPositions != "") && w.manifest.SurfacePositions != wide {
		return fmt.Errorf("position tables disagree on surface columns")
	}

	dir := "efferent_positions"
	if afferent {
		dir = "afferent_positions"
	}
	name, err := w.writeFloat32(ctx, dir, width, rows)
	if err != nil {
		return err
	}
	if afferent {
		w.manifest.AfferentPositions = name
	} else {
		w.manifest.EfferentPositions = name
	}
	w.manifest.SurfacePositions = wide
	return nil
}

// WriteProjection writes a named external afferent projection.
func (w *Writer) WriteProjection(ctx context.Context, projection string, rows map[uint32]source.Matrix) error {
	if projection == "" {
		return fmt.Errorf("empty projection name")
	}
	name, err := w.writeFloat32(ctx, path.Join("projections", projection), source.AttributeWidth, rows)
	if err != nil {
		return err
	}
	if w.manifest.Projections == nil {
		w.manifest.Projections = make(map[string]string)
	}
	w.manifest.Projections[projection] = name
	return nil
}

// WriteMapping stores the population mapping.
func (w *Writer) WriteMapping(ctx context.Context, m *mapping.Mapping) error {
	data, err := m.Marshal()
	if err != nil {
		return err
	}
	const name = "mapping.json"
	if err := w.store.Put(ctx, name, data); err != nil {
		return err
	}
	w.manifest.Mapping = name
	return nil
}

func (w *Writer) writeFloat32(ctx context.Context, table string, width int, rows map[uint32]source.Matrix) (string, error) {
	name := tableName(table)
	tw, err := NewTableWriter(ctx, w.store, name, width, ElemFloat32, w.opts.compression)
	if err != nil {
		return "", err
	}
	for _, id := range sortedIDs(rows) {
		m := rows[id]
		if m.Rows() > 0 && m.Width != width {
			_ = tw.Close()
			return "", fmt.Errorf("%s: id %d has width %d, expected %d", name, id, m.Width, width)
		}
		if err := tw.AddFloat32(id, m.Data); err != nil {
			_ = tw.Close()
			return "", err
		}
	}
	if err := tw.Close(); err != nil {
		return "", err
	}
	w.opts.logger.Debug("table written", "table", name, "ids", len(rows))
	return name, nil
}

// Commit validates and writes the manifest.
func (w *Writer) Commit(ctx context.Context) error {
	if err := w.manifest.Validate(); err != nil {
		return err
	}
	return writeManifest(ctx, w.store, &w.manifest)
}
