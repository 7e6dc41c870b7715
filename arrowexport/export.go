// Package arrowexport converts loaded synapse sets to Apache Arrow records.
package arrowexport

import (
	"context"
	"errors"
	"fmt"
	"io"

	"github.com/apache/arrow-go/v18/arrow"
	"github.com/apache/arrow-go/v18/arrow/array"
	"github.com/apache/arrow-go/v18/arrow/ipc"
	"github.com/apache/arrow-go/v18/arrow/memory"
	"github.com/hupe1980/synapgo"
)

type options struct {
	positions bool
	alloc     memory.Allocator
}

// Option configures an export.
type Option func(*options)

// WithPositions controls whether position columns are exported.
// Defaults to true.
func WithPositions(enabled bool) Option {
	return func(o *options) { o.positions = enabled }
}

// WithAllocator sets the Arrow allocator. Defaults to the Go allocator.
func WithAllocator(alloc memory.Allocator) Option {
	return func(o *options) { o.alloc = alloc }
}

func applyOptions(optFns []Option) options {
	o := options{positions: true, alloc: memory.NewGoAllocator()}
	for _, fn := range optFns {
		fn(&o)
	}
	return o
}

type column struct {
	name string
	typ  arrow.DataType
	// get returns the column values, or synapgo.ErrColumnUnavailable.
	get func(s *synapgo.Synapses) (any, error)
}

func u32(name string, f func(*synapgo.Synapses) func() ([]uint32, error)) column {
	return column{name, arrow.PrimitiveTypes.Uint32, func(s *synapgo.Synapses) (any, error) { return f(s)() }}
}

func f32(name string, f func(*synapgo.Synapses) func() ([]float32, error)) column {
	return column{name, arrow.PrimitiveTypes.Float32, func(s *synapgo.Synapses) (any, error) { return f(s)() }}
}

var attributeColumns = []column{
	{"index", arrow.PrimitiveTypes.Uint64, func(s *synapgo.Synapses) (any, error) { return s.Indices() }},
	u32("pre_gid", func(s *synapgo.Synapses) func() ([]uint32, error) { return s.PreGIDs }),
	u32("post_gid", func(s *synapgo.Synapses) func() ([]uint32, error) { return s.PostGIDs }),
	u32("pre_section_id", func(s *synapgo.Synapses) func() ([]uint32, error) { return s.PreSectionIDs }),
	u32("pre_segment_id", func(s *synapgo.Synapses) func() ([]uint32, error) { return s.PreSegmentIDs }),
	f32("pre_distance", func(s *synapgo.Synapses) func() ([]float32, error) { return s.PreDistances }),
	u32("post_section_id", func(s *synapgo.Synapses) func() ([]uint32, error) { return s.PostSectionIDs }),
	u32("post_segment_id", func(s *synapgo.Synapses) func() ([]uint32, error) { return s.PostSegmentIDs }),
	f32("post_distance", func(s *synapgo.Synapses) func() ([]float32, error) { return s.PostDistances }),
	f32("delay", func(s *synapgo.Synapses) func() ([]float32, error) { return s.Delays }),
	f32("conductance", func(s *synapgo.Synapses) func() ([]float32, error) { return s.Conductances }),
	f32("utilization", func(s *synapgo.Synapses) func() ([]float32, error) { return s.Utilizations }),
	f32("depression", func(s *synapgo.Synapses) func() ([]float32, error) { return s.Depressions }),
	f32("facilitation", func(s *synapgo.Synapses) func() ([]float32, error) { return s.Facilitations }),
	f32("decay", func(s *synapgo.Synapses) func() ([]float32, error) { return s.Decays }),
	{"efficacy", arrow.PrimitiveTypes.Int32, func(s *synapgo.Synapses) (any, error) { return s.Efficacies() }},
}

var positionColumns = []column{
	f32("pre_surface_x", func(s *synapgo.Synapses) func() ([]float32, error) { return s.PreSurfaceXPositions }),
	f32("pre_surface_y", func(s *synapgo.Synapses) func() ([]float32, error) { return s.PreSurfaceYPositions }),
	f32("pre_surface_z", func(s *synapgo.Synapses) func() ([]float32, error) { return s.PreSurfaceZPositions }),
	f32("pre_center_x", func(s *synapgo.Synapses) func() ([]float32, error) { return s.PreCenterXPositions }),
	f32("pre_center_y", func(s *synapgo.Synapses) func() ([]float32, error) { return s.PreCenterYPositions }),
	f32("pre_center_z", func(s *synapgo.Synapses) func() ([]float32, error) { return s.PreCenterZPositions }),
	f32("post_surface_x", func(s *synapgo.Synapses) func() ([]float32, error) { return s.PostSurfaceXPositions }),
	f32("post_surface_y", func(s *synapgo.Synapses) func() ([]float32, error) { return s.PostSurfaceYPositions }),
	f32("post_surface_z", func(s *synapgo.Synapses) func() ([]float32, error) { return s.PostSurfaceZPositions }),
	f32("post_center_x", func(s *synapgo.Synapses) func() ([]float32, error) { return s.PostCenterXPositions }),
	f32("post_center_y", func(s *synapgo.Synapses) func() ([]float32, error) { return s.PostCenterYPositions }),
	f32("post_center_z", func(s *synapgo.Synapses) func() ([]float32, error) { return s.PostCenterZPositions }),
}

// Record loads every stage of s and returns its present columns as one
// record. Columns the set does not carry, such as indices of outgoing
// synapses or surface positions of narrow datasets, are omitted. The caller
// must release the record.
func Record(ctx context.Context, s *synapgo.Synapses, optFns ...Option) (arrow.Record, error) {
	o := applyOptions(optFns)

	stages := synapgo.PrefetchAttributes
	cols := attributeColumns
	if o.positions {
		stages = synapgo.PrefetchAll
		cols = append(append([]column(nil), attributeColumns...), positionColumns...)
	}
	if err := s.Load(ctx, stages); err != nil {
		return nil, err
	}

	var (
		fields []arrow.Field
		values []any
	)
	for _, c := range cols {
		v, err := c.get(s)
		if errors.Is(err, synapgo.ErrColumnUnavailable) {
			continue
		}
		if err != nil {
			return nil, fmt.Errorf("column %s: %w", c.name, err)
		}
		fields = append(fields, arrow.Field{Name: c.name, Type: c.typ})
		values = append(values, v)
	}

	schema := arrow.NewSchema(fields, nil)
	b := array.NewRecordBuilder(o.alloc, schema)
	defer b.Release()

	for i, v := range values {
		switch vals := v.(type) {
		case []uint32:
			b.Field(i).(*array.Uint32Builder).AppendValues(vals, nil)
		case []uint64:
			b.Field(i).(*array.Uint64Builder).AppendValues(vals, nil)
		case []int32:
			b.Field(i).(*array.Int32Builder).AppendValues(vals, nil)
		case []float32:
			b.Field(i).(*array.Float32Builder).AppendValues(vals, nil)
		}
	}
	return b.NewRecord(), nil
}

// WriteIPC writes s as an Arrow IPC file with a single record batch.
func WriteIPC(ctx context.Context, w io.Writer, s *synapgo.Synapses, optFns ...Option) error {
	rec, err := Record(ctx, s, optFns...)
	if err != nil {
		return err
	}
	defer rec.Release()

	o := applyOptions(optFns)
	fw, err := ipc.NewFileWriter(w, ipc.WithSchema(rec.Schema()), ipc.WithAllocator(o.alloc))
	if err != nil {
		return fmt.Errorf("create arrow writer: %w", err)
	}
	if err := fw.Write(rec); err != nil {
		_ = fw.Close()
		return fmt.Errorf("write record batch: %w", err)
	}
	return fw.Close()
}

// WriteStream writes one record batch per chunk of st as an Arrow IPC
// stream and returns the number of synapses written. Every chunk must
// yield the same columns.
func WriteStream(ctx context.Context, w io.Writer, st *synapgo.Stream, optFns ...Option) (int64, error) {
	o := applyOptions(optFns)

	var (
		sw    *ipc.Writer
		total int64
	)
	for {
		syns, err := st.Next(ctx)
		if errors.Is(err, io.EOF) {
			break
		}
		if err != nil {
			return total, err
		}

		rec, err := Record(ctx, syns, optFns...)
		_ = syns.Close()
		if err != nil {
			return total, err
		}

		if sw == nil {
			sw = ipc.NewWriter(w, ipc.WithSchema(rec.Schema()), ipc.WithAllocator(o.alloc))
		}
		err = sw.Write(rec)
		total += rec.NumRows()
		rec.Release()
		if err != nil {
			_ = sw.Close()
			return total, fmt.Errorf("write record batch: %w", err)
		}
	}
	if sw == nil {
		return 0, nil
	}
	return total, sw.Close()
}
