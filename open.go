package synapgo

import (
	"context"
	"fmt"

	"github.com/hupe1980/synapgo/blobstore"
	"github.com/hupe1980/synapgo/dataset"
)

// Open opens the dataset in store and returns a circuit over it. Position
// tables are opened on first use. Closing the circuit and every Synapses
// obtained from it closes the dataset.
func Open(ctx context.Context, store blobstore.BlobStore, optFns ...Option) (*Circuit, error) {
	o := applyOptions(optFns)

	d, err := dataset.Open(ctx, store,
		dataset.WithResourceController(o.rc),
		dataset.WithLogger(o.logger.Logger),
	)
	if err != nil {
		return nil, fmt.Errorf("%w: %w", ErrSourceOpen, err)
	}

	src := Sources{
		Summary:     d.Summary(),
		Afferent:    d.Afferent(),
		Projections: d.Projections(),
		Closer:      d,
	}
	// Absent tables stay nil interfaces.
	if t := d.Efferent(); t != nil {
		src.Efferent = t
	}
	if t := d.Extra(); t != nil {
		src.Extra = t
	}
	if p := d.Positions(); p != nil {
		src.Positions = p
	}
	if d.HasMapping() {
		src.Mapping = d
	}

	c, err := NewCircuit(src, append(optFns, WithResourceController(o.rc))...)
	if err != nil {
		_ = d.Close()
		return nil, err
	}
	o.logger.Debug("circuit opened",
		"efferent", src.Efferent != nil,
		"positions", src.Positions != nil,
		"projections", len(src.Projections),
		"mapping", src.Mapping != nil,
	)
	return c, nil
}
