package dataset

import (
	"context"
	"fmt"

	"github.com/hupe1980/synapgo/blobstore"
	"github.com/hupe1980/synapgo/internal/codec"
)

// ManifestName is the blob describing a dataset.
const ManifestName = "manifest.json"

const manifestVersion = 1

// Manifest names the tables of a dataset.
type Manifest struct {
	Version     int    `json:"version"`
	Compression string `json:"compression"`

	Summary  string `json:"summary"`
	Afferent string `json:"afferent"`
	Efferent string `json:"efferent,omitempty"`
	Extra    string `json:"extra,omitempty"`

	AfferentPositions string `json:"afferent_positions,omitempty"`
	EfferentPositions string `json:"efferent_positions,omitempty"`
	// SurfacePositions is true when position tables have 13 fields per row.
	SurfacePositions bool `json:"surface_positions"`

	Projections map[string]string `json:"projections,omitempty"`
	Mapping     string            `json:"mapping,omitempty"`
}

// Validate checks the fields every dataset needs.
func (m *Manifest) Validate() error {
	if m.Version != manifestVersion {
		return fmt.Errorf("%w: manifest version %d", ErrCorrupt, m.Version)
	}
	if m.Summary == "" || m.Afferent == "" {
		return fmt.Errorf("%w: manifest lacks summary or afferent table", ErrCorrupt)
	}
	if _, err := codec.ParseCompression(m.Compression); err != nil {
		return fmt.Errorf("%w: %w", ErrCorrupt, err)
	}
	return nil
}

// ReadManifest loads and validates the manifest of store.
func ReadManifest(ctx context.Context, store blobstore.BlobStore) (*Manifest, error) {
	data, err := blobstore.ReadAll(ctx, store, ManifestName)
	if err != nil {
		return nil, fmt.Errorf("read manifest: %w", err)
	}
	var m Manifest
	if err := codec.Default.Unmarshal(data, &m); err != nil {
		return nil, fmt.Errorf("%w: manifest: %w", ErrCorrupt, err)
	}
	if err := m.Validate(); err != nil {
		return nil, err
	}
	return &m, nil
}

func writeManifest(ctx context.Context, store blobstore.BlobStore, m *Manifest) error {
	data, err := codec.GoJSON{}.MarshalIndent(m)
	if err != nil {
		return err
	}
	return store.Put(ctx, ManifestName, data)
}
