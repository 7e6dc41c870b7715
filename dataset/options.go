package dataset

import (
	"log/slog"

	"github.com/hupe1980/synapgo/internal/codec"
	"github.com/hupe1980/synapgo/resource"
)

type options struct {
	rc          *resource.Controller
	logger      *slog.Logger
	compression codec.Compression
}

// Option configures Open and NewWriter.
type Option func(*options)

// WithResourceController throttles table reads with rc's IO limit.
func WithResourceController(rc *resource.Controller) Option {
	return func(o *options) { o.rc = rc }
}

// WithLogger sets the logger. Defaults to discarding output.
func WithLogger(l *slog.Logger) Option {
	return func(o *options) {
		if l != nil {
			o.logger = l
		}
	}
}

// WithCompression sets the block compression used by a Writer.
func WithCompression(c codec.Compression) Option {
	return func(o *options) { o.compression = c }
}

func applyOptions(optFns []Option) options {
	o := options{
		logger:      slog.New(slog.DiscardHandler),
		compression: codec.CompressionZSTD,
	}
	for _, fn := range optFns {
		fn(&o)
	}
	return o
}

// Compression selects the block compression of written tables.
type Compression = codec.Compression

const (
	CompressionNone = codec.CompressionNone
	CompressionLZ4  = codec.CompressionLZ4
	CompressionZSTD = codec.CompressionZSTD
)

// ParseCompression parses "none", "lz4" or "zstd".
func ParseCompression(s string) (Compression, error) { return codec.ParseCompression(s) }
