package synapgo

import (
	"errors"
	"fmt"

	"github.com/hupe1980/synapgo/internal/mem"
	"github.com/hupe1980/synapgo/internal/synapses"
)

var (
	// ErrOutOfMemory is returned when a column cannot be allocated.
	ErrOutOfMemory = errors.New("synapgo: out of memory")

	// ErrSourceOpen is returned when a backing source cannot be opened.
	ErrSourceOpen = errors.New("synapgo: source open failed")

	// ErrUnsupported is returned for operations the source kind cannot serve,
	// such as positions of projected synapses.
	ErrUnsupported = errors.New("synapgo: unsupported operation")

	// ErrColumnUnavailable is returned for a column the source never produced.
	ErrColumnUnavailable = errors.New("synapgo: column not available")

	// ErrInconsistent is returned when the backing data contradicts itself.
	ErrInconsistent = errors.New("synapgo: inconsistent data")

	// ErrClosed is returned when a handle or circuit is used after Close.
	ErrClosed = errors.New("synapgo: closed")

	// ErrUnknownProjection is returned for a projection name the circuit does not have.
	ErrUnknownProjection = errors.New("synapgo: unknown projection")

	// ErrNoMapping is returned by Circuit.Mapping when the circuit has no
	// population mapping.
	ErrNoMapping = errors.New("synapgo: no population mapping")
)

// ColumnError names the column that is not available.
//
// It matches ErrColumnUnavailable with errors.Is.
type ColumnError struct {
	Column string
	cause  error
}

func (e *ColumnError) Error() string {
	return fmt.Sprintf("synapgo: column %s not available", e.Column)
}

func (e *ColumnError) Is(target error) bool { return target == ErrColumnUnavailable }

func (e *ColumnError) Unwrap() error { return e.cause }

// ConsistencyError describes a row that contradicts the resolved connectivity.
//
// It matches ErrInconsistent with errors.Is.
type ConsistencyError struct {
	Stage  string
	ID     uint32
	Row    int
	Reason string
	cause  error
}

func (e *ConsistencyError) Error() string {
	return fmt.Sprintf("synapgo: %s stage: id %d row %d: %s", e.Stage, e.ID, e.Row, e.Reason)
}

func (e *ConsistencyError) Is(target error) bool { return target == ErrInconsistent }

func (e *ConsistencyError) Unwrap() error { return e.cause }

func translateError(err error) error {
	if err == nil {
		return nil
	}

	var ce *synapses.ColumnError
	if errors.As(err, &ce) {
		return &ColumnError{Column: ce.Column.String(), cause: err}
	}
	var ie *synapses.ConsistencyError
	if errors.As(err, &ie) {
		return &ConsistencyError{Stage: ie.Stage.String(), ID: ie.ID, Row: ie.Row, Reason: ie.Reason, cause: err}
	}

	switch {
	case errors.Is(err, mem.ErrOutOfMemory):
		return fmt.Errorf("%w: %w", ErrOutOfMemory, err)
	case errors.Is(err, synapses.ErrSourceOpen):
		return fmt.Errorf("%w: %w", ErrSourceOpen, err)
	case errors.Is(err, synapses.ErrUnsupported):
		return fmt.Errorf("%w: %w", ErrUnsupported, err)
	case errors.Is(err, synapses.ErrInconsistent):
		return fmt.Errorf("%w: %w", ErrInconsistent, err)
	case errors.Is(err, synapses.ErrReleased):
		return fmt.Errorf("%w: %w", ErrClosed, err)
	}
	return err
}
