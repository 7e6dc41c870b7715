package synapses

import (
	"errors"
	"fmt"
)

var (
	// ErrUnsupported is returned for positions of a projection set.
	ErrUnsupported = errors.New("operation not supported for this source kind")

	// ErrSourceOpen is returned when a backing source cannot be opened.
	ErrSourceOpen = errors.New("source open failed")

	// ErrColumnUnavailable is returned for a column the source never produced.
	ErrColumnUnavailable = errors.New("column not available")

	// ErrInconsistent is returned when the inputs contradict each other.
	ErrInconsistent = errors.New("inconsistent synapse data")

	// ErrReleased is returned after the set released its columns.
	ErrReleased = errors.New("synapse set released")
)

// ColumnError names an absent column.
type ColumnError struct {
	Column Column
}

func (e *ColumnError) Error() string {
	return fmt.Sprintf("column %s not available", e.Column)
}

func (e *ColumnError) Unwrap() error { return ErrColumnUnavailable }

// ConsistencyError describes a row that contradicts the resolved connectivity.
type ConsistencyError struct {
	Stage  Stage
	ID     uint32
	Row    int
	Reason string
}

func (e *ConsistencyError) Error() string {
	return fmt.Sprintf("%s stage: id %d row %d: %s", e.Stage, e.ID, e.Row, e.Reason)
}

func (e *ConsistencyError) Unwrap() error { return ErrInconsistent }

func inconsistent(stage Stage, id uint32, row int, format string, args ...any) error {
	return &ConsistencyError{Stage: stage, ID: id, Row: row, Reason: fmt.Sprintf(format, args...)}
}
