package source

import "fmt"

// Matrix is a row-major group of fixed-width float32 rows.
type Matrix struct {
	Data  []float32
	Width int
}

// NewMatrix builds a Matrix from rows. All rows must have the same width.
func NewMatrix(width int, rows ...[]float32) (Matrix, error) {
	m := Matrix{Data: make([]float32, 0, width*len(rows)), Width: width}
	for i, r := range rows {
		if len(r) != width {
			return Matrix{}, fmt.Errorf("row %d has %d fields, expected %d", i, len(r), width)
		}
		m.Data = append(m.Data, r...)
	}
	return m, nil
}

// Rows returns the number of rows.
func (m Matrix) Rows() int {
	if m.Width <= 0 {
		return 0
	}
	return len(m.Data) / m.Width
}

// Row returns row i. The slice aliases the matrix.
func (m Matrix) Row(i int) []float32 {
	return m.Data[i*m.Width : (i+1)*m.Width : (i+1)*m.Width]
}

// Empty reports whether the matrix has no rows.
func (m Matrix) Empty() bool {
	return m.Rows() == 0
}

// Validate checks that the data length is a multiple of the width.
func (m Matrix) Validate() error {
	if len(m.Data) == 0 {
		return nil
	}
	if m.Width <= 0 {
		return fmt.Errorf("matrix with %d values has width %d", len(m.Data), m.Width)
	}
	if len(m.Data)%m.Width != 0 {
		return fmt.Errorf("matrix with %d values is not a multiple of width %d", len(m.Data), m.Width)
	}
	return nil
}
