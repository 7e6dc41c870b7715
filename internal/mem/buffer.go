package mem

import "github.com/hupe1980/synapgo/resource"

// Buffer is an owned column. A nil slice means the column is absent.
type Buffer[T Element] struct {
	data     []T
	reserved int64
	rc       *resource.Controller
}

// Present reports whether the column has been allocated.
func (b *Buffer[T]) Present() bool {
	return b.data != nil
}

// Slice returns the column, or nil when absent.
func (b *Buffer[T]) Slice() []T {
	return b.data
}

// Len returns the number of elements.
func (b *Buffer[T]) Len() int {
	return len(b.data)
}

// Reserved returns the bytes charged to the resource controller.
func (b *Buffer[T]) Reserved() int64 {
	return b.reserved
}

// Release returns the reservation and drops the column.
func (b *Buffer[T]) Release() {
	if b.reserved > 0 {
		b.rc.ReleaseMemory(b.reserved)
	}
	b.data, b.reserved, b.rc = nil, 0, nil
}

// Swap exchanges the contents of two buffers.
func Swap[T Element](a, b *Buffer[T]) {
	*a, *b = *b, *a
}
