package mem

import (
	"errors"
	"fmt"
	"log/slog"
	"unsafe"

	"github.com/hupe1980/synapgo/resource"
)

// Alignment is the byte alignment of column buffers (AVX, 32 bytes).
const Alignment = 32

// ErrOutOfMemory is returned when neither the aligned nor the fallback allocation succeeds.
var ErrOutOfMemory = errors.New("out of memory")

// Element is the set of column element types.
type Element interface {
	~uint32 | ~uint64 | ~int32 | ~float32
}

// AllocFunc is notified after every successful allocation.
type AllocFunc func(bytes int64, aligned bool)

// Allocator hands out column buffers charged against a resource budget.
// The zero value is usable: unlimited budget, no logging.
type Allocator struct {
	rc      *resource.Controller
	logger  *slog.Logger
	onAlloc AllocFunc
}

// Option configures an Allocator.
type Option func(*Allocator)

// WithController charges allocations against rc.
func WithController(rc *resource.Controller) Option {
	return func(a *Allocator) {
		a.rc = rc
	}
}

// WithLogger sets the logger used for degradation warnings.
func WithLogger(l *slog.Logger) Option {
	return func(a *Allocator) {
		a.logger = l
	}
}

// WithAllocFunc registers an allocation observer.
func WithAllocFunc(fn AllocFunc) Option {
	return func(a *Allocator) {
		a.onAlloc = fn
	}
}

// NewAllocator creates an Allocator.
func NewAllocator(optFns ...Option) *Allocator {
	a := &Allocator{}
	for _, fn := range optFns {
		if fn != nil {
			fn(a)
		}
	}
	return a
}

// Controller returns the resource controller backing the allocator.
func (a *Allocator) Controller() *resource.Controller {
	if a == nil {
		return nil
	}
	return a.rc
}

// Allocate provisions buf with n zeroed elements.
//
// It is a no-op when buf is already present, which keeps repeated stage
// calls cheap after the first successful run.
func Allocate[T Element](a *Allocator, buf *Buffer[T], n int) error {
	if buf.Present() {
		return nil
	}
	if n < 0 {
		return fmt.Errorf("%w: negative length %d", ErrOutOfMemory, n)
	}
	if n == 0 {
		buf.data = []T{}
		return nil
	}

	var zero T
	size := int64(n) * int64(unsafe.Sizeof(zero))
	if size/int64(unsafe.Sizeof(zero)) != int64(n) {
		return fmt.Errorf("%w: %d elements overflow", ErrOutOfMemory, n)
	}

	var rc *resource.Controller
	if a != nil {
		rc = a.rc
	}

	data, err := allocAligned[T](rc, n, size)
	if err == nil {
		buf.data, buf.reserved, buf.rc = data, size+Alignment, rc
		a.notify(size+Alignment, true)
		return nil
	}
	a.warn("memory alignment failed, trying normal allocation", slog.Int64("bytes", size), slog.Any("error", err))

	data, err = allocPlain[T](rc, n, size)
	if err != nil {
		return fmt.Errorf("%w: %d bytes: %w", ErrOutOfMemory, size, err)
	}
	buf.data, buf.reserved, buf.rc = data, size, rc
	a.notify(size, false)
	return nil
}

func allocAligned[T Element](rc *resource.Controller, n int, size int64) (data []T, err error) {
	total := size + Alignment
	if err := rc.AcquireMemory(total); err != nil {
		return nil, err
	}
	defer func() {
		if r := recover(); r != nil {
			rc.ReleaseMemory(total)
			data, err = nil, fmt.Errorf("aligned allocation: %v", r)
		}
	}()

	raw := make([]byte, total)
	addr := uintptr(unsafe.Pointer(&raw[0])) //nolint:gosec // unsafe is required for memory alignment
	offset := (Alignment - (addr & (Alignment - 1))) & (Alignment - 1)

	ptr := unsafe.Pointer(&raw[offset])   //nolint:gosec // unsafe is required for memory alignment
	return unsafe.Slice((*T)(ptr), n), nil //nolint:gosec // unsafe is required for memory alignment
}

func allocPlain[T Element](rc *resource.Controller, n int, size int64) (data []T, err error) {
	if err := rc.AcquireMemory(size); err != nil {
		return nil, err
	}
	defer func() {
		if r := recover(); r != nil {
			rc.ReleaseMemory(size)
			data, err = nil, fmt.Errorf("allocation: %v", r)
		}
	}()
	return make([]T, n), nil
}

func (a *Allocator) warn(msg string, attrs ...any) {
	if a == nil || a.logger == nil {
		return
	}
	a.logger.Warn(msg, attrs...)
}

func (a *Allocator) notify(bytes int64, aligned bool) {
	if a == nil || a.onAlloc == nil {
		return
	}
	a.onAlloc(bytes, aligned)
}
