package synapgo

import (
	"context"
	"io"
	"sync"

	"github.com/RoaringBitmap/roaring/v2"
)

type streamResult struct {
	s   *Synapses
	err error
}

// Stream yields the synapses of a large id set one chunk at a time.
//
// While the caller works on one chunk the next chunk's connectivity is
// resolved in the background, provided the circuit's resource controller
// grants a background slot.
type Stream struct {
	c        *Circuit
	afferent bool
	optFns   []RequestOption
	chunks   [][]uint32

	mu      sync.Mutex
	next    int
	pending chan streamResult
	ctx     context.Context
	cancel  context.CancelFunc
}

// StreamAfferent streams the incoming synapses of ids in chunks of chunkSize ids.
func (c *Circuit) StreamAfferent(ids *roaring.Bitmap, chunkSize int, optFns ...RequestOption) *Stream {
	return c.newStream(ids, chunkSize, true, optFns)
}

// StreamEfferent streams the outgoing synapses of ids in chunks of chunkSize ids.
func (c *Circuit) StreamEfferent(ids *roaring.Bitmap, chunkSize int, optFns ...RequestOption) *Stream {
	return c.newStream(ids, chunkSize, false, optFns)
}

func (c *Circuit) newStream(ids *roaring.Bitmap, chunkSize int, afferent bool, optFns []RequestOption) *Stream {
	if chunkSize <= 0 {
		chunkSize = 1
	}
	var all []uint32
	if ids != nil {
		all = ids.ToArray()
	}

	var chunks [][]uint32
	for start := 0; start < len(all); start += chunkSize {
		chunks = append(chunks, all[start:min(start+chunkSize, len(all))])
	}

	ctx, cancel := context.WithCancel(context.Background())
	return &Stream{
		c:        c,
		afferent: afferent,
		optFns:   optFns,
		chunks:   chunks,
		ctx:      ctx,
		cancel:   cancel,
	}
}

// Remaining returns the number of chunks not yet returned by Next.
func (st *Stream) Remaining() int {
	st.mu.Lock()
	defer st.mu.Unlock()
	return len(st.chunks) - st.next
}

// Next returns the synapses of the next chunk, or io.EOF when the stream is
// exhausted. The caller owns the returned handle and must close it.
func (st *Stream) Next(ctx context.Context) (*Synapses, error) {
	st.mu.Lock()
	defer st.mu.Unlock()

	if st.next >= len(st.chunks) {
		return nil, io.EOF
	}

	var res streamResult
	if st.pending != nil {
		select {
		case res = <-st.pending:
		case <-ctx.Done():
			return nil, ctx.Err()
		}
		st.pending = nil
	} else {
		res.s, res.err = st.load(ctx, st.chunks[st.next])
	}
	if res.err != nil {
		return nil, res.err
	}
	st.next++

	if st.next < len(st.chunks) && st.c.opts.rc.TryAcquireBackground() {
		ch := make(chan streamResult, 1)
		st.pending = ch
		chunk := st.chunks[st.next]
		go func() {
			defer st.c.opts.rc.ReleaseBackground()
			s, err := st.load(st.ctx, chunk)
			ch <- streamResult{s: s, err: err}
		}()
	}
	return res.s, nil
}

func (st *Stream) load(ctx context.Context, ids []uint32) (*Synapses, error) {
	bm := roaring.BitmapOf(ids...)
	if st.afferent {
		return st.c.AfferentSynapses(ctx, bm, st.optFns...)
	}
	return st.c.EfferentSynapses(ctx, bm, st.optFns...)
}

// Close stops background work and releases a prefetched chunk.
func (st *Stream) Close() error {
	st.cancel()

	st.mu.Lock()
	defer st.mu.Unlock()

	if st.pending != nil {
		res := <-st.pending
		st.pending = nil
		if res.s != nil {
			return res.s.Close()
		}
	}
	st.next = len(st.chunks)
	return nil
}
