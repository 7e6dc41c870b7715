package resource

import (
	"bytes"
	"context"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestController_Memory(t *testing.T) {
	c := NewController(Config{MemoryLimitBytes: 100})

	require.NoError(t, c.AcquireMemory(50))
	assert.Equal(t, int64(50), c.MemoryUsage())

	require.NoError(t, c.AcquireMemory(40))
	assert.Equal(t, int64(90), c.MemoryUsage())

	err := c.AcquireMemory(20)
	assert.ErrorIs(t, err, ErrMemoryLimitExceeded)
	assert.Equal(t, int64(90), c.MemoryUsage())

	c.ReleaseMemory(50)
	assert.Equal(t, int64(40), c.MemoryUsage())

	require.NoError(t, c.AcquireMemory(20))
	assert.Equal(t, int64(60), c.MemoryUsage())
	assert.Equal(t, int64(90), c.PeakMemoryUsage())
}

func TestController_UnlimitedMemory(t *testing.T) {
	c := NewController(Config{})

	require.NoError(t, c.AcquireMemory(1<<40))
	assert.Equal(t, int64(1<<40), c.MemoryUsage())
	assert.Equal(t, int64(0), c.MemoryLimit())
}

func TestController_ConcurrentMemory(t *testing.T) {
	c := NewController(Config{MemoryLimitBytes: 1000})

	var wg sync.WaitGroup
	for i := 0; i < 100; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			if err := c.AcquireMemory(10); err == nil {
				c.ReleaseMemory(10)
			}
		}()
	}
	wg.Wait()

	assert.Equal(t, int64(0), c.MemoryUsage())
}

func TestController_NilChecks(t *testing.T) {
	var c *Controller
	assert.NoError(t, c.AcquireMemory(10))
	c.ReleaseMemory(10)
	assert.Equal(t, int64(0), c.MemoryUsage())
	assert.NoError(t, c.AcquireBackground(context.Background()))
	assert.True(t, c.TryAcquireBackground())
	c.ReleaseBackground()
	assert.NoError(t, c.AcquireIO(context.Background(), 1<<20))
	assert.True(t, c.TryAcquireIO(1))
}

func TestController_Background(t *testing.T) {
	c := NewController(Config{MaxBackgroundWorkers: 1})
	require.NoError(t, c.AcquireBackground(context.Background()))

	assert.False(t, c.TryAcquireBackground())

	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Millisecond)
	defer cancel()
	assert.Error(t, c.AcquireBackground(ctx))

	c.ReleaseBackground()
	assert.True(t, c.TryAcquireBackground())
}

func TestController_IO(t *testing.T) {
	ctx := context.Background()

	c := NewController(Config{IOLimitBytesPerSec: 1000})
	assert.NoError(t, c.AcquireIO(ctx, 100))

	unlimited := NewController(Config{})
	assert.NoError(t, unlimited.AcquireIO(ctx, 1000000))
}

func TestController_IOCancelled(t *testing.T) {
	c := NewController(Config{IOLimitBytesPerSec: 10})
	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	assert.Error(t, c.AcquireIO(ctx, 100))
}

func TestDefaultConfig(t *testing.T) {
	cfg := DefaultConfig()
	assert.GreaterOrEqual(t, cfg.MemoryLimitBytes, int64(0))
	assert.Equal(t, int64(2), cfg.MaxBackgroundWorkers)
}

func TestRateLimitedIO(t *testing.T) {
	ctx := context.Background()
	rc := NewController(Config{IOLimitBytesPerSec: 1 << 20})

	var sink bytes.Buffer
	w := NewRateLimitedWriter(ctx, &sink, rc)
	n, err := w.Write([]byte("synapse"))
	require.NoError(t, err)
	assert.Equal(t, 7, n)

	r := NewRateLimitedReader(ctx, bytes.NewReader(sink.Bytes()), rc)
	buf := make([]byte, 3)
	n, err = r.ReadAt(buf, 4)
	require.NoError(t, err)
	assert.Equal(t, 3, n)
	assert.Equal(t, "pse", string(buf))
}
