package synapgo

import (
	"context"
	"errors"
	"io"
)

// Close releases the circuit's own reference on the sources. They are
// closed now, or when the last Synapses obtained from the circuit is closed.
// Close returns the error of closing the sources if that happened now.
func (c *Circuit) Close() error {
	if c == nil || c.closed.Swap(true) {
		return nil
	}
	if c.refs.Add(-1) == 0 {
		c.closeSources()
		return c.closeErr
	}
	return nil
}

func (c *Circuit) closeSources() {
	c.closeOnce.Do(func() {
		var errs []error
		seen := make(map[io.Closer]struct{})
		closeOne := func(v any) {
			cl, ok := v.(io.Closer)
			if !ok || cl == nil {
				return
			}
			if _, dup := seen[cl]; dup {
				return
			}
			seen[cl] = struct{}{}
			if err := cl.Close(); err != nil {
				errs = append(errs, err)
			}
		}

		closeOne(c.src.Summary)
		closeOne(c.src.Afferent)
		closeOne(c.src.Efferent)
		closeOne(c.src.Extra)
		closeOne(c.src.Positions)
		for _, name := range c.Projections() {
			closeOne(c.src.Projections[name])
		}
		closeOne(c.src.Closer)

		c.closeErr = errors.Join(errs...)
		c.opts.logger.LogClose(context.Background(), c.closeErr)
	})
}
