package main

import (
	"context"
	"errors"
	"fmt"
	"io"
	"slices"

	"github.com/RoaringBitmap/roaring/v2"
	"github.com/hupe1980/synapgo"
	"github.com/spf13/cobra"
)

// selection names the synapse set a command works on.
type selection struct {
	efferent   bool
	projection string
}

func (s *selection) bind(cmd *cobra.Command) {
	cmd.Flags().BoolVar(&s.efferent, "efferent", false, "select outgoing instead of incoming synapses")
	cmd.Flags().StringVar(&s.projection, "projection", "", "select incoming synapses of an external projection")
}

func (s *selection) validate() error {
	if s.efferent && s.projection != "" {
		return errors.New("--efferent and --projection are mutually exclusive")
	}
	return nil
}

func (s *selection) request(ctx context.Context, c *synapgo.Circuit, ids *roaring.Bitmap, optFns ...synapgo.RequestOption) (*synapgo.Synapses, error) {
	switch {
	case s.projection != "":
		return c.ExternalAfferentSynapses(ctx, ids, s.projection, optFns...)
	case s.efferent:
		return c.EfferentSynapses(ctx, ids, optFns...)
	default:
		return c.AfferentSynapses(ctx, ids, optFns...)
	}
}

func newStatsCmd(a *app) *cobra.Command {
	var sel selection
	cmd := &cobra.Command{
		Use:   "stats <ids>",
		Short: "Summarize the synapses of a set of neurons",
		Long:  `Ids are GIDs such as "1-100,205", or node ids of one population
such as "default/0-99", resolved through the dataset's population mapping.`,
		Example: `  synapgo stats --dataset ./circuit 1-100
  synapgo stats --dataset s3://bucket/circuit --efferent 42
  synapgo stats --dataset ./circuit default/0-99`,
		Args: cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			if err := sel.validate(); err != nil {
				return err
			}
			ctx := cmd.Context()
			rt, err := openSession(ctx, a.cfg, cmd.ErrOrStderr())
			if err != nil {
				return err
			}
			defer func() { _ = rt.Close() }()

			ids, err := resolveIDs(ctx, rt.Circuit, args[0])
			if err != nil {
				return err
			}

			syns, err := sel.request(ctx, rt.Circuit, ids, synapgo.WithPrefetch(synapgo.PrefetchAttributes))
			if err != nil {
				return err
			}
			defer func() { _ = syns.Close() }()
			return printStats(cmd.OutOrStdout(), syns, rt.Circuit)
		},
	}
	sel.bind(cmd)
	return cmd
}

func printStats(w io.Writer, syns *synapgo.Synapses, c *synapgo.Circuit) error {
	direction := "afferent"
	if !syns.Afferent() {
		direction = "efferent"
	}
	if syns.External() {
		direction = "external afferent"
	}
	fmt.Fprintf(w, "synapses:  %d (%s)\n", syns.Size(), direction)
	if syns.Empty() {
		return nil
	}

	peers, err := peerGIDs(syns)
	if err != nil {
		return err
	}
	slices.Sort(peers)
	fmt.Fprintf(w, "peers:     %d\n", len(slices.Compact(peers)))

	for _, col := range []struct {
		name string
		get  func() ([]float32, error)
	}{
		{"delay", syns.Delays},
		{"conductance", syns.Conductances},
		{"utilization", syns.Utilizations},
	} {
		vals, err := col.get()
		if err != nil {
			return fmt.Errorf("%s: %w", col.name, err)
		}
		lo, hi, mean := summarize(vals)
		fmt.Fprintf(w, "%-11s min=%.3f max=%.3f mean=%.3f\n", col.name+":", lo, hi, mean)
	}

	rc := c.Resources()
	fmt.Fprintf(w, "memory:    %d bytes (peak %d)\n", rc.MemoryUsage(), rc.PeakMemoryUsage())
	return nil
}

// peerGIDs returns the ids on the other side of each synapse.
func peerGIDs(syns *synapgo.Synapses) ([]uint32, error) {
	if syns.Afferent() {
		return syns.PreGIDs()
	}
	return syns.PostGIDs()
}

func summarize(vals []float32) (lo, hi, mean float32) {
	if len(vals) == 0 {
		return 0, 0, 0
	}
	lo, hi = slices.Min(vals), slices.Max(vals)
	var sum float64
	for _, v := range vals {
		sum += float64(v)
	}
	return lo, hi, float32(sum / float64(len(vals)))
}
