package main

import (
	"fmt"
	"time"

	"github.com/hupe1980/synapgo"
	"github.com/spf13/cobra"
)

func newPositionsCmd(a *app) *cobra.Command {
	var (
		sel    selection
		rounds int
	)
	cmd := &cobra.Command{
		Use:   "positions <ids>",
		Short: "Load synapse positions, warming the position cache",
		Example: `  synapgo positions --dataset ./circuit --cache memory --rounds 2 1-50
  SYNAPGO_CACHE_BACKEND=disk SYNAPGO_CACHE_DIR=/tmp/poscache synapgo positions --dataset ./circuit 7`,
		Args: cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			if err := sel.validate(); err != nil {
				return err
			}
			if rounds < 1 {
				return fmt.Errorf("--rounds must be positive, got %d", rounds)
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

			out := cmd.OutOrStdout()
			for round := 1; round <= rounds; round++ {
				start := time.Now()
				syns, err := sel.request(ctx, rt.Circuit, ids, synapgo.WithPrefetch(synapgo.PrefetchPositions))
				if err != nil {
					return err
				}
				n := syns.Size()
				if err := syns.Close(); err != nil {
					return err
				}
				fmt.Fprintf(out, "round %d: %d synapses in %s\n", round, n, time.Since(start).Round(time.Microsecond))
			}

			if rt.Cache != nil {
				hits, misses, corrupt := rt.Cache.Stats()
				fmt.Fprintf(out, "cache: hits=%d misses=%d corrupt=%d\n", hits, misses, corrupt)
			}
			return nil
		},
	}
	sel.bind(cmd)
	cmd.Flags().IntVar(&rounds, "rounds", 1, "number of times to load the positions")
	return cmd
}
