package main

import (
	"fmt"

	"github.com/hupe1980/synapgo/dataset"
	"github.com/hupe1980/synapgo/testutil"
	"github.com/spf13/cobra"
)

func newGenerateCmd(a *app) *cobra.Command {
	var (
		spec        testutil.CircuitSpec
		seed        int64
		compression string
		projections []string
		projSize    int
	)
	cmd := &cobra.Command{
		Use:   "generate <dataset>",
		Short: "Write a synthetic dataset",
		Example: `  synapgo generate --neurons 1000 --mean-peers 20 ./circuit
  synapgo generate --wide --projection thalamus s3://bucket/circuit`,
		Args: cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			if spec.Neurons <= 0 || spec.MeanPeers <= 0 {
				return fmt.Errorf("--neurons and --mean-peers must be positive")
			}
			c, err := dataset.ParseCompression(compression)
			if err != nil {
				return err
			}
			if len(projections) > 0 {
				spec.Projections = make(map[string]int, len(projections))
				for _, name := range projections {
					spec.Projections[name] = projSize
				}
			}

			ctx := cmd.Context()
			store, err := openStore(ctx, a.cfg, args[0])
			if err != nil {
				return err
			}
			circuit := testutil.NewRNG(seed).Circuit(spec)
			if err := circuit.Write(ctx, store, dataset.WithCompression(c)); err != nil {
				return err
			}
			fmt.Fprintf(cmd.OutOrStdout(), "wrote %d neurons, %d synapses to %s\n", spec.Neurons, circuit.Synapses, args[0])
			return nil
		},
	}
	f := cmd.Flags()
	f.IntVar(&spec.Neurons, "neurons", 100, "number of neurons")
	f.IntVar(&spec.MeanPeers, "mean-peers", 5, "mean number of presynaptic peers")
	f.IntVar(&spec.MaxSynapsesPerPair, "max-per-pair", 4, "maximum synapses per connected pair")
	f.BoolVar(&spec.Wide, "wide", false, "store surface positions")
	f.StringVar(&spec.Population, "population", "", "population name of the gid mapping")
	f.StringSliceVar(&projections, "projection", nil, "add an external projection")
	f.IntVar(&projSize, "projection-size", 10, "source ids per projection")
	f.Int64Var(&seed, "seed", 1, "random seed")
	f.StringVar(&compression, "compression", "zstd", "block compression: none, lz4 or zstd")
	return cmd
}
