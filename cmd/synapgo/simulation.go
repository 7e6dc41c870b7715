package main

import (
	"fmt"
	"strings"

	"github.com/hupe1980/synapgo/config"
	"github.com/spf13/cobra"
)

func newSimulationCmd(_ *app) *cobra.Command {
	return &cobra.Command{
		Use:   "simulation <simulation_config.json>",
		Short: "Resolve the circuit and outputs of a simulation config",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			sim, err := config.LoadSimulation(args[0])
			if err != nil {
				return err
			}
			w := cmd.OutOrStdout()
			fmt.Fprintf(w, "network:   %s\n", sim.NetworkConfig)
			if sim.NodeSets != "" {
				fmt.Fprintf(w, "node sets: %s\n", sim.NodeSets)
			}
			fmt.Fprintf(w, "output:    %s\n", sim.OutputRoot)
			if len(sim.ReportNames) > 0 {
				fmt.Fprintf(w, "reports:   %s\n", strings.Join(sim.ReportNames, ", "))
			}
			return nil
		},
	}
}
