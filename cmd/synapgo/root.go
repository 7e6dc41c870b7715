package main

import (
	"github.com/hupe1980/synapgo/config"
	"github.com/spf13/cobra"
	"github.com/spf13/viper"
)

// app carries the loaded configuration to subcommands.
type app struct {
	v   *viper.Viper
	cfg *config.Config
}

func newRootCmd() *cobra.Command {
	a := &app{v: config.New()}

	cmd := &cobra.Command{
		Use:           "synapgo",
		Short:         "Lazy synapse dataset tooling",
		Long:          "synapgo reads synapse datasets from local disk, S3 or MinIO, warms position caches and exports synapse sets to Arrow.",
		SilenceUsage:  true,
		SilenceErrors: true,
		PersistentPreRunE: func(cmd *cobra.Command, _ []string) error {
			path, _ := cmd.Flags().GetString("config")
			cfg, err := config.Load(a.v, path)
			if err != nil {
				return err
			}
			a.cfg = cfg
			return nil
		},
	}

	pf := cmd.PersistentFlags()
	pf.String("config", "", "config file (yaml, json or toml)")
	pf.String("dataset", "", "dataset URI: a path, file://, s3:// or minio://")
	pf.String("log-level", "info", "log level: debug, info, warn or error")
	pf.String("cache", "", "position cache backend: none, memory, disk, blob or dynamodb")
	pf.Int64("memory-limit", 0, "memory budget in bytes, 0 sizes it from the host")
	_ = a.v.BindPFlag("dataset", pf.Lookup("dataset"))
	_ = a.v.BindPFlag("log_level", pf.Lookup("log-level"))
	_ = a.v.BindPFlag("cache.backend", pf.Lookup("cache"))
	_ = a.v.BindPFlag("memory_limit", pf.Lookup("memory-limit"))

	cmd.AddCommand(
		newStatsCmd(a),
		newPositionsCmd(a),
		newExportCmd(a),
		newGenerateCmd(a),
		newSimulationCmd(a),
	)
	return cmd
}
