package main

import (
	"bufio"
	"fmt"
	"io"
	"os"

	"github.com/hupe1980/synapgo"
	"github.com/hupe1980/synapgo/arrowexport"
	"github.com/spf13/cobra"
)

func newExportCmd(a *app) *cobra.Command {
	var (
		sel       selection
		output    string
		chunk     int
		positions bool
	)
	cmd := &cobra.Command{
		Use:   "export <ids>",
		Short: "Export synapses as Arrow IPC",
		Long: `Export writes the attributes, and optionally the positions, of the
selected synapses. With --chunk the output is an Arrow IPC stream with one
record batch per chunk of ids; otherwise it is an Arrow IPC file.`,
		Example: `  synapgo export --dataset ./circuit -o syn.arrow 1-100
  synapgo export --dataset ./circuit --chunk 10 -o - 1-1000 > syn.arrows`,
		Args: cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) (err error) {
			if err := sel.validate(); err != nil {
				return err
			}
			if chunk > 0 && sel.projection != "" {
				return fmt.Errorf("--chunk cannot be combined with --projection")
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

			var w io.Writer = cmd.OutOrStdout()
			if output != "-" {
				f, ferr := os.Create(output)
				if ferr != nil {
					return ferr
				}
				defer func() {
					if cerr := f.Close(); err == nil {
						err = cerr
					}
				}()
				w = f
			}
			bw := bufio.NewWriter(w)

			exportOpts := []arrowexport.Option{arrowexport.WithPositions(positions)}
			if chunk > 0 {
				var st *synapgo.Stream
				if sel.efferent {
					st = rt.Circuit.StreamEfferent(ids, chunk)
				} else {
					st = rt.Circuit.StreamAfferent(ids, chunk)
				}
				defer func() { _ = st.Close() }()
				n, err := arrowexport.WriteStream(ctx, bw, st, exportOpts...)
				if err != nil {
					return err
				}
				rt.Logger.Info("exported synapses", "synapses", n, "output", output)
				return bw.Flush()
			}

			syns, err := sel.request(ctx, rt.Circuit, ids)
			if err != nil {
				return err
			}
			defer func() { _ = syns.Close() }()
			if err := arrowexport.WriteIPC(ctx, bw, syns, exportOpts...); err != nil {
				return err
			}
			rt.Logger.Info("exported synapses", "synapses", syns.Size(), "output", output)
			return bw.Flush()
		},
	}
	sel.bind(cmd)
	cmd.Flags().StringVarP(&output, "output", "o", "-", "output file, - for stdout")
	cmd.Flags().IntVar(&chunk, "chunk", 0, "ids per record batch; 0 writes a single batch")
	cmd.Flags().BoolVar(&positions, "positions", true, "include position columns")
	return cmd
}
