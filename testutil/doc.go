// Package testutil generates synthetic circuits for tests, benchmarks and
// the CLI's generate command.
//
// Generated circuits are internally consistent: every synapse appears once
// in the afferent rows of its target and once in the efferent rows of its
// source, in the peer order of the summary index.
//
//	rng := testutil.NewRNG(42)
//	c := rng.Circuit(testutil.CircuitSpec{Neurons: 100, MeanPeers: 8})
//	err := c.Write(ctx, store)
package testutil
