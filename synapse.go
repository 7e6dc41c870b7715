package synapgo

import "errors"

// Synapse is a view of one synapse of a Synapses handle.
type Synapse struct {
	s *Synapses
	i int
}

// Attributes are the scalar attributes of a synapse.
type Attributes struct {
	// Index is valid when HasIndex is true.
	Index    uint64
	HasIndex bool

	PreSectionID  uint32
	PreSegmentID  uint32
	PreDistance   float32
	PostSectionID uint32
	PostSegmentID uint32
	PostDistance  float32

	Delay        float32
	Conductance  float32
	Utilization  float32
	Depression   float32
	Facilitation float32
	Decay        float32
	Efficacy     int32
}

// Positions are the positions of a synapse.
type Positions struct {
	PreCenter  [3]float32
	PostCenter [3]float32

	// PreSurface and PostSurface are valid when HasSurface is true.
	PreSurface  [3]float32
	PostSurface [3]float32
	HasSurface  bool
}

// Position returns the position of the synapse in its set.
func (v Synapse) Position() int { return v.i }

// GIDs returns the presynaptic and postsynaptic gid.
func (v Synapse) GIDs() (pre, post uint32, err error) {
	pres, err := v.s.PreGIDs()
	if err != nil {
		return 0, 0, err
	}
	posts, err := v.s.PostGIDs()
	if err != nil {
		return 0, 0, err
	}
	return pres[v.i], posts[v.i], nil
}

// Attributes returns the scalar attributes, loading them if needed.
func (v Synapse) Attributes() (Attributes, error) {
	var a Attributes
	u32 := []struct {
		get func() ([]uint32, error)
		dst *uint32
	}{
		{v.s.PreSectionIDs, &a.PreSectionID},
		{v.s.PreSegmentIDs, &a.PreSegmentID},
		{v.s.PostSectionIDs, &a.PostSectionID},
		{v.s.PostSegmentIDs, &a.PostSegmentID},
	}
	for _, c := range u32 {
		col, err := c.get()
		if err != nil {
			return Attributes{}, err
		}
		*c.dst = col[v.i]
	}

	f32 := []struct {
		get func() ([]float32, error)
		dst *float32
	}{
		{v.s.PreDistances, &a.PreDistance},
		{v.s.PostDistances, &a.PostDistance},
		{v.s.Delays, &a.Delay},
		{v.s.Conductances, &a.Conductance},
		{v.s.Utilizations, &a.Utilization},
		{v.s.Depressions, &a.Depression},
		{v.s.Facilitations, &a.Facilitation},
		{v.s.Decays, &a.Decay},
	}
	for _, c := range f32 {
		col, err := c.get()
		if err != nil {
			return Attributes{}, err
		}
		*c.dst = col[v.i]
	}

	eff, err := v.s.Efficacies()
	if err != nil {
		return Attributes{}, err
	}
	a.Efficacy = eff[v.i]

	idx, err := v.s.Indices()
	switch {
	case err == nil:
		a.Index, a.HasIndex = idx[v.i], true
	case !errors.Is(err, ErrColumnUnavailable):
		return Attributes{}, err
	}
	return a, nil
}

// Positions returns the positions, loading them if needed.
func (v Synapse) Positions() (Positions, error) {
	var p Positions
	center := []struct {
		get func() ([]float32, error)
		dst *float32
	}{
		{v.s.PreCenterXPositions, &p.PreCenter[0]},
		{v.s.PreCenterYPositions, &p.PreCenter[1]},
		{v.s.PreCenterZPositions, &p.PreCenter[2]},
		{v.s.PostCenterXPositions, &p.PostCenter[0]},
		{v.s.PostCenterYPositions, &p.PostCenter[1]},
		{v.s.PostCenterZPositions, &p.PostCenter[2]},
	}
	for _, c := range center {
		col, err := c.get()
		if err != nil {
			return Positions{}, err
		}
		*c.dst = col[v.i]
	}

	surface := []struct {
		get func() ([]float32, error)
		dst *float32
	}{
		{v.s.PreSurfaceXPositions, &p.PreSurface[0]},
		{v.s.PreSurfaceYPositions, &p.PreSurface[1]},
		{v.s.PreSurfaceZPositions, &p.PreSurface[2]},
		{v.s.PostSurfaceXPositions, &p.PostSurface[0]},
		{v.s.PostSurfaceYPositions, &p.PostSurface[1]},
		{v.s.PostSurfaceZPositions, &p.PostSurface[2]},
	}
	for _, c := range surface {
		col, err := c.get()
		if errors.Is(err, ErrColumnUnavailable) {
			// Surface columns are all present or all absent.
			return Positions{PreCenter: p.PreCenter, PostCenter: p.PostCenter}, nil
		}
		if err != nil {
			return Positions{}, err
		}
		*c.dst = col[v.i]
	}
	p.HasSurface = true
	return p, nil
}
