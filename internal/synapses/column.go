package synapses

// Stage is one of the three load stages.
type Stage int

const (
	StageConnectivity Stage = iota
	StageAttributes
	StagePositions
)

func (s Stage) String() string {
	switch s {
	case StageConnectivity:
		return "connectivity"
	case StageAttributes:
		return "attributes"
	case StagePositions:
		return "positions"
	default:
		return "unknown"
	}
}

// Column identifies a column of a Set.
type Column int

const (
	ColIndex Column = iota
	ColPreGID
	ColPreSectionID
	ColPreSegmentID
	ColPreDistance
	ColPreSurfaceX
	ColPreSurfaceY
	ColPreSurfaceZ
	ColPreCenterX
	ColPreCenterY
	ColPreCenterZ
	ColPostGID
	ColPostSectionID
	ColPostSegmentID
	ColPostDistance
	ColPostSurfaceX
	ColPostSurfaceY
	ColPostSurfaceZ
	ColPostCenterX
	ColPostCenterY
	ColPostCenterZ
	ColDelay
	ColConductance
	ColUtilization
	ColDepression
	ColFacilitation
	ColDecay
	ColEfficacy

	numColumns
)

var columnNames = [numColumns]string{
	ColIndex:         "index",
	ColPreGID:        "pre_gid",
	ColPreSectionID:  "pre_section_id",
	ColPreSegmentID:  "pre_segment_id",
	ColPreDistance:   "pre_distance",
	ColPreSurfaceX:   "pre_surface_x",
	ColPreSurfaceY:   "pre_surface_y",
	ColPreSurfaceZ:   "pre_surface_z",
	ColPreCenterX:    "pre_center_x",
	ColPreCenterY:    "pre_center_y",
	ColPreCenterZ:    "pre_center_z",
	ColPostGID:       "post_gid",
	ColPostSectionID: "post_section_id",
	ColPostSegmentID: "post_segment_id",
	ColPostDistance:  "post_distance",
	ColPostSurfaceX:  "post_surface_x",
	ColPostSurfaceY:  "post_surface_y",
	ColPostSurfaceZ:  "post_surface_z",
	ColPostCenterX:   "post_center_x",
	ColPostCenterY:   "post_center_y",
	ColPostCenterZ:   "post_center_z",
	ColDelay:         "delay",
	ColConductance:   "conductance",
	ColUtilization:   "utilization",
	ColDepression:    "depression",
	ColFacilitation:  "facilitation",
	ColDecay:         "decay",
	ColEfficacy:      "efficacy",
}

func (c Column) String() string {
	if c < 0 || c >= numColumns {
		return "unknown"
	}
	return columnNames[c]
}

// Stage returns the stage that produces the column.
func (c Column) Stage() Stage {
	switch c {
	case ColPreGID, ColPostGID:
		return StageConnectivity
	case ColPreSurfaceX, ColPreSurfaceY, ColPreSurfaceZ,
		ColPreCenterX, ColPreCenterY, ColPreCenterZ,
		ColPostSurfaceX, ColPostSurfaceY, ColPostSurfaceZ,
		ColPostCenterX, ColPostCenterY, ColPostCenterZ:
		return StagePositions
	default:
		return StageAttributes
	}
}

// Columns returns every column in declaration order.
func Columns() []Column {
	out := make([]Column, numColumns)
	for i := range out {
		out[i] = Column(i)
	}
	return out
}
