package assessment

type AxisEvidence struct {
	Positive int `json:"positive"`
	Negative int `json:"negative"`
}

func (e AxisEvidence) Total() int { return e.Positive + e.Negative }

// Distribution is the belief state of one session. MBTIProbs and EnneagramProbs
// are always derived from the scores and never updated independently, except by
// calibration blending.
type Distribution struct {
	AxisScores      map[Axis]float64          `json:"axisScores"`
	AxisEvidence    map[Axis]AxisEvidence     `json:"axisEvidence"`
	MBTIProbs       map[MBTIType]float64      `json:"mbtiProbs16"`
	EnneagramScores map[EnneagramType]float64 `json:"enneagramScores"`
	EnneagramProbs  map[EnneagramType]float64 `json:"enneagramProbs9"`
	Conflicts       []string                  `json:"conflicts"`
}

func (d Distribution) Clone() Distribution {
	out := Distribution{
		AxisScores:      make(map[Axis]float64, len(d.AxisScores)),
		AxisEvidence:    make(map[Axis]AxisEvidence, len(d.AxisEvidence)),
		MBTIProbs:       make(map[MBTIType]float64, len(d.MBTIProbs)),
		EnneagramScores: make(map[EnneagramType]float64, len(d.EnneagramScores)),
		EnneagramProbs:  make(map[EnneagramType]float64, len(d.EnneagramProbs)),
		Conflicts:       append([]string{}, d.Conflicts...),
	}
	for k, v := range d.AxisScores {
		out.AxisScores[k] = v
	}
	for k, v := range d.AxisEvidence {
		out.AxisEvidence[k] = v
	}
	for k, v := range d.MBTIProbs {
		out.MBTIProbs[k] = v
	}
	for k, v := range d.EnneagramScores {
		out.EnneagramScores[k] = v
	}
	for k, v := range d.EnneagramProbs {
		out.EnneagramProbs[k] = v
	}
	return out
}

// Update is an oracle-produced recalibration of both posteriors.
type Update struct {
	MBTIProbs      map[MBTIType]float64      `json:"mbtiProbs16"`
	EnneagramProbs map[EnneagramType]float64 `json:"enneagramProbs9"`
	Conflicts      []string                  `json:"conflicts"`
}
