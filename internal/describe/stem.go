package describe

import (
	"fmt"
	"math"
	"sort"
	"strings"
)

// Stem is one line of a stem-and-leaf display.
type Stem struct {
	Stem   int   `json:"stem" yaml:"stem"`
	Leaves []int `json:"leaves" yaml:"leaves"`
}

// StemLeaf is a textual stem-and-leaf display. Each value is divided by Scale,
// its tens become the stem and its units digit the leaf.
type StemLeaf struct {
	Scale float64 `json:"scale" yaml:"scale"`
	Stems []Stem  `json:"stems" yaml:"stems"`
}

// StemAndLeaf builds the display. scale <= 0 is treated as 1.
func StemAndLeaf(values []float64, scale float64) (*StemLeaf, error) {
	if len(values) == 0 {
		return nil, ErrEmptySample
	}
	if !(scale > 0) || math.IsInf(scale, 0) {
		scale = 1
	}
	byStem := map[int][]int{}
	for i, v := range values {
		if math.IsNaN(v) || math.IsInf(v, 0) {
			return nil, fmt.Errorf("value %d is not finite", i)
		}
		x := math.Floor(v / scale)
		stem := int(math.Floor(x / 10))
		leaf := int(x) - stem*10
		byStem[stem] = append(byStem[stem], leaf)
	}
	out := &StemLeaf{Scale: scale}
	for s, leaves := range byStem {
		sort.Ints(leaves)
		out.Stems = append(out.Stems, Stem{Stem: s, Leaves: leaves})
	}
	sort.Slice(out.Stems, func(i, j int) bool { return out.Stems[i].Stem < out.Stems[j].Stem })
	return out, nil
}

// String renders "stem | l l l" lines.
func (s *StemLeaf) String() string {
	var b strings.Builder
	for _, st := range s.Stems {
		b.WriteString(fmt.Sprintf("%4d |", st.Stem))
		for _, l := range st.Leaves {
			b.WriteString(fmt.Sprintf(" %d", l))
		}
		b.WriteString("\n")
	}
	return b.String()
}
