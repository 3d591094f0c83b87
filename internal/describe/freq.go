package describe

import (
	"fmt"
	"math"
	"sort"
)

// FrequencyRow is one distinct value of a discrete distribution.
type FrequencyRow struct {
	Value              float64 `json:"value" yaml:"value"`
	Count              int     `json:"count" yaml:"count"`
	Relative           float64 `json:"relative" yaml:"relative"` // fraction of N
	Cumulative         int     `json:"cumulative" yaml:"cumulative"`
	CumulativeRelative float64 `json:"cumulative_relative" yaml:"cumulative_relative"`
}

// FrequencyTable is a discrete frequency distribution sorted by value.
type FrequencyTable struct {
	N    int            `json:"n" yaml:"n"`
	Rows []FrequencyRow `json:"rows" yaml:"rows"`
}

// Frequencies tabulates each distinct value with its absolute, relative and
// cumulative frequencies.
func Frequencies(values []float64) (*FrequencyTable, error) {
	if len(values) == 0 {
		return nil, ErrEmptySample
	}
	counts := map[float64]int{}
	for i, v := range values {
		if math.IsNaN(v) || math.IsInf(v, 0) {
			return nil, fmt.Errorf("value %d is not finite", i)
		}
		counts[v]++
	}
	keys := make([]float64, 0, len(counts))
	for k := range counts {
		keys = append(keys, k)
	}
	sort.Float64s(keys)

	n := len(values)
	t := &FrequencyTable{N: n, Rows: make([]FrequencyRow, 0, len(keys))}
	cum := 0
	for _, k := range keys {
		c := counts[k]
		cum += c
		t.Rows = append(t.Rows, FrequencyRow{
			Value:              k,
			Count:              c,
			Relative:           float64(c) / float64(n),
			Cumulative:         cum,
			CumulativeRelative: float64(cum) / float64(n),
		})
	}
	return t, nil
}

// ClassRow is one interval [Lower, Upper) of a grouped distribution. The last
// class also includes its upper bound.
type ClassRow struct {
	Lower             float64 `json:"lower" yaml:"lower"`
	Upper             float64 `json:"upper" yaml:"upper"`
	Midpoint          float64 `json:"midpoint" yaml:"midpoint"`
	Count             int     `json:"count" yaml:"count"`
	Percent           float64 `json:"percent" yaml:"percent"`
	Cumulative        int     `json:"cumulative" yaml:"cumulative"`
	CumulativePercent float64 `json:"cumulative_percent" yaml:"cumulative_percent"`
}

// ClassTable is a grouped frequency distribution.
type ClassTable struct {
	N       int        `json:"n" yaml:"n"`
	K       int        `json:"k" yaml:"k"` // Sturges class count
	Width   float64    `json:"width" yaml:"width"`
	Classes []ClassRow `json:"classes" yaml:"classes"`
}

// SturgesClasses returns int(1 + 3.322·log10 n).
func SturgesClasses(n int) int {
	if n <= 1 {
		return 1
	}
	return int(1 + 3.322*math.Log10(float64(n)))
}

// Classes groups values into Sturges intervals of integer width starting at
// floor(min). If rounding leaves the maximum beyond the last edge, classes are
// appended until every value is counted.
func Classes(values []float64) (*ClassTable, error) {
	if len(values) == 0 {
		return nil, ErrEmptySample
	}
	lo, hi := math.Inf(1), math.Inf(-1)
	for i, v := range values {
		if math.IsNaN(v) || math.IsInf(v, 0) {
			return nil, fmt.Errorf("value %d is not finite", i)
		}
		lo = math.Min(lo, v)
		hi = math.Max(hi, v)
	}
	n := len(values)
	k := SturgesClasses(n)
	width := math.Ceil((hi - lo) / float64(k))
	if width == 0 {
		width = 1
	}
	start := math.Floor(lo)
	classes := k
	for start+float64(classes)*width < hi {
		classes++
	}

	t := &ClassTable{N: n, K: k, Width: width, Classes: make([]ClassRow, classes)}
	for i := range t.Classes {
		a := start + float64(i)*width
		t.Classes[i] = ClassRow{Lower: a, Upper: a + width, Midpoint: a + width/2}
	}
	last := classes - 1
	for _, v := range values {
		idx := int(math.Floor((v - start) / width))
		if idx > last {
			idx = last
		}
		t.Classes[idx].Count++
	}
	cum := 0
	for i := range t.Classes {
		c := &t.Classes[i]
		cum += c.Count
		c.Percent = float64(c.Count) / float64(n) * 100
		c.Cumulative = cum
		c.CumulativePercent = float64(cum) / float64(n) * 100
	}
	return t, nil
}
