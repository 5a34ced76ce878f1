package services

import (
	"sort"

	"gonum.org/v1/gonum/floats"
	"gonum.org/v1/gonum/stat"
)

// quantile returns the p-quantile of sorted values, interpolating linearly between
// the closest ranks (the same rule spreadsheet and dataframe tools use).
func quantile(p float64, sorted []float64) float64 {
	n := len(sorted)
	if n == 0 {
		return 0
	}
	if n == 1 {
		return sorted[0]
	}
	pos := p * float64(n-1)
	lo := int(pos)
	if lo >= n-1 {
		return sorted[n-1]
	}
	frac := pos - float64(lo)
	return sorted[lo] + frac*(sorted[lo+1]-sorted[lo])
}

func median(values []float64) float64 {
	sorted := append([]float64(nil), values...)
	sort.Float64s(sorted)
	return quantile(0.5, sorted)
}

// NumericStats describes one numeric column.
type NumericStats struct {
	Count int     `json:"count"`
	Mean  float64 `json:"mean"`
	Std   float64 `json:"std"`
	Min   float64 `json:"min"`
	Q25   float64 `json:"25%"`
	Q50   float64 `json:"50%"`
	Q75   float64 `json:"75%"`
	Max   float64 `json:"max"`
}

func describeNumbers(values []float64) NumericStats {
	if len(values) == 0 {
		return NumericStats{}
	}
	sorted := append([]float64(nil), values...)
	sort.Float64s(sorted)

	out := NumericStats{
		Count: len(sorted),
		Min:   floats.Min(sorted),
		Max:   floats.Max(sorted),
		Q25:   quantile(0.25, sorted),
		Q50:   quantile(0.5, sorted),
		Q75:   quantile(0.75, sorted),
	}
	if len(sorted) > 1 {
		out.Mean, out.Std = stat.MeanStdDev(sorted, nil)
	} else {
		out.Mean = stat.Mean(sorted, nil)
	}
	return out
}
