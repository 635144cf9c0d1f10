package cloud

import "gonum.org/v1/gonum/stat"

// StatsSummary aggregates a series of consumption samples.
type StatsSummary struct {
	Samples   int     `json:"samples"`
	TotalKWh  float64 `json:"total_kwh"`
	MeanKWh   float64 `json:"mean_kwh"`
	StdDevKWh float64 `json:"std_dev_kwh"`
	MinKWh    float64 `json:"min_kwh"`
	MaxKWh    float64 `json:"max_kwh"`
}

// Summarize computes consumption aggregates over statistics samples. An empty
// series yields the zero summary.
func Summarize(points []StatPoint) StatsSummary {
	if len(points) == 0 {
		return StatsSummary{}
	}
	values := make([]float64, len(points))
	sum := 0.0
	min, max := points[0].ConsumptionKWh, points[0].ConsumptionKWh
	for i, p := range points {
		values[i] = p.ConsumptionKWh
		sum += p.ConsumptionKWh
		if p.ConsumptionKWh < min {
			min = p.ConsumptionKWh
		}
		if p.ConsumptionKWh > max {
			max = p.ConsumptionKWh
		}
	}
	mean, std := stat.MeanStdDev(values, nil)
	if len(values) == 1 {
		std = 0
	}
	return StatsSummary{
		Samples:   len(points),
		TotalKWh:  sum,
		MeanKWh:   mean,
		StdDevKWh: std,
		MinKWh:    min,
		MaxKWh:    max,
	}
}
