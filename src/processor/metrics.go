// metrics.go
package processor

import (
	"sort"

	"gonum.org/v1/gonum/floats"
	"gonum.org/v1/gonum/stat"
)

// Metrics 运行摘要, 用于日志、推送和 /api/summary
type Metrics struct {
	Trips            int          `json:"trips"`
	TotalMiles       float64      `json:"total_miles"`
	MeanMiles        float64      `json:"mean_miles"`
	MedianMiles      float64      `json:"median_miles"`
	MaxMiles         float64      `json:"max_miles"`
	FirstTrip        string       `json:"first_trip"`
	LastTrip         string       `json:"last_trip"`
	Categories       []LabelValue `json:"categories"`
	TopPurpose       string       `json:"top_purpose"`
	BusiestTimeOfDay string       `json:"busiest_time_of_day"`
	BusiestWeekday   string       `json:"busiest_weekday"`
}

// CalculateMetrics 计算汇总指标
func CalculateMetrics(ds *Dataset) Metrics {
	df := ds.Enriched
	m := Metrics{Trips: df.Nrow()}
	if m.Trips == 0 {
		return m
	}

	miles := Values(df, ds.Columns.Miles)
	m.TotalMiles = floats.Sum(miles)
	m.MeanMiles = stat.Mean(miles, nil)
	m.MaxMiles = floats.Max(miles)
	m.MedianMiles = median(miles)

	starts := df.Col(ds.Columns.Start).Records()
	sort.Strings(starts)
	m.FirstTrip = starts[0]
	m.LastTrip = starts[len(starts)-1]

	m.Categories = CountBy(df, ds.Columns.Category)
	m.TopPurpose = top(CountBy(df, ds.Columns.Purpose))
	m.BusiestTimeOfDay = top(CountBy(df, ds.Columns.TimeOfDay))
	if days := WeekdayCounts(df, ds.Columns.Weekday); len(days) > 0 {
		m.BusiestWeekday = days[0].Label
	}
	return m
}

func median(values []float64) float64 {
	sorted := append([]float64(nil), values...)
	sort.Float64s(sorted)
	n := len(sorted)
	if n%2 == 1 {
		return sorted[n/2]
	}
	return (sorted[n/2-1] + sorted[n/2]) / 2
}

// top 数量最多的标签, 数量相同取先出现的
func top(counts []LabelValue) string {
	best := LabelValue{Value: -1}
	for _, c := range counts {
		if c.Value > best.Value {
			best = c
		}
	}
	return best.Label
}
