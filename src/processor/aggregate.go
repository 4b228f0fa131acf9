// aggregate.go
package processor

import (
	"TripAnalysis/src/utils"
	"math"
	"sort"

	"github.com/go-gota/gota/dataframe"
	"github.com/go-gota/gota/series"
	"gonum.org/v1/gonum/stat"
)

// LabelValue 一个分类及其数值
type LabelValue struct {
	Label string  `json:"label"`
	Value float64 `json:"value"`
}

// HueCounts 两列交叉计数, Counts[hue][category]
type HueCounts struct {
	Categories []string    `json:"categories"`
	Hues       []string    `json:"hues"`
	Counts     [][]float64 `json:"counts"`
}

// Matrix 相关系数矩阵
type Matrix struct {
	Names  []string    `json:"names"`
	Values [][]float64 `json:"values"`
}

// CountBy 按首次出现顺序统计各取值行数
func CountBy(df dataframe.DataFrame, col string) []LabelValue {
	values := df.Col(col).Records()
	counts := make(map[string]int, len(values))
	for _, v := range values {
		counts[v]++
	}

	out := make([]LabelValue, 0, len(counts))
	for _, v := range utils.Unique(values) {
		out = append(out, LabelValue{Label: v, Value: float64(counts[v])})
	}
	return out
}

// CountByOrder 按给定顺序统计, 没有出现的标签计 0; 不在 order 中的取值追加在后
func CountByOrder(df dataframe.DataFrame, col string, order []string) []LabelValue {
	counts := CountBy(df, col)
	index := make(map[string]float64, len(counts))
	for _, c := range counts {
		index[c.Label] = c.Value
	}

	out := make([]LabelValue, 0, len(order)+len(counts))
	for _, label := range order {
		out = append(out, LabelValue{Label: label, Value: index[label]})
	}
	for _, c := range counts {
		if !utils.Contains(order, c.Label) {
			out = append(out, c)
		}
	}
	return out
}

// CountByHue x 列取值分组后再按 hue 列分色计数, 两个维度都按首次出现排序
func CountByHue(df dataframe.DataFrame, x, hue string) HueCounts {
	xs := df.Col(x).Records()
	hs := df.Col(hue).Records()

	hc := HueCounts{
		Categories: utils.Unique(xs),
		Hues:       utils.Unique(hs),
	}
	catIndex := make(map[string]int, len(hc.Categories))
	for i, c := range hc.Categories {
		catIndex[c] = i
	}
	hueIndex := make(map[string]int, len(hc.Hues))
	for i, h := range hc.Hues {
		hueIndex[h] = i
	}

	hc.Counts = make([][]float64, len(hc.Hues))
	for i := range hc.Counts {
		hc.Counts[i] = make([]float64, len(hc.Categories))
	}
	for i := range xs {
		hc.Counts[hueIndex[hs[i]]][catIndex[xs[i]]]++
	}
	return hc
}

// MaxByMonth 每月最大里程, 按日历顺序, 只包含有数据的月份
func MaxByMonth(df dataframe.DataFrame, monthCol, milesCol string) []LabelValue {
	if df.Nrow() == 0 {
		return nil
	}

	maxes := make(map[string]float64)
	for _, group := range df.GroupBy(monthCol).GetGroups() {
		if group.Nrow() == 0 {
			continue
		}
		month := group.Col(monthCol).Elem(0).String()
		maxes[month] = group.Col(milesCol).Max()
	}

	var out []LabelValue
	for _, month := range monthLabels {
		if v, ok := maxes[month]; ok {
			out = append(out, LabelValue{Label: month, Value: v})
		}
	}
	return out
}

// WeekdayCounts 各星期行程数, 按数量降序, 数量相同按周一到周日
func WeekdayCounts(df dataframe.DataFrame, col string) []LabelValue {
	counts := CountByOrder(df, col, weekdayLabels[:])

	out := counts[:0]
	for _, c := range counts {
		if c.Value > 0 {
			out = append(out, c)
		}
	}
	sort.SliceStable(out, func(i, j int) bool {
		return out[i].Value > out[j].Value
	})
	return out
}

// Values 数值列
func Values(df dataframe.DataFrame, col string) []float64 {
	return df.Col(col).Float()
}

// FilterBelow 数值列中小于 limit 的值
func FilterBelow(df dataframe.DataFrame, col string, limit float64) []float64 {
	filtered := df.Filter(dataframe.F{
		Colname:    col,
		Comparator: series.Less,
		Comparando: limit,
	})
	if filtered.Err != nil || filtered.Nrow() == 0 {
		return nil
	}
	return filtered.Col(col).Float()
}

// Correlation 数值列两两之间的皮尔逊相关系数; 常数列的系数为 NaN
func Correlation(df dataframe.DataFrame) Matrix {
	var m Matrix
	var cols [][]float64
	types := df.Types()
	for i, name := range df.Names() {
		if types[i] != series.Float && types[i] != series.Int {
			continue
		}
		m.Names = append(m.Names, name)
		cols = append(cols, df.Col(name).Float())
	}

	n := len(cols)
	constant := make([]bool, n)
	for i, c := range cols {
		constant[i] = len(c) < 2 || stat.Variance(c, nil) == 0
	}

	m.Values = make([][]float64, n)
	for i := range m.Values {
		m.Values[i] = make([]float64, n)
	}
	for i := 0; i < n; i++ {
		for j := i; j < n; j++ {
			var r float64
			switch {
			case constant[i] || constant[j]:
				r = math.NaN()
			case i == j:
				r = 1
			default:
				r = stat.Correlation(cols[i], cols[j], nil)
			}
			m.Values[i][j] = r
			m.Values[j][i] = r
		}
	}
	return m
}
