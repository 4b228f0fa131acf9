package chart

import (
	"math"

	"gonum.org/v1/gonum/floats"
	"gonum.org/v1/gonum/stat"
	"gonum.org/v1/plot/plotter"
)

// bandwidth Scott 规则; 单个值或常数数据取 1
func bandwidth(values []float64) float64 {
	if len(values) < 2 {
		return 1
	}
	bw := stat.StdDev(values, nil) * math.Pow(float64(len(values)), -0.2)
	if !(bw > 0) {
		return 1
	}
	return bw
}

// gaussianKDE 高斯核密度曲线, 范围为 [min-3h, max+3h]
func gaussianKDE(values []float64, points int) plotter.XYs {
	h := bandwidth(values)
	lo := floats.Min(values) - 3*h
	hi := floats.Max(values) + 3*h
	norm := 1 / (float64(len(values)) * h * math.Sqrt(2*math.Pi))

	xys := make(plotter.XYs, points)
	step := (hi - lo) / float64(points-1)
	for i := range xys {
		x := lo + step*float64(i)
		var sum float64
		for _, v := range values {
			u := (x - v) / h
			sum += math.Exp(-0.5 * u * u)
		}
		xys[i] = plotter.XY{X: x, Y: sum * norm}
	}
	return xys
}
