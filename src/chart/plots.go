// plots.go
package chart

import (
	"TripAnalysis/src/processor"
	"fmt"
	"image/color"
	"io"
	"math"

	"gonum.org/v1/plot"
	"gonum.org/v1/plot/palette/brewer"
	"gonum.org/v1/plot/plotter"
	"gonum.org/v1/plot/plotutil"
	"gonum.org/v1/plot/vg"
	"gonum.org/v1/plot/vg/draw"
	"gonum.org/v1/plot/vg/vgimg"
)

const (
	maxAnnotated = 20 // 超过则热力图不标注数值
	maxTickNames = 40 // 超过则热力图不显示列名
	histBins     = 20
	kdePoints    = 200
)

// single 绘制一张图
func single(w io.Writer, opts Options, build func() (*plot.Plot, error)) error {
	p, err := build()
	if err != nil {
		return err
	}
	wt, err := p.WriterTo(opts.Width, opts.Height, "png")
	if err != nil {
		return err
	}
	_, err = wt.WriteTo(w)
	return err
}

// sideBySide 多张图横向并排
func sideBySide(w io.Writer, opts Options, builds ...func() (*plot.Plot, error)) error {
	row := make([]*plot.Plot, len(builds))
	for i, build := range builds {
		p, err := build()
		if err != nil {
			return err
		}
		row[i] = p
	}

	img := vgimg.New(opts.Width, opts.Height)
	dc := draw.New(img)
	tiles := draw.Tiles{
		Rows: 1,
		Cols: len(row),
		PadX: vg.Millimeter * 4,
	}
	canvases := plot.Align([][]*plot.Plot{row}, tiles, dc)
	for j, p := range row {
		p.Draw(canvases[0][j])
	}

	_, err := vgimg.PngCanvas{Canvas: img}.WriteTo(w)
	return err
}

func newPlot(title, xLabel, yLabel string) *plot.Plot {
	p := plot.New()
	p.Title.Text = title
	p.X.Label.Text = xLabel
	p.Y.Label.Text = yLabel
	return p
}

// barWidth 按可用宽度和柱子数计算柱宽
func barWidth(width vg.Length, n int) vg.Length {
	bw := width * 0.6 / vg.Length(n)
	if bw > vg.Points(30) {
		bw = vg.Points(30)
	}
	if bw < vg.Points(1) {
		bw = vg.Points(1)
	}
	return bw
}

// countPlot 计数柱状图
func countPlot(title, xLabel string, counts []processor.LabelValue, width vg.Length, rotate bool) (*plot.Plot, error) {
	if len(counts) == 0 {
		return nil, ErrNoData
	}

	values := make(plotter.Values, len(counts))
	names := make([]string, len(counts))
	for i, c := range counts {
		values[i] = c.Value
		names[i] = c.Label
	}

	p := newPlot(title, xLabel, "count")
	bars, err := plotter.NewBarChart(values, barWidth(width, len(counts)))
	if err != nil {
		return nil, err
	}
	bars.Color = plotutil.Color(0)
	bars.LineStyle.Width = 0

	p.Add(bars)
	p.NominalX(names...)
	if rotate {
		p.X.Tick.Label.Rotation = math.Pi / 4
	}
	return p, nil
}

// groupedCountPlot 分组计数柱状图, 每个 hue 一种颜色
func groupedCountPlot(title, xLabel string, hc processor.HueCounts, width vg.Length) (*plot.Plot, error) {
	if len(hc.Categories) == 0 || len(hc.Hues) == 0 {
		return nil, ErrNoData
	}

	p := newPlot(title, xLabel, "count")
	bw := barWidth(width, len(hc.Categories)*len(hc.Hues))
	center := float64(len(hc.Hues)-1) / 2

	for i, hue := range hc.Hues {
		bars, err := plotter.NewBarChart(plotter.Values(hc.Counts[i]), bw)
		if err != nil {
			return nil, err
		}
		bars.Color = plotutil.Color(i)
		bars.LineStyle.Width = 0
		bars.Offset = vg.Length(float64(i)-center) * bw

		p.Add(bars)
		p.Legend.Add(hue, bars)
	}
	p.Legend.Top = true
	p.NominalX(hc.Categories...)
	p.X.Tick.Label.Rotation = math.Pi / 2
	return p, nil
}

// corrGrid 将相关矩阵适配为 plotter.GridXYZ, 第一行画在最上方, NaN 按 0 着色
type corrGrid struct {
	m processor.Matrix
}

func (g corrGrid) Dims() (c, r int) {
	n := len(g.m.Names)
	return n, n
}

func (g corrGrid) Z(c, r int) float64 {
	v := g.m.Values[len(g.m.Names)-1-r][c]
	if math.IsNaN(v) {
		return 0
	}
	return v
}

func (g corrGrid) X(c int) float64 { return float64(c) }
func (g corrGrid) Y(r int) float64 { return float64(r) }

// heatmap 相关系数热力图, BrBG 配色, 取值范围固定为 [-1, 1]
func heatmap(title string, m processor.Matrix) (*plot.Plot, error) {
	n := len(m.Names)
	if n < 2 {
		return nil, ErrNoData
	}

	pal, err := brewer.GetPalette(brewer.TypeAny, "BrBG", 11)
	if err != nil {
		return nil, err
	}

	grid := corrGrid{m: m}
	hm := plotter.NewHeatMap(grid, pal)
	hm.Min, hm.Max = -1, 1

	p := newPlot(title, "", "")
	p.Add(hm)

	if n <= maxAnnotated {
		var labels plotter.XYLabels
		for r := 0; r < n; r++ {
			for c := 0; c < n; c++ {
				labels.XYs = append(labels.XYs, plotter.XY{X: float64(c), Y: float64(r)})
				labels.Labels = append(labels.Labels, fmt.Sprintf("%.2f", grid.Z(c, r)))
			}
		}
		annotations, err := plotter.NewLabels(labels)
		if err != nil {
			return nil, err
		}
		p.Add(annotations)
	}

	if n <= maxTickNames {
		yNames := make([]string, n)
		for i, name := range m.Names {
			yNames[n-1-i] = name
		}
		p.NominalX(m.Names...)
		p.NominalY(yNames...)
		p.X.Tick.Label.Rotation = math.Pi / 2
	} else {
		p.HideAxes()
	}
	return p, nil
}

// linePlot 折线加数据点
func linePlot(title, xLabel, yLabel string, values []processor.LabelValue) (*plot.Plot, error) {
	if len(values) == 0 {
		return nil, ErrNoData
	}

	xys := make(plotter.XYs, len(values))
	names := make([]string, len(values))
	for i, v := range values {
		xys[i] = plotter.XY{X: float64(i), Y: v.Value}
		names[i] = v.Label
	}

	p := newPlot(title, xLabel, yLabel)
	line, points, err := plotter.NewLinePoints(xys)
	if err != nil {
		return nil, err
	}
	line.Color = plotutil.Color(0)
	points.Color = plotutil.Color(0)
	points.Shape = draw.CircleGlyph{}

	p.Add(plotter.NewGrid(), line, points)
	p.NominalX(names...)
	return p, nil
}

// boxPlot 箱线图
func boxPlot(title, label string, values []float64) (*plot.Plot, error) {
	if len(values) == 0 {
		return nil, ErrNoData
	}

	p := newPlot(title, "", label)
	box, err := plotter.NewBoxPlot(vg.Points(40), 0, plotter.Values(values))
	if err != nil {
		return nil, err
	}
	box.FillColor = plotutil.Color(0)

	p.Add(box)
	p.NominalX(label)
	return p, nil
}

// distPlot 归一化直方图叠加核密度曲线
func distPlot(title, label string, values []float64) (*plot.Plot, error) {
	if len(values) == 0 {
		return nil, ErrNoData
	}

	p := newPlot(title, label, "density")
	hist, err := plotter.NewHist(plotter.Values(values), histBins)
	if err != nil {
		return nil, err
	}
	hist.Normalize(1)
	hist.FillColor = color.RGBA{R: 76, G: 114, B: 176, A: 160}

	curve, err := plotter.NewLine(gaussianKDE(values, kdePoints))
	if err != nil {
		return nil, err
	}
	curve.Color = plotutil.Color(1)
	curve.Width = vg.Points(1.5)

	p.Add(hist, curve)
	return p, nil
}
