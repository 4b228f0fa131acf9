// chart.go
package chart

import (
	"TripAnalysis/src/processor"
	"bytes"
	"errors"
	"fmt"
	"io"

	"gonum.org/v1/plot"
	"gonum.org/v1/plot/vg"
)

var ErrNoData = errors.New("没有可绘制的数据")

// Options 图表尺寸
type Options struct {
	Width       vg.Length
	Height      vg.Length
	MilesLimits []float64 // 里程分段上限, 依次用于箱线图和分布图
}

// DefaultOptions 16cm x 8cm, 上限 100/40
func DefaultOptions() Options {
	return Options{
		Width:       16 * vg.Centimeter,
		Height:      8 * vg.Centimeter,
		MilesLimits: []float64{100, 40},
	}
}

// Figure 一张图: 文件名、标题、页面说明和绘制函数
type Figure struct {
	Name        string
	Title       string
	Description string

	render func(w io.Writer) error
}

// WritePNG 绘制为 png
func (f Figure) WritePNG(w io.Writer) error {
	if err := f.render(w); err != nil {
		return fmt.Errorf("绘制 %s 失败: %w", f.Name, err)
	}
	return nil
}

// PNG 绘制为 png 字节
func (f Figure) PNG() ([]byte, error) {
	var buf bytes.Buffer
	if err := f.WritePNG(&buf); err != nil {
		return nil, err
	}
	return buf.Bytes(), nil
}

// Find 按名称查找
func Find(figures []Figure, name string) (Figure, bool) {
	for _, f := range figures {
		if f.Name == name {
			return f, true
		}
	}
	return Figure{}, false
}

// Catalog 固定顺序的全部图表
func Catalog(ds *processor.Dataset, opts Options) []Figure {
	if opts.Width <= 0 || opts.Height <= 0 {
		def := DefaultOptions()
		opts.Width, opts.Height = def.Width, def.Height
	}
	if len(opts.MilesLimits) < 2 {
		opts.MilesLimits = DefaultOptions().MilesLimits
	}

	df := ds.Enriched
	cols := ds.Columns
	boxLimit, distLimit := opts.MilesLimits[0], opts.MilesLimits[1]

	return []Figure{
		{
			Name:        "category_purpose",
			Title:       "Category and Purpose Distribution",
			Description: "Number of rides by category (Business/Personal) and by purpose (Meeting, Meal/Entertain, ...).",
			render: func(w io.Writer) error {
				return sideBySide(w, opts,
					func() (*plot.Plot, error) {
						return countPlot("Ride Category", cols.Category, processor.CountBy(df, cols.Category), opts.Width/2, false)
					},
					func() (*plot.Plot, error) {
						return countPlot("Ride Purpose", cols.Purpose, processor.CountBy(df, cols.Purpose), opts.Width/2, true)
					},
				)
			},
		},
		{
			Name:        "day_night",
			Title:       "Time of Day Distribution",
			Description: "How rides are distributed throughout the day: morning, afternoon, evening and night.",
			render: func(w io.Writer) error {
				counts := processor.CountByOrder(df, cols.TimeOfDay, processor.TimeOfDayLabels())
				return single(w, opts, func() (*plot.Plot, error) {
					return countPlot("Time of Day", cols.TimeOfDay, counts, opts.Width, false)
				})
			},
		},
		{
			Name:        "purpose_category",
			Title:       "Purpose vs Category",
			Description: "How ride purposes vary across business and personal categories.",
			render: func(w io.Writer) error {
				return single(w, opts, func() (*plot.Plot, error) {
					return groupedCountPlot("Purpose Breakdown by Category", cols.Purpose,
						processor.CountByHue(df, cols.Purpose, cols.Category), opts.Width)
				})
			},
		},
		{
			Name:        "correlation",
			Title:       "Correlation of Encoded Features",
			Description: "Pearson correlation between mileage, hour and the one-hot encoded text columns.",
			render: func(w io.Writer) error {
				return single(w, opts, func() (*plot.Plot, error) {
					return heatmap("Correlation", processor.Correlation(ds.Encoded))
				})
			},
		},
		{
			Name:        "monthly_miles",
			Title:       "Monthly Ride Trends",
			Description: "Maximum miles travelled in a single ride for each month.",
			render: func(w io.Writer) error {
				return single(w, opts, func() (*plot.Plot, error) {
					return linePlot("Max Miles per Month", "Month", "Max Miles",
						processor.MaxByMonth(df, cols.Month, cols.Miles))
				})
			},
		},
		{
			Name:        "day_distribution",
			Title:       "Day of the Week Analysis",
			Description: "How rides are distributed across the days of the week, busiest day first.",
			render: func(w io.Writer) error {
				return single(w, opts, func() (*plot.Plot, error) {
					p, err := countPlot("Rides per Weekday", "Day", processor.WeekdayCounts(df, cols.Weekday), opts.Width, false)
					if err == nil {
						p.Y.Label.Text = "Ride Count"
					}
					return p, err
				})
			},
		},
		{
			Name:        "miles_boxplot",
			Title:       "Ride Distance Analysis",
			Description: "Box plot of miles over all rides, useful to spot outliers.",
			render: func(w io.Writer) error {
				return single(w, opts, func() (*plot.Plot, error) {
					return boxPlot("Boxplot of Miles", cols.Miles, processor.Values(df, cols.Miles))
				})
			},
		},
		{
			Name:        fmt.Sprintf("miles_under_%g_boxplot", boxLimit),
			Title:       fmt.Sprintf("Rides under %g Miles", boxLimit),
			Description: fmt.Sprintf("Box plot of miles for rides shorter than %g miles.", boxLimit),
			render: func(w io.Writer) error {
				return single(w, opts, func() (*plot.Plot, error) {
					return boxPlot(fmt.Sprintf("Boxplot of Miles < %g", boxLimit), cols.Miles,
						processor.FilterBelow(df, cols.Miles, boxLimit))
				})
			},
		},
		{
			Name:        fmt.Sprintf("miles_under_%g_distplot", distLimit),
			Title:       fmt.Sprintf("Distribution of Rides under %g Miles", distLimit),
			Description: "Histogram of common trip distances with a kernel density estimate.",
			render: func(w io.Writer) error {
				return single(w, opts, func() (*plot.Plot, error) {
					return distPlot(fmt.Sprintf("Distribution of Rides < %g Miles", distLimit), cols.Miles,
						processor.FilterBelow(df, cols.Miles, distLimit))
				})
			},
		},
	}
}
