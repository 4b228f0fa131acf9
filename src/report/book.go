// book.go
package report

import (
	"TripAnalysis/src/chart"
	"TripAnalysis/src/processor"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"time"
)

// Chart 绘制好的图
type Chart struct {
	Name        string
	Title       string
	Description string
	PNG         []byte
}

// Table 两列汇总表
type Table struct {
	Title  string
	Header [2]string
	Rows   []processor.LabelValue
}

// Book 图册: 汇总指标、清洗报告、聚合表和全部图表(不含明细数据)
type Book struct {
	Title     string
	RunID     string
	Source    string
	Generated time.Time
	Metrics   processor.Metrics
	Report    processor.CleanReport
	Tables    []Table
	Charts    []Chart
}

// NewBook 由数据集和已绘制的图构造图册
func NewBook(title, runID, source string, ds *processor.Dataset, charts []Chart) *Book {
	df := ds.Enriched
	cols := ds.Columns
	return &Book{
		Title:     title,
		RunID:     runID,
		Source:    source,
		Generated: time.Now(),
		Metrics:   processor.CalculateMetrics(ds),
		Report:    ds.Report,
		Tables: []Table{
			{Title: "Rides by Category", Header: [2]string{cols.Category, "count"}, Rows: processor.CountBy(df, cols.Category)},
			{Title: "Rides by Purpose", Header: [2]string{cols.Purpose, "count"}, Rows: processor.CountBy(df, cols.Purpose)},
			{Title: "Rides by Time of Day", Header: [2]string{cols.TimeOfDay, "count"}, Rows: processor.CountByOrder(df, cols.TimeOfDay, processor.TimeOfDayLabels())},
			{Title: "Max Miles per Month", Header: [2]string{cols.Month, "max miles"}, Rows: processor.MaxByMonth(df, cols.Month, cols.Miles)},
			{Title: "Rides per Weekday", Header: [2]string{cols.Weekday, "count"}, Rows: processor.WeekdayCounts(df, cols.Weekday)},
		},
		Charts: charts,
	}
}

// Render 依次绘制全部图表, 每完成一张调用一次 done; 没有数据的图跳过并返回其名称
func Render(figures []chart.Figure, done func(name string)) ([]Chart, []string, error) {
	var (
		charts  []Chart
		skipped []string
	)
	for _, f := range figures {
		data, err := f.PNG()
		if done != nil {
			done(f.Name)
		}
		if errors.Is(err, chart.ErrNoData) {
			skipped = append(skipped, f.Name)
			continue
		}
		if err != nil {
			return charts, skipped, err
		}
		charts = append(charts, Chart{
			Name:        f.Name,
			Title:       f.Title,
			Description: f.Description,
			PNG:         data,
		})
	}
	return charts, skipped, nil
}

// SavePNG 写入 dir/<name>.png, 返回文件路径
func SavePNG(dir string, charts []Chart) ([]string, error) {
	if err := os.MkdirAll(dir, 0755); err != nil {
		return nil, fmt.Errorf("创建输出目录失败: %w", err)
	}

	paths := make([]string, 0, len(charts))
	for _, c := range charts {
		path := filepath.Join(dir, c.Name+".png")
		if err := os.WriteFile(path, c.PNG, 0644); err != nil {
			return paths, fmt.Errorf("保存图表 %s 失败: %w", c.Name, err)
		}
		paths = append(paths, path)
	}
	return paths, nil
}

// summaryRows 汇总指标和清洗报告, 图册首页使用
func summaryRows(b *Book) [][2]string {
	m := b.Metrics
	r := b.Report
	return [][2]string{
		{"Run", b.RunID},
		{"Source", b.Source},
		{"Generated", b.Generated.Format("2006-01-02 15:04:05")},
		{"Trips", fmt.Sprint(m.Trips)},
		{"Total miles", fmt.Sprintf("%.1f", m.TotalMiles)},
		{"Mean miles", fmt.Sprintf("%.2f", m.MeanMiles)},
		{"Median miles", fmt.Sprintf("%.2f", m.MedianMiles)},
		{"Max miles", fmt.Sprintf("%.1f", m.MaxMiles)},
		{"First trip", m.FirstTrip},
		{"Last trip", m.LastTrip},
		{"Top purpose", m.TopPurpose},
		{"Busiest time of day", m.BusiestTimeOfDay},
		{"Busiest weekday", m.BusiestWeekday},
		{"Raw rows", fmt.Sprint(r.RawRows)},
		{"Filled purposes", fmt.Sprint(r.FilledPurposes)},
		{"Invalid timestamps", fmt.Sprint(r.InvalidTimestamps)},
		{"Invalid miles", fmt.Sprint(r.InvalidMiles)},
		{"Dropped (missing)", fmt.Sprint(r.DroppedMissing)},
		{"Dropped (duplicate)", fmt.Sprint(r.DroppedDuplicates)},
		{"Rows analysed", fmt.Sprint(r.Rows)},
	}
}
