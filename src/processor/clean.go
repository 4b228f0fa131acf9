// clean.go
package processor

import (
	"TripAnalysis/src/config"
	"TripAnalysis/src/utils"
	"fmt"
	"math"
	"strconv"
	"strings"

	"github.com/go-gota/gota/dataframe"
	"github.com/go-gota/gota/series"
)

const timestampLayout = "2006-01-02 15:04:05"

// CleanReport 清洗过程各步骤的行数统计
type CleanReport struct {
	RawRows           int            `json:"raw_rows"`
	FilledPurposes    int            `json:"filled_purposes"`
	InvalidTimestamps int            `json:"invalid_timestamps"`
	InvalidMiles      int            `json:"invalid_miles"`
	DroppedMissing    int            `json:"dropped_missing"`
	DroppedDuplicates int            `json:"dropped_duplicates"`
	Rows              int            `json:"rows"`
	UniqueValues      map[string]int `json:"unique_values"`
}

// Clean 填充缺失用途、解析时间和里程、删除缺失行和重复行
// 只有缺少必需列和清洗后为空会返回错误, 无法解析的值按缺失处理
func Clean(raw dataframe.DataFrame, dcfg *config.DataConfig) (dataframe.DataFrame, CleanReport, error) {
	report := CleanReport{}
	if raw.Err != nil {
		return raw, report, raw.Err
	}

	cols := ColumnsFrom(dcfg)
	if missing := utils.MissingColumns(raw, cols.required()...); len(missing) > 0 {
		return raw, report, fmt.Errorf("%w: %s", ErrMissingColumn, strings.Join(missing, ", "))
	}

	report.RawRows = raw.Nrow()
	steps := []DataProcess{
		fillPurpose{col: cols.Purpose, sentinel: dcfg.PurposeSentinel, report: &report},
		parseColumns{cols: cols, layouts: dcfg.TimeLayouts, report: &report},
		dropMissing{report: &report},
		dropDuplicates{report: &report},
		typeColumns{cols: cols},
	}

	df := raw
	for _, step := range steps {
		if err := step.DataProcessFunc(&df); err != nil {
			return raw, report, err
		}
	}

	report.Rows = df.Nrow()
	return df, report, nil
}

// mutate 替换(或追加)一列
func mutate(df *dataframe.DataFrame, s series.Series) error {
	out := df.Mutate(s)
	if out.Err != nil {
		return fmt.Errorf("更新列 %s 失败: %w", s.Name, out.Err)
	}
	*df = out
	return nil
}

type fillPurpose struct {
	col      string
	sentinel string
	report   *CleanReport
}

// DataProcessFunc 缺失的用途填充为哨兵值
func (s fillPurpose) DataProcessFunc(df *dataframe.DataFrame) error {
	values := df.Col(s.col).Records()
	for i, v := range values {
		if utils.IsMissing(v) {
			values[i] = s.sentinel
			s.report.FilledPurposes++
		}
	}
	return mutate(df, series.New(values, series.String, s.col))
}

type parseColumns struct {
	cols    Columns
	layouts []string
	report  *CleanReport
}

// DataProcessFunc 时间统一为 2006-01-02 15:04:05, 里程统一为最短小数表示; 无法解析置空
func (s parseColumns) DataProcessFunc(df *dataframe.DataFrame) error {
	for _, name := range []string{s.cols.Start, s.cols.End} {
		values := df.Col(name).Records()
		for i, v := range values {
			t, ok := utils.ParseTime(v, s.layouts)
			if !ok {
				if !utils.IsMissing(v) {
					s.report.InvalidTimestamps++
				}
				values[i] = ""
				continue
			}
			values[i] = t.Format(timestampLayout)
		}
		if err := mutate(df, series.New(values, series.String, name)); err != nil {
			return err
		}
	}

	values := df.Col(s.cols.Miles).Records()
	for i, v := range values {
		miles, ok := parseMiles(v)
		if !ok {
			if !utils.IsMissing(v) {
				s.report.InvalidMiles++
			}
			values[i] = ""
			continue
		}
		values[i] = strconv.FormatFloat(miles, 'f', -1, 64)
	}
	return mutate(df, series.New(values, series.String, s.cols.Miles))
}

func parseMiles(v string) (float64, bool) {
	v = strings.TrimSpace(v)
	if utils.IsMissing(v) {
		return 0, false
	}
	miles, err := strconv.ParseFloat(v, 64)
	if err != nil || math.IsNaN(miles) || math.IsInf(miles, 0) {
		return 0, false
	}
	return miles, true
}

type dropMissing struct {
	report *CleanReport
}

// DataProcessFunc 删除任一列缺失的行
func (s dropMissing) DataProcessFunc(df *dataframe.DataFrame) error {
	records := df.Records()
	complete := 0
	for _, row := range records[1:] {
		if !rowHasMissing(row) {
			complete++
		}
	}
	if complete == 0 {
		s.report.DroppedMissing = len(records) - 1
		return ErrEmptyDataset
	}
	if complete == len(records)-1 {
		return nil
	}

	notMissing := func(el series.Element) bool {
		return !utils.IsMissing(el.String())
	}
	filters := make([]dataframe.F, 0, df.Ncol())
	for _, name := range df.Names() {
		filters = append(filters, dataframe.F{
			Colname:    name,
			Comparator: series.CompFunc,
			Comparando: notMissing,
		})
	}

	out := df.FilterAggregation(dataframe.And, filters...)
	if out.Err != nil {
		return fmt.Errorf("删除缺失行失败: %w", out.Err)
	}
	s.report.DroppedMissing = df.Nrow() - out.Nrow()
	*df = out
	return nil
}

func rowHasMissing(row []string) bool {
	for _, v := range row {
		if utils.IsMissing(v) {
			return true
		}
	}
	return false
}

type dropDuplicates struct {
	report *CleanReport
}

// DataProcessFunc 删除所有列完全相同的行, 保留第一次出现的
func (s dropDuplicates) DataProcessFunc(df *dataframe.DataFrame) error {
	records := df.Records()[1:]
	seen := make(map[string]struct{}, len(records))
	keep := make([]int, 0, len(records))
	for i, row := range records {
		key := strings.Join(row, "\x1f")
		if _, ok := seen[key]; ok {
			continue
		}
		seen[key] = struct{}{}
		keep = append(keep, i)
	}
	if len(keep) == len(records) {
		return nil
	}

	out := df.Subset(keep)
	if out.Err != nil {
		return fmt.Errorf("删除重复行失败: %w", out.Err)
	}
	s.report.DroppedDuplicates = len(records) - len(keep)
	*df = out
	return nil
}

type typeColumns struct {
	cols Columns
}

// DataProcessFunc 里程列转为浮点
func (s typeColumns) DataProcessFunc(df *dataframe.DataFrame) error {
	values := df.Col(s.cols.Miles).Records()
	miles := make([]float64, len(values))
	for i, v := range values {
		f, ok := parseMiles(v)
		if !ok {
			return fmt.Errorf("里程值无效: %q", v)
		}
		miles[i] = f
	}
	return mutate(df, series.New(miles, series.Float, s.cols.Miles))
}
