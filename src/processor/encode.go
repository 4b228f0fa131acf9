// encode.go
package processor

import (
	"TripAnalysis/src/utils"
	"fmt"
	"sort"

	"github.com/go-gota/gota/dataframe"
	"github.com/go-gota/gota/series"
)

// EncodeColumns 需要独热编码的文本列(时间戳和衍生标签除外), 保持表中顺序
func EncodeColumns(df dataframe.DataFrame, cols Columns) []string {
	skip := cols.notEncoded()
	types := df.Types()

	var out []string
	for i, name := range df.Names() {
		if types[i] != series.String || utils.Contains(skip, name) {
			continue
		}
		out = append(out, name)
	}
	return out
}

// UniqueCounts 每列不同取值的个数
func UniqueCounts(df dataframe.DataFrame, cols []string) map[string]int {
	counts := make(map[string]int, len(cols))
	for _, col := range cols {
		counts[col] = len(utils.Unique(df.Col(col).Records()))
	}
	return counts
}

// OneHot 对 cols 逐列编码: k 个取值(排序后)生成 k 个 "<列名>_<取值>" 浮点指示列,
// 原文本列从结果中去掉
func OneHot(df dataframe.DataFrame, cols []string) (dataframe.DataFrame, error) {
	if len(cols) == 0 {
		return df, nil
	}
	if missing := utils.MissingColumns(df, cols...); len(missing) > 0 {
		return df, fmt.Errorf("%w: %v", ErrMissingColumn, missing)
	}

	// 保留列和已生成的编码列都不能重名
	taken := make(map[string]struct{}, df.Ncol())
	for _, name := range df.Names() {
		if !utils.Contains(cols, name) {
			taken[name] = struct{}{}
		}
	}

	var indicators []series.Series
	for _, col := range cols {
		values := df.Col(col).Records()
		categories := utils.Unique(values)
		sort.Strings(categories)

		for _, category := range categories {
			ind := make([]float64, len(values))
			for i, v := range values {
				if v == category {
					ind[i] = 1
				}
			}
			name := col + "_" + category
			if _, dup := taken[name]; dup {
				return df, fmt.Errorf("%w: %s", ErrNameConflict, name)
			}
			taken[name] = struct{}{}
			indicators = append(indicators, series.New(ind, series.Float, name))
		}
	}

	var out dataframe.DataFrame
	if len(cols) == df.Ncol() {
		out = dataframe.New(indicators...)
	} else {
		out = df.Drop(cols).CBind(dataframe.New(indicators...))
	}
	if out.Err != nil {
		return df, fmt.Errorf("生成编码列失败: %w", out.Err)
	}
	return out, nil
}
