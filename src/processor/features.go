// features.go
package processor

import (
	"fmt"
	"time"

	"github.com/go-gota/gota/dataframe"
	"github.com/go-gota/gota/series"
)

const dateLayout = "2006-01-02"

// 时段区间左闭右开
var timeOfDayBins = []struct {
	upper int
	label string
}{
	{10, "Morning"},
	{15, "Afternoon"},
	{19, "Evening"},
	{24, "Night"},
}

var monthLabels = [...]string{"Jan", "Feb", "Mar", "April", "May", "June", "July", "Aug", "Sep", "Oct", "Nov", "Dec"}

// 周一在前
var weekdayLabels = [...]string{"Mon", "Tues", "Wed", "Thurs", "Fri", "Sat", "Sun"}

// TimeOfDay 小时 -> 时段; 不在 0..23 内返回空串
func TimeOfDay(hour int) string {
	if hour < 0 || hour > 23 {
		return ""
	}
	for _, bin := range timeOfDayBins {
		if hour < bin.upper {
			return bin.label
		}
	}
	return ""
}

// TimeOfDayLabels 时段标签(时间顺序)
func TimeOfDayLabels() []string {
	labels := make([]string, len(timeOfDayBins))
	for i, bin := range timeOfDayBins {
		labels[i] = bin.label
	}
	return labels
}

// MonthLabel 月份缩写
func MonthLabel(m time.Month) string {
	if m < time.January || m > time.December {
		return ""
	}
	return monthLabels[m-1]
}

// WeekdayLabel 星期缩写
func WeekdayLabel(d time.Weekday) string {
	if d < time.Sunday || d > time.Saturday {
		return ""
	}
	return weekdayLabels[(int(d)+6)%7]
}

// WeekdayLabels 周一到周日
func WeekdayLabels() []string {
	return append([]string(nil), weekdayLabels[:]...)
}

type deriveFeatures struct {
	cols Columns
}

// DataProcessFunc 根据开始时间追加日期、小时、时段、月份、星期
func (s deriveFeatures) DataProcessFunc(df *dataframe.DataFrame) error {
	starts := df.Col(s.cols.Start).Records()
	n := len(starts)

	dates := make([]string, n)
	hours := make([]int, n)
	periods := make([]string, n)
	months := make([]string, n)
	weekdays := make([]string, n)

	for i, v := range starts {
		t, err := time.ParseInLocation(timestampLayout, v, time.UTC)
		if err != nil {
			return fmt.Errorf("开始时间格式错误 %q: %w", v, err)
		}
		dates[i] = t.Format(dateLayout)
		hours[i] = t.Hour()
		periods[i] = TimeOfDay(t.Hour())
		months[i] = MonthLabel(t.Month())
		weekdays[i] = WeekdayLabel(t.Weekday())
	}

	for _, col := range []series.Series{
		series.New(dates, series.String, s.cols.Date),
		series.New(hours, series.Int, s.cols.Hour),
		series.New(periods, series.String, s.cols.TimeOfDay),
		series.New(months, series.String, s.cols.Month),
		series.New(weekdays, series.String, s.cols.Weekday),
	} {
		if err := mutate(df, col); err != nil {
			return err
		}
	}
	return nil
}
