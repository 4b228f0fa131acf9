package utils

import (
	"testing"
	"time"

	"github.com/go-gota/gota/dataframe"
	"github.com/go-gota/gota/series"
	"github.com/stretchr/testify/assert"
)

func TestHasColumn(t *testing.T) {
	df := dataframe.New(
		series.New([]string{"a"}, series.String, "CATEGORY"),
		series.New([]float64{1}, series.Float, "MILES"),
	)
	assert.True(t, HasColumn(df, "MILES"))
	assert.False(t, HasColumn(df, "PURPOSE"))
	assert.Equal(t, []string{"PURPOSE", "STOP"}, MissingColumns(df, "CATEGORY", "PURPOSE", "STOP"))
}

func TestIsMissing(t *testing.T) {
	for _, s := range []string{"", "  ", "NA", "NaN", "<nil>"} {
		assert.True(t, IsMissing(s), "%q", s)
	}
	for _, s := range []string{"Meeting", "0", "NOT"} {
		assert.False(t, IsMissing(s), "%q", s)
	}
}

func TestParseTime(t *testing.T) {
	layouts := []string{"1/2/2006 15:04", "2006-01-02 15:04:05"}

	got, ok := ParseTime("1/1/2016 21:11", layouts)
	assert.True(t, ok)
	assert.Equal(t, time.Date(2016, 1, 1, 21, 11, 0, 0, time.UTC), got)

	got, ok = ParseTime(" 2016-12-31 23:59:00 ", layouts)
	assert.True(t, ok)
	assert.Equal(t, 12, int(got.Month()))

	_, ok = ParseTime("Totals", layouts)
	assert.False(t, ok)
	_, ok = ParseTime("", layouts)
	assert.False(t, ok)
}

func TestUniqueAndContains(t *testing.T) {
	assert.Equal(t, []string{"b", "a", "c"}, Unique([]string{"b", "a", "b", "c", "a"}))
	assert.True(t, Contains([]int{1, 2, 3}, 2))
	assert.False(t, Contains([]string{"x"}, "y"))
}
