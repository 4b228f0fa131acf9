package file

import (
	"context"
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/xuri/excelize/v2"
	"golang.org/x/text/encoding/simplifiedchinese"
)

const sampleCSV = "START_DATE,END_DATE,CATEGORY,START,STOP,MILES,PURPOSE\n" +
	"1/1/2016 21:11,1/1/2016 21:17,Business,Fort Pierce,Fort Pierce,5.1,Meal/Entertain\n" +
	"1/2/2016 1:25,1/2/2016 1:37,Business,Fort Pierce,Fort Pierce,5,\n"

func TestReadCSV(t *testing.T) {
	df, err := ReadCSV(strings.NewReader("\ufeff"+sampleCSV), "utf-8")
	require.NoError(t, err)

	assert.Equal(t, []string{"START_DATE", "END_DATE", "CATEGORY", "START", "STOP", "MILES", "PURPOSE"}, df.Names())
	assert.Equal(t, 2, df.Nrow())
	// 未做类型推断, 数字列保持原文
	assert.Equal(t, []string{"5.1", "5"}, df.Col("MILES").Records())
}

func TestReadCSVGBK(t *testing.T) {
	encoded, err := simplifiedchinese.GBK.NewEncoder().String("CATEGORY,PURPOSE\n商务,会议\n")
	require.NoError(t, err)

	df, err := ReadCSV(strings.NewReader(encoded), "gbk")
	require.NoError(t, err)
	assert.Equal(t, []string{"商务"}, df.Col("CATEGORY").Records())
	assert.Equal(t, []string{"会议"}, df.Col("PURPOSE").Records())
}

func TestReadCSVUnknownEncoding(t *testing.T) {
	_, err := ReadCSV(strings.NewReader(sampleCSV), "ebcdic")
	require.Error(t, err)
}

func TestReadDatasetCSVFile(t *testing.T) {
	path := filepath.Join(t.TempDir(), "trips.csv")
	require.NoError(t, os.WriteFile(path, []byte(sampleCSV), 0644))

	df, err := ReadDataset(path, Options{})
	require.NoError(t, err)
	assert.Equal(t, 2, df.Nrow())

	_, err = ReadDataset(filepath.Join(t.TempDir(), "missing.csv"), Options{})
	require.Error(t, err)

	_, err = ReadDataset("trips.parquet", Options{})
	require.Error(t, err)
}

func writeWorkbook(t *testing.T, path string) {
	t.Helper()
	f := excelize.NewFile()
	defer f.Close()

	rows := [][]interface{}{
		{"Uber trips export"},
		{"START_DATE", "END_DATE", "CATEGORY", "MILES", "PURPOSE"},
		{42370.5, 42370.75, "Business", 5.1, "Meeting"},
		{"1/2/2016 1:25", "1/2/2016 1:37", "Personal", 3},
	}
	for i, row := range rows {
		cell, err := excelize.CoordinatesToCellName(1, i+1)
		require.NoError(t, err)
		require.NoError(t, f.SetSheetRow("Sheet1", cell, &row))
	}
	require.NoError(t, f.SaveAs(path))
}

func TestReadXLSX(t *testing.T) {
	path := filepath.Join(t.TempDir(), "trips.xlsx")
	writeWorkbook(t, path)

	df, err := ReadDataset(path, Options{SheetName: "Sheet1", HeaderRow: 1})
	require.NoError(t, err)

	assert.Equal(t, []string{"START_DATE", "END_DATE", "CATEGORY", "MILES", "PURPOSE"}, df.Names())
	assert.Equal(t, 2, df.Nrow())
	assert.Equal(t, []string{"2016-01-01 12:00:00", "1/2/2016 1:25"}, df.Col("START_DATE").Records())
	assert.Equal(t, "Personal", df.Col("CATEGORY").Records()[1])

	data, err := os.ReadFile(path)
	require.NoError(t, err)
	fromBytes, err := ReadBytes("attachment.xlsx", data, Options{HeaderRow: 1})
	require.NoError(t, err)
	assert.Equal(t, df.Records(), fromBytes.Records())
}

func TestExcelToTime(t *testing.T) {
	assert.Equal(t, "2016-01-01 00:00:00", excelToTime("42370"))
	assert.Equal(t, "2016-01-01 06:00:00", excelToTime("42370.25"))
	assert.Equal(t, "1/1/2016 21:11", excelToTime("1/1/2016 21:11"))
	assert.Equal(t, "Totals", excelToTime("Totals"))
}

func TestFileMonitor(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "trips.csv")
	require.NoError(t, os.WriteFile(path, []byte(sampleCSV), 0644))

	monitor, err := NewFileMonitor(path)
	require.NoError(t, err)

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	changed := make(chan string, 4)
	done := make(chan error, 1)
	go func() {
		done <- monitor.Watch(ctx, func(p string) { changed <- p })
	}()

	// 其他文件的事件不触发回调
	require.NoError(t, os.WriteFile(filepath.Join(dir, "other.csv"), []byte("x"), 0644))

	time.Sleep(50 * time.Millisecond)
	require.NoError(t, os.WriteFile(path, []byte(sampleCSV+"1/3/2016 1:00,,,,,,\n"), 0644))

	select {
	case p := <-changed:
		assert.Equal(t, filepath.Base(path), filepath.Base(p))
	case <-time.After(3 * time.Second):
		t.Fatal("no change event")
	}

	cancel()
	select {
	case err := <-done:
		assert.NoError(t, err)
	case <-time.After(time.Second):
		t.Fatal("watch did not stop")
	}
}
