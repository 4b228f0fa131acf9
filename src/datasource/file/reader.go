// reader.go
package file

import (
	"bytes"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"regexp"
	"strconv"
	"strings"
	"time"

	"github.com/go-gota/gota/dataframe"
	"github.com/go-gota/gota/series"
	"github.com/tealeg/xlsx"
	"golang.org/x/text/encoding/charmap"
	"golang.org/x/text/encoding/simplifiedchinese"
	"golang.org/x/text/encoding/unicode"
	"golang.org/x/text/transform"
)

const (
	Number string = `^[0-9]+(\.[0-9]+)?$`
)

var numberRe = regexp.MustCompile(Number)

// Options 数据读取选项
type Options struct {
	Encoding  string // csv 编码
	SheetName string // xlsx 工作表
	HeaderRow int    // xlsx 标题行(从0开始)
}

// ReadDataset 按扩展名读取 csv 或 xlsx 为 DataFrame, 所有列均为字符串
func ReadDataset(path string, opts Options) (dataframe.DataFrame, error) {
	switch strings.ToLower(filepath.Ext(path)) {
	case ".xlsx":
		return ReadXLSX(path, opts.SheetName, opts.HeaderRow)
	case ".csv", ".txt", "":
		f, err := os.Open(path)
		if err != nil {
			return dataframe.DataFrame{}, fmt.Errorf("failed to open csv file: %w", err)
		}
		defer f.Close()
		return ReadCSV(f, opts.Encoding)
	default:
		return dataframe.DataFrame{}, fmt.Errorf("不支持的数据文件类型: %s", path)
	}
}

// ReadBytes 从内存数据读取(邮件附件等)
func ReadBytes(name string, data []byte, opts Options) (dataframe.DataFrame, error) {
	if strings.EqualFold(filepath.Ext(name), ".xlsx") {
		xlFile, err := xlsx.OpenBinary(data)
		if err != nil {
			return dataframe.DataFrame{}, fmt.Errorf("xlsx open binary false: %w", err)
		}
		return sheetFromFile(xlFile, opts.SheetName, opts.HeaderRow)
	}
	return ReadCSV(bytes.NewReader(data), opts.Encoding)
}

// ReadCSV 以字符串类型读取全部列
func ReadCSV(r io.Reader, enc string) (dataframe.DataFrame, error) {
	decoder, err := decoderFor(enc)
	if err != nil {
		return dataframe.DataFrame{}, err
	}

	df := dataframe.ReadCSV(
		transform.NewReader(r, decoder),
		dataframe.HasHeader(true),
		dataframe.DetectTypes(false),
		dataframe.DefaultType(series.String),
	)
	if df.Err != nil {
		return dataframe.DataFrame{}, fmt.Errorf("读取csv失败: %w", df.Err)
	}
	return df, nil
}

// decoderFor 根据名称返回字符编码, utf-8 时去掉 BOM
func decoderFor(name string) (transform.Transformer, error) {
	switch strings.ToLower(strings.TrimSpace(name)) {
	case "", "utf-8", "utf8":
		return unicode.BOMOverride(unicode.UTF8.NewDecoder()), nil
	case "gbk", "gb2312":
		return simplifiedchinese.GBK.NewDecoder(), nil
	case "gb18030":
		return simplifiedchinese.GB18030.NewDecoder(), nil
	case "latin1", "iso-8859-1":
		return charmap.ISO8859_1.NewDecoder(), nil
	case "windows-1252", "cp1252":
		return charmap.Windows1252.NewDecoder(), nil
	default:
		return nil, fmt.Errorf("不支持的编码: %s", name)
	}
}

// ReadXLSX 读取 xlsx 文件中的工作表
func ReadXLSX(filePath, sheetName string, headerRow int) (dataframe.DataFrame, error) {
	// 1. 使用tealeg/xlsx打开Excel文件
	xlFile, err := xlsx.OpenFile(filePath)
	if err != nil {
		return dataframe.DataFrame{}, fmt.Errorf("xlsx open file false: %w", err)
	}
	return sheetFromFile(xlFile, sheetName, headerRow)
}

func sheetFromFile(xlFile *xlsx.File, sheetName string, headerRow int) (dataframe.DataFrame, error) {
	// 2. 获取工作表, 未指定时取第一个
	if len(xlFile.Sheets) == 0 {
		return dataframe.DataFrame{}, fmt.Errorf("excel文件中没有工作表")
	}
	sheet, ok := xlFile.Sheet[sheetName]
	if !ok {
		if sheetName != "" && len(xlFile.Sheets) > 1 {
			return dataframe.DataFrame{}, fmt.Errorf("工作表不存在: %s", sheetName)
		}
		sheet = xlFile.Sheets[0]
	}

	// 3. 转换为Gota DataFrame
	return convertSheetToDataFrame(sheet, headerRow)
}

// convertSheetToDataFrame 将xlsx.Sheet转换为dataframe.DataFrame
func convertSheetToDataFrame(sheet *xlsx.Sheet, headerRow int) (dataframe.DataFrame, error) {
	if len(sheet.Rows) <= headerRow+1 {
		return dataframe.DataFrame{}, fmt.Errorf("工作表 %s 没有数据行", sheet.Name)
	}

	var headers []string
	for _, cell := range sheet.Rows[headerRow].Cells {
		headers = append(headers, strings.TrimSpace(cell.Value))
	}

	// 准备数据列
	columns := make([][]string, len(headers))
	for i := range columns {
		columns[i] = make([]string, 0, len(sheet.Rows)-headerRow-1)
	}

	// 填充数据(标题行之后), 短行补空
	for _, row := range sheet.Rows[headerRow+1:] {
		if row == nil {
			continue
		}
		for i := range headers {
			value := ""
			if i < len(row.Cells) {
				value = row.Cells[i].Value
			}
			columns[i] = append(columns[i], value)
		}
	}

	timeCols := findTimeColumns(headers)

	seriesList := make([]series.Series, len(headers))
	for i, colName := range headers {
		if _, ok := timeCols[colName]; ok {
			for j, v := range columns[i] {
				columns[i][j] = excelToTime(v)
			}
		}
		seriesList[i] = series.New(columns[i], series.String, colName)
	}

	df := dataframe.New(seriesList...)
	if df.Err != nil {
		return dataframe.DataFrame{}, fmt.Errorf("转换为dataframe失败: %w", df.Err)
	}
	return df, nil
}

// 辅助函数：查找可能是时间类型的列
func findTimeColumns(headers []string) map[string]struct{} {
	timeCols := make(map[string]struct{})
	timeKeywords := []string{"时间", "日期", "date", "time"}

	for _, col := range headers {
		lower := strings.ToLower(col)
		for _, kw := range timeKeywords {
			if strings.Contains(lower, kw) {
				timeCols[col] = struct{}{}
				break
			}
		}
	}
	return timeCols
}

// excelToTime 将 Excel 序列日期转为 "2006-01-02 15:04:05", 其他值原样返回
func excelToTime(v string) string {
	v = strings.TrimSpace(v)
	if !numberRe.MatchString(v) {
		return v
	}
	excelDays, err := strconv.ParseFloat(v, 64)
	if err != nil {
		return v
	}

	// 1899-12-30 为基准可以同时吸收 1900 年闰年错误
	base := time.Date(1899, 12, 30, 0, 0, 0, 0, time.UTC)
	days := int(excelDays)
	fraction := excelDays - float64(days)

	result := base.AddDate(0, 0, days).
		Add(time.Duration(86400*fraction*1e9) * time.Nanosecond).
		Round(time.Second)

	return result.Format("2006-01-02 15:04:05")
}
