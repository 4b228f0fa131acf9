// data.go
package processor

import (
	"TripAnalysis/src/config"
	"errors"
	"fmt"

	"github.com/go-gota/gota/dataframe"
)

var (
	ErrMissingColumn = errors.New("缺少必需列")
	ErrEmptyDataset  = errors.New("清洗后没有剩余数据")
	ErrNameConflict  = errors.New("编码列名冲突")
)

// Columns 实际表头名
type Columns struct {
	Start, End, Category, Purpose, Miles  string
	Date, Hour, TimeOfDay, Month, Weekday string
}

// ColumnsFrom 从数据配置解析列名
func ColumnsFrom(dcfg *config.DataConfig) Columns {
	return Columns{
		Start:     dcfg.Column(config.ColStart),
		End:       dcfg.Column(config.ColEnd),
		Category:  dcfg.Column(config.ColCategory),
		Purpose:   dcfg.Column(config.ColPurpose),
		Miles:     dcfg.Column(config.ColMiles),
		Date:      dcfg.Column(config.ColDate),
		Hour:      dcfg.Column(config.ColHour),
		TimeOfDay: dcfg.Column(config.ColTimeOfDay),
		Month:     dcfg.Column(config.ColMonth),
		Weekday:   dcfg.Column(config.ColWeekday),
	}
}

func (c Columns) required() []string {
	return []string{c.Start, c.End, c.Category, c.Purpose, c.Miles}
}

// notEncoded 不参与独热编码的列(时间戳和衍生标签)
func (c Columns) notEncoded() []string {
	return []string{c.Start, c.End, c.TimeOfDay, c.Month, c.Weekday}
}

// Dataset 一次运行的数据
type Dataset struct {
	Enriched dataframe.DataFrame // 清洗并追加衍生列后的表
	Encoded  dataframe.DataFrame // 文本列独热编码后的表(用于相关性)
	Columns  Columns
	Report   CleanReport
}

// DataProcess 数据处理步骤
type DataProcess interface {
	DataProcessFunc(df *dataframe.DataFrame) error
}

// DataProcessor 按固定顺序执行清洗/衍生/编码
type DataProcessor struct {
	df     dataframe.DataFrame
	cols   Columns
	dcfg   *config.DataConfig
	report CleanReport
}

func NewDataProcessor(df dataframe.DataFrame, dcfg *config.DataConfig) *DataProcessor {
	return &DataProcessor{
		df:   df,
		cols: ColumnsFrom(dcfg),
		dcfg: dcfg,
	}
}

// CleanData 清洗后追加衍生列
func (p *DataProcessor) CleanData() error {
	df, report, err := Clean(p.df, p.dcfg)
	if err != nil {
		return err
	}
	p.report = report

	if err := (deriveFeatures{cols: p.cols}).DataProcessFunc(&df); err != nil {
		return err
	}
	p.df = df
	return nil
}

// Encode 对文本列独热编码
func (p *DataProcessor) Encode() (dataframe.DataFrame, error) {
	cols := EncodeColumns(p.df, p.cols)
	p.report.UniqueValues = UniqueCounts(p.df, cols)
	return OneHot(p.df, cols)
}

// DataFrame 当前数据
func (p *DataProcessor) DataFrame() dataframe.DataFrame {
	return p.df
}

// Report 清洗报告
func (p *DataProcessor) Report() CleanReport {
	return p.report
}

// Prepare 原始表 -> 清洗/衍生/编码后的数据集, 所有展示入口共用
func Prepare(raw dataframe.DataFrame, dcfg *config.DataConfig) (*Dataset, error) {
	p := NewDataProcessor(raw, dcfg)
	if err := p.CleanData(); err != nil {
		return nil, fmt.Errorf("数据清洗失败: %w", err)
	}

	encoded, err := p.Encode()
	if err != nil {
		return nil, fmt.Errorf("独热编码失败: %w", err)
	}

	return &Dataset{
		Enriched: p.df,
		Encoded:  encoded,
		Columns:  p.cols,
		Report:   p.report,
	}, nil
}
