// workbook.go
package report

import (
	"fmt"
	"io"
	"os"

	"github.com/xuri/excelize/v2"
)

const (
	summarySheet  = "Summary"
	maxSheetName  = 31
	pictureAnchor = "A4"
)

// WriteWorkbook 汇总页 + 每张图一个工作表
func WriteWorkbook(w io.Writer, b *Book) error {
	f := excelize.NewFile()
	defer f.Close()

	if err := f.SetSheetName("Sheet1", summarySheet); err != nil {
		return fmt.Errorf("重命名工作表失败: %w", err)
	}
	bold, err := f.NewStyle(&excelize.Style{Font: &excelize.Font{Bold: true}})
	if err != nil {
		return err
	}

	// 1. 汇总指标
	row := 1
	writeRow := func(values ...interface{}) error {
		cell, err := excelize.CoordinatesToCellName(1, row)
		if err != nil {
			return err
		}
		row++
		return f.SetSheetRow(summarySheet, cell, &values)
	}
	heading := func(title string) error {
		cell, _ := excelize.CoordinatesToCellName(1, row)
		if err := writeRow(title); err != nil {
			return err
		}
		return f.SetCellStyle(summarySheet, cell, cell, bold)
	}

	if err := heading(b.Title); err != nil {
		return err
	}
	for _, kv := range summaryRows(b) {
		if err := writeRow(kv[0], kv[1]); err != nil {
			return err
		}
	}

	// 2. 聚合表
	for _, t := range b.Tables {
		row++
		if err := heading(t.Title); err != nil {
			return err
		}
		if err := writeRow(t.Header[0], t.Header[1]); err != nil {
			return err
		}
		for _, r := range t.Rows {
			if err := writeRow(r.Label, r.Value); err != nil {
				return err
			}
		}
	}
	if err := f.SetColWidth(summarySheet, "A", "A", 28); err != nil {
		return err
	}

	// 3. 图表
	for _, c := range b.Charts {
		name := c.Name
		if len(name) > maxSheetName {
			name = name[:maxSheetName]
		}
		if _, err := f.NewSheet(name); err != nil {
			return fmt.Errorf("创建工作表 %s 失败: %w", name, err)
		}
		if err := f.SetCellValue(name, "A1", c.Title); err != nil {
			return err
		}
		if err := f.SetCellStyle(name, "A1", "A1", bold); err != nil {
			return err
		}
		if err := f.SetCellValue(name, "A2", c.Description); err != nil {
			return err
		}
		if err := f.AddPictureFromBytes(name, pictureAnchor, &excelize.Picture{
			Extension: ".png",
			File:      c.PNG,
			Format:    &excelize.GraphicOptions{AltText: c.Title},
		}); err != nil {
			return fmt.Errorf("插入图表 %s 失败: %w", c.Name, err)
		}
	}

	return f.Write(w)
}

// SaveWorkbook 保存为文件
func SaveWorkbook(path string, b *Book) error {
	file, err := os.Create(path)
	if err != nil {
		return fmt.Errorf("创建Excel文件失败: %w", err)
	}
	if err := WriteWorkbook(file, b); err != nil {
		file.Close()
		return fmt.Errorf("保存Excel文件失败: %w", err)
	}
	return file.Close()
}
