// pdf.go
package report

import (
	"bytes"
	"fmt"
	"io"
	"os"

	"github.com/phpdave11/gofpdf"
)

// WritePDF 首页为汇总, 之后每页一张图
func WritePDF(w io.Writer, b *Book) error {
	pdf := gofpdf.New("P", "mm", "A4", "")
	pdf.SetTitle(b.Title, false)
	pdf.AddPage()
	pdf.SetFont("Helvetica", "B", 18)
	pdf.Cell(0, 10, b.Title)
	pdf.Ln(14)

	pdf.SetFont("Helvetica", "", 11)
	for _, kv := range summaryRows(b) {
		pdf.CellFormat(60, 6, kv[0], "", 0, "L", false, 0, "")
		pdf.CellFormat(0, 6, kv[1], "", 1, "L", false, 0, "")
	}

	for _, t := range b.Tables {
		pdf.Ln(4)
		pdf.SetFont("Helvetica", "B", 12)
		pdf.Cell(0, 7, t.Title)
		pdf.Ln(7)
		pdf.SetFont("Helvetica", "", 10)
		for _, r := range t.Rows {
			pdf.CellFormat(60, 5, r.Label, "", 0, "L", false, 0, "")
			pdf.CellFormat(0, 5, fmt.Sprintf("%g", r.Value), "", 1, "L", false, 0, "")
		}
	}

	for _, c := range b.Charts {
		pdf.AddPage()
		pdf.SetFont("Helvetica", "B", 14)
		pdf.Cell(0, 8, c.Title)
		pdf.Ln(10)
		pdf.SetFont("Helvetica", "", 10)
		pdf.MultiCell(0, 5, c.Description, "", "", false)
		pdf.Ln(4)

		opts := gofpdf.ImageOptions{ImageType: "PNG", ReadDpi: true}
		pdf.RegisterImageOptionsReader(c.Name, opts, bytes.NewReader(c.PNG))
		pdf.ImageOptions(c.Name, 15, pdf.GetY(), 180, 0, false, opts, 0, "")
	}

	if err := pdf.Output(w); err != nil {
		return fmt.Errorf("生成PDF失败: %w", err)
	}
	return nil
}

// SavePDF 保存为文件
func SavePDF(path string, b *Book) error {
	var buf bytes.Buffer
	if err := WritePDF(&buf, b); err != nil {
		return err
	}
	return os.WriteFile(path, buf.Bytes(), 0644)
}
