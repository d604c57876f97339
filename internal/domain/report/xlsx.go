package report

import (
	"fmt"

	"dario.cat/mergo"
	"github.com/xuri/excelize/v2"

	"github.com/FACorreiaa/campaign-spend-insights/internal/domain/distribution"
)

const (
	sheetRow      = "Matrix A"
	sheetColumn   = "Matrix B"
	sheetInsights = "Insights"
)

// RenderXLSX renders both matrices and the insights into a workbook.
func RenderXLSX(r *Report) ([]byte, error) {
	xlsx := excelize.NewFile()
	defer xlsx.Close()

	_ = xlsx.SetAppProps(&excelize.AppProperties{
		Application: "campaign-spend-insights",
	})

	first := xlsx.GetSheetName(xlsx.GetActiveSheetIndex())
	if err := xlsx.SetSheetName(first, sheetRow); err != nil {
		return nil, fmt.Errorf("failed to rename sheet: %w", err)
	}
	if err := writeMatrixSheet(xlsx, sheetRow, RowTitle, "Campaign", r.Row); err != nil {
		return nil, err
	}

	if _, err := xlsx.NewSheet(sheetColumn); err != nil {
		return nil, fmt.Errorf("failed to add sheet: %w", err)
	}
	if err := writeMatrixSheet(xlsx, sheetColumn, ColumnTitle, "Campaign \\ Channel", r.Column); err != nil {
		return nil, err
	}

	if _, err := xlsx.NewSheet(sheetInsights); err != nil {
		return nil, fmt.Errorf("failed to add sheet: %w", err)
	}
	writeInsightsSheet(xlsx, r)

	xlsx.SetActiveSheet(0)

	buf, err := xlsx.WriteToBuffer()
	if err != nil {
		return nil, fmt.Errorf("failed to write workbook: %w", err)
	}
	return buf.Bytes(), nil
}

func writeMatrixSheet(xlsx *excelize.File, sheet, title, corner string, d *distribution.Distribution) error {
	_ = xlsx.SetCellValue(sheet, cell(1, 1), title)
	titleStyle, _ := xlsx.NewStyle(mergeStyles(defaultStyle(), fontBold(), fontSize(13)))
	_ = xlsx.SetCellStyle(sheet, cell(1, 1), cell(1, 1), titleStyle)
	_ = xlsx.SetColWidth(sheet, "A", "A", 22)

	const headerRow = 3
	_ = xlsx.SetCellValue(sheet, cell(1, headerRow), corner)

	if d.IsEmpty() {
		_ = xlsx.SetCellValue(sheet, cell(1, headerRow+1), "No spend data available.")
		return nil
	}

	m := d.Matrix
	for j, label := range m.Columns {
		_ = xlsx.SetCellValue(sheet, cell(j+2, headerRow), label)
	}
	headerStyle, _ := xlsx.NewStyle(mergeStyles(defaultStyle(), fontBold(), textAlignment("right"), thinBorder("bottom")))
	_ = xlsx.SetCellStyle(sheet, cell(1, headerRow), cell(len(m.Columns)+1, headerRow), headerStyle)

	valueStyle, err := xlsx.NewStyle(mergeStyles(defaultStyle(), percentFormat()))
	if err != nil {
		return fmt.Errorf("failed to create style: %w", err)
	}
	totalStyle, _ := xlsx.NewStyle(mergeStyles(defaultStyle(), percentFormat(), fontBold(), highlight()))

	for i, label := range m.Rows {
		row := headerRow + 1 + i
		_ = xlsx.SetCellValue(sheet, cell(1, row), label)
		for j := range m.Columns {
			// stored as a fraction so the percent format shows 80.00%
			_ = xlsx.SetCellValue(sheet, cell(j+2, row), m.Values[i][j]/100)
		}
		_ = xlsx.SetCellStyle(sheet, cell(2, row), cell(len(m.Columns)+1, row), valueStyle)
	}

	last := len(m.Columns) + 1
	firstRow, lastRow := headerRow+1, headerRow+len(m.Rows)
	if d.Orientation == distribution.ByRow {
		_ = xlsx.SetCellStyle(sheet, cell(last, firstRow), cell(last, lastRow), totalStyle)
	} else {
		_ = xlsx.SetCellStyle(sheet, cell(2, lastRow), cell(last, lastRow), totalStyle)
		boldStyle, _ := xlsx.NewStyle(mergeStyles(defaultStyle(), fontBold(), thickBorder("top")))
		_ = xlsx.SetCellStyle(sheet, cell(1, lastRow), cell(1, lastRow), boldStyle)
	}
	return nil
}

func writeInsightsSheet(xlsx *excelize.File, r *Report) {
	bold, _ := xlsx.NewStyle(mergeStyles(defaultStyle(), fontBold()))
	wrap, _ := xlsx.NewStyle(mergeStyles(defaultStyle(), wrapText()))
	_ = xlsx.SetColWidth(sheetInsights, "A", "A", 18)
	_ = xlsx.SetColWidth(sheetInsights, "B", "D", 24)

	row := 1
	_ = xlsx.SetCellValue(sheetInsights, cell(1, row), r.Title)
	_ = xlsx.SetCellStyle(sheetInsights, cell(1, row), cell(1, row), bold)
	row++
	_ = xlsx.SetCellValue(sheetInsights, cell(1, row), "Generated")
	_ = xlsx.SetCellValue(sheetInsights, cell(2, row), r.GeneratedAt.Format("2006-01-02 15:04:05"))
	row++
	_ = xlsx.SetCellValue(sheetInsights, cell(1, row), "Records")
	_ = xlsx.SetCellValue(sheetInsights, cell(2, row), r.RecordCount)
	row += 2

	for _, in := range []struct {
		title   string
		insight string
		source  string
	}{
		{RowTitle, r.RowInsight.Text, r.RowInsight.Source},
		{ColumnTitle, r.ColumnInsight.Text, r.ColumnInsight.Source},
	} {
		_ = xlsx.SetCellValue(sheetInsights, cell(1, row), in.title)
		_ = xlsx.SetCellStyle(sheetInsights, cell(1, row), cell(1, row), bold)
		row++
		_ = xlsx.SetCellValue(sheetInsights, cell(1, row), in.insight)
		_ = xlsx.SetCellStyle(sheetInsights, cell(1, row), cell(1, row), wrap)
		_ = xlsx.MergeCell(sheetInsights, cell(1, row), cell(4, row))
		_ = xlsx.SetRowHeight(sheetInsights, row, 90)
		row++
		_ = xlsx.SetCellValue(sheetInsights, cell(1, row), "Source: "+in.source)
		row += 2
	}

	if len(r.Totals) == 0 {
		return
	}
	_ = xlsx.SetCellValue(sheetInsights, cell(1, row), "Campaign")
	_ = xlsx.SetCellValue(sheetInsights, cell(2, row), "Spend")
	_ = xlsx.SetCellValue(sheetInsights, cell(3, row), "Share")
	header, _ := xlsx.NewStyle(mergeStyles(defaultStyle(), fontBold(), thinBorder("bottom")))
	_ = xlsx.SetCellStyle(sheetInsights, cell(1, row), cell(3, row), header)
	row++

	share, _ := xlsx.NewStyle(mergeStyles(defaultStyle(), percentFormat()))
	for _, t := range r.Totals {
		_ = xlsx.SetCellValue(sheetInsights, cell(1, row), t.Campaign)
		_ = xlsx.SetCellValue(sheetInsights, cell(2, row), t.Spend.Float64())
		_ = xlsx.SetCellValue(sheetInsights, cell(3, row), t.Share/100)
		_ = xlsx.SetCellStyle(sheetInsights, cell(3, row), cell(3, row), share)
		row++
	}
	_ = xlsx.SetCellValue(sheetInsights, cell(1, row), "Total")
	_ = xlsx.SetCellValue(sheetInsights, cell(2, row), r.GrandTotal.Float64())
	total, _ := xlsx.NewStyle(mergeStyles(defaultStyle(), fontBold(), thickBorder("top")))
	_ = xlsx.SetCellStyle(sheetInsights, cell(1, row), cell(3, row), total)
}

func cell(col, row int) string {
	name, _ := excelize.CoordinatesToCellName(col, row)
	return name
}

func defaultStyle() *excelize.Style {
	return &excelize.Style{
		Font: &excelize.Font{
			Family: "Calibri",
			Size:   11,
		},
	}
}

func fontBold() *excelize.Style {
	return &excelize.Style{
		Font: &excelize.Font{
			Bold: true,
		},
	}
}

func fontSize(size float64) *excelize.Style {
	return &excelize.Style{
		Font: &excelize.Font{
			Size: size,
		},
	}
}

func percentFormat() *excelize.Style {
	format := "0.00%"
	return &excelize.Style{
		CustomNumFmt: &format,
	}
}

func textAlignment(a string) *excelize.Style {
	return &excelize.Style{
		Alignment: &excelize.Alignment{
			Horizontal: a,
		},
	}
}

func wrapText() *excelize.Style {
	return &excelize.Style{
		Alignment: &excelize.Alignment{
			Vertical: "top",
			WrapText: true,
		},
	}
}

func thinBorder(where ...string) *excelize.Style {
	s := &excelize.Style{}
	for _, w := range where {
		s.Border = append(s.Border, excelize.Border{
			Type:  w,
			Color: "#000000",
			Style: 1,
		})
	}
	return s
}

func thickBorder(where ...string) *excelize.Style {
	s := &excelize.Style{}
	for _, w := range where {
		s.Border = append(s.Border, excelize.Border{
			Type:  w,
			Color: "#000000",
			Style: 2,
		})
	}
	return s
}

func highlight() *excelize.Style {
	return &excelize.Style{
		Fill: excelize.Fill{
			Type:    "pattern",
			Color:   []string{"#FFF3C4"},
			Pattern: 1,
		},
	}
}

func mergeStyles(ext ...*excelize.Style) *excelize.Style {
	if len(ext) == 0 {
		return nil
	}
	for _, e := range ext[1:] {
		_ = mergo.Merge(ext[0], e, mergo.WithOverride)
	}
	return ext[0]
}
