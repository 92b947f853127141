package ris

import (
	"fmt"

	"github.com/xuri/excelize/v2"
)

const (
	templateSheet = "RIS"
	// FormRowOffset is where the second slip on a sheet starts.
	FormRowOffset = 29
	firstLineRow  = 11
	// MaxLines is how many item rows one printed form holds.
	MaxLines = 12
)

func cell(col string, row int) string { return fmt.Sprintf("%s%d", col, row) }

// buildTemplate 内置的 A4 模板：每页上下两张表单
func buildTemplate() (*excelize.File, error) {
	f := excelize.NewFile()
	if err := f.SetSheetName("Sheet1", templateSheet); err != nil {
		return nil, err
	}

	title, err := f.NewStyle(&excelize.Style{
		Font:      &excelize.Font{Bold: true, Size: 13},
		Alignment: &excelize.Alignment{Horizontal: "center", Vertical: "center"},
	})
	if err != nil {
		return nil, err
	}
	border := []excelize.Border{
		{Type: "left", Color: "000000", Style: 1},
		{Type: "top", Color: "000000", Style: 1},
		{Type: "right", Color: "000000", Style: 1},
		{Type: "bottom", Color: "000000", Style: 1},
	}
	header, err := f.NewStyle(&excelize.Style{
		Font:      &excelize.Font{Bold: true, Size: 9},
		Border:    border,
		Alignment: &excelize.Alignment{Horizontal: "center", Vertical: "center", WrapText: true},
	})
	if err != nil {
		return nil, err
	}
	grid, err := f.NewStyle(&excelize.Style{
		Font:      &excelize.Font{Size: 9},
		Border:    border,
		Alignment: &excelize.Alignment{Vertical: "center"},
	})
	if err != nil {
		return nil, err
	}
	label, err := f.NewStyle(&excelize.Style{Font: &excelize.Font{Size: 9, Italic: true}})
	if err != nil {
		return nil, err
	}

	widths := map[string]float64{"A": 12, "B": 9, "C": 38, "D": 10, "E": 7, "F": 7, "G": 11, "H": 22}
	for col, w := range widths {
		if err := f.SetColWidth(templateSheet, col, col, w); err != nil {
			return nil, err
		}
	}

	for _, off := range []int{0, FormRowOffset} {
		if err := drawForm(f, off, title, header, grid, label); err != nil {
			return nil, err
		}
	}
	return f, nil
}

func drawForm(f *excelize.File, off, title, header, grid, label int) error {
	w := &sheetWriter{f: f, sheet: templateSheet}
	r := func(n int) int { return n + off }

	w.set(cell("H", r(1)), "Appendix 63")
	w.merge(cell("A", r(3)), cell("H", r(3)))
	w.set(cell("A", r(3)), "REQUISITION AND ISSUE SLIP")
	w.style(cell("A", r(3)), cell("H", r(3)), title)
	w.set(cell("A", r(5)), "Entity Name:")
	w.set(cell("F", r(5)), "Fund Cluster:")
	w.set(cell("A", r(7)), "Division:")
	w.set(cell("F", r(7)), "Budget Source:")
	w.set(cell("A", r(8)), "Office:")
	w.set(cell("F", r(8)), "RIS No.:")

	w.merge(cell("A", r(9)), cell("D", r(9)))
	w.set(cell("A", r(9)), "Requisition")
	w.merge(cell("E", r(9)), cell("F", r(9)))
	w.set(cell("E", r(9)), "Stock Available?")
	w.merge(cell("G", r(9)), cell("H", r(9)))
	w.set(cell("G", r(9)), "Issue")
	for i, h := range []string{"Stock No.", "Unit", "Description", "Quantity", "Yes", "No", "Balance", "Remarks"} {
		w.set(cell(string(rune('A'+i)), r(10)), h)
	}
	w.style(cell("A", r(9)), cell("H", r(10)), header)
	w.style(cell("A", r(firstLineRow)), cell("H", r(firstLineRow+MaxLines-1)), grid)

	w.set(cell("A", r(23)), "Purpose:")
	w.merge(cell("B", r(23)), cell("H", r(23)))
	w.style(cell("A", r(23)), cell("H", r(23)), grid)

	w.set(cell("C", r(25)), "Requested by:")
	w.set(cell("E", r(25)), "Approved by:")
	w.set(cell("G", r(25)), "Issued by:")
	w.set(cell("H", r(25)), "Received by:")
	w.set(cell("A", r(26)), "Printed Name:")
	w.set(cell("A", r(27)), "Designation:")
	w.set(cell("A", r(28)), "Date:")
	w.style(cell("A", r(25)), cell("H", r(28)), label)
	return w.err
}
