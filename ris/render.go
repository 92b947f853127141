package ris

import (
	"fmt"
	"os"
	"sort"
	"time"

	"Gin_postgres_redis_supply_tool/models"

	"github.com/xuri/excelize/v2"
)

// Slip is everything printed on one RIS form.
type Slip struct {
	Number                 string
	BudgetSource           string
	Purpose                string
	RequestedByName        string
	RequestedByDesignation string
	ApprovedByName         string
	ApprovedByDesignation  string
	ReceivedByName         string
	ReceivedByDesignation  string
	RequestedAt            time.Time
	// ReviewedAt is zero while nothing on the request has been reviewed.
	ReviewedAt time.Time
	Lines      []SlipLine
}

type SlipLine struct {
	StockNo     string
	Unit        string
	Description string
	Quantity    int
	Status      models.Status
	// Balance is the balance-after of the issue; Historical is false when it fell back
	// to the live quantity because no issue transaction exists.
	Balance    int
	Historical bool
}

// sheetWriter 记住第一个错误，后续写入直接跳过
type sheetWriter struct {
	f     *excelize.File
	sheet string
	err   error
}

func (w *sheetWriter) set(addr string, v any) {
	if w.err == nil {
		w.err = w.f.SetCellValue(w.sheet, addr, v)
	}
}

func (w *sheetWriter) merge(from, to string) {
	if w.err == nil {
		w.err = w.f.MergeCell(w.sheet, from, to)
	}
}

func (w *sheetWriter) style(from, to string, id int) {
	if w.err == nil {
		w.err = w.f.SetCellStyle(w.sheet, from, to, id)
	}
}

// Renderer fills the RIS template. TemplatePath overrides the built-in layout.
type Renderer struct {
	TemplatePath string
	Location     *time.Location
	Now          func() time.Time
}

func (r *Renderer) open() (*excelize.File, string, error) {
	var (
		f   *excelize.File
		err error
	)
	if r.TemplatePath != "" {
		if _, statErr := os.Stat(r.TemplatePath); statErr != nil {
			return nil, "", fmt.Errorf("RIS template not found: %w", statErr)
		}
		f, err = excelize.OpenFile(r.TemplatePath)
	} else {
		f, err = buildTemplate()
	}
	if err != nil {
		return nil, "", err
	}
	sheet := f.GetSheetName(0)
	if sheet == "" {
		_ = f.Close()
		return nil, "", fmt.Errorf("could not access worksheet in template")
	}
	return f, sheet, nil
}

func (r *Renderer) today() time.Time {
	now := time.Now
	if r.Now != nil {
		now = r.Now
	}
	if r.Location != nil {
		return now().In(r.Location)
	}
	return now()
}

// Render 每张工作表放两张表单，超出的工作表从模板页复制（保留合并单元格、列宽、样式）
func (r *Renderer) Render(slips []Slip) ([]byte, error) {
	if len(slips) == 0 {
		return nil, fmt.Errorf("nothing to render")
	}
	f, first, err := r.open()
	if err != nil {
		return nil, err
	}
	defer f.Close()

	src, err := f.GetSheetIndex(first)
	if err != nil {
		return nil, err
	}
	sheets := []string{first}
	needed := (len(slips) + 1) / 2
	for i := 1; i < needed; i++ {
		name := fmt.Sprintf("RIS Set %d", i+1)
		idx, err := f.NewSheet(name)
		if err != nil {
			return nil, err
		}
		if err := f.CopySheet(src, idx); err != nil {
			return nil, fmt.Errorf("copy template sheet: %w", err)
		}
		sheets = append(sheets, name)
	}

	printed := formatDate(r.today())
	for i, s := range slips {
		w := &sheetWriter{f: f, sheet: sheets[i/2]}
		fillSlip(w, s, (i%2)*FormRowOffset, printed)
		if w.err != nil {
			return nil, w.err
		}
	}

	buf, err := f.WriteToBuffer()
	if err != nil {
		return nil, err
	}
	return buf.Bytes(), nil
}

func fillSlip(w *sheetWriter, s Slip, off int, printed string) {
	w.set(cell("G", 8+off), s.Number)
	budget := s.BudgetSource
	if budget == "" {
		budget = "MOOE"
	}
	w.set(cell("H", 7+off), budget)

	for i, l := range s.Lines {
		row := firstLineRow + off + i
		w.set(cell("A", row), l.StockNo)
		w.set(cell("B", row), l.Unit)
		w.set(cell("C", row), l.Description)
		w.set(cell("D", row), l.Quantity)
		if l.Status == models.StatusApproved {
			w.set(cell("E", row), "X")
		} else {
			w.set(cell("F", row), "X")
		}
		w.set(cell("G", row), l.Balance)
		w.set(cell("H", row), remark(l.Status))
	}

	w.set(cell("B", 23+off), s.Purpose)

	w.set(cell("C", 26+off), s.RequestedByName)
	w.set(cell("C", 27+off), s.RequestedByDesignation)
	w.set(cell("C", 28+off), formatDate(s.RequestedAt))
	w.set(cell("D", 28+off), printed)

	w.set(cell("E", 26+off), s.ApprovedByName)
	w.set(cell("E", 27+off), s.ApprovedByDesignation)
	if !s.ReviewedAt.IsZero() {
		w.set(cell("E", 28+off), formatDate(s.ReviewedAt))
	}

	w.set(cell("H", 26+off), s.ReceivedByName)
	w.set(cell("H", 27+off), s.ReceivedByDesignation)
	w.set(cell("H", 28+off), formatDate(s.RequestedAt))
}

func remark(status models.Status) string {
	switch status {
	case models.StatusApproved:
		return "Issued"
	case models.StatusPending:
		return "Pending"
	default:
		return "Rejected"
	}
}

// CustomSlip is a manual form not tied to a stored request.
type CustomSlip struct {
	Number              string
	EntityName          string
	Division            string
	FundCluster         string
	Purpose             string
	RequestedBy         string
	RequestedByPosition string
	ApprovedBy          string
	ApprovedByPosition  string
	ReceivedBy          string
	Lines               []CustomLine
}

type CustomLine struct {
	StockNo     string `json:"stockNo"`
	Unit        string `json:"unit"`
	Description string `json:"description" binding:"required"`
	Quantity    int    `json:"quantity" binding:"min=0"`
}

func (r *Renderer) RenderCustom(c CustomSlip) ([]byte, error) {
	f, sheet, err := r.open()
	if err != nil {
		return nil, err
	}
	defer f.Close()

	w := &sheetWriter{f: f, sheet: sheet}
	if c.EntityName != "" {
		w.set("A5", "Entity Name: "+c.EntityName)
	}
	if c.FundCluster != "" {
		w.set("G5", c.FundCluster)
	}
	w.set("B7", c.Division)
	w.set("B8", c.Division)
	w.set("G8", c.Number)
	for i, l := range c.Lines {
		row := firstLineRow + i
		w.set(cell("A", row), l.StockNo)
		w.set(cell("B", row), l.Unit)
		w.set(cell("C", row), l.Description)
		w.set(cell("D", row), l.Quantity)
	}
	w.set("B23", c.Purpose)

	today := formatDate(r.today())
	w.set("C26", c.RequestedBy)
	w.set("C27", c.RequestedByPosition)
	w.set("C28", today)
	w.set("E26", c.ApprovedBy)
	w.set("E27", c.ApprovedByPosition)
	w.set("H26", c.ReceivedBy)
	if w.err != nil {
		return nil, w.err
	}

	buf, err := f.WriteToBuffer()
	if err != nil {
		return nil, err
	}
	return buf.Bytes(), nil
}

// TemplatePreview lists the template's non-empty cells so cell mappings can be checked.
type TemplatePreview struct {
	SheetName string            `json:"sheetName"`
	Cells     map[string]string `json:"cells"`
	Merges    []string          `json:"merges"`
}

func (r *Renderer) Preview() (*TemplatePreview, error) {
	f, sheet, err := r.open()
	if err != nil {
		return nil, err
	}
	defer f.Close()

	rows, err := f.GetRows(sheet)
	if err != nil {
		return nil, err
	}
	p := &TemplatePreview{SheetName: sheet, Cells: map[string]string{}}
	for ri, row := range rows {
		for ci, v := range row {
			if v == "" {
				continue
			}
			addr, err := excelize.CoordinatesToCellName(ci+1, ri+1)
			if err != nil {
				return nil, err
			}
			p.Cells[addr] = v
		}
	}
	merges, err := f.GetMergeCells(sheet)
	if err != nil {
		return nil, err
	}
	for _, m := range merges {
		p.Merges = append(p.Merges, m.GetStartAxis()+":"+m.GetEndAxis())
	}
	sort.Strings(p.Merges)
	return p, nil
}
