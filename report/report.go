// Package report exports inventory and transaction listings as Excel workbooks.
package report

import (
	"context"
	"fmt"
	"time"

	"Gin_postgres_redis_supply_tool/db"
	"Gin_postgres_redis_supply_tool/models"

	"github.com/xuri/excelize/v2"
)

type File struct {
	Filename string
	Bytes    []byte
}

type Generator struct {
	repo *db.Repo
	loc  *time.Location
	now  func() time.Time
}

func NewGenerator(repo *db.Repo, loc *time.Location) *Generator {
	if loc == nil {
		loc = time.Local
	}
	return &Generator{repo: repo, loc: loc, now: time.Now}
}

type InventoryFilter struct {
	CategoryID   string `json:"category"`
	LowStockOnly bool   `json:"lowStockOnly"`
}

type styles struct {
	title, header, low, ok, italic int
}

func newStyles(f *excelize.File) (styles, error) {
	var (
		s   styles
		err error
	)
	if s.title, err = f.NewStyle(&excelize.Style{Font: &excelize.Font{Bold: true, Size: 16}}); err != nil {
		return s, err
	}
	if s.header, err = f.NewStyle(&excelize.Style{
		Font: &excelize.Font{Bold: true, Color: "FFFFFF"},
		Fill: excelize.Fill{Type: "pattern", Pattern: 1, Color: []string{"4472C4"}},
	}); err != nil {
		return s, err
	}
	if s.low, err = f.NewStyle(&excelize.Style{
		Font: &excelize.Font{Bold: true, Color: "DC3545"},
		Fill: excelize.Fill{Type: "pattern", Pattern: 1, Color: []string{"FFF3CD"}},
	}); err != nil {
		return s, err
	}
	if s.ok, err = f.NewStyle(&excelize.Style{Font: &excelize.Font{Bold: true, Color: "28A745"}}); err != nil {
		return s, err
	}
	s.italic, err = f.NewStyle(&excelize.Style{Font: &excelize.Font{Italic: true}})
	return s, err
}

// Inventory 库存报表：标题 + 汇总 + 明细，低库存行标红
func (g *Generator) Inventory(ctx context.Context, generatedBy string, filter InventoryFilter) (*File, error) {
	items, err := g.repo.ListItems(ctx, db.ItemsQuery{
		CategoryID: filter.CategoryID,
		LowStock:   filter.LowStockOnly,
		Sort:       "name",
	})
	if err != nil {
		return nil, err
	}

	f := excelize.NewFile()
	defer f.Close()
	const sheet = "Inventory Report"
	if err := f.SetSheetName("Sheet1", sheet); err != nil {
		return nil, err
	}
	st, err := newStyles(f)
	if err != nil {
		return nil, err
	}

	now := g.now().In(g.loc)
	total, low := 0, 0
	for _, it := range items {
		total += it.Quantity
		if it.IsLowStock() {
			low++
		}
	}

	title := "INVENTORY REPORT"
	if filter.LowStockOnly {
		title = "LOW STOCK ALERT"
	}
	_ = f.MergeCell(sheet, "A1", "H1")
	_ = f.SetCellValue(sheet, "A1", title)
	_ = f.SetCellStyle(sheet, "A1", "A1", st.title)
	_ = f.SetCellValue(sheet, "A2", "Generated: "+now.Format("01/02/2006 15:04"))
	_ = f.SetCellValue(sheet, "A3", "By: "+generatedBy)
	_ = f.SetCellStyle(sheet, "A2", "A3", st.italic)
	_ = f.SetCellValue(sheet, "D2", fmt.Sprintf("Total Items: %d", len(items)))
	_ = f.SetCellValue(sheet, "D3", fmt.Sprintf("Low Stock Items: %d", low))
	_ = f.SetCellValue(sheet, "F2", fmt.Sprintf("Total Quantity: %d", total))

	if err := f.SetSheetRow(sheet, "A5", &[]any{
		"Item Name", "SKU / Stock No.", "Category", "Quantity", "Unit", "Min Stock Level", "Status", "Description",
	}); err != nil {
		return nil, err
	}
	_ = f.SetCellStyle(sheet, "A5", "H5", st.header)

	for i, it := range items {
		row := 6 + i
		category := "Uncategorized"
		if it.Category != nil {
			category = it.Category.Name
		}
		status, style := "IN STOCK", st.ok
		if it.IsLowStock() {
			status, style = "LOW STOCK", st.low
		}
		addr := fmt.Sprintf("A%d", row)
		if err := f.SetSheetRow(sheet, addr, &[]any{
			it.Name, it.StockCode(), category, it.Quantity, it.Unit, it.MinStockLevel, status, it.Description,
		}); err != nil {
			return nil, err
		}
		_ = f.SetCellStyle(sheet, fmt.Sprintf("G%d", row), fmt.Sprintf("G%d", row), style)
	}

	for col, w := range map[string]float64{"A": 30, "B": 16, "C": 18, "D": 10, "E": 8, "F": 15, "G": 12, "H": 40} {
		_ = f.SetColWidth(sheet, col, col, w)
	}

	buf, err := f.WriteToBuffer()
	if err != nil {
		return nil, err
	}
	prefix := "Inventory-Report"
	if filter.LowStockOnly {
		prefix = "Low-Stock-Alert"
	}
	return &File{Filename: fmt.Sprintf("%s-%s.xlsx", prefix, now.Format("2006-01-02")), Bytes: buf.Bytes()}, nil
}

// Transactions exports the ledger for the given query, newest first.
func (g *Generator) Transactions(ctx context.Context, generatedBy string, q db.TransactionsQuery) (*File, error) {
	txs, err := g.repo.ListTransactions(ctx, q)
	if err != nil {
		return nil, err
	}

	f := excelize.NewFile()
	defer f.Close()
	const sheet = "Transaction Report"
	if err := f.SetSheetName("Sheet1", sheet); err != nil {
		return nil, err
	}
	st, err := newStyles(f)
	if err != nil {
		return nil, err
	}

	now := g.now().In(g.loc)
	in, out := 0, 0
	for _, t := range txs {
		if t.Type == models.TxIn {
			in += t.Quantity
		} else {
			out += t.Quantity
		}
	}
	period := "All time"
	if q.From != nil || q.To != nil {
		from, to := "All time", "Present"
		if q.From != nil {
			from = q.From.In(g.loc).Format("01/02/2006")
		}
		if q.To != nil {
			to = q.To.In(g.loc).Format("01/02/2006")
		}
		period = from + " to " + to
	}

	_ = f.MergeCell(sheet, "A1", "H1")
	_ = f.SetCellValue(sheet, "A1", "TRANSACTION REPORT")
	_ = f.SetCellStyle(sheet, "A1", "A1", st.title)
	_ = f.SetCellValue(sheet, "A2", "Report Date: "+now.Format("01/02/2006 15:04"))
	_ = f.SetCellValue(sheet, "A3", "Generated By: "+generatedBy)
	_ = f.SetCellValue(sheet, "A4", "Period: "+period)
	_ = f.SetCellStyle(sheet, "A2", "A4", st.italic)
	_ = f.SetCellValue(sheet, "D2", fmt.Sprintf("Total Transactions: %d", len(txs)))
	_ = f.SetCellValue(sheet, "D3", fmt.Sprintf("Stock In: %d units", in))
	_ = f.SetCellValue(sheet, "D4", fmt.Sprintf("Stock Out: %d units", out))

	if err := f.SetSheetRow(sheet, "A6", &[]any{
		"Date & Time", "Item Name", "SKU", "Type", "Quantity", "Balance After", "Notes", "Performed By",
	}); err != nil {
		return nil, err
	}
	_ = f.SetCellStyle(sheet, "A6", "H6", st.header)

	for i, t := range txs {
		row := 7 + i
		name, sku := "Unknown", "N/A"
		if t.Item != nil {
			name, sku = t.Item.Name, t.Item.StockCode()
		}
		by := "System"
		if t.Performer != nil {
			by = t.Performer.Username
		}
		if err := f.SetSheetRow(sheet, fmt.Sprintf("A%d", row), &[]any{
			t.CreatedAt.In(g.loc).Format("01/02/2006 15:04"), name, sku, string(t.Type), t.Quantity, t.BalanceAfter, t.Notes, by,
		}); err != nil {
			return nil, err
		}
		style := st.ok
		if t.Type == models.TxOut {
			style = st.low
		}
		_ = f.SetCellStyle(sheet, fmt.Sprintf("D%d", row), fmt.Sprintf("D%d", row), style)
	}
	for col, w := range map[string]float64{"A": 18, "B": 30, "C": 14, "D": 8, "E": 10, "F": 14, "G": 40, "H": 16} {
		_ = f.SetColWidth(sheet, col, col, w)
	}

	buf, err := f.WriteToBuffer()
	if err != nil {
		return nil, err
	}
	return &File{Filename: fmt.Sprintf("Transaction-Report-%s.xlsx", now.Format("2006-01-02")), Bytes: buf.Bytes()}, nil
}
