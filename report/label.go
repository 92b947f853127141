package report

import (
	"context"
	"fmt"

	"Gin_postgres_redis_supply_tool/apperr"
	"Gin_postgres_redis_supply_tool/db"

	"github.com/xuri/excelize/v2"
)

// ItemLabel 单个物品的货架标签：名称、库存编号、分类、数量、单位、生成日期
func (g *Generator) ItemLabel(ctx context.Context, itemID string) (*File, error) {
	it, err := g.repo.FindItemByID(ctx, itemID)
	if db.IsNotFound(err) {
		return nil, apperr.NotFoundf("Item not found")
	}
	if err != nil {
		return nil, err
	}

	f := excelize.NewFile()
	defer f.Close()
	const sheet = "Label"
	if err := f.SetSheetName("Sheet1", sheet); err != nil {
		return nil, err
	}
	st, err := newStyles(f)
	if err != nil {
		return nil, err
	}

	category := "Uncategorized"
	if it.Category != nil {
		category = it.Category.Name
	}
	now := g.now().In(g.loc)

	_ = f.MergeCell(sheet, "A1", "B1")
	_ = f.SetCellValue(sheet, "A1", it.Name)
	_ = f.SetCellStyle(sheet, "A1", "A1", st.title)
	rows := [][]any{
		{"SKU", it.StockCode()},
		{"Category", category},
		{"Quantity", it.Quantity},
		{"Unit", it.Unit},
		{"Description", it.Description},
		{"Date Generated", now.Format("01/02/2006")},
	}
	for i, r := range rows {
		if err := f.SetSheetRow(sheet, fmt.Sprintf("A%d", i+3), &r); err != nil {
			return nil, err
		}
	}
	_ = f.SetCellStyle(sheet, "A3", fmt.Sprintf("A%d", len(rows)+2), st.header)
	_ = f.SetColWidth(sheet, "A", "A", 16)
	_ = f.SetColWidth(sheet, "B", "B", 36)

	buf, err := f.WriteToBuffer()
	if err != nil {
		return nil, err
	}
	code := it.ID
	if it.SKU != nil && *it.SKU != "" {
		code = *it.SKU
	}
	return &File{Filename: fmt.Sprintf("label-%s-%s.xlsx", code, now.Format("20060102-150405")), Bytes: buf.Bytes()}, nil
}
