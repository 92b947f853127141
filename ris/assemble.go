package ris

import (
	"context"

	"Gin_postgres_redis_supply_tool/models"
)

// assemble builds the printable slip. Balances come from the issue transactions linked
// to the request, so stock movements after the issue never change a reprinted slip.
func (s *Service) assemble(ctx context.Context, req *models.Request) (Slip, error) {
	issues, err := s.repo.IssueTransactions(ctx, req.ID)
	if err != nil {
		return Slip{}, err
	}
	byLine := map[string]int{}
	byItem := map[string]int{}
	for _, t := range issues {
		if t.RequestLineID != nil {
			byLine[*t.RequestLineID] = t.BalanceAfter
			continue
		}
		// 旧流水没有行 id，按物品取第一条
		if _, ok := byItem[t.ItemID]; !ok {
			byItem[t.ItemID] = t.BalanceAfter
		}
	}

	slip := Slip{
		BudgetSource:           req.BudgetSource,
		Purpose:                req.Purpose,
		RequestedByName:        req.RequestedByName,
		RequestedByDesignation: req.RequestedByDesignation,
		ReceivedByName:         req.ReceivedByName,
		ReceivedByDesignation:  req.ReceivedByDesignation,
		RequestedAt:            req.CreatedAt.In(s.loc),
	}
	if req.RISNumber != nil {
		slip.Number = *req.RISNumber
	}
	if slip.RequestedByName == "" && req.Requester != nil {
		slip.RequestedByName = req.Requester.DisplayName
	}
	if req.Reviewer != nil {
		slip.ApprovedByName = req.Reviewer.DisplayName
		slip.ApprovedByDesignation = req.Reviewer.Designation
	}
	if req.ReviewedAt != nil {
		slip.ReviewedAt = req.ReviewedAt.In(s.loc)
	}

	for _, l := range req.Lines {
		sl := SlipLine{
			StockNo:  "N/A",
			Unit:     l.Unit,
			Quantity: l.Quantity,
			Status:   l.Status,
		}
		if l.Item != nil {
			sl.StockNo = l.Item.StockCode()
			sl.Description = l.Item.Name
		}
		if sl.Unit == "" {
			sl.Unit = "pcs"
		}

		if bal, ok := byLine[l.ID]; ok {
			sl.Balance, sl.Historical = bal, true
		} else if bal, ok := byItem[l.ItemID]; ok {
			sl.Balance, sl.Historical = bal, true
		} else if l.Item != nil {
			sl.Balance = l.Item.Quantity
		}
		slip.Lines = append(slip.Lines, sl)
	}
	return slip, nil
}
