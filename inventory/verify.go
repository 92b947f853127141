package inventory

import (
	"context"

	"Gin_postgres_redis_supply_tool/apperr"
	"Gin_postgres_redis_supply_tool/db"

	"github.com/sirupsen/logrus"
)

type Mismatch struct {
	TransactionID uint64 `json:"transactionId"`
	Expected      int    `json:"expected"`
	Recorded      int    `json:"recorded"`
}

// VerifyReport is the result of replaying one item's transactions from zero.
type VerifyReport struct {
	ItemID     string     `json:"itemId"`
	ItemName   string     `json:"itemName"`
	Entries    int        `json:"entries"`
	Replayed   int        `json:"replayed"`
	Quantity   int        `json:"quantity"`
	Mismatches []Mismatch `json:"mismatches,omitempty"`
	OK         bool       `json:"ok"`
}

// Verify 按 id 顺序重放流水，检查每条 balanceAfter 与当前库存
func (l *Ledger) Verify(ctx context.Context, itemID string) (*VerifyReport, error) {
	it, err := l.repo.FindItemByID(ctx, itemID)
	if db.IsNotFound(err) {
		return nil, apperr.NotFoundf("Item not found")
	}
	if err != nil {
		return nil, err
	}
	history, err := l.repo.ItemHistory(ctx, itemID)
	if err != nil {
		return nil, err
	}

	rep := &VerifyReport{ItemID: it.ID, ItemName: it.Name, Entries: len(history), Quantity: it.Quantity}
	running := 0
	for _, t := range history {
		running += t.Type.Signed(t.Quantity)
		if running != t.BalanceAfter {
			rep.Mismatches = append(rep.Mismatches, Mismatch{TransactionID: t.ID, Expected: running, Recorded: t.BalanceAfter})
			// 以记录值继续，避免一处错误连带后续全部报错
			running = t.BalanceAfter
		}
	}
	rep.Replayed = running
	rep.OK = len(rep.Mismatches) == 0 && running == it.Quantity
	if !rep.OK {
		l.log.WithFields(logrus.Fields{
			"itemId":     it.ID,
			"replayed":   running,
			"quantity":   it.Quantity,
			"mismatches": len(rep.Mismatches),
		}).Warn("ledger replay mismatch")
	}
	return rep, nil
}

// VerifyAll replays every item; it returns only the reports that failed.
func (l *Ledger) VerifyAll(ctx context.Context) (checked int, failed []VerifyReport, err error) {
	ids, err := l.repo.AllItemIDs(ctx)
	if err != nil {
		return 0, nil, err
	}
	for _, id := range ids {
		if err := ctx.Err(); err != nil {
			return checked, failed, err
		}
		rep, err := l.Verify(ctx, id)
		if err != nil {
			return checked, failed, err
		}
		checked++
		if !rep.OK {
			failed = append(failed, *rep)
		}
	}
	return checked, failed, nil
}
