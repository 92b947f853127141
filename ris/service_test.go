package ris

import (
	"bytes"
	"context"
	"sort"
	"sync"
	"testing"
	"time"

	"Gin_postgres_redis_supply_tool/apperr"
	"Gin_postgres_redis_supply_tool/db"
	"Gin_postgres_redis_supply_tool/db/dbtest"
	"Gin_postgres_redis_supply_tool/inventory"
	"Gin_postgres_redis_supply_tool/models"
	"Gin_postgres_redis_supply_tool/requisition"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/xuri/excelize/v2"
)

var (
	day1 = time.Date(2025, time.March, 7, 9, 0, 0, 0, time.UTC)
	day2 = time.Date(2025, time.March, 8, 9, 0, 0, 0, time.UTC)
)

type fixture struct {
	repo   *db.Repo
	svc    *Service
	engine *requisition.Engine
	ledger *inventory.Ledger
	admin  requisition.Actor
	owner  requisition.Actor
	other  requisition.Actor
}

func newFixture(t *testing.T) *fixture {
	t.Helper()
	repo := db.NewRepo(dbtest.Open(t))
	admin := dbtest.User(t, repo, "admin", models.RoleAdmin)
	owner := dbtest.User(t, repo, "juan", models.RoleUser)
	other := dbtest.User(t, repo, "maria", models.RoleUser)
	svc := NewService(repo, Options{Location: time.UTC})
	svc.now = func() time.Time { return day2.Add(3 * time.Hour) }
	return &fixture{
		repo:   repo,
		svc:    svc,
		engine: requisition.NewEngine(repo),
		ledger: inventory.NewLedger(repo),
		admin:  requisition.Actor{ID: admin.ID, IsAdmin: true},
		owner:  requisition.Actor{ID: owner.ID},
		other:  requisition.Actor{ID: other.ID},
	}
}

// approved creates and approves a request for qty of item, reviewed on the given day.
func (f *fixture) approved(t *testing.T, itemID string, qty int, reviewed time.Time) *models.Request {
	t.Helper()
	ctx := context.Background()
	req, err := f.engine.Create(ctx, f.owner, requisition.CreateInput{
		Items:          []requisition.LineInput{{ItemID: itemID, Quantity: qty}},
		Purpose:        "Training supplies",
		ReceivedByName: "Ana",
	})
	require.NoError(t, err)
	_, err = f.engine.Approve(ctx, f.admin, req.ID)
	require.NoError(t, err)
	require.NoError(t, f.repo.DB.Model(&models.Request{}).Where("id = ?", req.ID).Update("reviewed_at", reviewed).Error)
	return req
}

func open(t *testing.T, doc *Document) *excelize.File {
	t.Helper()
	f, err := excelize.OpenReader(bytes.NewReader(doc.Bytes))
	require.NoError(t, err)
	t.Cleanup(func() { _ = f.Close() })
	return f
}

func value(t *testing.T, f *excelize.File, sheet, addr string) string {
	t.Helper()
	v, err := f.GetCellValue(sheet, addr)
	require.NoError(t, err)
	return v
}

func TestAssign_SequentialPerDay(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	it := dbtest.Item(t, f.repo, "Paper", 100, f.admin.ID)

	a := f.approved(t, it.ID, 1, day1)
	b := f.approved(t, it.ID, 1, day1.Add(2*time.Hour))
	c := f.approved(t, it.ID, 1, day2)
	d := f.approved(t, it.ID, 1, day1.Add(5*time.Hour))

	want := map[string]string{
		a.ID: "R2025-0307-001",
		b.ID: "R2025-0307-002",
		c.ID: "R2025-0308-001",
		d.ID: "R2025-0307-003",
	}
	for _, id := range []string{a.ID, b.ID, c.ID, d.ID} {
		n, err := f.svc.Assign(ctx, id)
		require.NoError(t, err)
		assert.Equal(t, want[id], n)
	}

	// 再次生成不改变编号
	again, err := f.svc.Assign(ctx, b.ID)
	require.NoError(t, err)
	assert.Equal(t, "R2025-0307-002", again)
}

func TestAssign_SkipsLegacyNumbers(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	it := dbtest.Item(t, f.repo, "Paper", 100, f.admin.ID)

	legacy := f.approved(t, it.ID, 1, day1)
	// 旧数据只留下 002，计数器按已有数量从 2 开始，会撞上
	require.NoError(t, f.repo.DB.Model(&models.Request{}).Where("id = ?", legacy.ID).Update("ris_number", "R2025-0307-002").Error)

	fresh := f.approved(t, it.ID, 1, day1)
	n, err := f.svc.Assign(ctx, fresh.ID)
	require.NoError(t, err)
	assert.Equal(t, "R2025-0307-003", n)
}

// sqlite 测试库只有一个连接，这里验证的是计数器与条件写入的结果；
// 真正的行锁竞争需要在 postgres 上跑
func TestAssign_ConcurrentSameDay(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	it := dbtest.Item(t, f.repo, "Paper", 100, f.admin.ID)

	const n = 4
	ids := make([]string, n)
	for i := range ids {
		ids[i] = f.approved(t, it.ID, 1, day1).ID
	}
	// 同一申请并发两次，编号只分配一次
	ids = append(ids, ids[0])

	got := make([]string, len(ids))
	errs := make([]error, len(ids))
	var wg sync.WaitGroup
	for i, id := range ids {
		wg.Add(1)
		go func(i int, id string) {
			defer wg.Done()
			got[i], errs[i] = f.svc.Assign(ctx, id)
		}(i, id)
	}
	wg.Wait()

	for _, err := range errs {
		require.NoError(t, err)
	}
	assert.Equal(t, got[0], got[n])
	distinct := append([]string(nil), got[:n]...)
	sort.Strings(distinct)
	assert.Equal(t, []string{"R2025-0307-001", "R2025-0307-002", "R2025-0307-003", "R2025-0307-004"}, distinct)
}

func TestGenerate_HistoricalBalanceSurvivesRestock(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	it := dbtest.Item(t, f.repo, "Bond paper", 50, f.admin.ID)

	req := f.approved(t, it.ID, 20, day1)
	_, err := f.ledger.RecordMovement(ctx, f.admin.ID, inventory.MovementInput{ItemID: it.ID, Type: models.TxIn, Quantity: 50})
	require.NoError(t, err)
	cur, err := f.ledger.GetItem(ctx, it.ID)
	require.NoError(t, err)
	require.Equal(t, 80, cur.Quantity)

	for i := 0; i < 2; i++ {
		doc, err := f.svc.Generate(ctx, f.owner, req.ID)
		require.NoError(t, err)
		assert.Equal(t, "RIS-R2025-0307-001.xlsx", doc.Filename)

		x := open(t, doc)
		sheet := x.GetSheetName(0)
		assert.Equal(t, "R2025-0307-001", value(t, x, sheet, "G8"))
		assert.Equal(t, "MOOE", value(t, x, sheet, "H7"))
		assert.Equal(t, "Bond paper", value(t, x, sheet, "C11"))
		assert.Equal(t, "20", value(t, x, sheet, "D11"))
		assert.Equal(t, "X", value(t, x, sheet, "E11"))
		assert.Equal(t, "30", value(t, x, sheet, "G11"))
		assert.Equal(t, "Issued", value(t, x, sheet, "H11"))
		assert.Equal(t, "Training supplies", value(t, x, sheet, "B23"))
		assert.Equal(t, "juan", value(t, x, sheet, "C26"))
		assert.Equal(t, "Ana", value(t, x, sheet, "H26"))
		assert.Equal(t, "03/08/2025", value(t, x, sheet, "D28"))
	}
}

func TestGenerate_PrintsReviewer(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	require.NoError(t, f.repo.SetUserProfile(ctx, f.admin.ID, "Rosa Dela Cruz", "Supply Officer III"))
	it := dbtest.Item(t, f.repo, "Bond paper", 50, f.admin.ID)
	req := f.approved(t, it.ID, 5, day1)

	doc, err := f.svc.Generate(ctx, f.owner, req.ID)
	require.NoError(t, err)
	x := open(t, doc)
	sheet := x.GetSheetName(0)
	assert.Equal(t, "Rosa Dela Cruz", value(t, x, sheet, "E26"))
	assert.Equal(t, "Supply Officer III", value(t, x, sheet, "E27"))
	assert.Equal(t, "03/07/2025", value(t, x, sheet, "E28"))
}

func TestAssemble_FallsBackToCurrentQuantity(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	a := dbtest.Item(t, f.repo, "Paper", 10, f.admin.ID)
	b := dbtest.Item(t, f.repo, "Ink", 7, f.admin.ID)

	req, err := f.engine.Create(ctx, f.owner, requisition.CreateInput{
		Items:   []requisition.LineInput{{ItemID: a.ID, Quantity: 4}, {ItemID: b.ID, Quantity: 2}},
		Purpose: "x",
	})
	require.NoError(t, err)
	_, err = f.engine.ApproveLine(ctx, f.admin, req.ID, req.Lines[0].ID)
	require.NoError(t, err)
	_, err = f.engine.RejectLine(ctx, f.admin, req.ID, req.Lines[1].ID, "not stocked")
	require.NoError(t, err)

	full, err := f.repo.FindRequest(ctx, req.ID)
	require.NoError(t, err)
	slip, err := f.svc.assemble(ctx, full)
	require.NoError(t, err)
	require.Len(t, slip.Lines, 2)
	assert.True(t, slip.Lines[0].Historical)
	assert.Equal(t, 6, slip.Lines[0].Balance)
	assert.False(t, slip.Lines[1].Historical)
	assert.Equal(t, 7, slip.Lines[1].Balance)
	assert.Equal(t, models.StatusRejected, slip.Lines[1].Status)
}

func TestGenerate_Eligibility(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	it := dbtest.Item(t, f.repo, "Paper", 10, f.admin.ID)

	pending, err := f.engine.Create(ctx, f.owner, requisition.CreateInput{ItemID: it.ID, Quantity: 1, Purpose: "x"})
	require.NoError(t, err)
	_, err = f.svc.Generate(ctx, f.owner, pending.ID)
	assert.ErrorIs(t, err, apperr.ErrInvalidState)

	done := f.approved(t, it.ID, 1, day1)
	_, err = f.svc.Generate(ctx, f.other, done.ID)
	assert.ErrorIs(t, err, apperr.ErrForbidden)
	_, err = f.svc.Generate(ctx, f.owner, "missing")
	assert.ErrorIs(t, err, apperr.ErrNotFound)

	_, err = f.svc.Generate(ctx, f.admin, done.ID)
	assert.NoError(t, err)
}

func TestGenerateBatch_Validation(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	it := dbtest.Item(t, f.repo, "Paper", 100, f.admin.ID)
	mine := f.approved(t, it.ID, 1, day1)

	_, err := f.svc.GenerateBatch(ctx, f.owner, []string{mine.ID})
	assert.ErrorIs(t, err, apperr.ErrValidation)

	// 另一人的申请混在批次里：整批拒绝，且前面的申请也不分配编号
	theirs, err := f.engine.Create(ctx, f.other, requisition.CreateInput{ItemID: it.ID, Quantity: 1, Purpose: "y"})
	require.NoError(t, err)
	_, err = f.engine.Approve(ctx, f.admin, theirs.ID)
	require.NoError(t, err)

	_, err = f.svc.GenerateBatch(ctx, f.owner, []string{mine.ID, theirs.ID})
	assert.ErrorIs(t, err, apperr.ErrForbidden)
	got, err := f.repo.FindRequest(ctx, mine.ID)
	require.NoError(t, err)
	assert.Nil(t, got.RISNumber)

	_, err = f.svc.GenerateBatch(ctx, f.owner, []string{mine.ID, mine.ID})
	assert.ErrorIs(t, err, apperr.ErrValidation)

	_, err = f.svc.GenerateBatch(ctx, f.owner, []string{mine.ID, "00000000-0000-0000-0000-000000000000"})
	assert.ErrorIs(t, err, apperr.ErrNotFound)
}

func TestGenerateBatch_TwoSlipsPerSheet(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	it := dbtest.Item(t, f.repo, "Paper", 100, f.admin.ID)

	ids := []string{
		f.approved(t, it.ID, 1, day1).ID,
		f.approved(t, it.ID, 2, day1).ID,
		f.approved(t, it.ID, 3, day1).ID,
	}
	doc, err := f.svc.GenerateBatch(ctx, f.admin, ids)
	require.NoError(t, err)
	assert.Equal(t, []string{"R2025-0307-001", "R2025-0307-002", "R2025-0307-003"}, doc.Numbers)
	assert.Contains(t, doc.Filename, "RIS-Batch-3requests-")

	x := open(t, doc)
	require.Equal(t, []string{templateSheet, "RIS Set 2"}, x.GetSheetList())
	assert.Equal(t, "R2025-0307-001", value(t, x, templateSheet, "G8"))
	assert.Equal(t, "R2025-0307-002", value(t, x, templateSheet, "G37"))
	assert.Equal(t, "admin", value(t, x, templateSheet, "E55"))
	assert.Equal(t, "2", value(t, x, templateSheet, "D40"))
	assert.Equal(t, "R2025-0307-003", value(t, x, "RIS Set 2", "G8"))
	assert.Equal(t, "REQUISITION AND ISSUE SLIP", value(t, x, "RIS Set 2", "A3"))

	merges, err := x.GetMergeCells("RIS Set 2")
	require.NoError(t, err)
	assert.NotEmpty(t, merges)
}

func TestGenerateCustom(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()

	in := CustomInput{
		Division: "Admin",
		Purpose:  "Seminar",
		Items:    []CustomLine{{StockNo: "S-1", Unit: "box", Description: "Markers", Quantity: 3}},
	}
	_, err := f.svc.GenerateCustom(ctx, f.owner, "juan", in)
	assert.ErrorIs(t, err, apperr.ErrForbidden)

	doc, err := f.svc.GenerateCustom(ctx, f.admin, "admin", in)
	require.NoError(t, err)
	assert.Equal(t, []string{"R2025-0308-001"}, doc.Numbers)
	x := open(t, doc)
	sheet := x.GetSheetName(0)
	assert.Equal(t, "Markers", value(t, x, sheet, "C11"))
	assert.Equal(t, "admin", value(t, x, sheet, "C26"))

	doc, err = f.svc.GenerateCustom(ctx, f.admin, "admin", in)
	require.NoError(t, err)
	assert.Equal(t, []string{"R2025-0308-002"}, doc.Numbers)

	in.Items = nil
	_, err = f.svc.GenerateCustom(ctx, f.admin, "admin", in)
	assert.ErrorIs(t, err, apperr.ErrValidation)
}

func TestPreviewTemplate(t *testing.T) {
	f := newFixture(t)

	_, err := f.svc.PreviewTemplate(f.owner)
	assert.ErrorIs(t, err, apperr.ErrForbidden)

	p, err := f.svc.PreviewTemplate(f.admin)
	require.NoError(t, err)
	assert.Equal(t, templateSheet, p.SheetName)
	assert.Equal(t, "REQUISITION AND ISSUE SLIP", p.Cells["A3"])
	assert.Equal(t, "RIS No.:", p.Cells["F37"])
	assert.Contains(t, p.Merges, "A3:H3")
}
