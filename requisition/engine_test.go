package requisition

import (
	"context"
	"sync"
	"testing"

	"Gin_postgres_redis_supply_tool/apperr"
	"Gin_postgres_redis_supply_tool/db"
	"Gin_postgres_redis_supply_tool/db/dbtest"
	"Gin_postgres_redis_supply_tool/models"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type fixture struct {
	engine *Engine
	repo   *db.Repo
	admin  Actor
	owner  Actor
	other  Actor
}

func newFixture(t *testing.T) *fixture {
	t.Helper()
	repo := db.NewRepo(dbtest.Open(t))
	admin := dbtest.User(t, repo, "admin", models.RoleAdmin)
	owner := dbtest.User(t, repo, "juan", models.RoleUser)
	other := dbtest.User(t, repo, "maria", models.RoleUser)
	return &fixture{
		engine: NewEngine(repo),
		repo:   repo,
		admin:  Actor{ID: admin.ID, IsAdmin: true},
		owner:  Actor{ID: owner.ID},
		other:  Actor{ID: other.ID},
	}
}

func (f *fixture) quantity(t *testing.T, itemID string) int {
	t.Helper()
	it, err := f.repo.FindItemByID(context.Background(), itemID)
	require.NoError(t, err)
	return it.Quantity
}

func (f *fixture) multi(t *testing.T, lines ...LineInput) *models.Request {
	t.Helper()
	req, err := f.engine.Create(context.Background(), f.owner, CreateInput{Items: lines, Purpose: "Office use"})
	require.NoError(t, err)
	return req
}

func TestCreate_SingleShapeIsOneLine(t *testing.T) {
	f := newFixture(t)
	it := dbtest.Item(t, f.repo, "Bond paper", 10, f.admin.ID)

	req, err := f.engine.Create(context.Background(), f.owner, CreateInput{ItemID: it.ID, Quantity: 3, Purpose: "Printing"})
	require.NoError(t, err)
	assert.True(t, req.Single)
	assert.Equal(t, models.StatusPending, req.Status)
	assert.Equal(t, models.BudgetMOOE, req.BudgetSource)
	assert.Equal(t, "juan", req.RequestedByName)
	require.Len(t, req.Lines, 1)
	assert.Equal(t, "pcs", req.Lines[0].Unit)
	assert.NotEmpty(t, req.Lines[0].ID)
	assert.Equal(t, 10, f.quantity(t, it.ID), "creating a request reserves nothing")
}

func TestCreate_Validation(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	it := dbtest.Item(t, f.repo, "Pen", 5, f.admin.ID)

	_, err := f.engine.Create(ctx, f.owner, CreateInput{Purpose: "x"})
	assert.ErrorIs(t, err, apperr.ErrValidation)

	_, err = f.engine.Create(ctx, f.owner, CreateInput{ItemID: it.ID, Quantity: 1})
	assert.ErrorIs(t, err, apperr.ErrValidation)

	_, err = f.engine.Create(ctx, f.owner, CreateInput{ItemID: it.ID, Quantity: 0, Purpose: "x"})
	assert.ErrorIs(t, err, apperr.ErrValidation)

	_, err = f.engine.Create(ctx, f.owner, CreateInput{Items: []LineInput{{ItemID: "nope", Quantity: 1}}, Purpose: "x"})
	assert.ErrorIs(t, err, apperr.ErrNotFound)
	assert.Contains(t, err.Error(), "nope")

	_, err = f.engine.Create(ctx, f.owner, CreateInput{Items: []LineInput{{ItemID: it.ID, Quantity: 6}}, Purpose: "x"})
	assert.ErrorIs(t, err, apperr.ErrInsufficientStock)
	assert.Equal(t, "Insufficient stock for Pen. Available: 5", err.Error())

	rs, err := f.engine.List(ctx, f.admin, ListFilter{})
	require.NoError(t, err)
	assert.Empty(t, rs)
}

func TestGetAndList_Authorization(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	it := dbtest.Item(t, f.repo, "Pen", 5, f.admin.ID)
	req := f.multi(t, LineInput{ItemID: it.ID, Quantity: 1})

	_, err := f.engine.Get(ctx, f.other, req.ID)
	assert.ErrorIs(t, err, apperr.ErrForbidden)
	_, err = f.engine.Get(ctx, f.admin, req.ID)
	assert.NoError(t, err)
	_, err = f.engine.Get(ctx, f.owner, "missing")
	assert.ErrorIs(t, err, apperr.ErrNotFound)

	mine, err := f.engine.List(ctx, f.other, ListFilter{})
	require.NoError(t, err)
	assert.Empty(t, mine)
	all, err := f.engine.List(ctx, f.admin, ListFilter{Status: models.StatusPending})
	require.NoError(t, err)
	assert.Len(t, all, 1)
}

func TestApprove_DebitsAndLinksTransactions(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	a := dbtest.Item(t, f.repo, "Paper", 50, f.admin.ID)
	b := dbtest.Item(t, f.repo, "Ink", 8, f.admin.ID)
	req := f.multi(t, LineInput{ItemID: a.ID, Quantity: 20}, LineInput{ItemID: b.ID, Quantity: 3})

	got, err := f.engine.Approve(ctx, f.admin, req.ID)
	require.NoError(t, err)
	assert.Equal(t, models.StatusApproved, got.Status)
	require.NotNil(t, got.ReviewedBy)
	assert.Equal(t, f.admin.ID, *got.ReviewedBy)
	assert.NotNil(t, got.ReviewedAt)
	for _, l := range got.Lines {
		assert.Equal(t, models.StatusApproved, l.Status)
	}
	assert.Equal(t, 30, f.quantity(t, a.ID))
	assert.Equal(t, 5, f.quantity(t, b.ID))

	txs, err := f.repo.IssueTransactions(ctx, req.ID)
	require.NoError(t, err)
	require.Len(t, txs, 2)
	assert.Equal(t, 30, txs[0].BalanceAfter)
	require.NotNil(t, txs[0].RequestLineID)
	assert.Equal(t, got.Lines[0].ID, *txs[0].RequestLineID)

	_, err = f.engine.Approve(ctx, f.admin, req.ID)
	assert.ErrorIs(t, err, apperr.ErrInvalidState)
	assert.Equal(t, 30, f.quantity(t, a.ID))
}

func TestApprove_InsufficientStockRollsBackEveryLine(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	a := dbtest.Item(t, f.repo, "Paper", 10, f.admin.ID)
	b := dbtest.Item(t, f.repo, "Ink", 4, f.admin.ID)
	req := f.multi(t, LineInput{ItemID: a.ID, Quantity: 5}, LineInput{ItemID: b.ID, Quantity: 4})

	// 申请之后库存被别处领走
	_, err := f.repo.DebitItem(ctx, b.ID, 2)
	require.NoError(t, err)

	_, err = f.engine.Approve(ctx, f.admin, req.ID)
	assert.ErrorIs(t, err, apperr.ErrInsufficientStock)

	assert.Equal(t, 10, f.quantity(t, a.ID))
	assert.Equal(t, 2, f.quantity(t, b.ID))
	txs, err := f.repo.IssueTransactions(ctx, req.ID)
	require.NoError(t, err)
	assert.Empty(t, txs)
	got, err := f.engine.Get(ctx, f.admin, req.ID)
	require.NoError(t, err)
	assert.True(t, got.FullyPending())
}

func TestApprove_AdminOnly(t *testing.T) {
	f := newFixture(t)
	it := dbtest.Item(t, f.repo, "Pen", 5, f.admin.ID)
	req := f.multi(t, LineInput{ItemID: it.ID, Quantity: 1})

	_, err := f.engine.Approve(context.Background(), f.owner, req.ID)
	assert.ErrorIs(t, err, apperr.ErrForbidden)
	_, err = f.engine.Reject(context.Background(), f.owner, req.ID, "no")
	assert.ErrorIs(t, err, apperr.ErrForbidden)
}

func TestReject_RequiresReasonAndLeavesStock(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	it := dbtest.Item(t, f.repo, "Pen", 5, f.admin.ID)
	req := f.multi(t, LineInput{ItemID: it.ID, Quantity: 2})

	_, err := f.engine.Reject(ctx, f.admin, req.ID, "  ")
	assert.ErrorIs(t, err, apperr.ErrValidation)

	got, err := f.engine.Reject(ctx, f.admin, req.ID, "Out of budget")
	require.NoError(t, err)
	assert.Equal(t, models.StatusRejected, got.Status)
	assert.Equal(t, "Out of budget", got.RejectionReason)
	assert.Equal(t, "Out of budget", got.Lines[0].RejectionReason)
	assert.Equal(t, 5, f.quantity(t, it.ID))
}

func TestLineReview_FoldsAndStamps(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	a := dbtest.Item(t, f.repo, "Paper", 10, f.admin.ID)
	b := dbtest.Item(t, f.repo, "Ink", 10, f.admin.ID)
	req := f.multi(t, LineInput{ItemID: a.ID, Quantity: 2}, LineInput{ItemID: b.ID, Quantity: 3})

	got, err := f.engine.RejectLine(ctx, f.admin, req.ID, req.Lines[1].ID, "")
	require.NoError(t, err)
	assert.Equal(t, models.StatusPending, got.Status)
	assert.Nil(t, got.ReviewedAt)
	assert.Equal(t, defaultRejectReason, got.Lines[1].RejectionReason)

	// 位置下标兼容旧客户端
	got, err = f.engine.ApproveLine(ctx, f.admin, req.ID, "0")
	require.NoError(t, err)
	assert.Equal(t, models.StatusApproved, got.Status)
	assert.NotNil(t, got.ReviewedAt)
	assert.Equal(t, 8, f.quantity(t, a.ID))
	assert.Equal(t, 10, f.quantity(t, b.ID))

	_, err = f.engine.ApproveLine(ctx, f.admin, req.ID, req.Lines[0].ID)
	assert.ErrorIs(t, err, apperr.ErrInvalidState)
	_, err = f.engine.ApproveLine(ctx, f.admin, req.ID, "7")
	assert.ErrorIs(t, err, apperr.ErrNotFound)
}

func TestLineReview_AllRejectedFoldsToRejected(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	a := dbtest.Item(t, f.repo, "Paper", 10, f.admin.ID)
	req := f.multi(t, LineInput{ItemID: a.ID, Quantity: 2}, LineInput{ItemID: a.ID, Quantity: 1})

	_, err := f.engine.RejectLine(ctx, f.admin, req.ID, "0", "dup")
	require.NoError(t, err)
	got, err := f.engine.RejectLine(ctx, f.admin, req.ID, "1", "dup")
	require.NoError(t, err)
	assert.Equal(t, models.StatusRejected, got.Status)
	require.NotNil(t, got.ReviewedBy)
}

// 测试库是单连接 sqlite，两个 goroutine 实际被连接池串行化，这里覆盖的是
// status = 'pending' 条件更新；FOR UPDATE 行锁的真实竞争要在 postgres 上验证
func TestApproveLine_ConcurrentAppliesOnce(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	it := dbtest.Item(t, f.repo, "Paper", 10, f.admin.ID)
	req := f.multi(t, LineInput{ItemID: it.ID, Quantity: 4})
	lineID := req.Lines[0].ID

	const n = 2
	errs := make([]error, n)
	var wg sync.WaitGroup
	for i := 0; i < n; i++ {
		wg.Add(1)
		go func(i int) {
			defer wg.Done()
			_, errs[i] = f.engine.ApproveLine(ctx, f.admin, req.ID, lineID)
		}(i)
	}
	wg.Wait()

	ok := 0
	for _, err := range errs {
		if err == nil {
			ok++
			continue
		}
		assert.ErrorIs(t, err, apperr.ErrInvalidState)
	}
	assert.Equal(t, 1, ok)
	assert.Equal(t, 6, f.quantity(t, it.ID))
	txs, err := f.repo.IssueTransactions(ctx, req.ID)
	require.NoError(t, err)
	assert.Len(t, txs, 1)
}

func TestUpdate_Rules(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	it := dbtest.Item(t, f.repo, "Pen", 5, f.admin.ID)

	single, err := f.engine.Create(ctx, f.owner, CreateInput{ItemID: it.ID, Quantity: 2, Purpose: "a"})
	require.NoError(t, err)

	q := 6
	_, err = f.engine.Update(ctx, f.owner, single.ID, UpdateInput{Quantity: &q})
	assert.ErrorIs(t, err, apperr.ErrInsufficientStock)

	q = 4
	purpose := "b"
	got, err := f.engine.Update(ctx, f.owner, single.ID, UpdateInput{Quantity: &q, Purpose: &purpose})
	require.NoError(t, err)
	assert.Equal(t, 4, got.Lines[0].Quantity)
	assert.Equal(t, "b", got.Purpose)

	_, err = f.engine.Update(ctx, f.admin, single.ID, UpdateInput{Purpose: &purpose})
	assert.ErrorIs(t, err, apperr.ErrForbidden)

	multi := f.multi(t, LineInput{ItemID: it.ID, Quantity: 1})
	_, err = f.engine.Update(ctx, f.owner, multi.ID, UpdateInput{Quantity: &q})
	assert.ErrorIs(t, err, apperr.ErrValidation)

	_, err = f.engine.Approve(ctx, f.admin, single.ID)
	require.NoError(t, err)
	_, err = f.engine.Update(ctx, f.owner, single.ID, UpdateInput{Purpose: &purpose})
	assert.ErrorIs(t, err, apperr.ErrInvalidState)
}

func TestDelete_Rules(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	it := dbtest.Item(t, f.repo, "Paper", 10, f.admin.ID)

	pending := f.multi(t, LineInput{ItemID: it.ID, Quantity: 1})
	assert.ErrorIs(t, f.engine.Delete(ctx, f.other, pending.ID), apperr.ErrForbidden)
	require.NoError(t, f.engine.Delete(ctx, f.owner, pending.ID))
	_, err := f.engine.Get(ctx, f.owner, pending.ID)
	assert.ErrorIs(t, err, apperr.ErrNotFound)

	partial := f.multi(t, LineInput{ItemID: it.ID, Quantity: 1}, LineInput{ItemID: it.ID, Quantity: 2})
	_, err = f.engine.ApproveLine(ctx, f.admin, partial.ID, partial.Lines[0].ID)
	require.NoError(t, err)
	assert.ErrorIs(t, f.engine.Delete(ctx, f.admin, partial.ID), apperr.ErrInvalidState)

	txs, err := f.repo.IssueTransactions(ctx, partial.ID)
	require.NoError(t, err)
	assert.Len(t, txs, 1)
}
