// Package requisition implements the supply request lifecycle: creation, review per
// line or as a whole, and the stock issue that approval triggers.
package requisition

import (
	"context"
	"fmt"
	"strings"
	"time"

	"Gin_postgres_redis_supply_tool/apperr"
	"Gin_postgres_redis_supply_tool/config"
	"Gin_postgres_redis_supply_tool/db"
	"Gin_postgres_redis_supply_tool/inventory"
	"Gin_postgres_redis_supply_tool/models"

	"github.com/sirupsen/logrus"
)

// Actor is the authenticated caller.
type Actor struct {
	ID      string
	IsAdmin bool
}

// CanAccess reports whether the actor may read or print the request.
func (a Actor) CanAccess(r *models.Request) bool {
	return a.IsAdmin || r.OwnedBy(a.ID)
}

const defaultRejectReason = "No reason provided"

type Engine struct {
	repo *db.Repo
	log  *logrus.Logger
	now  func() time.Time
}

func NewEngine(repo *db.Repo) *Engine {
	return &Engine{repo: repo, log: config.GetLogger(), now: time.Now}
}

type LineInput struct {
	ItemID   string `json:"item" binding:"required"`
	Quantity int    `json:"quantity" binding:"required,min=1"`
	Unit     string `json:"unit"`
}

// CreateInput accepts either Items or the legacy single Item/Quantity/Unit shape.
type CreateInput struct {
	ItemID   string      `json:"item"`
	Quantity int         `json:"quantity"`
	Unit     string      `json:"unit"`
	Items    []LineInput `json:"items" binding:"omitempty,dive"`

	Purpose                string `json:"purpose"`
	Notes                  string `json:"notes"`
	BudgetSource           string `json:"budgetSource" binding:"omitempty,oneof=MOOE SSP"`
	RequestedByName        string `json:"requestedByName"`
	RequestedByDesignation string `json:"requestedByDesignation"`
	ReceivedByName         string `json:"receivedByName"`
	ReceivedByDesignation  string `json:"receivedByDesignation"`
}

// normalize turns both request shapes into lines; single reports the legacy shape.
func (in CreateInput) normalize() (lines []LineInput, single bool) {
	if len(in.Items) > 0 {
		return in.Items, false
	}
	if in.ItemID == "" {
		return nil, false
	}
	return []LineInput{{ItemID: in.ItemID, Quantity: in.Quantity, Unit: in.Unit}}, true
}

// Create 校验所有行后一次性写入；库存检查只做提示，不预占
func (e *Engine) Create(ctx context.Context, actor Actor, in CreateInput) (*models.Request, error) {
	lines, single := in.normalize()
	if len(lines) == 0 {
		return nil, apperr.Validationf("At least one item is required")
	}
	purpose := strings.TrimSpace(in.Purpose)
	if purpose == "" {
		return nil, apperr.Validationf("Purpose is required")
	}
	budget := strings.ToUpper(strings.TrimSpace(in.BudgetSource))
	if budget == "" {
		budget = models.BudgetMOOE
	}
	if budget != models.BudgetMOOE && budget != models.BudgetSSP {
		return nil, apperr.Validationf("Budget source must be MOOE or SSP")
	}

	req := &models.Request{
		RequestedBy:            actor.ID,
		RequestedByName:        strings.TrimSpace(in.RequestedByName),
		RequestedByDesignation: strings.TrimSpace(in.RequestedByDesignation),
		ReceivedByName:         strings.TrimSpace(in.ReceivedByName),
		ReceivedByDesignation:  strings.TrimSpace(in.ReceivedByDesignation),
		Purpose:                purpose,
		Notes:                  in.Notes,
		BudgetSource:           budget,
		Status:                 models.StatusPending,
		Single:                 single,
	}

	for i, li := range lines {
		if li.Quantity < 1 {
			return nil, apperr.Validationf("Quantity must be at least 1")
		}
		it, err := e.repo.FindItemByID(ctx, li.ItemID)
		if db.IsNotFound(err) {
			return nil, apperr.NotFoundf("Item not found: %s", li.ItemID)
		}
		if err != nil {
			return nil, err
		}
		if err := inventory.CheckAvailable(it, li.Quantity); err != nil {
			return nil, err
		}
		unit := strings.TrimSpace(li.Unit)
		if unit == "" {
			unit = it.Unit
		}
		req.Lines = append(req.Lines, models.RequestLine{
			Position: i,
			ItemID:   it.ID,
			Quantity: li.Quantity,
			Unit:     unit,
			Status:   models.StatusPending,
		})
	}

	// 打印姓名/职务缺省取申请人资料
	if req.RequestedByName == "" || req.RequestedByDesignation == "" {
		if u, err := e.repo.FindUserByID(ctx, actor.ID); err == nil {
			if req.RequestedByName == "" {
				req.RequestedByName = u.DisplayName
			}
			if req.RequestedByDesignation == "" {
				req.RequestedByDesignation = u.Designation
			}
		}
	}

	if err := e.repo.CreateRequest(ctx, req); err != nil {
		return nil, fmt.Errorf("create request: %w", err)
	}
	return e.load(ctx, req.ID)
}

func (e *Engine) Get(ctx context.Context, actor Actor, id string) (*models.Request, error) {
	req, err := e.load(ctx, id)
	if err != nil {
		return nil, err
	}
	if !actor.CanAccess(req) {
		return nil, apperr.Forbiddenf("Not authorized to view this request")
	}
	return req, nil
}

type ListFilter struct {
	Status models.Status
}

// List 管理员看全部，普通用户只看自己的；新的在前
func (e *Engine) List(ctx context.Context, actor Actor, f ListFilter) ([]models.Request, error) {
	if f.Status != "" && !f.Status.Valid() {
		return nil, apperr.Validationf("Unknown status %q", f.Status)
	}
	q := db.RequestsQuery{Status: f.Status}
	if !actor.IsAdmin {
		q.RequestedBy = actor.ID
	}
	return e.repo.ListRequests(ctx, q)
}

type UpdateInput struct {
	Quantity *int    `json:"quantity"`
	Purpose  *string `json:"purpose"`
	Notes    *string `json:"notes"`
}

// Update 仅申请人可改，且所有行都未审核
func (e *Engine) Update(ctx context.Context, actor Actor, id string, in UpdateInput) (*models.Request, error) {
	err := e.repo.WithTx(ctx, func(tx *db.Repo) error {
		req, err := lockRequest(ctx, tx, id)
		if err != nil {
			return err
		}
		if !req.OwnedBy(actor.ID) {
			return apperr.Forbiddenf("Not authorized to update this request")
		}
		if !req.FullyPending() {
			return apperr.InvalidStatef("Cannot update a request that has been reviewed")
		}

		fields := map[string]any{}
		if in.Purpose != nil {
			p := strings.TrimSpace(*in.Purpose)
			if p == "" {
				return apperr.Validationf("Purpose is required")
			}
			fields["purpose"] = p
		}
		if in.Notes != nil {
			fields["notes"] = *in.Notes
		}

		if in.Quantity != nil {
			if !req.Single || len(req.Lines) != 1 {
				return apperr.Validationf("Quantity can only be changed on single-item requests; edit the items instead")
			}
			line := req.Lines[0]
			if *in.Quantity < 1 {
				return apperr.Validationf("Quantity must be at least 1")
			}
			if *in.Quantity > line.Quantity {
				it, err := tx.FindItemByID(ctx, line.ItemID)
				if db.IsNotFound(err) {
					return apperr.NotFoundf("Item not found")
				}
				if err != nil {
					return err
				}
				if err := inventory.CheckAvailable(it, *in.Quantity); err != nil {
					return err
				}
			}
			if err := tx.UpdateLineQuantity(ctx, line.ID, *in.Quantity); err != nil {
				return err
			}
		}

		if len(fields) == 0 {
			return nil
		}
		return tx.UpdateRequestFields(ctx, id, fields)
	})
	if err != nil {
		return nil, err
	}
	return e.load(ctx, id)
}

// Approve issues every pending line in one transaction; any failure leaves stock untouched.
func (e *Engine) Approve(ctx context.Context, actor Actor, id string) (*models.Request, error) {
	if !actor.IsAdmin {
		return nil, apperr.Forbiddenf("Only admins can review requests")
	}
	err := e.repo.WithTx(ctx, func(tx *db.Repo) error {
		req, err := lockRequest(ctx, tx, id)
		if err != nil {
			return err
		}
		if req.Status != models.StatusPending {
			return apperr.InvalidStatef("Request has already been reviewed")
		}
		for i := range req.Lines {
			if req.Lines[i].Status != models.StatusPending {
				continue
			}
			if err := issueLine(ctx, tx, req, &req.Lines[i], actor.ID); err != nil {
				return err
			}
		}
		return e.settle(ctx, tx, req, actor, "")
	})
	if err != nil {
		return nil, err
	}
	e.log.WithFields(logrus.Fields{"requestId": id, "reviewer": actor.ID}).Info("request approved")
	return e.load(ctx, id)
}

// Reject 整单驳回：所有待审行置为 rejected，不动库存
func (e *Engine) Reject(ctx context.Context, actor Actor, id, reason string) (*models.Request, error) {
	if !actor.IsAdmin {
		return nil, apperr.Forbiddenf("Only admins can review requests")
	}
	reason = strings.TrimSpace(reason)
	if reason == "" {
		return nil, apperr.Validationf("Please provide a rejection reason")
	}
	err := e.repo.WithTx(ctx, func(tx *db.Repo) error {
		req, err := lockRequest(ctx, tx, id)
		if err != nil {
			return err
		}
		if req.Status != models.StatusPending {
			return apperr.InvalidStatef("Request has already been reviewed")
		}
		for i := range req.Lines {
			if req.Lines[i].Status != models.StatusPending {
				continue
			}
			if err := resolveLine(ctx, tx, &req.Lines[i], models.StatusRejected, reason); err != nil {
				return err
			}
		}
		return e.settle(ctx, tx, req, actor, reason)
	})
	if err != nil {
		return nil, err
	}
	e.log.WithFields(logrus.Fields{"requestId": id, "reviewer": actor.ID}).Info("request rejected")
	return e.load(ctx, id)
}

// ApproveLine issues a single line, then folds the request status.
func (e *Engine) ApproveLine(ctx context.Context, actor Actor, id, lineRef string) (*models.Request, error) {
	if !actor.IsAdmin {
		return nil, apperr.Forbiddenf("Only admins can review requests")
	}
	err := e.repo.WithTx(ctx, func(tx *db.Repo) error {
		req, line, err := lockLine(ctx, tx, id, lineRef)
		if err != nil {
			return err
		}
		if err := issueLine(ctx, tx, req, line, actor.ID); err != nil {
			return err
		}
		return e.settle(ctx, tx, req, actor, "")
	})
	if err != nil {
		return nil, err
	}
	return e.load(ctx, id)
}

func (e *Engine) RejectLine(ctx context.Context, actor Actor, id, lineRef, reason string) (*models.Request, error) {
	if !actor.IsAdmin {
		return nil, apperr.Forbiddenf("Only admins can review requests")
	}
	reason = strings.TrimSpace(reason)
	if reason == "" {
		reason = defaultRejectReason
	}
	err := e.repo.WithTx(ctx, func(tx *db.Repo) error {
		req, line, err := lockLine(ctx, tx, id, lineRef)
		if err != nil {
			return err
		}
		if err := resolveLine(ctx, tx, line, models.StatusRejected, reason); err != nil {
			return err
		}
		return e.settle(ctx, tx, req, actor, "")
	})
	if err != nil {
		return nil, err
	}
	return e.load(ctx, id)
}

// Delete 只能删除尚未审核的申请；已有的流水不受影响
func (e *Engine) Delete(ctx context.Context, actor Actor, id string) error {
	return e.repo.WithTx(ctx, func(tx *db.Repo) error {
		req, err := lockRequest(ctx, tx, id)
		if err != nil {
			return err
		}
		if !actor.CanAccess(req) {
			return apperr.Forbiddenf("Not authorized to delete this request")
		}
		if !req.FullyPending() {
			return apperr.InvalidStatef("Cannot delete a request that has been reviewed")
		}
		return tx.DeleteRequest(ctx, id)
	})
}

// settle 重新汇总状态；一旦不再是 pending 就记录审核人和时间
func (e *Engine) settle(ctx context.Context, tx *db.Repo, req *models.Request, actor Actor, reason string) error {
	st := FoldLines(req.Lines)
	if st == models.StatusPending {
		return nil
	}
	return tx.ResolveRequest(ctx, req.ID, st, actor.ID, e.now(), reason)
}

func (e *Engine) load(ctx context.Context, id string) (*models.Request, error) {
	req, err := e.repo.FindRequest(ctx, id)
	if db.IsNotFound(err) {
		return nil, apperr.NotFoundf("Request not found")
	}
	return req, err
}

func lockRequest(ctx context.Context, tx *db.Repo, id string) (*models.Request, error) {
	req, err := tx.LockRequest(ctx, id)
	if db.IsNotFound(err) {
		return nil, apperr.NotFoundf("Request not found")
	}
	return req, err
}

func lockLine(ctx context.Context, tx *db.Repo, id, lineRef string) (*models.Request, *models.RequestLine, error) {
	req, err := lockRequest(ctx, tx, id)
	if err != nil {
		return nil, nil, err
	}
	idx, ok := locateLine(req.Lines, lineRef)
	if !ok {
		return nil, nil, apperr.NotFoundf("Item not found in request")
	}
	line := &req.Lines[idx]
	if line.Status != models.StatusPending {
		return nil, nil, apperr.InvalidStatef("Item has already been reviewed")
	}
	return req, line, nil
}

// issueLine 扣库存、写出库流水、把行置为 approved，三步同在一个事务里
func issueLine(ctx context.Context, tx *db.Repo, req *models.Request, line *models.RequestLine, performedBy string) error {
	reqID, lineID := req.ID, line.ID
	if _, err := inventory.Apply(ctx, tx, inventory.Movement{
		ItemID:      line.ItemID,
		Type:        models.TxOut,
		Quantity:    line.Quantity,
		RequestID:   &reqID,
		LineID:      &lineID,
		Notes:       "Request approved - " + req.Purpose,
		PerformedBy: performedBy,
	}); err != nil {
		return err
	}
	return resolveLine(ctx, tx, line, models.StatusApproved, "")
}

func resolveLine(ctx context.Context, tx *db.Repo, line *models.RequestLine, status models.Status, reason string) error {
	ok, err := tx.ResolveLine(ctx, line.ID, status, reason)
	if err != nil {
		return err
	}
	if !ok {
		return apperr.InvalidStatef("Item has already been reviewed")
	}
	line.Status = status
	line.RejectionReason = reason
	return nil
}
