// Package ris numbers approved requests and renders Requisition and Issue Slips.
//
// Numbers have the form R<yyyy>-<mm><dd>-NNN. The sequence comes from a day-keyed
// counter row bumped with an atomic upsert; a partial unique index on ris_number and a
// bounded retry close the remaining races. A number is assigned once, lazily, the
// first time a slip is generated, and never changes afterwards.
package ris

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"Gin_postgres_redis_supply_tool/apperr"
	"Gin_postgres_redis_supply_tool/config"
	"Gin_postgres_redis_supply_tool/db"
	"Gin_postgres_redis_supply_tool/models"
	"Gin_postgres_redis_supply_tool/requisition"

	"github.com/bsm/redislock"
	"github.com/sirupsen/logrus"
)

const defaultAttempts = 5

// Document is a rendered workbook ready to download.
type Document struct {
	Filename string
	Bytes    []byte
	Numbers  []string
}

type Options struct {
	Location     *time.Location
	TemplatePath string
	// Locker serializes number allocation per day across replicas; nil disables it.
	Locker      *redislock.Client
	MaxAttempts int
}

type Service struct {
	repo     *db.Repo
	loc      *time.Location
	locker   *redislock.Client
	attempts int
	renderer *Renderer
	log      *logrus.Logger
	now      func() time.Time
}

func NewService(repo *db.Repo, opts Options) *Service {
	loc := opts.Location
	if loc == nil {
		loc = time.Local
	}
	attempts := opts.MaxAttempts
	if attempts <= 0 {
		attempts = defaultAttempts
	}
	s := &Service{
		repo:     repo,
		loc:      loc,
		locker:   opts.Locker,
		attempts: attempts,
		log:      config.GetLogger(),
		now:      time.Now,
	}
	s.renderer = &Renderer{TemplatePath: opts.TemplatePath, Location: loc, Now: func() time.Time { return s.now() }}
	return s
}

// Assign returns the request's RIS number, allocating one on first use.
func (s *Service) Assign(ctx context.Context, requestID string) (string, error) {
	req, err := s.repo.FindRequest(ctx, requestID)
	if db.IsNotFound(err) {
		return "", apperr.NotFoundf("Request not found")
	}
	if err != nil {
		return "", err
	}
	if req.RISNumber != nil {
		return *req.RISNumber, nil
	}

	day := req.ReferenceDate().In(s.loc)
	unlock := s.lockDay(ctx, DayPrefix(day))
	defer unlock()

	for attempt := 1; attempt <= s.attempts; attempt++ {
		number, err := s.assignOnce(ctx, requestID)
		if err == nil {
			return number, nil
		}
		if !db.IsDuplicateKey(err) {
			return "", err
		}
		s.log.WithFields(logrus.Fields{"requestId": requestID, "attempt": attempt}).Warn("RIS number collision, retrying")
	}
	return "", apperr.Conflictf("Could not allocate a unique RIS number, please try again")
}

var errAlreadyNumbered = errors.New("request already numbered")

// assignOnce 在一个事务里：锁申请行、取序号、条件写入。
// 序号已被占用（旧数据）时回滚到保存点，再取下一个
func (s *Service) assignOnce(ctx context.Context, requestID string) (string, error) {
	var number string
	err := s.repo.WithTx(ctx, func(tx *db.Repo) error {
		req, err := tx.LockRequest(ctx, requestID)
		if db.IsNotFound(err) {
			return apperr.NotFoundf("Request not found")
		}
		if err != nil {
			return err
		}
		if req.RISNumber != nil {
			number = *req.RISNumber
			return nil
		}

		day := req.ReferenceDate().In(s.loc)
		for try := 0; try < s.attempts; try++ {
			seq, err := nextSequence(ctx, tx, day)
			if err != nil {
				return err
			}
			candidate := Format(day, seq)
			var ok bool
			err = tx.WithTx(ctx, func(sp *db.Repo) error {
				var err error
				ok, err = sp.SetRISNumber(ctx, requestID, candidate)
				return err
			})
			if db.IsDuplicateKey(err) {
				s.log.WithFields(logrus.Fields{"requestId": requestID, "number": candidate}).Warn("RIS number already taken, skipping")
				continue
			}
			if err != nil {
				return err
			}
			if !ok {
				return errAlreadyNumbered
			}
			number = candidate
			return nil
		}
		return apperr.Conflictf("Could not allocate a unique RIS number, please try again")
	})
	if errors.Is(err, errAlreadyNumbered) {
		req, err := s.repo.FindRequest(ctx, requestID)
		if err != nil {
			return "", err
		}
		if req.RISNumber == nil {
			return "", apperr.Conflictf("RIS number changed concurrently")
		}
		return *req.RISNumber, nil
	}
	return number, err
}

// nextSequence bumps the counter for t's day. The first use of a day seeds the counter
// from numbers already stored with that prefix.
func nextSequence(ctx context.Context, tx *db.Repo, t time.Time) (int, error) {
	key := dayKey(t)
	exists, err := tx.RISCounterExists(ctx, key)
	if err != nil {
		return 0, err
	}
	seed := 1
	if !exists {
		n, err := tx.CountRISPrefix(ctx, DayPrefix(t))
		if err != nil {
			return 0, err
		}
		seed = int(n) + 1
	}
	return tx.NextRISSequence(ctx, key, seed)
}

// lockDay 拿不到 Redis 锁时照常继续，数据库计数器本身保证唯一
func (s *Service) lockDay(ctx context.Context, prefix string) func() {
	if s.locker == nil {
		return func() {}
	}
	lock, err := s.locker.Obtain(ctx, "lock:ris:"+prefix, 10*time.Second, &redislock.Options{
		RetryStrategy: redislock.LimitRetry(redislock.LinearBackoff(50*time.Millisecond), 40),
	})
	if err != nil {
		s.log.WithFields(logrus.Fields{"prefix": prefix}).Warn("could not obtain RIS lock; proceeding without redis lock: " + err.Error())
		return func() {}
	}
	return func() {
		if err := lock.Release(context.WithoutCancel(ctx)); err != nil && err != redislock.ErrLockNotHeld {
			s.log.WithFields(logrus.Fields{"prefix": prefix}).Warn("failed to release RIS lock: " + err.Error())
		}
	}
}

// checkEligible 申请人本人或管理员，且至少一行已批准
func checkEligible(actor requisition.Actor, req *models.Request) error {
	if !actor.CanAccess(req) {
		return apperr.Forbiddenf("Not authorized to generate RIS for request %s", req.ID)
	}
	if !req.HasApprovedLine() {
		return apperr.InvalidStatef("RIS can only be generated for approved requests (request %s)", req.ID)
	}
	if len(req.Lines) > MaxLines {
		return apperr.Validationf("Request %s has %d items; an RIS form holds at most %d", req.ID, len(req.Lines), MaxLines)
	}
	return nil
}

func (s *Service) loadEligible(ctx context.Context, actor requisition.Actor, id string) (*models.Request, error) {
	req, err := s.repo.FindRequest(ctx, id)
	if db.IsNotFound(err) {
		return nil, apperr.NotFoundf("Request %s not found", id)
	}
	if err != nil {
		return nil, err
	}
	if err := checkEligible(actor, req); err != nil {
		return nil, err
	}
	return req, nil
}

// Generate renders the slip for one request, numbering it on first use.
func (s *Service) Generate(ctx context.Context, actor requisition.Actor, id string) (*Document, error) {
	req, err := s.loadEligible(ctx, actor, id)
	if err != nil {
		return nil, err
	}
	slip, err := s.slipFor(ctx, req)
	if err != nil {
		return nil, err
	}
	data, err := s.renderer.Render([]Slip{slip})
	if err != nil {
		return nil, fmt.Errorf("render RIS: %w", err)
	}
	return &Document{
		Filename: fmt.Sprintf("RIS-%s.xlsx", slip.Number),
		Bytes:    data,
		Numbers:  []string{slip.Number},
	}, nil
}

// GenerateBatch 先校验全部申请，任一失败则整批放弃且不分配编号
func (s *Service) GenerateBatch(ctx context.Context, actor requisition.Actor, ids []string) (*Document, error) {
	if len(ids) < 2 {
		return nil, apperr.Validationf("Please select at least 2 requests for batch generation")
	}
	seen := make(map[string]bool, len(ids))
	clean := make([]string, 0, len(ids))
	for _, id := range ids {
		id = strings.TrimSpace(id)
		if seen[id] {
			return nil, apperr.Validationf("Request %s is listed more than once", id)
		}
		seen[id] = true
		clean = append(clean, id)
	}
	found, err := s.repo.FindRequestsByIDs(ctx, clean)
	if err != nil {
		return nil, err
	}
	reqs := make([]*models.Request, 0, len(clean))
	for _, id := range clean {
		req, ok := found[id]
		if !ok {
			return nil, apperr.NotFoundf("Request %s not found", id)
		}
		if err := checkEligible(actor, req); err != nil {
			return nil, err
		}
		reqs = append(reqs, req)
	}

	slips := make([]Slip, 0, len(reqs))
	numbers := make([]string, 0, len(reqs))
	for _, req := range reqs {
		slip, err := s.slipFor(ctx, req)
		if err != nil {
			return nil, err
		}
		slips = append(slips, slip)
		numbers = append(numbers, slip.Number)
	}
	data, err := s.renderer.Render(slips)
	if err != nil {
		return nil, fmt.Errorf("render RIS batch: %w", err)
	}
	return &Document{
		Filename: fmt.Sprintf("RIS-Batch-%drequests-%s.xlsx", len(reqs), s.now().In(s.loc).Format("20060102-150405")),
		Bytes:    data,
		Numbers:  numbers,
	}, nil
}

func (s *Service) slipFor(ctx context.Context, req *models.Request) (Slip, error) {
	number, err := s.Assign(ctx, req.ID)
	if err != nil {
		return Slip{}, err
	}
	req.RISNumber = &number
	return s.assemble(ctx, req)
}

type CustomInput struct {
	EntityName          string       `json:"entityName"`
	FundCluster         string       `json:"fundCluster"`
	Division            string       `json:"division"`
	Purpose             string       `json:"purpose"`
	RequestedBy         string       `json:"requestedBy"`
	RequestedByPosition string       `json:"requestedByPosition"`
	ApprovedBy          string       `json:"approvedBy"`
	ApprovedByPosition  string       `json:"approvedByPosition"`
	ReceivedBy          string       `json:"receivedBy"`
	Items               []CustomLine `json:"items" binding:"dive"`
}

// GenerateCustom renders a manual slip numbered from today's counter.
func (s *Service) GenerateCustom(ctx context.Context, actor requisition.Actor, requesterName string, in CustomInput) (*Document, error) {
	if !actor.IsAdmin {
		return nil, apperr.Forbiddenf("Only admins can generate custom RIS")
	}
	if len(in.Items) == 0 {
		return nil, apperr.Validationf("At least one item is required")
	}
	if len(in.Items) > MaxLines {
		return nil, apperr.Validationf("An RIS form holds at most %d items", MaxLines)
	}

	today := s.now().In(s.loc)
	unlock := s.lockDay(ctx, DayPrefix(today))
	defer unlock()

	var seq int
	err := s.repo.WithTx(ctx, func(tx *db.Repo) error {
		n, err := nextSequence(ctx, tx, today)
		seq = n
		return err
	})
	if err != nil {
		return nil, err
	}
	number := Format(today, seq)

	requestedBy := in.RequestedBy
	if requestedBy == "" {
		requestedBy = requesterName
	}
	data, err := s.renderer.RenderCustom(CustomSlip{
		Number:              number,
		EntityName:          in.EntityName,
		Division:            in.Division,
		FundCluster:         in.FundCluster,
		Purpose:             in.Purpose,
		RequestedBy:         requestedBy,
		RequestedByPosition: in.RequestedByPosition,
		ApprovedBy:          in.ApprovedBy,
		ApprovedByPosition:  in.ApprovedByPosition,
		ReceivedBy:          in.ReceivedBy,
		Lines:               in.Items,
	})
	if err != nil {
		return nil, fmt.Errorf("render custom RIS: %w", err)
	}
	return &Document{Filename: fmt.Sprintf("RIS-%s.xlsx", number), Bytes: data, Numbers: []string{number}}, nil
}

func (s *Service) PreviewTemplate(actor requisition.Actor) (*TemplatePreview, error) {
	if !actor.IsAdmin {
		return nil, apperr.Forbiddenf("Only admins can preview the RIS template")
	}
	return s.renderer.Preview()
}
