package models

import (
	"time"

	"github.com/google/uuid"
	"gorm.io/gorm"
)

const (
	RequestTable     = "inv_requests"
	RequestLineTable = "inv_request_lines"
	RISCounterTable  = "inv_ris_counters"
)

type Status string

const (
	StatusPending  Status = "pending"
	StatusApproved Status = "approved"
	StatusRejected Status = "rejected"
)

func (s Status) Valid() bool {
	return s == StatusPending || s == StatusApproved || s == StatusRejected
}

const (
	BudgetMOOE = "MOOE"
	BudgetSSP  = "SSP"
)

type Request struct {
	ID                     string        `gorm:"type:uuid;primaryKey" json:"id"`
	RequestedBy            string        `gorm:"type:uuid;index;not null" json:"requestedBy"`
	Requester              *User         `gorm:"foreignKey:RequestedBy" json:"requester,omitempty"`
	RequestedByName        string        `gorm:"size:200" json:"requestedByName"`
	RequestedByDesignation string        `gorm:"size:200" json:"requestedByDesignation"`
	ReceivedByName         string        `gorm:"size:200" json:"receivedByName"`
	ReceivedByDesignation  string        `gorm:"size:200" json:"receivedByDesignation"`
	Purpose                string        `gorm:"type:text;not null" json:"purpose"`
	Notes                  string        `gorm:"type:text" json:"notes,omitempty"`
	BudgetSource           string        `gorm:"size:8;not null;default:'MOOE'" json:"budgetSource"`
	Status                 Status        `gorm:"size:16;index;not null;default:'pending'" json:"status"`
	Single                 bool          `gorm:"not null;default:false" json:"single"` // 旧版单品申请，内部仍按一行处理
	Lines                  []RequestLine `gorm:"foreignKey:RequestID" json:"items"`
	ReviewedBy             *string       `gorm:"type:uuid" json:"reviewedBy,omitempty"`
	Reviewer               *User         `gorm:"foreignKey:ReviewedBy" json:"reviewer,omitempty"`
	ReviewedAt             *time.Time    `json:"reviewedAt,omitempty"`
	RejectionReason        string        `gorm:"type:text" json:"rejectionReason,omitempty"`
	RISNumber              *string       `gorm:"column:ris_number;size:32" json:"risNumber,omitempty"`
	CreatedAt              time.Time     `gorm:"index" json:"createdAt"`
	UpdatedAt              time.Time     `json:"updatedAt"`
}

type RequestLine struct {
	ID              string    `gorm:"type:uuid;primaryKey" json:"id"`
	RequestID       string    `gorm:"type:uuid;index;not null" json:"requestId"`
	Position        int       `gorm:"not null" json:"position"`
	ItemID          string    `gorm:"type:uuid;index;not null" json:"itemId"`
	Item            *Item     `gorm:"foreignKey:ItemID" json:"item,omitempty"`
	Quantity        int       `gorm:"not null" json:"quantity"`
	Unit            string    `gorm:"size:40;not null" json:"unit"`
	Status          Status    `gorm:"size:16;not null;default:'pending'" json:"status"`
	RejectionReason string    `gorm:"type:text" json:"rejectionReason,omitempty"`
	CreatedAt       time.Time `json:"createdAt"`
	UpdatedAt       time.Time `json:"updatedAt"`
}

// RISCounter is the day-keyed sequence behind RIS numbers.
type RISCounter struct {
	DayKey    string `gorm:"primaryKey;size:8"`
	LastSeq   int    `gorm:"not null"`
	UpdatedAt time.Time
}

func (Request) TableName() string     { return RequestTable }
func (RequestLine) TableName() string { return RequestLineTable }
func (RISCounter) TableName() string  { return RISCounterTable }

func (r *Request) BeforeCreate(tx *gorm.DB) error {
	if r.ID == "" {
		r.ID = uuid.NewString()
	}
	return nil
}

func (l *RequestLine) BeforeCreate(tx *gorm.DB) error {
	if l.ID == "" {
		l.ID = uuid.NewString()
	}
	return nil
}

func (r *Request) OwnedBy(userID string) bool { return r.RequestedBy == userID }

// FullyPending reports whether no line has been reviewed yet.
func (r *Request) FullyPending() bool {
	if r.Status != StatusPending {
		return false
	}
	for _, l := range r.Lines {
		if l.Status != StatusPending {
			return false
		}
	}
	return true
}

// HasApprovedLine is the RIS eligibility rule.
func (r *Request) HasApprovedLine() bool {
	if len(r.Lines) == 0 {
		return r.Status == StatusApproved
	}
	for _, l := range r.Lines {
		if l.Status == StatusApproved {
			return true
		}
	}
	return false
}

// ReferenceDate is the day an RIS number is keyed on.
func (r *Request) ReferenceDate() time.Time {
	if r.ReviewedAt != nil {
		return *r.ReviewedAt
	}
	return r.CreatedAt
}
