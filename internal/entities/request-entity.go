package entities

import (
	"github.com/aarondl/null/v8"

	"custody-system/pkg/types"
)

// Типы заявок (закрытый набор).
type RequestType string

const (
	RequestTypeIssue       RequestType = "issue"
	RequestTypeReturn      RequestType = "return"
	RequestTypeMaintenance RequestType = "maintenance"
)

// Статусы заявки.
type RequestStatus string

const (
	RequestStatusPending   RequestStatus = "pending"
	RequestStatusApproved  RequestStatus = "approved"
	RequestStatusRejected  RequestStatus = "rejected"
	RequestStatusCancelled RequestStatus = "cancelled"
	RequestStatusCompleted RequestStatus = "completed"
)

type RequestPriority string

const (
	PriorityLow    RequestPriority = "low"
	PriorityMedium RequestPriority = "medium"
	PriorityHigh   RequestPriority = "high"
	PriorityUrgent RequestPriority = "urgent"
)

var validRequestTypes = map[RequestType]bool{
	RequestTypeIssue: true, RequestTypeReturn: true, RequestTypeMaintenance: true,
}

var validPriorities = map[RequestPriority]bool{
	PriorityLow: true, PriorityMedium: true, PriorityHigh: true, PriorityUrgent: true,
}

func (t RequestType) IsValid() bool     { return validRequestTypes[t] }
func (p RequestPriority) IsValid() bool { return validPriorities[p] }

// requestTransitions - таблица допустимых переходов машины состояний заявки.
// Rejected, Cancelled и Completed - терминальные.
var requestTransitions = map[RequestStatus]map[RequestStatus]bool{
	RequestStatusPending: {
		RequestStatusApproved:  true,
		RequestStatusRejected:  true,
		RequestStatusCancelled: true,
	},
	RequestStatusApproved: {
		RequestStatusCompleted: true,
	},
}

// CanTransition сообщает, допустим ли переход заявки из from в to.
func CanTransition(from, to RequestStatus) bool {
	return requestTransitions[from][to]
}

type Request struct {
	ID            uint64        `json:"id"`
	RequestNumber string        `json:"request_number"`
	RequesterID   int64         `json:"requester_id"`
	RequestType   RequestType   `json:"request_type"`
	Status        RequestStatus `json:"status"`

	// Цель заявки: либо конкретная единица оборудования, либо пул.
	// Ровно одно из двух полей заполнено.
	EquipmentID null.Int64 `json:"equipment_id"`
	PoolID      null.Int64 `json:"pool_id"`

	Priority           RequestPriority `json:"priority"`
	Reason             string          `json:"reason"`
	ExpectedReturnDate null.Time       `json:"expected_return_date"`
	AdminNotes         null.String     `json:"admin_notes"`

	ProcessedBy null.Int64 `json:"processed_by"`
	ProcessedAt null.Time  `json:"processed_at"`
	ApprovedAt  null.Time  `json:"approved_at"`
	CompletedAt null.Time  `json:"completed_at"`

	types.BaseEntity
}

// IsTerminal сообщает, находится ли заявка в терминальном статусе.
func (r *Request) IsTerminal() bool {
	return r.Status == RequestStatusRejected ||
		r.Status == RequestStatusCancelled ||
		r.Status == RequestStatusCompleted
}
