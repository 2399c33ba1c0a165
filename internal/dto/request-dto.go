package dto

import "time"

type CreateRequestDTO struct {
	// Ровно одно из двух полей должно быть задано.
	EquipmentID *uint64 `json:"equipment_id,omitempty" validate:"omitempty,gt=0"`
	PoolID      *uint64 `json:"pool_id,omitempty" validate:"omitempty,gt=0"`

	RequestType        string     `json:"request_type" validate:"required,oneof=issue return maintenance"`
	Priority           string     `json:"priority,omitempty" validate:"omitempty,oneof=low medium high urgent"`
	Reason             string     `json:"reason" validate:"required,min=3"`
	ExpectedReturnDate *time.Time `json:"expected_return_date,omitempty"`
}

type ProcessRequestDTO struct {
	Notes *string `json:"notes,omitempty" validate:"omitempty,min=3"`
}

type RejectRequestDTO struct {
	Reason string `json:"reason" validate:"required,min=3"`
}
