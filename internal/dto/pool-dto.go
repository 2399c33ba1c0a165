package dto

import (
	"time"

	"custody-system/internal/entities"
)

type CreatePoolDTO struct {
	Name                   string   `json:"name" validate:"required,min=2,max=255"`
	Category               string   `json:"category" validate:"required,oneof=laptop desktop monitor printer scanner phone tablet network_device peripheral"`
	Model                  string   `json:"model" validate:"required,max=255"`
	TotalQuantity          int      `json:"total_quantity" validate:"required,gt=0"`
	AuthorizedDesignations []string `json:"authorized_designations" validate:"required,min=1,dive,required"`
}

type UpdatePoolDTO struct {
	Name                   *string  `json:"name,omitempty" validate:"omitempty,min=2,max=255"`
	TotalQuantity          *int     `json:"total_quantity,omitempty" validate:"omitempty,gt=0"`
	AuthorizedDesignations []string `json:"authorized_designations,omitempty" validate:"omitempty,min=1,dive,required"`
}

type RequestFromPoolDTO struct {
	Priority           string     `json:"priority,omitempty" validate:"omitempty,oneof=low medium high urgent"`
	Reason             string     `json:"reason" validate:"required,min=3"`
	ExpectedReturnDate *time.Time `json:"expected_return_date,omitempty"`
}

// PoolWithCountsDTO - пул вместе с вычисленными на момент чтения счётчиками.
type PoolWithCountsDTO struct {
	Pool   entities.AllocationPool `json:"pool"`
	Counts entities.PoolCounts     `json:"counts"`
}
