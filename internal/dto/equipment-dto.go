package dto

import "time"

type CreateEquipmentDTO struct {
	Name         string    `json:"name" validate:"required,min=2,max=255"`
	Category     string    `json:"category" validate:"required,oneof=laptop desktop monitor printer scanner phone tablet network_device peripheral"`
	Model        string    `json:"model" validate:"required,max=255"`
	SerialNumber string    `json:"serial_number" validate:"required,max=100"`
	Manufacturer string    `json:"manufacturer" validate:"omitempty,max=255"`
	PurchaseDate time.Time `json:"purchase_date" validate:"required"`
	Cost         float64   `json:"cost" validate:"gte=0"`
	Condition    string    `json:"condition" validate:"required,oneof=new excellent good fair poor"`
	Location     string    `json:"location" validate:"omitempty,max=255"`
}

type UpdateEquipmentDTO struct {
	Name         *string  `json:"name,omitempty" validate:"omitempty,min=2,max=255"`
	Model        *string  `json:"model,omitempty" validate:"omitempty,max=255"`
	Manufacturer *string  `json:"manufacturer,omitempty" validate:"omitempty,max=255"`
	Cost         *float64 `json:"cost,omitempty" validate:"omitempty,gte=0"`
	Condition    *string  `json:"condition,omitempty" validate:"omitempty,oneof=new excellent good fair poor"`
	Location     *string  `json:"location,omitempty" validate:"omitempty,max=255"`
}

// IssueEquipmentDTO - прямая административная выдача (мимо заявки).
type IssueEquipmentDTO struct {
	HolderID           int64      `json:"holder_id" validate:"required,gt=0"`
	ExpectedReturnDate *time.Time `json:"expected_return_date,omitempty"`
}

type AddMaintenanceRecordDTO struct {
	Description string  `json:"description" validate:"required,min=3"`
	Cost        float64 `json:"cost" validate:"gte=0"`
}
