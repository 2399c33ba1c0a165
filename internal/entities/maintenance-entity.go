package entities

import "time"

// MaintenanceRecord - запись журнала обслуживания. Журнал только пополняется,
// записи никогда не изменяются и не удаляются.
type MaintenanceRecord struct {
	ID          uint64    `json:"id"`
	EquipmentID uint64    `json:"equipment_id"`
	Description string    `json:"description"`
	PerformedBy int64     `json:"performed_by"`
	Cost        float64   `json:"cost"`
	CreatedAt   time.Time `json:"created_at"`
}
