package entities

import (
	"custody-system/pkg/types"
)

// AllocationPool - пул взаимозаменяемого оборудования одной модели/категории.
// Конкретная единица назначается только в момент выполнения заявки.
type AllocationPool struct {
	ID            uint64            `json:"id"`
	Name          string            `json:"name"`
	Category      EquipmentCategory `json:"category"`
	Model         string            `json:"model"`
	TotalQuantity int               `json:"total_quantity"`

	// Должности, которым разрешено брать оборудование из пула.
	AuthorizedDesignations []string `json:"authorized_designations"`

	types.BaseEntity
}

// Allows сообщает, допущена ли должность к пулу.
func (p *AllocationPool) Allows(designation string) bool {
	for _, d := range p.AuthorizedDesignations {
		if d == designation {
			return true
		}
	}
	return false
}

// PoolCounts - производные счётчики пула. Вычисляются по текущему состоянию
// оборудования и никогда не хранятся отдельно.
type PoolCounts struct {
	IssuedCount    int `json:"issued_count"`
	AvailableCount int `json:"available_count"`
}
