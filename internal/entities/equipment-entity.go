package entities

import (
	"time"

	"github.com/aarondl/null/v8"

	"custody-system/pkg/types"
)

// Статусы оборудования (закрытый набор).
type EquipmentStatus string

const (
	EquipmentStatusAvailable        EquipmentStatus = "available"
	EquipmentStatusIssued           EquipmentStatus = "issued"
	EquipmentStatusUnderMaintenance EquipmentStatus = "under_maintenance"
	EquipmentStatusRetired          EquipmentStatus = "retired"
)

// Категории оборудования (закрытый набор, не расширяется пользователями).
type EquipmentCategory string

const (
	CategoryLaptop        EquipmentCategory = "laptop"
	CategoryDesktop       EquipmentCategory = "desktop"
	CategoryMonitor       EquipmentCategory = "monitor"
	CategoryPrinter       EquipmentCategory = "printer"
	CategoryScanner       EquipmentCategory = "scanner"
	CategoryPhone         EquipmentCategory = "phone"
	CategoryTablet        EquipmentCategory = "tablet"
	CategoryNetworkDevice EquipmentCategory = "network_device"
	CategoryPeripheral    EquipmentCategory = "peripheral"
)

// Состояния (физическое качество) оборудования.
type EquipmentCondition string

const (
	ConditionNew       EquipmentCondition = "new"
	ConditionExcellent EquipmentCondition = "excellent"
	ConditionGood      EquipmentCondition = "good"
	ConditionFair      EquipmentCondition = "fair"
	ConditionPoor      EquipmentCondition = "poor"
)

var validCategories = map[EquipmentCategory]bool{
	CategoryLaptop: true, CategoryDesktop: true, CategoryMonitor: true,
	CategoryPrinter: true, CategoryScanner: true, CategoryPhone: true,
	CategoryTablet: true, CategoryNetworkDevice: true, CategoryPeripheral: true,
}

var validConditions = map[EquipmentCondition]bool{
	ConditionNew: true, ConditionExcellent: true, ConditionGood: true,
	ConditionFair: true, ConditionPoor: true,
}

func (c EquipmentCategory) IsValid() bool  { return validCategories[c] }
func (c EquipmentCondition) IsValid() bool { return validConditions[c] }

type Equipment struct {
	ID           uint64             `json:"id"`
	Name         string             `json:"name"`
	Category     EquipmentCategory  `json:"category"`
	Model        string             `json:"model"`
	SerialNumber string             `json:"serial_number"`
	Manufacturer string             `json:"manufacturer"`
	PurchaseDate time.Time          `json:"purchase_date"`
	Cost         float64            `json:"cost"`
	Condition    EquipmentCondition `json:"condition"`
	Status       EquipmentStatus    `json:"status"`
	Location     string             `json:"location"`

	// Блок владения. Заполнен тогда и только тогда, когда Status == issued.
	HolderID           null.Int64 `json:"holder_id"`
	IssuedDate         null.Time  `json:"issued_date"`
	ExpectedReturnDate null.Time  `json:"expected_return_date"`

	AddedBy        int64      `json:"added_by"`
	LastModifiedBy null.Int64 `json:"last_modified_by"`

	types.BaseEntity
}

// HasCustody сообщает, заполнен ли блок владения.
func (e *Equipment) HasCustody() bool {
	return e.HolderID.Valid && e.IssuedDate.Valid
}

// CustodyConsistent проверяет инвариант: блок владения присутствует
// тогда и только тогда, когда статус issued.
func (e *Equipment) CustodyConsistent() bool {
	if e.Status == EquipmentStatusIssued {
		return e.HasCustody()
	}
	return !e.HolderID.Valid && !e.IssuedDate.Valid && !e.ExpectedReturnDate.Valid
}

// AgeYears - возраст оборудования в полных годах с даты покупки.
func (e *Equipment) AgeYears(now time.Time) int {
	if now.Before(e.PurchaseDate) {
		return 0
	}
	years := now.Year() - e.PurchaseDate.Year()
	anniversary := e.PurchaseDate.AddDate(years, 0, 0)
	if anniversary.After(now) {
		years--
	}
	return years
}
