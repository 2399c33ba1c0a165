package entities

import (
	"testing"
	"time"

	"github.com/aarondl/null/v8"
	"github.com/stretchr/testify/assert"
)

func TestEquipment_AgeYears(t *testing.T) {
	purchase := time.Date(2020, 6, 15, 0, 0, 0, 0, time.UTC)
	e := Equipment{PurchaseDate: purchase}

	// За день до годовщины год ещё не полный.
	assert.Equal(t, 5, e.AgeYears(time.Date(2026, 6, 14, 0, 0, 0, 0, time.UTC)))
	assert.Equal(t, 6, e.AgeYears(time.Date(2026, 6, 15, 0, 0, 0, 0, time.UTC)))
	assert.Equal(t, 0, e.AgeYears(time.Date(2020, 12, 31, 0, 0, 0, 0, time.UTC)))

	// Дата покупки в будущем не даёт отрицательный возраст.
	assert.Equal(t, 0, e.AgeYears(time.Date(2019, 1, 1, 0, 0, 0, 0, time.UTC)))
}

func TestEquipment_CustodyConsistent(t *testing.T) {
	now := time.Now()

	issued := Equipment{
		Status:     EquipmentStatusIssued,
		HolderID:   null.Int64From(7),
		IssuedDate: null.TimeFrom(now),
	}
	assert.True(t, issued.CustodyConsistent())

	// Выдано, но блок владения пуст - инвариант нарушен.
	broken := Equipment{Status: EquipmentStatusIssued}
	assert.False(t, broken.CustodyConsistent())

	// Доступно с заполненным блоком владения - тоже нарушение.
	stale := Equipment{
		Status:   EquipmentStatusAvailable,
		HolderID: null.Int64From(7),
	}
	assert.False(t, stale.CustodyConsistent())

	available := Equipment{Status: EquipmentStatusAvailable}
	assert.True(t, available.CustodyConsistent())
}

func TestEquipmentClosedSets(t *testing.T) {
	assert.True(t, CategoryLaptop.IsValid())
	assert.True(t, CategoryPeripheral.IsValid())
	assert.False(t, EquipmentCategory("bicycle").IsValid())

	assert.True(t, ConditionNew.IsValid())
	assert.False(t, EquipmentCondition("broken").IsValid())
}
