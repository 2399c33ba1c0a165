package services

import (
	"context"
	"fmt"
	"sync"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"custody-system/internal/dto"
	"custody-system/internal/entities"
	apperrors "custody-system/pkg/errors"
)

func TestPoolService_Integration_DesignationCheck(t *testing.T) {
	env := newTestEnv(t)
	env.seedEquipment(t, "SN-POOL-1", "Latitude 5440")
	poolID := env.seedPool(t, "Ноутбуки инженеров", "Latitude 5440", 1, []string{"engineer"})

	// Должность вне списка пула не допущена.
	_, err := env.pools.RequestFromPool(testCtx(42, "accountant"), poolID, dto.RequestFromPoolDTO{
		Reason: "Нужен для работы", ExpectedReturnDate: returnDate(30),
	})
	assert.ErrorIs(t, err, apperrors.ErrUnauthorized)

	req, err := env.pools.RequestFromPool(testCtx(42, "engineer"), poolID, dto.RequestFromPoolDTO{
		Reason: "Нужен для работы", ExpectedReturnDate: returnDate(30),
	})
	require.NoError(t, err)
	assert.Equal(t, entities.RequestStatusPending, req.Status)
	assert.Equal(t, int64(poolID), req.PoolID.Int64)
	assert.False(t, req.EquipmentID.Valid, "единица назначается только при выполнении")
}

// Ёмкость пула проверяется под блокировкой строки пула: при пятнадцати
// конкурентных запросах к пулу на десять единиц успешны ровно десять,
// остальные получают Unavailable. Переподписка невозможна.
func TestPoolService_Integration_ConcurrentCapacity(t *testing.T) {
	env := newTestEnv(t)
	for i := 0; i < 10; i++ {
		env.seedEquipment(t, fmt.Sprintf("SN-CAP-%d", i), "Latitude 5440")
	}
	poolID := env.seedPool(t, "Ноутбуки инженеров", "Latitude 5440", 10, []string{"engineer"})

	const attempts = 15
	errs := make([]error, attempts)
	var wg sync.WaitGroup
	for i := 0; i < attempts; i++ {
		wg.Add(1)
		go func(i int) {
			defer wg.Done()
			_, errs[i] = env.pools.RequestFromPool(testCtx(int64(100+i), "engineer"), poolID, dto.RequestFromPoolDTO{
				Reason: "Нужен для работы", ExpectedReturnDate: returnDate(30),
			})
		}(i)
	}
	wg.Wait()

	var succeeded, unavailable int
	for _, err := range errs {
		switch {
		case err == nil:
			succeeded++
		default:
			unavailable++
			assert.ErrorIs(t, err, apperrors.ErrUnavailable)
		}
	}
	assert.Equal(t, 10, succeeded, "успешных заявок должно быть ровно по ёмкости пула")
	assert.Equal(t, 5, unavailable)
}

// При выполнении заявки из пула назначается конкретная единица,
// и она переходит во владение автора заявки.
func TestPoolService_Integration_CompleteAssignsItem(t *testing.T) {
	env := newTestEnv(t)
	env.seedEquipment(t, "SN-ASSIGN-1", "Latitude 5440")
	env.seedEquipment(t, "SN-ASSIGN-2", "Latitude 5440")
	poolID := env.seedPool(t, "Ноутбуки инженеров", "Latitude 5440", 2, []string{"engineer"})
	adminCtx := testCtx(7, "admin")

	req, err := env.pools.RequestFromPool(testCtx(42, "engineer"), poolID, dto.RequestFromPoolDTO{
		Reason: "Нужен для работы", ExpectedReturnDate: returnDate(30),
	})
	require.NoError(t, err)

	require.NoError(t, env.requests.ApproveRequest(adminCtx, req.ID, dto.ProcessRequestDTO{}))
	require.NoError(t, env.requests.CompleteRequest(adminCtx, req.ID, dto.ProcessRequestDTO{}))

	got, err := env.requests.FindRequest(context.Background(), req.ID)
	require.NoError(t, err)
	assert.Equal(t, entities.RequestStatusCompleted, got.Status)
	require.True(t, got.EquipmentID.Valid, "выполненной заявке из пула должна быть назначена единица")

	e, err := env.equipment.FindEquipment(context.Background(), uint64(got.EquipmentID.Int64))
	require.NoError(t, err)
	assert.Equal(t, entities.EquipmentStatusIssued, e.Status)
	assert.Equal(t, int64(42), e.HolderID.Int64)
	assert.True(t, e.CustodyConsistent())
}

// Счётчики пула вычисляются по текущему состоянию оборудования.
func TestPoolService_Integration_ComputedCounts(t *testing.T) {
	env := newTestEnv(t)
	first := env.seedEquipment(t, "SN-CNT-1", "Latitude 5440")
	env.seedEquipment(t, "SN-CNT-2", "Latitude 5440")
	poolID := env.seedPool(t, "Ноутбуки инженеров", "Latitude 5440", 2, []string{"engineer"})
	adminCtx := testCtx(7, "admin")

	p, err := env.pools.FindPool(context.Background(), poolID)
	require.NoError(t, err)
	assert.Equal(t, 0, p.Counts.IssuedCount)
	assert.Equal(t, 2, p.Counts.AvailableCount)

	require.NoError(t, env.equipment.IssueEquipment(adminCtx, first, dto.IssueEquipmentDTO{
		HolderID: 42, ExpectedReturnDate: returnDate(30),
	}))

	p, err = env.pools.FindPool(context.Background(), poolID)
	require.NoError(t, err)
	assert.Equal(t, 1, p.Counts.IssuedCount)
	assert.Equal(t, 1, p.Counts.AvailableCount)

	// Пересчёт агрегатов идемпотентен и не меняет источник истины.
	require.NoError(t, env.pools.RefreshAggregates(context.Background()))

	p, err = env.pools.FindPool(context.Background(), poolID)
	require.NoError(t, err)
	assert.Equal(t, 1, p.Counts.IssuedCount)
}

func TestPoolService_Integration_CreateUpdateDelete(t *testing.T) {
	env := newTestEnv(t)
	ctx := testCtx(7, "admin")

	created, err := env.pools.CreatePool(ctx, dto.CreatePoolDTO{
		Name:                   "Мониторы",
		Category:               "monitor",
		Model:                  "Dell U2723QE",
		TotalQuantity:          5,
		AuthorizedDesignations: []string{"engineer", "designer"},
	})
	require.NoError(t, err)
	assert.True(t, created.Allows("designer"))
	assert.False(t, created.Allows("accountant"))

	newTotal := 8
	updated, err := env.pools.UpdatePool(ctx, created.ID, dto.UpdatePoolDTO{TotalQuantity: &newTotal})
	require.NoError(t, err)
	assert.Equal(t, 8, updated.TotalQuantity)

	require.NoError(t, env.pools.DeletePool(ctx, created.ID))
	_, err = env.pools.FindPool(ctx, created.ID)
	assert.ErrorIs(t, err, apperrors.ErrNotFound)
}
