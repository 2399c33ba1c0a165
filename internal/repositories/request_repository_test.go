package repositories

import (
	"context"
	"testing"
	"time"

	"github.com/aarondl/null/v8"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"custody-system/internal/entities"
	apperrors "custody-system/pkg/errors"
)

func newTestRequest(t *testing.T, repo RequestRepositoryInterface, number string, requesterID int64, equipmentID uint64) uint64 {
	t.Helper()
	id, err := repo.CreateInTx(context.Background(), nil, entities.Request{
		RequestNumber:      number,
		RequesterID:        requesterID,
		RequestType:        entities.RequestTypeIssue,
		Status:             entities.RequestStatusPending,
		EquipmentID:        null.Int64From(int64(equipmentID)),
		Priority:           entities.PriorityMedium,
		Reason:             "Нужен для работы",
		ExpectedReturnDate: null.TimeFrom(time.Now().AddDate(0, 1, 0)),
	})
	require.NoError(t, err)
	require.True(t, id > 0)
	return id
}

// approve допустим только из pending: любой повторный вызов и вызов из
// терминального статуса завершается InvalidTransition.
func TestRequestRepository_Integration_ApproveOnlyFromPending(t *testing.T) {
	require.NotNil(t, testPool, "testPool не инициализирован")
	cleanupTables(t, testPool)
	equipmentRepo := NewEquipmentRepository(testPool, testLogger)
	repo := NewRequestRepository(testPool, testLogger)
	ctx := context.Background()

	equipmentID := newTestEquipment(t, equipmentRepo, "SN-REQ-1")
	id := newTestRequest(t, repo, "REQ-20260901-0001", 42, equipmentID)

	now := time.Now()
	require.NoError(t, repo.ApproveInTx(ctx, nil, id, 7, null.String{}, now))

	req, err := repo.FindByID(ctx, nil, id)
	require.NoError(t, err)
	assert.Equal(t, entities.RequestStatusApproved, req.Status)
	assert.Equal(t, int64(7), req.ProcessedBy.Int64)
	assert.True(t, req.ApprovedAt.Valid)

	// Повторное согласование и отклонение согласованной заявки запрещены.
	assert.ErrorIs(t, repo.ApproveInTx(ctx, nil, id, 7, null.String{}, now), apperrors.ErrInvalidTransition)
	assert.ErrorIs(t, repo.RejectInTx(ctx, nil, id, 7, "поздно", now), apperrors.ErrInvalidTransition)

	require.NoError(t, repo.CompleteInTx(ctx, nil, id, 7, null.String{}, null.Int64{}, now))
	assert.ErrorIs(t, repo.ApproveInTx(ctx, nil, id, 7, null.String{}, now), apperrors.ErrInvalidTransition)
}

func TestRequestRepository_Integration_RejectStampsProcessedFields(t *testing.T) {
	cleanupTables(t, testPool)
	equipmentRepo := NewEquipmentRepository(testPool, testLogger)
	repo := NewRequestRepository(testPool, testLogger)
	ctx := context.Background()

	equipmentID := newTestEquipment(t, equipmentRepo, "SN-REQ-2")
	id := newTestRequest(t, repo, "REQ-20260901-0002", 42, equipmentID)

	require.NoError(t, repo.RejectInTx(ctx, nil, id, 9, "не требуется", time.Now()))

	req, err := repo.FindByID(ctx, nil, id)
	require.NoError(t, err)
	assert.Equal(t, entities.RequestStatusRejected, req.Status)
	assert.Equal(t, int64(9), req.ProcessedBy.Int64)
	assert.True(t, req.ProcessedAt.Valid)
	assert.Equal(t, "не требуется", req.AdminNotes.String)
}

func TestRequestRepository_Integration_CancelOnlyByRequester(t *testing.T) {
	cleanupTables(t, testPool)
	equipmentRepo := NewEquipmentRepository(testPool, testLogger)
	repo := NewRequestRepository(testPool, testLogger)
	ctx := context.Background()

	equipmentID := newTestEquipment(t, equipmentRepo, "SN-REQ-3")
	id := newTestRequest(t, repo, "REQ-20260901-0003", 42, equipmentID)

	// Чужую заявку отменить нельзя.
	assert.ErrorIs(t, repo.CancelInTx(ctx, nil, id, 999, time.Now()), apperrors.ErrUnauthorized)

	require.NoError(t, repo.CancelInTx(ctx, nil, id, 42, time.Now()))

	req, err := repo.FindByID(ctx, nil, id)
	require.NoError(t, err)
	assert.Equal(t, entities.RequestStatusCancelled, req.Status)
}

// Частичный уникальный индекс не допускает вторую pending-заявку на выдачу
// той же единицы тому же пользователю.
func TestRequestRepository_Integration_DuplicatePendingIssue(t *testing.T) {
	cleanupTables(t, testPool)
	equipmentRepo := NewEquipmentRepository(testPool, testLogger)
	repo := NewRequestRepository(testPool, testLogger)
	ctx := context.Background()

	equipmentID := newTestEquipment(t, equipmentRepo, "SN-REQ-4")
	newTestRequest(t, repo, "REQ-20260901-0004", 42, equipmentID)

	_, err := repo.CreateInTx(ctx, nil, entities.Request{
		RequestNumber:      "REQ-20260901-0005",
		RequesterID:        42,
		RequestType:        entities.RequestTypeIssue,
		Status:             entities.RequestStatusPending,
		EquipmentID:        null.Int64From(int64(equipmentID)),
		Priority:           entities.PriorityMedium,
		Reason:             "Дубликат",
		ExpectedReturnDate: null.TimeFrom(time.Now().AddDate(0, 1, 0)),
	})
	assert.ErrorIs(t, err, apperrors.ErrConflict)

	exists, err := repo.HasPendingIssueRequest(ctx, nil, 42, equipmentID)
	require.NoError(t, err)
	assert.True(t, exists)
}

func TestRequestRepository_Integration_HistoryAppendOnly(t *testing.T) {
	cleanupTables(t, testPool)
	equipmentRepo := NewEquipmentRepository(testPool, testLogger)
	repo := NewRequestRepository(testPool, testLogger)
	ctx := context.Background()

	equipmentID := newTestEquipment(t, equipmentRepo, "SN-REQ-5")
	id := newTestRequest(t, repo, "REQ-20260901-0006", 42, equipmentID)

	require.NoError(t, repo.AppendHistoryInTx(ctx, nil, entities.RequestStatusHistory{
		RequestID: id, ToStatus: entities.RequestStatusPending, ChangedBy: 42,
	}))
	require.NoError(t, repo.ApproveInTx(ctx, nil, id, 7, null.String{}, time.Now()))
	require.NoError(t, repo.AppendHistoryInTx(ctx, nil, entities.RequestStatusHistory{
		RequestID:  id,
		FromStatus: null.StringFrom(string(entities.RequestStatusPending)),
		ToStatus:   entities.RequestStatusApproved,
		ChangedBy:  7,
	}))

	history, err := repo.GetHistory(ctx, id)
	require.NoError(t, err)
	require.Len(t, history, 2)
	assert.Equal(t, entities.RequestStatusPending, history[0].ToStatus)
	assert.Equal(t, entities.RequestStatusApproved, history[1].ToStatus)
	assert.Equal(t, "pending", history[1].FromStatus.String)
}
