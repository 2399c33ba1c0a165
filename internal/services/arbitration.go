package services

import (
	"context"
	"time"

	"github.com/jackc/pgx/v5"
	"go.uber.org/zap"

	"custody-system/internal/entities"
	"custody-system/internal/repositories"
	apperrors "custody-system/pkg/errors"
)

// CustodyArbiterInterface - единственная точка изменения статуса владения
// оборудованием. Через неё проходят оба пути: прямое административное
// действие и выполнение согласованной заявки. Никакой другой код не пишет
// блок владения.
type CustodyArbiterInterface interface {
	IssueInTx(ctx context.Context, q repositories.Querier, equipmentID uint64, holderID int64, expectedReturn *time.Time, actorID int64) error
	ReturnInTx(ctx context.Context, q repositories.Querier, equipmentID uint64, actorID int64) error
	StartMaintenanceInTx(ctx context.Context, q repositories.Querier, equipmentID uint64, actorID int64) error
	FinishMaintenanceInTx(ctx context.Context, q repositories.Querier, equipmentID uint64, actorID int64) error
	RetireInTx(ctx context.Context, q repositories.Querier, equipmentID uint64, actorID int64) error

	// IssueFromPoolInTx атомарно выбирает доступную единицу пула и выдаёт её.
	// Возвращает идентификатор назначенной единицы.
	IssueFromPoolInTx(ctx context.Context, tx pgx.Tx, pool *entities.AllocationPool, holderID int64, expectedReturn *time.Time, actorID int64) (uint64, error)
}

type CustodyArbiter struct {
	equipmentRepo   repositories.EquipmentRepositoryInterface
	logger          *zap.Logger
	defaultLoanDays int
	now             func() time.Time
}

func NewCustodyArbiter(
	equipmentRepo repositories.EquipmentRepositoryInterface,
	logger *zap.Logger,
	defaultLoanDays int,
) CustodyArbiterInterface {
	return &CustodyArbiter{
		equipmentRepo:   equipmentRepo,
		logger:          logger,
		defaultLoanDays: defaultLoanDays,
		now:             time.Now,
	}
}

// IssueInTx - переход available -> issued. Предусловие проверяется и новое
// состояние записывается одним атомарным UPDATE в репозитории: из двух
// конкурентных выдач одной единицы ровно одна завершится успехом.
func (a *CustodyArbiter) IssueInTx(ctx context.Context, q repositories.Querier, equipmentID uint64, holderID int64, expectedReturn *time.Time, actorID int64) error {
	issuedAt := a.now()
	returnDate := issuedAt.AddDate(0, 0, a.defaultLoanDays)
	if expectedReturn != nil {
		returnDate = *expectedReturn
	}

	if err := a.equipmentRepo.IssueInTx(ctx, q, equipmentID, holderID, issuedAt, returnDate, actorID); err != nil {
		return err
	}

	a.logger.Info("оборудование выдано",
		zap.Uint64("equipmentId", equipmentID),
		zap.Int64("holderId", holderID),
		zap.Time("expectedReturn", returnDate),
	)
	return nil
}

// ReturnInTx - переход issued -> available, блок владения очищается.
func (a *CustodyArbiter) ReturnInTx(ctx context.Context, q repositories.Querier, equipmentID uint64, actorID int64) error {
	if err := a.equipmentRepo.ReturnInTx(ctx, q, equipmentID, actorID); err != nil {
		return err
	}
	a.logger.Info("оборудование возвращено", zap.Uint64("equipmentId", equipmentID))
	return nil
}

// StartMaintenanceInTx - переход available -> under_maintenance.
// Выданное оборудование сначала должно быть возвращено.
func (a *CustodyArbiter) StartMaintenanceInTx(ctx context.Context, q repositories.Querier, equipmentID uint64, actorID int64) error {
	return a.equipmentRepo.TransitionStatusInTx(ctx, q, equipmentID,
		entities.EquipmentStatusAvailable, entities.EquipmentStatusUnderMaintenance, actorID)
}

// FinishMaintenanceInTx - переход under_maintenance -> available.
func (a *CustodyArbiter) FinishMaintenanceInTx(ctx context.Context, q repositories.Querier, equipmentID uint64, actorID int64) error {
	return a.equipmentRepo.TransitionStatusInTx(ctx, q, equipmentID,
		entities.EquipmentStatusUnderMaintenance, entities.EquipmentStatusAvailable, actorID)
}

// RetireInTx - списание. Допустимо из available и under_maintenance,
// терминально: переходов из retired нет.
func (a *CustodyArbiter) RetireInTx(ctx context.Context, q repositories.Querier, equipmentID uint64, actorID int64) error {
	err := a.equipmentRepo.TransitionStatusInTx(ctx, q, equipmentID,
		entities.EquipmentStatusAvailable, entities.EquipmentStatusRetired, actorID)
	if err == nil {
		return nil
	}

	e, ferr := a.equipmentRepo.FindByID(ctx, q, equipmentID)
	if ferr != nil {
		return ferr
	}
	if e.Status == entities.EquipmentStatusUnderMaintenance {
		return a.equipmentRepo.TransitionStatusInTx(ctx, q, equipmentID,
			entities.EquipmentStatusUnderMaintenance, entities.EquipmentStatusRetired, actorID)
	}
	return err
}

// IssueFromPoolInTx выбирает единицу пула под блокировкой строки
// (FOR UPDATE SKIP LOCKED) и выдаёт её в той же транзакции. Проверка
// "available > 0" отдельным шагом здесь не используется: решающим
// декрементом является сам атомарный переход единицы available -> issued.
func (a *CustodyArbiter) IssueFromPoolInTx(ctx context.Context, tx pgx.Tx, pool *entities.AllocationPool, holderID int64, expectedReturn *time.Time, actorID int64) (uint64, error) {
	equipmentID, err := a.equipmentRepo.PickAvailableForUpdateInTx(ctx, tx, pool.Category, pool.Model)
	if err != nil {
		if err == apperrors.ErrUnavailable {
			a.logger.Warn("в пуле не осталось доступных единиц",
				zap.Uint64("poolId", pool.ID), zap.String("model", pool.Model))
		}
		return 0, err
	}

	if err := a.IssueInTx(ctx, tx, equipmentID, holderID, expectedReturn, actorID); err != nil {
		return 0, err
	}
	return equipmentID, nil
}
