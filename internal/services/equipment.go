package services

import (
	"context"
	"time"

	"github.com/aarondl/null/v8"
	"github.com/go-playground/validator/v10"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
	"go.uber.org/zap"

	"custody-system/internal/dto"
	"custody-system/internal/entities"
	"custody-system/internal/repositories"
	apperrors "custody-system/pkg/errors"
	"custody-system/pkg/types"
)

type EquipmentServiceInterface interface {
	CreateEquipment(ctx context.Context, data dto.CreateEquipmentDTO) (*entities.Equipment, error)
	FindEquipment(ctx context.Context, id uint64) (*entities.Equipment, error)
	GetEquipments(ctx context.Context, filter types.Filter) ([]*entities.Equipment, uint64, error)
	UpdateEquipment(ctx context.Context, id uint64, data dto.UpdateEquipmentDTO) (*entities.Equipment, error)
	DeleteEquipment(ctx context.Context, id uint64) error

	// Прямой административный путь. Изменение владения выполняет арбитр -
	// тот же код, что и при выполнении заявки.
	IssueEquipment(ctx context.Context, id uint64, data dto.IssueEquipmentDTO) error
	ReturnEquipment(ctx context.Context, id uint64) error
	StartMaintenance(ctx context.Context, id uint64) error
	FinishMaintenance(ctx context.Context, id uint64) error
	RetireEquipment(ctx context.Context, id uint64) error

	AddMaintenanceRecord(ctx context.Context, id uint64, data dto.AddMaintenanceRecordDTO) error
	GetMaintenanceLog(ctx context.Context, id uint64) ([]entities.MaintenanceRecord, error)
	EquipmentAge(ctx context.Context, id uint64) (int, error)
}

type EquipmentService struct {
	pool          *pgxpool.Pool
	equipmentRepo repositories.EquipmentRepositoryInterface
	arbiter       CustodyArbiterInterface
	validate      *validator.Validate
	logger        *zap.Logger
}

func NewEquipmentService(
	pool *pgxpool.Pool,
	equipmentRepo repositories.EquipmentRepositoryInterface,
	arbiter CustodyArbiterInterface,
	validate *validator.Validate,
	logger *zap.Logger,
) EquipmentServiceInterface {
	return &EquipmentService{
		pool:          pool,
		equipmentRepo: equipmentRepo,
		arbiter:       arbiter,
		validate:      validate,
		logger:        logger,
	}
}

func (s *EquipmentService) CreateEquipment(ctx context.Context, data dto.CreateEquipmentDTO) (*entities.Equipment, error) {
	actorID, err := callerID(ctx)
	if err != nil {
		return nil, err
	}

	if err := s.validate.Struct(data); err != nil {
		return nil, apperrors.NewValidationError("некорректные данные оборудования: %v", err)
	}

	e := entities.Equipment{
		Name:         data.Name,
		Category:     entities.EquipmentCategory(data.Category),
		Model:        data.Model,
		SerialNumber: data.SerialNumber,
		Manufacturer: data.Manufacturer,
		PurchaseDate: data.PurchaseDate,
		Cost:         data.Cost,
		Condition:    entities.EquipmentCondition(data.Condition),
		Status:       entities.EquipmentStatusAvailable,
		Location:     data.Location,
		AddedBy:      actorID,
	}

	id, err := s.equipmentRepo.Create(ctx, e)
	if err != nil {
		s.logger.Error("ошибка при создании оборудования", zap.Error(err))
		return nil, err
	}

	s.logger.Info("оборудование зарегистрировано",
		zap.Uint64("id", id), zap.String("serial", data.SerialNumber))
	return s.equipmentRepo.FindByID(ctx, nil, id)
}

func (s *EquipmentService) FindEquipment(ctx context.Context, id uint64) (*entities.Equipment, error) {
	return s.equipmentRepo.FindByID(ctx, nil, id)
}

func (s *EquipmentService) GetEquipments(ctx context.Context, filter types.Filter) ([]*entities.Equipment, uint64, error) {
	return s.equipmentRepo.GetAll(ctx, filter)
}

func (s *EquipmentService) UpdateEquipment(ctx context.Context, id uint64, data dto.UpdateEquipmentDTO) (*entities.Equipment, error) {
	actorID, err := callerID(ctx)
	if err != nil {
		return nil, err
	}

	if err := s.validate.Struct(data); err != nil {
		return nil, apperrors.NewValidationError("некорректные данные оборудования: %v", err)
	}

	current, err := s.equipmentRepo.FindByID(ctx, nil, id)
	if err != nil {
		return nil, err
	}

	if data.Name != nil {
		current.Name = *data.Name
	}
	if data.Model != nil {
		current.Model = *data.Model
	}
	if data.Manufacturer != nil {
		current.Manufacturer = *data.Manufacturer
	}
	if data.Cost != nil {
		current.Cost = *data.Cost
	}
	if data.Condition != nil {
		current.Condition = entities.EquipmentCondition(*data.Condition)
	}
	if data.Location != nil {
		current.Location = *data.Location
	}
	current.LastModifiedBy = null.Int64From(actorID)

	if err := s.equipmentRepo.Update(ctx, nil, id, *current); err != nil {
		return nil, err
	}
	return s.equipmentRepo.FindByID(ctx, nil, id)
}

func (s *EquipmentService) DeleteEquipment(ctx context.Context, id uint64) error {
	return s.equipmentRepo.Delete(ctx, id)
}

func (s *EquipmentService) IssueEquipment(ctx context.Context, id uint64, data dto.IssueEquipmentDTO) error {
	actorID, err := callerID(ctx)
	if err != nil {
		return err
	}

	if err := s.validate.Struct(data); err != nil {
		return apperrors.NewValidationError("некорректные данные выдачи: %v", err)
	}

	return repositories.WithTx(ctx, s.pool, func(tx pgx.Tx) error {
		return s.arbiter.IssueInTx(ctx, tx, id, data.HolderID, data.ExpectedReturnDate, actorID)
	})
}

func (s *EquipmentService) ReturnEquipment(ctx context.Context, id uint64) error {
	actorID, err := callerID(ctx)
	if err != nil {
		return err
	}

	return repositories.WithTx(ctx, s.pool, func(tx pgx.Tx) error {
		return s.arbiter.ReturnInTx(ctx, tx, id, actorID)
	})
}

func (s *EquipmentService) StartMaintenance(ctx context.Context, id uint64) error {
	actorID, err := callerID(ctx)
	if err != nil {
		return err
	}

	return repositories.WithTx(ctx, s.pool, func(tx pgx.Tx) error {
		return s.arbiter.StartMaintenanceInTx(ctx, tx, id, actorID)
	})
}

func (s *EquipmentService) FinishMaintenance(ctx context.Context, id uint64) error {
	actorID, err := callerID(ctx)
	if err != nil {
		return err
	}

	return repositories.WithTx(ctx, s.pool, func(tx pgx.Tx) error {
		return s.arbiter.FinishMaintenanceInTx(ctx, tx, id, actorID)
	})
}

func (s *EquipmentService) RetireEquipment(ctx context.Context, id uint64) error {
	actorID, err := callerID(ctx)
	if err != nil {
		return err
	}

	return repositories.WithTx(ctx, s.pool, func(tx pgx.Tx) error {
		return s.arbiter.RetireInTx(ctx, tx, id, actorID)
	})
}

func (s *EquipmentService) AddMaintenanceRecord(ctx context.Context, id uint64, data dto.AddMaintenanceRecordDTO) error {
	actorID, err := callerID(ctx)
	if err != nil {
		return err
	}

	if err := s.validate.Struct(data); err != nil {
		return apperrors.NewValidationError("некорректная запись обслуживания: %v", err)
	}

	if _, err := s.equipmentRepo.FindByID(ctx, nil, id); err != nil {
		return err
	}

	return s.equipmentRepo.AppendMaintenanceInTx(ctx, nil, entities.MaintenanceRecord{
		EquipmentID: id,
		Description: data.Description,
		PerformedBy: actorID,
		Cost:        data.Cost,
	})
}

func (s *EquipmentService) GetMaintenanceLog(ctx context.Context, id uint64) ([]entities.MaintenanceRecord, error) {
	if _, err := s.equipmentRepo.FindByID(ctx, nil, id); err != nil {
		return nil, err
	}
	return s.equipmentRepo.GetMaintenanceLog(ctx, id)
}

// EquipmentAge - возраст в полных годах с даты покупки.
func (s *EquipmentService) EquipmentAge(ctx context.Context, id uint64) (int, error) {
	e, err := s.equipmentRepo.FindByID(ctx, nil, id)
	if err != nil {
		return 0, err
	}
	return e.AgeYears(time.Now()), nil
}
