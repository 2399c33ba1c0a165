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

type RequestServiceInterface interface {
	CreateRequest(ctx context.Context, data dto.CreateRequestDTO) (*entities.Request, error)
	FindRequest(ctx context.Context, id uint64) (*entities.Request, error)
	GetRequests(ctx context.Context, filter types.Filter) ([]*entities.Request, uint64, error)
	GetRequestHistory(ctx context.Context, id uint64) ([]entities.RequestStatusHistory, error)

	ApproveRequest(ctx context.Context, id uint64, data dto.ProcessRequestDTO) error
	RejectRequest(ctx context.Context, id uint64, data dto.RejectRequestDTO) error
	CompleteRequest(ctx context.Context, id uint64, data dto.ProcessRequestDTO) error
	CancelRequest(ctx context.Context, id uint64) error
}

type RequestService struct {
	pool          *pgxpool.Pool
	requestRepo   repositories.RequestRepositoryInterface
	equipmentRepo repositories.EquipmentRepositoryInterface
	poolRepo      repositories.PoolRepositoryInterface
	arbiter       CustodyArbiterInterface
	numbering     RequestNumberServiceInterface
	validate      *validator.Validate
	logger        *zap.Logger
}

func NewRequestService(
	pool *pgxpool.Pool,
	requestRepo repositories.RequestRepositoryInterface,
	equipmentRepo repositories.EquipmentRepositoryInterface,
	poolRepo repositories.PoolRepositoryInterface,
	arbiter CustodyArbiterInterface,
	numbering RequestNumberServiceInterface,
	validate *validator.Validate,
	logger *zap.Logger,
) RequestServiceInterface {
	return &RequestService{
		pool:          pool,
		requestRepo:   requestRepo,
		equipmentRepo: equipmentRepo,
		poolRepo:      poolRepo,
		arbiter:       arbiter,
		numbering:     numbering,
		validate:      validate,
		logger:        logger,
	}
}

// CreateRequest создаёт заявку в статусе pending, проверив предусловия
// её типа по текущему состоянию реестра оборудования.
func (s *RequestService) CreateRequest(ctx context.Context, data dto.CreateRequestDTO) (*entities.Request, error) {
	requesterID, err := callerID(ctx)
	if err != nil {
		return nil, err
	}

	if err := s.validate.Struct(data); err != nil {
		return nil, apperrors.NewValidationError("некорректные данные заявки: %v", err)
	}

	// Цель заявки: либо единица оборудования, либо пул, но не оба сразу.
	if (data.EquipmentID == nil) == (data.PoolID == nil) {
		return nil, apperrors.NewValidationError("заявка должна ссылаться либо на оборудование, либо на пул")
	}
	if data.PoolID != nil {
		// Заявки из пула создаются через PoolService: там проверяются
		// допуск по должности и ёмкость пула.
		return nil, apperrors.NewValidationError("заявки на пул создаются через операцию запроса из пула")
	}

	reqType := entities.RequestType(data.RequestType)
	if reqType == entities.RequestTypeIssue && data.ExpectedReturnDate == nil {
		return nil, apperrors.NewValidationError("для заявки на выдачу обязательна ожидаемая дата возврата")
	}

	priority := entities.RequestPriority(data.Priority)
	if data.Priority == "" {
		priority = entities.PriorityMedium
	}

	var created *entities.Request
	err = repositories.WithTx(ctx, s.pool, func(tx pgx.Tx) error {
		equipment, err := s.equipmentRepo.FindByID(ctx, tx, *data.EquipmentID)
		if err != nil {
			return err
		}

		switch reqType {
		case entities.RequestTypeIssue:
			if equipment.Status != entities.EquipmentStatusAvailable {
				return apperrors.NewInvalidTransitionError(
					"оборудование %d в статусе %s и не может быть запрошено на выдачу", equipment.ID, equipment.Status)
			}
			// Частичный уникальный индекс в БД закрывает гонку двух
			// одновременных созданий; эта проверка даёт понятную ошибку.
			exists, err := s.requestRepo.HasPendingIssueRequest(ctx, tx, requesterID, equipment.ID)
			if err != nil {
				return err
			}
			if exists {
				return apperrors.NewConflictError(
					"у пользователя %d уже есть открытая заявка на оборудование %d", requesterID, equipment.ID)
			}
		case entities.RequestTypeReturn:
			if equipment.Status != entities.EquipmentStatusIssued {
				return apperrors.NewInvalidTransitionError(
					"оборудование %d не выдано, возврат невозможен", equipment.ID)
			}
			if equipment.HolderID.Int64 != requesterID {
				return apperrors.NewConflictError(
					"оборудование %d выдано другому держателю", equipment.ID)
			}
		case entities.RequestTypeMaintenance:
			if equipment.Status == entities.EquipmentStatusRetired {
				return apperrors.NewInvalidTransitionError(
					"оборудование %d списано и не обслуживается", equipment.ID)
			}
		}

		req := entities.Request{
			RequestNumber:      s.numbering.Next(ctx),
			RequesterID:        requesterID,
			RequestType:        reqType,
			Status:             entities.RequestStatusPending,
			EquipmentID:        null.Int64From(int64(*data.EquipmentID)),
			Priority:           priority,
			Reason:             data.Reason,
			ExpectedReturnDate: null.TimeFromPtr(data.ExpectedReturnDate),
		}

		id, err := s.requestRepo.CreateInTx(ctx, tx, req)
		if err != nil {
			return err
		}

		if err := s.requestRepo.AppendHistoryInTx(ctx, tx, entities.RequestStatusHistory{
			RequestID: id,
			ToStatus:  entities.RequestStatusPending,
			ChangedBy: requesterID,
			Note:      null.StringFrom(data.Reason),
		}); err != nil {
			return err
		}

		created, err = s.requestRepo.FindByID(ctx, tx, id)
		return err
	})
	if err != nil {
		return nil, err
	}

	s.logger.Info("заявка создана",
		zap.String("number", created.RequestNumber),
		zap.String("type", string(created.RequestType)),
		zap.Int64("requesterId", requesterID),
	)
	return created, nil
}

func (s *RequestService) FindRequest(ctx context.Context, id uint64) (*entities.Request, error) {
	return s.requestRepo.FindByID(ctx, nil, id)
}

func (s *RequestService) GetRequests(ctx context.Context, filter types.Filter) ([]*entities.Request, uint64, error) {
	return s.requestRepo.GetAll(ctx, filter)
}

func (s *RequestService) GetRequestHistory(ctx context.Context, id uint64) ([]entities.RequestStatusHistory, error) {
	if _, err := s.requestRepo.FindByID(ctx, nil, id); err != nil {
		return nil, err
	}
	return s.requestRepo.GetHistory(ctx, id)
}

// ApproveRequest - переход pending -> approved. Владение оборудованием
// на этом шаге не меняется.
func (s *RequestService) ApproveRequest(ctx context.Context, id uint64, data dto.ProcessRequestDTO) error {
	adminID, err := callerID(ctx)
	if err != nil {
		return err
	}

	if err := s.validate.Struct(data); err != nil {
		return apperrors.NewValidationError("некорректные данные согласования: %v", err)
	}

	return repositories.WithTx(ctx, s.pool, func(tx pgx.Tx) error {
		now := time.Now()
		notes := null.StringFromPtr(data.Notes)

		if err := s.requestRepo.ApproveInTx(ctx, tx, id, adminID, notes, now); err != nil {
			return err
		}

		return s.requestRepo.AppendHistoryInTx(ctx, tx, entities.RequestStatusHistory{
			RequestID:  id,
			FromStatus: null.StringFrom(string(entities.RequestStatusPending)),
			ToStatus:   entities.RequestStatusApproved,
			ChangedBy:  adminID,
			Note:       notes,
		})
	})
}

// RejectRequest - переход pending -> rejected. Причина обязательна.
func (s *RequestService) RejectRequest(ctx context.Context, id uint64, data dto.RejectRequestDTO) error {
	adminID, err := callerID(ctx)
	if err != nil {
		return err
	}

	if err := s.validate.Struct(data); err != nil {
		return apperrors.NewValidationError("для отклонения заявки обязательна причина: %v", err)
	}

	return repositories.WithTx(ctx, s.pool, func(tx pgx.Tx) error {
		now := time.Now()

		if err := s.requestRepo.RejectInTx(ctx, tx, id, adminID, data.Reason, now); err != nil {
			return err
		}

		return s.requestRepo.AppendHistoryInTx(ctx, tx, entities.RequestStatusHistory{
			RequestID:  id,
			FromStatus: null.StringFrom(string(entities.RequestStatusPending)),
			ToStatus:   entities.RequestStatusRejected,
			ChangedBy:  adminID,
			Note:       null.StringFrom(data.Reason),
		})
	})
}

// CompleteRequest - переход approved -> completed. Только здесь заявка
// фактически меняет владение оборудованием, и обе записи фиксируются
// одной транзакцией: либо меняются заявка и оборудование вместе,
// либо не меняется ничего.
func (s *RequestService) CompleteRequest(ctx context.Context, id uint64, data dto.ProcessRequestDTO) error {
	adminID, err := callerID(ctx)
	if err != nil {
		return err
	}

	if err := s.validate.Struct(data); err != nil {
		return apperrors.NewValidationError("некорректные данные выполнения: %v", err)
	}

	return repositories.WithTx(ctx, s.pool, func(tx pgx.Tx) error {
		req, err := s.requestRepo.FindByIDForUpdateInTx(ctx, tx, id)
		if err != nil {
			return err
		}
		if req.Status != entities.RequestStatusApproved {
			return apperrors.NewInvalidTransitionError(
				"заявка %s в статусе %s, ожидался %s", req.RequestNumber, req.Status, entities.RequestStatusApproved)
		}

		now := time.Now()
		assignedEquipment := null.Int64{}

		switch req.RequestType {
		case entities.RequestTypeIssue:
			var expectedReturn *time.Time
			if req.ExpectedReturnDate.Valid {
				expectedReturn = &req.ExpectedReturnDate.Time
			}

			if req.PoolID.Valid {
				pool, err := s.poolRepo.FindByIDForUpdateInTx(ctx, tx, uint64(req.PoolID.Int64))
				if err != nil {
					return err
				}
				equipmentID, err := s.arbiter.IssueFromPoolInTx(ctx, tx, pool, req.RequesterID, expectedReturn, adminID)
				if err != nil {
					return err
				}
				assignedEquipment = null.Int64From(int64(equipmentID))
			} else {
				if err := s.arbiter.IssueInTx(ctx, tx, uint64(req.EquipmentID.Int64), req.RequesterID, expectedReturn, adminID); err != nil {
					return err
				}
			}
		case entities.RequestTypeReturn:
			equipment, err := s.equipmentRepo.FindByID(ctx, tx, uint64(req.EquipmentID.Int64))
			if err != nil {
				return err
			}
			if equipment.HolderID.Valid && equipment.HolderID.Int64 != req.RequesterID {
				return apperrors.NewConflictError(
					"оборудование %d выдано другому держателю", equipment.ID)
			}
			if err := s.arbiter.ReturnInTx(ctx, tx, uint64(req.EquipmentID.Int64), adminID); err != nil {
				return err
			}
		case entities.RequestTypeMaintenance:
			if err := s.arbiter.StartMaintenanceInTx(ctx, tx, uint64(req.EquipmentID.Int64), adminID); err != nil {
				return err
			}
			if err := s.equipmentRepo.AppendMaintenanceInTx(ctx, tx, entities.MaintenanceRecord{
				EquipmentID: uint64(req.EquipmentID.Int64),
				Description: req.Reason,
				PerformedBy: adminID,
			}); err != nil {
				return err
			}
		}

		notes := null.StringFromPtr(data.Notes)
		if err := s.requestRepo.CompleteInTx(ctx, tx, id, adminID, notes, assignedEquipment, now); err != nil {
			return err
		}

		return s.requestRepo.AppendHistoryInTx(ctx, tx, entities.RequestStatusHistory{
			RequestID:  id,
			FromStatus: null.StringFrom(string(entities.RequestStatusApproved)),
			ToStatus:   entities.RequestStatusCompleted,
			ChangedBy:  adminID,
			Note:       notes,
		})
	})
}

// CancelRequest - переход pending -> cancelled, доступен только автору заявки.
func (s *RequestService) CancelRequest(ctx context.Context, id uint64) error {
	requesterID, err := callerID(ctx)
	if err != nil {
		return err
	}

	return repositories.WithTx(ctx, s.pool, func(tx pgx.Tx) error {
		if err := s.requestRepo.CancelInTx(ctx, tx, id, requesterID, time.Now()); err != nil {
			return err
		}

		return s.requestRepo.AppendHistoryInTx(ctx, tx, entities.RequestStatusHistory{
			RequestID:  id,
			FromStatus: null.StringFrom(string(entities.RequestStatusPending)),
			ToStatus:   entities.RequestStatusCancelled,
			ChangedBy:  requesterID,
		})
	})
}
