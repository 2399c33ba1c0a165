package services

import (
	"context"
	"encoding/json"
	"fmt"
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

type PoolServiceInterface interface {
	CreatePool(ctx context.Context, data dto.CreatePoolDTO) (*entities.AllocationPool, error)
	FindPool(ctx context.Context, id uint64) (*dto.PoolWithCountsDTO, error)
	GetPools(ctx context.Context, filter types.Filter) ([]*dto.PoolWithCountsDTO, uint64, error)
	UpdatePool(ctx context.Context, id uint64, data dto.UpdatePoolDTO) (*entities.AllocationPool, error)
	DeletePool(ctx context.Context, id uint64) error

	// RequestFromPool создаёт заявку на выдачу из пула. Конкретная единица
	// назначается позже, при выполнении заявки.
	RequestFromPool(ctx context.Context, poolID uint64, data dto.RequestFromPoolDTO) (*entities.Request, error)

	// RefreshAggregates пересчитывает счётчики всех пулов и кладёт их в кеш.
	// Только чтение и идемпотентно: счётчики нигде не хранятся как источник истины.
	RefreshAggregates(ctx context.Context) error
}

type PoolService struct {
	pool          *pgxpool.Pool
	poolRepo      repositories.PoolRepositoryInterface
	equipmentRepo repositories.EquipmentRepositoryInterface
	requestRepo   repositories.RequestRepositoryInterface
	cacheRepo     repositories.CacheRepositoryInterface
	numbering     RequestNumberServiceInterface
	validate      *validator.Validate
	logger        *zap.Logger
}

func NewPoolService(
	pool *pgxpool.Pool,
	poolRepo repositories.PoolRepositoryInterface,
	equipmentRepo repositories.EquipmentRepositoryInterface,
	requestRepo repositories.RequestRepositoryInterface,
	cacheRepo repositories.CacheRepositoryInterface,
	numbering RequestNumberServiceInterface,
	validate *validator.Validate,
	logger *zap.Logger,
) PoolServiceInterface {
	return &PoolService{
		pool:          pool,
		poolRepo:      poolRepo,
		equipmentRepo: equipmentRepo,
		requestRepo:   requestRepo,
		cacheRepo:     cacheRepo,
		numbering:     numbering,
		validate:      validate,
		logger:        logger,
	}
}

func (s *PoolService) CreatePool(ctx context.Context, data dto.CreatePoolDTO) (*entities.AllocationPool, error) {
	if _, err := callerID(ctx); err != nil {
		return nil, err
	}

	if err := s.validate.Struct(data); err != nil {
		return nil, apperrors.NewValidationError("некорректные данные пула: %v", err)
	}

	p := entities.AllocationPool{
		Name:                   data.Name,
		Category:               entities.EquipmentCategory(data.Category),
		Model:                  data.Model,
		TotalQuantity:          data.TotalQuantity,
		AuthorizedDesignations: data.AuthorizedDesignations,
	}

	id, err := s.poolRepo.Create(ctx, p)
	if err != nil {
		s.logger.Error("ошибка при создании пула", zap.Error(err))
		return nil, err
	}
	return s.poolRepo.FindByID(ctx, nil, id)
}

// counts вычисляет производные счётчики пула по текущему состоянию
// оборудования. Отдельно они не хранятся и храниться не должны.
func (s *PoolService) counts(ctx context.Context, q repositories.Querier, p *entities.AllocationPool) (entities.PoolCounts, error) {
	issued, err := s.equipmentRepo.CountByStatus(ctx, q, p.Category, p.Model, entities.EquipmentStatusIssued)
	if err != nil {
		return entities.PoolCounts{}, err
	}

	available := p.TotalQuantity - issued
	if available < 0 {
		available = 0
	}
	return entities.PoolCounts{IssuedCount: issued, AvailableCount: available}, nil
}

func (s *PoolService) FindPool(ctx context.Context, id uint64) (*dto.PoolWithCountsDTO, error) {
	p, err := s.poolRepo.FindByID(ctx, nil, id)
	if err != nil {
		return nil, err
	}

	counts, err := s.counts(ctx, nil, p)
	if err != nil {
		return nil, err
	}
	return &dto.PoolWithCountsDTO{Pool: *p, Counts: counts}, nil
}

func (s *PoolService) GetPools(ctx context.Context, filter types.Filter) ([]*dto.PoolWithCountsDTO, uint64, error) {
	pools, total, err := s.poolRepo.GetAll(ctx, filter)
	if err != nil {
		return nil, 0, err
	}

	list := make([]*dto.PoolWithCountsDTO, 0, len(pools))
	for _, p := range pools {
		counts, err := s.counts(ctx, nil, p)
		if err != nil {
			return nil, 0, err
		}
		list = append(list, &dto.PoolWithCountsDTO{Pool: *p, Counts: counts})
	}
	return list, total, nil
}

func (s *PoolService) UpdatePool(ctx context.Context, id uint64, data dto.UpdatePoolDTO) (*entities.AllocationPool, error) {
	if _, err := callerID(ctx); err != nil {
		return nil, err
	}

	if err := s.validate.Struct(data); err != nil {
		return nil, apperrors.NewValidationError("некорректные данные пула: %v", err)
	}

	current, err := s.poolRepo.FindByID(ctx, nil, id)
	if err != nil {
		return nil, err
	}

	if data.Name != nil {
		current.Name = *data.Name
	}
	if data.TotalQuantity != nil {
		current.TotalQuantity = *data.TotalQuantity
	}
	if len(data.AuthorizedDesignations) > 0 {
		current.AuthorizedDesignations = data.AuthorizedDesignations
	}

	if err := s.poolRepo.Update(ctx, id, *current); err != nil {
		return nil, err
	}
	return s.poolRepo.FindByID(ctx, nil, id)
}

func (s *PoolService) DeletePool(ctx context.Context, id uint64) error {
	return s.poolRepo.Delete(ctx, id)
}

// RequestFromPool проверяет допуск по должности и ёмкость пула на момент
// фиксации. Строка пула блокируется FOR UPDATE: два конкурентных создания
// заявок сериализуются, и переподписка пула невозможна. Ёмкость считается
// с учётом уже открытых (pending/approved) заявок на этот пул.
func (s *PoolService) RequestFromPool(ctx context.Context, poolID uint64, data dto.RequestFromPoolDTO) (*entities.Request, error) {
	requesterID, err := callerID(ctx)
	if err != nil {
		return nil, err
	}
	designation, err := callerDesignation(ctx)
	if err != nil {
		return nil, err
	}

	if err := s.validate.Struct(data); err != nil {
		return nil, apperrors.NewValidationError("некорректные данные заявки: %v", err)
	}

	priority := entities.RequestPriority(data.Priority)
	if data.Priority == "" {
		priority = entities.PriorityMedium
	}

	var created *entities.Request
	err = repositories.WithTx(ctx, s.pool, func(tx pgx.Tx) error {
		p, err := s.poolRepo.FindByIDForUpdateInTx(ctx, tx, poolID)
		if err != nil {
			return err
		}

		if !p.Allows(designation) {
			return fmt.Errorf("%w: должность %q не входит в список пула %s",
				apperrors.ErrUnauthorized, designation, p.Name)
		}

		availableItems, err := s.equipmentRepo.CountByStatus(ctx, tx, p.Category, p.Model, entities.EquipmentStatusAvailable)
		if err != nil {
			return err
		}
		openRequests, err := s.requestRepo.CountOpenPoolRequests(ctx, tx, poolID)
		if err != nil {
			return err
		}

		capacity := availableItems
		if p.TotalQuantity < capacity {
			capacity = p.TotalQuantity
		}
		if capacity-openRequests <= 0 {
			return fmt.Errorf("%w: в пуле %s нет свободной ёмкости", apperrors.ErrUnavailable, p.Name)
		}

		req := entities.Request{
			RequestNumber:      s.numbering.Next(ctx),
			RequesterID:        requesterID,
			RequestType:        entities.RequestTypeIssue,
			Status:             entities.RequestStatusPending,
			PoolID:             null.Int64From(int64(poolID)),
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

	s.logger.Info("создана заявка из пула",
		zap.String("number", created.RequestNumber),
		zap.Uint64("poolId", poolID),
		zap.Int64("requesterId", requesterID),
	)
	return created, nil
}

func (s *PoolService) RefreshAggregates(ctx context.Context) error {
	pools, _, err := s.poolRepo.GetAll(ctx, types.Filter{})
	if err != nil {
		return err
	}

	for _, p := range pools {
		counts, err := s.counts(ctx, nil, p)
		if err != nil {
			return err
		}

		payload, err := json.Marshal(counts)
		if err != nil {
			return err
		}

		key := fmt.Sprintf("pool:counts:%d", p.ID)
		if err := s.cacheRepo.Set(ctx, key, payload, time.Minute*15); err != nil {
			s.logger.Warn("не удалось закешировать счётчики пула",
				zap.Uint64("poolId", p.ID), zap.Error(err))
			continue
		}

		s.logger.Debug("счётчики пула обновлены",
			zap.Uint64("poolId", p.ID),
			zap.Int("available", counts.AvailableCount),
			zap.Int("issued", counts.IssuedCount),
		)
	}
	return nil
}
