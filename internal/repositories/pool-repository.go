package repositories

import (
	"context"
	"errors"
	"fmt"

	sq "github.com/Masterminds/squirrel"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
	"go.uber.org/zap"

	"custody-system/internal/entities"
	db "custody-system/internal/infrastructure/bd"
	apperrors "custody-system/pkg/errors"
	"custody-system/pkg/types"
)

const (
	poolTable  = "allocation_pools"
	poolFields = `id, name, category, model, total_quantity, authorized_designations, created_at, updated_at`
)

var allowedPoolFilters = map[string]string{
	"id":       "id",
	"name":     "name",
	"category": "category",
	"model":    "model",
}

type PoolRepositoryInterface interface {
	Create(ctx context.Context, p entities.AllocationPool) (uint64, error)
	FindByID(ctx context.Context, q Querier, id uint64) (*entities.AllocationPool, error)
	// FindByIDForUpdateInTx блокирует строку пула до конца транзакции и тем самым
	// сериализует конкурентное создание заявок на этот пул.
	FindByIDForUpdateInTx(ctx context.Context, tx pgx.Tx, id uint64) (*entities.AllocationPool, error)
	GetAll(ctx context.Context, filter types.Filter) ([]*entities.AllocationPool, uint64, error)
	Update(ctx context.Context, id uint64, p entities.AllocationPool) error
	Delete(ctx context.Context, id uint64) error
}

type poolRepository struct {
	storage *pgxpool.Pool
	logger  *zap.Logger
}

func NewPoolRepository(storage *pgxpool.Pool, logger *zap.Logger) PoolRepositoryInterface {
	return &poolRepository{storage: storage, logger: logger}
}

func (r *poolRepository) getQuerier(q Querier) Querier {
	if q != nil {
		return q
	}
	return r.storage
}

func scanPoolRow(row pgx.Row) (*entities.AllocationPool, error) {
	var p entities.AllocationPool
	err := row.Scan(
		&p.ID, &p.Name, &p.Category, &p.Model, &p.TotalQuantity,
		&p.AuthorizedDesignations, &p.CreatedAt, &p.UpdatedAt,
	)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, apperrors.ErrNotFound
		}
		return nil, fmt.Errorf("ошибка сканирования allocation_pools: %w", err)
	}
	return &p, nil
}

func (r *poolRepository) Create(ctx context.Context, p entities.AllocationPool) (uint64, error) {
	query := fmt.Sprintf(`
		INSERT INTO %s (name, category, model, total_quantity, authorized_designations)
		VALUES ($1, $2, $3, $4, $5)
		RETURNING id
	`, poolTable)

	var id uint64
	err := r.storage.QueryRow(ctx, query,
		p.Name, p.Category, p.Model, p.TotalQuantity, p.AuthorizedDesignations,
	).Scan(&id)
	if err != nil {
		if isUniqueViolation(err) {
			return 0, apperrors.NewConflictError("пул с именем %s уже существует", p.Name)
		}
		return 0, fmt.Errorf("ошибка вставки allocation_pools: %w", err)
	}
	return id, nil
}

func (r *poolRepository) FindByID(ctx context.Context, q Querier, id uint64) (*entities.AllocationPool, error) {
	query := fmt.Sprintf(`SELECT %s FROM %s WHERE id = $1`, poolFields, poolTable)
	return scanPoolRow(r.getQuerier(q).QueryRow(ctx, query, id))
}

func (r *poolRepository) FindByIDForUpdateInTx(ctx context.Context, tx pgx.Tx, id uint64) (*entities.AllocationPool, error) {
	query := fmt.Sprintf(`SELECT %s FROM %s WHERE id = $1 FOR UPDATE`, poolFields, poolTable)
	return scanPoolRow(tx.QueryRow(ctx, query, id))
}

func (r *poolRepository) GetAll(ctx context.Context, filter types.Filter) ([]*entities.AllocationPool, uint64, error) {
	builder := sq.Select(poolFields).From(poolTable).PlaceholderFormat(sq.Dollar)
	builder = db.ApplyListParams(builder, filter, allowedPoolFilters)

	query, args, err := builder.ToSql()
	if err != nil {
		return nil, 0, fmt.Errorf("ошибка построения запроса: %w", err)
	}

	rows, err := r.storage.Query(ctx, query, args...)
	if err != nil {
		return nil, 0, fmt.Errorf("ошибка выборки allocation_pools: %w", err)
	}
	defer rows.Close()

	list := make([]*entities.AllocationPool, 0)
	for rows.Next() {
		p, err := scanPoolRow(rows)
		if err != nil {
			return nil, 0, err
		}
		list = append(list, p)
	}
	if err := rows.Err(); err != nil {
		return nil, 0, err
	}

	countBuilder := sq.Select("COUNT(*)").From(poolTable).PlaceholderFormat(sq.Dollar)
	countBuilder = db.ApplyListParams(countBuilder, types.Filter{Filter: filter.Filter}, allowedPoolFilters)
	countQuery, countArgs, err := countBuilder.ToSql()
	if err != nil {
		return nil, 0, fmt.Errorf("ошибка построения count-запроса: %w", err)
	}

	var total uint64
	if err := r.storage.QueryRow(ctx, countQuery, countArgs...).Scan(&total); err != nil {
		return nil, 0, fmt.Errorf("ошибка подсчёта allocation_pools: %w", err)
	}

	return list, total, nil
}

func (r *poolRepository) Update(ctx context.Context, id uint64, p entities.AllocationPool) error {
	query := fmt.Sprintf(`
		UPDATE %s
		SET name = $1, total_quantity = $2, authorized_designations = $3, updated_at = CURRENT_TIMESTAMP
		WHERE id = $4
	`, poolTable)

	result, err := r.storage.Exec(ctx, query, p.Name, p.TotalQuantity, p.AuthorizedDesignations, id)
	if err != nil {
		return fmt.Errorf("ошибка обновления allocation_pools: %w", err)
	}
	if result.RowsAffected() == 0 {
		return apperrors.ErrNotFound
	}
	return nil
}

func (r *poolRepository) Delete(ctx context.Context, id uint64) error {
	query := fmt.Sprintf(`DELETE FROM %s WHERE id = $1`, poolTable)

	result, err := r.storage.Exec(ctx, query, id)
	if err != nil {
		return fmt.Errorf("ошибка удаления allocation_pools: %w", err)
	}
	if result.RowsAffected() == 0 {
		return apperrors.ErrNotFound
	}
	return nil
}
