package repositories

import (
	"context"
	"errors"
	"fmt"
	"time"

	sq "github.com/Masterminds/squirrel"
	"github.com/aarondl/null/v8"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
	"go.uber.org/zap"

	"custody-system/internal/entities"
	db "custody-system/internal/infrastructure/bd"
	apperrors "custody-system/pkg/errors"
	"custody-system/pkg/types"
)

const (
	requestTable  = "requests"
	requestFields = `id, request_number, requester_id, request_type, status, equipment_id, pool_id, priority, reason, expected_return_date, admin_notes, processed_by, processed_at, approved_at, completed_at, created_at, updated_at`
)

var allowedRequestFilters = map[string]string{
	"id":             "id",
	"request_number": "request_number",
	"requester_id":   "requester_id",
	"request_type":   "request_type",
	"status":         "status",
	"priority":       "priority",
	"equipment_id":   "equipment_id",
	"pool_id":        "pool_id",
}

type RequestRepositoryInterface interface {
	CreateInTx(ctx context.Context, q Querier, r entities.Request) (uint64, error)
	FindByID(ctx context.Context, q Querier, id uint64) (*entities.Request, error)
	// FindByIDForUpdateInTx блокирует строку заявки до конца транзакции.
	FindByIDForUpdateInTx(ctx context.Context, tx pgx.Tx, id uint64) (*entities.Request, error)
	GetAll(ctx context.Context, filter types.Filter) ([]*entities.Request, uint64, error)

	// Охраняемые переходы машины состояний заявки.
	ApproveInTx(ctx context.Context, q Querier, id uint64, adminID int64, notes null.String, now time.Time) error
	RejectInTx(ctx context.Context, q Querier, id uint64, adminID int64, reason string, now time.Time) error
	CancelInTx(ctx context.Context, q Querier, id uint64, requesterID int64, now time.Time) error
	CompleteInTx(ctx context.Context, q Querier, id uint64, adminID int64, notes null.String, equipmentID null.Int64, now time.Time) error

	HasPendingIssueRequest(ctx context.Context, q Querier, requesterID int64, equipmentID uint64) (bool, error)
	CountOpenPoolRequests(ctx context.Context, q Querier, poolID uint64) (int, error)

	AppendHistoryInTx(ctx context.Context, q Querier, h entities.RequestStatusHistory) error
	GetHistory(ctx context.Context, requestID uint64) ([]entities.RequestStatusHistory, error)
}

type requestRepository struct {
	storage *pgxpool.Pool
	logger  *zap.Logger
}

func NewRequestRepository(storage *pgxpool.Pool, logger *zap.Logger) RequestRepositoryInterface {
	return &requestRepository{storage: storage, logger: logger}
}

func (r *requestRepository) getQuerier(q Querier) Querier {
	if q != nil {
		return q
	}
	return r.storage
}

func scanRequestRow(row pgx.Row) (*entities.Request, error) {
	var req entities.Request
	err := row.Scan(
		&req.ID, &req.RequestNumber, &req.RequesterID, &req.RequestType, &req.Status,
		&req.EquipmentID, &req.PoolID, &req.Priority, &req.Reason,
		&req.ExpectedReturnDate, &req.AdminNotes,
		&req.ProcessedBy, &req.ProcessedAt, &req.ApprovedAt, &req.CompletedAt,
		&req.CreatedAt, &req.UpdatedAt,
	)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, apperrors.ErrNotFound
		}
		return nil, fmt.Errorf("ошибка сканирования requests: %w", err)
	}
	return &req, nil
}

func (r *requestRepository) CreateInTx(ctx context.Context, q Querier, req entities.Request) (uint64, error) {
	query := fmt.Sprintf(`
		INSERT INTO %s (request_number, requester_id, request_type, status, equipment_id, pool_id, priority, reason, expected_return_date)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9)
		RETURNING id
	`, requestTable)

	var id uint64
	err := r.getQuerier(q).QueryRow(ctx, query,
		req.RequestNumber, req.RequesterID, req.RequestType, req.Status,
		req.EquipmentID, req.PoolID, req.Priority, req.Reason, req.ExpectedReturnDate,
	).Scan(&id)
	if err != nil {
		if isUniqueViolation(err) {
			// Либо повторный номер заявки, либо дубликат pending-заявки на выдачу.
			return 0, apperrors.NewConflictError("заявка нарушает ограничение уникальности")
		}
		return 0, fmt.Errorf("ошибка вставки requests: %w", err)
	}
	return id, nil
}

func (r *requestRepository) FindByID(ctx context.Context, q Querier, id uint64) (*entities.Request, error) {
	query := fmt.Sprintf(`SELECT %s FROM %s WHERE id = $1`, requestFields, requestTable)
	return scanRequestRow(r.getQuerier(q).QueryRow(ctx, query, id))
}

func (r *requestRepository) FindByIDForUpdateInTx(ctx context.Context, tx pgx.Tx, id uint64) (*entities.Request, error) {
	query := fmt.Sprintf(`SELECT %s FROM %s WHERE id = $1 FOR UPDATE`, requestFields, requestTable)
	return scanRequestRow(tx.QueryRow(ctx, query, id))
}

func (r *requestRepository) GetAll(ctx context.Context, filter types.Filter) ([]*entities.Request, uint64, error) {
	builder := sq.Select(requestFields).From(requestTable).PlaceholderFormat(sq.Dollar)
	builder = db.ApplyListParams(builder, filter, allowedRequestFilters)

	query, args, err := builder.ToSql()
	if err != nil {
		return nil, 0, fmt.Errorf("ошибка построения запроса: %w", err)
	}

	rows, err := r.storage.Query(ctx, query, args...)
	if err != nil {
		return nil, 0, fmt.Errorf("ошибка выборки requests: %w", err)
	}
	defer rows.Close()

	list := make([]*entities.Request, 0)
	for rows.Next() {
		req, err := scanRequestRow(rows)
		if err != nil {
			return nil, 0, err
		}
		list = append(list, req)
	}
	if err := rows.Err(); err != nil {
		return nil, 0, err
	}

	countBuilder := sq.Select("COUNT(*)").From(requestTable).PlaceholderFormat(sq.Dollar)
	countBuilder = db.ApplyListParams(countBuilder, types.Filter{Filter: filter.Filter}, allowedRequestFilters)
	countQuery, countArgs, err := countBuilder.ToSql()
	if err != nil {
		return nil, 0, fmt.Errorf("ошибка построения count-запроса: %w", err)
	}

	var total uint64
	if err := r.storage.QueryRow(ctx, countQuery, countArgs...).Scan(&total); err != nil {
		return nil, 0, fmt.Errorf("ошибка подсчёта requests: %w", err)
	}

	return list, total, nil
}

// ApproveInTx - охраняемый переход pending -> approved.
func (r *requestRepository) ApproveInTx(ctx context.Context, q Querier, id uint64, adminID int64, notes null.String, now time.Time) error {
	query := fmt.Sprintf(`
		UPDATE %s
		SET status = $1, processed_by = $2, processed_at = $3, approved_at = $3, admin_notes = COALESCE($4, admin_notes), updated_at = CURRENT_TIMESTAMP
		WHERE id = $5 AND status = $6
	`, requestTable)

	result, err := r.getQuerier(q).Exec(ctx, query,
		entities.RequestStatusApproved, adminID, now, notes, id, entities.RequestStatusPending,
	)
	if err != nil {
		return fmt.Errorf("ошибка согласования заявки: %w", err)
	}
	if result.RowsAffected() == 0 {
		return r.transitionFailure(ctx, q, id, entities.RequestStatusPending)
	}
	return nil
}

// RejectInTx - охраняемый переход pending -> rejected.
func (r *requestRepository) RejectInTx(ctx context.Context, q Querier, id uint64, adminID int64, reason string, now time.Time) error {
	query := fmt.Sprintf(`
		UPDATE %s
		SET status = $1, processed_by = $2, processed_at = $3, admin_notes = $4, updated_at = CURRENT_TIMESTAMP
		WHERE id = $5 AND status = $6
	`, requestTable)

	result, err := r.getQuerier(q).Exec(ctx, query,
		entities.RequestStatusRejected, adminID, now, reason, id, entities.RequestStatusPending,
	)
	if err != nil {
		return fmt.Errorf("ошибка отклонения заявки: %w", err)
	}
	if result.RowsAffected() == 0 {
		return r.transitionFailure(ctx, q, id, entities.RequestStatusPending)
	}
	return nil
}

// CancelInTx - охраняемый переход pending -> cancelled. Отменить заявку
// может только её автор: requester_id входит в охранное условие.
func (r *requestRepository) CancelInTx(ctx context.Context, q Querier, id uint64, requesterID int64, now time.Time) error {
	query := fmt.Sprintf(`
		UPDATE %s
		SET status = $1, processed_at = $2, updated_at = CURRENT_TIMESTAMP
		WHERE id = $3 AND status = $4 AND requester_id = $5
	`, requestTable)

	result, err := r.getQuerier(q).Exec(ctx, query,
		entities.RequestStatusCancelled, now, id, entities.RequestStatusPending, requesterID,
	)
	if err != nil {
		return fmt.Errorf("ошибка отмены заявки: %w", err)
	}
	if result.RowsAffected() == 0 {
		req, ferr := r.FindByID(ctx, q, id)
		if ferr != nil {
			return ferr
		}
		if req.RequesterID != requesterID {
			return apperrors.ErrUnauthorized
		}
		return apperrors.NewInvalidTransitionError(
			"заявка %s в статусе %s, ожидался %s", req.RequestNumber, req.Status, entities.RequestStatusPending)
	}
	return nil
}

// CompleteInTx - охраняемый переход approved -> completed. Для заявок из пула
// equipmentID фиксирует назначенную единицу.
func (r *requestRepository) CompleteInTx(ctx context.Context, q Querier, id uint64, adminID int64, notes null.String, equipmentID null.Int64, now time.Time) error {
	query := fmt.Sprintf(`
		UPDATE %s
		SET status = $1, processed_by = $2, completed_at = $3, admin_notes = COALESCE($4, admin_notes), equipment_id = COALESCE($5, equipment_id), updated_at = CURRENT_TIMESTAMP
		WHERE id = $6 AND status = $7
	`, requestTable)

	result, err := r.getQuerier(q).Exec(ctx, query,
		entities.RequestStatusCompleted, adminID, now, notes, equipmentID, id, entities.RequestStatusApproved,
	)
	if err != nil {
		return fmt.Errorf("ошибка выполнения заявки: %w", err)
	}
	if result.RowsAffected() == 0 {
		return r.transitionFailure(ctx, q, id, entities.RequestStatusApproved)
	}
	return nil
}

func (r *requestRepository) transitionFailure(ctx context.Context, q Querier, id uint64, expected entities.RequestStatus) error {
	req, err := r.FindByID(ctx, q, id)
	if err != nil {
		return err
	}
	return apperrors.NewInvalidTransitionError(
		"заявка %s в статусе %s, ожидался %s", req.RequestNumber, req.Status, expected)
}

func (r *requestRepository) HasPendingIssueRequest(ctx context.Context, q Querier, requesterID int64, equipmentID uint64) (bool, error) {
	query := fmt.Sprintf(`
		SELECT EXISTS (
			SELECT 1 FROM %s
			WHERE requester_id = $1 AND equipment_id = $2 AND request_type = $3 AND status = $4
		)
	`, requestTable)

	var exists bool
	err := r.getQuerier(q).QueryRow(ctx, query,
		requesterID, equipmentID, entities.RequestTypeIssue, entities.RequestStatusPending,
	).Scan(&exists)
	if err != nil {
		return false, fmt.Errorf("ошибка проверки дубликата заявки: %w", err)
	}
	return exists, nil
}

// CountOpenPoolRequests считает незавершённые (pending/approved) заявки на пул.
func (r *requestRepository) CountOpenPoolRequests(ctx context.Context, q Querier, poolID uint64) (int, error) {
	query := fmt.Sprintf(`
		SELECT COUNT(*) FROM %s
		WHERE pool_id = $1 AND status IN ($2, $3)
	`, requestTable)

	var count int
	err := r.getQuerier(q).QueryRow(ctx, query,
		poolID, entities.RequestStatusPending, entities.RequestStatusApproved,
	).Scan(&count)
	if err != nil {
		return 0, fmt.Errorf("ошибка подсчёта открытых заявок пула: %w", err)
	}
	return count, nil
}

func (r *requestRepository) AppendHistoryInTx(ctx context.Context, q Querier, h entities.RequestStatusHistory) error {
	query := `
		INSERT INTO request_status_history (request_id, from_status, to_status, changed_by, note)
		VALUES ($1, $2, $3, $4, $5)
	`
	if _, err := r.getQuerier(q).Exec(ctx, query, h.RequestID, h.FromStatus, h.ToStatus, h.ChangedBy, h.Note); err != nil {
		return fmt.Errorf("ошибка записи истории заявки: %w", err)
	}
	return nil
}

func (r *requestRepository) GetHistory(ctx context.Context, requestID uint64) ([]entities.RequestStatusHistory, error) {
	query := `
		SELECT id, request_id, from_status, to_status, changed_by, note, created_at
		FROM request_status_history
		WHERE request_id = $1
		ORDER BY created_at, id
	`
	rows, err := r.storage.Query(ctx, query, requestID)
	if err != nil {
		return nil, fmt.Errorf("ошибка выборки истории заявки: %w", err)
	}
	defer rows.Close()

	history := make([]entities.RequestStatusHistory, 0)
	for rows.Next() {
		var h entities.RequestStatusHistory
		if err := rows.Scan(&h.ID, &h.RequestID, &h.FromStatus, &h.ToStatus, &h.ChangedBy, &h.Note, &h.CreatedAt); err != nil {
			return nil, fmt.Errorf("ошибка сканирования истории заявки: %w", err)
		}
		history = append(history, h)
	}
	return history, rows.Err()
}
