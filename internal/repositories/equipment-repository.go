package repositories

import (
	"context"
	"errors"
	"fmt"
	"time"

	sq "github.com/Masterminds/squirrel"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/jackc/pgx/v5/pgxpool"
	"go.uber.org/zap"

	"custody-system/internal/entities"
	db "custody-system/internal/infrastructure/bd"
	apperrors "custody-system/pkg/errors"
	"custody-system/pkg/types"
)

const (
	equipmentTable  = "equipments"
	equipmentFields = `id, name, category, model, serial_number, manufacturer, purchase_date, cost, condition, status, location, holder_id, issued_date, expected_return_date, added_by, last_modified_by, created_at, updated_at`
)

// allowedEquipmentFilters - БЕЛЫЙ СПИСОК для фильтрации и сортировки.
var allowedEquipmentFilters = map[string]string{
	"id":        "id",
	"name":      "name",
	"category":  "category",
	"model":     "model",
	"status":    "status",
	"condition": "condition",
	"location":  "location",
	"holder_id": "holder_id",
}

type EquipmentRepositoryInterface interface {
	Create(ctx context.Context, e entities.Equipment) (uint64, error)
	FindByID(ctx context.Context, q Querier, id uint64) (*entities.Equipment, error)
	GetAll(ctx context.Context, filter types.Filter) ([]*entities.Equipment, uint64, error)
	Update(ctx context.Context, q Querier, id uint64, e entities.Equipment) error
	Delete(ctx context.Context, id uint64) error

	// Охраняемые переходы статуса. Предусловие и запись нового состояния
	// выполняются одним атомарным UPDATE (compare-and-commit).
	IssueInTx(ctx context.Context, q Querier, id uint64, holderID int64, issuedAt time.Time, expectedReturn time.Time, actorID int64) error
	ReturnInTx(ctx context.Context, q Querier, id uint64, actorID int64) error
	TransitionStatusInTx(ctx context.Context, q Querier, id uint64, from, to entities.EquipmentStatus, actorID int64) error

	// PickAvailableForUpdateInTx выбирает одну доступную единицу пула и блокирует
	// её строку до конца транзакции (FOR UPDATE SKIP LOCKED).
	PickAvailableForUpdateInTx(ctx context.Context, tx pgx.Tx, category entities.EquipmentCategory, model string) (uint64, error)

	CountByStatus(ctx context.Context, q Querier, category entities.EquipmentCategory, model string, status entities.EquipmentStatus) (int, error)

	AppendMaintenanceInTx(ctx context.Context, q Querier, rec entities.MaintenanceRecord) error
	GetMaintenanceLog(ctx context.Context, equipmentID uint64) ([]entities.MaintenanceRecord, error)
}

type equipmentRepository struct {
	storage *pgxpool.Pool
	logger  *zap.Logger
}

func NewEquipmentRepository(storage *pgxpool.Pool, logger *zap.Logger) EquipmentRepositoryInterface {
	return &equipmentRepository{storage: storage, logger: logger}
}

func (r *equipmentRepository) getQuerier(q Querier) Querier {
	if q != nil {
		return q
	}
	return r.storage
}

// scanRow - универсальное сканирование одной единицы оборудования.
func scanEquipmentRow(row pgx.Row) (*entities.Equipment, error) {
	var e entities.Equipment
	err := row.Scan(
		&e.ID, &e.Name, &e.Category, &e.Model, &e.SerialNumber, &e.Manufacturer,
		&e.PurchaseDate, &e.Cost, &e.Condition, &e.Status, &e.Location,
		&e.HolderID, &e.IssuedDate, &e.ExpectedReturnDate,
		&e.AddedBy, &e.LastModifiedBy,
		&e.CreatedAt, &e.UpdatedAt,
	)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, apperrors.ErrNotFound
		}
		return nil, fmt.Errorf("ошибка сканирования equipments: %w", err)
	}
	return &e, nil
}

// isUniqueViolation - нарушение уникального ограничения (код 23505).
func isUniqueViolation(err error) bool {
	var pgErr *pgconn.PgError
	return errors.As(err, &pgErr) && pgErr.Code == "23505"
}

func (r *equipmentRepository) Create(ctx context.Context, e entities.Equipment) (uint64, error) {
	query := fmt.Sprintf(`
		INSERT INTO %s (name, category, model, serial_number, manufacturer, purchase_date, cost, condition, status, location, added_by)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11)
		RETURNING id
	`, equipmentTable)

	var id uint64
	err := r.storage.QueryRow(ctx, query,
		e.Name, e.Category, e.Model, e.SerialNumber, e.Manufacturer,
		e.PurchaseDate, e.Cost, e.Condition, e.Status, e.Location, e.AddedBy,
	).Scan(&id)
	if err != nil {
		if isUniqueViolation(err) {
			return 0, apperrors.NewConflictError("серийный номер %s уже зарегистрирован", e.SerialNumber)
		}
		return 0, fmt.Errorf("ошибка вставки equipments: %w", err)
	}
	return id, nil
}

func (r *equipmentRepository) FindByID(ctx context.Context, q Querier, id uint64) (*entities.Equipment, error) {
	query := fmt.Sprintf(`SELECT %s FROM %s WHERE id = $1`, equipmentFields, equipmentTable)
	return scanEquipmentRow(r.getQuerier(q).QueryRow(ctx, query, id))
}

func (r *equipmentRepository) GetAll(ctx context.Context, filter types.Filter) ([]*entities.Equipment, uint64, error) {
	builder := sq.Select(equipmentFields).From(equipmentTable).PlaceholderFormat(sq.Dollar)
	builder = db.ApplyListParams(builder, filter, allowedEquipmentFilters)

	query, args, err := builder.ToSql()
	if err != nil {
		return nil, 0, fmt.Errorf("ошибка построения запроса: %w", err)
	}

	rows, err := r.storage.Query(ctx, query, args...)
	if err != nil {
		return nil, 0, fmt.Errorf("ошибка выборки equipments: %w", err)
	}
	defer rows.Close()

	list := make([]*entities.Equipment, 0)
	for rows.Next() {
		e, err := scanEquipmentRow(rows)
		if err != nil {
			return nil, 0, err
		}
		list = append(list, e)
	}
	if err := rows.Err(); err != nil {
		return nil, 0, err
	}

	countBuilder := sq.Select("COUNT(*)").From(equipmentTable).PlaceholderFormat(sq.Dollar)
	countBuilder = db.ApplyListParams(countBuilder, types.Filter{Filter: filter.Filter}, allowedEquipmentFilters)
	countQuery, countArgs, err := countBuilder.ToSql()
	if err != nil {
		return nil, 0, fmt.Errorf("ошибка построения count-запроса: %w", err)
	}

	var total uint64
	if err := r.storage.QueryRow(ctx, countQuery, countArgs...).Scan(&total); err != nil {
		return nil, 0, fmt.Errorf("ошибка подсчёта equipments: %w", err)
	}

	return list, total, nil
}

// Update изменяет описательные поля. Поля владения и статус меняются
// только охраняемыми переходами.
func (r *equipmentRepository) Update(ctx context.Context, q Querier, id uint64, e entities.Equipment) error {
	query := fmt.Sprintf(`
		UPDATE %s
		SET name = $1, model = $2, manufacturer = $3, cost = $4, condition = $5, location = $6, last_modified_by = $7, updated_at = CURRENT_TIMESTAMP
		WHERE id = $8
	`, equipmentTable)

	result, err := r.getQuerier(q).Exec(ctx, query,
		e.Name, e.Model, e.Manufacturer, e.Cost, e.Condition, e.Location, e.LastModifiedBy, id,
	)
	if err != nil {
		return fmt.Errorf("ошибка обновления equipments: %w", err)
	}
	if result.RowsAffected() == 0 {
		return apperrors.ErrNotFound
	}
	return nil
}

// Delete удаляет оборудование. Выданное оборудование удалить нельзя:
// охранное условие status <> 'issued' входит в сам DELETE.
func (r *equipmentRepository) Delete(ctx context.Context, id uint64) error {
	query := fmt.Sprintf(`DELETE FROM %s WHERE id = $1 AND status <> $2`, equipmentTable)

	result, err := r.storage.Exec(ctx, query, id, entities.EquipmentStatusIssued)
	if err != nil {
		return fmt.Errorf("ошибка удаления equipments: %w", err)
	}
	if result.RowsAffected() == 0 {
		if _, ferr := r.FindByID(ctx, nil, id); ferr != nil {
			return ferr
		}
		return apperrors.NewConflictError("оборудование %d выдано и не может быть удалено", id)
	}
	return nil
}

// IssueInTx - атомарный переход available -> issued с заполнением блока владения.
// Из двух конкурентных вызовов ровно один изменит строку.
func (r *equipmentRepository) IssueInTx(ctx context.Context, q Querier, id uint64, holderID int64, issuedAt time.Time, expectedReturn time.Time, actorID int64) error {
	query := fmt.Sprintf(`
		UPDATE %s
		SET status = $1, holder_id = $2, issued_date = $3, expected_return_date = $4, last_modified_by = $5, updated_at = CURRENT_TIMESTAMP
		WHERE id = $6 AND status = $7
	`, equipmentTable)

	result, err := r.getQuerier(q).Exec(ctx, query,
		entities.EquipmentStatusIssued, holderID, issuedAt, expectedReturn, actorID,
		id, entities.EquipmentStatusAvailable,
	)
	if err != nil {
		return fmt.Errorf("ошибка выдачи оборудования: %w", err)
	}
	if result.RowsAffected() == 0 {
		return r.transitionFailure(ctx, q, id, entities.EquipmentStatusAvailable)
	}
	return nil
}

// ReturnInTx - атомарный переход issued -> available с очисткой блока владения.
func (r *equipmentRepository) ReturnInTx(ctx context.Context, q Querier, id uint64, actorID int64) error {
	query := fmt.Sprintf(`
		UPDATE %s
		SET status = $1, holder_id = NULL, issued_date = NULL, expected_return_date = NULL, last_modified_by = $2, updated_at = CURRENT_TIMESTAMP
		WHERE id = $3 AND status = $4
	`, equipmentTable)

	result, err := r.getQuerier(q).Exec(ctx, query,
		entities.EquipmentStatusAvailable, actorID, id, entities.EquipmentStatusIssued,
	)
	if err != nil {
		return fmt.Errorf("ошибка возврата оборудования: %w", err)
	}
	if result.RowsAffected() == 0 {
		return r.transitionFailure(ctx, q, id, entities.EquipmentStatusIssued)
	}
	return nil
}

// TransitionStatusInTx - охраняемый переход между статусами без блока владения
// (обслуживание, списание).
func (r *equipmentRepository) TransitionStatusInTx(ctx context.Context, q Querier, id uint64, from, to entities.EquipmentStatus, actorID int64) error {
	query := fmt.Sprintf(`
		UPDATE %s
		SET status = $1, last_modified_by = $2, updated_at = CURRENT_TIMESTAMP
		WHERE id = $3 AND status = $4
	`, equipmentTable)

	result, err := r.getQuerier(q).Exec(ctx, query, to, actorID, id, from)
	if err != nil {
		return fmt.Errorf("ошибка перехода статуса оборудования: %w", err)
	}
	if result.RowsAffected() == 0 {
		return r.transitionFailure(ctx, q, id, from)
	}
	return nil
}

// transitionFailure различает отсутствие записи и нарушение предусловия.
func (r *equipmentRepository) transitionFailure(ctx context.Context, q Querier, id uint64, expected entities.EquipmentStatus) error {
	e, err := r.FindByID(ctx, q, id)
	if err != nil {
		return err
	}
	return apperrors.NewInvalidTransitionError(
		"оборудование %d в статусе %s, ожидался %s", id, e.Status, expected)
}

func (r *equipmentRepository) PickAvailableForUpdateInTx(ctx context.Context, tx pgx.Tx, category entities.EquipmentCategory, model string) (uint64, error) {
	query := fmt.Sprintf(`
		SELECT id FROM %s
		WHERE category = $1 AND model = $2 AND status = $3
		ORDER BY id
		LIMIT 1
		FOR UPDATE SKIP LOCKED
	`, equipmentTable)

	var id uint64
	err := tx.QueryRow(ctx, query, category, model, entities.EquipmentStatusAvailable).Scan(&id)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return 0, apperrors.ErrUnavailable
		}
		return 0, fmt.Errorf("ошибка выбора единицы из пула: %w", err)
	}
	return id, nil
}

func (r *equipmentRepository) CountByStatus(ctx context.Context, q Querier, category entities.EquipmentCategory, model string, status entities.EquipmentStatus) (int, error) {
	query := fmt.Sprintf(`SELECT COUNT(*) FROM %s WHERE category = $1 AND model = $2 AND status = $3`, equipmentTable)

	var count int
	if err := r.getQuerier(q).QueryRow(ctx, query, category, model, status).Scan(&count); err != nil {
		return 0, fmt.Errorf("ошибка подсчёта оборудования: %w", err)
	}
	return count, nil
}

func (r *equipmentRepository) AppendMaintenanceInTx(ctx context.Context, q Querier, rec entities.MaintenanceRecord) error {
	query := `
		INSERT INTO equipment_maintenance_log (equipment_id, description, performed_by, cost)
		VALUES ($1, $2, $3, $4)
	`
	if _, err := r.getQuerier(q).Exec(ctx, query, rec.EquipmentID, rec.Description, rec.PerformedBy, rec.Cost); err != nil {
		return fmt.Errorf("ошибка записи в журнал обслуживания: %w", err)
	}
	return nil
}

func (r *equipmentRepository) GetMaintenanceLog(ctx context.Context, equipmentID uint64) ([]entities.MaintenanceRecord, error) {
	query := `
		SELECT id, equipment_id, description, performed_by, cost, created_at
		FROM equipment_maintenance_log
		WHERE equipment_id = $1
		ORDER BY created_at, id
	`
	rows, err := r.storage.Query(ctx, query, equipmentID)
	if err != nil {
		return nil, fmt.Errorf("ошибка выборки журнала обслуживания: %w", err)
	}
	defer rows.Close()

	log := make([]entities.MaintenanceRecord, 0)
	for rows.Next() {
		var rec entities.MaintenanceRecord
		if err := rows.Scan(&rec.ID, &rec.EquipmentID, &rec.Description, &rec.PerformedBy, &rec.Cost, &rec.CreatedAt); err != nil {
			return nil, fmt.Errorf("ошибка сканирования журнала обслуживания: %w", err)
		}
		log = append(log, rec)
	}
	return log, rows.Err()
}
