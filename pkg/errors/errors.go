package errors

import "fmt"

// Сентинели предметной области. Все ошибки сервисов и репозиториев
// оборачивают один из них, чтобы вызывающий код различал их через errors.Is.
var (
	// Общие
	ErrNotFound = fmt.Errorf("запись не найдена")

	// Машина состояний
	ErrInvalidTransition = fmt.Errorf("недопустимый переход состояния")

	// Конфликты данных (дубликат серийного номера, повторная pending-заявка,
	// удаление выданного оборудования)
	ErrConflict = fmt.Errorf("конфликт данных")

	// Доступ к пулу
	ErrUnauthorized = fmt.Errorf("должность не допущена к пулу")

	// Ёмкость пула исчерпана на момент фиксации
	ErrUnavailable = fmt.Errorf("нет доступного оборудования")

	// Контекст
	ErrUserIDNotFoundInContext = fmt.Errorf("UserID не найден в контексте запроса")
	ErrInvalidUserID           = fmt.Errorf("недопустимый UserID")
)

// ValidationError - некорректные входные данные (неизвестная категория,
// отсутствующая причина и т.п.).
type ValidationError struct {
	Message string
}

func (e *ValidationError) Error() string { return e.Message }

func NewValidationError(format string, args ...interface{}) error {
	return &ValidationError{Message: fmt.Sprintf(format, args...)}
}

// IsValidationError сообщает, является ли ошибка ошибкой валидации.
func IsValidationError(err error) bool {
	_, ok := err.(*ValidationError)
	return ok
}

// NewInvalidTransitionError оборачивает ErrInvalidTransition с контекстом перехода.
func NewInvalidTransitionError(format string, args ...interface{}) error {
	return fmt.Errorf("%w: %s", ErrInvalidTransition, fmt.Sprintf(format, args...))
}

// NewConflictError оборачивает ErrConflict с пояснением.
func NewConflictError(format string, args ...interface{}) error {
	return fmt.Errorf("%w: %s", ErrConflict, fmt.Sprintf(format, args...))
}
