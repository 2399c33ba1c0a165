package contextkeys

type contextKey string

const (
	// UserIDKey - идентификатор аутентифицированного пользователя.
	// Кладётся в контекст внешним слоем авторизации.
	UserIDKey contextKey = "UserID"

	// DesignationKey - должность/классификация пользователя,
	// по ней проверяется допуск к пулам оборудования.
	DesignationKey contextKey = "Designation"
)
