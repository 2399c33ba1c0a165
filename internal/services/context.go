package services

import (
	"context"

	"custody-system/pkg/contextkeys"
	apperrors "custody-system/pkg/errors"
)

// callerID извлекает идентификатор аутентифицированного пользователя.
// Кладётся в контекст внешним слоем авторизации.
func callerID(ctx context.Context) (int64, error) {
	id, ok := ctx.Value(contextkeys.UserIDKey).(int64)
	if !ok || id == 0 {
		return 0, apperrors.ErrInvalidUserID
	}
	return id, nil
}

// callerDesignation извлекает должность пользователя для проверки допуска к пулам.
func callerDesignation(ctx context.Context) (string, error) {
	d, ok := ctx.Value(contextkeys.DesignationKey).(string)
	if !ok || d == "" {
		return "", apperrors.ErrUserIDNotFoundInContext
	}
	return d, nil
}
