package errors

import "errors"

// Общие ошибки приложения
var (
	// ErrNotFound используется, когда запись или ресурс не найдены.
	ErrNotFound = errors.New("record not found")

	// ErrUnauthorized используется для ошибок аутентификации (неверный или отсутствующий токен).
	ErrUnauthorized = errors.New("unauthorized")

	// ErrForbidden используется, когда у игрока недостаточно прав для действия
	// (не хост, не капитан, чужая команда).
	ErrForbidden = errors.New("forbidden")

	// ErrValidation используется для ошибок валидации входных данных.
	ErrValidation = errors.New("validation failed")

	// ErrExpiredToken используется, когда токен (сессионный или игровой) истек.
	ErrExpiredToken = errors.New("token is expired")

	// ErrConflict используется для конфликтов состояния (например, попытка
	// присоединиться к уже начавшейся игре или занятое имя в комнате).
	ErrConflict = errors.New("resource state conflict")
)
