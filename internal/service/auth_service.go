package service

import (
	"fmt"
	"log"
	"strings"

	"github.com/quizbattle/quizbattle-api/internal/domain/entity"
	"github.com/quizbattle/quizbattle-api/internal/domain/repository"
	apperrors "github.com/quizbattle/quizbattle-api/internal/pkg/errors"
	"github.com/quizbattle/quizbattle-api/pkg/auth"
)

// AuthService отвечает за регистрацию, вход и выдачу сессионных токенов.
// Пароли хешируются bcrypt-хуком сущности User при сохранении.
type AuthService struct {
	users repository.UserRepository
	jwt   *auth.JWTService
}

// NewAuthService создает новый сервис аутентификации.
func NewAuthService(users repository.UserRepository, jwt *auth.JWTService) *AuthService {
	return &AuthService{
		users: users,
		jwt:   jwt,
	}
}

// Register создает пользователя и возвращает его вместе с сессионным токеном.
func (s *AuthService) Register(username, password string) (*entity.User, string, error) {
	username = strings.TrimSpace(username)
	if l := len([]rune(username)); l < 3 || l > 50 {
		return nil, "", fmt.Errorf("%w: username must be 3-50 characters", apperrors.ErrValidation)
	}
	if l := len(password); l < 6 || l > 128 {
		return nil, "", fmt.Errorf("%w: password must be 6-128 characters", apperrors.ErrValidation)
	}

	user := &entity.User{
		Username: username,
		Password: password,
	}
	if err := s.users.Create(user); err != nil {
		return nil, "", err
	}

	token, err := s.jwt.GenerateSessionToken(user.ID)
	if err != nil {
		return nil, "", err
	}

	log.Printf("[Auth] User %q registered (id=%d)", username, user.ID)
	return user, token, nil
}

// Login проверяет учетные данные и возвращает пользователя с токеном.
// Неизвестное имя и неверный пароль неразличимы для клиента.
func (s *AuthService) Login(username, password string) (*entity.User, string, error) {
	user, err := s.users.GetByUsername(strings.TrimSpace(username))
	if err != nil {
		return nil, "", fmt.Errorf("%w: invalid username or password", apperrors.ErrUnauthorized)
	}
	if !user.CheckPassword(password) {
		return nil, "", fmt.Errorf("%w: invalid username or password", apperrors.ErrUnauthorized)
	}

	token, err := s.jwt.GenerateSessionToken(user.ID)
	if err != nil {
		return nil, "", err
	}

	log.Printf("[Auth] User %q logged in (id=%d)", user.Username, user.ID)
	return user, token, nil
}

// GetUser возвращает пользователя по ID.
func (s *AuthService) GetUser(id uint) (*entity.User, error) {
	return s.users.GetByID(id)
}
