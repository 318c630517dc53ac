package auth

import (
	"errors"
	"fmt"
	"log"
	"strings"
	"time"

	"github.com/golang-jwt/jwt/v4"
	"github.com/google/uuid"

	apperrors "github.com/quizbattle/quizbattle-api/internal/pkg/errors"
)

// Назначения токенов
const (
	usageSession = "session"
	usagePlayer  = "player"
)

// SessionClaims содержит поля сессионного токена пользователя
type SessionClaims struct {
	UserID uint   `json:"user_id"`
	Usage  string `json:"usage"`
	jwt.RegisteredClaims
}

// PlayerClaims содержит поля игрового токена, привязанного к (pin, player_id)
type PlayerClaims struct {
	PIN      string `json:"pin"`
	PlayerID uint   `json:"pid"`
	Usage    string `json:"usage"`
	jwt.RegisteredClaims
}

// JWTService выпускает и проверяет сессионные и игровые токены (HS256)
type JWTService struct {
	secret         []byte
	sessionTTL     time.Duration
	playerTokenTTL time.Duration
}

// NewJWTService создает новый сервис JWT
func NewJWTService(secret string, sessionTTL, playerTokenTTL time.Duration) (*JWTService, error) {
	if secret == "" {
		return nil, fmt.Errorf("JWT secret is required")
	}
	if sessionTTL <= 0 {
		sessionTTL = 168 * time.Hour
	}
	if playerTokenTTL <= 0 {
		playerTokenTTL = 8 * time.Hour
	}
	return &JWTService{
		secret:         []byte(secret),
		sessionTTL:     sessionTTL,
		playerTokenTTL: playerTokenTTL,
	}, nil
}

// GenerateSessionToken создает сессионный токен пользователя
func (s *JWTService) GenerateSessionToken(userID uint) (string, error) {
	now := time.Now()
	claims := &SessionClaims{
		UserID: userID,
		Usage:  usageSession,
		RegisteredClaims: jwt.RegisteredClaims{
			ID:        uuid.NewString(),
			ExpiresAt: jwt.NewNumericDate(now.Add(s.sessionTTL)),
			IssuedAt:  jwt.NewNumericDate(now),
			Issuer:    "quizbattle-api",
			Subject:   fmt.Sprintf("%d", userID),
			Audience:  jwt.ClaimStrings{"quizbattle-user"},
		},
	}

	token := jwt.NewWithClaims(jwt.SigningMethodHS256, claims)
	tokenString, err := token.SignedString(s.secret)
	if err != nil {
		log.Printf("[JWT] Failed to sign session token for user ID=%d: %v", userID, err)
		return "", err
	}
	return tokenString, nil
}

// ParseSessionToken проверяет сессионный токен и возвращает его claims
func (s *JWTService) ParseSessionToken(tokenString string) (*SessionClaims, error) {
	claims := &SessionClaims{}
	token, err := jwt.ParseWithClaims(tokenString, claims, s.keyFunc)
	if err != nil {
		return nil, translateTokenError(err)
	}
	if !token.Valid {
		return nil, apperrors.ErrUnauthorized
	}
	if claims.Usage != usageSession {
		return nil, fmt.Errorf("%w: not a session token", apperrors.ErrUnauthorized)
	}
	return claims, nil
}

// GeneratePlayerToken создает игровой токен для подключения к комнате.
// PIN нормализуется к верхнему регистру.
func (s *JWTService) GeneratePlayerToken(pin string, playerID uint) (string, error) {
	now := time.Now()
	claims := &PlayerClaims{
		PIN:      strings.ToUpper(pin),
		PlayerID: playerID,
		Usage:    usagePlayer,
		RegisteredClaims: jwt.RegisteredClaims{
			ID:        uuid.NewString(),
			ExpiresAt: jwt.NewNumericDate(now.Add(s.playerTokenTTL)),
			IssuedAt:  jwt.NewNumericDate(now),
			Issuer:    "quizbattle-api",
			Subject:   fmt.Sprintf("%d", playerID),
			Audience:  jwt.ClaimStrings{"quizbattle-player"},
		},
	}

	token := jwt.NewWithClaims(jwt.SigningMethodHS256, claims)
	tokenString, err := token.SignedString(s.secret)
	if err != nil {
		log.Printf("[JWT] Failed to sign player token for pin=%s player ID=%d: %v", claims.PIN, playerID, err)
		return "", err
	}
	return tokenString, nil
}

// VerifyPlayerToken проверяет игровой токен и его привязку к (pin, playerID).
// Невалидный или истекший токен — ErrUnauthorized/ErrExpiredToken,
// чужая комната или чужой игрок — ErrForbidden.
func (s *JWTService) VerifyPlayerToken(tokenString, pin string, playerID uint) (*PlayerClaims, error) {
	claims := &PlayerClaims{}
	token, err := jwt.ParseWithClaims(tokenString, claims, s.keyFunc)
	if err != nil {
		return nil, translateTokenError(err)
	}
	if !token.Valid {
		return nil, apperrors.ErrUnauthorized
	}
	if claims.Usage != usagePlayer {
		return nil, fmt.Errorf("%w: not a player token", apperrors.ErrUnauthorized)
	}
	if claims.PIN != strings.ToUpper(pin) || claims.PlayerID != playerID {
		return nil, fmt.Errorf("%w: token is bound to another room or player", apperrors.ErrForbidden)
	}
	return claims, nil
}

// keyFunc проверяет метод подписи и возвращает секрет
func (s *JWTService) keyFunc(token *jwt.Token) (interface{}, error) {
	if _, ok := token.Method.(*jwt.SigningMethodHMAC); !ok {
		return nil, fmt.Errorf("unexpected signing method: %v", token.Header["alg"])
	}
	return s.secret, nil
}

// translateTokenError переводит ошибки jwt в ошибки приложения
func translateTokenError(err error) error {
	var ve *jwt.ValidationError
	if errors.As(err, &ve) {
		if ve.Errors&jwt.ValidationErrorExpired != 0 {
			return apperrors.ErrExpiredToken
		}
	}
	return fmt.Errorf("%w: %v", apperrors.ErrUnauthorized, err)
}
