package dto

// RegisterRequest — тело POST /auth/register
type RegisterRequest struct {
	Username string `json:"username" binding:"required,min=3,max=50"`
	Password string `json:"password" binding:"required,min=6,max=128"`
}

// LoginRequest — тело POST /auth/login
type LoginRequest struct {
	Username string `json:"username" binding:"required"`
	Password string `json:"password" binding:"required"`
}

// UserResponse — пользователь в ответах auth endpoints
type UserResponse struct {
	UserID   uint   `json:"user_id"`
	Username string `json:"username"`
}
