package transport

import "github.com/Skotchmaster/session_auth/internal/models"

type LoginRequest struct {
	Email    string `json:"email"`
	Password string `json:"password"`
}

// User is the public view of models.User; the password hash never leaves the service.
type User struct {
	ID    uint   `json:"id"`
	Email string `json:"email"`
	Role  string `json:"role"`
	Name  string `json:"name"`
}

type LoginResponse struct {
	AccessToken string `json:"accessToken"`
	User        User   `json:"user"`
}

type RefreshResponse struct {
	AccessToken string `json:"accessToken"`
}

type MessageResponse struct {
	Message string `json:"message"`
}

func UserFromModel(u *models.User) User {
	return User{ID: u.ID, Email: u.Email, Role: u.Role, Name: u.Name}
}
