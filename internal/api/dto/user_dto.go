package dto

import (
	"time"

	"github.com/spec-kit/account-service/internal/domain"
)

// CreateSuperuserRequest is accepted from the query string or a JSON body.
type CreateSuperuserRequest struct {
	Email         string `json:"email" query:"email" validate:"required,email"`
	Username      string `json:"username" query:"username" validate:"required,max=150"`
	PlainPassword string `json:"plain_password" query:"plain_password" validate:"required"`
}

// UserRegisterRequest payload for self-service signup.
type UserRegisterRequest struct {
	Email     string `json:"email" validate:"omitempty,email"`
	Username  string `json:"username" validate:"required,max=150"`
	FirstName string `json:"first_name" validate:"max=150"`
	LastName  string `json:"last_name" validate:"max=150"`
	Password  string `json:"password" validate:"required"`
}

// ToRegistration converts the payload into the domain signup value.
func (r UserRegisterRequest) ToRegistration() domain.Registration {
	return domain.Registration{
		Email:     r.Email,
		Username:  r.Username,
		FirstName: r.FirstName,
		LastName:  r.LastName,
		Password:  r.Password,
	}
}

// ChangePasswordRequest payload for PUT /users/change_password.
type ChangePasswordRequest struct {
	CurrentPassword string `json:"current_password" validate:"required"`
	NewPassword     string `json:"new_password" validate:"required"`
}

// UpdateUserRequest is a partial profile update; omitted fields stay unchanged.
type UpdateUserRequest struct {
	Email     *string `json:"email" validate:"omitempty,email"`
	Username  *string `json:"username" validate:"omitempty,max=150"`
	FirstName *string `json:"first_name" validate:"omitempty,max=150"`
	LastName  *string `json:"last_name" validate:"omitempty,max=150"`
}

// ToProfileUpdate converts the payload into the domain update.
func (r UpdateUserRequest) ToProfileUpdate() domain.ProfileUpdate {
	return domain.ProfileUpdate{
		Email:     r.Email,
		Username:  r.Username,
		FirstName: r.FirstName,
		LastName:  r.LastName,
	}
}

// UserLoginRequest payload for POST /auth/token.
type UserLoginRequest struct {
	Username string `json:"username" form:"username" validate:"required"`
	Password string `json:"password" form:"password" validate:"required"`
}

// AuthResponse standard response for auth endpoints.
type AuthResponse struct {
	Token     string    `json:"token"`
	TokenType string    `json:"token_type"`
	ExpiresAt time.Time `json:"expires_at"`
}

// UserResponse is the public view of an account.
type UserResponse struct {
	ID          int64     `json:"id"`
	Email       string    `json:"email,omitempty"`
	Username    string    `json:"username"`
	FirstName   string    `json:"first_name"`
	LastName    string    `json:"last_name"`
	IsSuperuser bool      `json:"is_superuser"`
	Roles       []string  `json:"roles"`
	CreatedAt   time.Time `json:"created_at"`
	UpdatedAt   time.Time `json:"updated_at"`
}

// NewUserResponse projects u without its password hash.
func NewUserResponse(u *domain.User) UserResponse {
	roles := u.Roles
	if roles == nil {
		roles = []string{}
	}
	return UserResponse{
		ID:          u.ID,
		Email:       u.Email,
		Username:    u.Username,
		FirstName:   u.FirstName,
		LastName:    u.LastName,
		IsSuperuser: u.IsSuperuser,
		Roles:       roles,
		CreatedAt:   u.CreatedAt,
		UpdatedAt:   u.UpdatedAt,
	}
}
