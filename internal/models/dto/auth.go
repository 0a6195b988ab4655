package dto

import "github.com/go-playground/validator/v10"

var validate = validator.New(validator.WithRequiredStructEnabled())

// RegisterRequest is the body of POST /api/users.
type RegisterRequest struct {
	Name     string `json:"name" validate:"required"`
	Email    string `json:"email" validate:"required"`
	Password string `json:"password" validate:"required"`
}

// Validate reports whether every required field is present and non-empty.
func (r RegisterRequest) Validate() error {
	return validate.Struct(r)
}

// LoginRequest is the body of POST /api/users/login.
type LoginRequest struct {
	Email    string `json:"email" validate:"required"`
	Password string `json:"password" validate:"required"`
}

// Validate reports whether both credentials are present.
func (r LoginRequest) Validate() error {
	return validate.Struct(r)
}

// RegisteredUser is the public echo of a freshly created user.
type RegisteredUser struct {
	ID    int64  `json:"id"`
	Name  string `json:"name"`
	Email string `json:"email"`
}

// RegisterResponse is returned with 201 after a successful registration.
type RegisterResponse struct {
	Message string         `json:"message"`
	User    RegisteredUser `json:"user"`
}

// LoginResponse carries the signed access token.
type LoginResponse struct {
	Message string `json:"message"`
	Token   string `json:"token"`
}
