package dto

import "github.com/hongminglow/crm-backend/internal/models"

// UpdateUserRequest carries optional replacements; empty fields keep the stored value.
type UpdateUserRequest struct {
	Name     string `json:"name"`
	Email    string `json:"email"`
	Password string `json:"password"`
}

// ListUsersResponse is one page of users plus paging totals.
type ListUsersResponse struct {
	Total      int64         `json:"total"`
	Page       int           `json:"page"`
	TotalPages int64         `json:"totalPages"`
	Users      []models.User `json:"users"`
}

// UserResponse pairs a status message with the affected user.
type UserResponse struct {
	Message string      `json:"message"`
	User    models.User `json:"user"`
}

// MessageResponse is a bare status message.
type MessageResponse struct {
	Message string `json:"message"`
}
