package models

import "time"

// APIResponse is a generic API response wrapper
type APIResponse struct {
	Success bool        `json:"success"`
	Data    interface{} `json:"data,omitempty"`
	Error   string      `json:"error,omitempty"`
	Code    string      `json:"code,omitempty"`
	Errors  interface{} `json:"errors,omitempty"`
}

// NewSuccessResponse creates a success response
func NewSuccessResponse(data interface{}) APIResponse {
	return APIResponse{
		Success: true,
		Data:    data,
	}
}

// NewErrorResponse creates an error response
func NewErrorResponse(message string) APIResponse {
	return APIResponse{
		Success: false,
		Error:   message,
	}
}

// NewCodedErrorResponse creates an error response with a machine-readable code
func NewCodedErrorResponse(code, message string) APIResponse {
	return APIResponse{
		Success: false,
		Code:    code,
		Error:   message,
	}
}

// NewValidationErrorResponse creates a validation error response
func NewValidationErrorResponse(errors map[string]string) APIResponse {
	return APIResponse{
		Success: false,
		Code:    "VALIDATION_FAILED",
		Error:   "Validation failed",
		Errors:  errors,
	}
}

// BanDetails is returned when a banned user tries to sign in.
type BanDetails struct {
	Reason    string     `json:"reason"`
	Type      string     `json:"type"`
	ExpiresAt *time.Time `json:"expires_at,omitempty"`
}

// Page is a paginated list payload.
type Page[T any] struct {
	Items []T   `json:"items"`
	Total int64 `json:"total"`
	Page  int   `json:"page"`
	Limit int   `json:"limit"`
}

func NewPage[T any](items []T, total int64, page, limit int) Page[T] {
	if items == nil {
		items = []T{}
	}
	return Page[T]{Items: items, Total: total, Page: page, Limit: limit}
}

// UploadResponse is returned after a successful image upload.
type UploadResponse struct {
	Key string `json:"key"`
	URL string `json:"url"`
}

type AdminStats struct {
	UsersByRole         map[Role]int64 `json:"users_by_role"`
	Restaurants         int64          `json:"restaurants"`
	Reviews             int64          `json:"reviews"`
	HiddenReviews       int64          `json:"hidden_reviews"`
	PendingReports      int64          `json:"pending_reports"`
	PendingClaims       int64          `json:"pending_claims"`
	PendingApplications int64          `json:"pending_applications"`
}
