package errors

import (
	"github.com/cockroachdb/errors"
)

// ErrorDetail is the per-error payload in an API error response.
type ErrorDetail struct {
	Message string         `json:"message"`
	Details map[string]any `json:"details,omitempty"`
}

// ErrorResponse is the JSON body rendered for any failed request.
type ErrorResponse struct {
	Success bool         `json:"success"`
	Error   *ErrorDetail `json:"error"`
}

// NewErrorResponse converts any error into the canonical response shape.
// InternalError values expose their hint and reportable details; everything
// else is rendered with a generic message to avoid leaking internals.
func NewErrorResponse(err error) *ErrorResponse {
	if err == nil {
		return nil
	}

	var ie *InternalError
	if errors.As(err, &ie) {
		return &ErrorResponse{
			Success: false,
			Error: &ErrorDetail{
				Message: ie.Hint(),
				Details: ie.ReportableDetails(),
			},
		}
	}

	return &ErrorResponse{
		Success: false,
		Error:   &ErrorDetail{Message: err.Error()},
	}
}
