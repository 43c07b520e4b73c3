package models

import "time"

// ErrorResponse is written by middleware that aborts a request before it
// reaches a controller, such as failed authentication or a recovered panic.
type ErrorResponse struct {
	Error     string                 `json:"error"`
	Message   string                 `json:"message"`
	Code      string                 `json:"code"`
	RequestID string                 `json:"request_id"`
	Details   map[string]interface{} `json:"details,omitempty"`
	Timestamp time.Time              `json:"timestamp"`
}

func NewErrorResponse(errorType, message, code, requestID string) *ErrorResponse {
	return &ErrorResponse{
		Error:     errorType,
		Message:   message,
		Code:      code,
		RequestID: requestID,
		Timestamp: time.Now().UTC(),
	}
}

// WithDetails adds a detail entry to the error response
func (e *ErrorResponse) WithDetails(key string, value interface{}) *ErrorResponse {
	if e.Details == nil {
		e.Details = make(map[string]interface{})
	}
	e.Details[key] = value
	return e
}
