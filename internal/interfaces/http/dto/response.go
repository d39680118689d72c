package dto

// Response is the envelope every gateway endpoint returns. Exactly one of
// Data or Error is set; list endpoints also attach cursor Meta.
type Response struct {
	Success bool       `json:"success"`
	Data    any        `json:"data,omitempty"`
	Error   *ErrorInfo `json:"error,omitempty"`
	Meta    *Meta      `json:"meta,omitempty"`
}

// ErrorInfo is the client-facing error: a stable machine-readable code, a
// message safe to show end users, and the request ID for support tickets.
type ErrorInfo struct {
	Code      string             `json:"code"`
	Message   string             `json:"message"`
	RequestID string             `json:"request_id,omitempty"`
	Details   []ValidationDetail `json:"details,omitempty"`
}

// ValidationDetail points at one invalid input field.
type ValidationDetail struct {
	Field   string `json:"field"`
	Message string `json:"message"`
}

// Meta carries cursor pagination state. Shopify pages with opaque cursors,
// so there are no totals or page numbers to report.
type Meta struct {
	Count       int    `json:"count"`
	HasNextPage bool   `json:"has_next_page"`
	EndCursor   string `json:"end_cursor,omitempty"`
}

// NewSuccessResponse wraps data in a success envelope.
func NewSuccessResponse(data any) Response {
	return Response{Success: true, Data: data}
}

// NewSuccessResponseWithPage wraps a page of data with its cursor meta.
func NewSuccessResponseWithPage(data any, count int, hasNextPage bool, endCursor string) Response {
	return Response{
		Success: true,
		Data:    data,
		Meta:    &Meta{Count: count, HasNextPage: hasNextPage, EndCursor: endCursor},
	}
}

// NewErrorResponse builds an error envelope without request correlation.
// Prefer NewErrorResponseWithRequestID inside request handlers.
func NewErrorResponse(code, message string) Response {
	return Response{Success: false, Error: &ErrorInfo{Code: code, Message: message}}
}

// NewErrorResponseWithRequestID builds an error envelope carrying the
// request ID so clients can reference it when reporting problems.
func NewErrorResponseWithRequestID(code, message, requestID string) Response {
	return Response{
		Success: false,
		Error:   &ErrorInfo{Code: code, Message: message, RequestID: requestID},
	}
}

// NewValidationErrorResponse builds a VALIDATION_ERROR envelope with
// per-field details.
func NewValidationErrorResponse(message, requestID string, details []ValidationDetail) Response {
	return Response{
		Success: false,
		Error: &ErrorInfo{
			Code:      ErrCodeValidation,
			Message:   message,
			RequestID: requestID,
			Details:   details,
		},
	}
}

// PageRequest holds the cursor pagination query parameters list endpoints
// accept. First is capped at Shopify's page-size ceiling.
type PageRequest struct {
	First int    `form:"first" binding:"omitempty,min=1,max=250"`
	After string `form:"after"`
}
