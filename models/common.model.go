package models

const StatusSuccess = "Success"

// APIResponse is the envelope every JSON endpoint answers with. Clients look
// for the presence of Error; Status is "Success" otherwise.
type APIResponse struct {
	Status string      `json:"Status,omitempty"`
	Error  string      `json:"Error,omitempty"`
	Data   interface{} `json:"data,omitempty"`
	Meta   interface{} `json:"meta,omitempty"`
}

// PaginationMeta represents pagination metadata
type PaginationMeta struct {
	CurrentPage int   `json:"current_page"`
	PerPage     int   `json:"per_page"`
	Total       int64 `json:"total"`
	TotalPages  int   `json:"total_pages"`
	HasNext     bool  `json:"has_next"`
	HasPrevious bool  `json:"has_previous"`
}

// SuccessResponse creates a standardized success response
func SuccessResponse(data interface{}, meta interface{}) APIResponse {
	return APIResponse{
		Status: StatusSuccess,
		Data:   data,
		Meta:   meta,
	}
}

// ErrorResponse creates a standardized error response
func ErrorResponse(message string) APIResponse {
	return APIResponse{
		Error: message,
	}
}

// NewPaginationMeta creates pagination metadata
func NewPaginationMeta(page, limit int, total int64) PaginationMeta {
	if limit <= 0 {
		limit = 1
	}
	totalPages := int((total + int64(limit) - 1) / int64(limit))
	return PaginationMeta{
		CurrentPage: page,
		PerPage:     limit,
		Total:       total,
		TotalPages:  totalPages,
		HasNext:     page < totalPages,
		HasPrevious: page > 1,
	}
}
