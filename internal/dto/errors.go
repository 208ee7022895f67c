package dto

type ErrorResponse struct {
	Code    string `json:"code" example:"session_not_found"`
	Message string `json:"message" example:"watch session not found"`
	Details any    `json:"details,omitempty" swaggertype:"object"`
}
