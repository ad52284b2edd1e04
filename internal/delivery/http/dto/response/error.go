package response

type ErrorResponse struct {
	Success bool             `json:"success"`
	Error   string           `json:"error"`
	Code    string           `json:"code"`
	Details []ValidationItem `json:"details,omitempty"`
	// OrderID is set when an order exists despite the error, e.g. an
	// unconfirmed submission.
	OrderID string `json:"order_id,omitempty"`
}

type ValidationItem struct {
	Field   string `json:"field"`
	Message string `json:"message"`
}
