package api

import "codalyzer-backend/analysis"

// Formas de request/response JSON da API pública.

type AnalyzeRequest struct {
	Code     string `json:"code"`
	Filename string `json:"filename"`
	Language string `json:"language"`
}

type AnalyzeResponse struct {
	Success bool             `json:"success"`
	Result  *analysis.Result `json:"result"`
	Model   string           `json:"model"`
}

type ErrorResponse struct {
	Success bool   `json:"success"`
	Error   string `json:"error"`
	Message string `json:"message,omitempty"`
}

type InitializeResponse struct {
	Success                 bool   `json:"success"`
	UserRequestsRemaining   int64  `json:"user_requests_remaining"`
	UserRequestsLimit       int64  `json:"user_requests_limit"`
	GlobalRequestsRemaining int64  `json:"global_requests_remaining"`
	GlobalRequestsLimit     int64  `json:"global_requests_limit"`
	ResetAt                 string `json:"reset_at"`
}

type HealthResponse struct {
	Status    string   `json:"status"`
	Version   string   `json:"version"`
	Model     string   `json:"model"`
	Timestamp string   `json:"timestamp"`
	Issues    []string `json:"issues,omitempty"`
}

type ShareResponse struct {
	Success   bool   `json:"success"`
	ShareID   string `json:"share_id"`
	ExpiresIn int    `json:"expires_in"`
}

type ShareResult struct {
	Success bool             `json:"success"`
	Result  *analysis.Result `json:"result"`
}
