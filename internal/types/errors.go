package types

// Error codes returned by the diagnostics API.
const (
	CodeAuthBadRequest   = "AUTH_400"
	CodeUnauthorized     = "AUTH_401"
	CodeForbidden        = "AUTH_403"
	CodeTokensDisabled   = "AUTH_503"
	CodeJournalBadLimit  = "JOURNAL_400"
	CodeJournalDisabled  = "JOURNAL_404"
	CodeJournalReadError = "JOURNAL_500"
)

type ErrorBody struct {
	Code    string `json:"code"`
	Message string `json:"message"`
	Details any    `json:"details,omitempty"`
}

// ErrorResponse is the body of every non-2xx API answer.
type ErrorResponse struct {
	Error ErrorBody `json:"error"`
}

func NewErrorResponse(code, message string, details any) ErrorResponse {
	return ErrorResponse{Error: ErrorBody{Code: code, Message: message, Details: details}}
}
