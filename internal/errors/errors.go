package errors

// default error is internal service error at handler level
// if error has different status code use ErrorWithStatusCode
type ErrorWithStatusCode struct {
	Message    string
	StatusCode int
	Code       string // stable machine-readable reason, see codes below
}

func (e *ErrorWithStatusCode) Error() string {
	return e.Message
}

// Reason codes surfaced in the error envelope so clients can route the user
// (re-login vs. re-verify vs. contact admin) without parsing messages.
const (
	CodeMissingCredential  = "missing_credential"
	CodeInvalidToken       = "invalid_token"
	CodeTokenExpired       = "token_expired"
	CodeWrongPurpose       = "wrong_purpose"
	CodeInvalidCredentials = "invalid_credentials"
	CodeAccountNotFound    = "account_not_found"
	CodeAccountDisabled    = "account_disabled"
	CodeAccountUnverified  = "account_unverified"
	CodeInsufficientRole   = "insufficient_role"
	CodeDuplicateEmail     = "duplicate_email"
	CodeNotFound           = "not_found"
	CodeBadRequest         = "bad_request"
	CodeInternal           = "internal_error"
)
