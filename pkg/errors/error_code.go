package errors

// ErrorCode represents a unique error code for identifying different error types.
type ErrorCode int

const (
	// General errors (1-99)
	ErrCodeUnknown ErrorCode = 1

	// Validation errors (100-199)
	ErrCodeInvalidQuantity      ErrorCode = 100
	ErrCodeInvalidPrice         ErrorCode = 101
	ErrCodeInvalidOrder         ErrorCode = 102
	ErrCodeInvalidParameter     ErrorCode = 103
	ErrCodeInvalidConfiguration ErrorCode = 104

	// Account errors (200-299)
	ErrCodeUserNotFound  ErrorCode = 200
	ErrCodeAccountExists ErrorCode = 201

	// Funds errors (300-399)
	ErrCodeInsufficientFunds  ErrorCode = 300
	ErrCodeInsufficientCredit ErrorCode = 301

	// Repository errors (400-499)
	ErrCodeConcurrentModification ErrorCode = 400
	ErrCodeQueryFailed            ErrorCode = 401
	ErrCodeTransactionFailed      ErrorCode = 402
	ErrCodeOrderNotFound          ErrorCode = 403
	ErrCodeOrderNotPending        ErrorCode = 404

	// Pricing errors (500-599)
	ErrCodePriceUnavailable ErrorCode = 500
	ErrCodeRateUnavailable  ErrorCode = 501
)

// IsRetryable reports whether an operation failing with this code may
// succeed if the caller resubmits it later.
func (c ErrorCode) IsRetryable() bool {
	switch c {
	case ErrCodeConcurrentModification, ErrCodePriceUnavailable, ErrCodeRateUnavailable:
		return true
	default:
		return false
	}
}
