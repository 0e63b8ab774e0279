package apperror

// Code represents a unique error code for the application
type Code string

// Engine failure taxonomy. Every failure that crosses a component boundary carries one of these.
const (
	// Venue or RPC endpoint unreachable. Retried next cycle, never within a cycle.
	CodeConnectionFailure Code = "CONNECTION_FAILURE"
	// Venue answered but no usable price could be derived.
	CodeQuoteUnavailable Code = "QUOTE_UNAVAILABLE"
	// Execution sink refused the attempt, or the transaction reverted.
	CodeExecutionRejected Code = "EXECUTION_REJECTED"
	// Confirmation not observed in time. On-chain outcome unknown.
	CodeExecutionTimeout Code = "EXECUTION_TIMEOUT"
	// Invalid or missing settings. Fatal at startup only.
	CodeConfigurationError Code = "CONFIGURATION_ERROR"
)

// Supporting codes
const (
	CodeInvalidInput   Code = "INVALID_INPUT"
	CodeInvalidState   Code = "INVALID_STATE"
	CodeNotFound       Code = "NOT_FOUND"
	CodeStorageFailure Code = "STORAGE_FAILURE"
	CodeInternalError  Code = "INTERNAL_ERROR"
	CodeUnknownError   Code = "UNKNOWN_ERROR"
)
