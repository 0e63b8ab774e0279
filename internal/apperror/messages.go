package apperror

// messages maps error codes to human-readable messages
var messages = map[Code]string{
	CodeConnectionFailure:  "Venue or RPC endpoint unreachable",
	CodeQuoteUnavailable:   "No usable price from venue",
	CodeExecutionRejected:  "Execution rejected",
	CodeExecutionTimeout:   "Confirmation not observed in time",
	CodeConfigurationError: "Configuration error",

	CodeInvalidInput:   "Invalid input provided",
	CodeInvalidState:   "Invalid state for this operation",
	CodeNotFound:       "Resource not found",
	CodeStorageFailure: "Storage operation failed",
	CodeInternalError:  "Internal error",
	CodeUnknownError:   "An unknown error occurred",
}
