package errors

// Code represents an error code
type Code string

// General-purpose error codes shared across the module.
const (
	CodeUnknown              Code = "UNKNOWN"               // Unknown error occurred
	CodeInternalError        Code = "INTERNAL_ERROR"        // Internal system error
	CodeValidationFailed     Code = "VALIDATION_FAILED"     // Input validation failed
	CodeInvalidParameter     Code = "INVALID_PARAMETER"     // Invalid parameter provided
	CodeIoError              Code = "IO_ERROR"              // Input/output operation failed
	CodeNetworkTimeout       Code = "NETWORK_TIMEOUT"       // Network operation timed out
	CodeTimeoutError         Code = "TIMEOUT_ERROR"         // Timeout error
	CodeConfigurationInvalid Code = "CONFIGURATION_INVALID" // Configuration invalid
)

// Match-engine error taxonomy. Match returns exactly one of these on failure.
const (
	CodeInvalidDockerfile  Code = "INVALID_DOCKERFILE"  // Dockerfile is empty or malformed
	CodeNoBaseImage        Code = "NO_BASE_IMAGE"       // Dockerfile has no FROM instruction
	CodeImageNotFound      Code = "IMAGE_NOT_FOUND"     // image could not be pulled/found
	CodeInspectionFailed   Code = "INSPECTION_FAILED"   // engine error while inspecting the image
	CodeConfigurationError Code = "CONFIGURATION_ERROR" // no engine client available
	CodeCancelled          Code = "CANCELLED"           // caller aborted the match() call
)
