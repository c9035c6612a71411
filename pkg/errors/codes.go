package errors

// ErrorCode is a string representation of a specific error condition.
type ErrorCode string

func (c ErrorCode) String() string {
	return string(c)
}

// Common error codes
const (
	ErrCodeInternal           ErrorCode = "COMMON_001"
	ErrCodeBadRequest         ErrorCode = "COMMON_002"
	ErrCodeNotFound           ErrorCode = "COMMON_003"
	ErrCodeTimeout            ErrorCode = "COMMON_004"
	ErrCodeValidation         ErrorCode = "COMMON_005"
	ErrCodeSerialization      ErrorCode = "COMMON_006"
	ErrCodeExternalService    ErrorCode = "COMMON_007"
	ErrCodeFeatureDisabled    ErrorCode = "COMMON_008"
	ErrCodeServiceUnavailable ErrorCode = "COMMON_009"
)

// Aliases kept for call-site readability
const (
	CodeInternal     = ErrCodeInternal
	CodeInvalidParam = ErrCodeBadRequest
	CodeUnknown      = ErrorCode("UNKNOWN")
	CodeOK           = ErrorCode("OK")
)

// Extraction module error codes
const (
	ErrCodeEntityNameEmpty     ErrorCode = "EXT_001"
	ErrCodeEntityInvalid       ErrorCode = "EXT_002"
	ErrCodeStructureMalformed  ErrorCode = "EXT_003"
	ErrCodeTextTooLong         ErrorCode = "EXT_004"
)

// Generative extractor error codes
const (
	ErrCodeModelUnavailable    ErrorCode = "GEN_001"
	ErrCodeModelCallFailed     ErrorCode = "GEN_002"
	ErrCodeModelTimeout        ErrorCode = "GEN_003"
	ErrCodeModelOutputInvalid  ErrorCode = "GEN_004"
	ErrCodeModelNotConfigured  ErrorCode = "GEN_005"
)

// Grounding validation error codes
const (
	ErrCodeGroundingInputInvalid ErrorCode = "VAL_001"
)

// Configuration / lexicon error codes
const (
	ErrCodeConfigInvalid  ErrorCode = "CFG_001"
	ErrCodeLexiconInvalid ErrorCode = "CFG_002"
	ErrCodeLexiconLoad    ErrorCode = "CFG_003"
)
