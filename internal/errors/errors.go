package errors

import (
	stderrors "errors"
	"fmt"
)

// AppError is a user-facing failure carrying a category code.
type AppError struct {
	Code    string
	Message string
	Cause   error
}

func (e *AppError) Error() string {
	if e.Cause != nil {
		return fmt.Sprintf("%s: %v", e.Message, e.Cause)
	}
	return e.Message
}

func (e *AppError) Unwrap() error {
	return e.Cause
}

const (
	CodeValidation          = "VALIDATION_ERROR"
	CodeInsufficientSamples = "INSUFFICIENT_SAMPLES"
	CodeParse               = "PARSE_ERROR"
	CodeUnseenCategory      = "UNSEEN_CATEGORY"
	CodeSerialization       = "SERIALIZATION_ERROR"
	CodeNotFound            = "NOT_FOUND"
	CodeConfigInvalid       = "CONFIG_INVALID"
	CodeInternal            = "INTERNAL_ERROR"
)

func New(code, message string) *AppError {
	return &AppError{Code: code, Message: message}
}

// Wrap attaches message to err, keeping the code of an inner AppError.
func Wrap(err error, message string) error {
	if err == nil {
		return nil
	}
	var appErr *AppError
	if stderrors.As(err, &appErr) {
		return &AppError{Code: appErr.Code, Message: message, Cause: err}
	}
	return &AppError{Code: CodeInternal, Message: message, Cause: err}
}

func Wrapf(err error, format string, args ...any) error {
	if err == nil {
		return nil
	}
	return Wrap(err, fmt.Sprintf(format, args...))
}

// WithCode re-labels err under code.
func WithCode(code string, err error) error {
	if err == nil {
		return nil
	}
	return &AppError{Code: code, Message: err.Error(), Cause: err}
}

// GetCode returns the outermost AppError code in the chain, or "UNKNOWN".
func GetCode(err error) string {
	var appErr *AppError
	if stderrors.As(err, &appErr) {
		return appErr.Code
	}
	return "UNKNOWN"
}

// Is reports whether any AppError in the chain carries code. Insufficient
// samples count as a validation failure.
func Is(err error, code string) bool {
	for err != nil {
		if appErr, ok := err.(*AppError); ok {
			if appErr.Code == code {
				return true
			}
			if code == CodeValidation && appErr.Code == CodeInsufficientSamples {
				return true
			}
		}
		err = stderrors.Unwrap(err)
	}
	return false
}

func Validation(format string, args ...any) *AppError {
	return New(CodeValidation, fmt.Sprintf(format, args...))
}

func InsufficientSamples(have, need int) *AppError {
	return New(CodeInsufficientSamples,
		fmt.Sprintf("insufficient samples: have %d rows, need at least %d", have, need))
}

func Parse(message string, cause error) *AppError {
	return &AppError{Code: CodeParse, Message: message, Cause: cause}
}

func UnseenCategory(feature, value string) *AppError {
	return New(CodeUnseenCategory,
		fmt.Sprintf("unseen category %q for feature %q: value was not present in the training data", value, feature))
}

func Serialization(message string, cause error) *AppError {
	return &AppError{Code: CodeSerialization, Message: message, Cause: cause}
}

func NotFound(resource string) *AppError {
	return New(CodeNotFound, fmt.Sprintf("%s not found", resource))
}

func ConfigInvalid(format string, args ...any) *AppError {
	return New(CodeConfigInvalid, fmt.Sprintf(format, args...))
}
