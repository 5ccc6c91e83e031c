package errors

import (
	stderrors "errors"
	"fmt"
)

// ErrorCode represents a Prompter error code.
type ErrorCode string

const (
	ErrInvalidRequest        ErrorCode = "INVALID_REQUEST"                // 400
	ErrNotFound              ErrorCode = "NOT_FOUND"                      // 404
	ErrFileNotFound          ErrorCode = "FILE_NOT_FOUND"                 // 404
	ErrUnconfirmed           ErrorCode = "DESTRUCTIVE_ACTION_UNCONFIRMED" // 409
	ErrNotEditing            ErrorCode = "NOT_EDITING"                    // 409
	ErrUnsupportedUploadType ErrorCode = "UNSUPPORTED_UPLOAD_TYPE"        // 415
	ErrValidation            ErrorCode = "VALIDATION_ERROR"               // 422
	ErrEmptyContent          ErrorCode = "EMPTY_CONTENT"                  // 422
	ErrInternal              ErrorCode = "INTERNAL"                       // 500
)

// PrompterError represents a structured error with code, status, and details.
type PrompterError struct {
	Code    ErrorCode
	Status  int
	Message string
	Details map[string]any
}

// Error implements the error interface.
func (e *PrompterError) Error() string {
	return fmt.Sprintf("%s: %s", e.Code, e.Message)
}

// NewInvalidRequest creates a 400 error for invalid request parameters.
func NewInvalidRequest(msg string) *PrompterError {
	return &PrompterError{
		Code:    ErrInvalidRequest,
		Status:  400,
		Message: msg,
	}
}

// NewNotFound creates a 404 error for when a script cannot be found.
func NewNotFound(id string) *PrompterError {
	return &PrompterError{
		Code:    ErrNotFound,
		Status:  404,
		Message: fmt.Sprintf("script not found: %s", id),
		Details: map[string]any{"id": id},
	}
}

// NewFileNotFound creates a 404 error for a missing import/upload file.
func NewFileNotFound(path string) *PrompterError {
	return &PrompterError{
		Code:    ErrFileNotFound,
		Status:  404,
		Message: fmt.Sprintf("file not found: %s", path),
		Details: map[string]any{"path": path},
	}
}

// NewUnconfirmed creates a 409 error when a destructive action was declined
// or not explicitly confirmed.
func NewUnconfirmed(action, id string) *PrompterError {
	return &PrompterError{
		Code:    ErrUnconfirmed,
		Status:  409,
		Message: fmt.Sprintf("%s of %s was not confirmed", action, id),
		Details: map[string]any{"action": action, "id": id},
	}
}

// NewNotEditing creates a 409 error for draft operations outside an edit.
func NewNotEditing() *PrompterError {
	return &PrompterError{
		Code:    ErrNotEditing,
		Status:  409,
		Message: "no save in progress",
	}
}

// NewUnsupportedUploadType creates a 415 error for non-text uploads.
func NewUnsupportedUploadType(name, detected string) *PrompterError {
	return &PrompterError{
		Code:    ErrUnsupportedUploadType,
		Status:  415,
		Message: "please upload a .txt file",
		Details: map[string]any{"name": name, "detected_type": detected},
	}
}

// NewValidation creates a 422 error for a field that failed validation.
func NewValidation(field, msg string) *PrompterError {
	return &PrompterError{
		Code:    ErrValidation,
		Status:  422,
		Message: msg,
		Details: map[string]any{"field": field},
	}
}

// NewEmptyContent creates a 422 error when playback is requested with no text.
func NewEmptyContent() *PrompterError {
	return &PrompterError{
		Code:    ErrEmptyContent,
		Status:  422,
		Message: "script content is empty",
	}
}

// NewInternal creates a 500 error for unexpected internal errors.
func NewInternal(err error) *PrompterError {
	msg := "internal error"
	if err != nil {
		msg = err.Error()
	}
	return &PrompterError{
		Code:    ErrInternal,
		Status:  500,
		Message: msg,
	}
}

// Is checks if err (or anything it wraps) is a PrompterError with the given code.
func Is(err error, code ErrorCode) bool {
	var pErr *PrompterError
	if stderrors.As(err, &pErr) {
		return pErr.Code == code
	}
	return false
}
