package errors

import (
	"errors"
	"fmt"
	"strings"
)

// FieldError is one request field that failed validation.
type FieldError struct {
	Field string `json:"field"`
	Rule  string `json:"rule"`
}

// AppError carries a business code through the call stack to the HTTP layer.
type AppError struct {
	Code    int
	Message string
	Details string
	Fields  []FieldError
	Err     error
}

func (e *AppError) Error() string {
	var b strings.Builder
	fmt.Fprintf(&b, "[%d] %s", e.Code, e.Message)
	switch {
	case e.Err != nil:
		fmt.Fprintf(&b, ": %v", e.Err)
	case e.Details != "":
		b.WriteString(": ")
		b.WriteString(e.Details)
	}
	return b.String()
}

func (e *AppError) Unwrap() error { return e.Err }

// HTTPStatus 返回错误码对应的 HTTP 状态
func (e *AppError) HTTPStatus() int {
	return GetHTTPStatus(e.Code)
}

// New 按错误码创建错误
func New(code int, details ...string) *AppError {
	e := &AppError{Code: code, Message: GetMessage(code)}
	if len(details) > 0 {
		e.Details = details[0]
	}
	return e
}

// Wrap attaches a code to err. An AppError already in the chain wins, so a
// code chosen deep in the stack is not overwritten by a generic one.
func Wrap(err error, code int, details ...string) *AppError {
	if err == nil {
		return nil
	}
	if appErr, ok := As(err); ok {
		return appErr
	}
	e := New(code, details...)
	e.Err = err
	return e
}

// NewNotFoundError reports a missing resource under a specific code, e.g.
// ErrRunNotFound for a pipeline run id.
func NewNotFoundError(code int, resource, id string) *AppError {
	return New(code, fmt.Sprintf("%s %q", resource, id))
}

// NewValidationError reports request fields that failed validation. The
// details list them as "field: rule" pairs in input order.
func NewValidationError(fields ...FieldError) *AppError {
	parts := make([]string, 0, len(fields))
	for _, f := range fields {
		parts = append(parts, f.Field+": "+f.Rule)
	}
	e := New(ErrInvalidParams, strings.Join(parts, "; "))
	e.Fields = fields
	return e
}

// As returns the first AppError in err's chain.
func As(err error) (*AppError, bool) {
	var appErr *AppError
	if errors.As(err, &appErr) {
		return appErr, true
	}
	return nil, false
}

// Is reports whether err carries the given code.
func Is(err error, code int) bool {
	appErr, ok := As(err)
	return ok && appErr.Code == code
}

// ExtractCode returns the code of err, ErrInternalServer when it has none.
func ExtractCode(err error) int {
	if appErr, ok := As(err); ok {
		return appErr.Code
	}
	return ErrInternalServer
}

// GetDetails returns the details of err, falling back to the wrapped error.
func GetDetails(err error) string {
	if err == nil {
		return ""
	}
	appErr, ok := As(err)
	if !ok {
		return err.Error()
	}
	if appErr.Details == "" && appErr.Err != nil {
		return appErr.Err.Error()
	}
	return appErr.Details
}
