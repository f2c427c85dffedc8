package types

import (
	"context"
	"errors"
	"fmt"
)

// ErrorKind classifies a failure for retry decisions and reporting.
type ErrorKind string

const (
	KindInvalidInput     ErrorKind = "invalid_input"
	KindRateLimited      ErrorKind = "rate_limited"
	KindTransient        ErrorKind = "transient"
	KindBlocked          ErrorKind = "blocked"
	KindPermanent        ErrorKind = "permanent"
	KindCacheUnavailable ErrorKind = "cache_unavailable"
	KindTimeout          ErrorKind = "timeout"
	KindUnknown          ErrorKind = "unknown"
)

var (
	ErrInvalidInput      = errors.New("invalid input")
	ErrRateLimitExceeded = errors.New("rate limit exceeded")
	ErrTransientSource   = errors.New("transient source failure")
	ErrBlocked           = errors.New("blocked by source")
	ErrPermanentSource   = errors.New("permanent source failure")
	ErrCacheUnavailable  = errors.New("cache unavailable")
	ErrDeadlineExceeded  = errors.New("deadline exceeded")
	ErrNoAdapter         = errors.New("no adapter registered for category")
)

var kindSentinels = map[ErrorKind]error{
	KindInvalidInput:     ErrInvalidInput,
	KindRateLimited:      ErrRateLimitExceeded,
	KindTransient:        ErrTransientSource,
	KindBlocked:          ErrBlocked,
	KindPermanent:        ErrPermanentSource,
	KindCacheUnavailable: ErrCacheUnavailable,
	KindTimeout:          ErrDeadlineExceeded,
}

// SourceError wraps a failure reported by an external source.
type SourceError struct {
	Kind       ErrorKind
	Source     string
	StatusCode int
	Message    string
	Err        error
}

// NewSourceError builds a SourceError of the given kind.
func NewSourceError(kind ErrorKind, source, message string, err error) *SourceError {
	return &SourceError{Kind: kind, Source: source, Message: message, Err: err}
}

func (e *SourceError) Error() string {
	msg := fmt.Sprintf("[%s] %s: %s", e.Source, e.Kind, e.Message)
	if e.StatusCode != 0 {
		msg = fmt.Sprintf("%s (status %d)", msg, e.StatusCode)
	}
	if e.Err != nil {
		msg = fmt.Sprintf("%s (%v)", msg, e.Err)
	}
	return msg
}

func (e *SourceError) Unwrap() error {
	return e.Err
}

// Is matches the sentinel of the error's kind, so errors.Is(err, ErrBlocked)
// works for any blocked SourceError.
func (e *SourceError) Is(target error) bool {
	sentinel, ok := kindSentinels[e.Kind]
	return ok && sentinel == target
}

// KindOf classifies any error into an ErrorKind.
func KindOf(err error) ErrorKind {
	if err == nil {
		return ""
	}
	var se *SourceError
	if errors.As(err, &se) {
		return se.Kind
	}
	for kind, sentinel := range kindSentinels {
		if errors.Is(err, sentinel) {
			return kind
		}
	}
	if errors.Is(err, context.DeadlineExceeded) || errors.Is(err, context.Canceled) {
		return KindTimeout
	}
	return KindUnknown
}

// IsRetryable reports whether err is worth another attempt.
func IsRetryable(err error) bool {
	return KindOf(err) == KindTransient
}
