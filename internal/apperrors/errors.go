package apperrors

import (
	"errors"
	"fmt"
	"net/http"
)

// Kind classifies a failure by where it came from and how callers should react.
type Kind string

const (
	KindExtraction Kind = "extraction_failure"
	KindEmbedding  Kind = "embedding_service"
	KindIndex      Kind = "index_service"
	KindGeneration Kind = "generation_service"
	KindValidation Kind = "validation"
	KindNotFound   Kind = "not_found"
	KindConflict   Kind = "conflict"
	KindUnexpected Kind = "unexpected"
)

// Error is a classified error. Op names the operation that failed.
type Error struct {
	Kind Kind
	Op   string
	Err  error
}

func (e *Error) Error() string {
	if e.Err == nil {
		return fmt.Sprintf("%s: %s", e.Op, e.Kind)
	}
	return fmt.Sprintf("%s: %v", e.Op, e.Err)
}

func (e *Error) Unwrap() error { return e.Err }

// Is lets errors.Is(err, &Error{Kind: k}) match on kind alone.
func (e *Error) Is(target error) bool {
	t, ok := target.(*Error)
	if !ok {
		return false
	}
	return t.Op == "" && t.Err == nil && t.Kind == e.Kind
}

// E wraps err with a kind and operation name.
func E(kind Kind, op string, err error) error {
	return &Error{Kind: kind, Op: op, Err: err}
}

func Extraction(op string, err error) error { return E(KindExtraction, op, err) }
func Embedding(op string, err error) error  { return E(KindEmbedding, op, err) }
func Index(op string, err error) error      { return E(KindIndex, op, err) }
func Generation(op string, err error) error { return E(KindGeneration, op, err) }
func NotFound(op string, err error) error   { return E(KindNotFound, op, err) }
func Conflict(op string, err error) error   { return E(KindConflict, op, err) }

// Validation builds a validation error from a message.
func Validation(op, format string, args ...any) error {
	return E(KindValidation, op, fmt.Errorf(format, args...))
}

// Sentinels usable with errors.Is.
var (
	ErrExtraction = &Error{Kind: KindExtraction}
	ErrEmbedding  = &Error{Kind: KindEmbedding}
	ErrIndex      = &Error{Kind: KindIndex}
	ErrGeneration = &Error{Kind: KindGeneration}
	ErrValidation = &Error{Kind: KindValidation}
	ErrNotFound   = &Error{Kind: KindNotFound}
	ErrConflict   = &Error{Kind: KindConflict}
)

// KindOf returns the kind of the outermost classified error in the chain,
// or KindUnexpected when there is none.
func KindOf(err error) Kind {
	var e *Error
	if errors.As(err, &e) {
		return e.Kind
	}
	return KindUnexpected
}

// HTTPStatus maps a kind to the status code returned by the API.
func HTTPStatus(kind Kind) int {
	switch kind {
	case KindValidation:
		return http.StatusBadRequest
	case KindNotFound:
		return http.StatusNotFound
	case KindConflict:
		return http.StatusConflict
	case KindEmbedding, KindIndex, KindGeneration:
		return http.StatusServiceUnavailable
	default:
		return http.StatusInternalServerError
	}
}

// Retryable reports whether the failure came from a remote service and may succeed later.
func Retryable(err error) bool {
	switch KindOf(err) {
	case KindEmbedding, KindIndex, KindGeneration:
		return true
	}
	return false
}
