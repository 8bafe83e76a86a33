package errors

import (
	"errors"
	"fmt"
	"net/http"

	"google.golang.org/grpc/codes"
	"google.golang.org/grpc/status"
)

type Code codes.Code

const (
	CodeInvalidArgument    = Code(codes.InvalidArgument)
	CodeNotFound           = Code(codes.NotFound)
	CodeAlreadyExists      = Code(codes.AlreadyExists)
	CodeFailedPrecondition = Code(codes.FailedPrecondition)
	CodeUnavailable        = Code(codes.Unavailable)
	CodeInternal           = Code(codes.Internal)
	CodeUnauthenticated    = Code(codes.Unauthenticated)
)

var code2http = map[Code]int{
	CodeInvalidArgument:    http.StatusBadRequest,
	CodeNotFound:           http.StatusNotFound,
	CodeAlreadyExists:      http.StatusConflict,
	CodeFailedPrecondition: http.StatusConflict,
	CodeUnavailable:        http.StatusServiceUnavailable,
	CodeInternal:           http.StatusInternalServerError,
	CodeUnauthenticated:    http.StatusUnauthorized,
}

// Reason narrows a Code down to the failure a caller can branch on.
type Reason string

const (
	ReasonSessionNotFound  Reason = "SESSION_NOT_FOUND"
	ReasonDocumentNotFound Reason = "DOCUMENT_NOT_FOUND"
	ReasonInvalidState     Reason = "INVALID_STATE"
	ReasonUpstreamFailure  Reason = "UPSTREAM_FAILURE"
)

type Error struct {
	Code    Code   `json:"code"`
	Message string `json:"message"`
	Reason  Reason `json:"reason,omitempty"`
	err     error
}

func New(code Code, opts ...Option) *Error {
	e := &Error{
		Code:    code,
		Message: codes.Code(code).String(),
	}

	for _, opt := range opts {
		opt.apply(e)
	}

	return e
}

func (e *Error) Error() string {
	s := fmt.Sprintf("code: %d, message: %s", e.Code, e.Message)
	if e.Reason != "" {
		s += fmt.Sprintf(", reason: %s", e.Reason)
	}
	if e.err != nil {
		s += fmt.Sprintf(", err: %s", e.err)
	}

	return s
}

func (e *Error) Unwrap() error {
	return e.err
}

func (e *Error) GRPCStatus() *status.Status {
	return status.New(codes.Code(e.Code), e.Message)
}

func (e *Error) HTTPStatusCode() int {
	if c, ok := code2http[e.Code]; ok {
		return c
	}

	return http.StatusInternalServerError
}

func Convert(err error) *Error {
	var e *Error
	if !errors.As(err, &e) {
		return Internal(err)
	}

	return e
}

func Internal(err error) *Error {
	return New(CodeInternal, WithCause(err))
}

// SessionNotFound is returned for an unknown session id.
func SessionNotFound(id string) *Error {
	return New(CodeNotFound,
		WithReason(ReasonSessionNotFound),
		WithMessagef("session not found: %s", id),
	)
}

// DocumentNotFound is returned when a game is started for an unknown document.
func DocumentNotFound(ref string) *Error {
	return New(CodeNotFound,
		WithReason(ReasonDocumentNotFound),
		WithMessagef("document not found: %s", ref),
	)
}

// InvalidState is returned when an operation is not allowed from the session's current status.
func InvalidState(format string, args ...any) *Error {
	return New(CodeFailedPrecondition,
		WithReason(ReasonInvalidState),
		WithMessagef(format, args...),
	)
}

// Upstream wraps a failure of an external collaborator (language model, document store).
func Upstream(err error) *Error {
	return New(CodeUnavailable,
		WithReason(ReasonUpstreamFailure),
		WithMessagef("upstream failure"),
		WithCause(err),
	)
}

func IsNotFound(err error) bool { return hasReason(err, ReasonSessionNotFound) }

func IsDocumentNotFound(err error) bool { return hasReason(err, ReasonDocumentNotFound) }

func IsInvalidState(err error) bool { return hasReason(err, ReasonInvalidState) }

func IsUpstream(err error) bool { return hasReason(err, ReasonUpstreamFailure) }

func hasReason(err error, r Reason) bool {
	var e *Error
	return errors.As(err, &e) && e.Reason == r
}

type Option interface {
	apply(*Error)
}

type optionFunc func(*Error)

func (f optionFunc) apply(e *Error) {
	f(e)
}

func WithCause(err error) Option {
	return optionFunc(func(e *Error) {
		e.err = err
	})
}

func WithMessagef(format string, args ...any) Option {
	return optionFunc(func(e *Error) {
		e.Message = fmt.Sprintf(format, args...)
	})
}

func WithReason(r Reason) Option {
	return optionFunc(func(e *Error) {
		e.Reason = r
	})
}
