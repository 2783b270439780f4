// Package apperrors defines the typed failures that circle operations return.
//
// Every error carries a Kind (the broad taxonomy callers branch on) and a
// machine-readable Code. Translation into transport status codes happens in
// the feature layer only; nothing in this package knows about HTTP.
package apperrors

import (
	"errors"
	"fmt"
)

// Kind classifies a failure.
type Kind string

const (
	KindNotFound   Kind = "not_found"
	KindForbidden  Kind = "forbidden"
	KindConflict   Kind = "conflict"
	KindValidation Kind = "validation"
	KindExpired    Kind = "expired"
	KindInternal   Kind = "internal"
)

// Code is a machine-readable error code.
type Code string

const (
	// Existence
	CodePoolNotFound         Code = "POOL_NOT_FOUND"
	CodeGroupNotFound        Code = "GROUP_NOT_FOUND"
	CodeSourceGroupNotFound  Code = "SOURCE_GROUP_NOT_FOUND"
	CodeTargetGroupNotFound  Code = "TARGET_GROUP_NOT_FOUND"
	CodeInvitationNotFound   Code = "INVITATION_NOT_FOUND"
	CodeOrganizationNotFound Code = "ORGANIZATION_NOT_FOUND"

	// Authorization
	CodeNotOrgAdmin Code = "NOT_ORG_ADMIN"

	// Conflicts
	CodeDuplicateEmail    Code = "DUPLICATE_EMAIL"
	CodeDuplicateToken    Code = "DUPLICATE_TOKEN"
	CodeAlreadyAccepted   Code = "ALREADY_ACCEPTED"
	CodeAlreadyResponded  Code = "ALREADY_RESPONDED"
	CodeDuplicatePoolName Code = "DUPLICATE_POOL_NAME"
	CodeStatusChanged     Code = "POOL_STATUS_CHANGED"

	// Business rules
	CodeGroupFull          Code = "GROUP_FULL"
	CodeMemberNotFound     Code = "MEMBER_NOT_FOUND"
	CodeDuplicateGroupName Code = "DUPLICATE_GROUP_NAME"
	CodeNotAMember         Code = "NOT_A_MEMBER"
	CodeSameGroup          Code = "SAME_GROUP"
	CodeNotEnoughAccepted  Code = "NOT_ENOUGH_ACCEPTED"
	CodeInvalidTransition  Code = "INVALID_STATUS_TRANSITION"
	CodeInvitingClosed     Code = "INVITING_CLOSED"
	CodePoolClosed         Code = "POOL_CLOSED"
	CodeInvalidTargetSize  Code = "INVALID_TARGET_GROUP_SIZE"
	CodeInvalidEmail       Code = "INVALID_EMAIL"
	CodeNoEmails           Code = "NO_EMAILS"
	CodeInvalidName        Code = "INVALID_NAME"
	CodeInvalidID          Code = "INVALID_ID"
	CodeInvalidRequest     Code = "INVALID_REQUEST"
	CodeInvitationExpired  Code = "INVITATION_EXPIRED"
	CodeGroupPoolMismatch  Code = "GROUP_POOL_MISMATCH"
	CodeUnsatisfiableSizes Code = "UNSATISFIABLE_GROUP_SIZES"
	CodePartialWrite       Code = "PARTIAL_WRITE"
	CodeInternal           Code = "INTERNAL"
)

// Error is a typed circle failure.
type Error struct {
	Kind     Kind
	Code     Code
	Message  string
	Metadata map[string]string
	Err      error
}

func (e *Error) Error() string {
	if e.Err != nil {
		return fmt.Sprintf("%s: %s: %v", e.Code, e.Message, e.Err)
	}
	return fmt.Sprintf("%s: %s", e.Code, e.Message)
}

func (e *Error) Unwrap() error { return e.Err }

// Is matches on Kind and Code so sentinel-style comparisons work with
// errors.Is regardless of message or metadata.
func (e *Error) Is(target error) bool {
	var t *Error
	if !errors.As(target, &t) {
		return false
	}
	return e.Kind == t.Kind && e.Code == t.Code
}

// New builds an Error of the given kind.
func New(kind Kind, code Code, msg string) *Error {
	return &Error{Kind: kind, Code: code, Message: msg}
}

// WithMetadata builds an Error carrying key/value detail for callers.
func WithMetadata(kind Kind, code Code, msg string, md map[string]string) *Error {
	return &Error{Kind: kind, Code: code, Message: msg, Metadata: md}
}

func NotFound(code Code, msg string) *Error   { return New(KindNotFound, code, msg) }
func Forbidden(code Code, msg string) *Error  { return New(KindForbidden, code, msg) }
func Conflict(code Code, msg string) *Error   { return New(KindConflict, code, msg) }
func Validation(code Code, msg string) *Error { return New(KindValidation, code, msg) }
func Expired(code Code, msg string) *Error    { return New(KindExpired, code, msg) }

// Internal wraps an unexpected failure (storage, network).
func Internal(msg string, err error) *Error {
	return &Error{Kind: KindInternal, Code: CodeInternal, Message: msg, Err: err}
}

// KindOf returns the Kind of err, or KindInternal for untyped errors.
func KindOf(err error) Kind {
	var e *Error
	if errors.As(err, &e) {
		return e.Kind
	}
	return KindInternal
}

// CodeOf returns the Code of err, or CodeInternal for untyped errors.
func CodeOf(err error) Code {
	var e *Error
	if errors.As(err, &e) {
		return e.Code
	}
	return CodeInternal
}

// IsCode reports whether err carries the given code.
func IsCode(err error, code Code) bool {
	return CodeOf(err) == code
}

// MetadataOf returns the metadata attached to err, if any.
func MetadataOf(err error) map[string]string {
	var e *Error
	if errors.As(err, &e) {
		return e.Metadata
	}
	return nil
}
