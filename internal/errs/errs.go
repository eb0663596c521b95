// Package errs defines the error taxonomy shared by the filter compiler and
// the file pipelines. Internal failures are never surfaced as raw driver or
// RPC strings; they are wrapped into one of the categories below.
package errs

import (
	"errors"
	"fmt"
)

// Category is the top-level error taxonomy from the error handling design.
type Category string

const (
	CategoryUserInput         Category = "user_input"
	CategoryAuthorization     Category = "authorization"
	CategoryNotFound          Category = "not_found"
	CategoryInternalDatabase  Category = "internal_database"
	CategoryInternalTechnical Category = "internal_technical"
	CategoryConflict          Category = "conflict"
)

// Well-known codes. User-input codes additionally carry a CharPosition.
const (
	// Lexer (C1)
	CodeEmptyCondition         = "EmptyCondition"
	CodeEmptyLogicalOperation  = "EmptyLogicalOperation"
	CodeWrongLogicalOperator   = "WrongLogicalOperator"
	CodeUnknownFilterOperator  = "UnknownFilterOperator"
	CodeWrongNumericValue      = "WrongNumericValue"
	CodeUnclosedQuote          = "UnclosedQuote"
	CodeIncorrectAttributeChar = "IncorrectAttributeChar"
	CodeIncompleteExpression   = "IncompleteExpression"
	CodeInvalidLogicalDepth    = "InvalidLogicalDepth"

	// AST parser (C3)
	CodeValueExpected           = "ValueExpected"
	CodeLogicalOperatorExpected = "LogicalOperatorExpected"
	CodeOperatorExpected        = "OperatorExpected"
	CodeAttributeExpected       = "AttributeExpected"
	CodeOpeningExpected         = "OpeningExpected"
	CodeClosingExpected         = "ClosingExpected"

	// Query generator (C4)
	CodeTagUnknown           = "TagUnknown"
	CodeTagTypeUnknown       = "TagTypeUnknown"
	CodeTagSearchError       = "TagSearchError"
	CodeTagIncompatibleType  = "TagIncompatibleType"

	// Authorization / not-found
	CodeInvalidToken      = "InvalidToken"
	CodeSessionTimedOut   = "SessionTimedOut"
	CodeSessionNotFound   = "SessionNotFound"
	CodeFileInfoNotFound  = "FileInfoNotFound"

	// Conflict
	CodeCustomerNameAlreadyTaken = "CustomerNameAlreadyTaken"
	CodeCustomerCodeAlreadyTaken = "CustomerCodeAlreadyTaken"
	CodeStillInUse               = "StillInUse"

	// Internal technical
	CodeInternalTechnicalError = "InternalTechnicalError"
)

// Error is the single error envelope surfaced to callers. HTTPCode is
// computed from Category and never guessed by the caller.
type Error struct {
	Category     Category
	Code         string
	Message      string
	CharPosition *int // set only for CategoryUserInput
	cause        error
}

func (e *Error) Error() string {
	if e.CharPosition != nil {
		return fmt.Sprintf("%s at position %d: %s", e.Code, *e.CharPosition, e.Message)
	}
	return fmt.Sprintf("%s: %s", e.Code, e.Message)
}

func (e *Error) Unwrap() error { return e.cause }

// HTTPCode maps the category to the numeric code in the {http_error_code,
// message} response envelope.
func (e *Error) HTTPCode() int {
	switch e.Category {
	case CategoryUserInput:
		return 400
	case CategoryAuthorization:
		return 401
	case CategoryNotFound:
		return 404
	case CategoryConflict:
		return 409
	case CategoryInternalDatabase, CategoryInternalTechnical:
		return 500
	default:
		return 500
	}
}

// UserInput builds a position-carrying user-input error (lexer/parser/generator).
func UserInput(code string, pos int, format string, args ...any) *Error {
	p := pos
	return &Error{
		Category:     CategoryUserInput,
		Code:         code,
		Message:      fmt.Sprintf(format, args...),
		CharPosition: &p,
	}
}

// UserInputNoPos builds a user-input error with no associated character
// position, for validation that is not token-positional (e.g. the query
// generator's tag/operator checks).
func UserInputNoPos(code string, format string, args ...any) *Error {
	return &Error{Category: CategoryUserInput, Code: code, Message: fmt.Sprintf(format, args...)}
}

// Authorization builds an authorization-category error.
func Authorization(code string, format string, args ...any) *Error {
	return &Error{Category: CategoryAuthorization, Code: code, Message: fmt.Sprintf(format, args...)}
}

// NotFound builds a not-found-category error.
func NotFound(code string, format string, args ...any) *Error {
	return &Error{Category: CategoryNotFound, Code: code, Message: fmt.Sprintf(format, args...)}
}

// Conflict builds a conflict-category error.
func Conflict(code string, format string, args ...any) *Error {
	return &Error{Category: CategoryConflict, Code: code, Message: fmt.Sprintf(format, args...)}
}

// InternalDatabase wraps a driver failure; the original error is never
// surfaced to the caller, only logged by the wrapping site.
func InternalDatabase(cause error) *Error {
	return &Error{
		Category: CategoryInternalDatabase,
		Code:     "InternalDatabaseError",
		Message:  "a storage operation failed",
		cause:    cause,
	}
}

// InternalTechnical wraps a key-manager, indexer, text-extractor, or
// encrypt/decrypt failure.
func InternalTechnical(cause error) *Error {
	return &Error{
		Category: CategoryInternalTechnical,
		Code:     CodeInternalTechnicalError,
		Message:  "an internal technical operation failed",
		cause:    cause,
	}
}

// As is a thin re-export of errors.As for callers that only import this package.
func As(err error, target any) bool { return errors.As(err, target) }
