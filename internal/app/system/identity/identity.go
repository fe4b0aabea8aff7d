// Package identity defines the contract the start flow needs from an
// external credential service, and the closed set of failures it can report.
//
// Adapters live in subpackages: kratosidp talks to Ory Kratos, localidp keeps
// bcrypt credentials in MongoDB.
package identity

import (
	"context"
	"errors"
	"fmt"
	"time"
)

// Provider owns email/password credentials. Account ids it returns are the
// keys of the users collection.
type Provider interface {
	// CreateAccount registers a new credential and returns its account id.
	CreateAccount(ctx context.Context, email, password string) (string, error)
	// CheckCredential verifies email/password and opens a provider session.
	CheckCredential(ctx context.Context, email, password string) (Session, error)
	// DeleteAccount removes a credential. Deleting an absent account is not an error.
	DeleteAccount(ctx context.Context, accountID string) error
	// Ping reports whether the provider is reachable.
	Ping(ctx context.Context) error
}

// Session is the result of a successful credential check.
type Session struct {
	AccountID string
	Token     string
	IssuedAt  time.Time
}

// Code classifies a provider failure.
type Code int

const (
	CodeOther Code = iota
	CodeEmailInUse
	CodeInvalidEmail
	CodeWeakPassword
	CodeInvalidCredential
	CodeUserNotFound
	CodeWrongPassword
	CodeUserDisabled
	CodeTooManyRequests
	CodeNetworkFailure
)

var codeNames = map[Code]string{
	CodeOther:             "other",
	CodeEmailInUse:        "email_in_use",
	CodeInvalidEmail:      "invalid_email",
	CodeWeakPassword:      "weak_password",
	CodeInvalidCredential: "invalid_credential",
	CodeUserNotFound:      "user_not_found",
	CodeWrongPassword:     "wrong_password",
	CodeUserDisabled:      "user_disabled",
	CodeTooManyRequests:   "too_many_requests",
	CodeNetworkFailure:    "network_failure",
}

// String returns a snake_case label, used for metrics and audit details.
func (c Code) String() string {
	if s, ok := codeNames[c]; ok {
		return s
	}
	return "other"
}

// Error is the only error type adapters return for classified failures.
type Error struct {
	Code Code
	Op   string // "create", "check", "delete", "ping"
	Err  error  // underlying cause, may be nil
}

func (e *Error) Error() string {
	if e.Err != nil {
		return fmt.Sprintf("identity %s: %s: %v", e.Op, e.Code, e.Err)
	}
	return fmt.Sprintf("identity %s: %s", e.Op, e.Code)
}

func (e *Error) Unwrap() error { return e.Err }

// E builds an *Error.
func E(op string, code Code, err error) *Error {
	return &Error{Code: code, Op: op, Err: err}
}

// CodeOf returns the classification of err. Errors that are not *Error
// anywhere in their chain are CodeOther.
func CodeOf(err error) Code {
	var ie *Error
	if errors.As(err, &ie) {
		return ie.Code
	}
	return CodeOther
}

// SignUpMessage is the user-facing text for a failed account creation.
func SignUpMessage(err error) string {
	switch CodeOf(err) {
	case CodeEmailInUse:
		return "Email is already registered"
	case CodeInvalidEmail:
		return "Invalid email format"
	case CodeWeakPassword:
		return "Password should be at least 6 characters"
	default:
		return "Failed to create account. Please try again."
	}
}

// SignInMessage is the user-facing text for a failed credential check.
func SignInMessage(err error) string {
	switch CodeOf(err) {
	case CodeInvalidCredential, CodeUserNotFound, CodeWrongPassword:
		return "Invalid username/email or password"
	case CodeUserDisabled:
		return "This account has been disabled"
	case CodeTooManyRequests:
		return "Too many failed attempts. Please try again later"
	case CodeNetworkFailure:
		return "Network error. Please check your connection"
	default:
		return "Failed to sign in. Please try again."
	}
}
