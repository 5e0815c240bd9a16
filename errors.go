package auth

import (
	"strings"

	goerrors "github.com/goliatone/go-errors"
)

// Text codes identify taxonomy members independently of the message wording.
const (
	TextCodeAuthRequired        = "AUTH_REQUIRED"
	TextCodeTokenMalformed      = "TOKEN_MALFORMED"
	TextCodeTokenExpired        = "TOKEN_EXPIRED"
	TextCodeUserNotFound        = "TOKEN_USER_GONE"
	TextCodeStalePassword       = "STALE_PASSWORD"
	TextCodeForbidden           = "FORBIDDEN"
	TextCodeInvalidCredentials  = "INVALID_CREDENTIALS"
	TextCodeWrongPassword       = "WRONG_PASSWORD"
	TextCodeResetTokenInvalid   = "RESET_TOKEN_INVALID"
	TextCodeResetDeliveryFailed = "EMAIL_DELIVERY_FAILED"
	TextCodeDuplicateValue      = "DUPLICATE_VALUE"
	TextCodeTooManyAttempts     = "TOO_MANY_LOGIN_ATTEMPTS"
	TextCodeValidationFailed    = "VALIDATION_FAILED"
	TextCodeInvalidFieldValue   = "INVALID_FIELD_VALUE"
	TextCodeRouteNotFound       = "ROUTE_NOT_FOUND"
)

// ErrAuthRequired is returned when no token is present on the request.
var ErrAuthRequired = goerrors.New("You are not logged in! Please log in to get access", goerrors.CategoryAuth).
	WithCode(goerrors.CodeUnauthorized).
	WithTextCode(TextCodeAuthRequired)

// ErrTokenMalformed is returned for tokens with a bad shape or signature.
var ErrTokenMalformed = goerrors.New("Invalid token. Please log in again", goerrors.CategoryAuth).
	WithCode(goerrors.CodeUnauthorized).
	WithTextCode(TextCodeTokenMalformed)

// ErrTokenExpired is returned for tokens past their expiry window.
var ErrTokenExpired = goerrors.New("Your token has expired. Please log in again", goerrors.CategoryAuth).
	WithCode(goerrors.CodeUnauthorized).
	WithTextCode(TextCodeTokenExpired)

// ErrUserNotFound is returned when a verified token references a user
// that no longer exists. Deleted-but-still-tokened callers are treated
// as unauthenticated, not as a server fault.
var ErrUserNotFound = goerrors.New("The user belonging to this token no longer exists", goerrors.CategoryAuth).
	WithCode(goerrors.CodeUnauthorized).
	WithTextCode(TextCodeUserNotFound)

// ErrStalePassword is returned when the token predates a password rotation.
var ErrStalePassword = goerrors.New("User recently changed password. Please log in again", goerrors.CategoryAuth).
	WithCode(goerrors.CodeUnauthorized).
	WithTextCode(TextCodeStalePassword)

// ErrForbidden is returned when the identity's role is outside the allowed set.
var ErrForbidden = goerrors.New("You don't have permission to perform this action", goerrors.CategoryAuthz).
	WithCode(goerrors.CodeForbidden).
	WithTextCode(TextCodeForbidden)

// ErrInvalidCredentials is the single login failure for bad email or
// bad password, so callers cannot probe which accounts exist.
var ErrInvalidCredentials = goerrors.New("Invalid UserEmail or Password", goerrors.CategoryAuth).
	WithCode(goerrors.CodeUnauthorized).
	WithTextCode(TextCodeInvalidCredentials)

// ErrWrongPassword is returned on the authenticated password-change path.
var ErrWrongPassword = goerrors.New("Your current password is wrong", goerrors.CategoryAuth).
	WithCode(goerrors.CodeUnauthorized).
	WithTextCode(TextCodeWrongPassword)

// ErrResetTokenInvalid covers both unknown and expired reset tokens.
var ErrResetTokenInvalid = goerrors.New("Token is either expired or is invalid", goerrors.CategoryBadInput).
	WithCode(goerrors.CodeBadRequest).
	WithTextCode(TextCodeResetTokenInvalid)

// ErrResetDeliveryFailed is surfaced after a failed reset email, once
// the stored token state has been cleared.
var ErrResetDeliveryFailed = goerrors.New("There was an error sending the email. Try again later!", goerrors.CategoryOperation).
	WithCode(goerrors.CodeInternal).
	WithTextCode(TextCodeResetDeliveryFailed)

// ErrTooManyLoginAttempts is returned while the login cooldown window is active.
var ErrTooManyLoginAttempts = goerrors.New("Too many login attempts. Try again later", goerrors.CategoryAuth).
	WithCode(goerrors.CodeUnauthorized).
	WithTextCode(TextCodeTooManyAttempts)

// ErrMismatchedHashAndPassword wraps the bcrypt mismatch signal.
var ErrMismatchedHashAndPassword = goerrors.New("password does not match stored hash", goerrors.CategoryAuth).
	WithCode(goerrors.CodeUnauthorized)

// ErrNoEmptyString rejects empty passwords before hashing.
var ErrNoEmptyString = goerrors.New("password must not be empty", goerrors.CategoryBadInput).
	WithCode(goerrors.CodeBadRequest)

// ErrIdentityNotFound is the error we return for non found identities
var ErrIdentityNotFound = goerrors.New("identity not found", goerrors.CategoryNotFound).
	WithCode(goerrors.CodeNotFound)

// ErrUnableToFindSession is the error when our request has no cookie
var ErrUnableToFindSession = goerrors.New("unable to find session", goerrors.CategoryAuth).
	WithCode(goerrors.CodeUnauthorized)

// ErrUnableToDecodeSession unable to decode JWT from session cookie
var ErrUnableToDecodeSession = goerrors.New("unable to decode session", goerrors.CategoryAuth).
	WithCode(goerrors.CodeUnauthorized)

// IsTokenExpiredError will check for expired tokens
func IsTokenExpiredError(err error) bool {
	if err == nil {
		return false
	}

	var richErr *goerrors.Error
	if goerrors.As(err, &richErr) && richErr.TextCode == TextCodeTokenExpired {
		return true
	}
	return strings.Contains(err.Error(), "token is expired")
}

// IsAuthRequiredError detects requests that carried no token at all, as
// opposed to a token that was present but unusable.
func IsAuthRequiredError(err error) bool {
	if err == nil {
		return false
	}

	var richErr *goerrors.Error
	if goerrors.As(err, &richErr) && richErr.TextCode == TextCodeAuthRequired {
		return true
	}
	return strings.Contains(err.Error(), "missing JWT")
}

// IsMalformedError will check for error message
func IsMalformedError(err error) bool {
	if err == nil {
		return false
	}

	var richErr *goerrors.Error
	if goerrors.As(err, &richErr) && richErr.TextCode == TextCodeTokenMalformed {
		return true
	}
	return strings.Contains(err.Error(), "token is malformed") ||
		strings.Contains(err.Error(), "missing or malformed JWT")
}

// IsDuplicateValueError detects unique constraint violations coming out
// of the credential store. Both sqlite and postgres drivers surface the
// failure only through the message text.
func IsDuplicateValueError(err error) bool {
	if err == nil {
		return false
	}

	var richErr *goerrors.Error
	if goerrors.As(err, &richErr) && richErr.TextCode == TextCodeDuplicateValue {
		return true
	}

	msg := err.Error()
	return strings.Contains(msg, "UNIQUE constraint failed") ||
		strings.Contains(msg, "duplicate key value violates unique constraint")
}

// IsInvalidIdentifierError detects malformed identifier lookups, the
// closest analog of a document-store cast error.
func IsInvalidIdentifierError(err error) bool {
	if err == nil {
		return false
	}
	return strings.Contains(err.Error(), "invalid UUID")
}
