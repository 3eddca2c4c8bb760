package brokerauth

import (
	"strings"

	"github.com/goliatone/go-errors"
)

// ErrMissingToken is returned when the login payload carries no identity token
var ErrMissingToken = errors.New("Missing idToken", errors.CategoryBadInput).
	WithTextCode("MISSING_ID_TOKEN").
	WithCode(errors.CodeBadRequest)

// ErrPhoneRequired is returned when a verified identity token has no phone claim
var ErrPhoneRequired = errors.New("Phone number required", errors.CategoryBadInput).
	WithTextCode("PHONE_REQUIRED").
	WithCode(errors.CodeBadRequest)

// ErrInvalidCredentials is the generic exchange failure; provider detail never
// reaches the client through this error
var ErrInvalidCredentials = errors.New("Invalid credentials", errors.CategoryAuth).
	WithTextCode("INVALID_CREDENTIALS").
	WithCode(errors.CodeUnauthorized)

// ErrUnauthorized is the error for absent or unverifiable sessions
var ErrUnauthorized = errors.New("Unauthorized", errors.CategoryAuth).
	WithTextCode("UNAUTHORIZED").
	WithCode(errors.CodeUnauthorized)

// ErrNotApproved is returned for authenticated users whose status is not ACTIVE
var ErrNotApproved = errors.New("Not approved", errors.CategoryAuthz).
	WithTextCode("NOT_APPROVED").
	WithCode(errors.CodeForbidden)

// ErrAdminRequired is returned for authenticated non-admin users on admin routes
var ErrAdminRequired = errors.New("Admin required", errors.CategoryAuthz).
	WithTextCode("ADMIN_REQUIRED").
	WithCode(errors.CodeForbidden)

// ErrNoValidFields is returned when an admin update carries no recognized field
var ErrNoValidFields = errors.New("No valid fields", errors.CategoryValidation).
	WithTextCode("NO_VALID_FIELDS").
	WithCode(errors.CodeBadRequest)

// IsUniqueViolation will check the driver error message for a uniqueness
// constraint failure; sqlite and postgres phrase it differently. The chain
// is walked so a wrapped driver error is still recognized.
func IsUniqueViolation(err error) bool {
	for err != nil {
		msg := err.Error()
		if strings.Contains(msg, "UNIQUE constraint failed") ||
			strings.Contains(msg, "duplicate key value violates unique constraint") {
			return true
		}

		u, ok := err.(interface{ Unwrap() error })
		if !ok {
			break
		}
		err = u.Unwrap()
	}
	return false
}
