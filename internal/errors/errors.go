package errors

import (
	"github.com/cockroachdb/errors"
)

// Sentinel errors used to mark the class of a failure. Handlers map these
// to HTTP status codes; services never import net/http.
var (
	ErrValidation       = errors.New("validation error")
	ErrNotFound         = errors.New("not found")
	ErrAlreadyExists    = errors.New("already exists")
	ErrPermissionDenied = errors.New("permission denied")
	ErrInvalidOperation = errors.New("invalid operation")
	ErrRateLimit        = errors.New("rate limit exceeded")
	ErrSignature        = errors.New("signature verification failed")
	ErrDatabase         = errors.New("database error")
	ErrHTTPClient       = errors.New("http client error")
	ErrInternal         = errors.New("internal error")
	ErrSystem           = errors.New("system error")
)

// Is reports whether any error in err's chain matches target.
func Is(err, target error) bool {
	return errors.Is(err, target)
}

// As finds the first error in err's chain that matches target.
func As(err error, target any) bool {
	return errors.As(err, target)
}

func IsValidation(err error) bool {
	return errors.Is(err, ErrValidation)
}

func IsNotFound(err error) bool {
	return errors.Is(err, ErrNotFound)
}

func IsAlreadyExists(err error) bool {
	return errors.Is(err, ErrAlreadyExists)
}

func IsPermissionDenied(err error) bool {
	return errors.Is(err, ErrPermissionDenied)
}

func IsRateLimit(err error) bool {
	return errors.Is(err, ErrRateLimit)
}

func IsSignature(err error) bool {
	return errors.Is(err, ErrSignature)
}

func IsDatabase(err error) bool {
	return errors.Is(err, ErrDatabase)
}
