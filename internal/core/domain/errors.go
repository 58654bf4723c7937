package domain

import "errors"

// Business-rule rejections. Callers wrap them with fmt.Errorf("%w: ...")
// to attach a message and match them with errors.Is.
var (
	ErrValidation        = errors.New("validation error")
	ErrNotFound          = errors.New("not found")
	ErrSalesClosed       = errors.New("sales closed")
	ErrQuotaExceeded     = errors.New("quota exceeded")
	ErrInsufficientStock = errors.New("insufficient stock")
	ErrDuplicateRequest  = errors.New("duplicate request")
)

// Auth boundary.
var (
	ErrUsernameTaken      = errors.New("username already taken")
	ErrInvalidCredentials = errors.New("invalid username or password")
	ErrUnauthenticated    = errors.New("unauthenticated")
	ErrForbidden          = errors.New("forbidden")
)

var (
	// ErrOptimisticLock is returned by storage when a versioned update
	// matched no row.
	ErrOptimisticLock = errors.New("optimistic lock conflict")

	// ErrConflict means the transaction lost to concurrent work or ran
	// out of time. Retrying the whole request is safe.
	ErrConflict = errors.New("conflict, please retry")
)
