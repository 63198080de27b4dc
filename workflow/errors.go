package workflow

import "errors"

var (
	ErrNotFound         = errors.New("not found")
	ErrConflict         = errors.New("conflict")
	ErrExhausted        = errors.New("asset out of stock")
	ErrCapacityExceeded = errors.New("employee limit reached, upgrade your package")
	ErrInvalidInput     = errors.New("invalid input")
	ErrForbidden        = errors.New("forbidden")
)
