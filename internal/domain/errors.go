package domain

import "errors"

var (
	ErrCatalog         = errors.New("catalog error")
	ErrUnknownItem     = errors.New("unknown item")
	ErrInvalidQuantity = errors.New("invalid quantity")
	ErrEmptyOrder      = errors.New("empty order")
	ErrInvalidInput    = errors.New("invalid input")
	ErrPersistence     = errors.New("persistence error")
	ErrNotFound        = errors.New("not found")
)

// IsValidation reports whether err is a user-input error that should be
// rejected without side effects.
func IsValidation(err error) bool {
	return errors.Is(err, ErrUnknownItem) ||
		errors.Is(err, ErrInvalidQuantity) ||
		errors.Is(err, ErrEmptyOrder) ||
		errors.Is(err, ErrInvalidInput)
}
