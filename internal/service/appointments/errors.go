package appointments

import "errors"

type ValidationError struct {
	msg string
}

func (e *ValidationError) Error() string {
	return e.msg
}

func validationError(msg string) error {
	return &ValidationError{msg: msg}
}

var (
	ErrCustomerNotFound    = errors.New("customer not found")
	ErrStaffNotFound       = errors.New("staff not found")
	ErrServiceNotFound     = errors.New("service not found")
	ErrAppointmentNotFound = errors.New("appointment not found")

	ErrForbidden        = errors.New("appointment belongs to another customer")
	ErrSlotUnavailable  = errors.New("slot unavailable")
	ErrAlreadyCancelled = errors.New("appointment already cancelled")

	ErrIdempotencyConflict = errors.New("idempotency key reused with different details")
)

// IsNotFound reports whether err is one of the not-found errors above.
func IsNotFound(err error) bool {
	return errors.Is(err, ErrCustomerNotFound) ||
		errors.Is(err, ErrStaffNotFound) ||
		errors.Is(err, ErrServiceNotFound) ||
		errors.Is(err, ErrAppointmentNotFound)
}
