package domain

import "errors"

// Model errors. Both are input-validation rejections; the core never retries.
var (
	// ErrInvalidParameter is returned before any sampling when alpha, gamma,
	// rounds, strength or an overlay input is out of range.
	ErrInvalidParameter = errors.New("invalid parameter")

	// ErrDivisionByZero is returned when a ratio has a zero denominator,
	// e.g. efficiency advantage at alpha == 0.
	ErrDivisionByZero = errors.New("division by zero")
)
