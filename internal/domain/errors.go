package domain

import "errors"

var (
	ErrNotFound    = errors.New("not found")
	ErrUnavailable = errors.New("signal unavailable")
	ErrNoOutcomes  = errors.New("market has no outcomes")
	ErrLockHeld    = errors.New("lock already held")
	ErrNotEligible = errors.New("market not eligible for settlement")
)
