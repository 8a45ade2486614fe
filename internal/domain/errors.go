package domain

import "errors"

var (
	ErrNotFound          = errors.New("donation not found")
	ErrInvalidTransition = errors.New("invalid status transition")
	ErrUnauthorized      = errors.New("actor not permitted")
	ErrExpired           = errors.New("donation expired")
	ErrInvalidInput      = errors.New("invalid input")
)
