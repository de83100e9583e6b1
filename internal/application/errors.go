package application

import "errors"

var (
	ErrValidation    = errors.New("validation failed")
	ErrNotFound      = errors.New("not found")
	ErrTerminalState = errors.New("transaction already resolved")
)
