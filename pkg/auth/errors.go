package auth

import "errors"

var (
	ErrInvalidRole   = errors.New("auth: invalid role")
	ErrInvalidModule = errors.New("auth: invalid module")
	ErrInvalidUser   = errors.New("auth: invalid user")
)
