package domain

import "errors"

var (
	ErrUserNotFound = errors.New("user not found")
	ErrEmailTaken   = errors.New("email has already been taken")
	ErrInvalidHash  = errors.New("invalid password hash")
)
