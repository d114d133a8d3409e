package domain

import "errors"

var (
	ErrNotFound      = errors.New("not found")
	ErrUnauthorized  = errors.New("unauthorized")
	ErrDuplicate     = errors.New("already exists")
	ErrCodeUsed      = errors.New("registration code already used")
	ErrCodeExpired   = errors.New("registration code expired")
	ErrCodeInvalid   = errors.New("registration code invalid")
	ErrBadCredential = errors.New("invalid username or password")
)
