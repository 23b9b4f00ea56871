package domain

import "errors"

var (
	// Common domain errors
	ErrNoActiveSession = errors.New("no active session for chat")
	ErrUnknownUser     = errors.New("user not seen before")
)
