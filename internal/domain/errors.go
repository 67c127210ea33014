package domain

import "errors"

var (
	// ErrSessionNotFound is returned when a session id is unknown to the store.
	ErrSessionNotFound = errors.New("session not found")
)
