package domain

import "errors"

var (
	ErrTargetNotFound    = errors.New("target user not found")
	ErrNoActiveRoom      = errors.New("connection has no active room")
	ErrInvalidPayload    = errors.New("invalid event payload")
	ErrUnknownEvent      = errors.New("unknown event")
	ErrUnknownConnection = errors.New("unknown connection")
	ErrConnectionExists  = errors.New("connection already registered")
	ErrHubClosed         = errors.New("session hub is closed")
)
