package domain

import "errors"

var (
	ErrNotFound        = errors.New("not found")
	ErrNoSignableMemo  = errors.New("no signable memo")
	ErrUnknownJobName  = errors.New("unknown job name")
	ErrInvalidPayload  = errors.New("invalid job payload")
	ErrFareUnavailable = errors.New("fare unavailable")
	ErrSigningFailed   = errors.New("signing failed")
	ErrWSDisconnect    = errors.New("websocket disconnected")
	ErrContextDone     = errors.New("context cancelled")
	ErrLockHeld        = errors.New("lock already held")
)
