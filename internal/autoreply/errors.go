package autoreply

import "errors"

// Sentinel errors for the auto-reply service layer.
var (
	ErrLogNotFound     = errors.New("auto reply log not found")
	ErrProfileNotFound = errors.New("property profile not found")
	ErrEmptyEdit       = errors.New("edited text must not be empty")
	ErrDraftInProgress = errors.New("a draft for this message is already in progress")
)
