package inbox

import "errors"

// Sentinel errors for the inbox service layer.
var (
	ErrNotFound      = errors.New("message not found")
	ErrDuplicate     = errors.New("message already ingested")
	ErrInvalidIntent = errors.New("intent is not in the closed set")
)
