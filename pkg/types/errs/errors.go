package errs

import "errors"

var (
	ErrRecordNotFound = errors.New("record not found")
	ErrInvalidPayload = errors.New("invalid message payload")
)
