package errors

import "errors"

// Meeting resolution errors, surfaced to the client as distinct close codes
var (
	ErrMeetingNotFound = errors.New("meeting not found")
	ErrMeetingFinished = errors.New("meeting already finished")
)
