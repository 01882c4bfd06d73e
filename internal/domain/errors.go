package domain

import "errors"

var (
	// ErrMalformed is returned when the invocation payload is not valid JSON
	// of the expected shape.
	ErrMalformed = errors.New("invalid JSON input")

	// ErrMissingCode is returned when the payload has no code or the code is empty.
	ErrMissingCode = errors.New("no code provided")

	// ErrCodeTooLarge is returned when the code exceeds the configured size limit.
	ErrCodeTooLarge = errors.New("code exceeds maximum length")

	// ErrJobNotFound is returned when a job row does not exist.
	ErrJobNotFound = errors.New("job not found")

	// ErrPublishFailed is returned when the message broker publish fails.
	ErrPublishFailed = errors.New("failed to publish job to message queue")
)
