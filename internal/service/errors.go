package service

import "errors"

// Sentinel errors mapped to response codes by the handlers.
var (
	ErrPaperNotFound    = errors.New("paper not found")
	ErrJobNotFound      = errors.New("job not found")
	ErrQueueUnavailable = errors.New("submission queue unavailable")
)
