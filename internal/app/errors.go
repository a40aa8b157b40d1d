package service

import "errors"

// Sentinel kinds for service errors.
var (
	ErrNotAuthenticated = errors.New("not authenticated")
	ErrInvalidArgument  = errors.New("invalid argument")
)
