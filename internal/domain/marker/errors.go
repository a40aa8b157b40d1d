package marker

import "errors"

// Sentinel kinds for marker configuration errors.
var (
	ErrInvalidMarkerDefinition = errors.New("invalid marker definition")
)
