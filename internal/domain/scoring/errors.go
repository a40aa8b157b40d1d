package scoring

import "errors"

// ErrNoScorableData is returned when no category has any marker with data.
var ErrNoScorableData = errors.New("no scorable data")
