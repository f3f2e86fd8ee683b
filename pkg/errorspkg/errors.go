// Package errorspkg provides common app errors.
package errorspkg

import "errors"

// ErrInternal indicates internal server error, typically an unavailable storage.
var ErrInternal = errors.New("internal")
