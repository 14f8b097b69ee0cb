// Package domain holds shared pieces of the domain services: validation
// errors and identifier helpers (in the ids subpackage).
package domain

import "errors"

// ErrInvalid marks input the caller can fix. Domain services wrap rejected
// payloads with it so the HTTP layer can answer 400 instead of 500.
var ErrInvalid = errors.New("invalid input")
