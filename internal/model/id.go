package model

import (
	"github.com/google/uuid"
	"github.com/oklog/ulid/v2"
)

// NewID generates a new ULID string for use as an execution identifier.
func NewID() string {
	return ulid.Make().String()
}

// NewCorrelationID generates a random UUID used to correlate log lines of one
// request across components when the caller did not supply one.
func NewCorrelationID() string {
	return uuid.NewString()
}
