package queue

import "errors"

// ErrNotClaimed indicates a status transition lost the race: the item was not
// in the state the transition requires when the update ran.
var ErrNotClaimed = errors.New("queue item not claimed")

// ErrNotFound indicates no queue item matched the requested identifier.
var ErrNotFound = errors.New("queue item not found")
