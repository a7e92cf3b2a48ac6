package database

import "errors"

// ErrNotFound is returned when a requested run or dataset does not exist
var ErrNotFound = errors.New("entity not found")
