package storage

import "errors"

var (
	// ErrNotFound is returned when an update targets a missing row
	ErrNotFound = errors.New("not found")

	// ErrDuplicate is returned when a unique constraint fails
	ErrDuplicate = errors.New("duplicate entry")

	// ErrForeignKey is returned when a referenced row does not exist
	ErrForeignKey = errors.New("foreign key violation")
)
