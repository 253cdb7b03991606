package autotest

import "errors"

// Common errors
var (
	ErrProjectNotFound     = errors.New("project not found")
	ErrTaskNotFound        = errors.New("task not found")
	ErrEnvironmentNotFound = errors.New("environment not found")
	ErrProjectExists       = errors.New("project already exists")
	ErrEnvironmentExists   = errors.New("environment already exists")
	ErrInvalidInput        = errors.New("invalid input")
)
