package commands

import "errors"

// Errors.
var (
	ErrUnknownCommand  = errors.New("commands: unknown command")
	ErrInvalidArgument = errors.New("commands: invalid argument")
	ErrCommandExists   = errors.New("commands: command already registered")
)
