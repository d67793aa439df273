package tiffglob

import "errors"

// Common errors
var (
	// ErrNoFiles is returned when a file source resolves to zero files.
	ErrNoFiles = errors.New("no files found matching glob pattern")

	// ErrInvalidArgument covers malformed construction inputs.
	ErrInvalidArgument = errors.New("invalid argument")

	// ErrConflictingArguments is returned when supplied dimension
	// orders or channel names disagree with the realized scenes/shapes.
	ErrConflictingArguments = errors.New("conflicting arguments")

	// ErrUnsupportedFormat is returned when the first probed file does
	// not open as a recognized image container.
	ErrUnsupportedFormat = errors.New("unsupported file format")
)
