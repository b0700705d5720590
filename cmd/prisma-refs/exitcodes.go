package main

// Exit codes.
const (
	ExitSuccess      = 0 // Success
	ExitError        = 1 // General error (invalid arguments, runtime failure)
	ExitConfigError  = 2 // Configuration error (missing input dir, invalid values)
	ExitServiceError = 3 // Extraction service could not be made available
)
