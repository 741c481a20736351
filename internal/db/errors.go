package db

import "fmt"

// NoCompileCommandError is returned when no translation unit in the
// database transitively includes the requested file, so no compile
// command can be resolved for it.
type NoCompileCommandError struct {
	File string
}

func (e *NoCompileCommandError) Error() string {
	return fmt.Sprintf("no compile command for file %q", e.File)
}

// UnknownFileError is returned when an operation references a file
// name that has not been registered with the store.
type UnknownFileError struct {
	File string
}

func (e *UnknownFileError) Error() string {
	return fmt.Sprintf("unknown file %q", e.File)
}

// StatFailedError wraps a filesystem stat failure in BeginFile.
// NextFile does not return it: a failed stat on a reindex candidate is
// handled there by removing the file and continuing.
type StatFailedError struct {
	File string
	Err  error
}

func (e *StatFailedError) Error() string {
	return fmt.Sprintf("stat %q: %v", e.File, e.Err)
}

func (e *StatFailedError) Unwrap() error { return e.Err }
