package storage

import "errors"

var (
	// ErrInvalidConfig is returned when the storage root is not configured.
	ErrInvalidConfig = errors.New("storage root directory is required")

	// ErrInvalidPath is returned when a name resolves outside the storage root.
	ErrInvalidPath = errors.New("invalid path")

	// ErrNotFound is returned when a file does not exist.
	ErrNotFound = errors.New("file not found")

	// ErrAlreadyExists is returned when saving under a name that is taken.
	ErrAlreadyExists = errors.New("file already exists")

	// ErrFailedToCreateDirectory is returned when the root cannot be created.
	ErrFailedToCreateDirectory = errors.New("failed to create directory")

	// ErrFailedToCreateFile is returned when a file cannot be created.
	ErrFailedToCreateFile = errors.New("failed to create file")

	// ErrFailedToWriteFile is returned when a file cannot be written.
	ErrFailedToWriteFile = errors.New("failed to write file")

	// ErrFailedToReadFile is returned when a file cannot be read.
	ErrFailedToReadFile = errors.New("failed to read file")

	// ErrFailedToDeleteFile is returned when a file cannot be deleted.
	ErrFailedToDeleteFile = errors.New("failed to delete file")

	// ErrFailedToStatPath is returned when file info cannot be obtained.
	ErrFailedToStatPath = errors.New("failed to stat path")
)
