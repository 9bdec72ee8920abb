package upload

import "errors"

var (
	// ErrNoFile is returned when the request carries no file part.
	ErrNoFile = errors.New("no file provided")

	// ErrNoFilename is returned when the file part has an empty filename.
	ErrNoFilename = errors.New("no file selected")

	// ErrExtensionNotAllowed is returned when the filename extension is
	// not in the allow-list.
	ErrExtensionNotAllowed = errors.New("file extension not allowed")

	// ErrMIMETypeNotAllowed is returned when the sniffed MIME type is not
	// in the allow-list.
	ErrMIMETypeNotAllowed = errors.New("MIME type not allowed")

	// ErrExtensionMismatch is returned when the extension is not among
	// those registered for the sniffed MIME type.
	ErrExtensionMismatch = errors.New("extension does not match detected MIME type")

	// ErrUndetectableType is returned when the file's content type cannot
	// be determined from its leading bytes.
	ErrUndetectableType = errors.New("could not verify file type")

	// ErrFileTooLarge is returned when the stored file exceeds the size ceiling.
	ErrFileTooLarge = errors.New("file size exceeds maximum allowed size")

	// ErrThreatDetected is returned when the scanner reports the file unclean.
	ErrThreatDetected = errors.New("file failed security scan")

	// ErrScanUnavailable is returned when the scanner itself fails.
	ErrScanUnavailable = errors.New("threat scan unavailable")

	// ErrInvalidPolicy is returned when an allow-list definition is malformed.
	ErrInvalidPolicy = errors.New("invalid type policy")
)
