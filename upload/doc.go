// Package upload implements the validation pipeline that stands between
// untrusted file uploads and durable storage.
//
// An upload is accepted only after passing every stage in a fixed order:
// extension pre-check, safe name assignment, path-confined write, on-disk
// size re-measurement, content-sniffed type detection, extension/type
// cross-validation, threat scan, and integrity hashing. Any stage failure
// removes the on-disk file before the rejection is returned, so a stored
// file always implies the full pipeline passed.
//
// The pipeline holds no state across invocations; every accepted file is
// independent and reachable only by its generated storage name.
package upload
