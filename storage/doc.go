// Package storage persists uploaded files on the local filesystem.
//
// Every operation resolves its target through a single path predicate
// that confines access to the configured root directory. Any name that
// resolves outside the root fails closed with ErrInvalidPath, on both
// the write and the read path.
package storage
