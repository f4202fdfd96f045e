// Package apperr defines the error taxonomy shared by every layer of the
// server. Handlers map these kinds onto HTTP statuses; everything else
// wraps them with fmt.Errorf("%w: ...") so the reason travels with the kind.
package apperr

import (
	"errors"
	"fmt"
)

var (
	// ErrNotFound: the referenced node, edge, context, or file does not exist.
	ErrNotFound = errors.New("not found")
	// ErrAlreadyExists: a node path, edge pair, or file would be duplicated.
	ErrAlreadyExists = errors.New("already exists")
	// ErrRejected: the caller asked for something forbidden (outside-vault
	// path, contains-edge tampering, illegal name, cycle-creating move).
	ErrRejected = errors.New("rejected")
	// ErrInvariant: applying the operation would leave the graph inconsistent.
	ErrInvariant = errors.New("invariant violation")
	// ErrFilesystem: an operation against the vault filesystem failed.
	ErrFilesystem = errors.New("filesystem error")
	// ErrStorage: the storage primitive failed.
	ErrStorage = errors.New("storage error")
	// ErrSerialization: a document could not be encoded or decoded.
	ErrSerialization = errors.New("serialization error")
)

// NotFoundf attaches a reason to ErrNotFound.
func NotFoundf(format string, args ...any) error {
	return fmt.Errorf("%w: %s", ErrNotFound, fmt.Sprintf(format, args...))
}

// AlreadyExistsf attaches a reason to ErrAlreadyExists.
func AlreadyExistsf(format string, args ...any) error {
	return fmt.Errorf("%w: %s", ErrAlreadyExists, fmt.Sprintf(format, args...))
}

// Rejectedf attaches a reason to ErrRejected.
func Rejectedf(format string, args ...any) error {
	return fmt.Errorf("%w: %s", ErrRejected, fmt.Sprintf(format, args...))
}

// Invariantf attaches a reason to ErrInvariant.
func Invariantf(format string, args ...any) error {
	return fmt.Errorf("%w: %s", ErrInvariant, fmt.Sprintf(format, args...))
}

// Filesystem wraps an underlying I/O error as ErrFilesystem.
func Filesystem(op string, err error) error {
	return fmt.Errorf("%w: %s: %v", ErrFilesystem, op, err)
}

// Storage wraps a storage-primitive error as ErrStorage.
func Storage(op string, err error) error {
	return fmt.Errorf("%w: %s: %v", ErrStorage, op, err)
}

// Serialization wraps an encode/decode error as ErrSerialization.
func Serialization(op string, err error) error {
	return fmt.Errorf("%w: %s: %v", ErrSerialization, op, err)
}

// Kind returns the taxonomy sentinel err belongs to, or nil when it carries
// none. Lets handlers and logs report the kind apart from the reason.
func Kind(err error) error {
	for _, k := range []error{
		ErrNotFound, ErrAlreadyExists, ErrRejected, ErrInvariant,
		ErrFilesystem, ErrStorage, ErrSerialization,
	} {
		if errors.Is(err, k) {
			return k
		}
	}
	return nil
}
