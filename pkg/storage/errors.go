package storage

import "github.com/catalyst-dev/catalyst-creds/pkg/secrets"

var (
	// ErrNotFound is returned when a requested record does not exist.
	ErrNotFound = secrets.ErrNotFound

	// ErrAlreadyExists is returned when a write loses a uniqueness race.
	ErrAlreadyExists = secrets.ErrAlreadyExists
)
