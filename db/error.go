package db

import (
	"github.com/cockroachdb/errors"
)

var (
	ErrInternal = errors.New("internal error")

	ErrNotFound = errors.New("not found")

	// ErrUnverified means a value's signature does not match its origin,
	// errors carrying it also match crds.ErrSignatureInvalid
	ErrUnverified = errors.New("unverified value")
)
