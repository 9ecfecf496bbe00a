package crds

import "github.com/cockroachdb/errors"

var (
	// ErrEncoding means a value could not be canonically serialized; it is a
	// programming defect, the call producing it must be abandoned
	ErrEncoding = errors.New("crds encoding failed")

	// ErrSignatureInvalid means a record failed verification; the record is dropped
	ErrSignatureInvalid = errors.New("invalid signature")

	// ErrPartitionParameter means a caller passed an impossible shard parameter
	ErrPartitionParameter = errors.New("invalid partition parameter")

	// ErrUnimplementedVariant means an attempt to give content to a reserved variant
	ErrUnimplementedVariant = errors.New("unimplemented crds variant")

	// ErrSanitize means a decoded record carries out of range values
	ErrSanitize = errors.New("crds value failed sanitize")
)

func sanitizeErrorf(format string, args ...interface{}) error {
	return errors.Wrapf(ErrSanitize, format, args...)
}

func checkWallclock(wallclock uint64) error {
	if wallclock >= MaxWallclock {
		return sanitizeErrorf("wallclock %d out of bounds", wallclock)
	}
	return nil
}

func checkSlot(slot uint64) error {
	if slot >= MaxSlot {
		return sanitizeErrorf("slot %d out of bounds", slot)
	}
	return nil
}
