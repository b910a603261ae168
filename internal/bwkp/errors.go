package bwkp

import (
	"errors"
	"fmt"
)

var (
	// ErrPrecondition marks failures detected before any traversal starts.
	ErrPrecondition = errors.New("precondition failed")

	// ErrIntegrity marks vault data the exporter cannot model. These must be
	// fixed in the source vault; they are never skipped.
	ErrIntegrity = errors.New("vault data integrity error")

	// ErrVaultNotUnlocked is returned when the vault client is not unlocked.
	ErrVaultNotUnlocked = fmt.Errorf("%w: vault is not unlocked", ErrPrecondition)

	// ErrDestinationExists is returned when a store is opened over existing data.
	ErrDestinationExists = fmt.Errorf("%w: destination already exists", ErrPrecondition)

	// ErrEmptyGroupPath is returned for group paths with no segments.
	ErrEmptyGroupPath = errors.New("empty group path")

	// ErrDuplicateField is returned by stores when a custom field name is reused.
	ErrDuplicateField = errors.New("duplicate custom field name")

	// ErrDuplicateAttachment is returned by stores when an attachment name is reused.
	ErrDuplicateAttachment = errors.New("duplicate attachment file name")
)

// EntryBuildError reports the first fault hit while materializing one item.
type EntryBuildError struct {
	ItemID   string
	ItemName string
	Err      error
}

func (e *EntryBuildError) Error() string {
	return fmt.Sprintf("building entry for item %s (%q): %v", e.ItemID, e.ItemName, e.Err)
}

func (e *EntryBuildError) Unwrap() error { return e.Err }

// integrityErrorf formats an error wrapping ErrIntegrity.
func integrityErrorf(format string, args ...any) error {
	return fmt.Errorf("%w: %s", ErrIntegrity, fmt.Sprintf(format, args...))
}
