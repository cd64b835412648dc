package core

import (
	"errors"
	"fmt"
)

// ValidationError reports malformed or out-of-range input for a single field.
type ValidationError struct {
	Field  string
	Reason string
}

func (e *ValidationError) Error() string {
	return fmt.Sprintf("invalid %s: %s", e.Field, e.Reason)
}

// DuplicateError reports a category name that already exists.
type DuplicateError struct {
	Name string
}

func (e *DuplicateError) Error() string {
	return fmt.Sprintf("category %q already exists", e.Name)
}

// InvalidBackupError reports a snapshot that cannot be restored.
type InvalidBackupError struct {
	Reason string
	Err    error
}

func (e *InvalidBackupError) Error() string {
	if e.Err != nil {
		return fmt.Sprintf("invalid backup: %s: %v", e.Reason, e.Err)
	}
	return "invalid backup: " + e.Reason
}

func (e *InvalidBackupError) Unwrap() error { return e.Err }

// StorageError wraps a persistence adapter failure.
type StorageError struct {
	Op  string
	Key string
	Err error
}

func (e *StorageError) Error() string {
	if e.Key == "" {
		return fmt.Sprintf("storage %s: %v", e.Op, e.Err)
	}
	return fmt.Sprintf("storage %s %s: %v", e.Op, e.Key, e.Err)
}

func (e *StorageError) Unwrap() error { return e.Err }

func IsValidation(err error) bool {
	var target *ValidationError
	return errors.As(err, &target)
}

func IsDuplicate(err error) bool {
	var target *DuplicateError
	return errors.As(err, &target)
}

func IsInvalidBackup(err error) bool {
	var target *InvalidBackupError
	return errors.As(err, &target)
}

func IsStorage(err error) bool {
	var target *StorageError
	return errors.As(err, &target)
}
