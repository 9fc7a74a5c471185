package drive

import (
	"errors"
	"fmt"
)

var (
	// ErrNotAuthenticated is returned by every Gateway operation while no account is signed in.
	ErrNotAuthenticated = errors.New("not authenticated")

	// ErrRetrieval wraps failures while listing documents.
	ErrRetrieval = errors.New("failed to get files")

	// ErrNotOwner is matched by OwnershipError.
	ErrNotOwner = errors.New("not the file owner")

	// ErrPermissionNotFound is returned when the writer permission granted to
	// the receiver does not show up in the file's permission list.
	ErrPermissionNotFound = errors.New("could not find writer permission for receiver")
)

// OwnershipError reports that the signed-in account does not own the file.
type OwnershipError struct {
	Owner  string
	Caller string
}

func (e *OwnershipError) Error() string {
	return fmt.Sprintf("You don't own this file. Current owner: %s. You are signed in as: %s", e.Owner, e.Caller)
}

// Is makes errors.Is(err, ErrNotOwner) match.
func (e *OwnershipError) Is(target error) bool {
	return target == ErrNotOwner
}

// TransferError reports which step of an ownership transfer failed.
// Its message is the message of the underlying error.
type TransferError struct {
	// Step is the step that failed.
	Step TransferStep

	// Reached is the last state the transfer reached before failing.
	Reached TransferState

	// Err is the underlying failure.
	Err error

	// GrantedPermissionID is the writer permission created by the grant step, if any.
	GrantedPermissionID string

	// RolledBack is true when the granted permission was removed again.
	RolledBack bool

	// RollbackErr is set when removing the granted permission failed.
	RollbackErr error
}

func (e *TransferError) Error() string {
	return e.Err.Error()
}

func (e *TransferError) Unwrap() error {
	return e.Err
}
