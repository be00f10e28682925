package fs

import (
	"github.com/ajaxzhan/filekeeper/pkg/types"
)

// PermissionEvaluator decides whether a user may act on an index entry.
type PermissionEvaluator interface {
	// CanAccess reports whether user holds capability on entry.
	// The owner always passes, whatever the stored flags say.
	CanAccess(entry types.Entry, user string, capability types.Capability) bool

	// CanChangeMode reports whether user may change entry's permissions.
	// Only the owner may.
	CanChangeMode(entry types.Entry, user string) bool

	// IsAdmin reports whether user holds the admin role.
	IsAdmin(user string) bool

	// CheckRead returns a *types.PermissionError if reading is denied.
	CheckRead(entry types.Entry, user string) error

	// CheckWrite returns a *types.PermissionError if writing is denied.
	CheckWrite(entry types.Entry, user string) error

	// CheckChangeMode returns a *types.PermissionError if chmod is denied.
	CheckChangeMode(entry types.Entry, user string) error
}

// permissionEvaluator is the default implementation of PermissionEvaluator.
type permissionEvaluator struct {
	admin string
}

// NewPermissionEvaluator creates an evaluator that treats admin as the
// privileged identifier.
func NewPermissionEvaluator(admin string) PermissionEvaluator {
	return &permissionEvaluator{admin: admin}
}

// IsAdmin reports whether user is the privileged identifier.
func (pe *permissionEvaluator) IsAdmin(user string) bool {
	return user != "" && user == pe.admin
}

// CanAccess implements the flag-or-owner rule.
func (pe *permissionEvaluator) CanAccess(entry types.Entry, user string, capability types.Capability) bool {
	if entry.Owner == user {
		return true
	}
	switch capability {
	case types.CapRead:
		return entry.Permissions.Read
	case types.CapWrite:
		return entry.Permissions.Write
	default:
		return false
	}
}

// CanChangeMode has no flag override.
func (pe *permissionEvaluator) CanChangeMode(entry types.Entry, user string) bool {
	return entry.Owner == user
}

// CheckRead checks if the entry can be read by user.
func (pe *permissionEvaluator) CheckRead(entry types.Entry, user string) error {
	if !pe.CanAccess(entry, user, types.CapRead) {
		return &types.PermissionError{Path: entry.Path, Operation: "read", User: user}
	}
	return nil
}

// CheckWrite checks if the entry can be written by user.
func (pe *permissionEvaluator) CheckWrite(entry types.Entry, user string) error {
	if !pe.CanAccess(entry, user, types.CapWrite) {
		return &types.PermissionError{Path: entry.Path, Operation: "write", User: user}
	}
	return nil
}

// CheckChangeMode checks if user may change the entry's permissions.
func (pe *permissionEvaluator) CheckChangeMode(entry types.Entry, user string) error {
	if !pe.CanChangeMode(entry, user) {
		return &types.PermissionError{Path: entry.Path, Operation: "change permissions of", User: user}
	}
	return nil
}

// DefaultPermissions returns the flags a new entry created by user receives.
func DefaultPermissions(pe PermissionEvaluator, user string) types.Permissions {
	return types.Permissions{Read: true, Write: pe.IsAdmin(user)}
}
