// Package types defines the core domain types for the file manager.
package types

import (
	"fmt"
	"time"
)

// EntryType is the kind of object an index entry tracks.
type EntryType string

const (
	TypeFile      EntryType = "file"
	TypeDirectory EntryType = "directory"
)

// Valid reports whether t is one of the known entry types.
func (t EntryType) Valid() bool {
	return t == TypeFile || t == TypeDirectory
}

// Label returns the display name used in index listings.
func (t EntryType) Label() string {
	switch t {
	case TypeFile:
		return "File"
	case TypeDirectory:
		return "Directory"
	default:
		return string(t)
	}
}

// Capability is an access right requested against an entry.
type Capability string

const (
	CapRead  Capability = "read"
	CapWrite Capability = "write"
)

// Permissions holds the coarse permission flags stored with an entry.
// The flags govern access by users other than the owner.
type Permissions struct {
	Read  bool `json:"read"`
	Write bool `json:"write"`
}

// String renders the flags the way index listings show them.
func (p Permissions) String() string {
	return fmt.Sprintf("Read: %s, Write: %s", yesNo(p.Read), yesNo(p.Write))
}

func yesNo(b bool) string {
	if b {
		return "Yes"
	}
	return "No"
}

// Entry is the metadata record for one tracked file or directory.
// Path is the index key and is not serialized inside the record.
type Entry struct {
	Path        string      `json:"-"`
	Type        EntryType   `json:"type"`
	Owner       string      `json:"user"`
	Permissions Permissions `json:"permissions"`
}

// IsFile reports whether the entry tracks a regular file.
func (e Entry) IsFile() bool { return e.Type == TypeFile }

// IsDir reports whether the entry tracks a directory.
func (e Entry) IsDir() bool { return e.Type == TypeDirectory }

// EntryView is an index entry enriched with live object attributes,
// as produced for index listings.
type EntryView struct {
	Entry
	Size         int64     `json:"size"`
	LastModified time.Time `json:"last_modified"`
}

// SizeString renders the size column; directories have no size.
func (v EntryView) SizeString() string {
	if v.IsDir() {
		return "N/A"
	}
	return fmt.Sprintf("%d", v.Size)
}
