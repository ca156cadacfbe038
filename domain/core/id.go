package core

import (
	"fmt"
	"strings"

	"github.com/google/uuid"
)

// ID represents a domain identifier
type ID string

// NewID creates a new unique identifier using UUID v7 for time-ordered generation
func NewID() ID {
	id, err := uuid.NewV7()
	if err != nil {
		id = uuid.New()
	}
	return ID(id.String())
}

// String returns the string representation
func (id ID) String() string {
	return string(id)
}

// IsEmpty checks if the ID is empty
func (id ID) IsEmpty() bool {
	return id == ""
}

// Run identifiers, one per import or tagging pass. They tag log lines so a
// run can be followed across adapters.
type (
	ImportID ID
	RunID    ID
)

func (id ImportID) String() string { return ID(id).String() }
func (id RunID) String() string    { return ID(id).String() }

// NewImportID returns a fresh import identifier
func NewImportID() ImportID { return ImportID(NewID()) }

// NewRunID returns a fresh tagging run identifier
func NewRunID() RunID { return RunID(NewID()) }

// StudyName identifies a study across data/ and config/ directories.
type StudyName string

// ParseStudyName rejects empty names and names that would escape a study directory.
func ParseStudyName(s string) (StudyName, error) {
	name := strings.TrimSpace(s)
	if name == "" {
		return "", fmt.Errorf("study name cannot be empty")
	}
	if name == "." || name == ".." || strings.ContainsAny(name, `/\`) {
		return "", fmt.Errorf("invalid study name %q", s)
	}
	return StudyName(name), nil
}

func (s StudyName) String() string { return string(s) }
