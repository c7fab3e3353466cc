package launch

import (
	"fmt"
	"io/fs"
	"strings"

	"github.com/pkg/errors"
)

// TemplateNotFoundError is returned when no description template exists for an arm type. It
// matches fs.ErrNotExist.
type TemplateNotFoundError struct {
	ArmType   string
	Path      string
	Available []string
}

// NewTemplateNotFoundError returns an error for a missing description template.
func NewTemplateNotFoundError(armType, path string, available []string) error {
	return &TemplateNotFoundError{ArmType: armType, Path: path, Available: available}
}

func (e *TemplateNotFoundError) Error() string {
	msg := fmt.Sprintf("no description template for arm type %q: %s does not exist", e.ArmType, e.Path)
	if len(e.Available) > 0 {
		msg += fmt.Sprintf(" (available: %s)", strings.Join(e.Available, ", "))
	}
	return msg
}

// Is reports whether target is fs.ErrNotExist.
func (e *TemplateNotFoundError) Is(target error) bool {
	return target == fs.ErrNotExist
}

// MissingArgumentError is returned when a required launch argument was not given.
type MissingArgumentError struct {
	Name string
}

// NewMissingArgumentError returns an error for a required launch argument that was not given.
func NewMissingArgumentError(name string) error {
	return &MissingArgumentError{Name: name}
}

func (e *MissingArgumentError) Error() string {
	return fmt.Sprintf("missing required launch argument '%s'", e.Name)
}

// NewUnknownArgumentError is used when launch arguments are given that the launch does not
// declare.
func NewUnknownArgumentError(names, declared []string) error {
	return errors.Errorf("unknown launch arguments [%s], expected one of [%s]",
		strings.Join(names, ", "), strings.Join(declared, ", "))
}
