package xacro

import (
	"fmt"

	"github.com/pkg/errors"
)

// UndefinedArgumentError is returned when $(arg name) names an argument that was neither mapped
// by the caller nor declared with a default.
type UndefinedArgumentError struct {
	Name string
}

// NewUndefinedArgumentError returns an error for an unresolved $(arg name).
func NewUndefinedArgumentError(name string) error {
	return &UndefinedArgumentError{Name: name}
}

func (e *UndefinedArgumentError) Error() string {
	return fmt.Sprintf("undefined substitution argument %s", e.Name)
}

// UndefinedPropertyError is returned when an expression refers to a property not in scope.
type UndefinedPropertyError struct {
	Name string
}

// NewUndefinedPropertyError returns an error for a property lookup that failed.
func NewUndefinedPropertyError(name string) error {
	return &UndefinedPropertyError{Name: name}
}

func (e *UndefinedPropertyError) Error() string {
	return fmt.Sprintf("property %q is not defined", e.Name)
}

// NewUnknownMacroError is used when an element in the xacro namespace is neither a directive nor
// a defined macro.
func NewUnknownMacroError(name string) error {
	return errors.Errorf("unknown macro name: xacro:%s", name)
}

// NewNotBooleanError is used when a conditional evaluates to something other than a boolean.
func NewNotBooleanError(condition string, value interface{}) error {
	return errors.Errorf("xacro conditional %q evaluated to %q, which is not a boolean expression", condition, formatValue(value))
}

// wrapInFile prefixes err with the file being processed, once.
func wrapInFile(err error, file string) error {
	var located *locatedError
	if errors.As(err, &located) {
		return err
	}
	return &locatedError{file: file, err: err}
}

type locatedError struct {
	file string
	err  error
}

func (e *locatedError) Error() string {
	return fmt.Sprintf("%s: %v", e.file, e.err)
}

func (e *locatedError) Unwrap() error {
	return e.err
}
