package xacro

import (
	"bytes"
	"context"
	"os/exec"
	"sort"
	"strings"

	"github.com/pkg/errors"

	"github.com/openarm/display/logging"
)

const (
	// DefaultCommand is the executable CommandEngine runs when none is configured.
	DefaultCommand = "xacro"

	xacroArgSeparator = ":="
)

// CommandEngine expands xacro files by running an installed xacro executable, for templates using
// features the native Processor does not implement.
type CommandEngine struct {
	command string
	logger  logging.Logger
}

// NewCommandEngine returns an engine running command, or DefaultCommand when command is empty.
func NewCommandEngine(command string, logger logging.Logger) *CommandEngine {
	if command == "" {
		command = DefaultCommand
	}
	return &CommandEngine{command: command, logger: logger}
}

// Process runs `<command> <path> name:=value...` and parses its standard output.
func (e *CommandEngine) Process(ctx context.Context, path string, mappings map[string]string) (*Document, error) {
	if _, err := exec.LookPath(e.command); err != nil {
		return nil, errors.Wrapf(err, "%s not found, install xacro or use the native engine", e.command)
	}

	args := []string{path}
	args = append(args, mappingArgs(mappings)...)
	e.logger.Debugw("running xacro", "command", e.command, "args", args)

	//nolint:gosec
	cmd := exec.CommandContext(ctx, e.command, args...)
	var stdout, stderr bytes.Buffer
	cmd.Stdout = &stdout
	cmd.Stderr = &stderr
	if err := cmd.Run(); err != nil {
		return nil, errors.Errorf("xacro processing failed: %v\nStderr: %s", err, strings.TrimSpace(stderr.String()))
	}

	doc, err := ParseDocument(&stdout)
	if err != nil {
		return nil, errors.Wrap(err, "parsing xacro output")
	}
	return doc, nil
}

// mappingArgs renders mappings as xacro command line arguments in a stable order.
func mappingArgs(mappings map[string]string) []string {
	names := make([]string, 0, len(mappings))
	for name := range mappings {
		names = append(names, name)
	}
	sort.Strings(names)

	args := make([]string, 0, len(names))
	for _, name := range names {
		args = append(args, name+xacroArgSeparator+mappings[name])
	}
	return args
}
