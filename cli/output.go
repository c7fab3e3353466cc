package cli

import (
	"fmt"
	"io"

	"github.com/fatih/color"
)

// printf prints a message with no decoration.
func printf(w io.Writer, format string, a ...interface{}) {
	//nolint:errcheck
	fmt.Fprintf(w, format+"\n", a...)
}

// infof prints a message prefixed by a bold cyan "Info: ".
func infof(w io.Writer, format string, a ...interface{}) {
	//nolint:errcheck
	fmt.Fprint(w, color.New(color.Bold, color.FgCyan).Sprint("Info: "))
	printf(w, format, a...)
}

// warningf prints a message prefixed by a bold yellow "Warning: ".
func warningf(w io.Writer, format string, a ...interface{}) {
	//nolint:errcheck
	fmt.Fprint(w, color.New(color.Bold, color.FgYellow).Sprint("Warning: "))
	printf(w, format, a...)
}

// successf prints a message prefixed by a bold green "Success: ".
func successf(w io.Writer, format string, a ...interface{}) {
	//nolint:errcheck
	fmt.Fprint(w, color.New(color.Bold, color.FgGreen).Sprint("Success: "))
	printf(w, format, a...)
}
