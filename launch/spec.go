package launch

import (
	"fmt"
	"strings"
)

// OutputMode routes a process's output.
type OutputMode string

const (
	// OutputScreen prints the process output to the console.
	OutputScreen OutputMode = "screen"
	// OutputLog writes the process output to its log file only.
	OutputLog OutputMode = "log"
)

// RobotDescriptionParameter is the robot_state_publisher parameter carrying the URDF.
const RobotDescriptionParameter = "robot_description"

// ProcessSpec describes one process for the supervisor to start. Specs are values; use Copy
// before modifying one that is shared.
type ProcessSpec struct {
	Package    string            `json:"package"`
	Executable string            `json:"executable"`
	Name       string            `json:"name"`
	Arguments  []string          `json:"arguments,omitempty"`
	Parameters map[string]string `json:"parameters,omitempty"`
	Output     OutputMode        `json:"output"`
}

// Copy returns a deep copy of the spec.
func (s ProcessSpec) Copy() ProcessSpec {
	out := s
	if s.Arguments != nil {
		out.Arguments = append([]string(nil), s.Arguments...)
	}
	if s.Parameters != nil {
		out.Parameters = make(map[string]string, len(s.Parameters))
		for k, v := range s.Parameters {
			out.Parameters[k] = v
		}
	}
	return out
}

func (s ProcessSpec) String() string {
	cmd := fmt.Sprintf("%s/%s (%s)", s.Package, s.Executable, s.Name)
	if len(s.Arguments) > 0 {
		cmd += " " + strings.Join(s.Arguments, " ")
	}
	return cmd
}

func robotStatePublisherSpec(description string) ProcessSpec {
	return ProcessSpec{
		Package:    "robot_state_publisher",
		Executable: "robot_state_publisher",
		Name:       "robot_state_publisher",
		Parameters: map[string]string{RobotDescriptionParameter: description},
		Output:     OutputScreen,
	}
}

func jointStatePublisherGUISpec() ProcessSpec {
	return ProcessSpec{
		Package:    "joint_state_publisher_gui",
		Executable: "joint_state_publisher_gui",
		Name:       "joint_state_publisher_gui",
		Output:     OutputLog,
	}
}

func rvizSpec(configPath string) ProcessSpec {
	return ProcessSpec{
		Package:    "rviz2",
		Executable: "rviz2",
		Name:       "rviz2",
		Arguments:  []string{"--display-config", configPath},
		Output:     OutputScreen,
	}
}
