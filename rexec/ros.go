package rexec

import (
	"context"
	"os"
	"path/filepath"
	"syscall"

	"github.com/google/uuid"
	"github.com/pkg/errors"
	"go.viam.com/utils/pexec"
	"gopkg.in/yaml.v3"

	"github.com/openarm/display/launch"
	"github.com/openarm/display/logging"
)

const (
	// ROS2Command is the executable launched processes are run through.
	ROS2Command = "ros2"

	runDirPrefix = "openarm-display-"
)

// NewRunDirectory creates a uniquely named directory under base for the files of one launch.
func NewRunDirectory(base string) (string, error) {
	if base == "" {
		base = os.TempDir()
	}
	dir := filepath.Join(base, runDirPrefix+uuid.NewString())
	if err := os.MkdirAll(dir, 0o700); err != nil {
		return "", errors.Wrap(err, "creating run directory")
	}
	return dir, nil
}

// WriteParamsFile writes params for node as a ROS 2 parameters file in dir and returns its path.
func WriteParamsFile(dir, node string, params map[string]string) (string, error) {
	doc := map[string]map[string]map[string]string{
		node: {"ros__parameters": params},
	}
	data, err := yaml.Marshal(doc)
	if err != nil {
		return "", errors.Wrapf(err, "encoding parameters of %s", node)
	}
	path := filepath.Join(dir, node+"_params.yaml")
	if err := os.WriteFile(path, data, 0o600); err != nil {
		return "", errors.Wrapf(err, "writing parameters of %s", node)
	}
	return path, nil
}

// FromSpec converts a process spec into a `ros2 run` invocation. Parameters are passed through a
// params file written to runDir. Processes are stopped with SIGINT, as ros2 launch does, and are
// not restarted when they exit.
func FromSpec(spec launch.ProcessSpec, runDir string, logger logging.Logger) (pexec.ProcessConfig, error) {
	args := []string{"run", spec.Package, spec.Executable}
	args = append(args, spec.Arguments...)
	args = append(args, "--ros-args", "-r", "__node:="+spec.Name)
	if len(spec.Parameters) > 0 {
		path, err := WriteParamsFile(runDir, spec.Name, spec.Parameters)
		if err != nil {
			return pexec.ProcessConfig{}, err
		}
		args = append(args, "--params-file", path)
	}
	config := pexec.ProcessConfig{
		ID:         spec.Name,
		Name:       ROS2Command,
		Args:       args,
		Log:        true,
		StopSignal: syscall.SIGINT,
		OnUnexpectedExit: func(_ context.Context, exitCode int) bool {
			logger.Infow("process exited", "id", spec.Name, "code", exitCode)
			return false
		},
	}
	if spec.Output == launch.OutputLog {
		output := debugOutput{logger.Sublogger(spec.Name)}
		config.StdOutLogger, config.StdErrLogger = output, output
	}
	return config, nil
}

// FromSpecs converts specs in order.
func FromSpecs(specs []launch.ProcessSpec, runDir string, logger logging.Logger) ([]pexec.ProcessConfig, error) {
	configs := make([]pexec.ProcessConfig, 0, len(specs))
	for _, spec := range specs {
		config, err := FromSpec(spec, runDir, logger)
		if err != nil {
			return nil, err
		}
		configs = append(configs, config)
	}
	return configs, nil
}

// debugOutput logs process output at debug level. It serves the "log" output destination, which
// keeps a node's output off the console.
type debugOutput struct {
	logging.Logger
}

func (o debugOutput) Info(args ...interface{}) {
	o.Debug(args...)
}

func (o debugOutput) Error(args ...interface{}) {
	o.Debug(args...)
}
